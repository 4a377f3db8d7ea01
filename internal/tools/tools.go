// Package tools holds the tool table offered to the model and executes
// the calls it makes.
package tools

import (
	"context"
	"fmt"

	"robopilot/internal/models"
)

// Args are the decoded arguments of one tool call.
type Args map[string]any

// Has reports whether key was supplied.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Handler runs a tool. Successes and domain failures alike are reported as
// the returned text, which goes back to the model verbatim.
type Handler func(ctx context.Context, args Args) string

type Tool struct {
	Spec    models.ToolSpec
	Handler Handler
}

// Registry maps tool names to specs and handlers. Tools are registered at
// startup and never change afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(spec models.ToolSpec, h Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("tool %s has no handler", spec.Name)
	}
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.tools[spec.Name] = Tool{Spec: spec, Handler: h}
	r.order = append(r.order, spec.Name)
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns every registered spec in registration order.
func (r *Registry) Specs() []models.ToolSpec {
	out := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec)
	}
	return out
}

// Publish returns the specs offered to the model. Tools that need the
// robot backend are left out when it is unreachable.
func (r *Registry) Publish(backendUp bool) []models.ToolSpec {
	out := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		spec := r.tools[name].Spec
		if spec.RequiresBackend && !backendUp {
			continue
		}
		out = append(out, spec)
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func enum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func object(desc string, props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "description": desc, "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func positionSchema() map[string]any {
	return object("Position in meters", map[string]any{
		"x": num("x"), "y": num("y"), "z": num("z"),
	}, "x", "y", "z")
}

func orientationSchema() map[string]any {
	return object("Orientation as a quaternion", map[string]any{
		"w": num("w"), "x": num("x"), "y": num("y"), "z": num("z"),
	}, "w", "x", "y", "z")
}

func poseSchema() map[string]any {
	return object("End-effector pose", map[string]any{
		"position":    positionSchema(),
		"orientation": orientationSchema(),
	}, "position", "orientation")
}
