package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"robopilot/internal/models"
	"robopilot/internal/robot"
)

// Defaults is the per-session table of default motion values and named
// poses the model can read and change.
type Defaults struct {
	MoveType     string            `json:"moveType" mapstructure:"moveType"`
	Velocity     float64           `json:"velocity" mapstructure:"velocity"`
	Acceleration float64           `json:"acceleration" mapstructure:"acceleration"`
	Safe         bool              `json:"safe" mapstructure:"safe"`
	Orientation  robot.Orientation `json:"orientation" mapstructure:"orientation"`
	PlatformA    robot.Pose        `json:"platform_A" mapstructure:"platform_A"`
	PlatformB    robot.Pose        `json:"platform_B" mapstructure:"platform_B"`
	BeltPosition robot.Pose        `json:"beltPosition" mapstructure:"beltPosition"`
}

var defaultKeys = []string{
	"moveType", "velocity", "acceleration", "safe",
	"orientation", "platform_A", "platform_B", "beltPosition",
}

// NewDefaults returns the factory table.
func NewDefaults() *Defaults {
	return &Defaults{
		MoveType:     string(robot.MoveJump),
		Velocity:     100,
		Acceleration: 1,
		Safe:         true,
		Orientation:  robot.Orientation{W: 0, X: 1, Y: 0, Z: 0},
		PlatformA: robot.Pose{
			Position:    robot.Position{X: 0.014, Y: -0.293, Z: -0.104},
			Orientation: robot.Orientation{W: 0, X: -0.691, Y: 0.723, Z: 0},
		},
		PlatformB: robot.Pose{
			Position:    robot.Position{X: 0.0903, Y: -0.281, Z: -0.1038},
			Orientation: robot.Orientation{W: 0, X: -0.59, Y: 0.807, Z: 0},
		},
		BeltPosition: robot.Pose{
			Position:    robot.Position{X: 0.325, Y: -0.021, Z: -0.047},
			Orientation: robot.Orientation{W: 0, X: -0.59, Y: 0.807, Z: 0},
		},
	}
}

// JSON renders the table the way getDefValues reports it.
func (d *Defaults) JSON() string {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	return string(data)
}

// Set validates and stores one value. The returned text is the tool
// result.
func (d *Defaults) Set(key string, value any) string {
	switch key {
	case "moveType":
		s, _ := value.(string)
		mt, err := robot.ParseMoveType(s)
		if err != nil {
			return "Invalid value for moveType. Valid values are: JUMP, LINEAR, JOINTS"
		}
		d.MoveType = string(mt)
	case "velocity":
		v, ok := asNumber(value)
		if !ok || v < 0 || v > 100 {
			return "Invalid value for velocity. Valid values are: 0-100"
		}
		d.Velocity = v
	case "acceleration":
		v, ok := asNumber(value)
		if !ok || v < 0 || v > 1 {
			return "Invalid value for acceleration. Valid values are: 0-1"
		}
		d.Acceleration = v
	case "safe":
		b, ok := value.(bool)
		if !ok {
			return "Invalid value for safe. Valid values are: true, false"
		}
		d.Safe = b
	case "orientation":
		o, ok := asOrientation(value)
		if !ok {
			return "Invalid value for orientation. Expected an object with w, x, y, z"
		}
		d.Orientation = o
	case "platform_A", "platform_B", "beltPosition":
		p, ok := asPose(value)
		if !ok {
			return fmt.Sprintf("Invalid value for %s. Expected an object with position {x, y, z} and orientation {w, x, y, z}", key)
		}
		switch key {
		case "platform_A":
			d.PlatformA = p
		case "platform_B":
			d.PlatformB = p
		default:
			d.BeltPosition = p
		}
	default:
		return fmt.Sprintf("Unknown default value key (%s). Valid keys are: %s", key, strings.Join(defaultKeys, ", "))
	}
	return "Default value was successfully set!"
}

func asNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	var f float64
	if err := mapstructure.WeakDecode(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

func hasKeys(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func asOrientation(v any) (robot.Orientation, bool) {
	m, ok := v.(map[string]any)
	if !ok || !hasKeys(m, "w", "x", "y", "z") {
		return robot.Orientation{}, false
	}
	var o robot.Orientation
	if err := Decode(Args(m), &o); err != nil {
		return robot.Orientation{}, false
	}
	return o, true
}

func asPose(v any) (robot.Pose, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return robot.Pose{}, false
	}
	pos, ok := m["position"].(map[string]any)
	if !ok || !hasKeys(pos, "x", "y", "z") {
		return robot.Pose{}, false
	}
	if _, ok := asOrientation(m["orientation"]); !ok {
		return robot.Pose{}, false
	}
	var p robot.Pose
	if err := Decode(Args(m), &p); err != nil {
		return robot.Pose{}, false
	}
	return p, true
}

// RegisterDefaults adds getDefValues and setDefValue backed by d.
func RegisterDefaults(r *Registry, d *Defaults) error {
	err := r.Register(models.ToolSpec{
		Name:        "getDefValues",
		Description: "Returns the default values used for robot movement (moveType, velocity, acceleration, safe), the default orientation and the saved poses platform_A, platform_B and beltPosition.",
	}, func(ctx context.Context, args Args) string {
		return d.JSON()
	})
	if err != nil {
		return err
	}

	return r.Register(models.ToolSpec{
		Name:        "setDefValue",
		Description: "Sets one default value. moveType: JUMP, LINEAR or JOINTS. velocity: 0-100. acceleration: 0-1. safe: boolean. orientation: {w, x, y, z}. platform_A, platform_B, beltPosition: {position {x, y, z}, orientation {w, x, y, z}}.",
		Parameters: map[string]any{
			"key":   enum("Name of the default value", defaultKeys...),
			"value": map[string]any{"description": "New value; its type depends on the key"},
		},
		Required: []string{"key", "value"},
	}, func(ctx context.Context, args Args) string {
		if !args.Has("key") {
			return "Missing required parameter (key)"
		}
		if !args.Has("value") {
			return "Missing required parameter (value)"
		}
		key, _ := args["key"].(string)
		return d.Set(key, args["value"])
	})
}
