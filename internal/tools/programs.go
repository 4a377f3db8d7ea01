package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"robopilot/internal/models"
)

// ProgramConfig locates the program workspace and how programs are run.
type ProgramConfig struct {
	Dir         string
	Interpreter string
	Timeout     time.Duration
}

type programs struct {
	cfg ProgramConfig
}

// resolve maps a program name onto a path inside the workspace. Names that
// already start with the workspace directory are accepted as well.
func (p programs) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	cleaned := filepath.Clean(name)
	if rel, err := filepath.Rel(filepath.Clean(p.cfg.Dir), cleaned); err == nil && !strings.HasPrefix(rel, "..") {
		cleaned = rel
	}
	path := filepath.Join(p.cfg.Dir, filepath.Clean(string(filepath.Separator)+cleaned))
	if path == filepath.Clean(p.cfg.Dir) {
		return "", fmt.Errorf("%q is not a file name", name)
	}
	return path, nil
}

func (p programs) save(ctx context.Context, args Args) string {
	for _, k := range []string{"file_path", "text"} {
		if !args.Has(k) {
			return missing(k)
		}
	}
	name, _ := args["file_path"].(string)
	text, _ := args["text"].(string)
	path, err := p.resolve(name)
	if err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	return fmt.Sprintf("Text was successfully saved! %s", path)
}

func (p programs) list(ctx context.Context, args Args) string {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Sprintf("Error occurred: %v", err)
	}

	type program struct {
		name  string
		mtime time.Time
	}
	var progs []program
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		progs = append(progs, program{name: e.Name(), mtime: info.ModTime()})
	}
	if len(progs) == 0 {
		return "No saved programs."
	}
	sort.Slice(progs, func(i, j int) bool {
		return progs[i].name < progs[j].name
	})

	var sb strings.Builder
	for _, prog := range progs {
		sb.WriteString(fmt.Sprintf("%s - Last change: %s\n", prog.name, prog.mtime.Format("2006-01-02 15:04:05")))
	}
	return sb.String()
}

func (p programs) read(ctx context.Context, args Args) string {
	if !args.Has("file_path") {
		return missing("file_path")
	}
	name, _ := args["file_path"].(string)
	path, err := p.resolve(name)
	if err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	return string(data)
}

func (p programs) run(ctx context.Context, args Args) string {
	if !args.Has("file_path") {
		return missing("file_path")
	}
	name, _ := args["file_path"].(string)
	path, err := p.resolve(name)
	if err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("Error occurred: %v", err)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.cfg.Interpreter, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Program exited with errors. Error:\ntimed out after %s\n%s", p.cfg.Timeout, stderr.String())
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return "Program was successfully run! Output:\n" + stdout.String()
	case errors.As(err, &exitErr):
		return "Program exited with errors. Error:\n" + stderr.String()
	default:
		return fmt.Sprintf("Error occurred: %v", err)
	}
}

// RegisterPrograms adds the tools that store and run programs in the
// workspace directory.
func RegisterPrograms(r *Registry, cfg ProgramConfig) error {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	p := programs{cfg: cfg}

	specs := []Tool{
		{
			Spec: models.ToolSpec{
				Name:        "saveTXT",
				Description: "Saves text (usually a program) to a file in the program workspace.",
				Parameters: map[string]any{
					"file_path": str("File name, e.g. pick_and_place.py"),
					"text":      str("Content to save"),
				},
				Required: []string{"file_path", "text"},
			},
			Handler: p.save,
		},
		{
			Spec: models.ToolSpec{
				Name:        "getSavedPrograms",
				Description: "Lists the saved programs with their last change time.",
			},
			Handler: p.list,
		},
		{
			Spec: models.ToolSpec{
				Name:        "getSavedProgram",
				Description: "Returns the content of a saved program.",
				Parameters: map[string]any{
					"file_path": str("File name of the program"),
				},
				Required: []string{"file_path"},
			},
			Handler: p.read,
		},
		{
			Spec: models.ToolSpec{
				Name:        "runSavedProgram",
				Description: "Runs a saved program and returns its output.",
				Parameters: map[string]any{
					"file_path": str("File name of the program"),
				},
				Required: []string{"file_path"},
			},
			Handler: p.run,
		},
	}
	for _, t := range specs {
		if err := r.Register(t.Spec, t.Handler); err != nil {
			return err
		}
	}
	return nil
}
