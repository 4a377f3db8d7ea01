package sessionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"robopilot/internal/models"
)

const (
	filePrefix = "log_"
	fileSuffix = ".json"
	timeLayout = "2006-01-02_15-04-05"

	maxNameAttempts = 100
)

// FileName is the log file name for a session started at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(timeLayout) + fileSuffix
}

// File writes a session as a JSON array that is readable even before it
// is closed: "[" and the first message, then ",\n" before every later
// element, and the summary plus "]" on Close.
type File struct {
	path   string
	f      *os.File
	empty  bool
	closed bool
}

// Create opens a new log file in dir named after now. When a session
// started in the same second already owns that name, a counter is added
// (log_<time>_2.json, ...). initial messages (usually the system message,
// or a loaded transcript) are written first.
func Create(dir string, now time.Time, initial []models.Message) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path, f, err := openUnique(dir, now)
	if err != nil {
		return nil, fmt.Errorf("create session log: %w", err)
	}
	lf := &File{path: path, f: f, empty: true}
	for _, m := range initial {
		if err := lf.writeElement(m); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return lf, nil
}

func openUnique(dir string, now time.Time) (string, *os.File, error) {
	base := strings.TrimSuffix(FileName(now), fileSuffix)
	for n := 1; n <= maxNameAttempts; n++ {
		name := base + fileSuffix
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, fileSuffix)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("%d logs named %s already exist", maxNameAttempts, base)
}

func (l *File) Path() string {
	return l.path
}

func (l *File) writeElement(v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode log element: %w", err)
	}
	sep := ",\n"
	if l.empty {
		sep = "[\n"
	}
	if _, err := l.f.WriteString(sep); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	if _, err := l.f.Write(data); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	l.empty = false
	return l.f.Sync()
}

func (l *File) Write(_ context.Context, m models.Message) error {
	if l.closed {
		return fmt.Errorf("session log %s is closed", l.path)
	}
	return l.writeElement(m)
}

// Close appends the summary and the closing bracket. Closing twice is a
// no-op.
func (l *File) Close(_ context.Context, s models.Summary) error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.writeElement(s); err != nil {
		_ = l.f.Close()
		return err
	}
	if _, err := l.f.WriteString("\n]\n"); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("write session log: %w", err)
	}
	return l.f.Close()
}

// FileInfo describes a stored session log.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ListFiles returns the session logs in dir, newest first. A missing
// directory yields an empty list.
func ListFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list session logs: %w", err)
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Rename renames a log inside dir. Names must be plain file names; the
// .json suffix is added when missing.
func Rename(dir, oldName, newName string) error {
	for _, n := range []string{oldName, newName} {
		if n == "" || n != filepath.Base(n) || n == "." || n == ".." {
			return fmt.Errorf("invalid log name %q", n)
		}
	}
	if !strings.HasSuffix(newName, fileSuffix) {
		newName += fileSuffix
	}
	from := filepath.Join(dir, oldName)
	to := filepath.Join(dir, newName)
	if _, err := os.Stat(from); err != nil {
		return fmt.Errorf("log %q not found: %w", oldName, err)
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("log %q already exists", newName)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename log: %w", err)
	}
	return nil
}
