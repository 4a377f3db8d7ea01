package tools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robopilot/internal/robot"
	"robopilot/internal/robotsim"
)

func call(t *testing.T, r *Registry, name string, args Args) string {
	t.Helper()
	tool, ok := r.Lookup(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool.Handler(context.Background(), args)
}

func robotRegistry(t *testing.T) (*Registry, *robotsim.Server, *Defaults) {
	t.Helper()
	sim := robotsim.New(nil)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)

	r := NewRegistry()
	d := NewDefaults()
	require.NoError(t, RegisterRobot(r, robot.New(srv.URL, robot.WithRate(0)), d))
	require.NoError(t, RegisterDefaults(r, d))
	return r, sim, d
}

func TestRobotTools(t *testing.T) {
	r, sim, _ := robotRegistry(t)

	assert.Equal(t, "false", call(t, r, "started", nil))
	assert.Contains(t, call(t, r, "suck", nil), "Robot is not running as expected. Error: Robot is not started")

	assert.Equal(t, "Success!", call(t, r, "start", nil))
	assert.Equal(t, "true", call(t, r, "started", nil))
	assert.Equal(t, "Sucked!", call(t, r, "suck", nil))
	assert.True(t, sim.Snapshot().Vacuum)
	assert.Equal(t, "Released!", call(t, r, "release", nil))
	assert.Equal(t, "Coming home!", call(t, r, "putHome", nil))

	var pose robot.Pose
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "getPose", nil)), &pose))
	assert.Equal(t, robotsim.HomePose, pose)

	assert.Equal(t, "Success!", call(t, r, "stop", nil))
}

func TestPutPose(t *testing.T) {
	r, sim, _ := robotRegistry(t)
	call(t, r, "start", nil)

	assert.Equal(t, "Missing required parameter (moveType)", call(t, r, "putPose", Args{}))
	assert.Equal(t, "Missing required parameter (pose)", call(t, r, "putPose", Args{"moveType": "JUMP"}))
	assert.Equal(t, "Pose missing required (position or orientation)",
		call(t, r, "putPose", Args{"moveType": "JUMP", "pose": map[string]any{"position": map[string]any{}}}))

	pose := map[string]any{
		"position":    map[string]any{"x": 0.1, "y": -0.2, "z": 0.05},
		"orientation": map[string]any{"w": 0, "x": 1, "y": 0, "z": 0},
	}
	assert.Contains(t, call(t, r, "putPose", Args{"moveType": "FLY", "pose": pose}), "Invalid value for moveType")

	assert.Equal(t, "Success!", call(t, r, "putPose", Args{"moveType": "linear", "pose": pose, "velocity": 30}))
	state := sim.Snapshot()
	assert.Equal(t, robot.MoveLinear, state.LastMoveType)
	assert.Equal(t, robot.Position{X: 0.1, Y: -0.2, Z: 0.05}, state.Pose.Position)
}

func TestBeltTools(t *testing.T) {
	r, sim, _ := robotRegistry(t)

	assert.Equal(t, "Missing required parameter (direction)", call(t, r, "beltSpeed", Args{"velocity": 10}))
	assert.Equal(t, "Missing required parameter (velocity)", call(t, r, "beltSpeed", Args{"direction": "forward"}))
	assert.Equal(t, "Direction must be either 'forward' or 'backwards'",
		call(t, r, "beltSpeed", Args{"direction": "up", "velocity": 10}))
	assert.Equal(t, "Belt speed was successfully set!", call(t, r, "beltSpeed", Args{"direction": "Forward", "velocity": 10}))

	assert.Equal(t, "Missing required parameter (distance)",
		call(t, r, "beltDistance", Args{"direction": "forward", "velocity": 10}))
	assert.Equal(t, "Belt moved 0.3 m backwards.",
		call(t, r, "beltDistance", Args{"direction": "backwards", "velocity": 10, "distance": 0.3}))
	assert.Equal(t, -0.3, sim.Snapshot().BeltTravelled)
}

func TestDefaultsTools(t *testing.T) {
	r, _, d := robotRegistry(t)

	var table map[string]any
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "getDefValues", nil)), &table))
	assert.Equal(t, "JUMP", table["moveType"])
	assert.Contains(t, table, "platform_A")
	assert.Contains(t, table, "beltPosition")

	tests := []struct {
		key   string
		value any
		want  string
	}{
		{"moveType", "LINEAR", "Default value was successfully set!"},
		{"moveType", "FLY", "Invalid value for moveType. Valid values are: JUMP, LINEAR, JOINTS"},
		{"velocity", 50.0, "Default value was successfully set!"},
		{"velocity", 150.0, "Invalid value for velocity. Valid values are: 0-100"},
		{"acceleration", 0.5, "Default value was successfully set!"},
		{"acceleration", 2.0, "Invalid value for acceleration. Valid values are: 0-1"},
		{"safe", false, "Default value was successfully set!"},
		{"safe", "maybe", "Invalid value for safe. Valid values are: true, false"},
		{"orientation", map[string]any{"w": 1.0, "x": 0.0, "y": 0.0, "z": 0.0}, "Default value was successfully set!"},
		{"orientation", map[string]any{"w": 1.0}, "Invalid value for orientation. Expected an object with w, x, y, z"},
		{"platform_B", map[string]any{
			"position":    map[string]any{"x": 0.1, "y": 0.2, "z": 0.3},
			"orientation": map[string]any{"w": 0.0, "x": 1.0, "y": 0.0, "z": 0.0},
		}, "Default value was successfully set!"},
		{"platform_A", "here", "Invalid value for platform_A. Expected an object with position {x, y, z} and orientation {w, x, y, z}"},
		{"colour", "red", "Unknown default value key (colour). Valid keys are: moveType, velocity, acceleration, safe, orientation, platform_A, platform_B, beltPosition"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, call(t, r, "setDefValue", Args{"key": tt.key, "value": tt.value}), "%s=%v", tt.key, tt.value)
	}

	assert.Equal(t, "LINEAR", d.MoveType)
	assert.Equal(t, 50.0, d.Velocity)
	assert.Equal(t, 0.5, d.Acceleration)
	assert.False(t, d.Safe)
	assert.Equal(t, robot.Orientation{W: 1}, d.Orientation)
	assert.Equal(t, robot.Position{X: 0.1, Y: 0.2, Z: 0.3}, d.PlatformB.Position)

	assert.Equal(t, "Missing required parameter (key)", call(t, r, "setDefValue", Args{"value": 1}))
	assert.Equal(t, "Missing required parameter (value)", call(t, r, "setDefValue", Args{"key": "velocity"}))
}

func TestProgramTools(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	require.NoError(t, RegisterPrograms(r, ProgramConfig{Dir: dir, Interpreter: "sh", Timeout: 10 * time.Second}))

	assert.Equal(t, "No saved programs.", call(t, r, "getSavedPrograms", nil))
	assert.Equal(t, "Missing required parameter (text)", call(t, r, "saveTXT", Args{"file_path": "a.sh"}))

	saved := call(t, r, "saveTXT", Args{"file_path": "hello.sh", "text": "echo hello\n"})
	assert.Equal(t, "Text was successfully saved! "+filepath.Join(dir, "hello.sh"), saved)

	escaped := call(t, r, "saveTXT", Args{"file_path": "../outside.sh", "text": "x"})
	assert.True(t, strings.HasPrefix(escaped, "Text was successfully saved! "+dir), escaped)
	_, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.sh"))
	assert.True(t, os.IsNotExist(err))

	listing := call(t, r, "getSavedPrograms", nil)
	assert.Contains(t, listing, "hello.sh - Last change: ")

	assert.Equal(t, "echo hello\n", call(t, r, "getSavedProgram", Args{"file_path": "hello.sh"}))
	assert.Contains(t, call(t, r, "getSavedProgram", Args{"file_path": "missing.sh"}), "Error occurred")

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	assert.Equal(t, "Program was successfully run! Output:\nhello\n", call(t, r, "runSavedProgram", Args{"file_path": "hello.sh"}))

	call(t, r, "saveTXT", Args{"file_path": "fail.sh", "text": "echo oops >&2\nexit 3\n"})
	assert.Equal(t, "Program exited with errors. Error:\noops\n", call(t, r, "runSavedProgram", Args{"file_path": "fail.sh"}))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "SUCK", Summarize("suck", "{}", "Sucked!"))
	assert.Equal(t, "MOVE JUMP to (0.100, -0.200, 0.050)",
		Summarize("putPose", `{"moveType":"jump","pose":{"position":{"x":0.1,"y":-0.2,"z":0.05},"orientation":{"w":0,"x":1,"y":0,"z":0}}}`, "Success!"))
	assert.Equal(t, "BELT forward at 10 for 0.3m", Summarize("beltDistance", `{"direction":"forward","velocity":10,"distance":0.3}`, "ok"))
	assert.Equal(t, "RUN a.py (failed)", Summarize("runSavedProgram", `{"file_path":"src/a.py"}`, "Program exited with errors. Error:\n"))
	assert.Equal(t, "START (failed)", Summarize("start", "", "Robot is not running as expected. Error: down"))
}
