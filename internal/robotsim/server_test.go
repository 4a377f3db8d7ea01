package robotsim

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robopilot/internal/robot"
)

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartedLifecycle(t *testing.T) {
	s := New(nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/state/started", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false\n", rec.Body.String())

	rec = do(t, h, http.MethodPut, "/state/start", `{"position":{"x":0,"y":0,"z":0},"orientation":{"w":1,"x":0,"y":0,"z":0}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "true\n", do(t, h, http.MethodGet, "/state/started", "").Body.String())

	do(t, h, http.MethodPut, "/state/stop", "")
	assert.False(t, s.Snapshot().Started)
}

func TestMotionRequiresStart(t *testing.T) {
	h := New(nil).Handler()

	rec := do(t, h, http.MethodPut, "/suck", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Robot is not started")
}

func TestPoseAndGripper(t *testing.T) {
	s := New(nil)
	h := s.Handler()
	do(t, h, http.MethodPut, "/state/start", "")

	rec := do(t, h, http.MethodPut, "/eef/pose?moveType=LINEAR&velocity=50&safe=true",
		`{"position":{"x":0.1,"y":-0.2,"z":0.05},"orientation":{"w":0,"x":1,"y":0,"z":0}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := s.Snapshot()
	assert.Equal(t, robot.MoveLinear, state.LastMoveType)
	assert.Equal(t, -0.2, state.Pose.Position.Y)

	rec = do(t, h, http.MethodGet, "/eef/pose", "")
	assert.JSONEq(t, `{"position":{"x":0.1,"y":-0.2,"z":0.05},"orientation":{"w":0,"x":1,"y":0,"z":0}}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/eef/pose?moveType=FLY", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, "Sucked!", do(t, h, http.MethodPut, "/suck", "").Body.String())
	assert.True(t, s.Snapshot().Vacuum)
	assert.Equal(t, "Released!", do(t, h, http.MethodPut, "/release", "").Body.String())
	assert.False(t, s.Snapshot().Vacuum)

	assert.Equal(t, "Coming home!", do(t, h, http.MethodPut, "/home", "").Body.String())
	assert.Equal(t, HomePose, s.Snapshot().Pose)
}

func TestConveyor(t *testing.T) {
	s := New(nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPut, "/conveyor/speed?velocity=20&direction=forward", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Belt speed was successfully set!", rec.Body.String())

	rec = do(t, h, http.MethodPut, "/conveyor/distance?velocity=20&direction=backwards&distance=0.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Belt moved 0.5 m backwards.", rec.Body.String())
	assert.Equal(t, -0.5, s.Snapshot().BeltTravelled)

	rec = do(t, h, http.MethodPut, "/conveyor/speed?velocity=20&direction=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
