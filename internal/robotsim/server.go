// Package robotsim serves an in-memory stand-in for the robot backend.
package robotsim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"robopilot/internal/robot"
)

// HomePose is where the arm goes on a home request.
var HomePose = robot.Pose{
	Position:    robot.Position{X: 0.2, Y: 0, Z: 0.1},
	Orientation: robot.Orientation{W: 1},
}

// State is the simulated robot.
type State struct {
	Started       bool
	Pose          robot.Pose
	LastMoveType  robot.MoveType
	Vacuum        bool
	BeltVelocity  float64
	BeltDirection string
	BeltTravelled float64
}

// Server holds the simulated state behind a chi router. Handlers run
// concurrently, so the state is guarded by a mutex.
type Server struct {
	mu     sync.Mutex
	state  State
	logger *zap.Logger
	router chi.Router
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "Running!")
	})
	r.Get("/state/started", s.handleStarted)
	r.Put("/state/start", s.handleStart)
	r.Put("/state/stop", s.handleStop)
	r.Get("/eef/pose", s.requireStarted(s.handleGetPose))
	r.Put("/eef/pose", s.requireStarted(s.handlePutPose))
	r.Put("/home", s.requireStarted(s.handleHome))
	r.Put("/suck", s.requireStarted(s.handleSuck))
	r.Put("/release", s.requireStarted(s.handleRelease))
	r.Put("/conveyor/speed", s.handleBeltSpeed)
	r.Put("/conveyor/distance", s.handleBeltDistance)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Snapshot returns a copy of the current state.
func (s *Server) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("sim request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireStarted(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		started := s.state.Started
		s.mu.Unlock()
		if !started {
			http.Error(w, "Robot is not started", http.StatusConflict)
			return
		}
		h(w, r)
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleStarted(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.state.Started
	s.mu.Unlock()
	writeText(w, strconv.FormatBool(started)+"\n")
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var pose robot.Pose
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&pose); err != nil {
			http.Error(w, "Invalid pose", http.StatusBadRequest)
			return
		}
	}
	s.mu.Lock()
	s.state.Started = true
	s.state.Pose = pose
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.state.Started = false
	s.state.Vacuum = false
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetPose(w http.ResponseWriter, r *http.Request) {
	pose := s.Snapshot().Pose
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pose); err != nil {
		s.logger.Error("encode pose", zap.Error(err))
	}
}

func (s *Server) handlePutPose(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	moveType, err := robot.ParseMoveType(q.Get("moveType"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, key := range []string{"velocity", "acceleration"} {
		if v := q.Get(key); v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				http.Error(w, fmt.Sprintf("%s must be a number", key), http.StatusBadRequest)
				return
			}
		}
	}
	if v := q.Get("safe"); v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			http.Error(w, "safe must be a boolean", http.StatusBadRequest)
			return
		}
	}

	var pose robot.Pose
	if err := json.NewDecoder(r.Body).Decode(&pose); err != nil {
		http.Error(w, "Invalid pose", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.state.Pose = pose
	s.state.LastMoveType = moveType
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.state.Pose = HomePose
	s.mu.Unlock()
	writeText(w, "Coming home!")
}

func (s *Server) handleSuck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.state.Vacuum = true
	s.mu.Unlock()
	writeText(w, "Sucked!")
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.state.Vacuum = false
	s.mu.Unlock()
	writeText(w, "Released!")
}

func parseBelt(r *http.Request) (string, float64, error) {
	q := r.URL.Query()
	direction, err := robot.ParseDirection(q.Get("direction"))
	if err != nil {
		return "", 0, err
	}
	velocity, err := strconv.ParseFloat(q.Get("velocity"), 64)
	if err != nil {
		return "", 0, fmt.Errorf("velocity must be a number")
	}
	return direction, velocity, nil
}

func (s *Server) handleBeltSpeed(w http.ResponseWriter, r *http.Request) {
	direction, velocity, err := parseBelt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.state.BeltDirection = direction
	s.state.BeltVelocity = velocity
	s.mu.Unlock()
	writeText(w, "Belt speed was successfully set!")
}

func (s *Server) handleBeltDistance(w http.ResponseWriter, r *http.Request) {
	direction, velocity, err := parseBelt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	distance, err := strconv.ParseFloat(r.URL.Query().Get("distance"), 64)
	if err != nil || distance < 0 {
		http.Error(w, "distance must be a non-negative number", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.state.BeltDirection = direction
	s.state.BeltVelocity = velocity
	if direction == robot.Backwards {
		s.state.BeltTravelled -= distance
	} else {
		s.state.BeltTravelled += distance
	}
	s.mu.Unlock()
	writeText(w, fmt.Sprintf("Belt moved %s m %s.", strconv.FormatFloat(distance, 'f', -1, 64), direction))
}
