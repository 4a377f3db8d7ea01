package robot

import (
	"errors"
	"strings"
)

var (
	ErrInvalidMoveType  = errors.New("moveType must be one of: JUMP, LINEAR, JOINTS")
	ErrInvalidDirection = errors.New("direction must be either 'forward' or 'backwards'")
)

// Position in meters.
type Position struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

// Orientation as a quaternion.
type Orientation struct {
	W float64 `json:"w" mapstructure:"w"`
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

// Pose is the end-effector position and orientation.
type Pose struct {
	Position    Position    `json:"position" mapstructure:"position"`
	Orientation Orientation `json:"orientation" mapstructure:"orientation"`
}

// StartPose is the pose sent with a start request.
var StartPose = Pose{Orientation: Orientation{W: 1}}

type MoveType string

const (
	MoveJump   MoveType = "JUMP"
	MoveLinear MoveType = "LINEAR"
	MoveJoints MoveType = "JOINTS"
)

func ParseMoveType(s string) (MoveType, error) {
	switch mt := MoveType(strings.ToUpper(strings.TrimSpace(s))); mt {
	case MoveJump, MoveLinear, MoveJoints:
		return mt, nil
	}
	return "", ErrInvalidMoveType
}

// Conveyor directions.
const (
	Forward   = "forward"
	Backwards = "backwards"
)

func ParseDirection(s string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(s)); d {
	case Forward, Backwards:
		return d, nil
	}
	return "", ErrInvalidDirection
}

// MoveOptions are the optional parameters of a pose move. Nil fields are
// left to the robot's own defaults.
type MoveOptions struct {
	Velocity     *float64
	Acceleration *float64
	Safe         *bool
}
