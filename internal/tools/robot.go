package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"robopilot/internal/models"
	"robopilot/internal/robot"
)

const invalidDirection = "Direction must be either 'forward' or 'backwards'"

func missing(param string) string {
	return fmt.Sprintf("Missing required parameter (%s)", param)
}

func robotFailure(err error) string {
	var se *robot.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	return fmt.Sprintf("Robot is not running as expected. Error: %v", err)
}

func robotResult(msg string, err error) string {
	if err != nil {
		return robotFailure(err)
	}
	return msg
}

type putPoseArgs struct {
	MoveType     string     `mapstructure:"moveType"`
	Pose         robot.Pose `mapstructure:"pose"`
	Velocity     *float64   `mapstructure:"velocity"`
	Acceleration *float64   `mapstructure:"acceleration"`
	Safe         *bool      `mapstructure:"safe"`
}

type beltArgs struct {
	Direction string  `mapstructure:"direction"`
	Velocity  float64 `mapstructure:"velocity"`
	Distance  float64 `mapstructure:"distance"`
}

// RegisterRobot adds the robot-control tools. All of them require the
// backend; putPose falls back to d for omitted motion parameters.
func RegisterRobot(r *Registry, c *robot.Client, d *Defaults) error {
	simple := func(name, desc string, call func(context.Context) (string, error)) error {
		return r.Register(models.ToolSpec{Name: name, Description: desc, RequiresBackend: true},
			func(ctx context.Context, args Args) string {
				return robotResult(call(ctx))
			})
	}

	err := r.Register(models.ToolSpec{
		Name:            "started",
		Description:     "Returns true if the robot is started, false if not.",
		RequiresBackend: true,
	}, func(ctx context.Context, args Args) string {
		ok, err := c.Started(ctx)
		if err != nil {
			return robotFailure(err)
		}
		return strconv.FormatBool(ok)
	})
	if err != nil {
		return err
	}

	if err := simple("start", "Starts the robot.", c.Start); err != nil {
		return err
	}
	if err := simple("stop", "Stops the robot.", c.Stop); err != nil {
		return err
	}

	err = r.Register(models.ToolSpec{
		Name:            "getPose",
		Description:     "Returns the current pose of the end effector: position {x, y, z} in meters and orientation {w, x, y, z} as a quaternion.",
		RequiresBackend: true,
	}, func(ctx context.Context, args Args) string {
		pose, err := c.GetPose(ctx)
		if err != nil {
			return robotFailure(err)
		}
		data, err := json.MarshalIndent(pose, "", "    ")
		if err != nil {
			return fmt.Sprintf("Error occurred: %v", err)
		}
		return string(data)
	})
	if err != nil {
		return err
	}

	err = r.Register(models.ToolSpec{
		Name:        "putPose",
		Description: "Moves the end effector to the given pose. Velocity, acceleration and safe default to the values from getDefValues when omitted.",
		Parameters: map[string]any{
			"moveType":     enum("Type of movement", string(robot.MoveJump), string(robot.MoveLinear), string(robot.MoveJoints)),
			"pose":         poseSchema(),
			"velocity":     num("Velocity 0-100"),
			"acceleration": num("Acceleration 0-1"),
			"safe":         boolean("Use the safe movement mode"),
		},
		Required:        []string{"moveType", "pose"},
		RequiresBackend: true,
	}, func(ctx context.Context, args Args) string {
		if !args.Has("moveType") {
			return missing("moveType")
		}
		if !args.Has("pose") {
			return missing("pose")
		}
		pose, _ := args["pose"].(map[string]any)
		if !hasKeys(pose, "position", "orientation") {
			return "Pose missing required (position or orientation)"
		}
		var in putPoseArgs
		if err := Decode(args, &in); err != nil {
			return fmt.Sprintf("Invalid parameters: %v", err)
		}
		mt, err := robot.ParseMoveType(in.MoveType)
		if err != nil {
			return "Invalid value for moveType. Valid values are: JUMP, LINEAR, JOINTS"
		}
		opts := robot.MoveOptions{
			Velocity:     in.Velocity,
			Acceleration: in.Acceleration,
			Safe:         in.Safe,
		}
		if opts.Velocity == nil {
			opts.Velocity = &d.Velocity
		}
		if opts.Acceleration == nil {
			opts.Acceleration = &d.Acceleration
		}
		if opts.Safe == nil {
			opts.Safe = &d.Safe
		}
		return robotResult(c.MoveTo(ctx, in.Pose, mt, opts))
	})
	if err != nil {
		return err
	}

	if err := simple("putHome", "Calibrates the robot and moves it to the home position.", c.Home); err != nil {
		return err
	}
	if err := simple("suck", "Turns on the vacuum gripper (holds an object).", c.Suck); err != nil {
		return err
	}
	if err := simple("release", "Turns off the vacuum gripper (releases an object).", c.Release); err != nil {
		return err
	}

	err = r.Register(models.ToolSpec{
		Name:        "beltSpeed",
		Description: "Runs the conveyor belt continuously at the given velocity and direction.",
		Parameters: map[string]any{
			"direction": enum("Belt direction", robot.Forward, robot.Backwards),
			"velocity":  num("Belt velocity 1-50"),
		},
		Required:        []string{"direction", "velocity"},
		RequiresBackend: true,
	}, func(ctx context.Context, args Args) string {
		for _, p := range []string{"direction", "velocity"} {
			if !args.Has(p) {
				return missing(p)
			}
		}
		var in beltArgs
		if err := Decode(args, &in); err != nil {
			return fmt.Sprintf("Invalid parameters: %v", err)
		}
		direction, err := robot.ParseDirection(in.Direction)
		if err != nil {
			return invalidDirection
		}
		return robotResult(c.BeltSpeed(ctx, direction, in.Velocity))
	})
	if err != nil {
		return err
	}

	return r.Register(models.ToolSpec{
		Name:        "beltDistance",
		Description: "Moves the conveyor belt by a distance in meters at the given velocity and direction.",
		Parameters: map[string]any{
			"direction": enum("Belt direction", robot.Forward, robot.Backwards),
			"velocity":  num("Belt velocity 1-50"),
			"distance":  num("Distance in meters"),
		},
		Required:        []string{"direction", "velocity", "distance"},
		RequiresBackend: true,
	}, func(ctx context.Context, args Args) string {
		for _, p := range []string{"direction", "velocity", "distance"} {
			if !args.Has(p) {
				return missing(p)
			}
		}
		var in beltArgs
		if err := Decode(args, &in); err != nil {
			return fmt.Sprintf("Invalid parameters: %v", err)
		}
		direction, err := robot.ParseDirection(in.Direction)
		if err != nil {
			return invalidDirection
		}
		return robotResult(c.BeltDistance(ctx, direction, in.Velocity, in.Distance))
	})
}
