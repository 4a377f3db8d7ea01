package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Summarize renders a one-line description of a finished tool call for
// display.
func Summarize(name string, argsJSON string, result string) string {
	args, _ := ParseArguments(argsJSON)
	failed := strings.HasPrefix(result, "Robot is not running as expected") ||
		strings.HasPrefix(result, "Error occurred") ||
		strings.HasPrefix(result, "Missing required parameter") ||
		strings.HasPrefix(result, "Invalid value")

	var s string
	switch name {
	case "putPose":
		mt, _ := args["moveType"].(string)
		var in putPoseArgs
		_ = Decode(args, &in)
		p := in.Pose.Position
		s = fmt.Sprintf("MOVE %s to (%.3f, %.3f, %.3f)", strings.ToUpper(mt), p.X, p.Y, p.Z)
	case "beltSpeed", "beltDistance":
		var in beltArgs
		_ = Decode(args, &in)
		s = fmt.Sprintf("BELT %s at %g", in.Direction, in.Velocity)
		if name == "beltDistance" {
			s += fmt.Sprintf(" for %gm", in.Distance)
		}
	case "saveTXT":
		path, _ := args["file_path"].(string)
		text, _ := args["text"].(string)
		s = fmt.Sprintf("SAVE %s (%d lines)", filepath.Base(path), strings.Count(text, "\n")+1)
	case "getSavedProgram":
		path, _ := args["file_path"].(string)
		s = fmt.Sprintf("READ %s", filepath.Base(path))
	case "runSavedProgram":
		path, _ := args["file_path"].(string)
		s = fmt.Sprintf("RUN %s", filepath.Base(path))
		if strings.HasPrefix(result, "Program exited with errors") {
			failed = true
		}
	case "getSavedPrograms":
		n := strings.Count(result, "\n")
		if !strings.Contains(result, " - Last change: ") {
			n = 0
		}
		s = fmt.Sprintf("LIST programs (%d)", n)
	case "setDefValue":
		key, _ := args["key"].(string)
		s = fmt.Sprintf("SET default %s", key)
	default:
		s = strings.ToUpper(name)
	}
	if failed {
		s += " (failed)"
	}
	return s
}
