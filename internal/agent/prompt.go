package agent

import (
	"fmt"
	"strings"

	"robopilot/internal/models"
)

const systemPrompt = `You are Robopilot, an assistant that controls a robotic arm with a vacuum gripper and a conveyor belt.

Rules:
- Use the provided functions to act on the robot. Never invent results; call a function and report what it returned.
- Positions are in meters, orientations are quaternions {w, x, y, z}.
- Before moving, read the default values with getDefValues when you need a saved pose (platform_A, platform_B, beltPosition) or the default orientation.
- A pick is: move above the object, move down, suck, move up. A place is the reverse with release.
- When asked to write a program, save it with saveTXT as Python that imports modules.robot, and run it only when asked.
- Answer briefly and say clearly when a function reported an error.`

const offlineNote = `

The robot is not reachable right now. Only the default-value and program functions are available; tell the user when a request needs the robot.`

// SystemPrompt is the first message of every new transcript.
func SystemPrompt(backendUp bool) string {
	if backendUp {
		return systemPrompt
	}
	return systemPrompt + offlineNote
}

// WelcomeMessage is shown at start and on "help". It lists what the
// published tools let the user ask for.
func WelcomeMessage(specs []models.ToolSpec) string {
	var sb strings.Builder
	sb.WriteString("Hi, I am Robopilot. Tell me what the robot should do, for example:\n")
	sb.WriteString("  - \"Start the robot and move it home.\"\n")
	sb.WriteString("  - \"Pick the cube on platform A and put it on the belt.\"\n")
	sb.WriteString("  - \"Write a program that moves the belt 20 cm forward.\"\n\n")
	sb.WriteString("Available actions:\n")
	for _, s := range specs {
		fmt.Fprintf(&sb, "  %-18s %s\n", s.Name, firstSentence(s.Description))
	}
	sb.WriteString("\nType \"help\" to see this again or \"exit\" to quit.")
	return sb.String()
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
