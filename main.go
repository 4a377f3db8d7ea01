package main

import "robopilot/internal/cli"

func main() {
	cli.Execute()
}
