package main

import "github.com/agentic-research/atlas/cmd"

func main() {
	cmd.Execute()
}
