package main

import "github.com/agentic-research/riffle/cmd"

func main() {
	cmd.Execute()
}
