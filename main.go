package main

import (
	"os"

	"github.com/poly-cli/poly/cmd"
)

func main() {
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" || term == "linux" || term == "vt100" {
		os.Setenv("TERM", "xterm-256color")
	}
	cmd.Execute()
}
