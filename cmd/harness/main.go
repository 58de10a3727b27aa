package main

import (
	"os"

	"github.com/scenariokit/harness/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
