package main

import (
	"os"

	"github.com/rustyeddy/equitytrack/cmd/equitytrack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
