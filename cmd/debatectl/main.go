package main

import (
	"os"

	"debatecoach/agent/internal/ctl"
)

func main() {
	if err := ctl.Execute(); err != nil {
		os.Exit(1)
	}
}
