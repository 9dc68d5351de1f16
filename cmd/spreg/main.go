package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spregistry/spreg/internal/cli"
	"github.com/spregistry/spreg/pkg/spreg"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(spreg.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(spreg.ExitCodeForError(err))
	}
}
