// File: cmd/plusdesk/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/plusdesk/cmd"
	"github.com/xkilldash9x/plusdesk/internal/observability"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx, cmd.Execute))
}

// run maps the command outcome to an exit code. An interrupt is a clean exit.
func run(ctx context.Context, execute func(context.Context) error) int {
	defer observability.Sync()

	err := execute(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}
