// Command storyctl is the operator CLI: it applies migrations, inspects
// stories and jobs, and runs a generation in the foreground.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/storyforge/internal/app"
)

func main() {
	// Logs go to stderr so command output on stdout stays parseable.
	app.InitLogging(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
