package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/signet/internal/cmd"
	"github.com/felixgeelhaar/signet/internal/exitcode"
)

func main() {
	// Ctrl+C cancels a sign-in that is waiting for the browser.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			stop()
			exitcode.Exit(exitcode.Interrupted)
		}

		code := exitcode.Report(os.Stderr, err)
		stop()
		exitcode.Exit(code)
	}
}
