// Package main is the entry point for the snowops CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"snowops/cmd/cli/cmd"
	"snowops/internal/errors"
	"snowops/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	logging.Sync()

	if err != nil {
		if errors.IsType(err, errors.TypeDataUnavailable) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(errors.ExitCode(err))
}
