// mbctl sends a single command to a MagicBand broadcaster and exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runCLI(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// runCLI executes the command line and returns the process exit code.
// Cobra's own error printing is silenced, so failures are logged here.
func runCLI(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}
