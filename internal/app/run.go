package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

const shutdownGrace = 15 * time.Second

// Run executes run until it returns or the process is signalled, then gives
// it shutdownGrace to finish. The result is the process exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, logger.With().Str("service", serviceName).Logger(), run, shutdownGrace)
}

func runUntilDone(ctx context.Context, log zerolog.Logger, run Runner, grace time.Duration) int {
	log.Info().Msg("starting")

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		select {
		case err := <-errCh:
			return exitCode(log, err)
		case <-time.After(grace):
			log.Warn().Dur("grace", grace).Msg("shutdown timed out")
			return 1
		}
	case err := <-errCh:
		return exitCode(log, err)
	}
}

// exitCode treats cancellation as a clean stop. Any other error, including
// one raised while shutting down, fails the process.
func exitCode(log zerolog.Logger, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("failed")
		return 1
	}
	log.Info().Msg("stopped")
	return 0
}
