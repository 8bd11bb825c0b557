package main

import (
	"context"
	"os"

	"github.com/romariotrain/lesson-media/internal/app"
	"github.com/romariotrain/lesson-media/internal/config"
)

func main() {
	cfg, err := config.Load()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	code := app.Run("media", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	})
	os.Exit(code)
}
