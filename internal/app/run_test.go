package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, Run("ok", zerolog.Nop(), func(context.Context) error { return nil }))
	assert.Equal(t, 1, Run("bad", zerolog.Nop(), func(context.Context) error { return errors.New("boom") }))
}

func TestRunUntilDone_Shutdown(t *testing.T) {
	tests := []struct {
		name     string
		onCancel error
		want     int
	}{
		{name: "clean stop", onCancel: nil, want: 0},
		{name: "cancellation is not a failure", onCancel: fmt.Errorf("serve: %w", context.Canceled), want: 0},
		{name: "shutdown error fails the process", onCancel: fmt.Errorf("shutdown: %w", context.DeadlineExceeded), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			started := make(chan struct{})
			go func() {
				<-started
				cancel()
			}()

			code := runUntilDone(ctx, zerolog.Nop(), func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return tt.onCancel
			}, time.Second)

			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRunUntilDone_GraceExceeded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	code := runUntilDone(ctx, zerolog.Nop(), func(context.Context) error {
		<-block
		return nil
	}, 20*time.Millisecond)

	assert.Equal(t, 1, code)
}

func TestNewLogger_Level(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, NewLogger("debug", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("nonsense", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("", true).GetLevel())
}
