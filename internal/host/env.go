package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"metastablePool/internal/model"
)

// EnvSource supplies the block height and time an operation executes at.
type EnvSource interface {
	Env(ctx context.Context) (model.Env, error)
}

// StaticEnv always returns the same env.
type StaticEnv model.Env

func (s StaticEnv) Env(context.Context) (model.Env, error) {
	return model.Env(s), nil
}

// ClockEnv derives a height from wall-clock time elapsed since Genesis, one
// block per Interval.
type ClockEnv struct {
	Genesis  time.Time
	Interval time.Duration
	Now      func() time.Time
}

func (c ClockEnv) Env(context.Context) (model.Env, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	if c.Interval <= 0 {
		return model.Env{}, fmt.Errorf("block interval must be positive")
	}
	var height uint64
	if elapsed := t.Sub(c.Genesis); elapsed > 0 {
		height = uint64(elapsed / c.Interval)
	}
	return model.Env{Height: height + 1, Time: uint64(t.Unix())}, nil
}

type headerSource interface {
	LatestEnv(ctx context.Context) (model.Env, error)
}

// ChainEnv reads the latest block of an RPC node. Failed lookups are retried
// with exponential backoff until maxRetries is spent or ctx ends.
type ChainEnv struct {
	source     headerSource
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewChainEnv(source headerSource, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *ChainEnv {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainEnv{source: source, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

func (c *ChainEnv) Env(ctx context.Context) (model.Env, error) {
	delay := c.baseDelay
	for attempt := 1; ; attempt++ {
		env, err := c.source.LatestEnv(ctx)
		if err == nil {
			return env, nil
		}
		if !retryable(err) || attempt > c.maxRetries {
			return model.Env{}, fmt.Errorf("latest block env after %d attempts: %w", attempt, err)
		}

		c.logger.Warn("latest block lookup failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.Env{}, fmt.Errorf("latest block env: %w", ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
}

// retryable reports whether a failed lookup may succeed on a later attempt.
// Cancellation and expired deadlines never do.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
