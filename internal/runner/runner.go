// Package runner is the scheduler around the engine: a fixed-interval loop
// that triggers one poll invocation per tick and routes any resulting batch
// to the sink. Exactly one runner may own a consumer key; invocations never
// overlap because the loop waits for each poll to finish before the next
// tick is honored.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/internal/sink"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/resilience"
)

// Poller is the engine surface the runner drives.
type Poller interface {
	Poll(ctx context.Context) (*engine.Batch, error)
}

// Runner drives the poll loop.
type Runner struct {
	poller   Poller
	sink     sink.Sink
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Runner polling at the given interval. Each invocation runs
// under the given timeout; zero disables the deadline.
func New(poller Poller, s sink.Sink, interval, timeout time.Duration) *Runner {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Runner{
		poller:   poller,
		sink:     s,
		interval: interval,
		timeout:  timeout,
		logger:   slog.Default().With("component", "runner"),
	}
}

// Run blocks until ctx is cancelled or a fatal configuration error occurs.
// A fatal error stops the loop — polling again with the same broken
// configuration cannot succeed. Everything else is logged and the loop
// keeps its cadence.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started", "interval", r.interval)

	// First invocation immediately, then on the ticker.
	if err := r.runOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// runOnce performs one poll invocation and delivers its batch, if any.
func (r *Runner) runOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	var batch *engine.Batch
	err := resilience.WithTimeout(ctx, r.timeout, "poll", func(ctx context.Context) error {
		var pollErr error
		batch, pollErr = r.poller.Poll(ctx)
		return pollErr
	})
	if err != nil {
		if perrors.IsFatal(err) || errors.Is(err, perrors.ErrInvalidInput) {
			r.logger.Error("fatal poll error, stopping runner", "error", err)
			return err
		}
		r.logger.Warn("poll failed, retrying next tick", "error", err)
		return nil
	}

	// nil batch is the no-data signal: nothing is handed downstream and no
	// trigger event is produced.
	if batch == nil {
		return nil
	}

	if err := r.sink.Deliver(ctx, batch); err != nil {
		r.logger.Error("batch delivery failed", "records", len(batch.Records), "error", err)
	}
	return nil
}
