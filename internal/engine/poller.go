// Package engine implements the sharded-stream polling engine. Each Poll
// invocation loads the persisted poll state, refreshes the shard topology
// when it is stale, selects shards according to the configured strategy,
// fetches one page of records per selected shard, and saves the updated
// state. A single shard's failure never aborts the invocation.
//
// Precondition: Poll is never invoked concurrently for the same consumer
// key. The persisted state carries no lock, and a concurrent invocation
// would corrupt the round-robin index and lose cursor updates.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	"github.com/priyadesai-k/sharded-stream-poller/internal/stream"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/metrics"
)

// Poller orchestrates one poll invocation end to end.
type Poller struct {
	cfg         Config
	stream      stream.Client
	store       state.Store
	consumerKey string
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Poller. The metrics argument may be nil.
func New(cfg Config, streamClient stream.Client, store state.Store, consumerKey string, m *metrics.Metrics) *Poller {
	return &Poller{
		cfg:         cfg,
		stream:      streamClient,
		store:       store,
		consumerKey: consumerKey,
		metrics:     m,
		logger:      slog.Default().With("component", "poller", "stream", cfg.Stream),
		now:         time.Now,
	}
}

// Poll runs one invocation. It returns a nil Batch with a nil error when no
// selected shard produced any records — the "no data" signal, distinct from
// an empty batch — so the caller emits nothing downstream. Errors returned
// from Poll are fatal configuration problems; recoverable per-shard failures
// are absorbed and logged.
func (p *Poller) Poll(ctx context.Context) (*Batch, error) {
	start := p.now()
	batch, err := p.poll(ctx)
	if p.metrics != nil {
		p.metrics.PollDuration.Observe(p.now().Sub(start).Seconds())
		switch {
		case err != nil:
			p.metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		case batch == nil:
			p.metrics.PollCyclesTotal.WithLabelValues("no_data").Inc()
		default:
			p.metrics.PollCyclesTotal.WithLabelValues("batch").Inc()
			p.metrics.BatchSize.Observe(float64(len(batch.Records)))
		}
	}
	return batch, err
}

func (p *Poller) poll(ctx context.Context) (*Batch, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := p.store.Load(ctx, p.consumerKey)
	if err != nil {
		return nil, fmt.Errorf("loading poll state: %w", err)
	}

	if err := p.refreshIfNeeded(ctx, st); err != nil {
		return nil, err
	}

	shardIDs, err := selectShards(st, p.cfg)
	if err != nil {
		return nil, err
	}

	outcomes := p.fetchAll(ctx, st, shardIDs)

	var records []OutputRecord
	for _, outcome := range outcomes {
		p.applyOutcome(st, outcome)
		for _, raw := range outcome.records {
			records = append(records, transformRecord(raw, outcome.shardID, p.cfg))
		}
		if p.metrics != nil && len(outcome.records) > 0 {
			p.metrics.RecordsFetchedTotal.WithLabelValues(outcome.shardID).Add(float64(len(outcome.records)))
		}
	}

	if err := p.store.Save(ctx, p.consumerKey, st); err != nil {
		return nil, fmt.Errorf("saving poll state: %w", err)
	}
	if p.metrics != nil {
		p.metrics.CursorsTracked.Set(float64(len(st.Cursors)))
	}

	if len(records) == 0 {
		p.logger.Debug("poll produced no data", "shards_selected", len(shardIDs))
		return nil, nil
	}

	p.logger.Info("poll produced batch",
		"records", len(records),
		"shards_selected", len(shardIDs),
	)
	return &Batch{Records: records}, nil
}

// fetchAll fetches every selected shard and returns the outcomes in
// selection order. With FetchConcurrency > 1 the fetches run in a bounded
// errgroup; outcomes are still applied to the state serially by the caller,
// so no cursor update can be lost to a race. Each shard touches only its
// own cursor, which is read here before any mutation.
func (p *Poller) fetchAll(ctx context.Context, st *state.PollState, shardIDs []string) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(shardIDs))

	if p.cfg.FetchConcurrency <= 1 || len(shardIDs) <= 1 {
		for i, shardID := range shardIDs {
			outcomes[i] = p.fetchShard(ctx, shardID, st.Cursors[shardID])
		}
		return outcomes
	}

	g := &errgroup.Group{}
	g.SetLimit(p.cfg.FetchConcurrency)
	for i, shardID := range shardIDs {
		i, shardID := i, shardID
		cursor := st.Cursors[shardID]
		g.Go(func() error {
			outcomes[i] = p.fetchShard(ctx, shardID, cursor)
			return nil
		})
	}
	_ = g.Wait() // fetchShard never returns an error
	return outcomes
}
