package engine

import (
	"context"
	"fmt"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// refreshIfNeeded re-lists the stream's shards when the state holds no
// cursors yet or the last listing is older than topologyRefreshInterval.
//
// Existing cursors are never overwritten. Newly discovered shards get an
// initial cursor using the configured start policy. Shards that vanished
// from the listing keep their cursors; eviction happens only through
// fetch-time closure or expiry handling, so records still in flight during a
// split or merge are not dropped mid-cycle.
func (p *Poller) refreshIfNeeded(ctx context.Context, st *state.PollState) error {
	now := p.now()
	if len(st.Cursors) > 0 && now.Sub(st.LastTopologyRefresh) <= topologyRefreshInterval {
		return nil
	}

	shards, err := p.stream.ListShards(ctx, p.cfg.Stream)
	if err != nil {
		if len(st.Cursors) > 0 {
			// Stale topology is survivable while cursors exist; keep
			// polling the shards we know and retry the listing next cycle.
			p.logger.Warn("topology refresh failed, keeping known shards",
				"stream", p.cfg.Stream,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("listing shards of %s: %w", p.cfg.Stream, err)
	}
	if len(shards) == 0 {
		return fmt.Errorf("%w: stream %s", perrors.ErrNoShards, p.cfg.Stream)
	}

	discovered := 0
	for _, shard := range shards {
		if _, ok := st.Cursors[shard.ID]; ok {
			continue
		}
		cursor, err := p.stream.CreateCursor(ctx, p.cfg.Stream, shard.ID, p.cfg.StartPolicy, p.cfg.StartTimestamp)
		if err != nil {
			// The shard stays untracked and is retried on the next refresh.
			p.logger.Warn("failed to create initial cursor",
				"shard_id", shard.ID,
				"start_policy", p.cfg.StartPolicy,
				"error", err,
			)
			continue
		}
		st.Cursors[shard.ID] = cursor
		discovered++
		if p.metrics != nil {
			p.metrics.CursorsCreatedTotal.WithLabelValues("discovery").Inc()
		}
	}

	st.LastTopologyRefresh = now
	if p.metrics != nil {
		p.metrics.TopologyRefreshesTotal.Inc()
	}
	p.logger.Info("shard topology refreshed",
		"stream", p.cfg.Stream,
		"shards_listed", len(shards),
		"cursors_created", discovered,
		"cursors_tracked", len(st.Cursors),
	)
	return nil
}
