package engine

import (
	"context"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	"github.com/priyadesai-k/sharded-stream-poller/internal/stream"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// Cursor eviction and skip reasons, used in metrics labels and logs.
const (
	evictShardClosed    = "shard_closed"
	evictRecoveryFailed = "recovery_failed"

	skipExpiredRecovered = "cursor_expired_recovered"
	skipTransient        = "transient_error"
)

// fetchOutcome is the explicit per-shard result of one fetch attempt. The
// cursor disposition is carried as data and applied to the state afterwards,
// which keeps per-shard failure handling a visible transformation instead of
// implicit control flow, and lets parallel fetches merge without racing on
// the state.
type fetchOutcome struct {
	shardID     string
	records     []stream.Record
	newCursor   string // non-empty: replace the stored cursor
	evict       bool   // remove the stored cursor
	evictReason string
	skipReason  string // non-empty: no records this cycle, reason why
}

// fetchShard retrieves one page of records for a shard using its stored
// cursor. It never fails the invocation: every error is folded into the
// outcome.
//
//   - success with a next cursor: records emitted, cursor replaced.
//   - success without a next cursor: records emitted, shard is closed and
//     its cursor is evicted.
//   - cursor expired: exactly one recovery attempt creates a LATEST cursor
//     (resuming from "now" and accepting the gap). Recovery success stores
//     the new cursor and emits nothing this cycle; recovery failure evicts
//     the cursor so the shard is rediscovered on a later topology refresh.
//   - anything else (including a deadline): cursor untouched, nothing
//     emitted, the shard retries with the same cursor next cycle.
func (p *Poller) fetchShard(ctx context.Context, shardID, cursor string) fetchOutcome {
	outcome := fetchOutcome{shardID: shardID}

	page, err := p.stream.FetchRecords(ctx, cursor, p.cfg.MaxRecordsPerShard)
	if err == nil {
		outcome.records = page.Records
		if page.NextCursor == "" {
			outcome.evict = true
			outcome.evictReason = evictShardClosed
			p.logger.Info("shard closed, cursor evicted", "shard_id", shardID)
		} else {
			outcome.newCursor = page.NextCursor
		}
		return outcome
	}

	if perrors.IsCursorExpired(err) {
		if p.metrics != nil {
			p.metrics.FetchErrorsTotal.WithLabelValues("expired").Inc()
		}
		recovered, rerr := p.stream.CreateCursor(ctx, p.cfg.Stream, shardID, stream.StartLatest, time.Time{})
		if rerr != nil {
			outcome.evict = true
			outcome.evictReason = evictRecoveryFailed
			p.logger.Warn("cursor recovery failed, evicting shard",
				"shard_id", shardID,
				"error", rerr,
			)
			return outcome
		}
		outcome.newCursor = recovered
		outcome.skipReason = skipExpiredRecovered
		p.logger.Info("expired cursor recovered at LATEST", "shard_id", shardID)
		if p.metrics != nil {
			p.metrics.CursorsCreatedTotal.WithLabelValues("expiry_recovery").Inc()
		}
		return outcome
	}

	outcome.skipReason = skipTransient
	p.logger.Warn("shard fetch failed, will retry next cycle",
		"shard_id", shardID,
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.FetchErrorsTotal.WithLabelValues("transient").Inc()
	}
	return outcome
}

// applyOutcome folds one shard's outcome into the poll state.
func (p *Poller) applyOutcome(st *state.PollState, outcome fetchOutcome) {
	switch {
	case outcome.evict:
		delete(st.Cursors, outcome.shardID)
		if p.metrics != nil {
			p.metrics.CursorEvictionsTotal.WithLabelValues(outcome.evictReason).Inc()
		}
	case outcome.newCursor != "":
		st.Cursors[outcome.shardID] = outcome.newCursor
	}
}
