package engine

import (
	"fmt"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// selectShards computes the shards to poll this invocation from the tracked
// cursor set. It is a pure function of the state plus the strategy; no
// network calls happen here. ROUND_ROBIN advances the state's index.
func selectShards(st *state.PollState, cfg Config) ([]string, error) {
	ids := st.ShardIDs()

	switch cfg.Strategy {
	case StrategyAllShards:
		return ids, nil

	case StrategyRoundRobin:
		if len(ids) == 0 {
			return nil, nil
		}
		index := st.RoundRobinIndex % len(ids)
		st.RoundRobinIndex = (index + 1) % len(ids)
		return []string{ids[index]}, nil

	case StrategySpecificShard:
		if cfg.ShardID == "" {
			return nil, perrors.ErrMissingShardID
		}
		if _, ok := st.Cursors[cfg.ShardID]; !ok {
			return nil, fmt.Errorf("%w: %s", perrors.ErrShardNotFound, cfg.ShardID)
		}
		return []string{cfg.ShardID}, nil

	default:
		return nil, fmt.Errorf("%w: strategy %q", perrors.ErrInvalidInput, cfg.Strategy)
	}
}
