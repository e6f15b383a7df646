package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

func seededState(shardIDs ...string) *state.PollState {
	st := state.New()
	for _, id := range shardIDs {
		st.Cursors[id] = "cur-" + id
	}
	return st
}

func TestSelectAllShards(t *testing.T) {
	st := seededState("shard-c", "shard-a", "shard-b")
	cfg := Config{Strategy: StrategyAllShards}

	got, err := selectShards(st, cfg)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"shard-a", "shard-b", "shard-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want sorted %v", got, want)
	}
}

func TestSelectAllShardsEmpty(t *testing.T) {
	got, err := selectShards(state.New(), Config{Strategy: StrategyAllShards})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no shards, got %v", got)
	}
}

func TestSelectRoundRobinWraps(t *testing.T) {
	st := seededState("shard-a", "shard-b", "shard-c")
	cfg := Config{Strategy: StrategyRoundRobin}

	want := []string{"shard-a", "shard-b", "shard-c", "shard-a", "shard-b"}
	for i, expected := range want {
		got, err := selectShards(st, cfg)
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if len(got) != 1 || got[0] != expected {
			t.Fatalf("select %d: got %v, want [%s]", i, got, expected)
		}
	}
	if st.RoundRobinIndex != 2 {
		t.Fatalf("index after 5 selections over 3 shards = %d, want 2", st.RoundRobinIndex)
	}
}

func TestSelectRoundRobinEmpty(t *testing.T) {
	got, err := selectShards(state.New(), Config{Strategy: StrategyRoundRobin})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no shards, got %v", got)
	}
}

func TestSelectRoundRobinIndexBeyondShrunkSet(t *testing.T) {
	// Evictions can leave the persisted index past the end of the key list;
	// the modulo keeps the selection valid.
	st := seededState("shard-a", "shard-b")
	st.RoundRobinIndex = 7

	got, err := selectShards(st, Config{Strategy: StrategyRoundRobin})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0] != "shard-b" {
		t.Fatalf("got %v, want [shard-b]", got)
	}
	if st.RoundRobinIndex != 0 {
		t.Fatalf("index = %d, want 0", st.RoundRobinIndex)
	}
}

func TestSelectSpecificShard(t *testing.T) {
	st := seededState("shard-a", "shard-b")
	cfg := Config{Strategy: StrategySpecificShard, ShardID: "shard-b"}

	got, err := selectShards(st, cfg)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0] != "shard-b" {
		t.Fatalf("got %v, want [shard-b]", got)
	}
}

func TestSelectSpecificShardMissingID(t *testing.T) {
	_, err := selectShards(seededState("shard-a"), Config{Strategy: StrategySpecificShard})
	if !errors.Is(err, perrors.ErrMissingShardID) {
		t.Fatalf("expected ErrMissingShardID, got %v", err)
	}
}

func TestSelectSpecificShardUnknown(t *testing.T) {
	cfg := Config{Strategy: StrategySpecificShard, ShardID: "shard-z"}
	_, err := selectShards(seededState("shard-a"), cfg)
	if !errors.Is(err, perrors.ErrShardNotFound) {
		t.Fatalf("expected ErrShardNotFound, got %v", err)
	}
}
