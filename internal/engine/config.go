package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/stream"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/config"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// Strategy selects which tracked shards are polled each invocation.
type Strategy string

const (
	StrategyAllShards     Strategy = "ALL_SHARDS"
	StrategyRoundRobin    Strategy = "ROUND_ROBIN"
	StrategySpecificShard Strategy = "SPECIFIC_SHARD"
)

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(s)) {
	case StrategyAllShards, "":
		return StrategyAllShards, nil
	case StrategyRoundRobin:
		return StrategyRoundRobin, nil
	case StrategySpecificShard:
		return StrategySpecificShard, nil
	default:
		return "", fmt.Errorf("unknown shard strategy %q", s)
	}
}

// topologyRefreshInterval is how long a shard listing stays fresh. Shards
// appearing mid-interval are picked up on the next refresh.
const topologyRefreshInterval = 5 * time.Minute

// Config is the immutable per-consumer configuration for the engine. It is
// validated once at the start of every invocation.
type Config struct {
	Stream             string
	Strategy           Strategy
	ShardID            string
	StartPolicy        stream.StartPolicy
	StartTimestamp     time.Time
	MaxRecordsPerShard int
	ParseJSON          bool
	IncludeMetadata    bool
	FetchConcurrency   int
}

// FromConsumerConfig builds an engine Config from the application config,
// parsing the strategy and start-policy enums.
func FromConsumerConfig(cc config.ConsumerConfig) (Config, error) {
	strategy, err := ParseStrategy(cc.Strategy)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", perrors.ErrInvalidInput, err)
	}
	policy := stream.StartLatest
	if cc.StartPolicy != "" {
		policy, err = stream.ParseStartPolicy(cc.StartPolicy)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", perrors.ErrInvalidInput, err)
		}
	}
	maxRecords := cc.MaxRecordsPerShard
	if maxRecords <= 0 {
		maxRecords = 100
	}
	concurrency := cc.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return Config{
		Stream:             cc.Stream,
		Strategy:           strategy,
		ShardID:            cc.ShardID,
		StartPolicy:        policy,
		StartTimestamp:     cc.StartTimestamp,
		MaxRecordsPerShard: maxRecords,
		ParseJSON:          cc.ParseJSONEnabled(),
		IncludeMetadata:    cc.IncludeMetadata,
		FetchConcurrency:   concurrency,
	}, nil
}

// Validate checks the fields that make a poll invocation impossible. These
// failures are fatal and never retried.
func (c Config) Validate() error {
	if c.Stream == "" {
		return perrors.ErrMissingStream
	}
	if c.Strategy == StrategySpecificShard && c.ShardID == "" {
		return perrors.ErrMissingShardID
	}
	if c.StartPolicy == stream.StartAtTimestamp && c.StartTimestamp.IsZero() {
		return fmt.Errorf("%w: AT_TIMESTAMP start policy requires a timestamp", perrors.ErrInvalidInput)
	}
	return nil
}
