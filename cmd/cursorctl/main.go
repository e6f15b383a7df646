// Command cursorctl inspects and repairs the persisted poll state of a
// stream consumer.
//
// Actions:
//
//	state  print the consumer's poll state as JSON (default)
//	reset  replace the poll state with a fresh empty state; the next poll
//	       re-lists shards and creates new cursors from the start policy
//	evict  remove one shard's cursor (requires -shard)
//
// Usage:
//
//	go run ./cmd/cursorctl [-config configs/development.yaml] -action state
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/config"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/logger"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/postgres"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	action := flag.String("action", "state", "state | reset | evict")
	shardID := flag.String("shard", "", "shard id for the evict action")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("warn", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open state store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	key := cfg.State.ConsumerKey
	switch *action {
	case "state":
		st, err := store.Load(ctx, key)
		exitOn(err)
		printJSON(st)

	case "reset":
		exitOn(store.Save(ctx, key, state.New()))
		fmt.Printf("poll state for %q reset\n", key)

	case "evict":
		if *shardID == "" {
			fmt.Fprintln(os.Stderr, "evict requires -shard")
			os.Exit(2)
		}
		st, err := store.Load(ctx, key)
		exitOn(err)
		if _, ok := st.Cursors[*shardID]; !ok {
			fmt.Fprintf(os.Stderr, "shard %q not tracked\n", *shardID)
			os.Exit(1)
		}
		delete(st.Cursors, *shardID)
		exitOn(store.Save(ctx, key, st))
		fmt.Printf("cursor for shard %q evicted\n", *shardID)

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(2)
	}
}

// buildStore opens the configured durable backend. The memory backend is
// rejected: there is no cross-process state to inspect.
func buildStore(ctx context.Context, cfg *config.Config) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return state.NewRedisStore(client), func() { client.Close() }, nil
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := state.NewPostgresStore(client)
		if err := store.Init(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("state backend %q is not durable", cfg.State.Backend)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOn(err)
	fmt.Println(string(out))
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
