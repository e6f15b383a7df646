package state

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/pkg/config"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/postgres"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/redis"
)

func sampleState() *PollState {
	st := New()
	st.Cursors["shardId-000"] = "AAAAAAAAAAHSywl..."
	st.Cursors["shardId-001"] = "AAAAAAAAAAE9sw2..."
	st.LastTopologyRefresh = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.RoundRobinIndex = 1
	return st
}

func TestShardIDsSorted(t *testing.T) {
	st := New()
	st.Cursors["b"] = "2"
	st.Cursors["a"] = "1"
	st.Cursors["c"] = "3"

	want := []string{"a", "b", "c"}
	if got := st.ShardIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ShardIDs() = %v, want %v", got, want)
	}
}

func TestMemoryStoreReturnsFreshStateForUnknownKey(t *testing.T) {
	store := NewMemoryStore()
	st, err := store.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(st.Cursors) != 0 || st.RoundRobinIndex != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := sampleState()
	if err := store.Save(ctx, "consumer-1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx, "consumer-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\nin:  %+v\nout: %+v", in, out)
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := sampleState()
	if err := store.Save(ctx, "consumer-1", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Mutating the caller's copy must not leak into the store.
	in.Cursors["shardId-000"] = "mutated"

	out, _ := store.Load(ctx, "consumer-1")
	if out.Cursors["shardId-000"] == "mutated" {
		t.Fatal("store shares memory with the caller")
	}
}

// ---------------------------------------------------------------------------
// Durable backends (skipped when the service is unavailable)
// ---------------------------------------------------------------------------

func skipIfNoRedis(t *testing.T) *redis.Client {
	t.Helper()
	client, err := redis.NewClient(config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		PoolSize: 2,
	})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	client, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOrDefault("TEST_POSTGRES_DB", "streampoller_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "streampoller"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := skipIfNoRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000000")

	fresh, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load unknown key: %v", err)
	}
	if len(fresh.Cursors) != 0 {
		t.Fatalf("expected empty state for unknown key, got %+v", fresh)
	}

	in := sampleState()
	if err := store.Save(ctx, key, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Cleanup(func() { client.Del(ctx, "streampoller:state:"+key) })

	out, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(in.Cursors, out.Cursors) || out.RoundRobinIndex != in.RoundRobinIndex {
		t.Fatalf("round trip mismatch:\nin:  %+v\nout: %+v", in, out)
	}
	if !out.LastTopologyRefresh.Equal(in.LastTopologyRefresh) {
		t.Fatalf("timestamp mismatch: %v vs %v", out.LastTopologyRefresh, in.LastTopologyRefresh)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	client := skipIfNoPostgres(t)
	store := NewPostgresStore(client)
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	key := "test-" + time.Now().Format("150405.000000000")

	in := sampleState()
	if err := store.Save(ctx, key, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Cleanup(func() {
		client.DB.ExecContext(ctx, `DELETE FROM poll_state WHERE consumer_key = $1`, key)
	})

	// Saving twice exercises the upsert path.
	in.RoundRobinIndex = 2
	if err := store.Save(ctx, key, in); err != nil {
		t.Fatalf("second save: %v", err)
	}

	out, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.RoundRobinIndex != 2 {
		t.Fatalf("upsert did not replace state: %+v", out)
	}
	if !reflect.DeepEqual(in.Cursors, out.Cursors) {
		t.Fatalf("cursor mismatch:\nin:  %+v\nout: %+v", in.Cursors, out.Cursors)
	}
}
