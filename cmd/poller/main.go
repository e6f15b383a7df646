// Command poller starts the sharded-stream polling service.
//
// It periodically polls a Kinesis stream for new records, tracking one
// cursor per shard in a persisted state store (Redis, PostgreSQL, or
// memory), and delivers decoded batches to a Kafka topic or the log. An
// admin HTTP API exposes the poll state, a manual trigger, and health
// probes.
//
// Usage:
//
//	go run ./cmd/poller [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/admin"
	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/internal/runner"
	"github.com/priyadesai-k/sharded-stream-poller/internal/sink"
	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	"github.com/priyadesai-k/sharded-stream-poller/internal/stream"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/config"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/health"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/kafka"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/logger"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/metrics"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/middleware"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/postgres"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/redis"
)

// main boots the poller service: state store, Kinesis client, sink, engine,
// runner loop, health checker, metrics server, and the admin HTTP API.
// Graceful shutdown is triggered by SIGINT/SIGTERM or a fatal poll error.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stream poller",
		"stream", cfg.Consumer.Stream,
		"strategy", cfg.Consumer.Strategy,
		"state_backend", cfg.State.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	store, closeStore, err := buildStateStore(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to initialise state store", "backend", cfg.State.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	streamClient, err := stream.NewKinesisClient(ctx, cfg.Kinesis)
	if err != nil {
		slog.Error("failed to create kinesis client", "error", err)
		os.Exit(1)
	}
	checker.Register("kinesis", func(ctx context.Context) health.ComponentHealth {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := streamClient.ListShards(probeCtx, cfg.Consumer.Stream); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	engineCfg, err := engine.FromConsumerConfig(cfg.Consumer)
	if err != nil {
		slog.Error("invalid consumer configuration", "error", err)
		os.Exit(1)
	}
	poller := engine.New(engineCfg, streamClient, store, cfg.State.ConsumerKey, m)

	batchSink, closeSink := buildSink(cfg, m)
	defer closeSink()

	run := runner.New(poller, batchSink, cfg.Consumer.PollInterval, cfg.Consumer.PollTimeout)
	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- run.Run(ctx)
	}()

	mux := http.NewServeMux()
	adminHandler := admin.NewHandler(poller, store, cfg.State.ConsumerKey)
	mux.HandleFunc("GET /api/v1/state", adminHandler.State)
	mux.HandleFunc("POST /api/v1/poll", adminHandler.TriggerPoll)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		case err := <-runnerDone:
			if err != nil {
				slog.Error("runner stopped with fatal error", "error", err)
			}
			stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("admin server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("stream poller stopped")
}

// buildStateStore constructs the configured poll-state backend and registers
// its health check.
func buildStateStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := client.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
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
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := client.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		return store, func() { client.Close() }, nil

	case "memory", "":
		slog.Warn("using in-memory state store; poll state will not survive a restart")
		checker.Register("state", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: "in-memory"}
		})
		return state.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// buildSink constructs the Kafka sink when brokers are configured, falling
// back to the log sink.
func buildSink(cfg *config.Config, m *metrics.Metrics) (sink.Sink, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("no kafka brokers configured, batches will be logged")
		return sink.NewLogSink(), func() {}
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topic)
	slog.Info("kafka sink enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return sink.NewKafkaSink(producer, m), func() { producer.Close() }
}
