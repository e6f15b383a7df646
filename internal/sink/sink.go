// Package sink delivers poll batches downstream. The Kafka sink publishes
// each output record as one JSON message; the log sink writes batches to the
// structured log and exists for local development.
package sink

import (
	"context"
	"log/slog"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
)

// Sink receives the batch produced by one poll invocation. Deliver is never
// called for a "no data" invocation.
type Sink interface {
	Deliver(ctx context.Context, batch *engine.Batch) error
}

// LogSink writes each batch to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{
		logger: slog.Default().With("component", "log-sink"),
	}
}

// Deliver logs the batch contents at info level.
func (s *LogSink) Deliver(ctx context.Context, batch *engine.Batch) error {
	for _, record := range batch.Records {
		s.logger.Info("record", "payload", record.Payload)
	}
	s.logger.Info("batch delivered", "records", len(batch.Records))
	return nil
}
