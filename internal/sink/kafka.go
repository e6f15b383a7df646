package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/kafka"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/metrics"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/resilience"
)

// publisher is the slice of the Kafka producer the sink uses.
type publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink publishes each output record as one JSON-encoded Kafka message.
// Records that carry metadata use the source partition key as the Kafka
// message key, preserving per-key ordering through to the topic.
//
// Deliveries run behind a circuit breaker with a short retry; when the
// broker stays unreachable the breaker opens and delivery errors surface to
// the runner instead of hammering the broker every cycle.
type KafkaSink struct {
	producer publisher
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewKafkaSink creates a KafkaSink. The metrics argument may be nil.
func NewKafkaSink(producer publisher, m *metrics.Metrics) *KafkaSink {
	cbCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		cbCfg.OnStateChange = func(s resilience.State) {
			m.CircuitBreakerState.WithLabelValues("kafka-sink").Set(float64(s))
		}
	}
	return &KafkaSink{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("kafka-sink", cbCfg),
		metrics:  m,
		logger:   slog.Default().With("component", "kafka-sink"),
	}
}

// Deliver publishes the batch, one message per record.
func (s *KafkaSink) Deliver(ctx context.Context, batch *engine.Batch) error {
	events := make([]kafka.Event, 0, len(batch.Records))
	for _, record := range batch.Records {
		key := ""
		if record.Metadata != nil {
			key = record.Metadata.PartitionKey
		}
		events = append(events, kafka.Event{
			Key:   key,
			Value: record,
		})
	}

	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "kafka-sink-publish", resilience.RetryConfig{
			MaxAttempts: 2,
			RetryIf: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		}, func() error {
			return s.producer.PublishBatch(ctx, events)
		})
	})

	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.SinkDeliveriesTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		s.logger.Error("batch delivery failed", "records", len(events), "error", err)
		return err
	}
	s.logger.Debug("batch delivered", "records", len(events))
	return nil
}
