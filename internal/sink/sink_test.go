package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/kafka"
	"github.com/priyadesai-k/sharded-stream-poller/pkg/resilience"
)

type fakePublisher struct {
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.batches = append(f.batches, events)
	return f.err
}

func sampleBatch() *engine.Batch {
	return &engine.Batch{
		Records: []engine.OutputRecord{
			{Payload: "one", Metadata: &engine.Metadata{PartitionKey: "pk-1", ShardID: "shard-1"}},
			{Payload: "two"},
		},
	}
}

func TestKafkaSinkPublishesOneMessagePerRecord(t *testing.T) {
	pub := &fakePublisher{}
	s := NewKafkaSink(pub, nil)

	if err := s.Deliver(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("expected one publish call, got %d", len(pub.batches))
	}
	events := pub.batches[0]
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Key != "pk-1" {
		t.Errorf("keyed record key = %q, want partition key", events[0].Key)
	}
	if events[1].Key != "" {
		t.Errorf("metadata-less record key = %q, want empty", events[1].Key)
	}
}

func TestKafkaSinkSurfacesDeliveryFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	s := NewKafkaSink(pub, nil)

	if err := s.Deliver(context.Background(), sampleBatch()); err == nil {
		t.Fatal("expected delivery error")
	}
	// The retry layer should have attempted more than once.
	if len(pub.batches) < 2 {
		t.Fatalf("expected retried publish, got %d attempts", len(pub.batches))
	}
}

func TestKafkaSinkBreakerOpensAfterRepeatedFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	s := NewKafkaSink(pub, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Deliver(ctx, sampleBatch()); err == nil {
			t.Fatalf("delivery %d unexpectedly succeeded", i)
		}
	}

	attemptsBefore := len(pub.batches)
	err := s.Deliver(ctx, sampleBatch())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if len(pub.batches) != attemptsBefore {
		t.Fatal("open circuit still reached the producer")
	}
}

func TestLogSinkAcceptsBatches(t *testing.T) {
	s := NewLogSink()
	if err := s.Deliver(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}
