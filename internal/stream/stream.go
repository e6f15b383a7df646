// Package stream abstracts the sharded append-only log service the poller
// reads from. A stream is split into shards; each shard is read through an
// opaque, service-issued cursor. Cursor values are never constructed
// locally — they come from CreateCursor or from the next-cursor returned
// alongside a record page.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StartPolicy determines where a newly created cursor begins reading.
type StartPolicy string

const (
	StartLatest      StartPolicy = "LATEST"
	StartTrimHorizon StartPolicy = "TRIM_HORIZON"
	StartAtTimestamp StartPolicy = "AT_TIMESTAMP"
)

// ParseStartPolicy converts a config string into a StartPolicy.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch StartPolicy(strings.ToUpper(s)) {
	case StartLatest:
		return StartLatest, nil
	case StartTrimHorizon:
		return StartTrimHorizon, nil
	case StartAtTimestamp:
		return StartAtTimestamp, nil
	default:
		return "", fmt.Errorf("unknown start policy %q", s)
	}
}

// Shard is one partition of a stream as reported by a topology listing.
// Parent ids record lineage after a split or merge and are informational.
type Shard struct {
	ID                    string
	ParentShardID         string
	AdjacentParentShardID string
	HashKeyRange          KeyRange
	SequenceNumberRange   KeyRange
}

// KeyRange is an inclusive [Start, End] range. End may be empty for an open
// sequence-number range on a shard that is still accepting writes.
type KeyRange struct {
	Start string
	End   string
}

// Record is one raw record fetched from a shard.
type Record struct {
	Data             []byte
	SequenceNumber   string
	ArrivalTimestamp time.Time
	PartitionKey     string
}

// RecordPage is the result of one FetchRecords call. An empty NextCursor
// means the shard is closed and fully consumed.
type RecordPage struct {
	Records    []Record
	NextCursor string
}

// Client is the stream service the poller consumes from. Errors returned by
// FetchRecords must wrap errors.ErrCursorExpired when the service rejects
// the cursor as expired or invalid, so callers can attempt recovery.
type Client interface {
	ListShards(ctx context.Context, streamName string) ([]Shard, error)
	CreateCursor(ctx context.Context, streamName, shardID string, policy StartPolicy, ts time.Time) (string, error)
	FetchRecords(ctx context.Context, cursor string, maxRecords int) (*RecordPage, error)
}
