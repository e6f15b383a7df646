package engine

import (
	"encoding/json"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/stream"
)

// Metadata describes where an output record came from.
type Metadata struct {
	SequenceNumber   string    `json:"sequenceNumber"`
	ArrivalTimestamp time.Time `json:"arrivalTimestamp"`
	PartitionKey     string    `json:"partitionKey"`
	ShardID          string    `json:"shardId"`
}

// OutputRecord is one decoded item handed to the sink. When metadata is
// disabled the record serialises as the bare payload; when enabled it
// serialises as {"data": payload, "metadata": {...}}.
type OutputRecord struct {
	Payload  any
	Metadata *Metadata
}

// MarshalJSON implements the two output shapes. Metadata is omitted from
// the wire entirely, not serialised as null.
func (r OutputRecord) MarshalJSON() ([]byte, error) {
	if r.Metadata == nil {
		return json.Marshal(r.Payload)
	}
	return json.Marshal(struct {
		Data     any       `json:"data"`
		Metadata *Metadata `json:"metadata"`
	}{Data: r.Payload, Metadata: r.Metadata})
}

// Batch is the ordered set of records produced by one poll invocation.
type Batch struct {
	Records []OutputRecord `json:"records"`
}

// transformRecord decodes one raw record into an OutputRecord. The payload
// is the record bytes as text; when JSON parsing is enabled a successful
// parse replaces the text with the structured value, and a parse failure
// silently falls back to the text — decode problems are never surfaced to
// the caller.
func transformRecord(raw stream.Record, shardID string, cfg Config) OutputRecord {
	var payload any = string(raw.Data)
	if cfg.ParseJSON {
		var parsed any
		if err := json.Unmarshal(raw.Data, &parsed); err == nil {
			payload = parsed
		}
	}

	out := OutputRecord{Payload: payload}
	if cfg.IncludeMetadata {
		out.Metadata = &Metadata{
			SequenceNumber:   raw.SequenceNumber,
			ArrivalTimestamp: raw.ArrivalTimestamp,
			PartitionKey:     raw.PartitionKey,
			ShardID:          shardID,
		}
	}
	return out
}
