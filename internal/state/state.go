// Package state holds the poll state that survives across invocations and
// the stores that persist it. The state is owned by exactly one consumer
// key; a single poller loads it at the start of an invocation, mutates it in
// memory, and saves it at the end. There is no locking across pollers —
// running two pollers against one key is a configuration error.
package state

import (
	"sort"
	"time"
)

// PollState is everything the engine remembers between invocations: one
// cursor per tracked shard, when the shard topology was last listed, and the
// round-robin position.
type PollState struct {
	Cursors             map[string]string `json:"cursors"`
	LastTopologyRefresh time.Time         `json:"lastTopologyRefresh"`
	RoundRobinIndex     int               `json:"roundRobinIndex"`
}

// New returns an empty PollState ready for a first invocation.
func New() *PollState {
	return &PollState{
		Cursors: make(map[string]string),
	}
}

// ShardIDs returns the tracked shard ids in stable sorted order.
func (s *PollState) ShardIDs() []string {
	ids := make([]string, 0, len(s.Cursors))
	for id := range s.Cursors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the state.
func (s *PollState) Clone() *PollState {
	c := &PollState{
		Cursors:             make(map[string]string, len(s.Cursors)),
		LastTopologyRefresh: s.LastTopologyRefresh,
		RoundRobinIndex:     s.RoundRobinIndex,
	}
	for k, v := range s.Cursors {
		c.Cursors[k] = v
	}
	return c
}
