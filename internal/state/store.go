package state

import "context"

// Store persists PollState across invocations, keyed by consumer. Load must
// return a fresh empty state (not an error) when no state exists yet for the
// key.
type Store interface {
	Load(ctx context.Context, consumerKey string) (*PollState, error)
	Save(ctx context.Context, consumerKey string, st *PollState) error
}
