package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/priyadesai-k/sharded-stream-poller/pkg/postgres"
)

// PostgresStore persists poll state as one JSONB row per consumer key.
type PostgresStore struct {
	client *postgres.Client
}

// NewPostgresStore creates a PostgresStore on top of an existing client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

// Init creates the poll_state table when it does not exist yet.
func (p *PostgresStore) Init(ctx context.Context) error {
	_, err := p.client.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS poll_state (
			consumer_key TEXT PRIMARY KEY,
			state        JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating poll_state table: %w", err)
	}
	return nil
}

// Load fetches and decodes the state row, returning a fresh empty state when
// no row exists for the key.
func (p *PostgresStore) Load(ctx context.Context, consumerKey string) (*PollState, error) {
	var raw []byte
	err := p.client.DB.QueryRowContext(ctx,
		`SELECT state FROM poll_state WHERE consumer_key = $1`,
		consumerKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading poll state for %s: %w", consumerKey, err)
	}
	st := New()
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decoding poll state for %s: %w", consumerKey, err)
	}
	if st.Cursors == nil {
		st.Cursors = make(map[string]string)
	}
	return st, nil
}

// Save upserts the state row.
func (p *PostgresStore) Save(ctx context.Context, consumerKey string, st *PollState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding poll state for %s: %w", consumerKey, err)
	}
	_, err = p.client.DB.ExecContext(ctx, `
		INSERT INTO poll_state (consumer_key, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer_key)
		DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		consumerKey, raw,
	)
	if err != nil {
		return fmt.Errorf("saving poll state for %s: %w", consumerKey, err)
	}
	return nil
}
