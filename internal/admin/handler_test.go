package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/priyadesai-k/sharded-stream-poller/internal/engine"
	"github.com/priyadesai-k/sharded-stream-poller/internal/state"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

type fakePoller struct {
	batch *engine.Batch
	err   error
}

func (f *fakePoller) Poll(ctx context.Context) (*engine.Batch, error) {
	return f.batch, f.err
}

type failingStore struct {
	err error
}

func (s *failingStore) Load(ctx context.Context, key string) (*state.PollState, error) {
	return nil, s.err
}

func (s *failingStore) Save(ctx context.Context, key string, st *state.PollState) error {
	return s.err
}

func TestStateReturnsPersistedCursors(t *testing.T) {
	store := state.NewMemoryStore()
	st := state.New()
	st.Cursors["shardId-000"] = "cursor-a"
	st.Cursors["shardId-001"] = "cursor-b"
	st.LastTopologyRefresh = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Save(context.Background(), "orders-poller", st); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	h := NewHandler(&fakePoller{}, store, "orders-poller")
	rec := httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConsumerKey != "orders-poller" {
		t.Errorf("consumer key = %q", resp.ConsumerKey)
	}
	if resp.ShardCount != 2 || resp.Cursors["shardId-000"] != "cursor-a" {
		t.Errorf("cursors = %+v", resp.Cursors)
	}
}

func TestStateMapsStoreFailure(t *testing.T) {
	store := &failingStore{err: perrors.ErrStateUnavailable}
	h := NewHandler(&fakePoller{}, store, "orders-poller")

	rec := httptest.NewRecorder()
	h.State(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTriggerPollReportsRecordCount(t *testing.T) {
	batch := &engine.Batch{Records: []engine.OutputRecord{{Payload: "a"}, {Payload: "b"}}}
	h := NewHandler(&fakePoller{batch: batch}, state.NewMemoryStore(), "k")

	rec := httptest.NewRecorder()
	h.TriggerPoll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/poll", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp pollResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Records != 2 || resp.NoData {
		t.Fatalf("response = %+v", resp)
	}
}

func TestTriggerPollSignalsNoData(t *testing.T) {
	h := NewHandler(&fakePoller{batch: nil}, state.NewMemoryStore(), "k")

	rec := httptest.NewRecorder()
	h.TriggerPoll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/poll", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp pollResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.NoData || resp.Records != 0 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestTriggerPollMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{perrors.ErrMissingStream, http.StatusBadRequest},
		{perrors.ErrShardNotFound, http.StatusNotFound},
		{errors.New("kinesis unreachable"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewHandler(&fakePoller{err: tc.err}, state.NewMemoryStore(), "k")
		rec := httptest.NewRecorder()
		h.TriggerPoll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/poll", nil))
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}
