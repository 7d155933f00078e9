package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"quoteline/internal/config"
	"quoteline/internal/domain"
)

type memorySource struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *memorySource) add(typ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, domain.Event{
		ID:         int64(len(m.events) + 1),
		Type:       typ,
		EntityKind: "quote",
		EntityID:   "q-1",
		ActorID:    "u-1",
		TS:         "2024-01-01T00:00:00Z",
		Payload:    `{"order_id":"o-1"}`,
	})
}

func (m *memorySource) EventsAfter(_ context.Context, limit int, cursor int64) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.ID > cursor && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memorySource) LatestEventID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

type delivery struct {
	header http.Header
	body   []byte
}

func receiver(t *testing.T, status *atomic.Int32) (*httptest.Server, func() []delivery) {
	var mu sync.Mutex
	var got []delivery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		got = append(got, delivery{header: r.Header.Clone(), body: body})
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []delivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]delivery(nil), got...)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookDeliversNewEventsOnly(t *testing.T) {
	src := &memorySource{}
	src.add("quote.submitted")
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv, deliveries := receiver(t, &status)

	d := NewWebhookDispatcher(src, []config.WebhookConfig{{URL: srv.URL, Secret: "s3cret"}}, quietLogger())
	ctx := context.Background()
	d.DispatchAll(ctx)
	require.Empty(t, deliveries())

	src.add("quote.approved")
	d.DispatchAll(ctx)
	got := deliveries()
	require.Len(t, got, 1)
	require.Equal(t, "quote.approved", got[0].header.Get("X-Quoteline-Event"))
	require.Equal(t, "2", got[0].header.Get("X-Quoteline-Delivery"))
	require.Equal(t, "sha256="+Sign("s3cret", got[0].body), got[0].header.Get("X-Quoteline-Signature"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(got[0].body, &body))
	require.Equal(t, "o-1", body["payload"].(map[string]any)["order_id"])

	d.DispatchAll(ctx)
	require.Len(t, deliveries(), 1)
}

func TestWebhookFiltersAndRetries(t *testing.T) {
	src := &memorySource{}
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv, deliveries := receiver(t, &status)

	d := NewWebhookDispatcher(src, []config.WebhookConfig{{URL: srv.URL, Events: []string{"quote.approved"}}}, quietLogger())
	ctx := context.Background()
	d.DispatchAll(ctx)

	src.add("order.created")
	src.add("quote.approved")
	d.DispatchAll(ctx)
	require.Len(t, deliveries(), 1)
	require.Empty(t, deliveries()[0].header.Get("X-Quoteline-Signature"))

	status.Store(http.StatusNoContent)
	d.DispatchAll(ctx)
	require.Len(t, deliveries(), 2)
	d.DispatchAll(ctx)
	require.Len(t, deliveries(), 2)
}

func TestDisabledWebhookIsSkipped(t *testing.T) {
	src := &memorySource{}
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv, deliveries := receiver(t, &status)
	off := false
	d := NewWebhookDispatcher(src, []config.WebhookConfig{{URL: srv.URL, Enabled: &off}}, quietLogger())
	d.DispatchAll(context.Background())
	src.add("quote.approved")
	d.DispatchAll(context.Background())
	require.Empty(t, deliveries())
}
