package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

type fakeStore struct {
	webhooks []*db.Webhook
}

func (f *fakeStore) ListEnabledWebhooks(ctx context.Context) ([]*db.Webhook, error) {
	return f.webhooks, nil
}

func TestSendJobEventSignsAndFilters(t *testing.T) {
	type wirePayload struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	var mu sync.Mutex
	var received []wirePayload
	var signatures []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p wirePayload
		require.NoError(t, json.Unmarshal(body, &p))
		mu.Lock()
		received = append(received, p)
		signatures = append(signatures, r.Header.Get("X-Webhook-Signature"))
		mu.Unlock()
	}))
	defer srv.Close()

	store := &fakeStore{webhooks: []*db.Webhook{
		{ID: 1, URL: srv.URL, Secret: "topsecret", EventsJSON: `["job_completed"]`, Enabled: true},
		{ID: 2, URL: srv.URL, EventsJSON: `["printer_status_changed"]`, Enabled: true},
	}}
	s := NewSender(store, Config{WorkerCount: 1}, logger.NewNop())
	s.Start()

	s.SendJobEvent("job_completed", &db.LabelJob{ID: 42, SourceType: "product", Status: db.JobStatusCompleted})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Only the subscribed webhook fired.
	require.Len(t, received, 1)
	assert.Equal(t, "job_completed", received[0].Event)

	want := Sign(received[0].Data, "topsecret")
	assert.True(t, hmac.Equal([]byte(want), []byte(signatures[0])))
}

func TestClientErrorNotRetried(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSender(&fakeStore{}, Config{RetryDelay: time.Millisecond}, logger.NewNop())
	err := s.sendWithRetry(&task{
		webhook: &db.Webhook{ID: 1, URL: srv.URL},
		payload: &Payload{Event: "job_failed"},
	})
	require.Error(t, err)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestSubscribes(t *testing.T) {
	w := &db.Webhook{EventsJSON: `["job_completed","job_failed"]`}
	assert.True(t, w.Subscribes("job_failed"))
	assert.False(t, w.Subscribes("job_started"))

	bad := &db.Webhook{EventsJSON: `not json`}
	assert.False(t, bad.Subscribes("job_failed"))
}
