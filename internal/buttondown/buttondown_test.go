package buttondown

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justcancel/justcancel/internal/analytics"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", nil)
	c.BaseURL = srv.URL
	return c
}

func TestClientSubscribe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/subscribers", r.URL.Path)
			assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@b.c", body["email_address"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"s1"}`))
		})
		assert.NoError(t, c.Subscribe(t.Context(), "a@b.c", "just-cancel", "Just Cancel Updates"))
	})

	t.Run("already subscribed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"That email address is already subscribed"}`))
		})
		err := c.Subscribe(t.Context(), "a@b.c", "t", "T")
		assert.ErrorIs(t, err, ErrAlreadySubscribed)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusCreated)
		})
		assert.NoError(t, c.Subscribe(t.Context(), "a@b.c", "t", "T"))
		assert.Equal(t, 3, calls)
	})
}

func TestClientUpdateSubscriber(t *testing.T) {
	var patched map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			assert.Equal(t, "a@b.c", r.URL.Query().Get("email"))
			w.Write([]byte(`{"results":[{"id":"s1","tags":["old"],"metadata":{"k":"v"}}]}`))
		case r.Method == http.MethodPatch:
			assert.Equal(t, "/subscribers/s1", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.Write([]byte(`{"id":"s1"}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})
	require.NoError(t, c.UpdateSubscriber(t.Context(), "a@b.c", "topic-x", "Topic X"))

	tags, _ := patched["tags"].([]any)
	assert.ElementsMatch(t, []any{"old", "topic-x"}, tags)
	meta, _ := patched["metadata"].(map[string]any)
	assert.Contains(t, meta, "topic_topic-x")
	assert.Equal(t, "v", meta["k"])
}

// fakeAPI implements API for handler tests.
type fakeAPI struct {
	subscribeErr error
	updateErr    error
	subscribed   int
	updated      int
}

func (f *fakeAPI) Subscribe(context.Context, string, string, string) error {
	f.subscribed++
	return f.subscribeErr
}

func (f *fakeAPI) UpdateSubscriber(context.Context, string, string, string) error {
	f.updated++
	return f.updateErr
}

func newEvents(t *testing.T) *analytics.Logger {
	t.Helper()
	l, err := analytics.NewLogger(t.TempDir(), nil)
	require.NoError(t, err)
	return l
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body)))
	return rec
}

func TestSubscribeHandler(t *testing.T) {
	t.Run("success logs subscribe event", func(t *testing.T) {
		api := &fakeAPI{}
		events := newEvents(t)
		rec := post(SubscribeHandler(api, events, nil), `{"email":"a@b.c"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, api.subscribed)

		ee, err := events.Recent(1)
		require.NoError(t, err)
		require.Len(t, ee, 1)
		assert.Equal(t, analytics.EventSubscribe, ee[0].Event)
	})

	t.Run("invalid email", func(t *testing.T) {
		api := &fakeAPI{}
		rec := post(SubscribeHandler(api, newEvents(t), nil), `{"email":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, api.subscribed)
	})

	t.Run("already subscribed falls back to update", func(t *testing.T) {
		api := &fakeAPI{subscribeErr: ErrAlreadySubscribed}
		rec := post(SubscribeHandler(api, newEvents(t), nil), `{"email":"a@b.c","topicId":"t"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, api.updated)
	})

	t.Run("update failure is graceful success with error event", func(t *testing.T) {
		api := &fakeAPI{subscribeErr: ErrAlreadySubscribed, updateErr: errors.New("api down")}
		events := newEvents(t)
		rec := post(SubscribeHandler(api, events, nil), `{"email":"a@b.c"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		ee, err := events.Recent(1)
		require.NoError(t, err)
		require.Len(t, ee, 1)
		assert.Equal(t, analytics.EventSubscribeError, ee[0].Event)
		assert.Equal(t, "update", ee[0].Fields["stage"])
	})

	t.Run("hard failure logs error event and 500s", func(t *testing.T) {
		api := &fakeAPI{subscribeErr: errors.New("api down")}
		events := newEvents(t)
		rec := post(SubscribeHandler(api, events, nil), `{"email":"a@b.c"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		ee, err := events.Recent(1)
		require.NoError(t, err)
		require.Len(t, ee, 1)
		assert.Equal(t, analytics.EventSubscribeError, ee[0].Event)
		assert.Equal(t, "subscribe", ee[0].Fields["stage"])
	})

	t.Run("legacy settlement field names", func(t *testing.T) {
		api := &fakeAPI{}
		rec := post(SubscribeHandler(api, newEvents(t), nil), `{"email":"a@b.c","settlementId":"s","settlementName":"S"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, api.subscribed)
	})
}
