package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/util"
)

type fakeTokenSource struct {
	mu    sync.Mutex
	token string
}

func (s *fakeTokenSource) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeTokenSource) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	err    error
	onCall func()
}

func (r *fakeRefresher) Refresh(_ context.Context) error {
	r.mu.Lock()
	r.calls++
	fn := r.onCall
	err := r.err
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
	return err
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newAuthedClient(baseURL string, tokens TokenSource, refresher Refresher) *AuthedClient {
	cfg := &util.ClientConfig{BaseURL: baseURL, Timeout: time.Second}
	return NewAuthedClient(cfg, tokens, refresher, zap.NewNop().Sugar())
}

func TestDoJSONAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := newAuthedClient(server.URL, &fakeTokenSource{token: "access-1"}, &fakeRefresher{})

	var out map[string]bool
	require.NoError(t, c.DoJSON(context.Background(), http.MethodGet, "/courses", nil, &out))
	require.Equal(t, "Bearer access-1", gotAuth)
	require.True(t, out["ok"])
}

func TestDoJSONRefreshesAndReplaysOnceOn401(t *testing.T) {
	tokens := &fakeTokenSource{token: "stale"}

	var mu sync.Mutex
	var seenTokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenTokens = append(seenTokens, r.Header.Get("Authorization"))
		calls := len(seenTokens)
		mu.Unlock()

		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{onCall: func() { tokens.set("fresh") }}
	c := newAuthedClient(server.URL, tokens, refresher)

	var out map[string]bool
	require.NoError(t, c.DoJSON(context.Background(), http.MethodPost, "/enroll", map[string]string{"courseId": "42"}, &out))

	require.Equal(t, 1, refresher.callCount())
	require.Equal(t, []string{"Bearer stale", "Bearer fresh"}, seenTokens)
}

func TestDoJSONGivesUpAfterSecond401(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{}
	c := newAuthedClient(server.URL, &fakeTokenSource{token: "stale"}, refresher)

	err := c.DoJSON(context.Background(), http.MethodGet, "/courses", nil, nil)
	require.ErrorIs(t, err, ErrUnauthorized)

	// Exactly one refresh-and-replay cycle per original request.
	require.Equal(t, 2, calls)
	require.Equal(t, 1, refresher.callCount())
}

func TestDoJSONStopsWhenRefreshFails(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{err: ErrUnauthorized}
	c := newAuthedClient(server.URL, &fakeTokenSource{token: "stale"}, refresher)

	err := c.DoJSON(context.Background(), http.MethodGet, "/courses", nil, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoJSONNonAuthErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "boom"}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{}
	c := newAuthedClient(server.URL, &fakeTokenSource{token: "access-1"}, refresher)

	err := c.DoJSON(context.Background(), http.MethodGet, "/courses", nil, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Zero(t, refresher.callCount())
}
