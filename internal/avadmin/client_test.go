package avadmin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocktech/marketplace-service/config"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration, maxRetries int) *Client {
	t.Helper()
	c := NewClient(&config.AvAdminConfig{
		BaseURL:    baseURL,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}, logger.NewNop())
	// keep retry loops fast in tests
	c.timeoutBackoff = time.Millisecond
	c.connectBackoff = time.Millisecond
	return c
}

func TestClient_Execute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/users/u1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","full_name":"Ana"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	raw, err := c.execute(context.Background(), http.MethodGet, "/api/internal/users/u1", nil, nil)

	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "u1", decoded["id"])
}

func TestClient_Execute_NotFoundIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	raw, err := c.execute(context.Background(), http.MethodGet, "/api/internal/users/missing", nil, nil)

	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClient_Execute_ForbiddenNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	_, err := c.execute(context.Background(), http.MethodGet, "/api/internal/accounts/a1", nil, nil)

	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, int32(1), calls.Load(), "403 must not be retried")
}

func TestClient_Execute_TimeoutExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 20*time.Millisecond, 3)
	_, err := c.execute(context.Background(), http.MethodGet, "/api/internal/health", nil, nil)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(3), calls.Load(), "must attempt exactly max_retries times")
}

func TestClient_Execute_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	c := newTestClient(t, srv.URL, time.Second, 3)
	_, err := c.execute(context.Background(), http.MethodGet, "/api/internal/health", nil, nil)

	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Execute_ServerErrorBecomesRemote(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	_, err := c.execute(context.Background(), http.MethodGet, "/api/internal/accounts/a1", nil, nil)

	require.ErrorIs(t, err, ErrRemote)
	assert.Equal(t, int32(3), calls.Load(), "non-2xx responses are retried before failing")
}

func TestClient_Execute_RecoversMidRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	raw, err := c.execute(context.Background(), http.MethodGet, "/api/internal/health", nil, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))
}

func TestClient_Execute_SendsBodyAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.URL.Query().Get("active_only"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["user_id"])

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	query := url.Values{"active_only": []string{"true"}}
	_, err := c.execute(context.Background(), http.MethodPost, "/api/internal/validate/user-access",
		map[string]string{"user_id": "u1"}, query)

	require.NoError(t, err)
}

func TestClient_Execute_EmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)
	raw, err := c.execute(context.Background(), http.MethodPost, "/api/internal/accounts/a1/usage/products", nil, nil)

	require.NoError(t, err)
	assert.NotNil(t, raw, "a bodyless 200 still counts as success")
}

func TestClient_Execute_CallerCancelStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second, 3)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.execute(ctx, http.MethodGet, "/api/internal/accounts/a1", nil, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load(), "a cancelled caller must not trigger further attempts")
}
