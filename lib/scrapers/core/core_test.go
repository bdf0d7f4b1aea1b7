package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetClassifiesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(r.URL.Query().Get("q")))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	client := NewClient(ClientOptions{})
	ctx := context.Background()

	res, err := client.Get(ctx, server.URL+"/ok", map[string]string{"q": "value"})
	require.NoError(t, err)
	require.Equal(t, "value", res.String())

	_, err = client.Get(ctx, server.URL+"/missing", nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, IsRetryable(err))

	_, err = client.Get(ctx, server.URL+"/broken", nil)
	require.ErrorIs(t, err, ErrTransport)
	require.True(t, IsRetryable(err))

	_, err = client.Get(ctx, server.URL+"/throttled", nil)
	require.True(t, IsRetryable(err))

	_, err = client.Get(ctx, server.URL+"/forbidden", nil)
	require.Error(t, err)
	require.False(t, IsRetryable(err))
	var statusErr StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestGetConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(ClientOptions{Timeout: time.Second})
	_, err := client.Get(context.Background(), url, nil)
	require.ErrorIs(t, err, ErrTransport)
	require.True(t, IsRetryable(err))
}

func TestCancelledIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ClientOptions{RequestsPerSecond: 1})
	_, err := client.Get(ctx, server.URL, nil)
	require.Error(t, err)
	require.False(t, IsRetryable(err))
}

func TestPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewClient(ClientOptions{RequestsPerSecond: 20})
	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	// burst of one, four waits of 50ms each
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
