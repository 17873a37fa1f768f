package fetch_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/fetch"
	"github.com/appconfd/appconfd/internal/source"
)

var testRef = source.ProfileRef{
	Application:   "myApp",
	Environment:   "production",
	Configuration: "myConfig",
}

func newTestClient(t *testing.T, serverURL string, config fetch.Config) *fetch.Client {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	config.Host = host
	config.Port = port

	return fetch.New(config, zap.NewNop())
}

func TestFetch_Example(t *testing.T) {
	body := `{"myConfig":{"prop1":true,"prop2":"ciao","prop3":100000}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/applications/myApp/environments/production/configurations/myConfig", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Configuration-Version", "1")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{})

	doc, err := client.Fetch(context.Background(), testRef)
	require.NoError(t, err)

	expected := map[string]any{
		"myConfig": map[string]any{
			"prop1": true,
			"prop2": "ciao",
			"prop3": float64(100000),
		},
	}

	assert.Equal(t, expected, doc.Value)
	assert.Equal(t, []byte(body), doc.Raw)
	assert.Equal(t, "1", doc.Version)
}

func TestFetch_RoundTrip(t *testing.T) {
	input := map[string]any{
		"flags": []any{"a", "b"},
		"limits": map[string]any{
			"max": float64(10),
		},
		"enabled": true,
	}

	body, err := json.Marshal(input)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{})

	doc, err := client.Fetch(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, input, doc.Value)
}

func TestFetch_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an empty body; an empty string is not json
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{})

	_, err := client.Fetch(context.Background(), testRef)
	require.Error(t, err)
	assert.True(t, fetch.IsDecodeError(err))
}

func TestFetch_ChunkedBody(t *testing.T) {
	chunks := []string{`{"a":`, `1}`}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		for _, chunk := range chunks {
			w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{})

	doc, err := client.Fetch(context.Background(), testRef)
	require.NoError(t, err)

	var unsplit any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1}`), &unsplit))

	assert.Equal(t, unsplit, doc.Value)
}

func TestFetch_TransportErrorMidStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// promise more bytes than are delivered, then drop the
		// connection so the client sees an unexpected EOF
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte(`{"a":`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{})

	doc, err := client.Fetch(context.Background(), testRef)
	require.Error(t, err)
	assert.True(t, fetch.IsTransportError(err))
	assert.Zero(t, doc)
}

func TestFetch_StatusError(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{Retries: 3})

	_, err := client.Fetch(context.Background(), testRef)
	require.Error(t, err)
	assert.True(t, fetch.IsStatusError(err))

	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	// status failures are not retried
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetch_RetriesTransportError(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			hijacker, ok := w.(http.Hijacker)
			require.True(t, ok)

			conn, _, err := hijacker.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}

		w.Write([]byte(`{"a":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fetch.Config{
		Retries: 2,
		Backoff: time.Millisecond,
	})

	doc, err := client.Fetch(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, doc.Value)
	assert.Equal(t, int32(2), requests.Load())
}
