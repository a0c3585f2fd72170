package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/events"
)

func TestServer_Health(t *testing.T) {
	srv := NewServer(":0", events.NewBroadcaster(1), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Index(t *testing.T) {
	srv := NewServer(":0", nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/events/stream")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StreamWithoutSource(t *testing.T) {
	srv := NewServer(":0", nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_EventStream(t *testing.T) {
	broadcaster := events.NewBroadcaster(8)
	srv := NewServer(":0", broadcaster, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return broadcaster.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	broadcaster.Publish(events.ExecutionEvent{Kind: events.KindTransition, Pair: "XMR_USDT", State: "done"})

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	assert.Equal(t, "transition", eventLine)
	var got events.ExecutionEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &got))
	assert.Equal(t, "XMR_USDT", got.Pair)
	assert.Equal(t, "done", got.State)
	assert.False(t, got.Timestamp.IsZero())

	cancel()
	require.Eventually(t, func() bool { return broadcaster.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
