package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/stbar/internal/history"
	"github.com/marcus/stbar/internal/metrics"
	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/syncthing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatusBeforeFirstPoll(t *testing.T) {
	h := Router(Deps{Latest: &Latest{}, Logger: quietLogger()})
	rec := do(t, h, http.MethodGet, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	latest := &Latest{}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	latest.Publish(poller.Outcome{
		Mode:    poller.ModeSyncing,
		At:      at,
		Syncing: true,
		Totals:  syncthing.Totals{InBytes: 2048, OutBytes: 1024},
	})
	h := Router(Deps{Latest: latest, Logger: quietLogger()})

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "syncing", resp.State)
	assert.Equal(t, "sync", resp.Icon)
	assert.Equal(t, "Syncing - In: 2 KB, Out: 1 KB", resp.Tooltip)
	assert.Equal(t, "⟳ Syncthing", resp.Line)
	assert.True(t, resp.Syncing)
	assert.True(t, resp.CheckedAt.Equal(at))
}

func TestStatusError(t *testing.T) {
	latest := &Latest{}
	latest.Publish(poller.Outcome{Mode: poller.ModeError, Err: errors.New("refused"),
		ErrorCount: 2, RetryIn: 4 * time.Second})
	h := Router(Deps{Latest: latest, Logger: quietLogger()})

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(do(t, h, http.MethodGet, "/status").Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.State)
	assert.Equal(t, "refused", resp.Error)
	assert.Equal(t, "4s", resp.RetryIn)
	assert.Equal(t, 2, resp.ErrorCount)
}

func TestHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	for _, m := range []string{"synced", "syncing", "synced"} {
		_, err := store.Record(history.Entry{At: time.Now(), Mode: m})
		require.NoError(t, err)
	}

	h := Router(Deps{Latest: &Latest{}, History: store, Logger: quietLogger()})

	rec := do(t, h, http.MethodGet, "/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "syncing", entries[0].Mode)

	rec = do(t, h, http.MethodGet, "/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	h := Router(Deps{Latest: &Latest{}, Logger: quietLogger()})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/history").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics").Code)
}

func TestRefresh(t *testing.T) {
	called := 0
	h := Router(Deps{Latest: &Latest{}, Refresh: func() { called++ }, Logger: quietLogger()})

	rec := do(t, h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, called)

	rec = do(t, h, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Publish(poller.Outcome{Mode: poller.ModeSynced, At: time.Now()})

	h := Router(Deps{Latest: &Latest{}, Gatherer: reg, Logger: quietLogger()})
	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `stbar_mode{mode="synced"} 1`))
}
