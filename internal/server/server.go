// Package server exposes the current status, transition history and
// metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcus/stbar/internal/history"
	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/statusbar"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Deps are the data sources behind the routes. History, Gatherer and
// Refresh may be nil; their routes then answer 404.
type Deps struct {
	Latest   *Latest
	History  *history.Store
	Gatherer prometheus.Gatherer
	Refresh  func()
	Logger   *slog.Logger
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State      string    `json:"state"`
	Icon       string    `json:"icon"`
	Text       string    `json:"text"`
	Tooltip    string    `json:"tooltip"`
	Line       string    `json:"line"`
	InBytes    int64     `json:"in_bytes"`
	OutBytes   int64     `json:"out_bytes"`
	Syncing    bool      `json:"syncing"`
	Incomplete bool      `json:"incomplete"`
	Cached     bool      `json:"cached"`
	ErrorCount int       `json:"error_count"`
	RetryIn    string    `json:"retry_in,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// HistoryEntry is one element of GET /history.
type HistoryEntry struct {
	ID       int64     `json:"id"`
	At       time.Time `json:"at"`
	Mode     string    `json:"mode"`
	PrevMode string    `json:"prev_mode,omitempty"`
	Notice   string    `json:"notice,omitempty"`
	InBytes  int64     `json:"in_bytes"`
	OutBytes int64     `json:"out_bytes"`
	Error    string    `json:"error,omitempty"`
}

// NewStatusResponse describes an outcome for JSON consumers.
func NewStatusResponse(o poller.Outcome) StatusResponse {
	item := statusbar.Render(o)
	line, _ := statusbar.FormatLine(item, statusbar.FormatPlain, 0)
	resp := StatusResponse{
		State:      item.State,
		Icon:       string(item.Icon),
		Text:       item.Text,
		Tooltip:    item.Tooltip,
		Line:       line,
		InBytes:    o.Totals.InBytes,
		OutBytes:   o.Totals.OutBytes,
		Syncing:    o.Syncing,
		Incomplete: o.Incomplete,
		Cached:     o.Cached,
		ErrorCount: o.ErrorCount,
		CheckedAt:  o.At,
	}
	if o.RetryIn > 0 {
		resp.RetryIn = o.RetryIn.String()
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}

type routes struct{ Deps }

// Router builds the HTTP handler.
func Router(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	rt := &routes{d}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		rt.logRequests,
	)

	r.Get("/healthz", rt.health)
	r.Get("/status", rt.status)
	r.Get("/history", rt.history)
	r.Post("/refresh", rt.refresh)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (rt *routes) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (rt *routes) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (rt *routes) status(w http.ResponseWriter, _ *http.Request) {
	o, ok := rt.Latest.Get()
	if !ok {
		writeError(w, "no status yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, NewStatusResponse(o), http.StatusOK)
}

func (rt *routes) history(w http.ResponseWriter, r *http.Request) {
	if rt.History == nil {
		writeError(w, "history is disabled", http.StatusNotFound)
		return
	}
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := rt.History.Tail(limit)
	if err != nil {
		rt.Logger.Error("read history", "err", err)
		writeError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			ID: e.ID, At: e.At, Mode: e.Mode, PrevMode: e.PrevMode,
			Notice: e.Notice, InBytes: e.InBytes, OutBytes: e.OutBytes, Error: e.Error,
		})
	}
	writeJSON(w, out, http.StatusOK)
}

func (rt *routes) refresh(w http.ResponseWriter, _ *http.Request) {
	if rt.Refresh == nil {
		writeError(w, "refresh is not available", http.StatusNotFound)
		return
	}
	rt.Refresh()
	writeJSON(w, map[string]string{"status": "queued"}, http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}

// Serve runs an HTTP server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
