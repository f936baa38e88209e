package syncthing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/stbar/internal/syncthing"
)

// newTestServer creates a test server with keep-alives disabled so parallel
// tests do not share stale connections.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)
	return server
}

func TestClient_SendsAPIKey(t *testing.T) {
	t.Parallel()

	var gotKey, gotAccept string
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"ping":"pong"}`))
	}))

	client := syncthing.New(server.URL, "secret-key")
	require.NoError(t, client.Ping(context.Background()))

	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotAccept)
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))

	client := syncthing.New(server.URL+"/", "k")
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, syncthing.PathPing, gotPath)
}

func TestClient_Fallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failing      map[string]int
		call         func(*syncthing.Client) (*syncthing.Response, error)
		wantEndpoint string
		wantErr      bool
	}{
		{
			name:         "connections primary",
			call:         func(c *syncthing.Client) (*syncthing.Response, error) { return c.Connections(context.Background()) },
			wantEndpoint: syncthing.PathConnections,
		},
		{
			name:         "connections falls back to device stats",
			failing:      map[string]int{syncthing.PathConnections: http.StatusInternalServerError},
			call:         func(c *syncthing.Client) (*syncthing.Response, error) { return c.Connections(context.Background()) },
			wantEndpoint: syncthing.PathDeviceStats,
		},
		{
			name:         "completion falls back to folder stats",
			failing:      map[string]int{syncthing.PathCompletion: http.StatusNotFound},
			call:         func(c *syncthing.Client) (*syncthing.Response, error) { return c.Completion(context.Background()) },
			wantEndpoint: syncthing.PathFolderStats,
		},
		{
			name: "both completion endpoints fail",
			failing: map[string]int{
				syncthing.PathCompletion:  http.StatusInternalServerError,
				syncthing.PathFolderStats: http.StatusInternalServerError,
			},
			call:    func(c *syncthing.Client) (*syncthing.Response, error) { return c.Completion(context.Background()) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if code, ok := tt.failing[r.URL.Path]; ok {
					w.WriteHeader(code)
					return
				}
				_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
			}))

			resp, err := tt.call(syncthing.New(server.URL, "k"))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEndpoint, resp.Endpoint)
			assert.Contains(t, string(resp.Body), tt.wantEndpoint)
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := syncthing.New(server.URL, "wrong").Ping(context.Background())
	require.ErrorIs(t, err, syncthing.ErrUnauthorized)
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := syncthing.New(url, "k").Snapshot(context.Background())
	require.ErrorIs(t, err, syncthing.ErrUnreachable)
}

func TestClient_Snapshot(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case syncthing.PathConnections:
			_, _ = w.Write([]byte(`{"total":{"inBytesTotal":10,"outBytesTotal":20}}`))
		case syncthing.PathCompletion:
			_, _ = w.Write([]byte(`{"completion":100}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	snap, err := syncthing.New(server.URL, "k").Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Connections)
	require.NotNil(t, snap.Completion)
	assert.Equal(t, int32(2), hits.Load())
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Equal(t, syncthing.Totals{InBytes: 10, OutBytes: 20}, syncthing.ParseTotals(snap.Connections.Body))
	assert.False(t, syncthing.ParseIncomplete(snap.Completion.Body))
}

func TestClient_Version(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"version":"v1.27.0","os":"linux","arch":"amd64"}`))
	}))

	v, err := syncthing.New(server.URL, "k").Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.27.0", v.Version)
	assert.Equal(t, "linux", v.OS)
}

func TestClient_Probe(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == syncthing.PathFolderStats {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	client := syncthing.New(server.URL, "k")
	body, err := client.Probe(context.Background(), syncthing.PathCompletion)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, err = client.Probe(context.Background(), syncthing.PathFolderStats)
	assert.ErrorIs(t, err, syncthing.ErrNotFound)
}
