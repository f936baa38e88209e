// Package syncthing is a small client for the read-only parts of the
// Syncthing REST API that stbar polls.
package syncthing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for common failure classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUnreachable  = errors.New("syncthing is unreachable")
)

// DefaultTimeout bounds every request made by a client created with New.
const DefaultTimeout = 5 * time.Second

// REST endpoints, primary first.
const (
	PathConnections = "/rest/system/connections"
	PathDeviceStats = "/rest/stats/device"
	PathCompletion  = "/rest/db/completion"
	PathFolderStats = "/rest/stats/folder"
	PathPing        = "/rest/system/ping"
	PathVersion     = "/rest/system/version"
)

// Client is an HTTP client for a local Syncthing daemon.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a new Syncthing client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Response is a raw JSON body together with the endpoint that produced it.
type Response struct {
	Endpoint string
	Body     []byte
}

// Snapshot is the pair of responses a single poll needs.
type Snapshot struct {
	Connections *Response
	Completion  *Response
	FetchedAt   time.Time
}

// VersionResponse is the response from GET /rest/system/version.
type VersionResponse struct {
	Version     string `json:"version"`
	LongVersion string `json:"longVersion"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
}

// Connections returns connection totals, falling back to device statistics
// when the connections endpoint fails.
func (c *Client) Connections(ctx context.Context) (*Response, error) {
	return c.getWithFallback(ctx, PathConnections, PathDeviceStats)
}

// Completion returns aggregate folder completion, falling back to folder
// statistics when the completion endpoint fails.
func (c *Client) Completion(ctx context.Context) (*Response, error) {
	return c.getWithFallback(ctx, PathCompletion, PathFolderStats)
}

// Snapshot fetches connections and completion concurrently. It fails if
// either side fails after its fallback.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.Connections(gctx)
		snap.Connections = resp
		return err
	})
	g.Go(func() error {
		resp, err := c.Completion(gctx)
		snap.Completion = resp
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

// Ping checks that the daemon answers and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, PathPing)
	return err
}

// Version returns the daemon's version information.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	body, err := c.get(ctx, PathVersion)
	if err != nil {
		return nil, err
	}
	var resp VersionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal version: %w", err)
	}
	return &resp, nil
}

// Endpoints lists every path the status check may read, primaries first.
var Endpoints = []string{PathConnections, PathCompletion, PathDeviceStats, PathFolderStats}

// Probe fetches path and returns the raw body.
func (c *Client) Probe(ctx context.Context, path string) ([]byte, error) {
	return c.get(ctx, path)
}

func (c *Client) getWithFallback(ctx context.Context, primary, fallback string) (*Response, error) {
	body, err := c.get(ctx, primary)
	if err == nil {
		return &Response{Endpoint: primary, Body: body}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	body, ferr := c.get(ctx, fallback)
	if ferr != nil {
		return nil, fmt.Errorf("%s: %w (fallback %s: %v)", primary, err, fallback, ferr)
	}
	return &Response{Endpoint: fallback, Body: body}, nil
}

// get executes an authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
