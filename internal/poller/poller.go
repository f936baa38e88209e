// Package poller turns Syncthing REST snapshots into status bar outcomes.
// It owns the single state record and the rate limit, backoff and
// byte-delta rules; the Runner drives it from timers and edit events.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus/stbar/internal/syncthing"
)

// Defaults for Options.
const (
	DefaultMinCheckInterval = 2 * time.Second
	DefaultActiveTimeout    = 10 * time.Second
)

// Options configures a Poller.
type Options struct {
	// HasAPIKey is false when no key is configured; polls then report
	// ModeNoKey without contacting the daemon.
	HasAPIKey        bool
	MinCheckInterval time.Duration
	ActiveTimeout    time.Duration
	MaxBackoff       time.Duration
	// Debug logs raw response bodies.
	Debug  bool
	Logger *slog.Logger
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MinCheckInterval <= 0 {
		o.MinCheckInterval = DefaultMinCheckInterval
	}
	if o.ActiveTimeout <= 0 {
		o.ActiveTimeout = DefaultActiveTimeout
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Poller holds the state record. It is not safe for concurrent use; the
// Runner calls it from a single goroutine.
type Poller struct {
	fetcher Fetcher
	opts    Options
	state   State
	backoff *Backoff
}

// New creates a poller. The connection is assumed up until a fetch fails.
func New(fetcher Fetcher, opts Options) *Poller {
	opts = opts.withDefaults()
	return &Poller{
		fetcher: fetcher,
		opts:    opts,
		state:   State{ConnectionUp: true},
		backoff: NewBackoff(opts.MaxBackoff),
	}
}

// Reconfigure swaps the fetcher and options while keeping the state record.
func (p *Poller) Reconfigure(fetcher Fetcher, opts Options) {
	opts = opts.withDefaults()
	if opts.MaxBackoff != p.opts.MaxBackoff {
		p.backoff = NewBackoff(opts.MaxBackoff)
		for i := 0; i < p.state.ErrorCount; i++ {
			p.backoff.Fail()
		}
	}
	p.fetcher = fetcher
	p.opts = opts
}

// State returns a copy of the state record.
func (p *Poller) State() State {
	return p.state
}

// Options returns the effective options.
func (p *Poller) Options() Options {
	return p.opts
}

// SinceCheck is the time elapsed since the last poll attempt.
func (p *Poller) SinceCheck(now time.Time) time.Duration {
	return now.Sub(p.state.LastCheck)
}

// Seed sets the byte counters the next poll is compared against. Without a
// seed the first poll measures from zero.
func (p *Poller) Seed(t syncthing.Totals) {
	p.state.InBytes = t.InBytes
	p.state.OutBytes = t.OutBytes
}

// RecordEdit notes a workspace edit at the given time.
func (p *Poller) RecordEdit(at time.Time) {
	p.state.LastEdit = at
}

// Poll runs one status check. It returns false when the check was skipped
// because the previous one was less than MinCheckInterval ago.
func (p *Poller) Poll(ctx context.Context) (Outcome, bool) {
	now := p.opts.Now()
	if now.Sub(p.state.LastCheck) < p.opts.MinCheckInterval {
		return Outcome{}, false
	}
	p.state.LastCheck = now

	if !p.opts.HasAPIKey {
		return Outcome{Mode: ModeNoKey, At: now}, true
	}

	if p.state.ErrorCount > 0 && p.state.LastGood != nil {
		if window := p.backoff.Window(); now.Sub(p.state.LastError) < window {
			o := p.project(p.state.LastGood, now)
			o.Cached = true
			o.ErrorCount = p.state.ErrorCount
			o.RetryIn = window - now.Sub(p.state.LastError)
			return o, true
		}
	}

	snap, err := p.fetcher.Snapshot(ctx)
	if err != nil {
		return p.fail(now, err), true
	}

	p.state.LastGood = snap
	p.state.ErrorCount = 0
	p.backoff.Reset()

	var notice Notice
	if !p.state.ConnectionUp {
		p.state.ConnectionUp = true
		notice = NoticeConnectionRestored
	}

	if p.opts.Debug {
		p.opts.Logger.Debug("api response",
			"connections_endpoint", snap.Connections.Endpoint,
			"connections", string(snap.Connections.Body),
			"completion_endpoint", snap.Completion.Endpoint,
			"completion", string(snap.Completion.Body))
	}

	o := p.project(snap, now)
	o.Notice = notice
	return o, true
}

func (p *Poller) fail(now time.Time, err error) Outcome {
	p.state.LastError = now
	p.state.ErrorCount++
	window := p.backoff.Fail()

	var notice Notice
	if p.state.ConnectionUp {
		p.state.ConnectionUp = false
		notice = NoticeConnectionLost
	}

	if p.opts.Debug {
		p.opts.Logger.Debug("api error", "err", err, "error_count", p.state.ErrorCount)
	}

	return Outcome{
		Mode:       ModeError,
		At:         now,
		Err:        err,
		ErrorCount: p.state.ErrorCount,
		RetryIn:    window,
		Notice:     notice,
		Totals:     syncthing.Totals{InBytes: p.state.InBytes, OutBytes: p.state.OutBytes},
	}
}

// project maps a snapshot onto the state record and picks the mode.
func (p *Poller) project(snap *syncthing.Snapshot, now time.Time) Outcome {
	totals := syncthing.ParseTotals(snap.Connections.Body)
	incomplete := syncthing.ParseIncomplete(snap.Completion.Body)

	syncing := totals.InBytes > p.state.InBytes ||
		totals.OutBytes > p.state.OutBytes ||
		incomplete
	activeEdit := now.Sub(p.state.LastEdit) < p.opts.ActiveTimeout

	p.state.InBytes = totals.InBytes
	p.state.OutBytes = totals.OutBytes
	p.state.Syncing = syncing
	p.state.IncompleteFolder = incomplete

	var mode Mode
	switch {
	case activeEdit && incomplete:
		mode = ModePendingEdit
	case syncing:
		mode = ModeSyncing
	default:
		mode = ModeSynced
		p.state.LastEdit = time.Time{}
	}

	return Outcome{
		Mode:       mode,
		At:         now,
		Totals:     totals,
		Syncing:    syncing,
		Incomplete: incomplete,
		ActiveEdit: activeEdit,
		Snapshot:   snap,
	}
}
