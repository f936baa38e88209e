package poller

import (
	"context"
	"log/slog"
	"time"
)

// Default loop timings.
const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultActiveInterval  = 5 * time.Second
	DefaultEditDebounce    = 3 * time.Second
)

// Intervals controls how often the runner polls.
type Intervals struct {
	// Refresh is used while everything is synced.
	Refresh time.Duration
	// Active is used while the last poll saw syncing or an incomplete folder.
	Active time.Duration
	// EditDebounce delays a follow-up poll after the last edit event.
	EditDebounce time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Refresh <= 0 {
		iv.Refresh = DefaultRefreshInterval
	}
	if iv.Active <= 0 {
		iv.Active = DefaultActiveInterval
	}
	if iv.EditDebounce <= 0 {
		iv.EditDebounce = DefaultEditDebounce
	}
	return iv
}

// Reconfig replaces the runner's settings while it is running.
type Reconfig struct {
	Fetcher   Fetcher
	Options   Options
	Intervals Intervals
}

// Runner drives a Poller from a ticker, edit events and manual refreshes.
// All polls happen on the goroutine that calls Run.
type Runner struct {
	poller    *Poller
	intervals Intervals
	sinks     []Sink
	edits     <-chan time.Time
	refresh   chan struct{}
	reconfig  chan Reconfig
	logger    *slog.Logger

	active bool
}

// NewRunner creates a runner publishing every outcome to sinks.
func NewRunner(p *Poller, iv Intervals, logger *slog.Logger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		poller:    p,
		intervals: iv.withDefaults(),
		sinks:     sinks,
		refresh:   make(chan struct{}, 1),
		reconfig:  make(chan Reconfig, 1),
		logger:    logger,
	}
}

// WatchEdits sets the channel of edit timestamps. Call before Run.
func (r *Runner) WatchEdits(edits <-chan time.Time) {
	r.edits = edits
}

// AddSink registers another sink. Call before Run.
func (r *Runner) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Refresh requests an immediate poll. The poller's rate limit still applies.
func (r *Runner) Refresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// Reconfigure hands new settings to the running loop. A pending,
// unapplied reconfiguration is replaced.
func (r *Runner) Reconfigure(rc Reconfig) {
	for {
		select {
		case r.reconfig <- rc:
			return
		default:
		}
		select {
		case <-r.reconfig:
		default:
		}
	}
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.currentInterval())
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	r.step(ctx, ticker)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			r.step(ctx, ticker)

		case <-r.refresh:
			r.step(ctx, ticker)

		case at, ok := <-r.edits:
			if !ok {
				r.edits = nil
				continue
			}
			r.poller.RecordEdit(at)
			if r.poller.SinceCheck(at) > r.poller.Options().ActiveTimeout {
				r.step(ctx, ticker)
			}
			if debounce == nil {
				debounce = time.NewTimer(r.intervals.EditDebounce)
			} else {
				debounce.Reset(r.intervals.EditDebounce)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			if r.poller.SinceCheck(time.Now()) >= r.poller.Options().MinCheckInterval {
				r.step(ctx, ticker)
			}

		case rc := <-r.reconfig:
			r.intervals = rc.Intervals.withDefaults()
			r.poller.Reconfigure(rc.Fetcher, rc.Options)
			ticker.Reset(r.currentInterval())
			r.logger.Info("configuration applied",
				"refresh", r.intervals.Refresh, "active", r.intervals.Active)
		}
	}
}

func (r *Runner) currentInterval() time.Duration {
	if r.active {
		return r.intervals.Active
	}
	return r.intervals.Refresh
}

// step runs one poll, publishes it and switches intervals when the sync
// activity changed.
func (r *Runner) step(ctx context.Context, ticker *time.Ticker) {
	o, ok := r.poller.Poll(ctx)
	if !ok {
		return
	}

	switch o.Notice {
	case NoticeConnectionLost:
		r.logger.Warn("lost connection to syncthing", "err", o.Err)
	case NoticeConnectionRestored:
		r.logger.Info("syncthing connection restored")
	}

	for _, s := range r.sinks {
		s.Publish(o)
	}

	if o.Mode == ModeError || o.Mode == ModeNoKey || o.Cached {
		return
	}
	if want := o.Syncing || o.Incomplete; want != r.active {
		r.active = want
		ticker.Reset(r.currentInterval())
		r.logger.Debug("poll interval changed", "active", r.active, "interval", r.currentInterval())
	}
}
