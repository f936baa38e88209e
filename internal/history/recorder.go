package history

import (
	"log/slog"
	"sync"

	"github.com/marcus/stbar/internal/poller"
)

// pruneEvery is how many inserts pass between prunes.
const pruneEvery = 100

// Recorder is a poller.Sink that stores mode changes and connection
// notices. Cached replays are not recorded.
type Recorder struct {
	mu      sync.Mutex
	store   *Store
	maxRows int
	logger  *slog.Logger

	last    poller.Mode
	started bool
	writes  int
}

// NewRecorder creates a recorder. maxRows <= 0 disables pruning.
func NewRecorder(store *Store, maxRows int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, maxRows: maxRows, logger: logger}
}

// Publish implements poller.Sink.
func (r *Recorder) Publish(o poller.Outcome) {
	if o.Cached {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := !r.started || o.Mode != r.last
	if !changed && o.Notice == poller.NoticeNone {
		return
	}

	e := Entry{
		At:         o.At,
		Mode:       o.Mode.String(),
		Notice:     o.Notice.String(),
		InBytes:    o.Totals.InBytes,
		OutBytes:   o.Totals.OutBytes,
		ErrorCount: o.ErrorCount,
	}
	if r.started {
		e.PrevMode = r.last.String()
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	r.last, r.started = o.Mode, true

	if _, err := r.store.Record(e); err != nil {
		r.logger.Warn("record history", "err", err)
		return
	}
	r.writes++
	if r.maxRows > 0 && r.writes%pruneEvery == 0 {
		if _, err := r.store.Prune(r.maxRows); err != nil {
			r.logger.Warn("prune history", "err", err)
		}
	}
}
