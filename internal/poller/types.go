package poller

import (
	"context"
	"time"

	"github.com/marcus/stbar/internal/syncthing"
)

// Mode is what the status bar should show after a poll.
type Mode int

const (
	ModeNoKey Mode = iota
	ModeError
	ModePendingEdit
	ModeSyncing
	ModeSynced
)

func (m Mode) String() string {
	switch m {
	case ModeNoKey:
		return "no-key"
	case ModeError:
		return "error"
	case ModePendingEdit:
		return "pending-edit"
	case ModeSyncing:
		return "syncing"
	case ModeSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Notice marks a change in daemon reachability.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeConnectionLost
	NoticeConnectionRestored
)

func (n Notice) String() string {
	switch n {
	case NoticeConnectionLost:
		return "Lost connection to Syncthing"
	case NoticeConnectionRestored:
		return "Syncthing connection restored"
	default:
		return ""
	}
}

// State is the poller's process-lifetime record.
type State struct {
	InBytes          int64
	OutBytes         int64
	LastEdit         time.Time
	LastCheck        time.Time
	LastError        time.Time
	ErrorCount       int
	LastGood         *syncthing.Snapshot
	ConnectionUp     bool
	Syncing          bool
	IncompleteFolder bool
}

// Outcome is the result of one non-skipped poll.
type Outcome struct {
	Mode       Mode
	At         time.Time
	Totals     syncthing.Totals
	Syncing    bool
	Incomplete bool
	ActiveEdit bool
	// Cached is set when the last good snapshot was replayed during backoff.
	Cached     bool
	Err        error
	ErrorCount int
	RetryIn    time.Duration
	Notice     Notice
	Snapshot   *syncthing.Snapshot
}

// Fetcher fetches one snapshot from the daemon.
type Fetcher interface {
	Snapshot(ctx context.Context) (*syncthing.Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*syncthing.Snapshot, error)

// Snapshot implements Fetcher.
func (f FetcherFunc) Snapshot(ctx context.Context) (*syncthing.Snapshot, error) {
	return f(ctx)
}

// Sink receives every outcome the runner produces.
type Sink interface {
	Publish(Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Outcome)

// Publish implements Sink.
func (f SinkFunc) Publish(o Outcome) { f(o) }
