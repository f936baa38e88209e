package history

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/syncthing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndTail(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	for i, mode := range []string{"synced", "syncing", "synced"} {
		if _, err := s.Record(Entry{At: base.Add(time.Duration(i) * time.Minute), Mode: mode, InBytes: int64(i)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := s.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Mode != "syncing" || entries[1].Mode != "synced" {
		t.Errorf("tail order = %s, %s", entries[0].Mode, entries[1].Mode)
	}
	if !entries[1].At.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("timestamp = %v, want %v", entries[1].At, base.Add(2*time.Minute))
	}
}

func TestAfter(t *testing.T) {
	s := openTestStore(t)
	first, _ := s.Record(Entry{At: time.Now(), Mode: "synced"})
	s.Record(Entry{At: time.Now(), Mode: "error", Error: "refused"})

	entries, err := s.After(first, 10)
	if err != nil {
		t.Fatalf("After: %v", err)
	}
	if len(entries) != 1 || entries[0].Mode != "error" || entries[0].Error != "refused" {
		t.Errorf("After = %+v", entries)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 10; i++ {
		s.Record(Entry{At: time.Now(), Mode: "synced"})
	}
	removed, err := s.Prune(3)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 7 {
		t.Errorf("removed = %d, want 7", removed)
	}
	if n, _ := s.Count(); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestRecorderStoresTransitionsOnly(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	r.Publish(poller.Outcome{Mode: poller.ModeSynced, At: at})
	r.Publish(poller.Outcome{Mode: poller.ModeSynced, At: at})
	r.Publish(poller.Outcome{Mode: poller.ModeError, At: at, Err: errors.New("refused"),
		ErrorCount: 1, Notice: poller.NoticeConnectionLost})
	r.Publish(poller.Outcome{Mode: poller.ModeSynced, At: at, Cached: true})
	r.Publish(poller.Outcome{Mode: poller.ModeSyncing, At: at,
		Totals: syncthing.Totals{InBytes: 10}, Notice: poller.NoticeConnectionRestored})

	entries, err := s.Tail(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	if entries[0].PrevMode != "" || entries[0].Mode != "synced" {
		t.Errorf("first = %+v", entries[0])
	}
	lost := entries[1]
	if lost.Mode != "error" || lost.PrevMode != "synced" || lost.Notice != "Lost connection to Syncthing" || lost.Error != "refused" {
		t.Errorf("lost = %+v", lost)
	}
	if entries[2].Mode != "syncing" || entries[2].InBytes != 10 || entries[2].PrevMode != "error" {
		t.Errorf("restored = %+v", entries[2])
	}
}

func TestRecorderPrunes(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s, 5, nil)
	modes := []poller.Mode{poller.ModeSynced, poller.ModeSyncing}
	for i := 0; i < pruneEvery; i++ {
		r.Publish(poller.Outcome{Mode: modes[i%2], At: time.Now()})
	}
	if n, _ := s.Count(); n != 5 {
		t.Errorf("count after prune = %d, want 5", n)
	}
}
