package statusbar

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/syncthing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1500000, "1.43 MB"},
		{1073741824, "1 GB"},
		{1099511627776, "1 TB"},
		{1125899906842624, "1024 TB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestRenderStates(t *testing.T) {
	totals := syncthing.Totals{InBytes: 2048, OutBytes: 1024}
	tests := []struct {
		name    string
		outcome poller.Outcome
		icon    Icon
		text    string
		tooltip string
		tone    Tone
		spin    bool
	}{
		{
			name:    "no key",
			outcome: poller.Outcome{Mode: poller.ModeNoKey},
			icon:    IconWarning,
			text:    "Syncthing",
			tooltip: "No API Key configured",
			tone:    ToneNone,
		},
		{
			name:    "error",
			outcome: poller.Outcome{Mode: poller.ModeError, Err: errors.New("refused")},
			icon:    IconError,
			text:    "Syncthing: Error",
			tooltip: "Lost connection to Syncthing: refused",
			tone:    ToneError,
		},
		{
			name:    "pending edit",
			outcome: poller.Outcome{Mode: poller.ModePendingEdit, Totals: totals},
			icon:    IconEdit,
			text:    "Syncthing",
			tooltip: "Changes pending sync",
			tone:    ToneWarning,
		},
		{
			name:    "syncing",
			outcome: poller.Outcome{Mode: poller.ModeSyncing, Totals: totals},
			icon:    IconSync,
			text:    "Syncthing",
			tooltip: "Syncing - In: 2 KB, Out: 1 KB",
			tone:    ToneWarning,
			spin:    true,
		},
		{
			name:    "synced",
			outcome: poller.Outcome{Mode: poller.ModeSynced, Totals: totals},
			icon:    IconCheck,
			text:    "Syncthing",
			tooltip: "Synced - In: 2 KB, Out: 1 KB",
			tone:    ToneNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Render(tt.outcome)
			if item.Icon != tt.icon || item.Text != tt.text || item.Tooltip != tt.tooltip ||
				item.Tone != tt.tone || item.Spin != tt.spin {
				t.Errorf("Render() = %+v", item)
			}
			if item.State != tt.outcome.Mode.String() {
				t.Errorf("State = %q, want %q", item.State, tt.outcome.Mode.String())
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(strings.ToUpper(string(f)))
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatLine(t *testing.T) {
	item := Render(poller.Outcome{Mode: poller.ModeSynced, Totals: syncthing.Totals{InBytes: 1024}})

	plain, err := FormatLine(item, FormatPlain, 0)
	if err != nil || plain != "✓ Syncthing" {
		t.Errorf("plain = %q, %v", plain, err)
	}

	tmux, err := FormatLine(item, FormatTmux, 0)
	if err != nil || tmux != "#[fg=colour42]✓ Syncthing#[default]" {
		t.Errorf("tmux = %q, %v", tmux, err)
	}

	ansiLine, err := FormatLine(item, FormatANSI, 0)
	if err != nil || !strings.Contains(ansiLine, "✓ Syncthing") {
		t.Errorf("ansi = %q, %v", ansiLine, err)
	}

	wb, err := FormatLine(item, FormatWaybar, 0)
	if err != nil {
		t.Fatalf("waybar: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(wb), &decoded); err != nil {
		t.Fatalf("waybar line is not JSON: %q", wb)
	}
	if decoded["class"] != "synced" || decoded["alt"] != "check" || decoded["tooltip"] != "Synced - In: 1 KB, Out: 0 B" {
		t.Errorf("waybar = %v", decoded)
	}
}

func TestFormatLineTruncates(t *testing.T) {
	item := Render(poller.Outcome{Mode: poller.ModeError})
	got, err := FormatLine(item, FormatPlain, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got != "✗ Synct…" {
		t.Errorf("truncated = %q", got)
	}
}

func TestLineWriterDedupes(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf, FormatPlain, 0)

	lw.Publish(poller.Outcome{Mode: poller.ModeSynced})
	lw.Publish(poller.Outcome{Mode: poller.ModeSynced})
	lw.Publish(poller.Outcome{Mode: poller.ModeError})

	want := "✓ Syncthing\n✗ Syncthing: Error\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if lw.Err() != nil {
		t.Errorf("Err() = %v", lw.Err())
	}
}
