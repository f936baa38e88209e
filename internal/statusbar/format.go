package statusbar

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/stbar/internal/poller"
)

// Format selects how a status line is written.
type Format string

const (
	FormatPlain  Format = "plain"
	FormatANSI   Format = "ansi"
	FormatTmux   Format = "tmux"
	FormatWaybar Format = "waybar"
)

// Formats lists every supported format.
var Formats = []Format{FormatPlain, FormatANSI, FormatTmux, FormatWaybar}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of plain, ansi, tmux, waybar)", s)
}

var glyphs = map[Icon]string{
	IconWarning: "⚠",
	IconError:   "✗",
	IconEdit:    "✎",
	IconSync:    "⟳",
	IconCheck:   "✓",
}

// Glyph returns the single-character symbol for an icon.
func Glyph(i Icon) string {
	if g, ok := glyphs[i]; ok {
		return g
	}
	return "?"
}

var (
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	toneStyles = map[Tone]lipgloss.Style{
		ToneNone:    lipgloss.NewStyle().Foreground(successColor),
		ToneWarning: lipgloss.NewStyle().Foreground(warningColor),
		ToneError:   lipgloss.NewStyle().Foreground(errorColor).Bold(true),
	}

	tmuxColors = map[Tone]string{
		ToneNone:    "colour42",
		ToneWarning: "colour214",
		ToneError:   "colour196",
	}
)

// ToneStyle returns the foreground style used for a tone.
func ToneStyle(t Tone) lipgloss.Style {
	return toneStyles[t]
}

// Visible is the glyph and text, truncated to maxWidth cells when
// maxWidth is positive.
func Visible(item Item, maxWidth int) string {
	s := Glyph(item.Icon) + " " + item.Text
	if maxWidth > 0 {
		s = ansi.Truncate(s, maxWidth, "…")
	}
	return s
}

type waybarLine struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

// FormatLine renders an item as a single line without a trailing newline.
func FormatLine(item Item, format Format, maxWidth int) (string, error) {
	visible := Visible(item, maxWidth)
	switch format {
	case FormatPlain, "":
		return visible, nil
	case FormatANSI:
		style := toneStyles[item.Tone]
		if item.Mode == poller.ModeNoKey {
			style = toneStyles[ToneWarning]
		}
		return style.Render(visible), nil
	case FormatTmux:
		color := tmuxColors[item.Tone]
		if item.Mode == poller.ModeNoKey {
			color = tmuxColors[ToneWarning]
		}
		// '#' starts tmux markup; double it in user-visible text.
		return fmt.Sprintf("#[fg=%s]%s#[default]", color, strings.ReplaceAll(visible, "#", "##")), nil
	case FormatWaybar:
		data, err := json.Marshal(waybarLine{
			Text:    visible,
			Tooltip: item.Tooltip,
			Class:   item.State,
			Alt:     string(item.Icon),
		})
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// LineWriter is a poller.Sink writing one line per changed status.
type LineWriter struct {
	mu       sync.Mutex
	w        io.Writer
	format   Format
	maxWidth int
	last     string
	err      error
}

// NewLineWriter creates a line sink.
func NewLineWriter(w io.Writer, format Format, maxWidth int) *LineWriter {
	return &LineWriter{w: w, format: format, maxWidth: maxWidth}
}

// Publish implements poller.Sink. Identical consecutive lines are written
// once.
func (lw *LineWriter) Publish(o poller.Outcome) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	line, err := FormatLine(Render(o), lw.format, lw.maxWidth)
	if err != nil {
		lw.err = err
		return
	}
	if line == lw.last {
		return
	}
	lw.last = line
	if _, err := fmt.Fprintln(lw.w, line); err != nil {
		lw.err = err
	}
}

// Err returns the last write or format error.
func (lw *LineWriter) Err() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.err
}
