// Package output provides styled terminal output helpers (success, error,
// warning, check lines and status reports) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/statusbar"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	modeStyles   = map[string]lipgloss.Style{
		poller.ModeNoKey.String():       warningStyle,
		poller.ModeError.String():       errorStyle,
		poller.ModePendingEdit.String(): warningStyle,
		poller.ModeSyncing.String():     lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		poller.ModeSynced.String():      successStyle,
	}
)

// Stdout and Stderr are swapped out by tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Fprintln(Stdout, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message to stderr
func Error(format string, args ...any) {
	fmt.Fprintln(Stderr, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Fprintln(Stdout, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Fprintf(Stdout, format+"\n", args...)
}

// JSON outputs data as indented JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

// Check prints a doctor-style result line.
func Check(ok bool, label, detail string) {
	mark := successStyle.Render("✓")
	if !ok {
		mark = errorStyle.Render("✗")
	}
	line := fmt.Sprintf("%s %s", mark, label)
	if detail != "" {
		line += "  " + subtleStyle.Render(detail)
	}
	fmt.Fprintln(Stdout, line)
}

// FormatMode renders a mode name as a colored badge.
func FormatMode(mode string) string {
	style, ok := modeStyles[mode]
	if !ok {
		return fmt.Sprintf("[%s]", mode)
	}
	return style.Render(fmt.Sprintf("[%s]", mode))
}

// SectionHeader returns a bold header line.
func SectionHeader(title string) string {
	return titleStyle.Render(title)
}

// Subtle renders secondary text.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	return formatTimeAgo(time.Since(t), t)
}

func formatTimeAgo(diff time.Duration, t time.Time) string {
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// Report is the data behind the one-shot status report.
type Report struct {
	URL     string
	Version string
	Outcome poller.Outcome
}

// StatusMarkdown builds the markdown body of the status report.
func StatusMarkdown(r Report) string {
	item := statusbar.Render(r.Outcome)
	o := r.Outcome

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s\n\n", statusbar.Glyph(item.Icon), item.Text)
	fmt.Fprintf(&sb, "**%s**\n\n", item.Tooltip)

	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| State | `%s` |\n", item.State)
	fmt.Fprintf(&sb, "| Daemon | %s |\n", r.URL)
	if r.Version != "" {
		fmt.Fprintf(&sb, "| Version | %s |\n", r.Version)
	}
	if o.Mode != poller.ModeNoKey && o.Mode != poller.ModeError {
		fmt.Fprintf(&sb, "| Received | %s |\n", statusbar.FormatBytes(o.Totals.InBytes))
		fmt.Fprintf(&sb, "| Sent | %s |\n", statusbar.FormatBytes(o.Totals.OutBytes))
		fmt.Fprintf(&sb, "| Folders complete | %s |\n", yesNo(!o.Incomplete))
	}
	if !o.At.IsZero() {
		fmt.Fprintf(&sb, "| Checked | %s |\n", o.At.Local().Format("2006-01-02 15:04:05"))
	}

	switch o.Mode {
	case poller.ModeNoKey:
		sb.WriteString("\nSet `api_key` with `stbar init` or `stbar config set api_key <key>`.\n")
	case poller.ModeError:
		if o.Err != nil {
			fmt.Fprintf(&sb, "\n> %s\n", o.Err)
		}
		sb.WriteString("\nRun `stbar doctor` to check each endpoint.\n")
	}
	return sb.String()
}

// StatusPlain is the report for non-terminal output.
func StatusPlain(r Report) string {
	item := statusbar.Render(r.Outcome)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", statusbar.Glyph(item.Icon), item.Text)
	fmt.Fprintf(&sb, "state:   %s\n", item.State)
	fmt.Fprintf(&sb, "detail:  %s\n", item.Tooltip)
	fmt.Fprintf(&sb, "daemon:  %s\n", r.URL)
	if r.Version != "" {
		fmt.Fprintf(&sb, "version: %s\n", r.Version)
	}
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
