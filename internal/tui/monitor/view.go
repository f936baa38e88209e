package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/stbar/internal/output"
	"github.com/marcus/stbar/internal/statusbar"
)

// chromeHeight is the header, panel title and panel border rows.
const chromeHeight = 4

func (m Model) helpView() string {
	return m.help.View(m.keys)
}

func (m *Model) resizeViewport() {
	m.help.Width = m.Width
	helpHeight := lipgloss.Height(m.helpView())
	m.viewport.Width = max(m.Width-4, 0)
	m.viewport.Height = max(m.Height-chromeHeight-1-helpHeight, 0)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	lines := make([]string, 0, len(m.Activity))
	for _, a := range m.Activity {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			timestampStyle.Render(a.Timestamp.Local().Format("15:04:05")),
			formatLevel(a.Level),
			a.Message))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderView() string {
	bar := m.statusBar()
	if m.Width < MinWidth || m.Height < MinHeight {
		return bar
	}

	header := titleStyle.Render("stbar") + " " + subtleStyle.Render(m.APIURL)
	panel := panelStyle.Width(m.Width - 2).Render(
		panelTitleStyle.Render("Activity") + "\n" + m.viewport.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, panel, bar, m.helpView())
}

// statusBar renders the item as a full-width bar colored by its tone.
func (m Model) statusBar() string {
	style := barStyles[statusbar.ToneNone]
	if !m.HasOutcome {
		return style.Width(m.Width).Render(" " + subtleStyle.Render("Waiting for first poll…"))
	}
	item := m.Item
	if s, ok := barStyles[item.Tone]; ok {
		style = s
	}

	icon := statusbar.Glyph(item.Icon)
	if item.Spin {
		icon = m.spinner.View()
	}
	left := fmt.Sprintf(" %s %s  %s", icon, item.Text, item.Tooltip)
	right := m.checkedAgo() + " "

	if m.Width <= 0 {
		return style.Render(left + "  " + right)
	}
	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		left = ansi.Truncate(left, max(m.Width-lipgloss.Width(right)-1, 1), "…")
		gap = max(m.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	}
	return style.Width(m.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) checkedAgo() string {
	if m.LastRefresh.IsZero() {
		return ""
	}
	d := m.now().Sub(m.LastRefresh)
	switch {
	case m.Outcome.Cached:
		return "cached"
	case d < time.Second:
		return "checked now"
	case d < time.Minute:
		return fmt.Sprintf("checked %ds ago", int(d.Seconds()))
	default:
		return "checked " + output.FormatTimeAgo(m.LastRefresh)
	}
}
