package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/stbar/internal/statusbar"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	// Status bar background per tone, like an editor status item.
	barStyles = map[statusbar.Tone]lipgloss.Style{
		statusbar.ToneNone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")),
		statusbar.ToneWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("16")).
			Background(warningColor),
		statusbar.ToneError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(errorColor).
			Bold(true),
	}

	levelStyles = map[Level]lipgloss.Style{
		LevelInfo:  lipgloss.NewStyle().Foreground(successColor),
		LevelWarn:  lipgloss.NewStyle().Foreground(warningColor),
		LevelError: lipgloss.NewStyle().Foreground(errorColor),
		LevelDebug: lipgloss.NewStyle().Foreground(mutedColor),
	}
)

func formatLevel(l Level) string {
	style, ok := levelStyles[l]
	if !ok {
		return string(l)
	}
	return style.Render(string(l))
}
