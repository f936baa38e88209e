// Package monitor is the interactive status view: a status bar item over a
// scrolling activity log.
package monitor

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/statusbar"
)

// Level is the severity of an activity entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ActivityItem is one line of the activity log.
type ActivityItem struct {
	Timestamp time.Time
	Level     Level
	Message   string
}

// MaxActivity bounds the activity log.
const MaxActivity = 500

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 8

// TickMsg redraws relative times.
type TickMsg time.Time

// OutcomeMsg carries a poll outcome into the program.
type OutcomeMsg poller.Outcome

// LogMsg appends an activity entry.
type LogMsg ActivityItem

// openResultMsg reports the result of opening the web UI.
type openResultMsg struct{ err error }

// Actions are the side effects the model can trigger.
type Actions struct {
	Refresh func()
	Open    func(url string) error
}

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	APIURL string

	// Window dimensions
	Width  int
	Height int

	Outcome    poller.Outcome
	HasOutcome bool
	Item       statusbar.Item
	Activity   []ActivityItem

	ShowHelp    bool
	LastRefresh time.Time
	StartedAt   time.Time

	actions  Actions
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	now      func() time.Time
}

// NewModel creates a new monitor model
func NewModel(apiURL string, actions Actions) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	return Model{
		APIURL:    apiURL,
		StartedAt: time.Now(),
		actions:   actions,
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		viewport:  viewport.New(0, 0),
		now:       time.Now,
	}
}

// Sink returns a poller.Sink that forwards outcomes to the program.
func Sink(p *tea.Program) poller.Sink {
	return poller.SinkFunc(func(o poller.Outcome) {
		p.Send(OutcomeMsg(o))
	})
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.scheduleTick(), m.spinner.Tick)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.resizeViewport()
		return m, nil

	case TickMsg:
		return m, m.scheduleTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case OutcomeMsg:
		m.applyOutcome(poller.Outcome(msg))
		return m, nil

	case LogMsg:
		m.addActivity(ActivityItem(msg))
		return m, nil

	case openResultMsg:
		if msg.err != nil {
			m.addActivity(m.entry(LevelError, fmt.Sprintf("Open web UI: %v", msg.err)))
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		if m.actions.Refresh != nil {
			m.actions.Refresh()
			m.addActivity(m.entry(LevelDebug, "Refresh requested"))
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		return m, m.openWebUI()

	case key.Matches(msg, m.keys.Clear):
		m.Activity = nil
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		m.resizeViewport()
		return m, nil
	}

	// Scrolling keys go to the log viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) openWebUI() tea.Cmd {
	if m.actions.Open == nil {
		return nil
	}
	open, url := m.actions.Open, m.APIURL
	return func() tea.Msg {
		return openResultMsg{err: open(url)}
	}
}

// applyOutcome stores the outcome and logs notices and mode changes.
func (m *Model) applyOutcome(o poller.Outcome) {
	prev, had := m.Outcome.Mode, m.HasOutcome
	m.Outcome, m.HasOutcome = o, true
	m.Item = statusbar.Render(o)
	m.LastRefresh = o.At

	switch o.Notice {
	case poller.NoticeConnectionLost:
		msg := o.Notice.String()
		if o.Err != nil {
			msg += ": " + o.Err.Error()
		}
		m.addActivity(m.entryAt(o.At, LevelWarn, msg))
	case poller.NoticeConnectionRestored:
		m.addActivity(m.entryAt(o.At, LevelInfo, o.Notice.String()))
	}

	if o.Mode == poller.ModeError && o.RetryIn > 0 && o.Notice == poller.NoticeNone && !o.Cached {
		m.addActivity(m.entryAt(o.At, LevelDebug,
			fmt.Sprintf("Poll failed (%d in a row), backing off %s", o.ErrorCount, o.RetryIn)))
	}
	if !had || prev != o.Mode {
		m.addActivity(m.entryAt(o.At, LevelInfo, m.Item.Tooltip))
	}
}

func (m Model) entry(level Level, msg string) ActivityItem {
	return m.entryAt(m.now(), level, msg)
}

func (m Model) entryAt(at time.Time, level Level, msg string) ActivityItem {
	if at.IsZero() {
		at = m.now()
	}
	return ActivityItem{Timestamp: at, Level: level, Message: msg}
}

func (m *Model) addActivity(item ActivityItem) {
	m.Activity = append(m.Activity, item)
	if over := len(m.Activity) - MaxActivity; over > 0 {
		m.Activity = m.Activity[over:]
	}
	m.refreshViewport()
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg every second
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
