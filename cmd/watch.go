package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/tui/monitor"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"monitor", "tui"},
	Short:   "Live status bar with an activity log",
	Long: `Launch a live-updating terminal view: the Syncthing status bar item at
the bottom and an activity log of status changes and connection notices.

Key bindings:
  r    Force refresh
  o    Open the Syncthing web UI
  c    Clear the activity log
  j/k  Scroll the log
  ?    Toggle help
  q    Quit`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		noWatch, _ := cmd.Flags().GetBool("no-watch")

		logger, closeLog, err := setupLogger(c)
		if err != nil {
			return err
		}
		defer closeLog()

		var app *monitorApp
		model := monitor.NewModel(c.APIURL, monitor.Actions{
			Refresh: func() {
				if app != nil {
					app.runner.Refresh()
				}
			},
			Open: browser.OpenURL,
		})
		p := tea.NewProgram(model, tea.WithAltScreen())

		app, err = newMonitorApp(c, logger, appOptions{watchEdits: !noWatch, history: true}, monitor.Sink(p))
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- app.run(ctx) }()

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		cancel()
		return <-done
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("no-watch", false, "do not watch for local edits")
}
