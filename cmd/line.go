package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/statusbar"
)

var lineCmd = &cobra.Command{
	Use:   "line",
	Short: "Stream a status line whenever the status changes",
	Long: `Poll Syncthing continuously and print one line per status change.

Intended as a status bar module: tmux status-right via a background job,
waybar "custom" modules (--format waybar, one JSON object per line), or any
bar that reads lines from a long-running command.`,
	Example: `  stbar line --format waybar
  stbar line --format tmux --max-width 40
  stbar line --watch ~/Sync --watch ~/Notes`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if paths, _ := cmd.Flags().GetStringSlice("watch"); len(paths) > 0 {
			c.Watch.Paths = paths
		}
		noWatch, _ := cmd.Flags().GetBool("no-watch")

		format, width, err := lineSettings(cmd, c)
		if err != nil {
			return err
		}

		logger, closeLog, err := setupLogger(c)
		if err != nil {
			return err
		}
		defer closeLog()

		lw := statusbar.NewLineWriter(cmd.OutOrStdout(), format, width)
		app, err := newMonitorApp(c, logger, appOptions{watchEdits: !noWatch, history: true}, lw)
		if err != nil {
			return err
		}
		defer app.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("line output started", "format", format, "api_url", c.APIURL)
		if err := app.run(ctx); err != nil {
			return err
		}
		return lw.Err()
	},
}

// lineSettings resolves the line format and width from flags and config.
func lineSettings(cmd *cobra.Command, c *config.Config) (statusbar.Format, int, error) {
	name := c.Output.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		name = f
	}
	format, err := statusbar.ParseFormat(name)
	if err != nil {
		return "", 0, err
	}
	width := c.Output.MaxWidth
	if w, _ := cmd.Flags().GetInt("max-width"); w >= 0 {
		width = w
	}
	return format, width, nil
}

func init() {
	rootCmd.AddCommand(lineCmd)
	lineCmd.Flags().StringP("format", "f", "", "line format: plain, ansi, tmux, waybar")
	lineCmd.Flags().Int("max-width", -1, "truncate lines to this many cells")
	lineCmd.Flags().StringSlice("watch", nil, "directories whose edits count as activity")
	lineCmd.Flags().Bool("no-watch", false, "do not watch for local edits")
}
