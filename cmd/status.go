package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/logging"
	"github.com/marcus/stbar/internal/output"
	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/server"
	"github.com/marcus/stbar/internal/statusbar"
	"github.com/marcus/stbar/internal/syncthing"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Check the sync status once",
	Long: `Check the Syncthing status once and print a report.

Without --sample the byte counters cannot show transfer activity, so the
state reflects folder completion only. With --sample the daemon is polled
twice and counter growth between the polls counts as syncing.`,
	Example: `  stbar status
  stbar status --json
  stbar status --line --format tmux
  stbar status --sample 3s`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		asLine, _ := cmd.Flags().GetBool("line")
		sample, _ := cmd.Flags().GetDuration("sample")

		o := checkStatus(cmd.Context(), c, sample)

		switch {
		case asJSON:
			return output.JSON(server.NewStatusResponse(o))
		case asLine:
			format, width, err := lineSettings(cmd, c)
			if err != nil {
				return err
			}
			line, err := statusbar.FormatLine(statusbar.Render(o), format, width)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		}

		report := output.Report{URL: c.APIURL, Outcome: o}
		if o.Mode != poller.ModeNoKey && o.Mode != poller.ModeError {
			if v, err := newClient(c).Version(cmd.Context()); err == nil {
				report.Version = v.Version
			}
		}
		return output.PrintReport(report)
	},
}

// checkStatus runs a single poll. A zero sample seeds the counters from the
// same snapshot so only folder completion decides syncing.
func checkStatus(ctx context.Context, c *config.Config, sample time.Duration) poller.Outcome {
	client := newClient(c)
	opts := pollerOptions(c, logging.Discard())

	if sample > 0 {
		opts.MinCheckInterval = sample
		p := poller.New(client, opts)
		first, _ := p.Poll(ctx)
		if first.Mode == poller.ModeNoKey || first.Mode == poller.ModeError {
			return first
		}
		select {
		case <-ctx.Done():
			return first
		case <-time.After(sample):
		}
		o, _ := p.Poll(ctx)
		return o
	}

	var snap *syncthing.Snapshot
	var fetchErr error
	if c.HasAPIKey() {
		snap, fetchErr = client.Snapshot(ctx)
	}
	p := poller.New(poller.FetcherFunc(func(context.Context) (*syncthing.Snapshot, error) {
		return snap, fetchErr
	}), opts)
	if snap != nil {
		p.Seed(syncthing.ParseTotals(snap.Connections.Body))
	}
	o, _ := p.Poll(ctx)
	return o
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "output as JSON")
	statusCmd.Flags().Bool("line", false, "print a single status line")
	statusCmd.Flags().StringP("format", "f", "", "line format: plain, ansi, tmux, waybar")
	statusCmd.Flags().Int("max-width", -1, "truncate the line to this many cells")
	statusCmd.Flags().Duration("sample", 0, "poll twice this far apart to detect transfers")
}
