package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/history"
	"github.com/marcus/stbar/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded status transitions",
	Long: `Show status transitions recorded by line, watch and serve. Use -f to
follow new transitions as they are recorded.`,
	Example: `  stbar history          # last 20 transitions
  stbar history -n 100   # last 100
  stbar history -f       # follow`,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		lines, _ := cmd.Flags().GetInt("lines")
		follow, _ := cmd.Flags().GetBool("follow")
		asJSON, _ := cmd.Flags().GetBool("json")

		if _, err := os.Stat(c.History.Path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), "No transitions recorded.")
			return nil
		}
		store, err := history.Open(c.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Tail(lines)
		if err != nil {
			return err
		}
		if asJSON {
			return output.JSON(entries)
		}

		out := cmd.OutOrStdout()
		var lastID int64
		for _, e := range entries {
			printEntry(out, e)
			lastID = e.ID
		}
		if !follow {
			if len(entries) == 0 {
				fmt.Fprintln(out, "No transitions recorded.")
			}
			return nil
		}
		if lastID == 0 {
			if tail, _ := store.Tail(1); len(tail) > 0 {
				lastID = tail[0].ID
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				newer, err := store.After(lastID, 100)
				if err != nil {
					return err
				}
				for _, e := range newer {
					printEntry(out, e)
					lastID = e.ID
				}
			}
		}
	},
}

func printEntry(w io.Writer, e history.Entry) {
	line := fmt.Sprintf("%s  %-8s ", e.At.Local().Format("2006-01-02 15:04:05"),
		output.Subtle(output.FormatTimeAgo(e.At)))
	if e.PrevMode != "" {
		line += output.FormatMode(e.PrevMode) + " → "
	}
	line += output.FormatMode(e.Mode)
	if e.Notice != "" {
		line += "  " + e.Notice
	}
	if e.Error != "" {
		line += "  " + output.Subtle(e.Error)
	}
	fmt.Fprintln(w, line)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("lines", "n", 20, "number of transitions to show")
	historyCmd.Flags().BoolP("follow", "f", false, "follow new transitions")
	historyCmd.Flags().Bool("json", false, "output as JSON")
}
