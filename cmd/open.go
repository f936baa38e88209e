package cmd

import (
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/output"
)

var openCmd = &cobra.Command{
	Use:     "open",
	Short:   "Open the Syncthing web UI in a browser",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := browser.OpenURL(c.APIURL); err != nil {
			return err
		}
		output.Info("Opened %s", c.APIURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
