package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/output"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show stbar and Syncthing versions",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "stbar %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

		daemon, _ := cmd.Flags().GetBool("daemon")
		if !daemon {
			return nil
		}
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		v, err := newClient(c).Version(cmd.Context())
		if err != nil {
			output.Warning("syncthing version: %v", err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "syncthing %s (%s/%s)\n", v.Version, v.OS, v.Arch)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("daemon", false, "also query the Syncthing daemon version")
}
