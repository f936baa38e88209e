package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage stbar configuration",
	GroupID: "setup",
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List effective config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		for _, key := range config.Keys() {
			val, err := loader.Get(key)
			if err != nil {
				return err
			}
			if key == "api_key" && val != "" {
				val = maskKey(val)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, val)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		val, err := loader.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value in the config file",
	Long: `Set a config value in the config file. Lists (watch.paths,
watch.ignore) take comma-separated values. Durations use Go syntax: 30s, 5m.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.SetInFile(path, args[0], args[1]); err != nil {
			return err
		}
		output.Success("Set %s in %s", args[0], path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
}
