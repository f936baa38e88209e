package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/logging"
	"github.com/marcus/stbar/internal/output"
)

var (
	version    string
	configPath string

	// Set by loadConfig for every command that needs it.
	loader *config.Loader
	cfg    *config.Config
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "stbar",
	Short: "Syncthing status for your status bar",
	Long: `stbar - Syncthing sync status for terminals and status bars.

Polls the local Syncthing REST API and reports whether folders are synced,
syncing, waiting on recent edits, or unreachable. Output fits tmux, waybar,
polybar-style bars, or an interactive terminal view.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name"
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)
	cobra.AddTemplateFunc("add", func(a, b int) int { return a + b })

	usageTemplate := `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.
`
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Status Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/stbar/config.yaml)")
	pf.String("api-url", "", "Syncthing GUI/API address")
	pf.String("api-key", "", "Syncthing API key")
	pf.Bool("debug", false, "log raw API responses at debug level")
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"api-url": "api_url",
	"api-key": "api_key",
	"debug":   "debug",
}

// loadConfig reads the config with flags taking precedence over env, file
// and defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader = config.NewLoader(configPath)
	v := loader.Viper()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	c, err := loader.Load()
	if err != nil {
		return nil, err
	}
	cfg = c
	return c, nil
}

// setupLogger opens the configured log file for long-running commands.
func setupLogger(c *config.Config) (*slog.Logger, func(), error) {
	logger, closer, err := logging.Setup(c.Logging, c.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	logger = logger.With("pid", os.Getpid())
	return logger, func() { closer.Close() }, nil
}
