package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/output"
	"github.com/marcus/stbar/internal/syncthing"
)

var errChecksFailed = errors.New("some checks failed")

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Run diagnostic checks against the Syncthing API",
	GroupID: "setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !runDoctor(cmd.Context(), c, loader.Path()) {
			return errChecksFailed
		}
		return nil
	},
}

// check is one diagnostic result.
type check struct {
	Label  string
	OK     bool
	Detail string
}

// diagnose runs every check; later API checks are skipped once the daemon
// is unreachable or rejects the key.
func diagnose(ctx context.Context, c *config.Config, cfgPath string) []check {
	var checks []check
	add := func(label string, ok bool, detail string) {
		checks = append(checks, check{Label: label, OK: ok, Detail: detail})
	}

	if _, err := os.Stat(cfgPath); err == nil {
		add("Config file", true, cfgPath)
	} else {
		add("Config file", true, "not found, using defaults and environment")
	}

	add("API key", c.HasAPIKey(), keyDetail(c))

	client := newClient(c)
	if err := client.Ping(ctx); err != nil {
		add("Daemon reachable", false, err.Error())
		return checks
	}
	add("Daemon reachable", true, c.APIURL)

	if v, err := client.Version(ctx); err == nil {
		add("Daemon version", true, fmt.Sprintf("%s (%s/%s)", v.Version, v.OS, v.Arch))
	} else {
		add("Daemon version", false, err.Error())
	}

	for _, path := range syncthing.Endpoints {
		body, err := client.Probe(ctx, path)
		if err != nil {
			add(path, false, err.Error())
			continue
		}
		add(path, true, fmt.Sprintf("%d bytes", len(body)))
	}

	for _, p := range c.Watch.Paths {
		info, err := os.Stat(p)
		switch {
		case err != nil:
			add("Watch "+p, false, err.Error())
		case !info.IsDir():
			add("Watch "+p, false, "not a directory")
		default:
			add("Watch "+p, true, "")
		}
	}
	return checks
}

func keyDetail(c *config.Config) string {
	if !c.HasAPIKey() {
		return "set api_key or STGUIAPIKEY"
	}
	return maskKey(c.APIKey)
}

// maskKey shows only the last four characters of a key.
func maskKey(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}

func runDoctor(ctx context.Context, c *config.Config, cfgPath string) bool {
	allOK := true
	for _, ch := range diagnose(ctx, c, cfgPath) {
		output.Check(ch.OK, ch.Label, ch.Detail)
		allOK = allOK && ch.OK
	}
	return allOK
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
