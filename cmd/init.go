package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/output"
	"github.com/marcus/stbar/internal/statusbar"
)

var (
	errURLRequired = errors.New("address is required")
	errBadScheme   = errors.New("address must start with http:// or https://")
)

// setupForm holds the values bound to the init form.
type setupForm struct {
	APIURL     string
	APIKey     string
	Format     string
	WatchPaths string
	SaveAnyway bool
}

func newSetupForm(c *config.Config) *setupForm {
	return &setupForm{
		APIURL:     c.APIURL,
		APIKey:     c.APIKey,
		Format:     c.Output.Format,
		WatchPaths: strings.Join(c.Watch.Paths, ", "),
	}
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errURLRequired
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errBadScheme
	}
	return nil
}

func (f *setupForm) build() *huh.Form {
	formatOptions := make([]huh.Option[string], 0, len(statusbar.Formats))
	for _, fm := range statusbar.Formats {
		formatOptions = append(formatOptions, huh.NewOption(string(fm), string(fm)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Syncthing address").
				Description("The GUI/API address, usually http://localhost:8384").
				Value(&f.APIURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API key").
				Description("Settings → General → API Key in the web UI").
				EchoMode(huh.EchoModePassword).
				Value(&f.APIKey),
			huh.NewSelect[string]().
				Title("Line format").
				Options(formatOptions...).
				Value(&f.Format),
			huh.NewInput().
				Title("Watch directories").
				Description("Edits here count as pending changes").
				Placeholder("~/Sync, ~/Notes").
				Value(&f.WatchPaths),
		).Title("stbar setup"),
	).WithTheme(huh.ThemeDracula())
}

// values returns the config keys the form writes.
func (f *setupForm) values() map[string]string {
	return map[string]string{
		"api_url":       strings.TrimSpace(f.APIURL),
		"api_key":       strings.TrimSpace(f.APIKey),
		"output.format": f.Format,
		"watch.paths":   f.WatchPaths,
	}
}

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Interactively configure the Syncthing connection",
	GroupID: "setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !output.IsTerminal() {
			return fmt.Errorf("init needs a terminal; use 'stbar config set' instead")
		}

		form := newSetupForm(c)
		if err := form.build().Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				output.Warning("setup cancelled")
				return nil
			}
			return err
		}

		if err := probeConnection(cmd.Context(), form); err != nil {
			output.Warning("could not verify the connection: %v", err)
			confirm := huh.NewConfirm().
				Title("Save anyway?").
				Value(&form.SaveAnyway)
			if err := confirm.Run(); err != nil || !form.SaveAnyway {
				return nil
			}
		} else {
			output.Success("Connected to Syncthing at %s", form.APIURL)
		}

		if err := config.UpdateFile(loader.Path(), form.values()); err != nil {
			return err
		}
		output.Success("Saved %s", loader.Path())
		return nil
	},
}

func probeConnection(ctx context.Context, f *setupForm) error {
	c := *cfg
	c.APIURL = strings.TrimRight(strings.TrimSpace(f.APIURL), "/")
	c.APIKey = strings.TrimSpace(f.APIKey)
	return newClient(&c).Ping(ctx)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
