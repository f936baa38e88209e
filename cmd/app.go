package cmd

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/stbar/internal/config"
	"github.com/marcus/stbar/internal/history"
	"github.com/marcus/stbar/internal/poller"
	"github.com/marcus/stbar/internal/syncthing"
	"github.com/marcus/stbar/internal/workspace"
)

// newClient builds a REST client from config.
func newClient(c *config.Config) *syncthing.Client {
	client := syncthing.New(c.APIURL, c.APIKey)
	client.HTTP.Timeout = c.RequestTimeout
	return client
}

func pollerOptions(c *config.Config, logger *slog.Logger) poller.Options {
	return poller.Options{
		HasAPIKey:        c.HasAPIKey(),
		MinCheckInterval: c.MinCheckInterval,
		ActiveTimeout:    c.ActiveTimeout,
		MaxBackoff:       c.MaxBackoff,
		Debug:            c.Debug,
		Logger:           logger,
	}
}

func pollIntervals(c *config.Config) poller.Intervals {
	return poller.Intervals{
		Refresh:      c.RefreshInterval,
		Active:       c.ActiveInterval,
		EditDebounce: c.EditDebounce,
	}
}

// monitorApp is the long-running poll loop shared by watch, line and serve.
type monitorApp struct {
	cfg     *config.Config
	logger  *slog.Logger
	runner  *poller.Runner
	watcher *workspace.Watcher
	history *history.Store
}

type appOptions struct {
	watchEdits bool
	history    bool
}

func newMonitorApp(c *config.Config, logger *slog.Logger, opts appOptions, sinks ...poller.Sink) (*monitorApp, error) {
	p := poller.New(newClient(c), pollerOptions(c, logger))
	a := &monitorApp{
		cfg:    c,
		logger: logger,
		runner: poller.NewRunner(p, pollIntervals(c), logger, sinks...),
	}

	if opts.history && c.History.Enabled {
		store, err := history.Open(c.History.Path)
		if err != nil {
			// History is optional; the status itself still works.
			logger.Warn("history disabled", "path", c.History.Path, "err", err)
		} else {
			a.history = store
			a.runner.AddSink(history.NewRecorder(store, c.History.MaxRows, logger))
		}
	}

	if opts.watchEdits && len(c.Watch.Paths) > 0 {
		w, err := workspace.New(c.Watch.Paths, c.Watch.Ignore, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.watcher = w
		a.runner.WatchEdits(w.Events())
	}
	return a, nil
}

// reconfigure applies a reloaded config to the running loop.
func (a *monitorApp) reconfigure(c *config.Config, err error) {
	if err != nil {
		a.logger.Warn("config reload rejected", "err", err)
		return
	}
	a.cfg = c
	a.runner.Reconfigure(poller.Reconfig{
		Fetcher:   newClient(c),
		Options:   pollerOptions(c, a.logger),
		Intervals: pollIntervals(c),
	})
}

// run polls and watches until ctx is done.
func (a *monitorApp) run(ctx context.Context) error {
	if loader != nil {
		loader.Watch(a.reconfigure)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runner.Run(ctx) })
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *monitorApp) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
}
