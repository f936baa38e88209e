package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/stbar/internal/metrics"
	"github.com/marcus/stbar/internal/output"
	"github.com/marcus/stbar/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve status, history and metrics over HTTP",
	Long: `Poll Syncthing continuously and expose the result on a local address:

  GET  /status    current status as JSON
  GET  /history   recent transitions (?limit=N)
  GET  /metrics   Prometheus metrics
  POST /refresh   poll now
  GET  /healthz   liveness`,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			c.Serve.Addr = addr
		}
		noWatch, _ := cmd.Flags().GetBool("no-watch")

		logger, closeLog, err := setupLogger(c)
		if err != nil {
			return err
		}
		defer closeLog()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		latest := &server.Latest{}

		app, err := newMonitorApp(c, logger, appOptions{watchEdits: !noWatch, history: true},
			latest, metrics.New(reg))
		if err != nil {
			return err
		}
		defer app.close()

		handler := server.Router(server.Deps{
			Latest:   latest,
			History:  app.history,
			Gatherer: reg,
			Refresh:  app.runner.Refresh,
			Logger:   logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		output.Info("Serving on http://%s", c.Serve.Addr)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return app.run(ctx) })
		g.Go(func() error { return server.Serve(ctx, c.Serve.Addr, handler, logger) })
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	serveCmd.Flags().Bool("no-watch", false, "do not watch for local edits")
}
