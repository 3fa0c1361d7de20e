package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/internal/server"
	"github.com/canopyviz/canopy/pkg/metrics"
)

// serveCommand runs the HTTP job API until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		dataDir   string
		input     string
		noMetrics bool
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout pipeline over HTTP",
		Long: `Serve the layout pipeline over HTTP.

  POST   /api/v2/graph/start          start a job, returns {"job_id": ...}
  GET    /api/v2/graph/{id}/progress  server-sent progress events
  GET    /api/v2/graph/{id}/result    gzip graph document
  GET    /api/v2/graph/{id}/snapshot  GTOL snapshot
  GET    /api/v2/graph/{id}/search    label search (?q=, regex, limit)
  GET    /api/v2/graph/{id}           job status
  DELETE /api/v2/graph/{id}           cancel a job

Prometheus metrics are served at /metrics unless --no-metrics is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config.Server
			if addr == "" {
				addr = cfg.Addr
			}
			if input == "" {
				input = cfg.Input
			}
			return c.runServe(cmd.Context(), server.Options{
				Addr:              addr,
				DefaultInput:      input,
				DataDir:           dataDir,
				JobTTL:            cfg.JobTTL,
				ReadHeaderTimeout: cfg.ReadHeaderTimeout,
				Logger:            c.Logger,
			}, noMetrics, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory that start requests may name files in")
	cmd.Flags().StringVar(&input, "input", "", "Newick file built when a request names no input")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not serve /metrics")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the snapshot cache")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts server.Options, noMetrics, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if !noMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		m.Install()
		opts.Metrics = m.Handler()
	}

	opts.Template = c.layoutOptions("")
	s := server.New(runner, opts)
	printInfo("Serving on %s", StyleNumber.Render(opts.Addr))
	return s.Run(ctx)
}
