package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/capture/export"
	"securemeet/relaygate/pkg/capture/retention"
	"securemeet/relaygate/pkg/capture/storage"
	"securemeet/relaygate/pkg/cli"
	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/proxy"
	"securemeet/relaygate/pkg/proxy/handlers"
	"securemeet/relaygate/pkg/proxy/middleware"
	"securemeet/relaygate/pkg/server"
	"securemeet/relaygate/pkg/telemetry"
)

var proxyFlags serviceFlags

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Start the capturing reverse proxy",
	Long: `Start the capturing reverse proxy.

Requests are classified by path prefix into the configured services and
forwarded to their upstreams. Every exchange, and every WebSocket frame of a
bridged connection, is recorded as a traffic record. Records are appended to
the CSV export file on the flush schedule, on POST /proxy/export, and once
more on shutdown.

Examples:
  # Start with default config (chat, meet, blockchain, userProfile on :5002)
  relaygate proxy

  # Start with custom config
  relaygate proxy --config /etc/relaygate/config.yaml

  # Validate config and print the service table
  relaygate proxy --dry-run`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyFlags.register(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := proxyFlags.apply(cfg, &cfg.Proxy.ListenAddress); err != nil {
		return err
	}

	classifier, err := proxy.NewClassifier(cfg.Proxy.Services, cfg.Proxy.DefaultTarget)
	if err != nil {
		return cli.NewConfigError("proxy.services", err.Error())
	}

	out := printer(cmd)
	if proxyFlags.dryRun {
		out("Configuration valid (%s)\n", configSource(cmd))
		printServices(out, cfg.Proxy)
		return nil
	}

	tel, err := telemetry.New(&cfg.Telemetry, Version, nil)
	if err != nil {
		return cli.NewConfigError("telemetry", err.Error())
	}
	logger := tel.Logger()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	exporter := export.NewFileExporter(cfg.Capture.Export.Path)
	tel.Health().RegisterCheck("export", exporter.CheckWritable)

	opts := capture.Options{
		MaxBuffered:   cfg.Capture.MaxBuffered,
		ExportTimeout: cfg.Capture.ExportTimeout,
		Metrics:       tel.Metrics(),
	}

	if cfg.Capture.Archive.Enabled {
		store, err := storage.New(cfg.Capture.Archive)
		if err != nil {
			return cli.NewCommandError("proxy", fmt.Errorf("failed to open archive: %w", err))
		}
		defer store.Close()

		opts.Archive = store
		tel.Health().RegisterCheck("archive", store.Ping)

		pruner := retention.NewPruner(store, cfg.Capture.Archive.Retention)
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start archive retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("archive retention scheduler started", "next_pruning", next)
			}
		}
	}

	pipeline := capture.NewPipeline(exporter, opts)

	scheduler := capture.NewScheduler(pipeline, cfg.Capture.FlushSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("capture.flush_schedule", err.Error())
	}
	defer scheduler.Stop()

	dispatcher := proxy.NewDispatcher(classifier, pipeline, proxy.Options{
		UpstreamTimeout:     cfg.Proxy.UpstreamTimeout,
		MaxIdleConnsPerHost: cfg.Proxy.MaxIdleConnsPerHost,
		Tracer:              tel.Tracer(),
		Metrics:             tel.Metrics(),
	})

	handler := server.NewRouter(server.RouterOptions{
		CORS:      cfg.Proxy.CORS,
		Telemetry: cfg.Telemetry,
		Health:    tel.Health(),
		Metrics:   tel.Metrics(),
		Build:     buildInfo(),
		Routes: []server.Route{
			{Pattern: "/proxy/status", Handler: handlers.NewStatusHandler(classifier.Services(), pipeline)},
			{Pattern: "/proxy/export", Handler: middleware.TimeoutMiddleware(cfg.Capture.ExportTimeout)(handlers.NewExportHandler(pipeline))},
		},
		Fallback: dispatcher,
	})

	srv := server.New("proxy", &cfg.Proxy.ServerConfig, handler)
	// Bridges must emit their CLOSE records before the final flush.
	srv.OnShutdown(dispatcher.Shutdown)
	srv.OnShutdown(finalFlush(pipeline, tel))

	watchConfig(ctx, cmd, tel)

	logger.Info("proxy starting",
		"config", configSource(cmd),
		"services", strings.Join(classifier.Services(), ","),
		"export_path", exporter.Path(),
		"archive", cfg.Capture.Archive.Enabled,
	)
	printServices(out, cfg.Proxy)
	return serve(ctx, "proxy", srv, tel, out)
}

// finalFlush exports whatever is still buffered once in-flight requests
// have drained.
func finalFlush(pipeline *capture.Pipeline, tel *telemetry.Telemetry) server.ShutdownHook {
	return func(ctx context.Context) error {
		pending := pipeline.Len()
		if err := pipeline.Close(ctx); err != nil {
			return fmt.Errorf("final export of %d records failed: %w", pending, err)
		}
		tel.Logger().Info("final export completed", "records", pending)
		return nil
	}
}

func printServices(out func(string, ...any), cfg config.ProxyConfig) {
	for _, svc := range cfg.Services {
		out("  %-12s %-28s %s\n", svc.Name, svc.Target, strings.Join(svc.Prefixes, " "))
	}
	if cfg.DefaultTarget != "" {
		out("  %-12s %s\n", capture.ServiceOther, cfg.DefaultTarget)
	}
}
