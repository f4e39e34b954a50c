package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/cli"
	"securemeet/relaygate/pkg/server"
	"securemeet/relaygate/pkg/signaling/wsserver"
	"securemeet/relaygate/pkg/telemetry"
)

var signalFlags serviceFlags

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Start the WebSocket signaling server",
	Long: `Start the WebSocket signaling server.

Clients connect to the configured path (default /ws), join rooms of at most
two participants and exchange call setup, renegotiation, chat and file
messages through the server. Media never passes through it.

Examples:
  # Start with default config
  relaygate signal

  # Override listen address
  relaygate signal --listen 0.0.0.0:9000

  # Validate config without starting
  relaygate signal --dry-run`,
	RunE: runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)
	signalFlags.register(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := signalFlags.apply(cfg, &cfg.Signaling.ListenAddress); err != nil {
		return err
	}

	out := printer(cmd)
	if signalFlags.dryRun {
		out("Configuration valid (%s)\n", configSource(cmd))
		out("Signaling endpoint: %s%s\n", cfg.Signaling.ListenAddress, cfg.Signaling.Path)
		return nil
	}

	tel, err := telemetry.New(&cfg.Telemetry, Version, nil)
	if err != nil {
		return cli.NewConfigError("telemetry", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	ws := wsserver.New(&cfg.Signaling, tel.Metrics())
	tel.Health().RegisterCheck("registry", func(context.Context) error {
		if ws.Registry() == nil {
			return fmt.Errorf("connection registry not initialized")
		}
		return nil
	})

	handler := server.NewRouter(server.RouterOptions{
		CORS:      cfg.Signaling.CORS,
		Telemetry: cfg.Telemetry,
		Health:    tel.Health(),
		Metrics:   tel.Metrics(),
		Build:     buildInfo(),
		Routes:    []server.Route{{Pattern: cfg.Signaling.Path, Handler: ws}},
	})

	srv := server.New("signaling", &cfg.Signaling.ServerConfig, handler)
	// Upgraded connections are hijacked and not drained by http.Server.
	srv.OnShutdown(ws.Shutdown)

	watchConfig(ctx, cmd, tel)

	tel.Logger().Info("signaling server starting", "config", configSource(cmd), "path", cfg.Signaling.Path)
	return serve(ctx, "signaling", srv, tel, out)
}
