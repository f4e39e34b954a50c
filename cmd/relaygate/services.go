package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/cli"
	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/server"
	"securemeet/relaygate/pkg/telemetry"
)

// serviceFlags are shared by the signal and proxy commands.
type serviceFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func (f *serviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate config without starting the server")
}

// apply overrides cfg with the flags and validates the result. listen
// points at the listener of the service being started.
func (f *serviceFlags) apply(cfg *config.Config, listen *string) error {
	if f.listenAddress != "" {
		*listen = f.listenAddress
	}
	if f.logLevel != "" {
		cfg.Telemetry.Logging.Level = f.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	return nil
}

func buildInfo() server.BuildInfo {
	return server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}
}

// watchConfig applies log level changes from the config file until ctx is
// done. Other settings need a restart.
func watchConfig(ctx context.Context, cmd *cobra.Command, tel *telemetry.Telemetry) {
	path := configSource(cmd)
	if path == "built-in defaults" {
		return
	}

	watcher, err := config.NewWatcher(path, tel.Logger())
	if err != nil {
		tel.Logger().Warn("config hot reload disabled", "error", err)
		return
	}

	go func() {
		err := watcher.Watch(ctx, func(cfg *config.Config) {
			if err := tel.Reload(&cfg.Telemetry); err != nil {
				tel.Logger().Error("failed to apply reloaded log level", "error", err)
				return
			}
			tel.Logger().Info("log level updated; other changes take effect after a restart",
				"level", cfg.Telemetry.Logging.Level)
		})
		if err != nil {
			tel.Logger().Error("config watcher stopped", "error", err)
		}
	}()
}

// serve runs srv until a shutdown signal, then flushes telemetry.
func serve(ctx context.Context, name string, srv *server.Server, tel *telemetry.Telemetry, out func(string, ...any)) error {
	if err := srv.Listen(); err != nil {
		return cli.NewCommandError(name, err)
	}

	out("%s listening on %s\n", name, srv.Addr())
	out("Press Ctrl+C to stop\n")

	srv.OnShutdown(tel.Shutdown)

	if err := srv.Start(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		return cli.NewCommandError(name, err)
	}
	out("%s stopped\n", name)
	return nil
}

func printer(cmd *cobra.Command) func(string, ...any) {
	return func(format string, args ...any) {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}
