package main

import (
	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/cli"
	"securemeet/relaygate/pkg/proxy"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with defaults and environment overrides
applied, validate every field and check that the proxy service table can be
built.

Examples:
  relaygate config validate
  relaygate config validate --config /etc/relaygate/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if _, err := proxy.NewClassifier(cfg.Proxy.Services, cfg.Proxy.DefaultTarget); err != nil {
			return cli.NewConfigError("proxy.services", err.Error())
		}

		out := printer(cmd)
		out("Configuration valid (%s)\n", configSource(cmd))
		out("Signaling: %s%s\n", cfg.Signaling.ListenAddress, cfg.Signaling.Path)
		out("Proxy:     %s\n", cfg.Proxy.ListenAddress)
		printServices(out, cfg.Proxy)
		out("Export:    %s (flush %s)\n", cfg.Capture.Export.Path, cfg.Capture.FlushSchedule)
		if cfg.Capture.Archive.Enabled {
			out("Archive:   %s\n", cfg.Capture.Archive.Backend)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}
