package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"securemeet/relaygate/pkg/cli"
	"securemeet/relaygate/pkg/config"
)

const defaultConfigFile = "config.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relaygate",
	Short: "Signaling server and capturing reverse proxy",
	Long: `Relaygate runs the two backend services of a peer-to-peer meeting platform:

  signal  WebSocket signaling server: rooms of two, relay of call setup,
          renegotiation, chat and file messages between peers
  proxy   reverse proxy in front of the platform's HTTP services that
          records one traffic record per exchange and exports them to CSV

Both read the same YAML configuration file. Settings can be overridden with
RELAYGATE_<SECTION>_<FIELD> environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
}

// loadConfig loads and installs the configuration. A missing default
// config file yields the built-in defaults; a missing file named with
// --config is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Initialize(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// configSource describes where the configuration came from, for banners.
func configSource(cmd *cobra.Command) string {
	if _, err := os.Stat(cfgFile); err != nil && !cmd.Flags().Changed("config") {
		return "built-in defaults"
	}
	return cfgFile
}
