// Package config provides configuration management for relaygate.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. One file configures both
// the signaling server and the capturing proxy; each command reads only the
// sections it needs.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("relaygate.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("relaygate.yaml")
//
// An empty path loads the built-in defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RELAYGATE_SECTION_FIELD.
// For example:
//
//   - RELAYGATE_SIGNALING_LISTEN_ADDRESS overrides signaling.listen_address
//   - RELAYGATE_PROXY_SERVICES_CHAT_TARGET overrides the target of the "chat" service
//   - RELAYGATE_CAPTURE_EXPORT_PATH overrides capture.export.path
//   - RELAYGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	signaling:
//	  listen_address: ":8000"
//	  outbox_timeout: 5s
//
//	proxy:
//	  listen_address: ":5002"
//	  services:
//	    - name: chat
//	      target: http://localhost:4200
//	      prefixes: ["/chat"]
//	      strip_prefix: true
//
//	capture:
//	  flush_schedule: "@every 5m"
//	  export:
//	    path: logs/network_traffic_unswnb15.csv
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and swaps in the new
// configuration after it validates. Listeners and upstream tables are fixed at
// startup; only the log level is applied to a running process.
package config
