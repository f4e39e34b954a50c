// Relaygate runs the signaling server and the capturing reverse proxy of a
// video meeting platform.
//
// Usage:
//
//	# Start the WebSocket signaling server
//	relaygate signal
//
//	# Start the capturing reverse proxy
//	relaygate proxy --config /etc/relaygate/config.yaml
//
//	# Inspect archived traffic records
//	relaygate archive query --service chat --since 1h
//
//	# Check a configuration file
//	relaygate config validate
package main

import "os"

func main() {
	os.Exit(Execute())
}
