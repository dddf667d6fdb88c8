// ABOUTME: Configuration package for client and server
// ABOUTME: Documents the YAML layout and flag precedence
// Package config loads the YAML configuration shared by the mp3stream
// client and server. Command line flags override file values.
//
// Example configuration:
//
//	server:
//	  port: 11105
//	  media_dir: ../file/
//	  mdns: true
//	  websocket_port: 11106
//	client:
//	  volume: 80
//	log:
//	  level: debug
//	  outputs: [stdout, mp3stream-server.log]
package config
