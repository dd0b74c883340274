// Package config handles configuration loading for blockgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	transport:
//	  access_token: "${BLOCKGATE_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	transport:
//	  reconnect_interval: "5s"
//	confirm:
//	  timeout: "60s"
//
// # Configuration Sections
//
// Transport (OneBot v11 WebSocket endpoint):
//
//	transport:
//	  url: "ws://127.0.0.1:6700"
//	  access_token: "${BLOCKGATE_TOKEN}"
//	  reconnect_interval: "5s"
//
// Store and audit ledger:
//
//	store:
//	  path: "data/blacklist/blacklist.json"
//	audit:
//	  path: "data/blacklist/audit.db"
//
// Superusers (exempt from every block check):
//
//	superusers: ["123456789"]
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
