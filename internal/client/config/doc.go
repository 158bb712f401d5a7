// Package config loads runtime configuration for sealctl, the primary-side
// operator tool.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. .env file and SEALCTL_* environment variables.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   custodian endpoint (URL for http, host:port for grpc)
//	-m string   custodian transport, "http" or "grpc"
//	-t string   custodian bearer token
//	-b string   response store backend: sqlite, postgres or s3
//	-d string   response store DSN (sqlite / postgres)
//	-o int      custodian call timeout (seconds)
//	-i int      health watch interval (seconds)
//	-l string   log level
//
// The local key is deliberately not a flag: it would end up in shell history
// and process listings. Use SEALCTL_LOCAL_KEY, the JSON file, or the prompt.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "8s" or
// integer nanoseconds:
//
//	{
//	  "custodian_endpoint": "http://10.8.0.2:8081",
//	  "custodian_timeout": "8s",
//	  "store_backend": "postgres",
//	  "database_dsn": "postgres://..."
//	}
package config
