// Package config loads runtime configuration for brainbox.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config or BRAINBOX_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   data directory for the file store backend
//	-b string   store backend: file, memory or s3
//	-s string   token signing secret (empty: per-install random secret)
//	-t int      session validity (hours)
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "168h" or
// integer nanoseconds:
//
//	{
//	  "data_dir": "/var/lib/brainbox",
//	  "store_backend": "s3",
//	  "session_validity": "168h",
//	  "s3_bucket": "brainbox",
//	  "s3_region": "us-east-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000/"
//	}
package config
