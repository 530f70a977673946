// Package config loads runtime configuration for the memosync CLI.
//
// Sources, in increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional JSON file selected with -c or -config.
//  3. Command-line flags (see parseFlags).
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://memos.example.com",
//	  "db_path": "/var/lib/memosync/memos.db",
//	  "auto_sync_interval": "1m",
//	  "max_backoff": "10m"
//	}
//
// The result is checked with (*Config).Validate before it is returned.
package config
