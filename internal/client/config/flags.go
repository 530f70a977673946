package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/memosync/internal/flagx"
)

var knownFlags = []string{"-s", "-d", "-f", "-l", "-v", "-m", "-i"}

// parseFlags overlays cfg with command-line flags:
//
//	-s string   memos server URL
//	-d string   local database path
//	-f string   attachments directory
//	-l string   log file
//	-v string   log level
//	-m string   metrics listen address
//	-i int      auto sync interval in seconds, 0 disables it
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "memos server URL")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	fs.StringVar(&cfg.AttachmentsDir, "f", cfg.AttachmentsDir, "attachments directory")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	interval := fs.Int("i", int(cfg.AutoSyncInterval.Seconds()), "auto sync interval (in seconds)")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.AutoSyncInterval = time.Duration(*interval) * time.Second
	return nil
}
