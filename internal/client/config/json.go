package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/memosync/internal/flagx"
	"github.com/dmitrijs2005/memosync/internal/timex"
)

// JsonConfig mirrors Config for the JSON file. Intervals use timex.Duration
// so they can be written as "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerURL      string `json:"server_url"`
	AccessToken    string `json:"access_token"`
	DBPath         string `json:"db_path"`
	AttachmentsDir string `json:"attachments_dir"`
	LogFile        string `json:"log_file"`
	LogLevel       string `json:"log_level"`
	MetricsAddr    string `json:"metrics_addr"`

	AutoSyncInterval   timex.Duration `json:"auto_sync_interval"`
	IdleSyncInterval   timex.Duration `json:"idle_sync_interval"`
	PendingCoalesce    timex.Duration `json:"pending_coalesce"`
	ForegroundCoalesce timex.Duration `json:"foreground_coalesce"`
	BaseBackoff        timex.Duration `json:"base_backoff"`
	MaxBackoff         timex.Duration `json:"max_backoff"`

	RequestTimeout   timex.Duration `json:"request_timeout"`
	PageSize         int            `json:"page_size"`
	GroupConcurrency int            `json:"group_concurrency"`
	CacheLimit       int            `json:"cache_limit"`
	FullPullInterval timex.Duration `json:"full_pull_interval"`

	AliasRetention  timex.Duration `json:"alias_retention"`
	AliasMaxEntries int            `json:"alias_max_entries"`

	BreakerMinRequests  uint32         `json:"breaker_min_requests"`
	BreakerFailureRatio float64        `json:"breaker_failure_ratio"`
	BreakerOpenTimeout  timex.Duration `json:"breaker_open_timeout"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		ServerURL:           c.ServerURL,
		AccessToken:         c.AccessToken,
		DBPath:              c.DBPath,
		AttachmentsDir:      c.AttachmentsDir,
		LogFile:             c.LogFile,
		LogLevel:            c.LogLevel,
		MetricsAddr:         c.MetricsAddr,
		AutoSyncInterval:    timex.Duration{Duration: c.AutoSyncInterval},
		IdleSyncInterval:    timex.Duration{Duration: c.IdleSyncInterval},
		PendingCoalesce:     timex.Duration{Duration: c.PendingCoalesce},
		ForegroundCoalesce:  timex.Duration{Duration: c.ForegroundCoalesce},
		BaseBackoff:         timex.Duration{Duration: c.BaseBackoff},
		MaxBackoff:          timex.Duration{Duration: c.MaxBackoff},
		RequestTimeout:      timex.Duration{Duration: c.RequestTimeout},
		PageSize:            c.PageSize,
		GroupConcurrency:    c.GroupConcurrency,
		CacheLimit:          c.CacheLimit,
		FullPullInterval:    timex.Duration{Duration: c.FullPullInterval},
		AliasRetention:      timex.Duration{Duration: c.AliasRetention},
		AliasMaxEntries:     c.AliasMaxEntries,
		BreakerMinRequests:  c.BreakerMinRequests,
		BreakerFailureRatio: c.BreakerFailureRatio,
		BreakerOpenTimeout:  timex.Duration{Duration: c.BreakerOpenTimeout},
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.ServerURL = jc.ServerURL
	c.AccessToken = jc.AccessToken
	c.DBPath = jc.DBPath
	c.AttachmentsDir = jc.AttachmentsDir
	c.LogFile = jc.LogFile
	c.LogLevel = jc.LogLevel
	c.MetricsAddr = jc.MetricsAddr
	c.AutoSyncInterval = jc.AutoSyncInterval.Duration
	c.IdleSyncInterval = jc.IdleSyncInterval.Duration
	c.PendingCoalesce = jc.PendingCoalesce.Duration
	c.ForegroundCoalesce = jc.ForegroundCoalesce.Duration
	c.BaseBackoff = jc.BaseBackoff.Duration
	c.MaxBackoff = jc.MaxBackoff.Duration
	c.RequestTimeout = jc.RequestTimeout.Duration
	c.PageSize = jc.PageSize
	c.GroupConcurrency = jc.GroupConcurrency
	c.CacheLimit = jc.CacheLimit
	c.FullPullInterval = jc.FullPullInterval.Duration
	c.AliasRetention = jc.AliasRetention.Duration
	c.AliasMaxEntries = jc.AliasMaxEntries
	c.BreakerMinRequests = jc.BreakerMinRequests
	c.BreakerFailureRatio = jc.BreakerFailureRatio
	c.BreakerOpenTimeout = jc.BreakerOpenTimeout.Duration
}

// parseJson overlays cfg with the JSON file named by -c or -config in args.
// Keys missing from the file keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
