package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the memosync CLI.
type Config struct {
	// ServerURL is the memos server base URL. Empty means a local-only account.
	ServerURL   string `validate:"omitempty,url"`
	AccessToken string

	DBPath         string `validate:"required"`
	AttachmentsDir string `validate:"required"`

	// LogFile is rotated by size; empty logs to stderr.
	LogFile     string
	LogLevel    string `validate:"oneof=debug info warn error"`
	MetricsAddr string `validate:"omitempty,hostname_port"`

	// AutoSyncInterval drives the background timer trigger; 0 disables it.
	AutoSyncInterval   time.Duration `validate:"gte=0"`
	IdleSyncInterval   time.Duration `validate:"gt=0"`
	PendingCoalesce    time.Duration `validate:"gte=0"`
	ForegroundCoalesce time.Duration `validate:"gte=0"`
	BaseBackoff        time.Duration `validate:"gt=0"`
	MaxBackoff         time.Duration `validate:"gtefield=BaseBackoff"`

	RequestTimeout   time.Duration `validate:"gt=0"`
	PageSize         int           `validate:"gte=1,lte=1000"`
	GroupConcurrency int           `validate:"gte=1,lte=16"`
	CacheLimit       int           `validate:"gte=0"`
	// FullPullInterval spaces the full pulls that drop memos deleted on the
	// server; 0 pulls fully only without a sync anchor.
	FullPullInterval time.Duration `validate:"gte=0"`

	AliasRetention  time.Duration `validate:"gte=0"`
	AliasMaxEntries int           `validate:"gte=0"`

	BreakerMinRequests  uint32        `validate:"gte=1"`
	BreakerFailureRatio float64       `validate:"gt=0,lte=1"`
	BreakerOpenTimeout  time.Duration `validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "memosync.db"
	c.AttachmentsDir = "attachments"
	c.LogLevel = "info"

	c.AutoSyncInterval = 30 * time.Second
	c.IdleSyncInterval = 2 * time.Minute
	c.PendingCoalesce = 1500 * time.Millisecond
	c.ForegroundCoalesce = 3 * time.Second
	c.BaseBackoff = 5 * time.Second
	c.MaxBackoff = 5 * time.Minute

	c.RequestTimeout = 15 * time.Second
	c.PageSize = 100
	c.GroupConcurrency = 4
	c.CacheLimit = 200
	c.FullPullInterval = time.Hour

	c.AliasRetention = 30 * 24 * time.Hour
	c.AliasMaxEntries = 200

	c.BreakerMinRequests = 5
	c.BreakerFailureRatio = 0.6
	c.BreakerOpenTimeout = 30 * time.Second
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
