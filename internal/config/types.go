package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Links     LinksConfig     `yaml:"links"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Storage   StorageConfig   `yaml:"storage"`
	Stats     StatsConfig     `yaml:"stats"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`

	// Channel is the force-subscribe channel ("@name" or numeric id).
	Channel string `yaml:"channel"`

	// OperatorIDs may invoke /stats and /broadcast.
	OperatorIDs []int64 `yaml:"operator_ids"`

	// LogChatID receives event lines and warnings (0 disables).
	LogChatID int64 `yaml:"log_chat_id"`

	OwnerURL    string   `yaml:"owner_url"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string         `yaml:"level"`
	Console bool           `yaml:"console"`
	File    LoggingFile    `yaml:"file"`
	Channel LoggingChannel `yaml:"channel"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingChannel struct {
	Enabled    bool   `yaml:"enabled"`
	MinLevel   string `yaml:"min_level"`
	RatePerSec int    `yaml:"rate_per_sec"`
}

type ResolverConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	APIHost  string `yaml:"api_host"`

	// MaxInFlight bounds concurrent resolver calls system-wide.
	// Callers beyond the bound wait for a slot.
	MaxInFlight int      `yaml:"max_in_flight"`
	Timeout     Duration `yaml:"timeout"`
}

type LinksConfig struct {
	// Patterns are matched against free text to detect share links.
	Patterns []string `yaml:"patterns"`

	WebAppURL    string `yaml:"webapp_url"`
	PreviewImage string `yaml:"preview_image"`
	WelcomeVideo string `yaml:"welcome_video"`
}

type BroadcastConfig struct {
	// RatePerSec bounds outbound sends during a fan-out. The default of 20
	// keeps roughly 50ms between attempts.
	RatePerSec    int `yaml:"rate_per_sec"`
	ProgressEvery int `yaml:"progress_every"`
}

type StorageConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type StatsConfig struct {
	// ReportCron schedules the activity report posted to the log channel.
	// Empty disables it.
	ReportCron string `yaml:"report_cron"`
}

// Duration is a yaml-friendly wrapper over time.Duration ("50ms", "10s", "1m").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Validate rejects configs that cannot be run or hot-reloaded.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.Telegram.Channel) == "" {
		return fmt.Errorf("telegram.channel is required")
	}
	if c.Resolver.MaxInFlight < 0 {
		return fmt.Errorf("resolver.max_in_flight must be >= 0")
	}
	if c.Broadcast.RatePerSec < 0 {
		return fmt.Errorf("broadcast.rate_per_sec must be >= 0")
	}
	if c.Broadcast.ProgressEvery < 0 {
		return fmt.Errorf("broadcast.progress_every must be >= 0")
	}
	for _, p := range c.Links.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("links.patterns must not contain empty entries")
		}
	}
	return nil
}

// ApplyDefaults fills zero values that have sane operational defaults.
func (c *Config) ApplyDefaults() {
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = Duration(10 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Resolver.MaxInFlight == 0 {
		c.Resolver.MaxInFlight = 500
	}
	if c.Resolver.Timeout <= 0 {
		c.Resolver.Timeout = Duration(30 * time.Second)
	}
	if c.Broadcast.RatePerSec == 0 {
		c.Broadcast.RatePerSec = 20
	}
	if c.Broadcast.ProgressEvery == 0 {
		c.Broadcast.ProgressEvery = 5
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./teraboxbot.db"
	}
	if c.Storage.BusyTimeout <= 0 {
		c.Storage.BusyTimeout = Duration(5 * time.Second)
	}
}

// ApplyEnv overlays secrets from the environment (populated from .env by
// cmd/bot) so they can stay out of the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		c.Resolver.APIKey = v
	}
}
