package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
telegram:
  token: "123:abc"
  channel: "@mychannel"
  operator_ids: [100, 200]
  log_chat_id: -1001234
  poll_timeout: "15s"
logging:
  level: debug
  console: true
resolver:
  endpoint: "https://api.example.com/url"
  api_key: "k"
  api_host: "api.example.com"
  timeout: "10s"
links:
  patterns:
    - 'terabox\.com'
broadcast:
  rate_per_sec: 25
  progress_every: 10
storage:
  path: "./data/users.db"
stats:
  report_cron: "0 9 * * *"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.PollTimeout.Std() != 15*time.Second {
		t.Fatalf("poll_timeout = %v", cfg.Telegram.PollTimeout.Std())
	}
	if len(cfg.Telegram.OperatorIDs) != 2 || cfg.Telegram.OperatorIDs[0] != 100 {
		t.Fatalf("operator_ids = %v", cfg.Telegram.OperatorIDs)
	}
	if cfg.Broadcast.RatePerSec != 25 || cfg.Broadcast.ProgressEvery != 10 {
		t.Fatalf("broadcast = %+v", cfg.Broadcast)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, `
telegram:
  token: "123:abc"
  channel: "@c"
links:
  patterns: ['terabox\.com']
`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.PollTimeout.Std() != 10*time.Second {
		t.Fatalf("default poll_timeout = %v", cfg.Telegram.PollTimeout.Std())
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("default level = %q", cfg.Logging.Level)
	}
	if cfg.Resolver.MaxInFlight != 500 {
		t.Fatalf("default max_in_flight = %d", cfg.Resolver.MaxInFlight)
	}
	if cfg.Broadcast.RatePerSec != 20 || cfg.Broadcast.ProgressEvery != 5 {
		t.Fatalf("broadcast defaults = %+v", cfg.Broadcast)
	}
	if cfg.Storage.Path == "" {
		t.Fatal("storage path must default")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML+"\nmystery_section:\n  a: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level fields must be rejected")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing token", strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1)},
		{"missing channel", strings.Replace(validYAML, `channel: "@mychannel"`, `channel: ""`, 1)},
		{"negative rate", strings.Replace(validYAML, "rate_per_sec: 25", "rate_per_sec: -1", 1)},
		{"bad duration", strings.Replace(validYAML, `poll_timeout: "15s"`, `poll_timeout: "soon"`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, tt.body))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "999:env")
	t.Setenv("RAPIDAPI_KEY", "env-key")

	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Resolver.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env override", cfg.Resolver.APIKey)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	cfg := m.Get()
	m.publish(cfg)

	select {
	case got := <-sub:
		if got != cfg {
			t.Fatal("published config mismatch")
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel must be closed after Unsubscribe")
	}
}

func TestPublishDropsStaleForSlowSubscriber(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second)

	got := <-sub
	if got != second {
		t.Fatal("slow subscriber must receive the latest config, not the stale one")
	}
	m.Unsubscribe(sub)
}
