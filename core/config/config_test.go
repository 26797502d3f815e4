package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Catalog.BaseURL = "https://store.example.com/api"
	cfg.Backend.BaseURL = "https://store.example.com/api"
	cfg.Payment.CallbackURL = "https://store.example.com/api/duitku/callback"
	return cfg
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, want longpoll default", cfg.Telegram.RunMode)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("api.port = %d, want 3000 default", cfg.API.Port)
	}
}

func TestNormalizeTrimsBaseURLs(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.BaseURL = "https://store.example.com/api/"
	cfg.Backend.BaseURL = " https://store.example.com/api/ "
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if strings.HasSuffix(cfg.Catalog.BaseURL, "/") {
		t.Errorf("catalog.base_url kept trailing slash: %q", cfg.Catalog.BaseURL)
	}
	if cfg.Backend.BaseURL != "https://store.example.com/api" {
		t.Errorf("backend.base_url = %q", cfg.Backend.BaseURL)
	}
}

func TestNormalizeRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing catalog url", func(c *Config) { c.Catalog.BaseURL = "" }},
		{"missing backend url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"missing callback url", func(c *Config) { c.Payment.CallbackURL = "" }},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }},
		{"bad rate limit exclusion", func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"webhook"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadDatabaseSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
telegram:
  token: "123:abc"
catalog:
  base_url: "https://store.example.com/api"
backend:
  base_url: "https://store.example.com/api"
payment:
  callback_url: "https://store.example.com/api/duitku/callback"
database:
  host: "db.internal"
  port: "5432"
  user: "topup"
  name: "topupbot"
  sslmode: "disable"
  max_connections: 8
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Database.Enabled() {
		t.Fatal("database section with host should be enabled")
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != "5432" {
		t.Errorf("database address = %s:%s", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "topup" || cfg.Database.Name != "topupbot" {
		t.Errorf("database identity = %+v", cfg.Database)
	}
	if cfg.Database.MaxConnections != 8 {
		t.Errorf("max_connections = %d", cfg.Database.MaxConnections)
	}
}

func TestDatabaseDisabledWithoutHost(t *testing.T) {
	var db DatabaseConfig
	if db.Enabled() {
		t.Fatal("empty database config should be disabled")
	}
}

func TestNormalizeWebhookMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url/listen/port")
	}
	cfg.Webhook.URL = "https://bot.example.com/tg"
	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
}
