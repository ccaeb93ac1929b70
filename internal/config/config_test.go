package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 2700 {
		t.Errorf("Server.Port = %d, want 2700", cfg.Server.Port)
	}
	if cfg.Server.Parameters != "CFICU=ON,CP=IBM01141" {
		t.Errorf("Server.Parameters = %q", cfg.Server.Parameters)
	}
	if cfg.Server.ClientCodepage != "windows-1252" {
		t.Errorf("Server.ClientCodepage = %q", cfg.Server.ClientCodepage)
	}
	if cfg.Listing.PageLimit != 1000 {
		t.Errorf("Listing.PageLimit = %d, want 1000", cfg.Listing.PageLimit)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() config should be valid, got %v", errs)
	}
}

func TestServerConfig_RetryBackoff(t *testing.T) {
	cfg := ServerConfig{RetryBackoffMs: 250}
	if got := cfg.RetryBackoff(); got != 250*time.Millisecond {
		t.Errorf("RetryBackoff() = %v, want 250ms", got)
	}
}

func TestLoadFrom_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server:
  host: mf01
  user: jdoe
listing:
  page_limit: 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("NDVLINK_SERVER_PORT", "2800")

	v := viper.New()
	SetDefaultsOn(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("NDVLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Server.Host != "mf01" || cfg.Server.User != "jdoe" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.Port != 2800 {
		t.Errorf("Server.Port = %d, want env override 2800", cfg.Server.Port)
	}
	if cfg.Listing.PageLimit != 50 {
		t.Errorf("Listing.PageLimit = %d, want 50", cfg.Listing.PageLimit)
	}
	if cfg.Server.ClientCodepage != "windows-1252" {
		t.Errorf("default codepage lost: %q", cfg.Server.ClientCodepage)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaultsOn(v)
	v.Set("server.port", 0)
	v.Set("listing.page_limit", 0)

	_, err := LoadFrom(v)
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("LoadFrom error = %T %v, want ValidationErrors", err, err)
	}
	if len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs.Error(), "2 validation errors") {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty codepage", func(c *Config) { c.Server.ClientCodepage = " " }, "server.client_codepage"},
		{"empty transport", func(c *Config) { c.Server.Transport = "" }, "server.transport"},
		{"host with path", func(c *Config) { c.Server.Host = "mf01/x" }, "server.host"},
		{"negative retries", func(c *Config) { c.Server.ConnectRetries = -1 }, "server.connect_retries"},
		{"negative backoff", func(c *Config) { c.Server.RetryBackoffMs = -1 }, "server.retry_backoff_ms"},
		{"page limit too large", func(c *Config) { c.Listing.PageLimit = maxPageLimit + 1 }, "listing.page_limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"log size too large", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != "/tmp/xdg/ndvlink" {
		t.Errorf("ConfigDir() = %q", got)
	}
	if got := ConfigFile(); got != "/tmp/xdg/ndvlink/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}
