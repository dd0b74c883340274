// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
transport:
  url: "ws://127.0.0.1:6700"
  access_token: "secret"
  reconnect_interval: "10s"

store:
  path: "./blacklist.json"

audit:
  path: "./audit.db"

superusers:
  - "123456789"
  - "987654321"

confirm:
  timeout: "30s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport.URL != "ws://127.0.0.1:6700" {
		t.Errorf("transport.url = %q", cfg.Transport.URL)
	}
	if cfg.Transport.ReconnectInterval != 10*time.Second {
		t.Errorf("reconnect_interval = %v", cfg.Transport.ReconnectInterval)
	}
	if len(cfg.Superusers) != 2 || cfg.Superusers[0] != "123456789" {
		t.Errorf("superusers = %v", cfg.Superusers)
	}
	if cfg.Confirm.Timeout != 30*time.Second {
		t.Errorf("confirm.timeout = %v", cfg.Confirm.Timeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
transport:
  url: "ws://127.0.0.1:6700"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Path != "data/blacklist/blacklist.json" {
		t.Errorf("store.path default = %q", cfg.Store.Path)
	}
	if cfg.Audit.Path != "data/blacklist/audit.db" {
		t.Errorf("audit.path default = %q", cfg.Audit.Path)
	}
	if cfg.Confirm.Timeout != time.Minute {
		t.Errorf("confirm.timeout default = %v", cfg.Confirm.Timeout)
	}
	if cfg.Transport.ReconnectInterval != 5*time.Second {
		t.Errorf("reconnect_interval default = %v", cfg.Transport.ReconnectInterval)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("BLOCKGATE_TEST_TOKEN", "expanded-token")

	path := writeConfig(t, `
transport:
  url: "ws://127.0.0.1:6700"
  access_token: "${BLOCKGATE_TEST_TOKEN}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport.AccessToken != "expanded-token" {
		t.Errorf("access_token = %q, want expanded value", cfg.Transport.AccessToken)
	}
}

func TestLoad_MissingTransportURL(t *testing.T) {
	path := writeConfig(t, `
store:
  path: "./blacklist.json"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail without transport.url")
	}
	if !strings.Contains(err.Error(), "transport.url") {
		t.Errorf("error = %v, want mention of transport.url", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
transport:
  url: "ws://127.0.0.1:6700"
confirm:
  timeout: "soon"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail on unparseable duration")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail on missing file")
	}
}
