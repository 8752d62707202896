package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgetkit.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[host]
theme = "dark"
listen = ":9000"

[widget]
max_height = 800
call_timeout = "10s"

[sandbox]
load_timeout = "5s"

[servers.kanban]
command = ["kanban-server", "--stdio"]

[servers.pizza]
url = "http://localhost:7001/mcp"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host.Theme != "dark" {
		t.Errorf("theme %q", cfg.Host.Theme)
	}
	if cfg.Host.Listen != ":9000" {
		t.Errorf("listen %q", cfg.Host.Listen)
	}
	if cfg.Host.Locale != "en-US" {
		t.Errorf("default locale lost: %q", cfg.Host.Locale)
	}
	if cfg.Widget.MaxHeight != 800 {
		t.Errorf("max height %d", cfg.Widget.MaxHeight)
	}
	if cfg.Widget.MinHeight != 80 {
		t.Errorf("default min height lost: %d", cfg.Widget.MinHeight)
	}
	if cfg.Widget.CallTimeout.Duration() != 10*time.Second {
		t.Errorf("call timeout %v", cfg.Widget.CallTimeout.Duration())
	}
	if cfg.Sandbox.LoadTimeout.Duration() != 5*time.Second {
		t.Errorf("load timeout %v", cfg.Sandbox.LoadTimeout.Duration())
	}
	if len(cfg.Servers["kanban"].Command) != 2 {
		t.Errorf("kanban command %v", cfg.Servers["kanban"].Command)
	}
	if cfg.Servers["pizza"].URL == "" {
		t.Error("pizza url lost")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WIDGETKIT_THEME", "sepia")
	t.Setenv("WIDGETKIT_MAX_HEIGHT", "900")

	path := writeConfig(t, `
[host]
theme = "dark"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host.Theme != "sepia" {
		t.Errorf("env theme not applied: %q", cfg.Host.Theme)
	}
	if cfg.Widget.MaxHeight != 900 {
		t.Errorf("env max height not applied: %d", cfg.Widget.MaxHeight)
	}
}

func TestValidateRejectsBadHeights(t *testing.T) {
	path := writeConfig(t, `
[widget]
min_height = 500
max_height = 100
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("inverted heights must be rejected")
	}
}

func TestValidateRejectsEmptyServer(t *testing.T) {
	path := writeConfig(t, `
[servers.broken]
env = ["X=1"]
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("server without command or url must be rejected")
	}
}

func TestBadDuration(t *testing.T) {
	path := writeConfig(t, `
[widget]
call_timeout = "soon"
`)
	if _, err := LoadFile(path); err == nil {
		t.Error("unparseable duration must be rejected")
	}
}
