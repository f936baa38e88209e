package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets variables a developer machine might carry.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STGUIAPIKEY", "STGUIADDRESS", "STBAR_API_KEY", "STBAR_API_URL", "STBAR_OUTPUT_FORMAT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// writeTestConfig writes a YAML config into a temp dir and returns its path.
func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8384" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.HasAPIKey() {
		t.Error("no key expected by default")
	}
	checks := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"refresh", cfg.RefreshInterval, 30 * time.Second},
		{"active", cfg.ActiveInterval, 5 * time.Second},
		{"min check", cfg.MinCheckInterval, 2 * time.Second},
		{"active timeout", cfg.ActiveTimeout, 10 * time.Second},
		{"debounce", cfg.EditDebounce, 3 * time.Second},
		{"request timeout", cfg.RequestTimeout, 5 * time.Second},
		{"max backoff", cfg.MaxBackoff, 5 * time.Minute},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Output.Format != "plain" || cfg.History.MaxRows != 5000 || !cfg.History.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Logging.File == "" || cfg.History.Path == "" {
		t.Error("derived paths should be filled")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, `
api_url: https://sync.example.com:8384/
api_key: abc123
refresh_interval: 1m
watch:
  paths: [/srv/notes, /srv/docs]
output:
  format: tmux
  max_width: 30
`)
	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://sync.example.com:8384" {
		t.Errorf("APIURL = %q (trailing slash should be trimmed)", cfg.APIURL)
	}
	if cfg.APIKey != "abc123" || cfg.RefreshInterval != time.Minute {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.Watch.Paths) != 2 || cfg.Watch.Paths[1] != "/srv/docs" {
		t.Errorf("watch paths = %v", cfg.Watch.Paths)
	}
	if cfg.Output.Format != "tmux" || cfg.Output.MaxWidth != 30 {
		t.Errorf("output = %+v", cfg.Output)
	}
	// Untouched keys keep their defaults.
	if cfg.ActiveInterval != 5*time.Second {
		t.Errorf("ActiveInterval = %v", cfg.ActiveInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, "api_key: from-file\noutput:\n  format: tmux\n")
	t.Setenv("STBAR_API_KEY", "from-env")
	t.Setenv("STBAR_OUTPUT_FORMAT", "waybar")

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.APIKey)
	}
	if cfg.Output.Format != "waybar" {
		t.Errorf("Output.Format = %q, want waybar", cfg.Output.Format)
	}
}

func TestSyncthingEnvNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("STGUIAPIKEY", "st-key")
	t.Setenv("STGUIADDRESS", "127.0.0.1:9999")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "none.yaml")).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "st-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.APIURL != "http://127.0.0.1:9999" {
		t.Errorf("APIURL = %q, want scheme added", cfg.APIURL)
	}
}

func TestValidateRejects(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad scheme", "api_url: ftp://host\n", "api_url"},
		{"zero interval", "refresh_interval: 0s\n", "refresh_interval"},
		{"bad format", "output:\n  format: xml\n", "unknown output format"},
		{"negative width", "output:\n  max_width: -1\n", "max_width"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeTestConfig(t, tt.body)).Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSetInFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := SetInFile(path, "api_key", "k1"); err != nil {
		t.Fatalf("SetInFile: %v", err)
	}
	if err := SetInFile(path, "watch.paths", "/a, /b"); err != nil {
		t.Fatalf("SetInFile list: %v", err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "k1" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if len(cfg.Watch.Paths) != 2 || cfg.Watch.Paths[0] != "/a" {
		t.Errorf("watch.paths = %v", cfg.Watch.Paths)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config perms = %v, want 0600", info.Mode().Perm())
	}
}

func TestSetInFileValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SetInFile(path, "refresh_interval", "soon"); err == nil {
		t.Error("expected error for an unparsable duration")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid value should not create the file")
	}
}

func TestUnknownKeySuggests(t *testing.T) {
	err := SetInFile(filepath.Join(t.TempDir(), "c.yaml"), "refresh_intervl", "1m")
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
	if !strings.Contains(err.Error(), "refresh_interval") {
		t.Errorf("suggestion missing from %q", err)
	}
}

func TestGet(t *testing.T) {
	clearEnv(t)
	l := NewLoader(writeTestConfig(t, "watch:\n  paths: [/x, /y]\n"))
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	got, err := l.Get("watch.paths")
	if err != nil || got != "/x,/y" {
		t.Errorf("Get(watch.paths) = %q, %v", got, err)
	}
	got, err = l.Get("serve.addr")
	if err != nil || got != "127.0.0.1:8385" {
		t.Errorf("Get(serve.addr) = %q, %v", got, err)
	}
	if _, err := l.Get("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(nope) err = %v", err)
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted at %d: %q > %q", i, keys[i-1], keys[i])
		}
	}
	if !IsKey("history.max_rows") || IsKey("history") {
		t.Error("IsKey mismatch")
	}
}
