// Package config loads stbar settings from the YAML config file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/viper"

	"github.com/marcus/stbar/internal/statusbar"
)

// EnvPrefix prefixes every environment override, e.g. STBAR_API_KEY.
const EnvPrefix = "STBAR"

// ErrUnknownKey is returned for keys that are not part of the config.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds all application configuration.
type Config struct {
	APIURL           string        `mapstructure:"api_url"`
	APIKey           string        `mapstructure:"api_key"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	ActiveInterval   time.Duration `mapstructure:"active_interval"`
	MinCheckInterval time.Duration `mapstructure:"min_check_interval"`
	ActiveTimeout    time.Duration `mapstructure:"active_timeout"`
	EditDebounce     time.Duration `mapstructure:"edit_debounce"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	Debug            bool          `mapstructure:"debug"`

	Watch   WatchConfig   `mapstructure:"watch"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	History HistoryConfig `mapstructure:"history"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// WatchConfig selects the directories whose edits count as activity.
type WatchConfig struct {
	Paths  []string `mapstructure:"paths"`
	Ignore []string `mapstructure:"ignore"` // glob patterns matched against base names
}

// OutputConfig controls status line rendering.
type OutputConfig struct {
	Format   string `mapstructure:"format"`
	MaxWidth int    `mapstructure:"max_width"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File   string `mapstructure:"file"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// HistoryConfig controls the transition history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	MaxRows int    `mapstructure:"max_rows"`
}

// ServeConfig holds the status HTTP listener settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Dir returns the stbar config directory.
func Dir() string { return filepath.Join(xdg.ConfigHome, "stbar") }

// DefaultPath is the config file used when none is given.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// DefaultLogPath is the log file under the XDG state directory.
func DefaultLogPath() string { return filepath.Join(xdg.StateHome, "stbar", "stbar.log") }

// DefaultHistoryPath is the history database under the XDG data directory.
func DefaultHistoryPath() string { return filepath.Join(xdg.DataHome, "stbar", "history.db") }

var defaults = map[string]any{
	"api_url":            "http://localhost:8384",
	"api_key":            "",
	"refresh_interval":   "30s",
	"active_interval":    "5s",
	"min_check_interval": "2s",
	"active_timeout":     "10s",
	"edit_debounce":      "3s",
	"request_timeout":    "5s",
	"max_backoff":        "5m",
	"debug":              false,
	"watch.paths":        []string{"."},
	"watch.ignore":       []string{".git", ".stfolder", ".stversions", "*.tmp", "~*"},
	"output.format":      string(statusbar.FormatPlain),
	"output.max_width":   0,
	"logging.file":       "",
	"logging.level":      "INFO",
	"logging.format":     "json",
	"history.enabled":    true,
	"history.path":       "",
	"history.max_rows":   5000,
	"serve.addr":         "127.0.0.1:8385",
}

// Keys returns every known config key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known config key.
func IsKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Suggest returns known keys resembling key, best match first.
func Suggest(key string) []string {
	matches := fuzzy.Find(strings.ToLower(key), Keys())
	out := make([]string, 0, 3)
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// UnknownKeyError formats ErrUnknownKey with suggestions.
func UnknownKeyError(key string) error {
	if s := Suggest(key); len(s) > 0 {
		return fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownKey, key, strings.Join(s, ", "))
	}
	return fmt.Errorf("%w %q", ErrUnknownKey, key)
}

// Loader owns a viper instance bound to one config file.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for path, or for DefaultPath when empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Syncthing's own variables are honoured after ours.
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "STGUIAPIKEY")
	_ = v.BindEnv("api_url", EnvPrefix+"_API_URL", "STGUIADDRESS")
	return &Loader{v: v, path: path}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Path returns the config file path.
func (l *Loader) Path() string { return l.path }

// Load reads the config file if present and decodes the merged settings.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the reloaded config whenever the file changes. A
// decode or validation failure is passed as err with a nil config.
func (l *Loader) Watch(fn func(*Config, error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.decode())
	})
	l.v.WatchConfig()
}

// Get returns the effective value of key as a string.
func (l *Loader) Get(key string) (string, error) {
	if !IsKey(key) {
		return "", UnknownKeyError(key)
	}
	v := l.v.Get(key)
	if list, ok := v.([]string); ok {
		return strings.Join(list, ","), nil
	}
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ","), nil
	}
	return fmt.Sprint(v), nil
}

// SetInFile writes key=value into the config file at path, leaving other
// keys as they are on disk. Environment overrides are never persisted.
func SetInFile(path, key, value string) error {
	return UpdateFile(path, map[string]string{key: value})
}

// UpdateFile writes several keys at once. Values are validated by decoding
// the result before anything is written.
func UpdateFile(path string, values map[string]string) error {
	if path == "" {
		path = DefaultPath()
	}
	for k := range values {
		if !IsKey(k) {
			return UnknownKeyError(k)
		}
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	for k, val := range values {
		if strings.HasSuffix(k, "paths") || strings.HasSuffix(k, "ignore") {
			file.Set(k, splitList(val))
			continue
		}
		file.Set(k, val)
	}

	check := viper.New()
	for k, val := range defaults {
		check.SetDefault(k, val)
	}
	if err := check.MergeConfigMap(file.AllSettings()); err != nil {
		return err
	}
	var cfg Config
	if err := check.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// normalize fills derived defaults and accepts Syncthing-style addresses
// without a scheme.
func (c *Config) normalize() {
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIURL != "" && !strings.Contains(c.APIURL, "://") {
		c.APIURL = "http://" + c.APIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogPath()
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath()
	}
	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = []string{"."}
	}
}

// Validate checks values that would make the poller misbehave.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q: must be an http(s) URL", c.APIURL)
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"refresh_interval", c.RefreshInterval},
		{"active_interval", c.ActiveInterval},
		{"min_check_interval", c.MinCheckInterval},
		{"active_timeout", c.ActiveTimeout},
		{"edit_debounce", c.EditDebounce},
		{"request_timeout", c.RequestTimeout},
		{"max_backoff", c.MaxBackoff},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.key, d.d)
		}
	}
	if _, err := statusbar.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Output.MaxWidth < 0 {
		return fmt.Errorf("output.max_width must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q: want json or text", c.Logging.Format)
	}
	if c.History.MaxRows < 0 {
		return fmt.Errorf("history.max_rows must not be negative")
	}
	return nil
}

// HasAPIKey reports whether an API key is configured.
func (c *Config) HasAPIKey() bool { return c.APIKey != "" }
