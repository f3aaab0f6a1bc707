// Package config loads portwire settings.
//
// Settings are layered: built-in defaults, then the settings file, then
// PORTWIRE_* environment variables. The settings file and the default rule
// file live in the portwire directory under $XDG_CONFIG_HOME.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DirName is the portwire directory under $XDG_CONFIG_HOME.
	DirName = "portwire"
	// SettingsFile is the settings file name inside Dir.
	SettingsFile = "portwire.toml"
	// RulesFile is the default rule file name inside Dir.
	RulesFile = "rules.yaml"

	envPrefix = "PORTWIRE_"
)

//go:embed embedded/defaults.toml
var defaultSettings []byte

// Settings is the merged configuration.
type Settings struct {
	ClientName string          `koanf:"client_name"`
	RulesFile  string          `koanf:"rules_file"`
	Watch      bool            `koanf:"watch"`
	SkipSelf   bool            `koanf:"skip_self"`
	Dedupe     bool            `koanf:"dedupe"`
	Log        LogSettings     `koanf:"log"`
	JACK       JACKSettings    `koanf:"jack"`
	Metrics    MetricsSettings `koanf:"metrics"`
	Journal    JournalSettings `koanf:"journal"`

	// Source is the settings file that was loaded, empty if none was.
	Source string `koanf:"-"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// JACKSettings holds the JACK tool command lines.
type JACKSettings struct {
	LSP        string        `koanf:"lsp"`
	Connect    string        `koanf:"connect"`
	Disconnect string        `koanf:"disconnect"`
	Evmon      string        `koanf:"evmon"`
	Timeout    time.Duration `koanf:"timeout"`
}

// MetricsSettings configures the HTTP metrics endpoint. An empty Addr
// disables it.
type MetricsSettings struct {
	Addr string `koanf:"addr"`
}

// JournalSettings configures the dispatch journal. An empty Path disables it.
type JournalSettings struct {
	Path string `koanf:"path"`
}

// Dir returns the portwire configuration directory.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, DirName)
}

// DefaultSettingsPath returns $XDG_CONFIG_HOME/portwire/portwire.toml.
func DefaultSettingsPath() string {
	return filepath.Join(Dir(), SettingsFile)
}

// DefaultRulesPath returns $XDG_CONFIG_HOME/portwire/rules.yaml.
func DefaultRulesPath() string {
	return filepath.Join(Dir(), RulesFile)
}

// EnsureDir creates the configuration directory if it does not exist and
// returns its path.
func EnsureDir() (string, error) {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Load merges defaults, the settings file and the environment.
//
// An empty path means the default settings file, which may be absent. An
// explicit path must exist.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	// 1. Built-in defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultSettings}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file
	source := path
	if source == "" {
		source = DefaultSettingsPath()
		if _, err := os.Stat(source); errors.Is(err, os.ErrNotExist) {
			source = ""
		}
	}
	if source != "" {
		if err := k.Load(file.Provider(source), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load settings from %s: %w", source, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var s Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &s, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	s.Source = source

	if s.RulesFile == "" {
		s.RulesFile = DefaultRulesPath()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey maps PORTWIRE_LOG__LEVEL to log.level and PORTWIRE_RULES_FILE to
// rules_file.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Validate checks enumerated and numeric settings.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", s.Log.Level)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", s.Log.Format)
	}
	if s.JACK.Timeout <= 0 {
		return fmt.Errorf("jack.timeout: must be positive, got %s", s.JACK.Timeout)
	}
	return nil
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}
