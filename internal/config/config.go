// Package config loads and saves the console's settings in config.toml.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pinas/console/internal/statefile"
)

const (
	// DirName is the per-user state directory under $HOME.
	DirName = ".pinas"
	// FileName is the config file inside the state directory.
	FileName = "config.toml"

	DefaultServer         = "http://localhost:3000"
	DefaultTheme          = "dark"
	DefaultReconnectDelay = 5
	DefaultLogLevel       = "info"
	DefaultReactivation   = "first"
)

// Package-level hooks for testing.
var (
	getEnvVar   = os.Getenv
	userHomeDir = os.UserHomeDir
)

// ConsoleConfig is the [console] section of config.toml.
type ConsoleConfig struct {
	Server       string          `toml:"server"`
	Theme        string          `toml:"theme"`  // "dark", "light", or "auto"
	Locale       string          `toml:"locale"` // "en", "fr", or empty for auto-detect
	LogLevel     string          `toml:"log_level"`
	Reactivation string          `toml:"reactivation"` // "first" or "most_recent"
	Telemetry    TelemetryConfig `toml:"telemetry"`
}

// TelemetryConfig controls the stats WebSocket.
type TelemetryConfig struct {
	// ReconnectDelaySeconds is the fixed wait between reconnect attempts.
	// Range: 1-300, Default: 5
	ReconnectDelaySeconds int  `toml:"reconnect_delay_seconds"`
	Disabled              bool `toml:"disabled"`
}

// ReconnectDelay returns the reconnect delay as a duration.
func (t TelemetryConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectDelaySeconds) * time.Second
}

// Defaults returns the configuration used when no file exists.
func Defaults() *ConsoleConfig {
	return &ConsoleConfig{
		Server:       DefaultServer,
		Theme:        DefaultTheme,
		LogLevel:     DefaultLogLevel,
		Reactivation: DefaultReactivation,
		Telemetry: TelemetryConfig{
			ReconnectDelaySeconds: DefaultReconnectDelay,
		},
	}
}

type fullConfig struct {
	Console ConsoleConfig `toml:"console"`
	// Other sections are preserved as raw TOML on save
}

// Manager reads and writes config.toml.
type Manager struct {
	configPath string
}

// NewManager creates a manager for ~/.pinas/config.toml.
func NewManager() *Manager {
	return &Manager{configPath: filepath.Join(DefaultDir(), FileName)}
}

// NewManagerAt creates a manager for an explicit config path.
func NewManagerAt(path string) *Manager {
	return &Manager{configPath: path}
}

// DefaultDir returns ~/.pinas, falling back to the temp dir when $HOME is unknown.
func DefaultDir() string {
	home, err := userHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), DirName)
	}
	return filepath.Join(home, DirName)
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.configPath
}

// StateDir returns the directory holding the config and other console state.
func (m *Manager) StateDir() string {
	return filepath.Dir(m.configPath)
}

// Load reads the [console] section, applying defaults and validation.
// A missing or unparseable file yields the defaults.
func (m *Manager) Load() (*ConsoleConfig, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	if server := strings.TrimSpace(getEnvVar("PINAS_SERVER")); server != "" {
		cfg.Server = server
	}
	return cfg, nil
}

func (m *Manager) load() (*ConsoleConfig, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, err
	}
	return decode(data)
}

// decode parses a config document. Empty or unparseable input yields the
// defaults.
func decode(data []byte) (*ConsoleConfig, error) {
	if len(data) == 0 {
		return Defaults(), nil
	}
	var full fullConfig
	if err := toml.Unmarshal(data, &full); err != nil {
		return Defaults(), nil
	}

	cfg := &full.Console
	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *ConsoleConfig) {
	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}

	cfg.Theme = NormalizeTheme(cfg.Theme)
	cfg.Locale = NormalizeLocale(cfg.Locale)

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	default:
		cfg.LogLevel = DefaultLogLevel
	}

	switch cfg.Reactivation {
	case "first", "most_recent":
		// Valid
	default:
		cfg.Reactivation = DefaultReactivation
	}

	if cfg.Telemetry.ReconnectDelaySeconds == 0 {
		cfg.Telemetry.ReconnectDelaySeconds = DefaultReconnectDelay
	} else if cfg.Telemetry.ReconnectDelaySeconds < 1 {
		cfg.Telemetry.ReconnectDelaySeconds = 1
	} else if cfg.Telemetry.ReconnectDelaySeconds > 300 {
		cfg.Telemetry.ReconnectDelaySeconds = 300
	}
}

// NormalizeTheme returns theme if it is "dark", "light" or "auto", else "dark".
func NormalizeTheme(theme string) string {
	theme = strings.ToLower(strings.TrimSpace(theme))
	switch theme {
	case "dark", "light", "auto":
		return theme
	default:
		return DefaultTheme
	}
}

// NormalizeLocale returns locale if supported, else "" (auto-detect).
func NormalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	switch locale {
	case "en", "fr":
		return locale
	default:
		return ""
	}
}

// Save writes the [console] section, preserving every other section.
func (m *Manager) Save(cfg *ConsoleConfig) error {
	return statefile.Update(m.configPath, func(existing []byte) ([]byte, error) {
		return encode(existing, cfg)
	})
}

// Update loads the config, applies fn and saves the result. The file stays
// locked throughout, so concurrent updates from other processes are not lost.
func (m *Manager) Update(fn func(cfg *ConsoleConfig)) error {
	return statefile.Update(m.configPath, func(existing []byte) ([]byte, error) {
		cfg, err := decode(existing)
		if err != nil {
			cfg = Defaults()
		}
		fn(cfg)
		return encode(existing, cfg)
	})
}

// encode merges cfg into the TOML document existingData as its [console]
// section.
func encode(existingData []byte, cfg *ConsoleConfig) ([]byte, error) {
	var existing map[string]interface{}
	if len(existingData) > 0 {
		if err := toml.Unmarshal(existingData, &existing); err != nil {
			existing = make(map[string]interface{})
		}
	} else {
		existing = make(map[string]interface{})
	}

	console := map[string]interface{}{
		"server":       cfg.Server,
		"theme":        NormalizeTheme(cfg.Theme),
		"log_level":    cfg.LogLevel,
		"reactivation": cfg.Reactivation,
		"telemetry": map[string]interface{}{
			"reconnect_delay_seconds": cfg.Telemetry.ReconnectDelaySeconds,
			"disabled":                cfg.Telemetry.Disabled,
		},
	}
	if locale := NormalizeLocale(cfg.Locale); locale != "" {
		console["locale"] = locale
	}
	existing["console"] = console

	var buf bytes.Buffer
	if len(existingData) == 0 {
		buf.WriteString("# PiNAS Console Configuration\n\n")
	}
	if err := toml.NewEncoder(&buf).Encode(existing); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// SetTheme persists the theme preference.
func (m *Manager) SetTheme(theme string) error {
	return m.Update(func(cfg *ConsoleConfig) {
		cfg.Theme = NormalizeTheme(theme)
	})
}

// SetLocale persists the locale preference.
func (m *Manager) SetLocale(locale string) error {
	return m.Update(func(cfg *ConsoleConfig) {
		cfg.Locale = NormalizeLocale(locale)
	})
}

// SetServer persists the backend URL.
func (m *Manager) SetServer(server string) error {
	return m.Update(func(cfg *ConsoleConfig) {
		cfg.Server = strings.TrimRight(strings.TrimSpace(server), "/")
	})
}
