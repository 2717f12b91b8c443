package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"termchat/model"
	"termchat/provider"
)

// Settings is the content of settings.toml.
type Settings struct {
	DataDirectory   string                     `toml:"data_directory"`
	DefaultPlatform string                     `toml:"default_platform"`
	ToolCatalog     string                     `toml:"tool_catalog"`
	Agent           AgentSettings              `toml:"agent"`
	Tools           ToolSettings               `toml:"tools"`
	Profiles        map[string]ProfileSettings `toml:"profiles"`
}

type AgentSettings struct {
	Workers int `toml:"workers"`
}

type ToolSettings struct {
	Timeout       time.Duration `toml:"timeout"`
	WeatherKeyEnv string        `toml:"weather_key_env"`
	WeatherURL    string        `toml:"weather_url,omitempty"`
}

// ProfileSettings overrides or adds a platform profile. Type may be empty
// when the name matches a built-in platform.
type ProfileSettings struct {
	Type    string `toml:"type,omitempty"`
	KeyEnv  string `toml:"key_env,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Settings

	ConfigDir   string
	Credentials *CredentialStore

	dataDir string
	getenv  func(string) string
}

// Options controls where Load looks. Zero values use the user's config
// directory and the process environment.
type Options struct {
	ConfigDir string
	Getenv    func(string) string
}

// DataDir returns the expanded data directory.
func (c *Config) DataDir() string { return c.dataDir }

// SettingsPath returns the settings.toml path.
func (c *Config) SettingsPath() string { return filepath.Join(c.ConfigDir, "settings.toml") }

// ConversationsPath returns the conversation store path.
func (c *Config) ConversationsPath() string { return filepath.Join(c.dataDir, ConversationsFile) }

// RunLogPath returns the agent run log database path.
func (c *Config) RunLogPath() string { return filepath.Join(c.dataDir, RunLogFile) }

// ToolCatalogPath returns the tool catalog path.
func (c *Config) ToolCatalogPath() string {
	if c.ToolCatalog != "" {
		return ExpandPath(c.ToolCatalog)
	}
	return filepath.Join(c.dataDir, ToolCatalogFile)
}

// WeatherAPIKey returns the weather key from credentials.toml or the
// configured environment variable.
func (c *Config) WeatherAPIKey() string {
	if c.Credentials != nil {
		if v := c.Credentials.Get("weather"); v != "" {
			return v
		}
	}
	if c.Tools.WeatherKeyEnv == "" {
		return ""
	}
	return c.getenv(c.Tools.WeatherKeyEnv)
}

// Profiles returns the built-in platform profiles merged with the
// [profiles] overrides from settings.toml.
func (c *Config) Profiles() (map[string]provider.Profile, error) {
	profiles := provider.DefaultProfiles()
	for name, ov := range c.Settings.Profiles {
		p, known := profiles[name]
		if ov.Type != "" {
			typ, ok := provider.ParseType(ov.Type)
			if !ok {
				return nil, fmt.Errorf("profile %q: %w: %q", name, model.ErrUnknownPlatform, ov.Type)
			}
			p.Type = typ
		} else if !known {
			return nil, fmt.Errorf("profile %q: type is required for a new platform: %w", name, model.ErrValidation)
		}
		if ov.KeyEnv != "" {
			p.KeyEnv = ov.KeyEnv
		}
		if ov.BaseURL != "" {
			p.BaseURL = ov.BaseURL
		}
		if ov.Model != "" {
			p.Model = ov.Model
		}
		profiles[name] = p
	}
	return profiles, nil
}

// KeyLookup resolves platform keys from credentials.toml first, then from
// the profile's environment variable.
func (c *Config) KeyLookup() provider.KeyLookup {
	var creds provider.KeyLookup
	if c.Credentials != nil {
		creds = c.Credentials.Lookup()
	}
	return provider.FirstKey(creds, provider.EnvKeys(c.getenv))
}

func (c *Config) applyEnvOverrides() {
	if dataDir := c.getenv("TERMCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

// CheckDebug reports whether TERMCHAT_DEBUG enables debug logging.
func CheckDebug(getenv func(string) string) bool {
	debug := getenv("TERMCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads settings.toml, creating it from the template on first run,
// applies environment overrides, prepares the data directory and loads
// credentials.toml.
func Load(opts Options) (*Config, error) {
	cfg := &Config{ConfigDir: opts.ConfigDir, getenv: opts.Getenv}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = GetConfigDir()
	}
	if cfg.getenv == nil {
		cfg.getenv = os.Getenv
	}

	settings, err := LoadSettings(cfg.SettingsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	cfg.Settings = *settings
	cfg.applyEnvOverrides()

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}
	cfg.dataDir = ExpandPath(cfg.DataDirectory)
	if err := os.MkdirAll(cfg.dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(cfg.dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	if cfg.Agent.Workers <= 0 {
		cfg.Agent.Workers = DefaultAgentWorkers
	}
	if cfg.Tools.Timeout < 0 {
		return nil, fmt.Errorf("tools.timeout must not be negative: %w", model.ErrValidation)
	}

	cfg.Credentials = NewCredentialStore()
	if err := cfg.Credentials.Load(cfg.dataDir); err != nil {
		return nil, err
	}
	return cfg, nil
}
