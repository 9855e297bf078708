package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway" json:"gateway"`
	Policy  PolicyConfig  `mapstructure:"policy" json:"policy"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
	State   StateConfig   `mapstructure:"state" json:"state"`
}

// GatewayConfig HTTP server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port"`
	Token string `mapstructure:"token" json:"token"`
}

// PolicyConfig policy document settings. The document itself is a separate,
// required artifact; only its location and the starting mode live here.
type PolicyConfig struct {
	Path        string `mapstructure:"path" json:"path"`
	DefaultMode string `mapstructure:"default_mode" json:"default_mode"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// StateConfig runtime state settings (audit trail location)
type StateConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  8400,
			Token: "",
		},
		Policy: PolicyConfig{
			Path:        filepath.Join(ConfigDir(), "ops_policy.json"),
			DefaultMode: "NORMAL",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		State: StateConfig{
			Dir: filepath.Join(ConfigDir(), "state"),
		},
	}
}

// ConfigDir returns the opsgate config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".opsgate")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults. The app config is
// defaulted and auto-created; the policy document never is.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(cfg, configPath); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("OPSGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo saves config to an explicit path
func SaveTo(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	if strings.TrimSpace(c.Policy.Path) == "" {
		return fmt.Errorf("policy.path must not be empty")
	}
	if strings.TrimSpace(c.Policy.DefaultMode) == "" {
		c.Policy.DefaultMode = "NORMAL"
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	if strings.TrimSpace(c.State.Dir) == "" {
		c.State.Dir = filepath.Join(ConfigDir(), "state")
	}

	return nil
}
