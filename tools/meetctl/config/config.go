package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServer  = "http://localhost:8080"
	DefaultOutput  = "text"
	DefaultTimeout = 2 * time.Minute
)

type Config struct {
	Server  string
	Output  string
	Timeout time.Duration
	// Token overrides the keyring. It is only read from the environment.
	Token string
}

type fileConfig struct {
	Server  string `toml:"server"`
	Output  string `toml:"output"`
	Timeout string `toml:"timeout"`
}

// Load reads $XDG_CONFIG_HOME/meetctl/config.toml (or ~/.config/meetctl) if
// present and applies MEETCTL_* environment overrides.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom is Load with an explicit file. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		Server:  DefaultServer,
		Output:  DefaultOutput,
		Timeout: DefaultTimeout,
	}

	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if fc.Server != "" {
			cfg.Server = fc.Server
		}
		if fc.Output != "" {
			cfg.Output = fc.Output
		}
		if fc.Timeout != "" {
			d, err := time.ParseDuration(fc.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q in %s: %w", fc.Timeout, path, err)
			}
			cfg.Timeout = d
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MEETCTL_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("MEETCTL_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("MEETCTL_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("MEETCTL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEETCTL_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	return nil
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "meetctl")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "meetctl")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
