package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	SystemRole  string  `yaml:"system_role,omitempty"`
	Temperature float64 `yaml:"temperature"`
	SkillsDir   string  `yaml:"skills_dir,omitempty"`

	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Report ReportConfig `yaml:"report"`
	Upload UploadConfig `yaml:"upload"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RunsPerMinute caps generation requests per browser session.
	RunsPerMinute int           `yaml:"runs_per_minute"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ReportConfig struct {
	// InputLimit is the number of characters of the problem input quoted in the report.
	InputLimit int `yaml:"input_limit"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

const (
	DefaultSystemRole  = "You are a helpful assistant."
	DefaultTemperature = 0.7
)

func DefaultConfig() *Config {
	return &Config{
		Provider:    "deepseek",
		SystemRole:  DefaultSystemRole,
		Temperature: DefaultTemperature,
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8501,
			RunsPerMinute: 20,
			SessionTTL:    2 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			InputLimit: 500,
		},
		Upload: UploadConfig{
			MaxBytes: 20 << 20,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "triz"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config at path. An empty path means ConfigPath(). A missing
// file yields the defaults; values present in the file override them.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()

	return cfg, nil
}

// fillDefaults restores defaults for fields a partial file zeroed out.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.SystemRole == "" {
		c.SystemRole = d.SystemRole
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.RunsPerMinute <= 0 {
		c.Server.RunsPerMinute = d.Server.RunsPerMinute
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Report.InputLimit <= 0 {
		c.Report.InputLimit = d.Report.InputLimit
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = d.Upload.MaxBytes
	}
}

// Save writes the config to path, or to ConfigPath() when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
