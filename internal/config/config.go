package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath      = "config.yaml"
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8001
	DefaultModel           = "gemini-2.0-flash"
	DefaultDescribeVariant = "taxonomy"
	DefaultUpstreamTimeout = 60 * time.Second
)

// Config represents runtime configuration for the relay.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Prompts PromptsConfig `yaml:"prompts"`
	Staging StagingConfig `yaml:"staging"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"-"`
	// Port 0 (or omitted) in the file means DefaultPort.
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
}

type ModelConfig struct {
	APIKey        string        `yaml:"api_key"`
	Name          string        `yaml:"name"`
	Timeout       time.Duration `yaml:"timeout"`
	DeleteUploads bool          `yaml:"delete_uploads"`
}

type PromptsConfig struct {
	// Path to a prompts YAML file; empty means the built-in set.
	Path            string `yaml:"path"`
	DescribeVariant string `yaml:"describe_variant"`
	Watch           bool   `yaml:"watch"`
}

type StagingConfig struct {
	Dir           string        `yaml:"dir"`
	Suffix        string        `yaml:"suffix"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads configuration from the provided path (defaults to config.yaml),
// overlays the process environment and validates the result. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	var cfg Config
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", absPath, err)
		}
		if cfg.Prompts.Path != "" && !filepath.IsAbs(cfg.Prompts.Path) {
			cfg.Prompts.Path = filepath.Join(filepath.Dir(absPath), cfg.Prompts.Path)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" {
		c.Model.APIKey = v
	}
	if v, ok := lookup("GEMINI_MODEL"); ok && v != "" {
		c.Model.Name = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT %q: %w", v, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("PORT out of range: %d", port)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("UPSTREAM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse UPSTREAM_TIMEOUT %q: %w", v, err)
		}
		c.Model.Timeout = d
	}
	if v, ok := lookup("NOISERELAY_PROMPTS"); ok && v != "" {
		c.Prompts.Path = v
	}
	if v, ok := lookup("NOISERELAY_DESCRIBE_VARIANT"); ok && v != "" {
		c.Prompts.DescribeVariant = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key is required (set GEMINI_API_KEY)")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model.timeout must not be negative")
	}

	// always bind all interfaces
	c.Server.Host = DefaultHost
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModel
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = DefaultUpstreamTimeout
	}
	if c.Prompts.DescribeVariant == "" {
		c.Prompts.DescribeVariant = DefaultDescribeVariant
	}
	if c.Staging.Suffix == "" {
		c.Staging.Suffix = ".wav"
	}
	if c.Staging.MaxAge == 0 {
		c.Staging.MaxAge = time.Hour
	}
	if c.Staging.SweepInterval == 0 {
		c.Staging.SweepInterval = 10 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	return nil
}
