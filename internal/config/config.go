// Package config loads CLI settings from defaults, an optional YAML file,
// INSIGHTS_* environment variables and bound command flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/logging"
)

// EnvPrefix is prepended to every environment key: api.token -> INSIGHTS_API_TOKEN.
const EnvPrefix = "INSIGHTS"

// DefaultTokenFile is read when neither api.token nor api.token_file is set.
const DefaultTokenFile = ".insights-token"

// Config is the complete runtime configuration.
type Config struct {
	API       APIConfig    `mapstructure:"api" yaml:"api"`
	Poll      PollConfig   `mapstructure:"poll" yaml:"poll"`
	ProjectID string       `mapstructure:"project_id" yaml:"project_id"`
	IModelID  string       `mapstructure:"imodel_id" yaml:"imodel_id"`
	Logger    LoggerConfig `mapstructure:"logger" yaml:"logger"`
	RunLog    RunLogConfig `mapstructure:"runlog" yaml:"runlog"`
	Plan      PlanConfig   `mapstructure:"plan" yaml:"plan"`
}

// APIConfig configures the Insights client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	TokenFile string        `mapstructure:"token_file" yaml:"token_file"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxPages  int           `mapstructure:"max_pages" yaml:"max_pages"`
}

// PollConfig configures waiting for extraction jobs.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggerConfig mirrors logging.Options.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// RunLogConfig locates the extraction run history database.
type RunLogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PlanConfig locates the provisioning plan.
type PlanConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SetDefaults registers a default for every key so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	// -- API --
	v.SetDefault("api.base_url", insights.DefaultBaseURL)
	v.SetDefault("api.token", "")
	v.SetDefault("api.token_file", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 1)
	v.SetDefault("api.max_pages", insights.DefaultMaxPages)

	// -- Poll --
	v.SetDefault("poll.interval", insights.DefaultPollInterval)
	v.SetDefault("poll.timeout", "10m")

	// -- Scope --
	v.SetDefault("project_id", "")
	v.SetDefault("imodel_id", "")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", false)

	// -- Storage --
	v.SetDefault("runlog.path", ".insights/runs.db")
	v.SetDefault("plan.path", "")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path into v when it is set; otherwise an insights.yaml in the
// working directory is read if present. The merged result is validated.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("insights")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the current state of v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges. Whether project_id or imodel_id are needed
// depends on the command; see RequireProject and RequireIModel.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.MaxPages < 1 {
		return fmt.Errorf("api.max_pages must be a positive integer")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("poll.timeout must not be negative")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}

// RequireProject fails when project_id is empty.
func (c *Config) RequireProject() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required (--project or %s_PROJECT_ID)", EnvPrefix)
	}
	return nil
}

// RequireIModel fails when imodel_id is empty.
func (c *Config) RequireIModel() error {
	if c.IModelID == "" {
		return fmt.Errorf("imodel_id is required (--imodel or %s_IMODEL_ID)", EnvPrefix)
	}
	return nil
}

// ResolveToken returns the Authorization header source: api.token first,
// then the first line of api.token_file, then DefaultTokenFile.
func (c *Config) ResolveToken() (insights.StaticToken, error) {
	if c.API.Token != "" {
		return insights.BearerToken(c.API.Token), nil
	}
	path := c.API.TokenFile
	if path == "" {
		path = DefaultTokenFile
	}
	raw, err := insights.ReadToken(path)
	if err != nil {
		return "", fmt.Errorf("no API token: set --token, %s_API_TOKEN or api.token_file: %w", EnvPrefix, err)
	}
	return insights.BearerToken(raw), nil
}

// LoggingOptions converts the logger section for logging.Init.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logger.Level,
		Format:     c.Logger.Format,
		File:       c.Logger.LogFile,
		MaxSize:    c.Logger.MaxSize,
		MaxBackups: c.Logger.MaxBackups,
		MaxAge:     c.Logger.MaxAge,
		Compress:   c.Logger.Compress,
	}
}

// ClientOptions converts the api section for insights.New.
func (c *Config) ClientOptions() []insights.Option {
	opts := []insights.Option{insights.WithMaxPages(c.API.MaxPages)}
	if c.API.Timeout > 0 {
		opts = append(opts, insights.WithTimeout(c.API.Timeout))
	}
	if c.API.RateLimit > 0 {
		opts = append(opts, insights.WithRateLimit(c.API.RateLimit, c.API.RateBurst))
	}
	return opts
}
