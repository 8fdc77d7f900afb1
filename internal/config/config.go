// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Executor() ExecutorConfig
	Agent() AgentConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	ExecutorCfg ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	AgentCfg    AgentConfig    `mapstructure:"agent" yaml:"agent"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Executor() ExecutorConfig { return c.ExecutorCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported credential store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig describes the credential store and its connection pool.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	URL             string        `mapstructure:"url" yaml:"url"`
	SQLitePath      string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
}

// ExecutorConfig bounds how often a conflicting transaction is replayed.
type ExecutorConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	MaxElapsed     time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// AgentConfig holds settings for the response pipeline and its producer.
type AgentConfig struct {
	// StripCodeFences tolerates a markdown fence around the producer output.
	// Off by default: the schema text tells the producer not to fence.
	StripCodeFences bool           `mapstructure:"strip_code_fences" yaml:"strip_code_fences"`
	LLM             LLMModelConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for the producer model.
type LLMModelConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	MaxElapsed        time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "plusdesk")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "plusdesk.db")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// -- Executor --
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.initial_backoff", "50ms")
	v.SetDefault("executor.max_backoff", "1s")
	v.SetDefault("executor.max_elapsed", "10s")

	// -- Agent --
	v.SetDefault("agent.strip_code_fences", false)
	v.SetDefault("agent.llm.provider", string(ProviderGemini))
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.api_timeout", "60s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.requests_per_second", 2.0)
	v.SetDefault("agent.llm.burst", 4)
	v.SetDefault("agent.llm.max_elapsed", "2m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data
	_ = v.BindEnv("database.url", "PLUSDESK_DATABASE_URL")
	_ = v.BindEnv("agent.llm.api_key", "PLUSDESK_LLM_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// database.url is not required here: commands that never touch the store
// (schema, parse) must work without it. It is enforced when the store opens.
func (c *Config) Validate() error {
	if err := c.DatabaseCfg.Validate(); err != nil {
		return fmt.Errorf("database configuration invalid: %w", err)
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if err := c.AgentCfg.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the database settings.
func (d *DatabaseConfig) Validate() error {
	switch strings.ToLower(d.Driver) {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, d.Driver)
	}
	if d.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be a positive integer")
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return fmt.Errorf("min_conns must be between 0 and max_conns")
	}
	return nil
}

// Validate checks the executor retry settings.
func (e *ExecutorConfig) Validate() error {
	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if e.MaxRetries > 0 && e.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be a positive duration when retries are enabled")
	}
	return nil
}

// Validate checks the producer settings. The API key is only required once a
// client is built.
func (l *LLMModelConfig) Validate() error {
	if l.Provider != "" && l.Provider != ProviderGemini {
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
