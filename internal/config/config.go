package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (CASHFLOW_LISTEN_ADDR, CASHFLOW_LOG_LEVEL, ...)
const EnvPrefix = "CASHFLOW"

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `mapstructure:"listen_addr"`
	Debug      bool   `mapstructure:"debug"`

	// Data directory holding transactions.json and recurring.json
	DataDirectory string `mapstructure:"data_directory"`
	// Serve a generated demo history when transactions.json is missing
	DemoData bool `mapstructure:"demo_data"`

	Forecast ForecastConfig `mapstructure:"forecast"`
	Log      LogConfig      `mapstructure:"log"`
}

// ForecastConfig holds forecast defaults
type ForecastConfig struct {
	// Window length used when a request gives no end date
	DefaultDays int `mapstructure:"default_days"`
	// Starting balance for summaries, as a decimal string
	OpeningBalance string `mapstructure:"opening_balance"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// stderr, stdout, file or both (stderr and file)
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:    ":8080",
		DataDirectory: filepath.Join(wd, "data"),
		Forecast: ForecastConfig{
			DefaultDays:    30,
			OpeningBalance: "0",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			File:       filepath.Join(wd, "data", "logs", "cashflow.log"),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. With an empty configFile, cashflow.yaml is looked up in the working
// directory and skipped when absent.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cashflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// CASHFLOW_DATA_DIR is accepted as a short form
	if err := v.BindEnv("data_directory", EnvPrefix+"_DATA_DIR", EnvPrefix+"_DATA_DIRECTORY"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("data_directory", d.DataDirectory)
	v.SetDefault("demo_data", d.DemoData)

	v.SetDefault("forecast.default_days", d.Forecast.DefaultDays)
	v.SetDefault("forecast.opening_balance", d.Forecast.OpeningBalance)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.DataDirectory == "" {
		return errors.New("data_directory must not be empty")
	}
	if c.Forecast.DefaultDays < 1 || c.Forecast.DefaultDays > 3660 {
		return fmt.Errorf("forecast.default_days must be between 1 and 3660, got %d", c.Forecast.DefaultDays)
	}
	if _, err := c.OpeningBalance(); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	switch c.Log.Output {
	case "stderr", "stdout", "file", "both":
	default:
		return fmt.Errorf("unknown log.output %q", c.Log.Output)
	}
	return nil
}

// OpeningBalance parses forecast.opening_balance
func (c *Config) OpeningBalance() (decimal.Decimal, error) {
	if c.Forecast.OpeningBalance == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.Forecast.OpeningBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forecast.opening_balance %q is not a number", c.Forecast.OpeningBalance)
	}
	return d, nil
}
