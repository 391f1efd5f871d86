package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Funding     FundingConfig     `mapstructure:"funding"`
	Liquidation LiquidationConfig `mapstructure:"liquidation"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// Demo API credentials registered at startup.
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type FundingConfig struct {
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds"`
}

type LiquidationConfig struct {
	ScanIntervalSeconds int `mapstructure:"scan_interval_seconds"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml (if present), a .env file, and
// EXCHANGE_-prefixed environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("EXCHANGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// FundingCheckInterval returns the funding scheduler tick as a duration.
func (c *Config) FundingCheckInterval() time.Duration {
	return time.Duration(c.Funding.CheckIntervalSeconds) * time.Second
}

// LiquidationScanInterval returns the liquidation scan tick as a duration.
func (c *Config) LiquidationScanInterval() time.Duration {
	return time.Duration(c.Liquidation.ScanIntervalSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.path", "exchange.db")

	v.SetDefault("auth.jwt_secret", "dev-only-secret")
	v.SetDefault("auth.api_key", "demo-api-key")
	v.SetDefault("auth.api_secret", "demo-api-secret")

	v.SetDefault("funding.check_interval_seconds", 10)
	v.SetDefault("liquidation.scan_interval_seconds", 5)

	v.SetDefault("logging.level", "info")
}
