package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Database struct {
	Host     string `mapstructure:"BLUEPRINT_DB_HOST"`
	Port     string `mapstructure:"BLUEPRINT_DB_PORT"`
	Name     string `mapstructure:"BLUEPRINT_DB_DATABASE"`
	Username string `mapstructure:"BLUEPRINT_DB_USERNAME"`
	Password string `mapstructure:"BLUEPRINT_DB_PASSWORD"`
	Schema   string `mapstructure:"BLUEPRINT_DB_SCHEMA"`
}

func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema,
	)
}

type Config struct {
	Database                Database
	Port                    string        `mapstructure:"PORT"`
	CallbackBaseURL         string        `mapstructure:"CALLBACK_BASE_URL"`
	GatewayTimeout          time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	LogPath                 string        `mapstructure:"LOG_PATH"`
	CORSAllowedOrigins      string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	ChargeRateLimit         float64       `mapstructure:"CHARGE_RATE_LIMIT"`
	LostOrderReportInterval time.Duration `mapstructure:"LOST_ORDER_REPORT_INTERVAL"`
}

var keys = []string{
	"BLUEPRINT_DB_HOST", "BLUEPRINT_DB_PORT", "BLUEPRINT_DB_DATABASE",
	"BLUEPRINT_DB_USERNAME", "BLUEPRINT_DB_PASSWORD", "BLUEPRINT_DB_SCHEMA",
	"PORT", "CALLBACK_BASE_URL", "GATEWAY_TIMEOUT", "LOG_LEVEL", "LOG_PATH",
	"CORS_ALLOWED_ORIGINS", "CHARGE_RATE_LIMIT", "LOST_ORDER_REPORT_INTERVAL",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// prod uses real env vars
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("BLUEPRINT_DB_PORT", "5432")
	v.SetDefault("BLUEPRINT_DB_SCHEMA", "public")
	v.SetDefault("PORT", "8080")
	v.SetDefault("CALLBACK_BASE_URL", "http://localhost:8080")
	v.SetDefault("GATEWAY_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CHARGE_RATE_LIMIT", 5)
	v.SetDefault("LOST_ORDER_REPORT_INTERVAL", "0s")
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("viper.BindEnv %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal: %w", err)
	}
	if err := v.Unmarshal(&cfg.Database); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal database: %w", err)
	}
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")

	if cfg.GatewayTimeout <= 0 {
		return nil, errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if cfg.ChargeRateLimit < 0 {
		return nil, errors.New("CHARGE_RATE_LIMIT must not be negative")
	}
	return cfg, nil
}

// RequireDatabase reports a missing connection setting for commands that need Postgres.
func (c *Config) RequireDatabase() error {
	if c.Database.Host == "" || c.Database.Name == "" {
		return errors.New("BLUEPRINT_DB_HOST and BLUEPRINT_DB_DATABASE are required")
	}
	return nil
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
