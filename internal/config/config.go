package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"fleet-expenses/internal/auth"
)

// Config is the server configuration, read from a YAML file and the environment.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer  `yaml:"http_server"`
	DB          `yaml:"db"`
	Token       `yaml:"token"`
	Attachments `yaml:"attachments"`
	Admin       `yaml:"admin"`
}

// HTTPServer holds the listener address and timeouts.
type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDR" env-default:":8000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// DB locates the SQLite database file.
type DB struct {
	Path string `yaml:"path" env:"DB_PATH" env-default:"data/expenses.db"`
}

// Token configures access token signing.
type Token struct {
	SecretKey     string `yaml:"secret_key" env:"SECRET_KEY" env-default:"change-me-in-production"`
	Algorithm     string `yaml:"algorithm" env:"TOKEN_ALGORITHM" env-default:"HS256"`
	ExpireMinutes int    `yaml:"expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
}

// Attachments configures where uploaded files live and how large they may be.
type Attachments struct {
	Dir      string `yaml:"dir" env:"ATTACHMENTS_DIR" env-default:"data/attachments"`
	MaxBytes int64  `yaml:"max_bytes" env:"ATTACHMENT_MAX_BYTES" env-default:"10485760"`
}

// Admin is the account created on startup when no users exist yet.
type Admin struct {
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

// TokenConfig converts the token settings for auth.NewTokenService.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:    c.Token.SecretKey,
		Algorithm: c.Token.Algorithm,
		TTL:       time.Duration(c.Token.ExpireMinutes) * time.Minute,
	}
}

// MustLoad is Load that panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load reads configPath when it is non-empty and then applies the
// environment on top. With an empty path only the environment is read.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("%s: config file not found: %w", op, err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if cfg.Token.ExpireMinutes <= 0 {
		return nil, fmt.Errorf("%s: ACCESS_TOKEN_EXPIRE_MINUTES must be positive", op)
	}
	if cfg.Attachments.MaxBytes <= 0 {
		return nil, fmt.Errorf("%s: ATTACHMENT_MAX_BYTES must be positive", op)
	}
	return &cfg, nil
}
