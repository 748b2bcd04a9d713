// Package config loads runtime settings from defaults, an optional YAML file
// and environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Telegram Telegram `yaml:"telegram"`
	Log      Log      `yaml:"log"`
	Chat     Chat     `yaml:"chat"`
}

type Server struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type Database struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Redis is optional; an empty Addr keeps broadcast delivery process-local.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

type Telegram struct {
	BotToken string `yaml:"bot_token"`
}

type Log struct {
	Mode string `yaml:"mode"`
}

type Chat struct {
	DefaultFetchLimit int     `yaml:"default_fetch_limit"`
	MaxFetchLimit     int     `yaml:"max_fetch_limit"`
	MaxMessageLength  int     `yaml:"max_message_length"`
	SendRate          float64 `yaml:"send_rate"`
	SendBurst         int     `yaml:"send_burst"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: Database{
			DSN:          "host=localhost user=user password=password dbname=pairchat port=5432 sslmode=disable",
			MaxOpenConns: 20,
			MaxIdleConns: 10,
		},
		Redis: Redis{Channel: "pairchat:broadcast"},
		Auth: Auth{
			TokenTTL: 72 * time.Hour,
			Issuer:   "pairchat-service",
		},
		Log: Log{Mode: "development"},
		Chat: Chat{
			DefaultFetchLimit: DefaultFetchLimit,
			MaxFetchLimit:     MaxFetchLimit,
			MaxMessageLength:  DefaultMaxMessageLength,
			SendRate:          DefaultSendRate,
			SendBurst:         DefaultSendBurst,
		},
	}
}

// Load applies the YAML file at path (if it exists) and then the environment on
// top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "HTTP_ADDR")
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Redis.Channel, "REDIS_CHANNEL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Log.Mode, "LOG_MODE")

	if err := setInt(&c.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"); err != nil {
		return err
	}
	if err := setInt(&c.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("JWT_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	return nil
}

func (c *Config) normalize() {
	if c.Chat.MaxFetchLimit <= 0 || c.Chat.MaxFetchLimit > MaxFetchLimit {
		c.Chat.MaxFetchLimit = MaxFetchLimit
	}
	if c.Chat.DefaultFetchLimit <= 0 || c.Chat.DefaultFetchLimit > c.Chat.MaxFetchLimit {
		c.Chat.DefaultFetchLimit = min(DefaultFetchLimit, c.Chat.MaxFetchLimit)
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.Chat.SendRate <= 0 {
		c.Chat.SendRate = DefaultSendRate
	}
	if c.Chat.SendBurst <= 0 {
		c.Chat.SendBurst = DefaultSendBurst
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database dsn is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = i
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
