package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Server struct {
	Port string `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
}

type Database struct {
	Driver     string `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
	Host       string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port       string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User       string `yaml:"user" env:"DB_USER" env-default:"studychat"`
	Password   string `yaml:"password" env:"DB_PASSWORD" env-default:"studychat_dev_password"`
	Name       string `yaml:"name" env:"DB_NAME" env-default:"studychat"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"studychat.db"`
}

type Redis struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type AI struct {
	Provider      string        `yaml:"provider" env:"AI_PROVIDER" env-default:"disabled"`
	APIKey        string        `yaml:"api_key" env:"AI_API_KEY"`
	BaseURL       string        `yaml:"base_url" env:"AI_BASE_URL"`
	Model         string        `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	Temperature   float32       `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.7"`
	Timeout       time.Duration `yaml:"timeout" env:"AI_TIMEOUT" env-default:"30s"`
	HistoryTokens int           `yaml:"history_tokens" env:"AI_HISTORY_TOKENS" env-default:"3000"`
	Tag           string        `yaml:"tag" env:"ASSISTANT_TAG" env-default:"@assistant"`
}

type WS struct {
	RateRPS   float64 `yaml:"rate_rps" env:"WS_RATE_RPS" env-default:"10"`
	RateBurst int     `yaml:"rate_burst" env:"WS_RATE_BURST" env-default:"20"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Log      Log      `yaml:"log"`
	AI       AI       `yaml:"ai"`
	WS       WS       `yaml:"ws"`
}

// Load reads an optional .env file, then the YAML file at CONFIG_PATH (if
// set), then the environment. Environment values win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai", "langchain", "disabled":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.Provider != "disabled" && c.AI.APIKey == "" && c.AI.BaseURL == "" {
		return errors.New("ai provider needs AI_API_KEY or AI_BASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	return nil
}

// PostgresDSN builds the connection string for pgxpool.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}
