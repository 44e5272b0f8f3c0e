package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const DefaultGreeting = "Hello! I'm Companion AI, your intelligent assistant for appliance troubleshooting and maintenance. You can also upload PDF manuals or documents for me to analyze. How can I help you today?"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Auth     AuthConfig     `toml:"auth"`
	Session  SessionConfig  `toml:"session"`
	LLM      LLMConfig      `toml:"llm"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Archive  ArchiveConfig  `toml:"archive"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// File enables a rotating log file next to stdout when set.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
	// DemoMode accepts any non-empty email and password.
	DemoMode     bool   `toml:"demo_mode"`
	PasswordHash string `toml:"password_hash"`
}

type SessionConfig struct {
	Greeting         string   `toml:"greeting"`
	ResponseTimeout  Duration `toml:"response_timeout"`
	StubDelay        Duration `toml:"stub_delay"`
	HistoryLimit     int      `toml:"history_limit"`
	IdleTTL          Duration `toml:"idle_ttl"`
	MaxUploadBytes   int64    `toml:"max_upload_bytes"`
	MaxDocumentChars int      `toml:"max_document_chars"`
}

type LLMConfig struct {
	Provider            string `toml:"provider"`
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	Model               string `toml:"model"`
	SystemPrompt        string `toml:"system_prompt"`
	DocumentTokenBudget int    `toml:"document_token_budget"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type RabbitMQConfig struct {
	URL             string `toml:"url"`
	TranscriptQueue string `toml:"transcript_queue"`
}

type ArchiveConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

// Duration decodes TOML strings such as "60s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "stub":
	case "openai":
		if strings.TrimSpace(c.LLM.BaseURL) == "" || strings.TrimSpace(c.LLM.Model) == "" {
			return fmt.Errorf("%w: llm.base_url and llm.model are required for the openai provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	switch c.Archive.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("%w: unknown archive.driver %q", ErrInvalidConfig, c.Archive.Driver)
	}
	if !c.Auth.DemoMode && c.Auth.PasswordHash == "" {
		return fmt.Errorf("%w: auth.password_hash is required outside demo mode", ErrInvalidConfig)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is empty", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.Auth.JWTExpireMinute) * time.Minute
}

// ArchiveDSN renders the connection string for the configured archive driver.
func (c *Config) ArchiveDSN() string {
	a := c.Archive
	if a.Driver == "postgres" {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", a.Host, a.Port, a.User, a.Password, a.DB)
		if a.Params != "" {
			dsn += " " + a.Params
		}
		return dsn
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		a.User,
		a.Password,
		a.Host,
		a.Port,
		a.DB,
		a.Params,
	)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "companion-ai",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Auth: AuthConfig{
			JWTSecret:       "change-me-in-production",
			JWTExpireMinute: 120,
			DemoMode:        true,
		},
		Session: SessionConfig{
			Greeting:         DefaultGreeting,
			ResponseTimeout:  Duration{60 * time.Second},
			StubDelay:        Duration{time.Second},
			HistoryLimit:     20,
			IdleTTL:          Duration{2 * time.Hour},
			MaxUploadBytes:   20 << 20,
			MaxDocumentChars: 200000,
		},
		LLM: LLMConfig{
			Provider:            "stub",
			Model:               "gpt-4o-mini",
			DocumentTokenBudget: 6000,
		},
		RabbitMQ: RabbitMQConfig{
			TranscriptQueue: "companion.transcript.archive",
		},
		Archive: ArchiveConfig{
			Driver: "mysql",
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "companion_ai",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)
	cfg.Auth.DemoMode = getEnvAsBool("AUTH_DEMO_MODE", cfg.Auth.DemoMode)
	cfg.Auth.PasswordHash = getEnv("AUTH_PASSWORD_HASH", cfg.Auth.PasswordHash)

	cfg.Session.Greeting = getEnv("SESSION_GREETING", cfg.Session.Greeting)
	cfg.Session.ResponseTimeout.Duration = getEnvAsDuration("SESSION_RESPONSE_TIMEOUT", cfg.Session.ResponseTimeout.Duration)
	cfg.Session.StubDelay.Duration = getEnvAsDuration("SESSION_STUB_DELAY", cfg.Session.StubDelay.Duration)
	cfg.Session.HistoryLimit = getEnvAsInt("SESSION_HISTORY_LIMIT", cfg.Session.HistoryLimit)
	cfg.Session.IdleTTL.Duration = getEnvAsDuration("SESSION_IDLE_TTL", cfg.Session.IdleTTL.Duration)
	cfg.Session.MaxUploadBytes = int64(getEnvAsInt("SESSION_MAX_UPLOAD_BYTES", int(cfg.Session.MaxUploadBytes)))

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.SystemPrompt = getEnv("LLM_SYSTEM_PROMPT", cfg.LLM.SystemPrompt)
	cfg.LLM.DocumentTokenBudget = getEnvAsInt("LLM_DOCUMENT_TOKEN_BUDGET", cfg.LLM.DocumentTokenBudget)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.TranscriptQueue = getEnv("RABBITMQ_TRANSCRIPT_QUEUE", cfg.RabbitMQ.TranscriptQueue)

	cfg.Archive.Driver = getEnv("ARCHIVE_DRIVER", cfg.Archive.Driver)
	cfg.Archive.Host = getEnv("ARCHIVE_HOST", cfg.Archive.Host)
	cfg.Archive.Port = getEnvAsInt("ARCHIVE_PORT", cfg.Archive.Port)
	cfg.Archive.User = getEnv("ARCHIVE_USER", cfg.Archive.User)
	cfg.Archive.Password = getEnv("ARCHIVE_PASSWORD", cfg.Archive.Password)
	cfg.Archive.DB = getEnv("ARCHIVE_DB", cfg.Archive.DB)
	cfg.Archive.Params = getEnv("ARCHIVE_PARAMS", cfg.Archive.Params)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
