package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string `mapstructure:"DB_DSN"`
	Environment   string `mapstructure:"ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	AWSRegion    string `mapstructure:"AWS_REGION"`
	SESFromEmail string `mapstructure:"SES_FROM_EMAIL"`
	SESFromName  string `mapstructure:"SES_FROM_NAME"`
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`
	NativeScheme string `mapstructure:"NATIVE_SCHEME"`

	// Origins, которым разрешено открывать /ws (через запятую)
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	NotifyWorkers     int `mapstructure:"NOTIFY_WORKERS"`
	NotifyQueueSize   int `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyMaxAttempts int `mapstructure:"NOTIFY_MAX_ATTEMPTS"`

	// EnvFileLoaded - был ли найден .env (логируется в main после создания логгера)
	EnvFileLoaded bool `mapstructure:"-"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	loaded := godotenv.Load(".env") == nil

	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		Environment:    getEnv("ENV", "development"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		AWSRegion:      getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail:   os.Getenv("SES_FROM_EMAIL"),
		SESFromName:    getEnv("SES_FROM_NAME", "Schoolrun"),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),
		NativeScheme:   getEnv("NATIVE_SCHEME", "schoolrun"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		EnvFileLoaded:  loaded,
	}

	var err error
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueueSize, err = getInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.NotifyMaxAttempts, err = getInt("NOTIFY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
