package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del agente de sesión y del cliente.
type Config struct {
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8765"`
	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://127.0.0.1:8000"`
	APITimeout    time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	StorageDriver string        `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	StoragePath   string        `env:"STORAGE_PATH" envDefault:"clipfeed.db"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SealKey       string        `env:"SESSION_SEAL_KEY"`
	// Cero desactiva el timeout de almacenamiento.
	StorageTimeout   time.Duration `env:"SESSION_STORAGE_TIMEOUT" envDefault:"5s"`
	TokenRefreshSkew time.Duration `env:"TOKEN_REFRESH_SKEW" envDefault:"30s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
