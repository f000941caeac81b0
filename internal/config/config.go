package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client and the dev relay.
type Config struct {
	SocketURL string `env:"ROOMCHAT_SOCKET_URL" envDefault:"ws://localhost:8085/ws"`
	APIURL    string `env:"ROOMCHAT_API_URL"    envDefault:"http://localhost:8085/api"`

	StoreBackend       string `env:"ROOMCHAT_STORE_BACKEND"         envDefault:"file"`
	StoreDir           string `env:"ROOMCHAT_STORE_DIR"`
	StoreMaxValueBytes int    `env:"ROOMCHAT_STORE_MAX_VALUE_BYTES" envDefault:"5242880"`

	CacheTTL       time.Duration `env:"ROOMCHAT_CACHE_TTL"       envDefault:"30m"`
	CacheLimit     int           `env:"ROOMCHAT_CACHE_LIMIT"     envDefault:"100"`
	TypingDebounce time.Duration `env:"ROOMCHAT_TYPING_DEBOUNCE" envDefault:"1200ms"`

	RelayAddr string `env:"ROOMCHAT_RELAY_ADDR" envDefault:":8085"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
}

// New loads configuration from a .env file, when one exists, and the
// environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = defaultStoreDir()
	}
	if cfg.CacheLimit <= 0 {
		return nil, fmt.Errorf("ROOMCHAT_CACHE_LIMIT must be positive, got %d", cfg.CacheLimit)
	}
	if cfg.CacheTTL <= 0 || cfg.TypingDebounce <= 0 {
		return nil, fmt.Errorf("ROOMCHAT_CACHE_TTL and ROOMCHAT_TYPING_DEBOUNCE must be positive")
	}
	return &cfg, nil
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".roomchat"
	}
	return filepath.Join(home, ".roomchat")
}
