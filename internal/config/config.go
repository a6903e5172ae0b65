// Package config loads warsync settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// Config carries everything the demo client (and any embedding app) needs
// to reach the platform.
type Config struct {
	// APIURL is the REST base, e.g. https://api.stackswars.com.
	APIURL string
	// WSURL is the WebSocket base, e.g. wss://api.stackswars.com.
	WSURL string
	// AuthToken is the optional bearer token.
	AuthToken string

	// ChatHistoryLimit bounds room chat history. Zero keeps it unbounded.
	ChatHistoryLimit int
	// LobbyPageSize is the lobby browser page size.
	LobbyPageSize int

	// ReconnectBase and ReconnectMax tune the backoff schedule.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	// ReconnectAttempts is the budget before the connection goes terminal.
	ReconnectAttempts int

	// SendRatePerSec throttles outbound intents per connection. Zero or
	// negative disables the limiter.
	SendRatePerSec int
}

// Load reads the environment, after merging a .env file if one exists.
// Missing keys fall back to defaults; a missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIURL:            getEnv("WARS_API_URL", "https://api.stackswars.com"),
		WSURL:             getEnv("WARS_WS_URL", "wss://api.stackswars.com"),
		AuthToken:         os.Getenv("WARS_AUTH_TOKEN"),
		ChatHistoryLimit:  getEnvInt("WARS_CHAT_HISTORY_LIMIT", 200),
		LobbyPageSize:     getEnvInt("WARS_LOBBY_PAGE_SIZE", 12),
		ReconnectBase:     getEnvDuration("WARS_RECONNECT_BASE", 500*time.Millisecond),
		ReconnectMax:      getEnvDuration("WARS_RECONNECT_MAX", 30*time.Second),
		ReconnectAttempts: getEnvInt("WARS_RECONNECT_ATTEMPTS", 8),
		SendRatePerSec:    getEnvInt("WARS_SEND_RATE", 25),
	}
}

// SendLimiter builds the per-connection outbound rate limiter, or nil when
// the rate is disabled. The burst is double the sustained rate so short
// input flurries are not delayed.
func (c Config) SendLimiter() *rate.Limiter {
	if c.SendRatePerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.SendRatePerSec), 2*c.SendRatePerSec)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
