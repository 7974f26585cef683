// Package config loads process-wide settings from the environment; no
// config-file layering is needed for this daemon's scope.
package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds everything the daemon needs at startup.
type ServerConfig struct {
	Port                  string
	AdminKey              string
	LogLevel              string
	LogFile               string
	DiscordWebhookTimeout time.Duration
	MudWhitelist          []MudTarget
	DefaultScriptsFile    string
}

// MudTarget is one entry in the whitelist of (host, port) pairs a session
// may connect to via `set_server`.
type MudTarget struct {
	Host string
	Port int
}

// DefaultWhitelist is the process-wide, read-only set of MUD servers a
// session is permitted to connect to.
var DefaultWhitelist = []MudTarget{
	{Host: "3k.org", Port: 3000},
	{Host: "3scapes.org", Port: 3200},
}

// Load reads ServerConfig from the environment, applying defaults for
// anything unset.
func Load() ServerConfig {
	cfg := ServerConfig{
		Port:                  getenv("PORT", "8080"),
		AdminKey:              os.Getenv("ADMIN_KEY"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFile:               os.Getenv("LOG_FILE"),
		DiscordWebhookTimeout: durationMS(getenv("DISCORD_WEBHOOK_TIMEOUT_MS", "5000")),
		MudWhitelist:          DefaultWhitelist,
		DefaultScriptsFile:    os.Getenv("DEFAULT_SCRIPTS_FILE"),
	}
	return cfg
}

// Allowed reports whether (host, port) is in the MUD whitelist.
func (c ServerConfig) Allowed(host string, port int) bool {
	for _, t := range c.MudWhitelist {
		if t.Host == host && t.Port == port {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationMS(raw string) time.Duration {
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}
