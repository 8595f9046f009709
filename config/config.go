package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	// Addr is the listen address of the signaling server.
	Addr string
	// SetupTimeout bounds how long a call may ring before both sides are
	// notified of the timeout.
	SetupTimeout time.Duration
	// STUNServers are handed to peer connections for candidate discovery.
	STUNServers []string
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
	// ServerURL is the signaling endpoint the client dials.
	ServerURL string
}

func Load() *Config {
	return &Config{
		Addr:           getEnv("TELECALL_ADDR", ":8080"),
		SetupTimeout:   getDuration("TELECALL_SETUP_TIMEOUT", 30*time.Second),
		STUNServers:    getList("TELECALL_STUN_SERVERS", []string{"stun:stun.l.google.com:19302"}),
		AllowedOrigins: getList("TELECALL_ALLOWED_ORIGINS", nil),
		ServerURL:      getEnv("TELECALL_SERVER_URL", "ws://localhost:8080/ws"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
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

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
