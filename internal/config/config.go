package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	QMPSocket         string
	QGASocket         string // empty disables guest agent routes
	QGARequired       bool   // fail startup when the guest agent cannot be reached
	BridgeAddr        string
	BridgeUser        string
	BridgePass        string
	TLSCert           string
	TLSKey            string
	EventPollInterval time.Duration
	LogLevel          slog.Level
	CDDevice          string // removable drive used for virtual media
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		QMPSocket:         getEnv("QMP_SOCK", "/var/run/qemu/qmp.sock"),
		QGASocket:         getEnv("QGA_SOCK", ""),
		QGARequired:       getBoolEnv("QGA_REQUIRED", false),
		BridgeAddr:        getEnv("BRIDGE_ADDR", ":8080"),
		BridgeUser:        getEnv("BRIDGE_USER", ""),
		BridgePass:        getEnv("BRIDGE_PASS", ""),
		TLSCert:           getEnv("TLS_CERT", ""),
		TLSKey:            getEnv("TLS_KEY", ""),
		EventPollInterval: getDurationEnv("EVENT_POLL_INTERVAL", time.Second),
		LogLevel:          getLevelEnv("LOG_LEVEL", slog.LevelInfo),
		CDDevice:          getEnv("CD_DEVICE", "ide0-cd0"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getLevelEnv accepts debug, info, warn or error in any case.
func getLevelEnv(key string, defaultValue slog.Level) slog.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return defaultValue
	}
	return level
}
