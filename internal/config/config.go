package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the fabot compliance bot.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Moderation ModerationConfig `json:"moderation"`
	Database   DatabaseConfig   `json:"database,omitempty"`
	Gateway    GatewayConfig    `json:"gateway"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
	mu         sync.RWMutex
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is never read from config.json (secret), only from env FABOT_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`                     // from env FABOT_POSTGRES_DSN only
	Mode        string `json:"mode,omitempty"`        // "standalone" (default, SQLite) or "managed" (Postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"` // default ~/.fabot/fabot.db
}

// IsManagedMode returns true if settings and sessions live in Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// SQLitePath returns the expanded SQLite database path.
func (c *Config) SQLitePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Database.SQLitePath)
}

// GatewayConfig configures the health/metrics HTTP listener.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"` // 0 disables the listener
}

// TelemetryConfig configures OpenTelemetry export for error reports.
// When disabled, reports still go to the structured log.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317", "https://otel.example.com:4318")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection (set true for local dev)
	ServiceName string            `json:"service_name,omitempty"` // OTEL service name (default "fabot")
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// ModerationConfig tunes the compliance pipeline.
// Durations are Go duration strings ("200ms", "5m").
type ModerationConfig struct {
	Debounce      string `json:"debounce,omitempty"`       // media group quiet period (default "200ms")
	GroupTTL      string `json:"group_ttl,omitempty"`      // max lifetime of a buffered media group (default "5m")
	SweepInterval string `json:"sweep_interval,omitempty"` // TTL sweep period (default "1m")
	Timezone      string `json:"timezone,omitempty"`       // notification timestamps (default "Europe/Moscow")
	TimeLayout    string `json:"time_layout,omitempty"`    // default "02.01.2006, 15:04"
}

// DebounceDuration returns the parsed debounce with the default applied.
func (m ModerationConfig) DebounceDuration() time.Duration {
	return parseDuration(m.Debounce, 200*time.Millisecond)
}

// GroupTTLDuration returns the parsed group TTL with the default applied.
func (m ModerationConfig) GroupTTLDuration() time.Duration {
	return parseDuration(m.GroupTTL, 5*time.Minute)
}

// SweepIntervalDuration returns the parsed sweep interval with the default applied.
func (m ModerationConfig) SweepIntervalDuration() time.Duration {
	return parseDuration(m.SweepInterval, time.Minute)
}

// Location resolves the notification timezone. Falls back to a fixed UTC+3
// zone when tzdata is unavailable.
func (m ModerationConfig) Location() *time.Location {
	name := m.Timezone
	if name == "" {
		name = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
