package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 30,
			NotifyRate:  25,
			NotifyBurst: 5,

			RelayPerMinute: 60,
		},
		Moderation: ModerationConfig{
			Debounce:      "200ms",
			GroupTTL:      "5m",
			SweepInterval: "1m",
			Timezone:      "Europe/Moscow",
			TimeLayout:    "02.01.2006, 15:04",
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.fabot/fabot.db",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 9464,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "fabot",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Legacy names first so FABOT_* wins when both are set.
	envStr("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	envStr("FIXED_CHANNEL_ID", &c.Telegram.FixedChannelID)
	if v := os.Getenv("BOT_OWNER_ID"); v != "" {
		c.Telegram.OwnerID = parseOwnerID(v)
	}

	envStr("FABOT_TELEGRAM_TOKEN", &c.Telegram.Token)
	envStr("FABOT_TELEGRAM_PROXY", &c.Telegram.Proxy)
	envStr("FABOT_FIXED_CHANNEL_ID", &c.Telegram.FixedChannelID)
	if v := os.Getenv("FABOT_OWNER_ID"); v != "" {
		c.Telegram.OwnerID = parseOwnerID(v)
	}

	// Moderation tuning
	envStr("FABOT_MEDIA_GROUP_DEBOUNCE", &c.Moderation.Debounce)
	envStr("FABOT_MEDIA_GROUP_TTL", &c.Moderation.GroupTTL)
	envStr("FABOT_TIMEZONE", &c.Moderation.Timezone)

	// Gateway host/port
	envStr("FABOT_HOST", &c.Gateway.Host)
	if v := os.Getenv("FABOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port >= 0 {
			c.Gateway.Port = port
		}
	}

	// Database
	envStr("FABOT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("FABOT_MODE", &c.Database.Mode)
	envStr("FABOT_SQLITE_PATH", &c.Database.SQLitePath)

	// Telemetry
	envStr("FABOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("FABOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("FABOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("FABOT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FABOT_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// ApplyEnvOverrides re-applies environment variable overrides onto the config.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a short SHA-256 hash of the config, used by doctor output.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
// Used by doctor and the settings CLI when printing config.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Deep copy via JSON round-trip
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Telegram.Token)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = secretMask
	}

	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
