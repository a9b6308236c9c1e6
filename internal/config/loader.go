package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML configuration file at path (skipped when path is
// empty), merges it on top of the built-in defaults, applies TCAPP_*
// environment variable overrides, and returns the result. The returned
// Config has NOT been validated; call Config.Validate() afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present (silently ignore when missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TCAPP_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Port, "TCAPP_PORT")
	setCSV(&cfg.Server.CORSOrigins, "TCAPP_CORS_ORIGINS")

	setStr(&cfg.Database.DSN, "TCAPP_DATABASE_URL")
	setInt(&cfg.Database.MaxConns, "TCAPP_DATABASE_MAX_CONNS")
	setBool(&cfg.Database.RunMigrations, "TCAPP_DATABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "TCAPP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TCAPP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TCAPP_REDIS_DB")

	setStr(&cfg.Webhook.Secret, "TCAPP_WEBHOOK_SECRET")
	setDur(&cfg.Webhook.Tolerance, "TCAPP_WEBHOOK_TOLERANCE")

	setStr(&cfg.Mail.APIURL, "TCAPP_MAIL_API_URL")
	setStr(&cfg.Mail.APIKey, "TCAPP_MAIL_API_KEY")
	setStr(&cfg.Mail.From, "TCAPP_MAIL_FROM")
	setStr(&cfg.Mail.BaseURL, "TCAPP_BASE_URL")

	setStr(&cfg.LogLevel, "TCAPP_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = duration{d}
		}
	}
}

func setCSV(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 0 {
		*dst = out
	}
}
