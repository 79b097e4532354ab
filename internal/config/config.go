package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	LogLevel       slog.Level
	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int
	HTTPTimeout    time.Duration
	QueryTimeout   time.Duration
	PlatformTag    string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// defaults is the only place default values live. Viper serves them for
// unset variables; envOr and seconds fall back to them for blank or
// malformed ones.
var defaults = map[string]any{
	"PORT":                  "8080",
	"LOG_LEVEL":             "info",
	"DB_DRIVER":             "memory",
	"DB_MAX_OPEN_CONNS":     10,
	"HTTP_TIMEOUT_SECONDS":  15,
	"QUERY_TIMEOUT_SECONDS": 30,
	"PLATFORM_TAG":          "Twitter",
	"RATE_LIMIT_RPS":        0.0,
	"RATE_LIMIT_BURST":      10,
	"CORS_ORIGINS":          "*",
}

// FromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first; variables already set win.
func FromEnv() Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	return Config{
		Port:           envOr(v, "PORT"),
		LogLevel:       ParseLevel(v.GetString("LOG_LEVEL")),
		DBDriver:       strings.ToLower(envOr(v, "DB_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		HTTPTimeout:    seconds(v, "HTTP_TIMEOUT_SECONDS"),
		QueryTimeout:   seconds(v, "QUERY_TIMEOUT_SECONDS"),
		PlatformTag:    envOr(v, "PLATFORM_TAG"),
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
	}
}

// ParseLevel maps debug, warn and error to their slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOr(v *viper.Viper, k string) string {
	s := strings.TrimSpace(v.GetString(k))
	if s == "" {
		return defaults[k].(string)
	}
	return s
}

func seconds(v *viper.Viper, k string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(k)) + "s")
	if err != nil || d <= 0 {
		return time.Duration(defaults[k].(int)) * time.Second
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
