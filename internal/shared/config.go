package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv          string
	LogLevel        string
	HTTPAddr        string
	MetricsAddr     string
	FeedURLs        []string
	FeedRPS         int
	RefreshInterval time.Duration
	CountryCode     string
	ChatPresetText  string
	AliasesFile     string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	CacheTTL        time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer; using default")
		}
		return def
	}
	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", "info"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ""),
		FeedURLs:        splitList(env("FEED_URL", "")),
		FeedRPS:         atoi("FEED_RPS", 1),
		RefreshInterval: time.Duration(atoi("REFRESH_INTERVAL_MS", 60000)) * time.Millisecond,
		CountryCode:     env("COUNTRY_CODE", "91"),
		ChatPresetText:  env("CHAT_PRESET_TEXT", ""),
		AliasesFile:     env("ALIASES_FILE", ""),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}
	if len(c.FeedURLs) == 0 {
		log.Warn().Msg("FEED_URL is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// splitList reads a comma-separated env value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
