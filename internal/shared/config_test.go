package shared_test

import (
	"reflect"
	"testing"
	"time"

	"resident_directory/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"FEED_URL", "REFRESH_INTERVAL_MS", "COUNTRY_CODE", "REDIS_ADDR", "CACHE_TTL_SECONDS"} {
		t.Setenv(k, "")
	}
	c := shared.Load()
	if c.RefreshInterval != 60*time.Second {
		t.Fatalf("interval: %v", c.RefreshInterval)
	}
	if c.CountryCode != "91" {
		t.Fatalf("country code: %q", c.CountryCode)
	}
	if c.RedisAddr != "" || c.CacheTTL != 15*time.Minute {
		t.Fatalf("cache defaults: %q %v", c.RedisAddr, c.CacheTTL)
	}
	if len(c.FeedURLs) != 0 {
		t.Fatalf("feed urls: %v", c.FeedURLs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEED_URL", "https://a.example/pub?output=csv, ,https://b.example/x.csv")
	t.Setenv("REFRESH_INTERVAL_MS", "1500")
	t.Setenv("COUNTRY_CODE", "44")
	t.Setenv("REDIS_DB", "oops")

	c := shared.Load()
	want := []string{"https://a.example/pub?output=csv", "https://b.example/x.csv"}
	if !reflect.DeepEqual(c.FeedURLs, want) {
		t.Fatalf("feed urls: %v", c.FeedURLs)
	}
	if c.RefreshInterval != 1500*time.Millisecond {
		t.Fatalf("interval: %v", c.RefreshInterval)
	}
	if c.CountryCode != "44" {
		t.Fatalf("country code: %q", c.CountryCode)
	}
	if c.RedisDB != 0 {
		t.Fatalf("bad integer should fall back to default, got %d", c.RedisDB)
	}
}

func TestLoad_NonPositiveInterval(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL_MS", "-5")
	if c := shared.Load(); c.RefreshInterval != time.Minute {
		t.Fatalf("interval: %v", c.RefreshInterval)
	}
}
