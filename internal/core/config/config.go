package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	BackendURL    string
	BackendAPIKey string
	GeocoderURL   string

	RedisAddr string // empty disables the shared cache tier

	CacheTTL      time.Duration
	CacheCapacity int

	FeedLimit int
	MapLimit  int

	RequestTimeout time.Duration

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		BackendURL:    getenv("BACKEND_URL", "http://localhost:54321"),
		BackendAPIKey: getenv("BACKEND_API_KEY", ""),
		GeocoderURL:   getenv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),

		RedisAddr: getenv("REDIS_ADDR", ""),

		CacheTTL:      getduration("CACHE_TTL", 45*time.Second),
		CacheCapacity: getint("CACHE_CAPACITY", 512),

		FeedLimit: getint("FEED_LIMIT", 50),
		MapLimit:  getint("MAP_LIMIT", 200),

		RequestTimeout: getduration("REQUEST_TIMEOUT", 15*time.Second),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "events-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "discovery-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
