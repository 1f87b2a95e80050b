package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Snapshot pull.
	SnapshotBaseURL  string
	SnapshotInterval time.Duration
	SnapshotTimeout  time.Duration

	// Push stream.
	StreamURL          string
	StreamEnabled      bool
	StreamReconnectMax time.Duration

	// View model bounds.
	StreamCapacity int
	ArcCapacity    int
	FeedLimit      int
	ArcOriginLat   float64
	ArcOriginLng   float64

	// IP geolocation for pushed messages without coordinates.
	GeoIPDBPath    string
	GeoIPCacheSize int

	// Optional relay of accepted stream records.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaRelayTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SnapshotBaseURL: sharedcfg.EnvOrDefault("SNAPSHOT_BASE_URL", "http://localhost:8000/api/v1"),
		StreamURL:       sharedcfg.EnvOrDefault("STREAM_URL", "ws://localhost:8000/ws"),
		GeoIPDBPath:     sharedcfg.EnvOrDefault("GEOIP_DB_PATH", ""),
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRelayTopic: sharedcfg.EnvOrDefault("KAFKA_RELAY_TOPIC", "vigil-stream-events"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SNAPSHOT_INTERVAL", "5m", &cfg.SnapshotInterval},
		{"SNAPSHOT_TIMEOUT", "30s", &cfg.SnapshotTimeout},
		{"STREAM_RECONNECT_MAX", "30s", &cfg.StreamReconnectMax},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	sizes := []struct {
		key string
		def int
		dst *int
	}{
		{"STREAM_CAPACITY", 500, &cfg.StreamCapacity},
		{"ARC_CAPACITY", 30, &cfg.ArcCapacity},
		{"FEED_LIMIT", 50, &cfg.FeedLimit},
		{"GEOIP_CACHE_SIZE", 1000, &cfg.GeoIPCacheSize},
	}
	for _, s := range sizes {
		if *s.dst, err = parsePositiveInt(s.key, s.def); err != nil {
			return nil, err
		}
	}

	if cfg.StreamEnabled, err = parseBool("STREAM_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.ArcOriginLat, err = parseFloat("ARC_ORIGIN_LAT", 43.65, 90); err != nil {
		return nil, err
	}
	if cfg.ArcOriginLng, err = parseFloat("ARC_ORIGIN_LNG", -79.38, 180); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if u, err := url.Parse(c.SnapshotBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("SNAPSHOT_BASE_URL must be an http(s) URL")
	}
	if c.StreamEnabled {
		if u, err := url.Parse(c.StreamURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return errors.New("STREAM_URL must be a ws(s) URL")
		}
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseFloat(key string, def, limit float64) (float64, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < -limit || f > limit {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
