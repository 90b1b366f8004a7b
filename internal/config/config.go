// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9820".
	Addr string `koanf:"addr"`

	// RedisAddr points at the Redis instance backing the invalidation bus
	// and the rank indices. Empty selects the in-process implementations.
	RedisAddr string `koanf:"redis_addr"`

	// RedisPassword and RedisDB complete the Redis connection settings.
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// DataDir is the root for beatmap files and replays.
	DataDir string `koanf:"data_dir"`

	// AuthURL is the identity-check endpoint of the auth service.
	AuthURL string `koanf:"auth_url"`

	// AuthKey is the shared secret sent to the auth service.
	AuthKey string `koanf:"auth_key"`

	// OsuAPIURL and OsuAPIKey configure the beatmap metadata API.
	OsuAPIURL string `koanf:"osu_api_url"`
	OsuAPIKey string `koanf:"osu_api_key"`

	// MapFileURL is the canonical source for raw .osu files by map id.
	MapFileURL string `koanf:"map_file_url"`

	// PerformanceBin is the external rating engine binary.
	PerformanceBin string `koanf:"performance_bin"`

	// ServerDomain is used when building map and profile URLs.
	ServerDomain string `koanf:"server_domain"`

	// ExternalTimeoutMS bounds every outbound collaborator call.
	ExternalTimeoutMS int `koanf:"external_timeout_ms"`

	// ChecksumCacheSize bounds the in-memory duplicate checksum guard.
	ChecksumCacheSize int `koanf:"checksum_cache_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9820",
		RedisAddr:         "",
		RedisDB:           0,
		DataDir:           "data",
		AuthURL:           "http://127.0.0.1:9823/user-auth",
		OsuAPIURL:         "https://old.ppy.sh/api/get_beatmaps",
		MapFileURL:        "https://old.ppy.sh/osu",
		PerformanceBin:    "osu-performance",
		ServerDomain:      "aisuru.example",
		ExternalTimeoutMS: 5000,
		ChecksumCacheSize: 50_000,
	}
}
