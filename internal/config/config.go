// Package config loads the server configuration once at startup from the
// environment (and an optional .env file) and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const defaultOpenSeaBaseURL = "https://api.opensea.io/api/v1"

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	DBPath      string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	// OpenSea
	OpenSeaAPIKey            string
	OpenSeaBaseURL           string
	OpenSeaRequireAPIKey     bool
	OpenSeaPageSize          int
	OpenSeaAssetPageSize     int
	OpenSeaRequestsPerSecond float64
	OpenSeaTimeout           time.Duration

	// Trades
	TradeSummaryPolicy models.SummaryPolicy
	TradeAllowPartial  bool
	TradeCacheSize     int
	TradeCacheTTL      time.Duration

	// Redis (optional shared trade cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Background workers
	StatsRefreshInterval time.Duration
	StatsBatchSize       int
	StatsStaleness       time.Duration
	SnapshotHour         int

	rawSummaryPolicy string
}

// Load reads configuration from the environment, loading .env first if present
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Info: .env file could not be loaded: %v", err)
	}
	// Local overrides
	_ = godotenv.Overload(".env.local")

	rawPolicy := getEnv("TRADE_SUMMARY_POLICY", string(models.SummaryPolicyAny))
	policy, _ := models.ParseSummaryPolicy(rawPolicy)

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "./ape_monitor.db"),
		CORSOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}, ","),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		OpenSeaAPIKey:            getEnv("OPENSEA_API_KEY", ""),
		OpenSeaBaseURL:           strings.TrimRight(getEnv("OPENSEA_BASE_URL", defaultOpenSeaBaseURL), "/"),
		OpenSeaRequireAPIKey:     getEnvAsBool("OPENSEA_REQUIRE_API_KEY", false),
		OpenSeaPageSize:          getEnvAsInt("OPENSEA_PAGE_SIZE", 300),
		OpenSeaAssetPageSize:     getEnvAsInt("OPENSEA_ASSET_PAGE_SIZE", 50),
		OpenSeaRequestsPerSecond: getEnvAsFloat("OPENSEA_REQUESTS_PER_SECOND", 2),
		OpenSeaTimeout:           getEnvAsDuration("OPENSEA_TIMEOUT", 30*time.Second),

		TradeSummaryPolicy: policy,
		TradeAllowPartial:  getEnvAsBool("TRADE_ALLOW_PARTIAL", true),
		TradeCacheSize:     getEnvAsInt("TRADE_CACHE_SIZE", 256),
		TradeCacheTTL:      getEnvAsDuration("TRADE_CACHE_TTL", 5*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		StatsRefreshInterval: getEnvAsDuration("STATS_REFRESH_INTERVAL", 15*time.Minute),
		StatsBatchSize:       getEnvAsInt("STATS_BATCH_SIZE", 20),
		StatsStaleness:       getEnvAsDuration("STATS_STALENESS", 24*time.Hour),
		SnapshotHour:         getEnvAsInt("SNAPSHOT_HOUR", 23),

		rawSummaryPolicy: rawPolicy,
	}
}

// Validate returns an error for problems the server cannot start with and
// a list of warnings for problems it can run around.
func (c *Config) Validate() (warnings []string, err error) {
	var fatal []string

	if c.OpenSeaAPIKey == "" {
		if c.OpenSeaRequireAPIKey {
			fatal = append(fatal, "OPENSEA_API_KEY is required (OPENSEA_REQUIRE_API_KEY=true)")
		} else {
			warnings = append(warnings, "OPENSEA_API_KEY not set, requests will be heavily throttled")
		}
	}
	if _, perr := models.ParseSummaryPolicy(c.rawSummaryPolicy); perr != nil {
		fatal = append(fatal, perr.Error())
	}
	if c.OpenSeaPageSize <= 0 {
		fatal = append(fatal, fmt.Sprintf("OPENSEA_PAGE_SIZE must be positive, got %d", c.OpenSeaPageSize))
	}
	if c.OpenSeaAssetPageSize <= 0 {
		fatal = append(fatal, fmt.Sprintf("OPENSEA_ASSET_PAGE_SIZE must be positive, got %d", c.OpenSeaAssetPageSize))
	}
	if c.OpenSeaRequestsPerSecond <= 0 {
		fatal = append(fatal, fmt.Sprintf("OPENSEA_REQUESTS_PER_SECOND must be positive, got %v", c.OpenSeaRequestsPerSecond))
	}
	if c.SnapshotHour < 0 || c.SnapshotHour > 23 {
		fatal = append(fatal, fmt.Sprintf("SNAPSHOT_HOUR must be 0-23, got %d", c.SnapshotHour))
	}
	if c.TradeCacheSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("TRADE_CACHE_SIZE %d is not positive, using 256", c.TradeCacheSize))
		c.TradeCacheSize = 256
	}
	if c.StatsBatchSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("STATS_BATCH_SIZE %d is not positive, using 20", c.StatsBatchSize))
		c.StatsBatchSize = 20
	}

	if len(fatal) > 0 {
		return warnings, fmt.Errorf("invalid configuration: %s", strings.Join(fatal, "; "))
	}
	return warnings, nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the global logger
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Printf("Warning: invalid LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// PrintConfig logs the configuration without secrets
func (c *Config) PrintConfig() {
	log.Printf("Configuration:")
	log.Printf("  Port: %s", c.Port)
	log.Printf("  DB Path: %s", c.DBPath)
	log.Printf("  CORS Origins: %v", c.CORSOrigins)
	log.Printf("  OpenSea Base URL: %s", c.OpenSeaBaseURL)
	if c.OpenSeaAPIKey != "" {
		log.Printf("  OpenSea API Key: [REDACTED]")
	}
	log.Printf("  OpenSea Page Size: %d (assets: %d)", c.OpenSeaPageSize, c.OpenSeaAssetPageSize)
	log.Printf("  OpenSea Rate: %.2f req/s, timeout %v", c.OpenSeaRequestsPerSecond, c.OpenSeaTimeout)
	log.Printf("  Trade Summary Policy: %s", c.TradeSummaryPolicy)
	log.Printf("  Trade Allow Partial: %v", c.TradeAllowPartial)
	log.Printf("  Trade Cache: %d entries, TTL %v", c.TradeCacheSize, c.TradeCacheTTL)
	if c.RedisAddr != "" {
		log.Printf("  Redis Addr: %s (db %d)", c.RedisAddr, c.RedisDB)
		if c.RedisPassword != "" {
			log.Printf("  Redis Password: [REDACTED]")
		}
	}
	log.Printf("  Stats Refresh: every %v, batch %d, stale after %v", c.StatsRefreshInterval, c.StatsBatchSize, c.StatsStaleness)
	log.Printf("  Snapshot Hour: %02d:00 UTC", c.SnapshotHour)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts true/1/yes/on and false/0/no/off (case insensitive)
func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %v", key, os.Getenv(key), defaultValue)
		return defaultValue
	}
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string, sep string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
