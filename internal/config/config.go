package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Legacy bridge modes.
const (
	BridgeBidirectional = "bidirectional"
	BridgeProjection    = "projection"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Log       LogConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Dashboard DashboardConfig
	Sync      SyncConfig
	Slack     SlackConfig
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// cross-instance change events.
type RedisConfig struct {
	Addr      string
	Password  string //nolint:gosec // G117: Redis connection config
	DB        int
	Namespace string
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64 // requests per second per client IP
	RateBurst    int
}

// DashboardConfig holds alert cache settings.
type DashboardConfig struct {
	TTL             time.Duration
	RefreshInterval time.Duration
	MaxScopes       int
}

// SyncConfig holds task synchronization settings.
type SyncConfig struct {
	SchemaPath   string // empty means the embedded default schema
	LegacyBridge string
	OnStartup    bool
}

// SlackConfig holds red-zone escalation settings. Escalation is off unless
// both the token and the channel are set.
type SlackConfig struct {
	BotToken string //nolint:gosec // G117: Slack bot token
	Channel  string
	Interval time.Duration
}

// Enabled reports whether Slack escalation is configured.
func (c *SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.Channel != ""
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("CARELINE_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("CARELINE_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CARELINE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("CARELINE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CARELINE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimit, err := getEnvFloat("CARELINE_RATE_LIMIT", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("CARELINE_RATE_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dashboardTTL, err := getEnvDuration("CARELINE_DASHBOARD_TTL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dashboardRefresh, err := getEnvDuration("CARELINE_DASHBOARD_REFRESH", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dashboardScopes, err := getEnvInt("CARELINE_DASHBOARD_MAX_SCOPES", 256)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	syncOnStartup, err := getEnvBool("CARELINE_SYNC_ON_STARTUP", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	slackInterval, err := getEnvDuration("CARELINE_SLACK_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("CARELINE_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("CARELINE_LOG_LEVEL", "info"),
			Format: getEnv("CARELINE_LOG_FORMAT", "json"),
		},
		Store: StoreConfig{
			Backend: getEnv("CARELINE_STORE", BackendMemory),
		},
		Database: DatabaseConfig{
			Host:     getEnv("CARELINE_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("CARELINE_DB_USER", "careline"),
			Password: getEnv("CARELINE_DB_PASSWORD", ""),
			DBName:   getEnv("CARELINE_DB_NAME", "careline_dev"),
			SSLMode:  getEnv("CARELINE_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:      getEnv("CARELINE_REDIS_ADDR", ""),
			Password:  getEnv("CARELINE_REDIS_PASSWORD", ""),
			DB:        redisDB,
			Namespace: getEnv("CARELINE_REDIS_NAMESPACE", "default"),
		},
		Server: ServerConfig{
			Addr:         getEnv("CARELINE_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			RateLimit:    rateLimit,
			RateBurst:    rateBurst,
		},
		Dashboard: DashboardConfig{
			TTL:             dashboardTTL,
			RefreshInterval: dashboardRefresh,
			MaxScopes:       dashboardScopes,
		},
		Sync: SyncConfig{
			SchemaPath:   getEnv("CARELINE_SCHEMA_PATH", ""),
			LegacyBridge: getEnv("CARELINE_LEGACY_BRIDGE", BridgeBidirectional),
			OnStartup:    syncOnStartup,
		},
		Slack: SlackConfig{
			BotToken: getEnv("CARELINE_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("CARELINE_SLACK_CHANNEL", ""),
			Interval: slackInterval,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks enumerations and value bounds.
func (c *Config) validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("CARELINE_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("CARELINE_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("CARELINE_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("CARELINE_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	default:
		return fmt.Errorf("CARELINE_STORE must be %s or %s, got %q", BackendMemory, BackendPostgres, c.Store.Backend)
	}

	switch c.Sync.LegacyBridge {
	case BridgeBidirectional, BridgeProjection:
	default:
		return fmt.Errorf("CARELINE_LEGACY_BRIDGE must be %s or %s, got %q", BridgeBidirectional, BridgeProjection, c.Sync.LegacyBridge)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CARELINE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CARELINE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("CARELINE_RATE_LIMIT must be positive, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("CARELINE_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Dashboard.TTL <= 0 {
		return fmt.Errorf("CARELINE_DASHBOARD_TTL must be positive, got %s", c.Dashboard.TTL)
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("CARELINE_DASHBOARD_REFRESH must be positive, got %s", c.Dashboard.RefreshInterval)
	}
	if c.Dashboard.MaxScopes < 1 {
		return fmt.Errorf("CARELINE_DASHBOARD_MAX_SCOPES must be >= 1, got %d", c.Dashboard.MaxScopes)
	}
	if (c.Slack.BotToken == "") != (c.Slack.Channel == "") {
		return errors.New("CARELINE_SLACK_BOT_TOKEN and CARELINE_SLACK_CHANNEL must be set together")
	}
	if c.Slack.Enabled() && c.Slack.Interval <= 0 {
		return fmt.Errorf("CARELINE_SLACK_INTERVAL must be positive, got %s", c.Slack.Interval)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
