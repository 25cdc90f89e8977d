// Package config collects the service configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Config is the full runtime configuration of the server and the historian.
type Config struct {
	Port     string
	LogLevel logrus.Level

	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string

	RedisAddr string
	RedisDB   int

	// HistoryQueue is the Redis list the engine pushes applied actions to.
	HistoryQueue string

	ScenarioDir string

	DictionaryURL     string
	DictionaryKey     string
	DictionaryTimeout time.Duration
	DictionaryCache   time.Duration
	// DictionaryWords is an optional newline separated word list used
	// instead of the remote dictionary.
	DictionaryWords string

	SessionTTL time.Duration
	// JWTPrivateKeyFile and JWTPublicKeyFile hold raw ed25519 keys. When
	// either is empty a fresh pair is generated at startup.
	JWTPrivateKeyFile string
	JWTPublicKeyFile  string

	// AsyncTimeout bounds external lookups made on behalf of a room.
	AsyncTimeout time.Duration

	HistorianBatchSize int
	HistorianFlush     time.Duration
	RoomInactivity     time.Duration
}

// Load reads the configuration. Only malformed values are errors; missing
// keys fall back to defaults.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: level,

		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresHost:     getEnv("PG_HOST", "localhost"),
		PostgresPort:     getEnv("PG_PORT", "5432"),
		PostgresDatabase: getEnv("PG_DATABASE", "partyroom"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		HistoryQueue: getEnv("HISTORIAN_QUEUE_NAME", "partyroom_actions"),
		ScenarioDir:  os.Getenv("SCENARIO_DIR"),

		DictionaryURL:     os.Getenv("DICTIONARY_URL"),
		DictionaryKey:     os.Getenv("DICTIONARY_KEY"),
		DictionaryTimeout: getEnvDuration("DICTIONARY_TIMEOUT", 2*time.Second),
		DictionaryCache:   getEnvDuration("DICTIONARY_CACHE_TTL", 24*time.Hour),
		DictionaryWords:   os.Getenv("DICTIONARY_WORDS_FILE"),

		SessionTTL:        getEnvDuration("SESSION_TTL", 24*time.Hour),
		JWTPrivateKeyFile: os.Getenv("JWT_PRIVATE_KEY_FILE"),
		JWTPublicKeyFile:  os.Getenv("JWT_PUBLIC_KEY_FILE"),
		AsyncTimeout:      getEnvDuration("ASYNC_TIMEOUT", 3*time.Second),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		RoomInactivity:     time.Duration(getEnvInt("ROOM_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}
	if cfg.HistorianBatchSize < 1 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	return cfg, nil
}

// PostgresURL builds the connection string from the individual parts.
func (c *Config) PostgresURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDatabase)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration parses values like "1500ms" or "2s".
func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
