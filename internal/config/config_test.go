package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "REDIS_DB", "DICTIONARY_TIMEOUT", "HISTORIAN_BATCH_SIZE", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.DictionaryTimeout)
	assert.Equal(t, 20, cfg.HistorianBatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DICTIONARY_TIMEOUT", "750ms")
	t.Setenv("HISTORIAN_FLUSH_MS", "not-a-number")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_DATABASE", "rooms")
	t.Setenv("JWT_PRIVATE_KEY_FILE", "/keys/jwt.key")
	t.Setenv("JWT_PUBLIC_KEY_FILE", "/keys/jwt.pub")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 750*time.Millisecond, cfg.DictionaryTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlush)
	assert.Equal(t, "postgres://u:p@db:6543/rooms", cfg.PostgresURL())
	assert.Equal(t, "/keys/jwt.key", cfg.JWTPrivateKeyFile)
	assert.Equal(t, "/keys/jwt.pub", cfg.JWTPublicKeyFile)

	t.Setenv("DATABASE_URL", "postgres://elsewhere/x")
	assert.Equal(t, "postgres://elsewhere/x", cfg.PostgresURL())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("HISTORIAN_BATCH_SIZE", "0")
	_, err = Load()
	assert.Error(t, err)
}
