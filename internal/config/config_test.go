package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")
	t.Setenv("AUDIT_BROKER", "")
	t.Setenv("JWT_EXPIRY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, BrokerNone, cfg.AuditBroker)
	assert.NotEmpty(t, cfg.JWTSecret, "development gets a fallback secret")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_FromEnvFile(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	// godotenv does not override variables that are already set.
	for _, key := range []string{"JWT_SECRET", "AUDIT_BROKER", "JWT_EXPIRY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nAUDIT_BROKER=mqtt\nJWT_EXPIRY=2h\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, BrokerMQTT, cfg.AuditBroker)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
}

func TestLoad_InvalidBroker(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUDIT_BROKER", "kafka")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "42")
	t.Setenv("X_BAD_INT", "forty")
	t.Setenv("X_DUR", "90s")

	assert.Equal(t, 42, getEnvInt("X_INT", 1))
	assert.Equal(t, 1, getEnvInt("X_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DUR", time.Second))
	assert.Equal(t, "fallback", getEnv("X_UNSET_FOR_SURE", "fallback"))
}
