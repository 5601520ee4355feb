package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// clearEnv unsets a variable for the test and restores any prior value.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	if value, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { _ = os.Setenv(key, value) })
	}
	_ = os.Unsetenv(key)
}

// The database defaults must agree with the credentials provisioned by
// development/docker-compose.yml, so that `migrate up` and the e2e harness
// work against a fresh compose stack with no env vars set.
func TestLoadConfigDatabaseDefaultsMatchDevCompose(t *testing.T) {
	for _, key := range []string{"ENV", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_USE_SSL"} {
		clearEnv(t, key)
	}

	cfg := LoadConfig()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "messagely", cfg.Database.User)
	assert.Equal(t, "messagely", cfg.Database.Password)
	assert.Equal(t, "messagely", cfg.Database.DBName)
	assert.False(t, cfg.Database.UseSSL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t, "ENV")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "15432")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_USE_SSL", "true")

	cfg := LoadConfig()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.True(t, cfg.Database.UseSSL)
}
