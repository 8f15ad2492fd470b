package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/app"},
		Auth:     AuthConfig{AdminJWTSecret: "secret"},
		Chat:     ChatConfig{IPHashSalt: "salt"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateMissingIPHashSalt(t *testing.T) {
	cfg := validConfig()
	cfg.Chat.IPHashSalt = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IP_HASH_SALT")
}

func TestValidateMissingAdminJWTSecret(t *testing.T) {
	// Admin tokens are HS256; a blank secret would verify anything.
	cfg := validConfig()
	cfg.Auth.AdminJWTSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
}
