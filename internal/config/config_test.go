package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("DB_DRIVER", "")

	cfg := Load()

	assert.Equal(t, StorageRelational, cfg.StorageMode)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_MODE", "Fallback")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()

	assert.Equal(t, StorageFallback, cfg.StorageMode)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown storage mode", func(c *Config) { c.StorageMode = "indexeddb" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, true},
		{"unknown session store", func(c *Config) { c.SessionStore = "memcached" }, true},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				StorageMode:  StorageRelational,
				DBDriver:     DriverSQLite,
				SessionStore: "cookie",
				BcryptCost:   10,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
