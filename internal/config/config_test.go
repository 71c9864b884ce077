package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "STORE", "CORS_ORIGINS", "APP_ENV", "DICTIONARY_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, StoreMemory, cfg.App.Store)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("STORE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("DICTIONARY_URL", "https://dict.test/base.yaml")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, StoreRedis, cfg.App.Store)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://dict.test/base.yaml", cfg.Descriptor.DictionaryURL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=staging\nREDIS_DB=notanumber\n"), 0o644))
	// godotenv does not override variables that are already set, even empty.
	os.Unsetenv("APP_ENV")
	os.Unsetenv("REDIS_DB")
	t.Cleanup(func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("REDIS_DB")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: "1"}, App: AppConfig{Store: "sqlite"}}
	assert.Error(t, cfg.Validate())
	cfg.App.Store = StoreRedis
	assert.Error(t, cfg.Validate())
	cfg.Redis.Addr = "x:1"
	assert.NoError(t, cfg.Validate())
	cfg.Server.Port = ""
	assert.Error(t, cfg.Validate())
}
