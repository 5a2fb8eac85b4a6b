package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "")
	t.Setenv("VOID_CONFIG", dir)
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("SUBMIT_RATE", "")

	cfg := Load()
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "void.db"), cfg.SQLitePath)
	assert.Equal(t, filepath.Join(dir, "void.log"), cfg.LogFile())
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 5000, cfg.FetchCeiling)
	assert.Equal(t, time.Minute, cfg.EchoTolerance)
	assert.Equal(t, 5.0, cfg.SubmitRate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VOID_CONFIG", t.TempDir())
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("FETCH_CEILING", "not-a-number")
	t.Setenv("ECHO_TOLERANCE", "30s")
	t.Setenv("VOID_LOG_STDERR", "true")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg := Load()
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 5000, cfg.FetchCeiling)
	assert.Equal(t, 30*time.Second, cfg.EchoTolerance)
	assert.True(t, cfg.LogStderr)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SESSION_SECRET", "s")
	assert.PanicsWithValue(t, "DATABASE_URL is required in production", func() { Load() })

	t.Setenv("DATABASE_URL", "postgres://localhost/void")
	t.Setenv("SESSION_SECRET", "")
	assert.PanicsWithValue(t, "SESSION_SECRET is required in production", func() { Load() })

	t.Setenv("SESSION_SECRET", "s")
	assert.NotPanics(t, func() { Load() })
}
