package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	return fs
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3003, cfg.RoomsPort)
	assert.Equal(t, "http://localhost:3001", cfg.Collab.IdentityURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]func(c *Config){
		"log level":  func(c *Config) { c.LogLevel = "loud" },
		"log format": func(c *Config) { c.LogFormat = "xml" },
		"port":       func(c *Config) { c.RulesPort = 70000 },
		"storage":    func(c *Config) { c.StorageType = "disk" },
		"redis url":  func(c *Config) { c.StorageType = StorageRedis; c.RedisURL = "" },
		"rate":       func(c *Config) { c.RateLimit = 0 },
		"retention":  func(c *Config) { c.RoomRetention = 0 },
		"collab":     func(c *Config) { c.Collab.RulesURL = "" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg := Default()
	fs := newFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--rooms-port", "9000", "--rate-limit", "2.5", "--room_retention", "1m"}))

	assert.Equal(t, 9000, cfg.RoomsPort)
	assert.Equal(t, rate.Limit(2.5), cfg.Router().RateLimit)
	assert.Equal(t, time.Minute, cfg.Room().Retention)
}

func TestEnvAppliesToUnsetFlags(t *testing.T) {
	t.Setenv("GUESSDUEL_ROOMS_PORT", "9100")
	t.Setenv("GUESSDUEL_STORAGE", "redis")
	t.Setenv("GUESSDUEL_COLLAB_TIMEOUT", "750ms")

	cfg := Default()
	fs := newFlagSet(&cfg)
	require.NoError(t, fs.Parse([]string{"--storage", "memory"}))
	require.NoError(t, ApplyEnv(fs, NewViper()))

	assert.Equal(t, 9100, cfg.RoomsPort)
	assert.Equal(t, 750*time.Millisecond, cfg.Collab.Timeout)
	// The flag was set explicitly
	assert.Equal(t, StorageMemory, cfg.StorageType)
}

func TestEnvWithBadValue(t *testing.T) {
	t.Setenv("GUESSDUEL_RATE_BURST", "lots")

	cfg := Default()
	fs := newFlagSet(&cfg)
	require.NoError(t, fs.Parse(nil))
	assert.ErrorContains(t, ApplyEnv(fs, NewViper()), "GUESSDUEL_RATE_BURST")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GUESSDUEL_RULES_PORT=4002\n"), 0o600))
	t.Setenv("GUESSDUEL_RULES_PORT", "")
	require.NoError(t, os.Unsetenv("GUESSDUEL_RULES_PORT"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "4002", os.Getenv("GUESSDUEL_RULES_PORT"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
