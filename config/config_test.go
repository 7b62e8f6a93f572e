package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Swind/go-job-center/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolated env prefix so the developer's environment cannot leak in
const testPrefix = "JOBCENTER_TEST_"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobcenter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{EnvPrefix: testPrefix})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestLoad_Precedence verifies flags > env > file > defaults
// Given: a file, env vars and one explicitly set flag touching overlapping keys
// When: Load merges them
// Then: each key takes the value from the highest layer that sets it
func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
center:
  workers: 3
  history: 50
frame:
  interval: 20ms
`)
	t.Setenv(testPrefix+"CENTER_WORKERS", "5")
	t.Setenv(testPrefix+"CENTER_IDLE_RATIO", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--workers=7", "--routes=generic,io;slow"}))

	cfg, err := Load(LoadOptions{Path: path, Flags: flags, EnvPrefix: testPrefix})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Center.Workers)
	assert.Equal(t, "generic,io;slow", cfg.Center.Routes)
	assert.Equal(t, 50, cfg.Center.History, "unset flag must not override the file")
	assert.Equal(t, 3.0, cfg.Center.IdleRatio)
	assert.Equal(t, 20*time.Millisecond, cfg.Frame.Interval)
	assert.Equal(t, core.DefaultFrameBudget, cfg.Frame.Budget)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "absent.yaml"), EnvPrefix: testPrefix})
	require.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero workers", "CENTER_WORKERS", "0"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"ratio below one", "CENTER_IDLE_RATIO", "0.5"},
		{"budget above interval", "FRAME_BUDGET", "1s"},
		{"bad metrics addr", "METRICS_ADDR", "not an address"},
		{"main thread route", "CENTER_ROUTES", "generic;main-thread"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testPrefix+tt.key, tt.val)
			_, err := Load(LoadOptions{EnvPrefix: testPrefix})
			require.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "center.idle_initial", envKey("JOBCENTER_", "JOBCENTER_CENTER_IDLE_INITIAL"))
	assert.Equal(t, "log.level", envKey("JOBCENTER_", "JOBCENTER_LOG_LEVEL"))
	assert.Equal(t, "strict", envKey("JOBCENTER_", "JOBCENTER_STRICT"))
}

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes(" generic, io ; generic-slow ")
	require.NoError(t, err)
	assert.Equal(t, [][]core.Category{
		{core.CategoryGeneric, core.CategoryIO},
		{core.CategoryGenericSlow},
	}, routes)

	routes, err = ParseRoutes("")
	require.NoError(t, err)
	assert.Nil(t, routes)

	_, err = ParseRoutes("generic;;io")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = ParseRoutes("generic,gpu")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = ParseRoutes("main")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestToCenterConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Center.Name = "configured"
	cfg.Center.Routes = "generic;io,generic-slow"
	cfg.Center.Strict = true
	cfg.Center.History = 10

	centerCfg, err := cfg.ToCenterConfig()
	require.NoError(t, err)
	assert.Equal(t, "configured", centerCfg.Name)
	assert.True(t, centerCfg.Strict)
	assert.Equal(t, 10, centerCfg.HistoryCapacity)
	assert.Equal(t, core.DefaultIdleBackoff(), centerCfg.IdleBackoff)

	center, err := core.NewCenter(centerCfg)
	require.NoError(t, err)
	assert.Equal(t, 2, center.WorkerCount())
	assert.Equal(t, [][]core.Category{
		{core.CategoryGeneric},
		{core.CategoryIO, core.CategoryGenericSlow},
	}, center.Routes())
}
