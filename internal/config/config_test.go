package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopkit/rostersync/internal/store"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load(New(), "")
	require.NoError(t, err)

	assert.Empty(t, c.File)
	assert.Equal(t, "agent-browser", c.Browser.Binary)
	assert.Equal(t, 120*time.Second, c.Sync.LoginTimeout)
	assert.Equal(t, 3, c.Sync.StuckPageLimit)
	assert.Equal(t, 20, c.Sync.MinPageCeiling)
	assert.True(t, c.Sync.Headed)
	assert.Equal(t, store.DriverSQLite, c.Database.Driver)
	assert.Equal(t, 500*time.Millisecond, c.Watch.Debounce)
	assert.False(t, c.Staging.P18AsAdult)

	o := c.OrchestratorConfig()
	assert.Equal(t, 2, o.RosterRetries)
	assert.Equal(t, 3*time.Second, o.RosterRetryDelay)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, "rostersync.yaml", `
unit:
  id: troop-3
sync:
  rate_limit_delay: 250ms
  roster_only: true
database:
  driver: postgres
  dsn: postgres://localhost/roster
staging:
  p18_as_adult: true
`)
	t.Setenv("ROSTERSYNC_SYNC_STUCK_PAGE_LIMIT", "5")
	t.Setenv("ROSTERSYNC_LOG_FORMAT", "console")

	c, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, path, c.File)
	assert.Equal(t, "troop-3", c.Unit.ID)
	assert.Equal(t, 250*time.Millisecond, c.Sync.RateLimitDelay)
	assert.True(t, c.Sync.RosterOnly)
	assert.Equal(t, 5, c.Sync.StuckPageLimit)
	assert.Equal(t, "console", c.Log.Format)
	assert.Equal(t, store.Config{Driver: "postgres", DSN: "postgres://localhost/roster"}, c.StoreConfig())
	assert.True(t, c.StagingOptions().P18AsAdult)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "rostersync.toml", `
[browser]
binary = "/opt/agent-browser"
command_timeout = "30s"

[tour]
attempts = 5
`)
	c, err := Load(New(), path)
	require.NoError(t, err)

	r := c.Runner()
	assert.Equal(t, "/opt/agent-browser", r.Binary)
	assert.Equal(t, 30*time.Second, r.Timeout)
	assert.Equal(t, 5, c.BrowserConfig(nil).TourAttempts)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "rostersync.yaml", "unit:\n  id: from-file\n")

	v := New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("unit", "", "")
	require.NoError(t, BindFlags(v, flags, map[string]string{"unit": "unit.id"}))
	require.NoError(t, flags.Parse([]string{"--unit", "from-flag"}))

	c, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", c.Unit.ID)

	assert.Error(t, BindFlags(v, flags, map[string]string{"missing": "unit.id"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero stuck limit", func(c *Config) { c.Sync.StuckPageLimit = 0 }},
		{"negative retries", func(c *Config) { c.Sync.RosterRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			c, err := Load(New(), "")
			require.NoError(t, err)
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
