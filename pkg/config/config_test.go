package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, "sqlite", cfg.Tracker.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Tracker.Database.SQLite.Path)
	assert.Equal(t, DefaultFlakyMinRuns, cfg.Tracker.Flaky.MinRuns)
	assert.Equal(t, DefaultFlakyMinFailureRate, cfg.Tracker.Flaky.MinFailureRate)
	assert.Equal(t, DefaultHistoryLimit, cfg.Tracker.HistoryLimit)
	assert.Equal(t, DefaultReportHistoryLimit, cfg.Tracker.ReportHistoryLimit)
	assert.False(t, cfg.Tracker.Snapshot.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileWithDefaults(t *testing.T) {
	configContent := `
global:
  log_level: debug
tracker:
  database:
    driver: sqlite
    sqlite:
      path: /tmp/test-results.db
  flaky:
    min_runs: 5
  snapshot:
    enabled: true
api:
  listen: ":9090"
  shutdown_timeout: 5s
  rate_limit:
    enabled: true
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/test-results.db", cfg.Tracker.Database.SQLite.Path)
	assert.Equal(t, 5, cfg.Tracker.Flaky.MinRuns)

	// Unspecified options fall back to defaults.
	assert.Equal(t, DefaultFlakyMinFailureRate, cfg.Tracker.Flaky.MinFailureRate)
	assert.Equal(t, DefaultSnapshotPath, cfg.Tracker.Snapshot.Path)
	assert.True(t, cfg.Tracker.Snapshot.Enabled)

	require.NotNil(t, cfg.API)
	assert.Equal(t, ":9090", cfg.API.Listen)
	assert.Equal(t, 5*time.Second, cfg.API.ShutdownTimeout)
	assert.Equal(t, DefaultAPIRequestsPerMinute, cfg.API.RateLimit.RequestsPerMinute)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MergeOverridesEarlierFiles(t *testing.T) {
	tmpDir := t.TempDir()

	basePath := filepath.Join(tmpDir, "base.yaml")
	require.NoError(t, os.WriteFile(basePath, []byte(`
global:
  log_level: info
tracker:
  history_limit: 20
`), 0o644))

	overridePath := filepath.Join(tmpDir, "override.yaml")
	require.NoError(t, os.WriteFile(overridePath, []byte(`
global:
  log_level: warning
`), 0o644))

	cfg, err := Load(basePath, overridePath)
	require.NoError(t, err)

	assert.Equal(t, "warning", cfg.Global.LogLevel)
	assert.Equal(t, 20, cfg.Tracker.HistoryLimit)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "unsupported driver",
			mutate: func(cfg *Config) {
				cfg.Tracker.Database.Driver = "mysql"
			},
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Tracker.Database.Driver = "postgres"
			},
		},
		{
			name: "failure rate out of range",
			mutate: func(cfg *Config) {
				cfg.Tracker.Flaky.MinFailureRate = 1.5
			},
		},
		{
			name: "basic auth without users",
			mutate: func(cfg *Config) {
				cfg.API = &APIConfig{
					Listen: ":8080",
					Auth: APIAuthConfig{
						Basic: BasicAuthConfig{Enabled: true},
					},
				}
			},
		},
		{
			name: "auth user without password hash",
			mutate: func(cfg *Config) {
				cfg.API = &APIConfig{
					Listen: ":8080",
					Auth: APIAuthConfig{
						Basic: BasicAuthConfig{
							Enabled: true,
							Users:   []BasicAuthUser{{Username: "ops"}},
						},
					},
				}
			},
		},
		{
			name: "s3 upload without bucket",
			mutate: func(cfg *Config) {
				cfg.Upload = &UploadConfig{
					S3: &S3UploadConfig{Enabled: true},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			assert.Error(t, cfg.Validate())
		})
	}
}
