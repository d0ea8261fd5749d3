package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ReservationID = "1234"
	cfg.CSVFile = writeFile(t, t.TempDir(), "assets.csv", "A1\nB2\n")
	cfg.SiteURL = "trail.example.com"
	cfg.Username = "ops@example.com"
	cfg.Password = "secret"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, VerbosityNormal, cfg.Logging.Verbosity)
	assert.Equal(t, reservation.DefaultTimeouts(), cfg.Timeouts)
	assert.Equal(t, "#reservation_item", cfg.Selectors.ItemInput)
	assert.Equal(t, DefaultEnvFile, cfg.EnvFile)
	assert.False(t, cfg.Headless)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing reservation", modify: func(c *Config) { c.ReservationID = " " }, wantErr: "reservation ID is required"},
		{name: "missing csv", modify: func(c *Config) { c.CSVFile = "" }, wantErr: "CSV file is required"},
		{name: "csv does not exist", modify: func(c *Config) { c.CSVFile = "/nonexistent/assets.csv" }, wantErr: "does not exist"},
		{name: "csv is directory", modify: func(c *Config) { c.CSVFile = t.TempDir() }, wantErr: "is a directory"},
		{name: "missing site", modify: func(c *Config) { c.SiteURL = "" }, wantErr: "site URL is required"},
		{name: "reservation with slash", modify: func(c *Config) { c.ReservationID = "12/34" }, wantErr: "must not contain"},
		{name: "missing password", modify: func(c *Config) { c.Password = "" }, wantErr: "username and password"},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: "workers must be at least 1"},
		{name: "zero attempts", modify: func(c *Config) { c.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "negative timeout", modify: func(c *Config) { c.Timeouts.Action = -time.Second }, wantErr: "negative"},
		{name: "bad verbosity", modify: func(c *Config) { c.Logging.Verbosity = "loud" }, wantErr: "invalid logging verbosity"},
		{name: "artifacts without dir", modify: func(c *Config) {
			c.Artifacts.Enabled = true
			c.Artifacts.OutputDir = ""
		}, wantErr: "output_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DefaultsVerbosity(t *testing.T) {
	cfg := validConfig(t)
	cfg.Logging.Verbosity = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, VerbosityNormal, cfg.Logging.Verbosity)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bulk-add.yaml", `
reservation_id: "5678"
site_url: https://trail.example.org
headless: true
workers: 5
timeouts:
  action: 30s
selectors:
  item_input: "#scan_field"
logging:
  verbosity: verbose
artifacts:
  enabled: true
  output_dir: out
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "5678", cfg.ReservationID)
	assert.Equal(t, "https://trail.example.org", cfg.SiteURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts, "unset fields keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, reservation.DefaultTimeouts().Login, cfg.Timeouts.Login)
	assert.Equal(t, "#scan_field", cfg.Selectors.ItemInput)
	assert.Equal(t, "#login-button", cfg.Selectors.LoginButton)
	assert.Equal(t, VerbosityVerbose, cfg.Logging.Verbosity)
	assert.True(t, cfg.Artifacts.Enabled)
	assert.Equal(t, "out", cfg.Artifacts.OutputDir)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeFile(t, t.TempDir(), "bad.yaml", "workers: [1, 2\n")
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestResolveCredentials_FromEnvironment(t *testing.T) {
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-pass")

	cfg := DefaultConfig()
	cfg.EnvFile = ""
	require.NoError(t, cfg.ResolveCredentials())
	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "env-pass", cfg.Password)
}

func TestResolveCredentials_FlagsWin(t *testing.T) {
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-pass")

	cfg := DefaultConfig()
	cfg.EnvFile = ""
	cfg.Username = "flag-user"
	require.NoError(t, cfg.ResolveCredentials())
	assert.Equal(t, "flag-user", cfg.Username)
	assert.Equal(t, "env-pass", cfg.Password)
}

func TestResolveCredentials_FromDotEnv(t *testing.T) {
	// godotenv never overrides variables that are set, even to "".
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")
	os.Unsetenv(EnvUsername)
	os.Unsetenv(EnvPassword)

	cfg := DefaultConfig()
	cfg.EnvFile = writeFile(t, t.TempDir(), ".env", "TRAIL_USERNAME=file-user\nTRAIL_PASSWORD=file-pass\n")
	require.NoError(t, cfg.ResolveCredentials())
	assert.Equal(t, "file-user", cfg.Username)
	assert.Equal(t, "file-pass", cfg.Password)
}

func TestResolveCredentials_Missing(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	cfg := DefaultConfig()
	cfg.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	err := cfg.ResolveCredentials()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestDerivedOptions(t *testing.T) {
	cfg := validConfig(t)
	cfg.ReservationID = " 1234 "
	cfg.Headless = true
	cfg.Workers = 4

	target := cfg.Target()
	assert.Equal(t, "https://trail.example.com/reservations/1234", target.ReservationURL())

	opts := cfg.PoolOptions()
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, "1234", opts.ReservationID)
	assert.Equal(t, "ops@example.com", opts.Credentials.Username)

	lopts := cfg.LauncherOptions()
	assert.True(t, lopts.Headless)
	assert.Equal(t, cfg.Timeouts, lopts.Timeouts)
}
