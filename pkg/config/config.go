// Package config holds the run configuration: what to add, where, and how.
//
// A Config is built once before any worker starts, from defaults, an
// optional YAML file, command-line overrides and finally the environment
// for credentials. It is not re-read during a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/reservation-bulk-add/pkg/engine"
	"github.com/entrhq/reservation-bulk-add/pkg/queue"
	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
)

// Environment variables consulted when credentials are not given directly.
const (
	EnvUsername = "TRAIL_USERNAME"
	EnvPassword = "TRAIL_PASSWORD"

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

// ErrMissingCredentials is returned when no username or password could be
// found in flags, the config file or the environment.
var ErrMissingCredentials = errors.New("a username and password must be provided either as arguments or as TRAIL_USERNAME and TRAIL_PASSWORD in the environment or .env file")

// Config represents the configuration for one bulk-add run
type Config struct {
	// Reservation to add barcodes to
	ReservationID string `yaml:"reservation_id" json:"reservation_id"`

	// CSV file with one barcode in the first column of each row
	CSVFile string `yaml:"csv_file" json:"csv_file"`

	// Host (or base URL) of the Trail instance
	SiteURL string `yaml:"site_url" json:"site_url"`

	// Credentials. The password is never written back out.
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`

	// Browser options
	Headless bool `yaml:"headless" json:"headless"`

	// Number of parallel browser sessions (default: 3)
	Workers int `yaml:"workers" json:"workers"`

	// Per-barcode attempt budget (default: 3)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// Browser waits
	Timeouts reservation.Timeouts `yaml:"timeouts" json:"timeouts"`

	// Page selectors and message patterns, for instances with a customised UI
	Selectors reservation.Selectors `yaml:"selectors" json:"selectors"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// EnvFile is the dotenv file consulted for credentials
	EnvFile string `yaml:"env_file" json:"env_file"`
}

// Verbosity levels for console output.
const (
	VerbosityQuiet   = "quiet"
	VerbosityNormal  = "normal"
	VerbosityVerbose = "verbose"
	VerbosityDebug   = "debug"
)

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Directory for run log files. Empty uses ~/.reservation-bulk-add/logs.
	Directory string `yaml:"directory" json:"directory"`

	// Progress shows a live progress bar instead of per-barcode lines
	Progress bool `yaml:"progress" json:"progress"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Workers:     engine.DefaultWorkers,
		MaxAttempts: queue.DefaultMaxAttempts,
		Timeouts:    reservation.DefaultTimeouts(),
		Selectors:   reservation.DefaultSelectors(),
		Logging: LoggingConfig{
			Verbosity: VerbosityNormal,
		},
		Artifacts: ArtifactConfig{
			Enabled:   false,
			OutputDir: "bulk-add-results",
		},
		EnvFile: DefaultEnvFile,
	}
}

// LoadFile loads configuration from a YAML file on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ResolveCredentials fills a missing username or password from the
// environment, loading EnvFile first when it exists. Variables already set
// in the environment take precedence over the file.
func (c *Config) ResolveCredentials() error {
	if c.Username != "" && c.Password != "" {
		return nil
	}

	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", c.EnvFile, err)
		}
	}

	if c.Username == "" {
		c.Username = os.Getenv(EnvUsername)
	}
	if c.Password == "" {
		c.Password = os.Getenv(EnvPassword)
	}

	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ReservationID) == "" {
		return fmt.Errorf("reservation ID is required")
	}

	if c.CSVFile == "" {
		return fmt.Errorf("CSV file is required")
	}
	if info, err := os.Stat(c.CSVFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("the specified CSV file '%s' does not exist", c.CSVFile)
		}
		return fmt.Errorf("failed to access CSV file: %w", err)
	} else if info.IsDir() {
		return fmt.Errorf("CSV file '%s' is a directory", c.CSVFile)
	}

	if err := c.Target().Validate(); err != nil {
		return err
	}

	if err := c.Credentials().Validate(); err != nil {
		return ErrMissingCredentials
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}

	if c.Timeouts.Login < 0 || c.Timeouts.Navigation < 0 || c.Timeouts.Action < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = VerbosityNormal
	}

	// Validate log level
	validLevels := map[string]bool{
		VerbosityQuiet:   true,
		VerbosityNormal:  true,
		VerbosityVerbose: true,
		VerbosityDebug:   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts output_dir is required when artifacts are enabled")
	}

	return nil
}

// Target returns the reservation the run adds to.
func (c *Config) Target() reservation.Target {
	return reservation.Target{SiteURL: c.SiteURL, ReservationID: strings.TrimSpace(c.ReservationID)}
}

// Credentials returns the sign-in credentials shared by every worker.
func (c *Config) Credentials() reservation.Credentials {
	return reservation.Credentials{Username: c.Username, Password: c.Password}
}

// PoolOptions returns the engine options for this configuration. Logging
// and event wiring are left to the caller.
func (c *Config) PoolOptions() engine.Options {
	return engine.Options{
		Workers:       c.Workers,
		MaxAttempts:   c.MaxAttempts,
		ReservationID: c.Target().ReservationID,
		Credentials:   c.Credentials(),
	}
}

// LauncherOptions returns the browser options for this configuration.
func (c *Config) LauncherOptions() reservation.LauncherOptions {
	return reservation.LauncherOptions{
		Headless:  c.Headless,
		Selectors: c.Selectors,
		Timeouts:  c.Timeouts,
	}
}
