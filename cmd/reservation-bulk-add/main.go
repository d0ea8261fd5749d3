// Package main provides the reservation bulk-add command. It adds every
// barcode in a CSV file to one Trail reservation by driving the web UI
// from several browser sessions in parallel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/reservation-bulk-add/pkg/barcodes"
	"github.com/entrhq/reservation-bulk-add/pkg/browser"
	"github.com/entrhq/reservation-bulk-add/pkg/config"
	"github.com/entrhq/reservation-bulk-add/pkg/console"
	"github.com/entrhq/reservation-bulk-add/pkg/engine"
	"github.com/entrhq/reservation-bulk-add/pkg/logging"
	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
	"github.com/entrhq/reservation-bulk-add/pkg/results"
)

const version = "0.1.0"

// exitFatal is returned for configuration and setup errors, matching the
// fatal_error run status.
const exitFatal = 1

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ReservationID string
	CSVFile       string
	Username      string
	Password      string
	SiteURL       string
	Headless      bool
	Threads       int
	Quiet         bool
	Verbose       bool
	Progress      bool
	ConfigFile    string
	EnvFile       string
	MaxAttempts   int
	Timeout       time.Duration
	OutputDir     string
	LogDir        string
	ShowVersion   bool
}

func main() {
	cli := parseFlags(os.Args[1:])

	if cli.ShowVersion {
		fmt.Printf("reservation-bulk-add v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing in-flight barcodes...")
		cancel()
	}()

	code := run(ctx, cli)
	cancel()
	os.Exit(code)
}

// stringFlag registers a flag under a short and a long name.
func stringFlag(fs *flag.FlagSet, p *string, short, long, value, usage string) {
	fs.StringVar(p, short, value, usage)
	fs.StringVar(p, long, value, "Alias for -"+short)
}

func boolFlag(fs *flag.FlagSet, p *bool, short, long string, usage string) {
	fs.BoolVar(p, short, false, usage)
	fs.BoolVar(p, long, false, "Alias for -"+short)
}

// parseFlags parses command line flags
func parseFlags(args []string) *CLIConfig {
	cli := &CLIConfig{}
	fs := flag.NewFlagSet("reservation-bulk-add", flag.ExitOnError)

	stringFlag(fs, &cli.ReservationID, "R", "reservation", "", "The reservation ID to add assets to")
	stringFlag(fs, &cli.CSVFile, "C", "csv", "", "CSV file of asset barcodes, first column, no header")
	stringFlag(fs, &cli.Username, "U", "username", "", "Trail username (default: TRAIL_USERNAME from the environment or .env)")
	stringFlag(fs, &cli.Password, "P", "password", "", "Trail password (default: TRAIL_PASSWORD from the environment or .env)")
	stringFlag(fs, &cli.SiteURL, "S", "site", "", "Host or URL of the Trail instance")
	boolFlag(fs, &cli.Headless, "H", "headless", "Run the browser sessions in headless mode")
	fs.IntVar(&cli.Threads, "T", 0, "Number of parallel browser sessions (default 3)")
	fs.IntVar(&cli.Threads, "threads", 0, "Alias for -T")
	boolFlag(fs, &cli.Quiet, "Q", "quiet", "Suppress all output except errors and the final summary")

	fs.BoolVar(&cli.Verbose, "verbose", false, "Show retries and worker state changes")
	fs.BoolVar(&cli.Progress, "progress", false, "Show a live progress bar")
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&cli.EnvFile, "env-file", "", "Path to the .env file holding credentials")
	fs.IntVar(&cli.MaxAttempts, "attempts", 0, "Attempts per barcode before giving up (default 3)")
	fs.DurationVar(&cli.Timeout, "timeout", 0, "Abort the whole run after this long (0 for no limit)")
	fs.StringVar(&cli.OutputDir, "output", "", "Write summary.json, summary.md and retry.csv to this directory")
	fs.StringVar(&cli.LogDir, "log-dir", "", "Directory for run logs (default ~/.reservation-bulk-add/logs)")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Trail Bulk Add to Reservation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: reservation-bulk-add -R <reservation_id> -C <path_to_csv_file> -S <site> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExit codes: 0 success, 1 fatal error, 2 some barcodes could not be added\n")
	}

	_ = fs.Parse(args)
	return cli
}

// buildConfig merges the config file, flags and environment into one
// validated configuration.
func buildConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cli.ConfigFile != "" {
		loaded, err := config.LoadFile(cli.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the config file
	if cli.ReservationID != "" {
		cfg.ReservationID = cli.ReservationID
	}
	if cli.CSVFile != "" {
		cfg.CSVFile = cli.CSVFile
	}
	if cli.Username != "" {
		cfg.Username = cli.Username
	}
	if cli.Password != "" {
		cfg.Password = cli.Password
	}
	if cli.SiteURL != "" {
		cfg.SiteURL = cli.SiteURL
	}
	if cli.Headless {
		cfg.Headless = true
	}
	if cli.Threads != 0 {
		cfg.Workers = cli.Threads
	}
	if cli.MaxAttempts != 0 {
		cfg.MaxAttempts = cli.MaxAttempts
	}
	if cli.EnvFile != "" {
		cfg.EnvFile = cli.EnvFile
	}
	if cli.OutputDir != "" {
		cfg.Artifacts.Enabled = true
		cfg.Artifacts.OutputDir = cli.OutputDir
	}
	if cli.LogDir != "" {
		cfg.Logging.Directory = cli.LogDir
	}
	if cli.Progress {
		cfg.Logging.Progress = true
	}
	switch {
	case cli.Quiet:
		cfg.Logging.Verbosity = config.VerbosityQuiet
	case cli.Verbose:
		cfg.Logging.Verbosity = config.VerbosityVerbose
	}

	if err := cfg.ResolveCredentials(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logLevel maps console verbosity to the run log level.
func logLevel(verbosity string) logging.Level {
	switch verbosity {
	case config.VerbosityQuiet:
		return logging.LevelError
	case config.VerbosityVerbose, config.VerbosityDebug:
		return logging.LevelDebug
	default:
		return logging.LevelInfo
	}
}

// run executes one bulk-add and returns the process exit code
func run(ctx context.Context, cli *CLIConfig) int {
	cfg, err := buildConfig(cli)
	if err != nil {
		reporter := console.NewReporter(os.Stderr, console.LevelQuiet, "")
		reporter.Errorf("%v", err)
		if errors.Is(err, config.ErrMissingCredentials) {
			fmt.Fprintln(os.Stderr, "Run with -h for usage.")
		}
		return exitFatal
	}

	reporter := console.NewReporter(os.Stdout, console.ParseLevel(cfg.Logging.Verbosity), cfg.Target().ReservationID)
	reporter.Header(fmt.Sprintf("Trail Bulk Add to Reservation %s", cfg.ReservationID))

	if cfg.Logging.Directory != "" {
		logging.SetDirectory(cfg.Logging.Directory)
	}
	logging.SetLevel(logLevel(cfg.Logging.Verbosity))

	logger, err := logging.NewLogger("cli")
	if err != nil {
		reporter.Warningf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	codes, stats, err := barcodes.Load(cfg.CSVFile)
	if err != nil {
		reporter.Errorf("%v", err)
		logger.Errorf("failed to load barcodes: %v", err)
		return exitFatal
	}
	logger.Infof("loaded %d barcodes from %s (%d rows, %d blank, %d repeated)", len(codes), cfg.CSVFile, stats.Rows, stats.Blank, stats.Repeated)
	reporter.Infof("Loaded %d asset barcodes from %s.", len(codes), cfg.CSVFile)
	if stats.Repeated > 0 {
		reporter.Warningf("%d repeated barcodes in %s will be added once", stats.Repeated, cfg.CSVFile)
	}

	runtime := browser.NewRuntime()
	runtime.SetMaxSessions(cfg.Workers * 2)
	defer func() {
		logger.Debugf("closing %d browser sessions", runtime.SessionCount())
		if shutdownErr := runtime.Shutdown(); shutdownErr != nil {
			logger.Warnf("browser shutdown: %v", shutdownErr)
		}
	}()

	if len(codes) > 0 {
		if initErr := runtime.Initialize(); initErr != nil {
			reporter.Errorf("%v", initErr)
			logger.Errorf("%v", initErr)
			return exitFatal
		}
	}

	launcher := reservation.NewLauncher(runtime, cfg.Target(), cfg.LauncherOptions())

	poolLogger, _ := logging.NewLogger("pool")
	defer poolLogger.Close()

	opts := cfg.PoolOptions()
	opts.Logger = poolLogger
	opts.RunID = logging.GetRunID()
	opts.OnEvent = reporter.HandleEvent

	pool, err := engine.NewPool(launcher, opts)
	if err != nil {
		reporter.Errorf("%v", err)
		return exitFatal
	}

	var bar *console.ProgressBar
	if cfg.Logging.Progress && cfg.Logging.Verbosity != config.VerbosityQuiet && len(codes) > 0 {
		bar = console.NewProgressBar(os.Stdout, len(codes))
		reporter.AttachProgressBar(bar)
		bar.Start()
	}

	reporter.Infof("Starting bulk add with %d concurrent browser sessions...", min(cfg.Workers, len(codes)))

	summary, runErr := pool.Run(ctx, codes)

	if bar != nil {
		if stopErr := bar.Stop(); stopErr != nil {
			logger.Warnf("progress bar: %v", stopErr)
		}
	}

	reporter.Summary(summary)
	if runErr != nil {
		logger.Errorf("run failed: %v", runErr)
	}

	if cfg.Artifacts.Enabled {
		writer := results.NewArtifactWriter(cfg.Artifacts.OutputDir)
		if writeErr := writer.WriteAll(summary); writeErr != nil {
			reporter.Errorf("failed to write artifacts: %v", writeErr)
			logger.Errorf("failed to write artifacts: %v", writeErr)
		} else {
			reporter.Successf("Reports written to %s", cfg.Artifacts.OutputDir)
		}
	}

	if path := logger.LogPath(); path != "" {
		reporter.Verbosef("Run log: %s", path)
	}

	return summary.Status.ExitCode()
}
