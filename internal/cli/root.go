// Package cli implements the healthmon command line: analysis, database
// maintenance, rollup reports, snapshot ingestion and an interactive
// console, all over one metrics store.
package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.Component("cli")

// app carries the resolved configuration from the root command to its
// subcommands.
type app struct {
	configPath string
	dbPath     string
	engine     string
	logLevel   string
	logJSON    bool

	cfg *storageconfig.Config
}

// NewRootCommand builds the healthmon command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "healthmon",
		Short: "Store and analyse host health metrics",
		Long: `healthmon keeps a time-ordered history of host health readings
(CPU, memory, disk, network, GPU) in a local database and analyses it.

Quick start:
  healthmon ingest --file latest_metrics.json   # Store sampler snapshots
  healthmon analyze --metric-type cpu           # Trend, anomalies, forecast
  healthmon database latest --limit 5           # Newest records as JSON
  healthmon database cleanup --retention-days 7 # Drop old records`,
		Version:           Version,
		Args:              usageArgs(cobra.NoArgs),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&a.dbPath, "db-path", "", "database path (overrides config)")
	flags.StringVar(&a.engine, "engine", "", "storage engine: sqlite or duckdb (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "log in JSON format")

	cmd.AddCommand(a.analyzeCommand())
	cmd.AddCommand(a.databaseCommand())
	cmd.AddCommand(a.reportCommand())
	cmd.AddCommand(a.ingestCommand())
	cmd.AddCommand(a.consoleCommand())

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return errors.CodeOK
	}

	code := errors.ErrorToCode(err)
	log.Debug("command failed", "code", errors.CodeName(code), "error", err)
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if code == errors.CodeInvalidArgument {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.CommandPath())
	}
	return code
}

// setup resolves configuration and logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := storageconfig.DefaultConfig()
	if a.configPath != "" {
		loaded, err := storageconfig.Load(a.configPath)
		if err != nil {
			if errors.IsValidation(err) {
				return err
			}
			return fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
		}
		cfg = loaded
	}

	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.engine != "" {
		cfg.Database.Engine = a.engine
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON = a.logJSON
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return usageError(err)
	}
	logging.InitWriter(cmd.ErrOrStderr(), level, cfg.Logging.JSON)

	a.cfg = cfg
	log.Debug("configuration resolved", "db_path", cfg.Database.Path, "engine", cfg.Database.Engine)
	return nil
}

// openStore opens the configured database. The caller closes it.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, errors.Unavailable("prepare directories", err)
	}
	return store.Open(ctx, store.ConfigFrom(a.cfg.Database))
}

// withStore opens the store, runs fn and closes the store again.
func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// span converts n units into a duration. Negative counts and counts whose
// duration does not fit in time.Duration are usage errors.
func span(name string, n int, unit time.Duration) (time.Duration, error) {
	if n < 0 || int64(n) > math.MaxInt64/int64(unit) {
		return 0, usageError(fmt.Errorf("%s %d is out of range", name, n))
	}
	return time.Duration(n) * unit, nil
}

func usageError(err error) error {
	return fmt.Errorf("%v: %w", err, errors.ErrInvalidArgument)
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
