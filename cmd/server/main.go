/*
main.go - Application entry point

PURPOSE:
  Command-line interface of the Warp time clock engine: runs the HTTP server
  and exposes the administrative operations (migrations, pay periods,
  payroll) without going through HTTP.

COMMANDS:
  serve                       Run the HTTP API and background jobs
  migrate                     Create or update the database schema
  periods generate            Create a year's pay periods
  periods close <id>          Close a pay period
  payroll compute <id> [emp]  Compute a closed period (all or one employee)
  payroll export <id>         Write a period's payroll as CSV or XLSX

CONFIGURATION:
  Settings come from TIMECLOCK_* environment variables (see config/config.go).
  The persistent flags below override the matching variable.

  --port       TIMECLOCK_HTTP_PORT
  --driver     TIMECLOCK_STORE_DRIVER   sqlite | postgres
  --dsn        TIMECLOCK_DSN            file path, ":memory:" or postgres URL
  --log-level  TIMECLOCK_LOG_LEVEL

EXAMPLES:
  # Run with a file database
  ./server serve --dsn=./data/timeclock.db

  # Run against PostgreSQL
  TIMECLOCK_STORE_DRIVER=postgres TIMECLOCK_DSN=postgres://... ./server serve

  # Monthly close
  ./server periods close 3f2c...
  ./server payroll compute 3f2c...
  ./server payroll export 3f2c... --format=xlsx --output=payroll.xlsx

SEE ALSO:
  - cmd/server/serve.go: HTTP server with graceful shutdown
  - cmd/server/admin.go: periods and payroll commands
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/timeclock-engine/api"
	"github.com/warp/timeclock-engine/config"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/logging"
	"github.com/warp/timeclock-engine/store/sqlstore"
)

var (
	flagPort     int
	flagDriver   string
	flagDSN      string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Warp time clock engine",
	Long: `server tracks employee clock-ins, corrections and time off, and turns
them into payroll figures per pay period.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&flagPort, "port", 0, "HTTP server port")
	flags.StringVar(&flagDriver, "driver", "", "store driver: sqlite or postgres")
	flags.StringVar(&flagDSN, "dsn", "", "database path or connection string")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(payrollCmd)
}

// app is what every command needs: settings, a logger, an open store and the
// services built over it.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *sqlstore.Store
	services api.Services
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.HTTPPort = flagPort
	}
	if flags.Changed("driver") {
		d, err := sqlstore.ParseDialect(flagDriver)
		if err != nil {
			return config.Config{}, err
		}
		cfg.StoreDriver = d
	}
	if flags.Changed("dsn") {
		cfg.DSN = flagDSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	store, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", "driver", string(cfg.StoreDriver))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		services: api.NewServices(store, cfg.Services(), generic.SystemClock, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Open migrates before returning.
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		a.logger.Info("schema up to date")
		return nil
	},
}
