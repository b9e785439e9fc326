// Command bedcap loads hospital bed capacity extracts into Postgres,
// joins them into a combined table, and writes a fixed battery of
// top-10 figures as CSV and Parquet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bedcap/internal/config"
	"bedcap/internal/pipeline"
	"bedcap/internal/store"
)

var (
	// Global flags
	cfgPath   string
	dsn       string
	dataDir   string
	exportDir string
	verbose   bool

	// check flags
	strict bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bedcap",
	Short: "bedcap - hospital bed capacity reporting pipeline",
	Long: `bedcap loads hospital bed capacity extracts into Postgres, joins them
into a combined table, and writes a fixed battery of top-10 figures as
CSV and Parquet.

By default it runs against an embedded Postgres server whose data
directory persists between runs, so no database setup is needed. Point
it at an external server with --dsn or BEDCAP_DB_DSN.

Typical usage:

  bedcap run             load, combine, check, and report in one pass
  bedcap load            load the three source files only
  bedcap check --strict  run the integrity checks, fail on findings
  bedcap report          rebuild the combined table if needed, write figures`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		// Flags override file and environment.
		if dsn != "" {
			cfg.Database.DSN = dsn
			cfg.Database.Embedded.Enabled = false
		}
		if dataDir != "" {
			cfg.Database.Embedded.DataDir = dataDir
		}
		if exportDir != "" {
			cfg.Export.Dir = exportDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zcfg.Encoding = "console"
			zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", cfg.Logging.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long: `Connects to the store and creates the tables if they do not exist.
Safe to run repeatedly; existing rows are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("schema ready")
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the three source files into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			return err
		}
		stats, err := pipeline.Load(ctx, st, cfg.Inputs, logger)
		if err != nil {
			return err
		}
		logger.Info("load complete",
			zap.Int64("bed_types", stats.BedTypes),
			zap.Int64("bed_facts", stats.BedFacts),
			zap.Int64("businesses", stats.Businesses))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the integrity checks against loaded data",
	Long: `Looks for duplicated logical keys in the source tables and, when a
combined build exists, combined rows whose bed description disagrees
with the care unit assigned from the bed id. Findings are advisory
unless --strict is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		results, err := pipeline.Check(ctx, st, logger)
		if err != nil {
			return err
		}
		violations := 0
		for _, res := range results {
			violations += len(res.Violations)
		}
		if strict && violations > 0 {
			return fmt.Errorf("%d integrity violations", violations)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the combined table if needed and write all figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		build, figures, err := pipeline.Report(ctx, st, cfg.Export.Dir, logger)
		if err != nil {
			return err
		}
		logger.Info("report complete",
			zap.Bool("combined_rebuilt", build.Rebuilt),
			zap.Int64("combined_rows", build.Rows),
			zap.Int("figures", figures),
			zap.String("dir", cfg.Export.Dir))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: load, combine, check, report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		_, err = pipeline.Run(ctx, st, cfg, logger)
		return err
	},
}

func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, store.Options{
		DSN:        cfg.Database.ConnString(),
		Embedded:   cfg.Database.Embedded.Enabled,
		DataDir:    cfg.Database.Embedded.DataDir,
		RuntimeDir: cfg.Database.Embedded.RuntimeDir,
		Port:       cfg.Database.Embedded.Port,
		MaxConns:   cfg.Database.MaxConns,
	}, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "bedcap.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides the embedded server)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Embedded server data directory")
	rootCmd.PersistentFlags().StringVar(&exportDir, "export-dir", "", "Figure output directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	checkCmd.Flags().BoolVar(&strict, "strict", false, "Exit nonzero when any check finds violations")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
