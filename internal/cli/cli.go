package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keibalab/keibadb/internal/config"
	"github.com/keibalab/keibadb/internal/discovery"
	"github.com/keibalab/keibadb/internal/logger"
	"github.com/keibalab/keibadb/internal/scraper"
	"github.com/keibalab/keibadb/internal/storage"
	"github.com/keibalab/keibadb/internal/update"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagFromYear  int
	flagOutputDir string
	flagVerbose   bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keibadb",
		Short: "Incrementally harvest horse racing results into a local dataset",
		Long: `keibadb maintains a local horse racing dataset.
Each run discovers race identifiers added since the last run, fetches their
result, payout and horse pages, and merges the parsed rows into JSON tables
under the output directory. Interrupted runs resume where they left off.`,
		RunE:          runUpdate,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Define flags
	cmd.Flags().IntVar(&flagFromYear, "from-year", 0, "Earliest season to harvest (overrides KEIBADB_FROM_YEAR)")
	cmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "Dataset directory (overrides KEIBADB_OUTPUT_DIR)")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	return cmd
}

// runUpdate is the main command logic
func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagFromYear != 0 {
		cfg.FromYear = flagFromYear
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagVerbose {
		cfg.Debug = true
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	store, err := storage.Open(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer store.Close()

	log.Info("starting harvest",
		zap.Int("from_year", cfg.FromYear),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("known_races", len(store.Profiles())),
		zap.Int("known_horses", len(store.Horses())))

	client := scraper.NewClient(cfg.BaseURL)
	enum := discovery.New(client, store.Cache(), cfg.FromYear, log)
	updater := update.New(client, store, enum, log)

	if err := updater.Run(cmd.Context()); err != nil {
		return fmt.Errorf("harvest: %w", err)
	}

	log.Info("harvest complete",
		zap.Int("known_races", len(store.Profiles())),
		zap.Int("known_horses", len(store.Horses())))
	return nil
}

// Execute runs the CLI, cancelling the run on SIGINT or SIGTERM so an
// interrupted harvest still flushes its checkpoint.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
