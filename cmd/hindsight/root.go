package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/hindsight/internal/config"
	"github.com/discochess/hindsight/internal/stats"
	statslogger "github.com/discochess/hindsight/internal/stats/logger"
	promstats "github.com/discochess/hindsight/internal/stats/prometheus"
)

var (
	// Global flags.
	cfgFile     string
	verbose     bool
	metricsAddr string

	// Set up by PersistentPreRunE.
	cfg       *config.Config
	logger    *zap.Logger     = zap.NewNop()
	collector stats.Collector = stats.NewNoop()
	metrics   *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Find where your chess games went wrong",
	Long: `Hindsight analyzes a player's games with a UCI engine such as
Stockfish. It reports where the clock went, which moves dropped the
evaluation, and how both trend over days or weeks.

Settings come from hindsight.yaml (in the working directory or the user
config directory), HINDSIGHT_* environment variables, and flags.

Examples:
  # Download the last year of games
  hindsight fetch --username hikaru

  # Analyze every downloaded month
  hindsight analyze --player hikaru --save

  # Analyze a PGN file as Markdown
  hindsight analyze --pgn games.pgn --format markdown

  # Weekly trend from saved results
  hindsight trend --granularity week`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./hindsight.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err = config.InitLogger(cfg.Log)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr == "" {
		collector = statslogger.NewAtLevel(logger, zap.DebugLevel)
		return nil
	}
	registry := prometheus.NewRegistry()
	collector = promstats.New(registry)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	return nil
}

// run executes the CLI with args. The metrics server and logger are
// released even when the command fails.
func run(args []string) error {
	defer cleanup()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func cleanup() {
	if metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metrics.Shutdown(ctx)
	}
	_ = logger.Sync()
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, finishing up...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
