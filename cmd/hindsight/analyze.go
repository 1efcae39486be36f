package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/pgn"
	"github.com/discochess/hindsight/internal/report"
	"github.com/discochess/hindsight/internal/resultstore"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [YYYY-MM...]",
	Short: "Analyze games for time use, blunders, and trends",
	Long: `Run every game through the engine and report where time was spent,
which moves lost evaluation, and how both moved over time.

Games come from the named archive months, from --pgn files, or, when
neither is given, from every archived month.

Examples:
  # Everything downloaded, one side only
  hindsight analyze --player hikaru

  # Two months, saving results for later trend reports
  hindsight analyze 2025-03 2025-04 --save --skip-analyzed

  # A PGN file as JSON
  hindsight analyze --pgn games.pgn --format json`,
	RunE: runAnalyze,
}

var (
	analyzePGN          []string
	analyzeTop          int
	analyzePlayer       string
	analyzeMaxGames     int
	analyzeFormat       string
	analyzeSave         bool
	analyzeSkipAnalyzed bool
	analyzeGranularity  string
	analyzeTimeout      time.Duration
	analyzeGames        bool
)

func init() {
	analyzeCmd.Flags().StringArrayVar(&analyzePGN, "pgn", nil, "PGN file to analyze (repeatable)")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "longest thinks to report per game (default: analysis.top_n)")
	analyzeCmd.Flags().StringVarP(&analyzePlayer, "player", "p", "", "only analyze this player's moves")
	analyzeCmd.Flags().IntVarP(&analyzeMaxGames, "max-games", "n", 0, "analyze at most the N most recent games (0 = all)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "output format: text, markdown, json, yaml")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "save results to the result store")
	analyzeCmd.Flags().BoolVar(&analyzeSkipAnalyzed, "skip-analyzed", false, "skip games already in the result store")
	analyzeCmd.Flags().StringVarP(&analyzeGranularity, "granularity", "g", "", "trend bucket: day or week (default: analysis.granularity)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "stop the run after this long and report what finished (0 = no limit)")
	analyzeCmd.Flags().BoolVar(&analyzeGames, "games", false, "include a section per game in text and markdown output")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("top") {
		cfg.Analysis.TopN = analyzeTop
	}
	if cmd.Flags().Changed("player") {
		cfg.Analysis.Player = analyzePlayer
	}
	if cmd.Flags().Changed("granularity") {
		cfg.Analysis.Granularity = analyzeGranularity
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	records, err := loadRecords(ctx, args)
	if err != nil {
		return err
	}
	if analyzeMaxGames > 0 && len(records) > analyzeMaxGames {
		records = records[len(records)-analyzeMaxGames:]
	}
	if len(records) == 0 {
		return errors.New("no games to analyze: run 'hindsight fetch' or pass --pgn")
	}

	opts, err := cfg.AnalyzerOptions(logger, collector)
	if err != nil {
		return err
	}

	var rs *resultstore.Store
	if analyzeSave || analyzeSkipAnalyzed {
		rs, err = cfg.OpenResults(ctx)
		if err != nil {
			return err
		}
		defer rs.Close()
	}
	if analyzeSkipAnalyzed {
		done, err := rs.IDs(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, hindsight.WithSkip(func(id string) bool { return done[id] }))
	}

	a, err := hindsight.New(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	if analyzeTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, analyzeTimeout)
		defer stop()
	}

	logger.Info("analyzing", zap.Int("games", len(records)), zap.String("player", cfg.Analysis.Player))
	run, runErr := a.Run(ctx, records)
	if run == nil {
		return runErr
	}

	if analyzeSave {
		// The run may have been cut short; what finished is still worth keeping.
		if err := rs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			return errors.Join(runErr, fmt.Errorf("saving results: %w", err))
		}
		logger.Info("results saved", zap.String("run", run.RunID), zap.Int("games", len(run.Games)))
	}

	err = report.Write(cmd.OutOrStdout(), run, format, report.Options{
		Games: analyzeGames,
		Title: reportTitle(),
	})
	return errors.Join(runErr, err)
}

// loadRecords collects games from --pgn files and archive months. With
// neither, every archived month is read.
func loadRecords(ctx context.Context, args []string) ([]hindsight.Record, error) {
	var records []hindsight.Record
	for _, path := range analyzePGN {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening PGN: %w", err)
		}
		recs, err := scanRecords(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	if len(args) == 0 && len(analyzePGN) > 0 {
		return records, nil
	}

	a, err := cfg.OpenArchive(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var months []archive.Month
	if len(args) == 0 {
		if months, err = a.Months(ctx); err != nil {
			return nil, err
		}
	}
	for _, arg := range args {
		m, err := archive.ParseMonth(arg)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}

	for _, m := range months {
		data, err := a.Get(ctx, m)
		if err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				return nil, fmt.Errorf("month %s is not archived; run 'hindsight fetch' first", m)
			}
			return nil, err
		}
		recs, err := scanRecords(bytes.NewReader(data), m.String())
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func scanRecords(r io.Reader, source string) ([]hindsight.Record, error) {
	var records []hindsight.Record
	sc := pgn.NewScanner(r)
	for sc.Scan() {
		records = append(records, hindsight.Record{Source: source, Text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return records, nil
}

func reportTitle() string {
	if cfg.Analysis.Player != "" {
		return "Hindsight report for " + cfg.Analysis.Player
	}
	return "Hindsight report"
}
