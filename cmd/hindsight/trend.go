package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/report"
	"github.com/discochess/hindsight/internal/resultstore"
	"github.com/discochess/hindsight/internal/trend"
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Recompute trends from saved results",
	Long: `Aggregate every result saved by 'hindsight analyze --save' into day or
week buckets without running the engine again.

Examples:
  hindsight trend --granularity week
  hindsight trend --player hikaru --since 2025-01-01 --format markdown`,
	RunE: runTrend,
}

var (
	trendGranularity string
	trendFormat      string
	trendPlayer      string
	trendSince       string
	trendUntil       string
)

func init() {
	trendCmd.Flags().StringVarP(&trendGranularity, "granularity", "g", "", "bucket size: day or week (default: analysis.granularity)")
	trendCmd.Flags().StringVarP(&trendFormat, "format", "f", "text", "output format: text, markdown, json, yaml")
	trendCmd.Flags().StringVarP(&trendPlayer, "player", "p", "", "only games this player took part in")
	trendCmd.Flags().StringVar(&trendSince, "since", "", "first game date, YYYY-MM-DD")
	trendCmd.Flags().StringVar(&trendUntil, "until", "", "last game date, YYYY-MM-DD")
	rootCmd.AddCommand(trendCmd)
}

func runTrend(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(trendFormat)
	if err != nil {
		return err
	}
	gran := cfg.Analysis.Granularity
	if trendGranularity != "" {
		gran = trendGranularity
	}
	g, err := trend.ParseGranularity(gran)
	if err != nil {
		return err
	}

	filter := resultstore.Filter{Player: trendPlayer}
	if filter.Since, err = parseDay(trendSince); err != nil {
		return err
	}
	if filter.Until, err = parseDay(trendUntil); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	rs, err := cfg.OpenResults(ctx)
	if err != nil {
		return err
	}
	defer rs.Close()

	games, err := rs.All(ctx, filter)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		return errors.New("no saved results: run 'hindsight analyze --save' first")
	}

	run := hindsight.Summarize(games, g)
	title := "Hindsight trend"
	if trendPlayer != "" {
		title += " for " + trendPlayer
	}
	return report.Write(cmd.OutOrStdout(), run, format, report.Options{Title: title})
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
