package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/hindsight/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a player's monthly game archives from chess.com",
	Long: `Download monthly game archives from the chess.com public API and keep
one compressed PGN per month in the configured archive.

Months already stored are skipped unless --refresh is given; the current
month is always refetched because it is still growing. Without --all only
the most recent chesscom.months archives are considered.

Examples:
  # Last twelve months
  hindsight fetch --username hikaru

  # Whole history, refetching stored months
  hindsight fetch --username hikaru --all --refresh`,
	RunE: runFetch,
}

var (
	fetchUsername string
	fetchRefresh  bool
	fetchAll      bool
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchUsername, "username", "u", "", "chess.com username (default: chesscom.username)")
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "refetch months that are already stored")
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every month, not just the recent ones")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	username := fetchUsername
	if username == "" {
		username = cfg.ChessCom.Username
	}
	if username == "" {
		return errors.New("no username: pass --username or set chesscom.username")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := cfg.OpenArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	months := cfg.ChessCom.Months
	if fetchAll {
		months = 0
	}

	f := fetch.New(cfg.ChessComClient(logger, collector), a,
		fetch.WithRefresh(fetchRefresh),
		fetch.WithRecentMonths(months),
		fetch.WithLockFile(cfg.LockPath()),
		fetch.WithProgress(fetch.NewProgressPrinter(cmd.ErrOrStderr())),
		fetch.WithStats(collector),
		fetch.WithLogger(logger),
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "Fetching games for %s\n", username)
	fmt.Fprintf(cmd.ErrOrStderr(), "  Archive: %s (%s)\n", cfg.Archive.Backend, archiveLocation())
	fmt.Fprintln(cmd.ErrOrStderr())

	rep, err := f.Fetch(ctx, username)
	if err != nil {
		if errors.Is(err, fetch.ErrLocked) {
			return fmt.Errorf("another fetch is running (lock %s)", cfg.LockPath())
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d months fetched, %d skipped, %d games (%s)\n",
		len(rep.Fetched), len(rep.Skipped), rep.Games, fetch.FormatBytes(rep.Bytes))
	return nil
}

func archiveLocation() string {
	switch cfg.Archive.Backend {
	case "gcs":
		return "gs://" + cfg.Archive.Bucket + "/" + cfg.Archive.Prefix
	case "s3":
		return "s3://" + cfg.Archive.Bucket + "/" + cfg.Archive.Prefix
	default:
		return cfg.Archive.Dir
	}
}
