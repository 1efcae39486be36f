// Package fetch downloads a player's monthly archives into an archive
// store and keeps its manifest current.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/chesscom"
	"github.com/discochess/hindsight/internal/stats"
)

// DefaultRecentMonths bounds a fetch to the latest archives unless all
// months are requested.
const DefaultRecentMonths = 12

var (
	// ErrLocked is returned when another fetch holds the lock file.
	ErrLocked = errors.New("fetch: another fetch is running")

	// ErrNoUsername is returned when no player is configured.
	ErrNoUsername = errors.New("fetch: username is required")
)

// Source lists and downloads monthly archives.
type Source interface {
	Archives(ctx context.Context, username string) ([]archive.Month, error)
	Games(ctx context.Context, username string, m archive.Month) ([]chesscom.Game, error)
}

// Compile-time check that the API client is a Source.
var _ Source = (*chesscom.Client)(nil)

// Fetcher copies archives from a Source into an Archive.
type Fetcher struct {
	source   Source
	archive  *archive.Archive
	lockPath string
	refresh  bool
	recent   int
	now      func() time.Time
	progress ProgressFunc
	stats    stats.Collector
	logger   *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRefresh refetches months that are already stored.
func WithRefresh(refresh bool) Option {
	return func(f *Fetcher) { f.refresh = refresh }
}

// WithRecentMonths limits the fetch to the latest n archives. Zero
// fetches every month.
func WithRecentMonths(n int) Option {
	return func(f *Fetcher) { f.recent = n }
}

// WithLockFile guards the fetch with an exclusive lock on path.
func WithLockFile(path string) Option {
	return func(f *Fetcher) { f.lockPath = path }
}

// WithClock sets the time source used to detect the current month.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Fetcher) { f.progress = fn }
}

// WithStats sets the metrics collector.
func WithStats(s stats.Collector) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.stats = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher.
func New(src Source, a *archive.Archive, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:   src,
		archive:  a,
		recent:   DefaultRecentMonths,
		now:      time.Now,
		progress: func(Progress) {},
		stats:    stats.NewNoop(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Report summarizes a finished fetch.
type Report struct {
	Fetched []archive.Month
	Skipped []archive.Month
	Games   int
	Bytes   int64
}

// Fetch downloads the archives of username. Stored months are skipped
// unless refreshing or the month is still in progress. The manifest is
// saved even when the fetch stops early.
func (f *Fetcher) Fetch(ctx context.Context, username string) (rep *Report, err error) {
	if username == "" {
		return nil, ErrNoUsername
	}
	if f.lockPath != "" {
		fl := flock.New(f.lockPath)
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", f.lockPath, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, f.lockPath)
		}
		defer fl.Unlock()
	}

	start := time.Now()
	months, err := f.source.Archives(ctx, username)
	if err != nil {
		return nil, err
	}
	if f.recent > 0 && len(months) > f.recent {
		months = months[len(months)-f.recent:]
	}
	f.progress(Progress{Phase: PhaseList, MonthsTotal: len(months), StartTime: start})

	stored, err := f.archive.Months(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[archive.Month]bool, len(stored))
	for _, m := range stored {
		have[m] = true
	}

	manifest, err := f.archive.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	manifest.Username = username

	rep = &Report{}
	defer func() {
		if saveErr := f.archive.SaveManifest(context.WithoutCancel(ctx), manifest); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}()

	current := archive.MonthOf(f.now().UTC())
	for i, m := range months {
		p := Progress{Month: m, MonthsDone: i + 1, MonthsTotal: len(months), StartTime: start}
		if have[m] && !f.refresh && m != current {
			rep.Skipped = append(rep.Skipped, m)
			p.Phase = PhaseSkip
			f.progress(p)
			continue
		}

		summary, n, err := f.fetchMonth(ctx, username, m)
		if err != nil {
			return rep, err
		}
		manifest.Set(summary)
		rep.Fetched = append(rep.Fetched, m)
		rep.Games += summary.Games
		rep.Bytes += n

		p.Phase, p.Games, p.Bytes = PhaseMonth, summary.Games, n
		f.progress(p)
	}

	f.progress(Progress{Phase: PhaseDone, MonthsDone: len(months), MonthsTotal: len(months),
		Games: rep.Games, Bytes: rep.Bytes, StartTime: start})
	f.logger.Info("fetch finished",
		zap.String("username", username),
		zap.Int("fetched", len(rep.Fetched)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("games", rep.Games),
	)
	return rep, nil
}

func (f *Fetcher) fetchMonth(ctx context.Context, username string, m archive.Month) (*archive.MonthSummary, int64, error) {
	games, err := f.source.Games(ctx, username, m)
	if err != nil {
		return nil, 0, err
	}

	summary := archive.NewMonthSummary(m)
	summary.FetchedAt = f.now().UTC()
	var sb strings.Builder
	for _, g := range games {
		if strings.TrimSpace(g.PGN) == "" {
			f.logger.Warn("game has no PGN", zap.String("url", g.URL))
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(g.PGN))

		me, opp, _ := g.Sides(username)
		summary.Record(me.Result, g.TimeControl, opp.Username)
	}
	sb.WriteString("\n")

	if err := f.archive.Put(ctx, m, []byte(sb.String())); err != nil {
		return nil, 0, err
	}
	f.stats.IncCounter(stats.MetricArchivesFetched, 1)
	return summary, int64(sb.Len()), nil
}
