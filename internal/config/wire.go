package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/archive/diskstore"
	"github.com/discochess/hindsight/internal/archive/gcsstore"
	"github.com/discochess/hindsight/internal/archive/s3store"
	"github.com/discochess/hindsight/internal/chesscom"
	"github.com/discochess/hindsight/internal/codec"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/resultstore"
	"github.com/discochess/hindsight/internal/stats"
	"github.com/discochess/hindsight/internal/trend"
)

// ErrUnknownBackend is returned for an unsupported archive backend.
var ErrUnknownBackend = errors.New("config: unknown archive backend")

// AnalyzerOptions translates the engine and analysis settings.
func (c *Config) AnalyzerOptions(logger *zap.Logger, collector stats.Collector) ([]hindsight.Option, error) {
	g, err := trend.ParseGranularity(c.Analysis.Granularity)
	if err != nil {
		return nil, err
	}
	return []hindsight.Option{
		hindsight.WithEngineCommand(c.Engine.Path, c.Engine.Args...),
		hindsight.WithPoolSize(c.Engine.PoolSize),
		hindsight.WithRequestTimeout(c.Engine.Timeout),
		hindsight.WithEngineResources(c.Engine.Threads, c.Engine.HashMB),
		hindsight.WithCacheSize(c.Engine.CacheSize),
		hindsight.WithBudget(hindsight.Budget{Depth: c.Engine.Depth, MoveTime: c.Engine.MoveTime}),
		hindsight.WithMateCap(c.Analysis.MateCap),
		hindsight.WithThresholds(hindsight.Thresholds{
			Inaccuracy: c.Analysis.Inaccuracy,
			Mistake:    c.Analysis.Mistake,
			Blunder:    c.Analysis.Blunder,
		}),
		hindsight.WithTopN(c.Analysis.TopN),
		hindsight.WithGranularity(g),
		hindsight.WithPlayer(c.Analysis.Player),
		hindsight.WithEndgamePolicy(position.EndgamePolicy{
			MaxNonPawn:  c.Analysis.EndgameMaxMaterial,
			AllowQueens: c.Analysis.EndgameAllowQueens,
		}),
		hindsight.WithConcurrency(c.Analysis.Concurrency),
		hindsight.WithBreakerThreshold(c.Analysis.BreakerThreshold),
		hindsight.WithStats(collector),
		hindsight.WithLogger(logger),
	}, nil
}

// OpenArchive opens the configured archive backend.
func (c *Config) OpenArchive(ctx context.Context) (*archive.Archive, error) {
	cd, err := codec.Lookup(c.Archive.Codec)
	if err != nil {
		return nil, err
	}

	var s archive.Store
	switch c.Archive.Backend {
	case "", "disk":
		s, err = diskstore.New(c.Archive.Dir, cd)
	case "gcs":
		s, err = gcsstore.New(ctx, c.Archive.Bucket, cd, gcsstore.WithPrefix(c.Archive.Prefix))
	case "s3":
		opts := []s3store.Option{s3store.WithPrefix(c.Archive.Prefix)}
		if c.Archive.Region != "" {
			opts = append(opts, s3store.WithRegion(c.Archive.Region))
		}
		if c.Archive.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(c.Archive.Endpoint))
		}
		s, err = s3store.New(ctx, c.Archive.Bucket, cd, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Archive.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s archive: %w", c.Archive.Backend, err)
	}
	return archive.New(s), nil
}

// LockPath returns the file guarding fetches into the configured archive.
func (c *Config) LockPath() string {
	if c.Archive.Backend == "" || c.Archive.Backend == "disk" {
		return filepath.Join(c.Archive.Dir, ".fetch.lock")
	}
	return filepath.Join(os.TempDir(), "hindsight-fetch.lock")
}

// OpenResults opens the result database, creating its directory.
func (c *Config) OpenResults(ctx context.Context) (*resultstore.Store, error) {
	if c.Results.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Results.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating results directory: %w", err)
		}
	}
	return resultstore.Open(ctx, c.Results.Path)
}

// ChessComClient builds the game API client.
func (c *Config) ChessComClient(logger *zap.Logger, collector stats.Collector) *chesscom.Client {
	return chesscom.New(
		chesscom.WithBaseURL(c.ChessCom.BaseURL),
		chesscom.WithRateLimit(c.ChessCom.Rate),
		chesscom.WithStats(collector),
		chesscom.WithLogger(logger),
	)
}
