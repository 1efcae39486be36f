// Package hindsightfx provides an fx module wiring an Analyzer, the raw
// game archive, and the result store from a *config.Config.
package hindsightfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/config"
	"github.com/discochess/hindsight/internal/resultstore"
	"github.com/discochess/hindsight/internal/stats"
	"github.com/discochess/hindsight/internal/stats/logger"
)

// Module provides the analyzer and its stores.
// Requires a *config.Config and a *zap.Logger to be provided. An
// hindsight.Oracle in the graph replaces the engine pool, which is
// useful for testing.
var Module = fx.Module("hindsight",
	fx.Provide(
		newStatsCollector,
		newAnalyzer,
		newArchive,
		newResultStore,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("hindsight.stats"))
}

// Params holds dependencies for creating the analyzer.
type Params struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Oracle    hindsight.Oracle `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided analyzer.
type Result struct {
	fx.Out

	Analyzer *hindsight.Analyzer
}

func newAnalyzer(p Params) (Result, error) {
	opts, err := p.Config.AnalyzerOptions(p.Logger.Named("hindsight"), p.Collector)
	if err != nil {
		return Result{}, err
	}
	if p.Oracle != nil {
		opts = append(opts, hindsight.WithOracle(p.Oracle))
	}

	a, err := hindsight.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return a.Close()
		},
	})
	return Result{Analyzer: a}, nil
}

func newArchive(cfg *config.Config, lc fx.Lifecycle) (*archive.Archive, error) {
	a, err := cfg.OpenArchive(context.Background())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(a.Close))
	return a, nil
}

func newResultStore(cfg *config.Config, lc fx.Lifecycle) (*resultstore.Store, error) {
	s, err := cfg.OpenResults(context.Background())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(s.Close))
	return s, nil
}
