package hindsight

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/hindsight/internal/blunder"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/stats"
	"github.com/discochess/hindsight/internal/trend"
	"github.com/discochess/hindsight/internal/uci"
)

// Option configures an Analyzer.
type Option interface {
	apply(*options)
}

// options holds the analyzer configuration.
type options struct {
	oracle   oracle.Oracle
	launcher uci.Launcher

	poolSize       int
	requestTimeout time.Duration
	engineThreads  int
	engineHashMB   int
	cacheSize      int

	budget      oracle.Budget
	mateCap     int
	thresholds  blunder.Thresholds
	topN        int
	granularity trend.Granularity
	player      string
	endgame     position.EndgamePolicy
	concurrency int
	breakerAt   int
	skip        func(id string) bool

	stats  stats.Collector
	logger *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		poolSize:       2,
		requestTimeout: 30 * time.Second,
		engineThreads:  1,
		engineHashMB:   16,
		cacheSize:      100000,
		budget:         oracle.Budget{Depth: 12},
		mateCap:        1000,
		thresholds:     blunder.DefaultThresholds(),
		topN:           5,
		granularity:    trend.Day,
		endgame:        position.DefaultEndgamePolicy(),
		breakerAt:      16,
		stats:          stats.NewNoop(),
		logger:         zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithOracle sets the evaluation oracle. The analyzer does not close it.
// It takes precedence over WithEngine and WithEngineCommand.
func WithOracle(o Oracle) Option {
	return optionFunc(func(opts *options) {
		opts.oracle = o
	})
}

// WithEngine makes the analyzer run its own pool of engine processes
// started by l. The pool is closed with the analyzer.
func WithEngine(l Launcher) Option {
	return optionFunc(func(o *options) {
		o.launcher = l
	})
}

// WithEngineCommand is WithEngine for an engine binary on disk.
func WithEngineCommand(path string, args ...string) Option {
	return WithEngine(EngineCommand{Path: path, Args: args})
}

// WithPoolSize sets the number of engine processes. Default is 2.
func WithPoolSize(n int) Option {
	return optionFunc(func(o *options) {
		o.poolSize = n
	})
}

// WithRequestTimeout bounds each engine search attempt. Default is 30s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.requestTimeout = d
	})
}

// WithEngineResources sets the engine's thread count and hash size.
// Defaults are 1 thread and 16 MB.
func WithEngineResources(threads, hashMB int) Option {
	return optionFunc(func(o *options) {
		o.engineThreads = threads
		o.engineHashMB = hashMB
	})
}

// WithCacheSize sets how many evaluations are memoized across games.
// Zero disables the cache. Default is 100000.
func WithCacheSize(n int) Option {
	return optionFunc(func(o *options) {
		o.cacheSize = n
	})
}

// WithBudget sets the search budget. Default is depth 12.
func WithBudget(b Budget) Option {
	return optionFunc(func(o *options) {
		o.budget = b
	})
}

// WithMateCap sets the centipawn value mate scores are capped to.
// Default is 1000.
func WithMateCap(cp int) Option {
	return optionFunc(func(o *options) {
		o.mateCap = cp
	})
}

// WithThresholds sets the tier cutoffs. Default is 50/150/300 centipawns.
func WithThresholds(t Thresholds) Option {
	return optionFunc(func(o *options) {
		o.thresholds = t
	})
}

// WithTopN sets how many time-use moves are reported per game. Default is 5.
func WithTopN(n int) Option {
	return optionFunc(func(o *options) {
		o.topN = n
	})
}

// WithGranularity sets the aggregation bucket size. Default is Day.
func WithGranularity(g Granularity) Option {
	return optionFunc(func(o *options) {
		o.granularity = g
	})
}

// WithPlayer restricts analysis to the moves of one player, matched
// case-insensitively against the White and Black headers.
func WithPlayer(name string) Option {
	return optionFunc(func(o *options) {
		o.player = name
	})
}

// DefaultEndgamePolicy allows at most one minor piece or rook per side
// and no queens.
func DefaultEndgamePolicy() EndgamePolicy {
	return position.DefaultEndgamePolicy()
}

// WithEndgamePolicy sets the endgame heuristic.
// Default is DefaultEndgamePolicy.
func WithEndgamePolicy(p EndgamePolicy) Option {
	return optionFunc(func(o *options) {
		o.endgame = p
	})
}

// WithConcurrency sets how many games are analyzed at once.
// Default is the pool size.
func WithConcurrency(n int) Option {
	return optionFunc(func(o *options) {
		o.concurrency = n
	})
}

// WithBreakerThreshold sets how many consecutive unavailable evaluations
// stop a run from querying the oracle. Zero disables the breaker.
// Default is 16.
func WithBreakerThreshold(n int) Option {
	return optionFunc(func(o *options) {
		o.breakerAt = n
	})
}

// WithSkip excludes games for which skip reports true, before any
// evaluation. Run lists them in Excluded with ErrAlreadyAnalyzed.
func WithSkip(skip func(id string) bool) Option {
	return optionFunc(func(opts *options) {
		opts.skip = skip
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.stats = c
		}
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}
