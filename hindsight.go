// Package hindsight analyzes a player's recorded chess games: where time
// went, which moves dropped the evaluation, and how error rates trend
// over the calendar.
//
// Example usage:
//
//	a, err := hindsight.New(
//	    hindsight.WithEngineCommand("stockfish"),
//	    hindsight.WithPlayer("magnus"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	run, err := a.Run(ctx, records)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range run.Aggregates {
//	    fmt.Printf("%s: %d games, %d blunders\n", b.Key, b.Games, b.Blunders)
//	}
package hindsight

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/hindsight/internal/blunder"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/pgn"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/stats"
	"github.com/discochess/hindsight/internal/timeuse"
	"github.com/discochess/hindsight/internal/trend"
	"github.com/discochess/hindsight/internal/uci"
)

// Types shared with the analysis packages.
type (
	Oracle        = oracle.Oracle
	OracleFunc    = oracle.Func
	Evaluation    = oracle.Evaluation
	Budget        = oracle.Budget
	Thresholds    = blunder.Thresholds
	Tier          = blunder.Tier
	BlunderEvent  = blunder.Event
	TimeUseEntry  = timeuse.Entry
	Insights      = timeuse.Insights
	Granularity   = trend.Granularity
	Bucket        = trend.Aggregate
	TrendSummary  = trend.Summary
	Side          = position.Side
	EndgamePolicy = position.EndgamePolicy
	Move          = pgn.Move
	Launcher      = uci.Launcher
	EngineCommand = uci.Command
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrMalformedGame indicates a record that could not be replayed.
	ErrMalformedGame = pgn.ErrMalformedGame

	// ErrEvaluationUnavailable indicates the oracle could not score a
	// position after a retry.
	ErrEvaluationUnavailable = oracle.ErrEvaluationUnavailable

	// ErrOracleProcessFailure indicates an engine process failed.
	ErrOracleProcessFailure = oracle.ErrProcessFailure

	// ErrInvalidThresholds indicates tier cutoffs that are not strictly
	// increasing.
	ErrInvalidThresholds = blunder.ErrInvalidThresholds

	// ErrClosed indicates the analyzer has been closed.
	ErrClosed = errors.New("hindsight: analyzer closed")

	// ErrNoOracle indicates neither an oracle nor an engine was provided.
	ErrNoOracle = errors.New("hindsight: no oracle or engine provided")

	// ErrPlayerNotInGame indicates a game the configured player did not play.
	ErrPlayerNotInGame = errors.New("hindsight: player not in game")

	// ErrAlreadyAnalyzed indicates a game excluded by WithSkip.
	ErrAlreadyAnalyzed = errors.New("hindsight: game already analyzed")
)

// Analyzer runs the per-game pipeline and aggregates results.
// An Analyzer is safe for concurrent use by multiple goroutines.
type Analyzer struct {
	oracle   oracle.Oracle
	pool     *oracle.Pool
	parser   *pgn.Parser
	detector *blunder.Detector
	opts     options
	closed   atomic.Bool
}

// New creates an Analyzer with the given options.
func New(opts ...Option) (*Analyzer, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	detector, err := blunder.New(cfg.thresholds, cfg.mateCap)
	if err != nil {
		return nil, err
	}
	if !cfg.budget.Valid() {
		return nil, oracle.ErrNoBudget
	}
	if _, err := trend.ParseGranularity(string(cfg.granularity)); err != nil {
		return nil, err
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = max(cfg.poolSize, 1)
	}

	a := &Analyzer{
		parser:   pgn.NewParser(position.New(cfg.endgame)),
		detector: detector,
		opts:     cfg,
	}

	switch {
	case cfg.oracle != nil:
		a.oracle = cfg.oracle
	case cfg.launcher != nil:
		a.pool, err = oracle.NewPool(cfg.launcher,
			oracle.WithSize(cfg.poolSize),
			oracle.WithTimeout(cfg.requestTimeout),
			oracle.WithThreads(cfg.engineThreads),
			oracle.WithHashMB(cfg.engineHashMB),
			oracle.WithStats(cfg.stats),
			oracle.WithLogger(cfg.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("creating engine pool: %w", err)
		}
		a.oracle = a.pool
	default:
		return nil, ErrNoOracle
	}

	if cfg.cacheSize > 0 {
		cache, err := oracle.NewCache(a.oracle, cfg.cacheSize, cfg.stats)
		if err != nil {
			return nil, errors.Join(err, a.closePool())
		}
		a.oracle = cache
	}

	cfg.logger.Debug("analyzer initialized",
		zap.Stringer("budget", cfg.budget),
		zap.Int("mateCap", cfg.mateCap),
		zap.Int("concurrency", cfg.concurrency),
		zap.String("player", cfg.player),
	)
	return a, nil
}

// AnalyzeGame analyzes a single record. It fails with ErrMalformedGame
// when the record cannot be replayed, with ErrPlayerNotInGame when a
// player filter is set and does not match, and with the context's error
// when ctx ends. Positions the oracle cannot score are skipped.
func (a *Analyzer) AnalyzeGame(ctx context.Context, rec Record) (*GameResult, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	res, err := a.analyze(ctx, rec, newBreaker(0))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// analyze runs the pipeline on one record. Once the record has parsed,
// the returned result carries the game's identity even on error.
func (a *Analyzer) analyze(ctx context.Context, rec Record, br *breaker) (*GameResult, error) {
	game, err := a.parser.Parse(rec.Text)
	if err != nil {
		return nil, err
	}

	res := &GameResult{
		ID:            game.ID(),
		Source:        rec.Source,
		White:         game.White(),
		Black:         game.Black(),
		Result:        game.Result,
		Moves:         len(game.Moves),
		MissingClocks: game.MissingClocks,
	}
	if d, ok := game.Date(); ok {
		res.Date = d
	}
	if a.opts.skip != nil && a.opts.skip(res.ID) {
		return res, fmt.Errorf("%w: %s", ErrAlreadyAnalyzed, res.ID)
	}

	var filter timeuse.Filter
	if a.opts.player != "" {
		side, ok := game.SideOf(a.opts.player)
		if !ok {
			return res, fmt.Errorf("%w: %s vs %s", ErrPlayerNotInGame, res.White, res.Black)
		}
		res.Player = side
		filter = timeuse.BySide(side)
	}

	res.TimeUse = timeuse.Rank(game.Moves, a.opts.topN, filter)
	res.TimePlayed = timeuse.Total(game.Moves, filter)
	res.Insights.Observe(game.Moves, filter)

	inputs, err := a.evaluateMoves(ctx, game, filter, br, res)
	if err != nil {
		return res, err
	}
	res.Blunders = a.detector.Detect(inputs)
	for _, e := range res.Blunders {
		a.opts.stats.IncCounter(stats.MetricFlaggedMoves, 1)
		a.opts.logger.Debug("flagged move",
			zap.String("game", res.ID),
			zap.Int("ply", e.Ply),
			zap.String("san", e.SAN),
			zap.Int("drop", e.Drop),
			zap.Stringer("tier", e.Tier),
		)
	}
	a.opts.stats.IncCounter(stats.MetricGamesAnalyzed, 1)
	return res, nil
}

// evaluateMoves scores the positions around each selected move, in ply
// order. Index i of the cache holds the position after ply i.
func (a *Analyzer) evaluateMoves(ctx context.Context, game *pgn.Game, filter timeuse.Filter, br *breaker, res *GameResult) ([]blunder.Input, error) {
	evals := make([]*oracle.Evaluation, len(game.Moves)+1)
	done := make([]bool, len(game.Moves)+1)
	positionAt := func(i int) position.Position {
		if i == 0 {
			return game.Start
		}
		return game.Moves[i-1].After
	}
	get := func(i int) (*oracle.Evaluation, error) {
		if !done[i] {
			e, err := a.evaluate(ctx, positionAt(i), br, res)
			if err != nil {
				return nil, err
			}
			evals[i], done[i] = e, true
		}
		return evals[i], nil
	}

	var inputs []blunder.Input
	for i, m := range game.Moves {
		if filter != nil && !filter(m) {
			continue
		}
		before, err := get(i)
		if err != nil {
			return nil, err
		}
		after, err := get(i + 1)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, blunder.Input{Move: m, Before: before, After: after})
	}
	return inputs, nil
}

// evaluate scores one position. It returns nil without error when the
// score is unavailable; errors end the game's analysis.
func (a *Analyzer) evaluate(ctx context.Context, pos position.Position, br *breaker, res *GameResult) (*oracle.Evaluation, error) {
	switch {
	case pos.Features.Checkmate():
		e := oracle.MateIn(0, a.opts.budget)
		return &e, nil
	case pos.Features.Stalemate():
		e := oracle.CP(0, a.opts.budget)
		return &e, nil
	}

	if !br.allow() {
		res.Partial = true
		return nil, nil
	}
	e, err := a.oracle.Evaluate(ctx, pos.FEN, a.opts.budget)
	if err == nil {
		br.record(false)
		return &e, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, oracle.ErrClosed) {
		return nil, ErrClosed
	}

	res.Unavailable++
	a.opts.logger.Warn("evaluation unavailable",
		zap.String("game", res.ID),
		zap.String("fen", pos.FEN),
		zap.Error(err),
	)
	if br.record(true) {
		a.opts.stats.IncCounter(stats.MetricBreakerTrips, 1)
		a.opts.logger.Warn("oracle breaker tripped",
			zap.Int("consecutiveFailures", a.opts.breakerAt),
		)
	}
	return nil, nil
}

// Run analyzes records concurrently and aggregates the results. Games
// that cannot be analyzed are listed in Excluded. When ctx ends, Run
// returns the results completed so far together with the context's
// error.
func (a *Analyzer) Run(ctx context.Context, records []Record) (*RunResult, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}

	runID := uuid.NewString()
	started := time.Now().UTC()
	logger := a.opts.logger.With(zap.String("run", runID))
	logger.Info("run started",
		zap.Int("records", len(records)),
		zap.Int("concurrency", a.opts.concurrency),
	)

	br := newBreaker(a.opts.breakerAt)
	results := make([]*GameResult, len(records))
	var (
		mu       sync.Mutex
		excluded []Exclusion
		skipped  atomic.Int64
	)

	var g errgroup.Group
	g.SetLimit(a.opts.concurrency)
	for i, rec := range records {
		if ctx.Err() != nil {
			skipped.Add(int64(len(records) - i))
			break
		}
		g.Go(func() error {
			res, err := a.analyze(ctx, rec, br)
			switch {
			case err == nil:
				results[i] = res
			case ctx.Err() != nil:
				skipped.Add(1)
			default:
				excl := Exclusion{Source: rec.Source, Index: i, Reason: err.Error()}
				if res != nil {
					excl.GameID = res.ID
				}
				switch {
				case errors.Is(err, ErrAlreadyAnalyzed):
					logger.Debug("game skipped", zap.String("game", excl.GameID))
				default:
					if errors.Is(err, ErrMalformedGame) {
						a.opts.stats.IncCounter(stats.MetricGamesMalformed, 1)
					}
					logger.Warn("game excluded",
						zap.String("source", rec.Source),
						zap.Int("index", i),
						zap.Error(err),
					)
				}
				mu.Lock()
				excluded = append(excluded, excl)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var games []GameResult
	for _, r := range results {
		if r != nil {
			games = append(games, *r)
		}
	}
	run := Summarize(games, a.opts.granularity)
	run.RunID, run.Started = runID, started
	slices.SortFunc(excluded, func(x, y Exclusion) int { return cmp.Compare(x.Index, y.Index) })
	run.Excluded = excluded

	if !br.allow() {
		run.Warnings = append(run.Warnings, fmt.Sprintf(
			"stopped querying the oracle after %d consecutive unavailable evaluations; later games have partial results",
			a.opts.breakerAt))
	}
	if n := skipped.Load(); n > 0 {
		run.Warnings = append(run.Warnings, fmt.Sprintf("run cancelled; %d games not analyzed", n))
	}
	run.Finished = time.Now().UTC()

	logger.Info("run finished",
		zap.Int("games", len(run.Games)),
		zap.Int("excluded", len(run.Excluded)),
		zap.Int("buckets", len(run.Aggregates)),
		zap.Duration("elapsed", run.Finished.Sub(run.Started)),
	)
	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	return run, nil
}

// Aggregate buckets results with the analyzer's granularity.
func (a *Analyzer) Aggregate(results []GameResult) ([]Bucket, TrendSummary) {
	return Aggregate(results, a.opts.granularity)
}

// Close releases the engine pool, if the analyzer owns one.
// After Close, the analyzer should not be used.
func (a *Analyzer) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := a.closePool(); err != nil {
		return fmt.Errorf("closing engine pool: %w", err)
	}
	return nil
}

func (a *Analyzer) closePool() error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Close()
}
