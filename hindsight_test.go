package hindsight_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/blunder"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/trend"
	"github.com/discochess/hindsight/internal/uci/ucitest"
)

const scholarsMate = `[Event "Live Chess"]
[White "alice"]
[Black "Bob"]
[Result "1-0"]
[UTCDate "2025.05.05"]
[Link "https://www.chess.com/game/live/1"]

1. e4 {[%clk 0:05:00]} 1... e5 {[%clk 0:05:00]} 2. Bc4 {[%clk 0:04:44]}
2... Nc6 {[%clk 0:04:58.5]} 3. Qh5 {[%clk 0:04:50]} 3... Nf6 {[%clk 0:04:30]}
4. Qxf7# {[%clk 0:04:52]} 1-0
`

const quietGame = `[Event "Live Chess"]
[White "Bob"]
[Black "carol"]
[Result "*"]
[UTCDate "2025.05.14"]
[Link "https://www.chess.com/game/live/2"]

1. d4 {[%clk 0:03:00]} d5 {[%clk 0:03:00]} 2. c4 {[%clk 0:02:55]} e6 {[%clk 0:02:52]} *
`

const undatedGame = `[White "Bob"]
[Black "dave"]

1. Nf3 Nf6 *
`

const (
	afterQh5 = "r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR b"
	afterNf6 = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubOracle scores every position 0 except the scholar's mate trap.
type stubOracle struct {
	calls atomic.Int64
	fail  func(fen string) bool
}

func (s *stubOracle) Evaluate(_ context.Context, fen string, b oracle.Budget) (oracle.Evaluation, error) {
	s.calls.Add(1)
	if s.fail != nil && s.fail(fen) {
		return oracle.Evaluation{}, oracle.ErrEvaluationUnavailable
	}
	switch {
	case strings.HasPrefix(fen, afterQh5):
		return oracle.CP(-50, b), nil
	case strings.HasPrefix(fen, afterNf6):
		return oracle.MateIn(1, b), nil
	}
	return oracle.CP(0, b), nil
}

func newAnalyzer(t *testing.T, opts ...hindsight.Option) *hindsight.Analyzer {
	t.Helper()
	a, err := hindsight.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_Errors(t *testing.T) {
	stub := &stubOracle{}
	tests := []struct {
		name string
		opts []hindsight.Option
		want error
	}{
		{"no oracle", nil, hindsight.ErrNoOracle},
		{"thresholds", []hindsight.Option{
			hindsight.WithOracle(stub),
			hindsight.WithThresholds(hindsight.Thresholds{Inaccuracy: 300, Mistake: 150, Blunder: 50}),
		}, hindsight.ErrInvalidThresholds},
		{"budget", []hindsight.Option{
			hindsight.WithOracle(stub),
			hindsight.WithBudget(hindsight.Budget{}),
		}, oracle.ErrNoBudget},
		{"granularity", []hindsight.Option{
			hindsight.WithOracle(stub),
			hindsight.WithGranularity("month"),
		}, trend.ErrInvalidGranularity},
		{"mate cap", []hindsight.Option{
			hindsight.WithOracle(stub),
			hindsight.WithMateCap(0),
		}, blunder.ErrInvalidMateCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hindsight.New(tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzer_AnalyzeGame(t *testing.T) {
	stub := &stubOracle{}
	a := newAnalyzer(t, hindsight.WithOracle(stub), hindsight.WithCacheSize(0))

	res, err := a.AnalyzeGame(context.Background(), hindsight.Record{Source: "2025-05", Text: scholarsMate})
	require.NoError(t, err)

	assert.Equal(t, "https://www.chess.com/game/live/1", res.ID)
	assert.Equal(t, "2025-05-05", res.Date.Format(time.DateOnly))
	assert.Equal(t, 7, res.Moves)
	assert.Equal(t, hindsight.Side(""), res.Player)
	// Seven positions need scores; the final checkmate is scored without the engine.
	assert.EqualValues(t, 7, stub.calls.Load())

	require.Len(t, res.TimeUse, 5)
	assert.Equal(t, 6, res.TimeUse[0].Ply)
	assert.Equal(t, 28500*time.Millisecond, res.TimeUse[0].TimeSpent)
	assert.Equal(t, 3, res.TimeUse[1].Ply)
	assert.Equal(t, 46*time.Second, res.TimePlayed)

	require.Len(t, res.Blunders, 1)
	e := res.Blunders[0]
	assert.Equal(t, 6, e.Ply)
	assert.Equal(t, "Nf6", e.SAN)
	assert.Equal(t, "Knight to f6", e.Description)
	assert.Equal(t, 950, e.Drop)
	assert.Equal(t, blunder.Blunder, e.Tier)
}

func TestAnalyzer_PlayerFilter(t *testing.T) {
	tests := []struct {
		player    string
		wantSide  hindsight.Side
		wantCalls int64
		wantTimed []int
		wantFlags int
		wantTotal time.Duration
	}{
		{"BOB", position.Black, 6, []int{6, 4}, 1, 30 * time.Second},
		{"alice", position.White, 7, []int{3, 5, 7}, 0, 16 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.player, func(t *testing.T) {
			stub := &stubOracle{}
			a := newAnalyzer(t, hindsight.WithOracle(stub), hindsight.WithPlayer(tt.player))

			res, err := a.AnalyzeGame(context.Background(), hindsight.Record{Text: scholarsMate})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSide, res.Player)
			assert.Equal(t, tt.wantCalls, stub.calls.Load())
			assert.Len(t, res.Blunders, tt.wantFlags)
			assert.Equal(t, tt.wantTotal, res.TimePlayed)

			var plies []int
			for _, e := range res.TimeUse {
				plies = append(plies, e.Ply)
			}
			assert.Equal(t, tt.wantTimed, plies)
		})
	}

	a := newAnalyzer(t, hindsight.WithOracle(&stubOracle{}), hindsight.WithPlayer("erin"))
	_, err := a.AnalyzeGame(context.Background(), hindsight.Record{Text: scholarsMate})
	assert.ErrorIs(t, err, hindsight.ErrPlayerNotInGame)
}

func TestAnalyzer_UnavailableEvaluation(t *testing.T) {
	stub := &stubOracle{fail: func(fen string) bool { return strings.HasPrefix(fen, afterNf6) }}
	a := newAnalyzer(t, hindsight.WithOracle(stub))

	res, err := a.AnalyzeGame(context.Background(), hindsight.Record{Text: scholarsMate})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unavailable)
	assert.Empty(t, res.Blunders, "moves missing an evaluation are not classified")
	assert.Len(t, res.TimeUse, 5)
}

func TestAnalyzer_Malformed(t *testing.T) {
	a := newAnalyzer(t, hindsight.WithOracle(&stubOracle{}))
	_, err := a.AnalyzeGame(context.Background(), hindsight.Record{Text: "1. e4 e5 2. Ke3 *"})
	assert.ErrorIs(t, err, hindsight.ErrMalformedGame)
}

func TestAnalyzer_Run(t *testing.T) {
	stub := &stubOracle{}
	a := newAnalyzer(t,
		hindsight.WithOracle(stub),
		hindsight.WithGranularity(trend.Week),
		hindsight.WithConcurrency(3),
	)

	records := []hindsight.Record{
		{Source: "2025-05", Text: scholarsMate},
		{Source: "2025-05", Text: "1. e4 e5 2. Ke3 *"},
		{Source: "2025-05", Text: quietGame},
		{Source: "2025-05", Text: undatedGame},
	}
	run, err := a.Run(context.Background(), records)
	require.NoError(t, err)

	assert.NotEmpty(t, run.RunID)
	require.Len(t, run.Games, 3)
	assert.Equal(t, "https://www.chess.com/game/live/1", run.Games[0].ID)
	assert.Equal(t, "https://www.chess.com/game/live/2", run.Games[1].ID)

	require.Len(t, run.Excluded, 1)
	assert.Equal(t, 1, run.Excluded[0].Index)
	assert.Contains(t, run.Excluded[0].Reason, "malformed")

	require.Len(t, run.Aggregates, 2)
	assert.Equal(t, "2025-W19", run.Aggregates[0].Key)
	assert.Equal(t, 1, run.Aggregates[0].Blunders)
	assert.Equal(t, "2025-W20", run.Aggregates[1].Key)
	assert.Equal(t, 0, run.Aggregates[1].Flagged())

	require.Len(t, run.WorstDrops, 1)
	assert.Equal(t, "Nf6", run.WorstDrops[0].Event.SAN)
	assert.Equal(t, []blunder.Count{{SAN: "Nf6", Count: 1}}, run.RepeatedMistakes)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "without a date")

	again, _ := hindsight.Aggregate(run.Games, trend.Week)
	assert.Equal(t, run.Aggregates, again)
}

func TestAnalyzer_RunSkip(t *testing.T) {
	stub := &stubOracle{}
	a := newAnalyzer(t,
		hindsight.WithOracle(stub),
		hindsight.WithSkip(func(id string) bool { return id == "https://www.chess.com/game/live/1" }),
	)

	run, err := a.Run(context.Background(), []hindsight.Record{{Text: scholarsMate}, {Text: quietGame}})
	require.NoError(t, err)
	require.Len(t, run.Games, 1)
	assert.Equal(t, "https://www.chess.com/game/live/2", run.Games[0].ID)
	require.Len(t, run.Excluded, 1)
	assert.Equal(t, "https://www.chess.com/game/live/1", run.Excluded[0].GameID)
	assert.Contains(t, run.Excluded[0].Reason, "already analyzed")
	assert.EqualValues(t, 5, stub.calls.Load(), "only the second game reaches the oracle")
}

func TestAnalyzer_RunBreaker(t *testing.T) {
	stub := &stubOracle{fail: func(string) bool { return true }}
	a := newAnalyzer(t,
		hindsight.WithOracle(stub),
		hindsight.WithBreakerThreshold(3),
		hindsight.WithConcurrency(1),
	)

	run, err := a.Run(context.Background(), []hindsight.Record{{Text: scholarsMate}, {Text: quietGame}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stub.calls.Load())
	require.Len(t, run.Games, 2)
	assert.True(t, run.Games[1].Partial)
	assert.Len(t, run.Games[1].TimeUse, 2, "time use survives a tripped breaker")
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "stopped querying the oracle")
}

func TestAnalyzer_RunCancelled(t *testing.T) {
	a := newAnalyzer(t, hindsight.WithOracle(&stubOracle{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := a.Run(ctx, []hindsight.Record{{Text: scholarsMate}, {Text: quietGame}})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Empty(t, run.Games)
	assert.Contains(t, run.Warnings, "run cancelled; 2 games not analyzed")
}

func TestAnalyzer_Closed(t *testing.T) {
	a, err := hindsight.New(hindsight.WithOracle(&stubOracle{}))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Close(), hindsight.ErrClosed)

	_, err = a.Run(context.Background(), nil)
	assert.ErrorIs(t, err, hindsight.ErrClosed)
	_, err = a.AnalyzeGame(context.Background(), hindsight.Record{Text: scholarsMate})
	assert.ErrorIs(t, err, hindsight.ErrClosed)
}

func TestAnalyzer_EnginePool(t *testing.T) {
	engine := &ucitest.Engine{Score: func(fen string) string {
		if strings.HasPrefix(fen, afterNf6) {
			return "mate 1"
		}
		return "cp 10"
	}}
	a, err := hindsight.New(
		hindsight.WithEngine(engine),
		hindsight.WithPoolSize(2),
		hindsight.WithPlayer("bob"),
	)
	require.NoError(t, err)

	run, err := a.Run(context.Background(), []hindsight.Record{{Text: scholarsMate}, {Text: quietGame}})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	engine.Wait()

	require.Len(t, run.Games, 2)
	require.Len(t, run.Games[0].Blunders, 1)
	assert.Equal(t, 1010, run.Games[0].Blunders[0].Drop)
	assert.LessOrEqual(t, engine.Launches(), 2)
}

func TestOptions_NilCollectorAndLogger(t *testing.T) {
	// Nil values keep the no-op defaults.
	a := newAnalyzer(t,
		hindsight.WithOracle(&stubOracle{}),
		hindsight.WithStats(nil),
		hindsight.WithLogger(nil),
	)

	res, err := a.AnalyzeGame(context.Background(), hindsight.Record{Text: scholarsMate})
	require.NoError(t, err)
	assert.Len(t, res.Blunders, 1)
}

func TestOptions_EngineAndEndgameTypes(t *testing.T) {
	assert.Equal(t, position.DefaultEndgamePolicy(), hindsight.DefaultEndgamePolicy())

	policy := hindsight.DefaultEndgamePolicy()
	policy.AllowQueens = true

	engine := &ucitest.Engine{Score: func(string) string { return "cp 0" }}
	var launcher hindsight.Launcher = engine
	a, err := hindsight.New(
		hindsight.WithEngine(launcher),
		hindsight.WithPoolSize(1),
		hindsight.WithEndgamePolicy(policy),
	)
	require.NoError(t, err)

	_, err = a.AnalyzeGame(context.Background(), hindsight.Record{Text: quietGame})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	engine.Wait()

	assert.Implements(t, (*hindsight.Launcher)(nil), hindsight.EngineCommand{Path: "stockfish"})
}

func TestRunResult_ErrorsAreScoped(t *testing.T) {
	// Errors from a single game never fail the run.
	a := newAnalyzer(t, hindsight.WithOracle(oracle.Func(func(context.Context, string, oracle.Budget) (oracle.Evaluation, error) {
		return oracle.Evaluation{}, errors.New("engine on fire")
	})), hindsight.WithBreakerThreshold(0))

	run, err := a.Run(context.Background(), []hindsight.Record{{Text: scholarsMate}})
	require.NoError(t, err)
	require.Len(t, run.Games, 1)
	assert.Equal(t, 7, run.Games[0].Unavailable)
	assert.Empty(t, run.Warnings)
}
