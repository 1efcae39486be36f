package micro

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/codec"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/pgn"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/uci"
)

func loadGames(b *testing.B) []string {
	b.Helper()
	f, err := os.Open("../../testdata/scholars_mate.pgn")
	if err != nil {
		b.Fatalf("opening testdata: %v", err)
	}
	defer f.Close()
	games, err := pgn.SplitGames(f)
	if err != nil {
		b.Fatalf("splitting games: %v", err)
	}
	return games
}

// stub scores every position at zero without an engine.
var stub = oracle.Func(func(ctx context.Context, fen string, bud oracle.Budget) (oracle.Evaluation, error) {
	return oracle.Evaluation{Centipawns: new(int), Depth: bud.Depth}, nil
})

// BenchmarkParse measures replaying a game record.
func BenchmarkParse(b *testing.B) {
	games := loadGames(b)
	p := pgn.NewParser(position.New(position.DefaultEndgamePolicy()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Parse(games[i%len(games)]); err != nil {
			b.Fatalf("parse error: %v", err)
		}
	}
}

// BenchmarkAnalyzeGame_ColdCache measures the pipeline with every
// position sent to the oracle.
func BenchmarkAnalyzeGame_ColdCache(b *testing.B) {
	benchmarkAnalyze(b, 0)
}

// BenchmarkAnalyzeGame_WarmCache measures the pipeline when every
// position is already cached.
func BenchmarkAnalyzeGame_WarmCache(b *testing.B) {
	benchmarkAnalyze(b, 1000)
}

func benchmarkAnalyze(b *testing.B, cacheSize int) {
	games := loadGames(b)
	a, err := hindsight.New(
		hindsight.WithOracle(stub),
		hindsight.WithCacheSize(cacheSize),
	)
	if err != nil {
		b.Fatalf("creating analyzer: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	// Warm up the cache.
	for _, g := range games {
		_, _ = a.AnalyzeGame(ctx, hindsight.Record{Text: g})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.AnalyzeGame(ctx, hindsight.Record{Text: games[i%len(games)]}); err != nil {
			b.Fatalf("analyze error: %v", err)
		}
	}
}

// BenchmarkZstdDecompress measures reading back a month-sized archive.
func BenchmarkZstdDecompress(b *testing.B) {
	games := loadGames(b)
	var month bytes.Buffer
	for month.Len() < 1<<20 {
		for _, g := range games {
			month.WriteString(g)
			month.WriteString("\n\n")
		}
	}
	data, err := codec.Encode(codec.Zstd{}, month.Bytes())
	if err != nil {
		b.Fatalf("encoding: %v", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		b.Fatalf("creating decoder: %v", err)
	}
	defer decoder.Close()

	b.SetBytes(int64(month.Len()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decoder.DecodeAll(data, nil); err != nil {
			b.Fatalf("decode error: %v", err)
		}
	}
}

// BenchmarkEngineSearch measures one live engine search at depth 10.
// Requires stockfish in PATH.
func BenchmarkEngineSearch(b *testing.B) {
	path, err := exec.LookPath("stockfish")
	if err != nil {
		b.Skip("stockfish not found; skipping benchmark")
	}
	pool, err := oracle.NewPool(uci.Command{Path: path}, oracle.WithSize(1))
	if err != nil {
		b.Fatalf("creating pool: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	positions := []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	}
	// Start the engine outside the timed loop.
	if _, err := pool.Evaluate(ctx, positions[0], oracle.Budget{Depth: 1}); err != nil {
		b.Fatalf("warm up: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pool.Evaluate(ctx, positions[i%len(positions)], oracle.Budget{Depth: 10}); err != nil {
			b.Fatalf("evaluate error: %v", err)
		}
	}
}
