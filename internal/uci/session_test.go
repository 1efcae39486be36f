package uci_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/discochess/hindsight/internal/uci"
	"github.com/discochess/hindsight/internal/uci/ucitest"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startSession(t *testing.T, e *ucitest.Engine) *uci.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := e.Launch(ctx)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	s, err := uci.Start(ctx, proc, uci.Options{Threads: 1, HashMB: 16})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
		e.Wait()
	})
	return s
}

func TestSession_Search(t *testing.T) {
	tests := []struct {
		name     string
		score    string
		wantCP   *int
		wantMate *int
	}{
		{name: "centipawns", score: "cp 35", wantCP: intPtr(35)},
		{name: "negative centipawns", score: "cp -120", wantCP: intPtr(-120)},
		{name: "mate", score: "mate 3", wantMate: intPtr(3)},
		{name: "mated", score: "mate -2", wantMate: intPtr(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ucitest.Engine{Score: func(string) string { return tt.score }}
			s := startSession(t, e)
			if s.Name() != "Fakefish" {
				t.Errorf("Name() = %q, want Fakefish", s.Name())
			}

			res, err := s.Search(context.Background(), startFEN, uci.Limit{Depth: 12})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if !equalPtr(res.Centipawns, tt.wantCP) || !equalPtr(res.Mate, tt.wantMate) {
				t.Errorf("Search() cp=%v mate=%v, want cp=%v mate=%v",
					deref(res.Centipawns), deref(res.Mate), deref(tt.wantCP), deref(tt.wantMate))
			}
			if res.Depth != 12 {
				t.Errorf("Depth = %d, want 12", res.Depth)
			}
			if res.BestMove != "e2e4" {
				t.Errorf("BestMove = %q, want e2e4", res.BestMove)
			}
		})
	}
}

func TestSession_SearchSequence(t *testing.T) {
	e := &ucitest.Engine{}
	s := startSession(t, e)
	for i := 0; i < 3; i++ {
		if _, err := s.Search(context.Background(), startFEN, uci.Limit{MoveTime: 50 * time.Millisecond}); err != nil {
			t.Fatalf("Search() #%d error = %v", i, err)
		}
	}
	log := e.Log()
	if len(log) != 9 {
		t.Fatalf("log has %d events, want 9: %v", len(log), log)
	}
	if log[1] != "p1 go movetime 50" {
		t.Errorf("go command = %q, want %q", log[1], "p1 go movetime 50")
	}
}

func TestSession_Failures(t *testing.T) {
	tests := []struct {
		name     string
		behavior ucitest.Behavior
		want     error
	}{
		{"crash", ucitest.Crash, uci.ErrProcessExited},
		{"no score", ucitest.NoScore, uci.ErrNoScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ucitest.Engine{Behave: func(int, string) ucitest.Behavior { return tt.behavior }}
			s := startSession(t, e)
			_, err := s.Search(context.Background(), startFEN, uci.Limit{Depth: 5})
			if !errors.Is(err, tt.want) {
				t.Errorf("Search() error = %v, want %v", err, tt.want)
			}
			_ = s.Kill()
		})
	}
}

func TestSession_Cancel(t *testing.T) {
	e := &ucitest.Engine{Behave: func(int, string) ucitest.Behavior { return ucitest.Hang }}
	s := startSession(t, e)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Search(ctx, startFEN, uci.Limit{Depth: 30})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Search() error = %v, want deadline exceeded", err)
	}
	if err := s.Kill(); err != nil {
		t.Errorf("Kill() error = %v", err)
	}
	if e.Kills() != 1 {
		t.Errorf("Kills() = %d, want 1", e.Kills())
	}
}

func TestSession_NoLimit(t *testing.T) {
	s := startSession(t, &ucitest.Engine{})
	if _, err := s.Search(context.Background(), startFEN, uci.Limit{}); !errors.Is(err, uci.ErrNoLimit) {
		t.Errorf("Search() error = %v, want ErrNoLimit", err)
	}
}

func intPtr(n int) *int { return &n }

func equalPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
