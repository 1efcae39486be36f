package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/hindsight/internal/stats"
	"github.com/discochess/hindsight/internal/uci"
)

// Pool is an Oracle backed by a fixed number of engine processes.
// Each request holds one process exclusively; when every process is busy,
// requests wait. A Pool is safe for concurrent use by multiple goroutines.
type Pool struct {
	launcher uci.Launcher
	opts     options
	slots    chan *slot
	done     chan struct{}

	mu     sync.Mutex // orders release against Close
	closed atomic.Bool
	inUse  atomic.Int64
}

// slot owns at most one live session. Processes are spawned lazily and
// replaced after any failure.
type slot struct {
	id      int
	session *uci.Session
}

// Compile-time check that Pool implements Oracle.
var _ Oracle = (*Pool)(nil)

// NewPool creates a pool that starts engines with launcher.
func NewPool(launcher uci.Launcher, opts ...Option) (*Pool, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if launcher == nil {
		return nil, errors.New("oracle: no engine launcher")
	}
	if cfg.size < 1 {
		return nil, fmt.Errorf("oracle: pool size must be positive, got %d", cfg.size)
	}

	p := &Pool{
		launcher: launcher,
		opts:     cfg,
		slots:    make(chan *slot, cfg.size),
		done:     make(chan struct{}),
	}
	for i := range cfg.size {
		p.slots <- &slot{id: i + 1}
	}
	return p, nil
}

// Size returns the number of engine processes the pool may run.
func (p *Pool) Size() int { return p.opts.size }

// Evaluate scores fen on an idle engine process. A failed attempt kills
// the process and retries once on a fresh one; a second failure yields
// ErrEvaluationUnavailable. Cancelling ctx abandons the request and kills
// the process it was using.
func (p *Pool) Evaluate(ctx context.Context, fen string, b Budget) (Evaluation, error) {
	if p.closed.Load() {
		return Evaluation{}, ErrClosed
	}
	if !b.Valid() {
		return Evaluation{}, ErrNoBudget
	}

	s, err := p.acquire(ctx)
	if err != nil {
		return Evaluation{}, err
	}
	defer p.release(s)

	limit := uci.Limit{Depth: b.Depth, MoveTime: b.MoveTime}
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		start := time.Now()
		res, err := p.search(ctx, s, fen, limit)
		if err == nil {
			p.opts.stats.IncCounter(stats.MetricEvaluations, 1)
			p.opts.stats.ObserveHistogram(stats.MetricEvaluationSeconds, time.Since(start).Seconds())
			return Evaluation{
				Centipawns: res.Centipawns,
				Mate:       res.Mate,
				Depth:      res.Depth,
				Budget:     b,
				BestMove:   res.BestMove,
			}, nil
		}

		// The session may be mid-search; it cannot be reused.
		s.kill()
		lastErr = err
		if ctx.Err() != nil {
			return Evaluation{}, ctx.Err()
		}
		p.opts.logger.Warn("engine request failed",
			zap.Int("process", s.id),
			zap.Int("attempt", attempt),
			zap.String("fen", fen),
			zap.Error(err),
		)
		if attempt == 1 {
			p.opts.stats.IncCounter(stats.MetricEngineRetries, 1)
		}
	}

	p.opts.stats.IncCounter(stats.MetricEvaluationFailures, 1)
	return Evaluation{}, fmt.Errorf("%w: %s: %w", ErrEvaluationUnavailable, fen, lastErr)
}

// search runs one attempt, spawning a process first if the slot has none.
func (p *Pool) search(ctx context.Context, s *slot, fen string, limit uci.Limit) (uci.Result, error) {
	if p.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.timeout)
		defer cancel()
	}

	if s.session == nil {
		if err := p.spawn(ctx, s); err != nil {
			return uci.Result{}, err
		}
	}
	res, err := s.session.Search(ctx, fen, limit)
	if err != nil {
		return uci.Result{}, fmt.Errorf("%w: %w", ErrProcessFailure, err)
	}
	return res, nil
}

func (p *Pool) spawn(ctx context.Context, s *slot) error {
	proc, err := p.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("%w: launching engine: %w", ErrProcessFailure, err)
	}
	session, err := uci.Start(ctx, proc, uci.Options{
		Threads: p.opts.threads,
		HashMB:  p.opts.hashMB,
		Logger:  p.opts.logger.With(zap.Int("process", s.id)),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessFailure, err)
	}
	p.opts.stats.IncCounter(stats.MetricEngineSpawns, 1)
	p.opts.logger.Debug("engine started",
		zap.Int("process", s.id),
		zap.String("name", session.Name()),
	)
	s.session = session
	return nil
}

func (p *Pool) acquire(ctx context.Context) (*slot, error) {
	select {
	case s := <-p.slots:
		if p.closed.Load() {
			p.slots <- s
			return nil, ErrClosed
		}
		p.opts.stats.SetGauge(stats.MetricPoolInUse, p.inUse.Add(1))
		return s, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s *slot) {
	p.opts.stats.SetGauge(stats.MetricPoolInUse, p.inUse.Add(-1))
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		_ = s.close()
	}
	p.slots <- s
}

// Close shuts down every engine process. Requests in flight finish first
// and their processes are shut down on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.done)

	var errs []error
	for range p.opts.size {
		select {
		case s := <-p.slots:
			errs = append(errs, s.close())
			p.slots <- s
		default:
		}
	}
	p.opts.logger.Debug("engine pool closed")
	return errors.Join(errs...)
}

func (s *slot) kill() {
	if s.session != nil {
		_ = s.session.Kill()
		s.session = nil
	}
}

func (s *slot) close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}
