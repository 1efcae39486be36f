// Package uci speaks the UCI protocol to a single engine process.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrProcessExited indicates the engine closed its output.
	ErrProcessExited = errors.New("uci: engine exited")

	// ErrNoScore indicates a search ended without a parseable score.
	ErrNoScore = errors.New("uci: search finished without a score")

	// ErrNoLimit indicates a search was requested without depth or time.
	ErrNoLimit = errors.New("uci: search needs a depth or time limit")
)

// Limit bounds a search.
type Limit struct {
	Depth    int
	MoveTime time.Duration
}

func (l Limit) command() (string, error) {
	if l.Depth <= 0 && l.MoveTime <= 0 {
		return "", ErrNoLimit
	}
	cmd := "go"
	if l.Depth > 0 {
		cmd += " depth " + strconv.Itoa(l.Depth)
	}
	if l.MoveTime > 0 {
		cmd += " movetime " + strconv.FormatInt(l.MoveTime.Milliseconds(), 10)
	}
	return cmd, nil
}

// Result is the outcome of one search. Scores are from the side to move.
type Result struct {
	Depth      int
	Centipawns *int
	Mate       *int
	BestMove   string
	PV         []string
	Nodes      int64
}

// Options configures a session.
type Options struct {
	Threads int
	HashMB  int
	Logger  *zap.Logger
}

// Session is a persistent conversation with one engine process.
// A Session is not safe for concurrent use; callers must serialize
// searches.
type Session struct {
	proc   Process
	w      *bufio.Writer
	lines  chan string
	quit   chan struct{}
	once   sync.Once
	logger *zap.Logger

	readErr error
	name    string
}

// Start performs the UCI handshake on proc. The process is killed if
// the handshake fails.
func Start(ctx context.Context, proc Process, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		proc:   proc,
		w:      bufio.NewWriter(proc.Stdin()),
		lines:  make(chan string, 64),
		quit:   make(chan struct{}),
		logger: logger,
	}
	go s.readLoop()

	if err := s.handshake(ctx, opts); err != nil {
		_ = s.Kill()
		return nil, fmt.Errorf("uci handshake: %w", err)
	}
	return s, nil
}

func (s *Session) handshake(ctx context.Context, opts Options) error {
	if err := s.send("uci"); err != nil {
		return err
	}
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			s.name = name
		}
		if line == "uciok" {
			break
		}
	}

	if opts.Threads > 0 {
		if err := s.send(fmt.Sprintf("setoption name Threads value %d", opts.Threads)); err != nil {
			return err
		}
	}
	if opts.HashMB > 0 {
		if err := s.send(fmt.Sprintf("setoption name Hash value %d", opts.HashMB)); err != nil {
			return err
		}
	}
	return s.sync(ctx)
}

// sync waits until the engine has processed every command sent so far.
func (s *Session) sync(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return err
	}
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if line == "readyok" {
			return nil
		}
	}
}

// Name returns the engine's self-reported name.
func (s *Session) Name() string { return s.name }

// Search evaluates fen within limit. On error the session must be
// discarded: the engine may still be searching.
func (s *Session) Search(ctx context.Context, fen string, limit Limit) (Result, error) {
	goCmd, err := limit.command()
	if err != nil {
		return Result{}, err
	}
	if err := s.send("position fen " + fen); err != nil {
		return Result{}, err
	}
	if err := s.send(goCmd); err != nil {
		return Result{}, err
	}

	var best info
	have := false
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return Result{}, err
		}

		if strings.HasPrefix(line, "info ") {
			in, ok := parseInfo(line)
			// Exact scores win over bounds from the same search.
			if ok && !(in.bound && have && !best.bound) {
				best, have = in, true
			}
			continue
		}

		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == "bestmove" {
			if !have {
				return Result{}, ErrNoScore
			}
			r := Result{
				Depth:      best.depth,
				Centipawns: best.centipawns,
				Mate:       best.mate,
				PV:         best.pv,
				Nodes:      best.nodes,
			}
			if len(fields) > 1 {
				r.BestMove = fields[1]
			}
			return r, nil
		}
	}
}

// Close asks the engine to quit and kills the process.
func (s *Session) Close() error { return s.shutdown(true) }

// Kill terminates the process without talking to it. Use it when the
// engine may be busy or unresponsive.
func (s *Session) Kill() error { return s.shutdown(false) }

func (s *Session) shutdown(graceful bool) error {
	var err error
	s.once.Do(func() {
		if graceful {
			_ = s.send("quit")
		}
		close(s.quit)
		err = s.proc.Kill()
	})
	return err
}

func (s *Session) send(cmd string) error {
	s.logger.Debug("engine <", zap.String("cmd", cmd))
	if _, err := s.w.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("%w: writing %q: %v", ErrProcessExited, cmd, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("%w: writing %q: %v", ErrProcessExited, cmd, err)
	}
	return nil
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			if s.readErr != nil {
				return "", fmt.Errorf("%w: %v", ErrProcessExited, s.readErr)
			}
			return "", ErrProcessExited
		}
		return line, nil
	}
}

func (s *Session) readLoop() {
	defer close(s.lines)
	sc := bufio.NewScanner(s.proc.Stdout())
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.quit:
			return
		}
	}
	s.readErr = sc.Err()
}
