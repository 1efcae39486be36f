// Package ucitest provides an in-memory UCI engine for tests.
package ucitest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/discochess/hindsight/internal/uci"
)

// Behavior selects how the fake engine answers a search.
type Behavior int

const (
	// Answer prints an info line with the configured score and a best move.
	Answer Behavior = iota
	// Crash closes the engine's output without answering.
	Crash
	// Hang never answers; the engine stays busy until killed.
	Hang
	// NoScore prints a best move without any info line.
	NoScore
)

// Engine is a scriptable fake engine. The zero value answers every
// search with "cp 0".
type Engine struct {
	// Score returns the UCI score for a FEN, e.g. "cp 35" or "mate -2".
	Score func(fen string) string

	// Behave picks the behavior for a search on the nth launched process
	// (starting at 1).
	Behave func(process int, fen string) Behavior

	// Gate, when set, makes each search wait for a receive before answering.
	Gate chan struct{}

	// Searching, when set, receives the FEN of every search as it starts.
	Searching chan string

	// LaunchErr, when set, is returned by Launch instead of starting a process.
	LaunchErr error

	mu       sync.Mutex
	launches int
	killed   int
	log      []string
	wg       sync.WaitGroup
}

// Compile-time check that Engine implements uci.Launcher.
var _ uci.Launcher = (*Engine)(nil)

// Launch starts a fake process.
func (e *Engine) Launch(ctx context.Context) (uci.Process, error) {
	e.mu.Lock()
	if e.LaunchErr != nil {
		e.mu.Unlock()
		return nil, e.LaunchErr
	}
	e.launches++
	id := e.launches
	e.mu.Unlock()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &process{
		engine: e,
		inR:    inR,
		inW:    inW,
		outR:   outR,
		outW:   outW,
		killed: make(chan struct{}),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		p.run(id)
	}()
	return p, nil
}

// Launches returns the number of processes started.
func (e *Engine) Launches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

// Kills returns the number of processes killed.
func (e *Engine) Kills() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killed
}

// Log returns the protocol events seen so far, each prefixed with the
// process number: "p1 position fen ...", "p1 go depth 12", "p1 bestmove".
func (e *Engine) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// Wait blocks until every fake process has exited.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) record(id int, event string) {
	e.mu.Lock()
	e.log = append(e.log, fmt.Sprintf("p%d %s", id, event))
	e.mu.Unlock()
}

type process struct {
	engine *Engine
	inR    *io.PipeReader
	inW    *io.PipeWriter
	outR   *io.PipeReader
	outW   *io.PipeWriter
	once   sync.Once
	killed chan struct{}
}

func (p *process) Stdin() io.Writer  { return p.inW }
func (p *process) Stdout() io.Reader { return p.outR }

func (p *process) Kill() error {
	p.once.Do(func() {
		p.engine.mu.Lock()
		p.engine.killed++
		p.engine.mu.Unlock()
		close(p.killed)
		p.inR.CloseWithError(errors.New("killed"))
		p.outR.CloseWithError(errors.New("killed"))
	})
	return nil
}

func (p *process) run(id int) {
	defer p.outW.Close()
	// Writes to a dead engine must fail rather than block.
	defer p.inR.CloseWithError(io.ErrClosedPipe)

	e := p.engine
	fen := ""
	sc := bufio.NewScanner(p.inR)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "uci":
			p.println("id name Fakefish")
			p.println("uciok")
		case line == "isready":
			p.println("readyok")
		case line == "quit":
			return
		case strings.HasPrefix(line, "position fen "):
			fen = strings.TrimPrefix(line, "position fen ")
			e.record(id, line)
		case strings.HasPrefix(line, "go"):
			e.record(id, line)
			if !p.search(id, fen) {
				return
			}
		}
	}
}

// search answers one search and reports whether the process lives on.
func (p *process) search(id int, fen string) bool {
	e := p.engine
	if e.Searching != nil {
		select {
		case e.Searching <- fen:
		case <-p.killed:
			return false
		}
	}

	behavior := Answer
	if e.Behave != nil {
		behavior = e.Behave(id, fen)
	}
	switch behavior {
	case Crash:
		return false
	case Hang:
		<-p.killed
		return false
	case NoScore:
		e.record(id, "bestmove")
		return p.println("bestmove e2e4")
	}

	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-p.killed:
			return false
		}
	}
	score := "cp 0"
	if e.Score != nil {
		score = e.Score(fen)
	}
	p.println("info depth 1 score cp 1 nodes 20 pv e2e4")
	p.println("info depth 12 seldepth 18 multipv 1 score " + score + " nodes 12345 pv e2e4 e7e5")
	e.record(id, "bestmove")
	return p.println("bestmove e2e4 ponder e7e5")
}

func (p *process) println(s string) bool {
	_, err := io.WriteString(p.outW, s+"\n")
	return err == nil
}
