// Package pgn parses annotated game records into timed move sequences.
package pgn

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/notnil/chess"

	"github.com/discochess/hindsight/internal/fen"
	"github.com/discochess/hindsight/internal/position"
)

// ErrMalformedGame indicates that a record could not be read or replayed.
var ErrMalformedGame = errors.New("pgn: malformed game")

// Move is one ply of a parsed game. Moves are never modified after parsing.
type Move struct {
	// Ply is the 1-based half-move index.
	Ply int `json:"ply"`

	// MoveNumber is the fullmove number the move was played on.
	MoveNumber int `json:"move_number"`

	Side position.Side `json:"side"`
	SAN  string        `json:"san"`
	UCI  string        `json:"uci"`

	Before position.Position `json:"before"`
	After  position.Position `json:"after"`

	// Clock is the mover's remaining time after the move, if annotated.
	Clock *time.Duration `json:"clock,omitempty"`

	// TimeSpent is nil on a side's first move and whenever either clock
	// sample is missing.
	TimeSpent *time.Duration `json:"time_spent,omitempty"`
}

// Game is a parsed game record.
type Game struct {
	Tags   []Tag
	Start  position.Position
	Moves  []Move
	Result string

	// MissingClocks counts moves without a usable clock annotation.
	MissingClocks int

	text string
}

// Tag returns the value of the named header, or "".
func (g *Game) Tag(name string) string {
	for _, t := range g.Tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// White returns the White player's name.
func (g *Game) White() string { return g.Tag("White") }

// Black returns the Black player's name.
func (g *Game) Black() string { return g.Tag("Black") }

// Date returns the date the game was played. UTCDate is preferred over Date.
func (g *Game) Date() (time.Time, bool) {
	for _, name := range []string{"UTCDate", "Date"} {
		if d, err := time.Parse("2006.01.02", g.Tag(name)); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// ID returns a stable identifier for the game: its Link header when
// present, otherwise a hash of the record text.
func (g *Game) ID() string {
	if link := g.Tag("Link"); link != "" {
		return link
	}
	h := fnv.New64a()
	h.Write([]byte(g.text))
	return fmt.Sprintf("pgn-%016x", h.Sum64())
}

// SideOf returns the side played by the named player.
// Names are compared case-insensitively.
func (g *Game) SideOf(player string) (position.Side, bool) {
	switch {
	case player == "":
		return "", false
	case strings.EqualFold(g.White(), player):
		return position.White, true
	case strings.EqualFold(g.Black(), player):
		return position.Black, true
	}
	return "", false
}

// Parser replays game records against the rules engine.
// A Parser holds no per-game state and is safe for concurrent use.
type Parser struct {
	ctx *position.Context
}

// NewParser creates a Parser that describes positions with ctx.
func NewParser(ctx *position.Context) *Parser {
	return &Parser{ctx: ctx}
}

// Parse parses a single game. Any lexical error or illegal move fails
// the whole game with ErrMalformedGame. Missing or malformed clock
// annotations only clear the affected move's timing.
func (p *Parser) Parse(text string) (*Game, error) {
	rec, err := lex(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGame, err)
	}
	g := &Game{Tags: rec.tags, Result: rec.result, text: text}

	var opts []func(*chess.Game)
	if startFEN := g.Tag("FEN"); startFEN != "" {
		opt, err := chess.FEN(startFEN)
		if err != nil {
			return nil, fmt.Errorf("%w: start position: %v", ErrMalformedGame, err)
		}
		opts = append(opts, opt)
	}
	cg := chess.NewGame(opts...)

	inCheck, err := fen.InCheck(cg.Position().String())
	if err != nil {
		return nil, fmt.Errorf("%w: start position: %v", ErrMalformedGame, err)
	}
	before, err := p.ctx.Describe(cg.Position(), inCheck)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGame, err)
	}
	g.Start = before

	clocks := newClockTracker()
	g.Moves = make([]Move, 0, len(rec.moves))
	for i, tok := range rec.moves {
		ply := i + 1
		pos := cg.Position()
		m, err := decodeSAN(pos, tok.san)
		if err != nil {
			return nil, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, ply, err)
		}
		san := chess.AlgebraicNotation{}.Encode(pos, m)
		if err := cg.Move(m); err != nil {
			return nil, fmt.Errorf("%w: ply %d %q: %v", ErrMalformedGame, ply, tok.san, err)
		}
		after, err := p.ctx.Describe(cg.Position(), m.HasTag(chess.Check))
		if err != nil {
			return nil, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, ply, err)
		}
		moveNumber, err := fen.FullMoveNumber(before.FEN)
		if err != nil {
			return nil, fmt.Errorf("%w: ply %d: %v", ErrMalformedGame, ply, err)
		}

		var clock *time.Duration
		if d, ok := clockOf(tok.comments); ok {
			clock = &d
		} else {
			g.MissingClocks++
		}

		g.Moves = append(g.Moves, Move{
			Ply:        ply,
			MoveNumber: moveNumber,
			Side:       before.Turn,
			SAN:        san,
			UCI:        m.String(),
			Before:     before,
			After:      after,
			Clock:      clock,
			TimeSpent:  clocks.observe(before.Turn, clock),
		})
		before = after
	}

	return g, nil
}

// decodeSAN finds the legal move written as san. Check and annotation
// suffixes are ignored so that records which omit them still replay.
func decodeSAN(pos *chess.Position, san string) (*chess.Move, error) {
	want := canonicalSAN(san)
	for _, m := range pos.ValidMoves() {
		if canonicalSAN(chess.AlgebraicNotation{}.Encode(pos, m)) == want {
			return m, nil
		}
	}
	return nil, fmt.Errorf("illegal move %q in %s", san, pos.String())
}

func canonicalSAN(s string) string {
	s = strings.TrimRight(s, "+#!?")
	switch s {
	case "0-0":
		return "O-O"
	case "0-0-0":
		return "O-O-O"
	}
	return s
}
