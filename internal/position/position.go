// Package position derives descriptive features of chess positions.
package position

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/discochess/hindsight/internal/fen"
)

// Side identifies a player color.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// SideOf converts a rules-engine color.
func SideOf(c chess.Color) Side {
	if c == chess.Black {
		return Black
	}
	return White
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == White {
		return Black
	}
	return White
}

// Title returns "White" or "Black".
func (s Side) Title() string {
	if s == Black {
		return "Black"
	}
	return "White"
}

// Features are the descriptive features of a position.
type Features struct {
	// Material is the material balance in pawn units from White's perspective.
	Material int `json:"material"`

	// InCheck reports whether the side to move is in check.
	InCheck bool `json:"in_check"`

	// LegalMoves is the number of legal moves for the side to move.
	LegalMoves int `json:"legal_moves"`

	// Endgame is a heuristic flag; see EndgamePolicy.
	Endgame bool `json:"endgame"`
}

// Checkmate reports whether the side to move has been mated.
func (f Features) Checkmate() bool { return f.InCheck && f.LegalMoves == 0 }

// Stalemate reports whether the side to move has no moves and is not in check.
func (f Features) Stalemate() bool { return !f.InCheck && f.LegalMoves == 0 }

// Position is an immutable snapshot of a board.
type Position struct {
	// FEN is the full FEN of the position.
	FEN string `json:"fen"`

	// Board is the canonical piece placement.
	Board string `json:"-"`

	// Turn is the side to move.
	Turn Side `json:"turn"`

	Features Features `json:"features"`
}

// Equal reports whether two positions have the same board layout.
func (p Position) Equal(o Position) bool {
	return p.Board == o.Board
}

// EndgamePolicy decides when a position counts as an endgame.
//
// It is a material heuristic and does not attempt to recognize
// theoretical endgames: a position is flagged when the combined non-pawn,
// non-king material of both sides (knight and bishop 3, rook 5, queen 9)
// is at most MaxNonPawn and, unless AllowQueens is set, no queens remain.
type EndgamePolicy struct {
	MaxNonPawn  int
	AllowQueens bool
}

// DefaultEndgamePolicy allows at most one minor piece or rook per side and no queens.
func DefaultEndgamePolicy() EndgamePolicy {
	return EndgamePolicy{MaxNonPawn: 2 * fen.RookValue}
}

// IsEndgame applies the policy to a material count.
func (p EndgamePolicy) IsEndgame(m fen.Material) bool {
	if !p.AllowQueens && m.Queens() > 0 {
		return false
	}
	return m.NonPawn() <= p.MaxNonPawn
}

// Context computes Position values. It performs no I/O.
type Context struct {
	endgame EndgamePolicy
}

// New creates a Context using the given endgame policy.
func New(endgame EndgamePolicy) *Context {
	return &Context{endgame: endgame}
}

// Describe builds a Position from a rules-engine position.
// inCheck must report whether the side to move is in check; the caller
// usually knows it from the check tag of the move that led here.
func (c *Context) Describe(pos *chess.Position, inCheck bool) (Position, error) {
	fenStr := pos.String()
	placement, err := fen.Placement(fenStr)
	if err != nil {
		return Position{}, fmt.Errorf("describing %q: %w", fenStr, err)
	}
	material, err := fen.ParseMaterial(fenStr)
	if err != nil {
		return Position{}, fmt.Errorf("describing %q: %w", fenStr, err)
	}

	return Position{
		FEN:   fenStr,
		Board: placement,
		Turn:  SideOf(pos.Turn()),
		Features: Features{
			Material:   material.Balance(),
			InCheck:    inCheck,
			LegalMoves: len(pos.ValidMoves()),
			Endgame:    c.endgame.IsEndgame(material),
		},
	}, nil
}

// FromFEN builds a Position from a FEN string.
func (c *Context) FromFEN(fenStr string) (Position, error) {
	opt, err := chess.FEN(fenStr)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", fen.ErrInvalidFEN, err)
	}
	inCheck, err := fen.InCheck(fenStr)
	if err != nil {
		return Position{}, err
	}
	return c.Describe(chess.NewGame(opt).Position(), inCheck)
}
