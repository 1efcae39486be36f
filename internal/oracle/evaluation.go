package oracle

import (
	"fmt"
	"strconv"
	"time"
)

// Budget bounds one engine search. At least one field must be set.
type Budget struct {
	Depth    int           `json:"depth,omitempty" yaml:"depth,omitempty"`
	MoveTime time.Duration `json:"move_time,omitempty" yaml:"move_time,omitempty"`
}

// Valid reports whether the budget limits the search.
func (b Budget) Valid() bool {
	return b.Depth > 0 || b.MoveTime > 0
}

func (b Budget) String() string {
	switch {
	case b.Depth > 0 && b.MoveTime > 0:
		return fmt.Sprintf("depth %d, %s", b.Depth, b.MoveTime)
	case b.Depth > 0:
		return "depth " + strconv.Itoa(b.Depth)
	default:
		return b.MoveTime.String()
	}
}

// Evaluation is an engine's assessment of a position, from the
// perspective of the side to move.
type Evaluation struct {
	// Centipawns is the score in hundredths of a pawn.
	// Nil if the engine found a forced mate.
	Centipawns *int `json:"centipawns,omitempty" yaml:"centipawns,omitempty"`

	// Mate is the number of moves until checkmate. Positive values mean
	// the side to move delivers mate; zero or negative values mean it is
	// mated. Nil if there is no forced mate.
	Mate *int `json:"mate,omitempty" yaml:"mate,omitempty"`

	// Depth is the depth the engine reached.
	Depth int `json:"depth" yaml:"depth"`

	// Budget is the budget the search ran under.
	Budget Budget `json:"budget" yaml:"budget"`

	// BestMove is the engine's preferred move in UCI notation.
	BestMove string `json:"best_move,omitempty" yaml:"best_move,omitempty"`
}

// CP returns a centipawn evaluation.
func CP(cp int, b Budget) Evaluation {
	return Evaluation{Centipawns: &cp, Budget: b}
}

// MateIn returns a mate evaluation. n <= 0 means the side to move is mated.
func MateIn(n int, b Budget) Evaluation {
	return Evaluation{Mate: &n, Budget: b}
}

// IsMate reports whether the evaluation is a forced mate.
func (e Evaluation) IsMate() bool { return e.Mate != nil }

// Capped returns the evaluation as centipawns bounded to [-limit, limit].
// Mate scores map to the bound with their sign, so two mates for the same
// side always compare equal.
func (e Evaluation) Capped(limit int) int {
	if e.Mate != nil {
		if *e.Mate > 0 {
			return limit
		}
		return -limit
	}
	if e.Centipawns == nil {
		return 0
	}
	return max(-limit, min(limit, *e.Centipawns))
}

// String returns a human-readable score.
// Examples: "+1.25", "-0.50", "#3", "#-5"
func (e Evaluation) String() string {
	if e.Mate != nil {
		return "#" + strconv.Itoa(*e.Mate)
	}
	if e.Centipawns == nil {
		return "?"
	}
	return FormatPawns(*e.Centipawns)
}

// FormatPawns renders centipawns as signed pawns with two decimals.
func FormatPawns(cp int) string {
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}
