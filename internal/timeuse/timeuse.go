// Package timeuse ranks the moves a player spent the most time on.
package timeuse

import (
	"cmp"
	"slices"
	"time"

	"github.com/discochess/hindsight/internal/pgn"
	"github.com/discochess/hindsight/internal/position"
)

// LowComplexityMoves is the legal-move count at or below which a position
// counts as simple for hesitation insights.
const LowComplexityMoves = 10

// Entry is a ranked move packaged with the context the mover faced.
type Entry struct {
	Ply        int           `json:"ply" yaml:"ply"`
	MoveNumber int           `json:"move_number" yaml:"move_number"`
	Side       position.Side `json:"side" yaml:"side"`
	SAN        string        `json:"san" yaml:"san"`
	TimeSpent  time.Duration `json:"time_spent" yaml:"time_spent"`

	// FEN is the position before the move.
	FEN        string `json:"fen" yaml:"fen"`
	InCheck    bool   `json:"in_check" yaml:"in_check"`
	LegalMoves int    `json:"legal_moves" yaml:"legal_moves"`
	Material   int    `json:"material" yaml:"material"`
	Endgame    bool   `json:"endgame" yaml:"endgame"`
}

// Filter selects which moves take part in an analysis. A nil Filter
// selects every move.
type Filter func(pgn.Move) bool

// BySide returns a Filter selecting one side's moves.
func BySide(s position.Side) Filter {
	return func(m pgn.Move) bool { return m.Side == s }
}

func (f Filter) match(m pgn.Move) bool {
	return f == nil || f(m)
}

// Rank returns up to n moves with the largest known time spent, longest
// first. Ties go to the earlier ply. Moves without a time are never ranked.
func Rank(moves []pgn.Move, n int, filter Filter) []Entry {
	if n <= 0 {
		return nil
	}
	var timed []pgn.Move
	for _, m := range moves {
		if m.TimeSpent != nil && filter.match(m) {
			timed = append(timed, m)
		}
	}
	slices.SortFunc(timed, func(a, b pgn.Move) int {
		if c := cmp.Compare(*b.TimeSpent, *a.TimeSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.Ply, b.Ply)
	})

	if len(timed) > n {
		timed = timed[:n]
	}
	entries := make([]Entry, len(timed))
	for i, m := range timed {
		entries[i] = NewEntry(m)
	}
	return entries
}

// NewEntry packages a timed move. It must only be called with a move
// whose TimeSpent is set.
func NewEntry(m pgn.Move) Entry {
	f := m.Before.Features
	return Entry{
		Ply:        m.Ply,
		MoveNumber: m.MoveNumber,
		Side:       m.Side,
		SAN:        m.SAN,
		TimeSpent:  *m.TimeSpent,
		FEN:        m.Before.FEN,
		InCheck:    f.InCheck,
		LegalMoves: f.LegalMoves,
		Material:   f.Material,
		Endgame:    f.Endgame,
	}
}

// Total sums the known time spent on the selected moves. Moves without a
// time contribute nothing; gaps are not estimated.
func Total(moves []pgn.Move, filter Filter) time.Duration {
	var total time.Duration
	for _, m := range moves {
		if m.TimeSpent != nil && filter.match(m) {
			total += *m.TimeSpent
		}
	}
	return total
}

// Insights counts where time was spent across the moves with known time.
type Insights struct {
	Timed         int `json:"timed" yaml:"timed"`
	LowComplexity int `json:"low_complexity" yaml:"low_complexity"`
	InCheck       int `json:"in_check" yaml:"in_check"`
	Endgame       int `json:"endgame" yaml:"endgame"`
}

// Observe adds the selected moves of a game.
func (in *Insights) Observe(moves []pgn.Move, filter Filter) {
	for _, m := range moves {
		if m.TimeSpent == nil || !filter.match(m) {
			continue
		}
		in.Timed++
		f := m.Before.Features
		if f.LegalMoves <= LowComplexityMoves {
			in.LowComplexity++
		}
		if f.InCheck {
			in.InCheck++
		}
		if f.Endgame {
			in.Endgame++
		}
	}
}

// Add merges other into in.
func (in *Insights) Add(other Insights) {
	in.Timed += other.Timed
	in.LowComplexity += other.LowComplexity
	in.InCheck += other.InCheck
	in.Endgame += other.Endgame
}

// Percent returns count as a percentage of the timed moves.
func (in Insights) Percent(count int) float64 {
	if in.Timed == 0 {
		return 0
	}
	return 100 * float64(count) / float64(in.Timed)
}
