// Package blunder flags moves after which the mover's evaluation dropped.
package blunder

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/pgn"
	"github.com/discochess/hindsight/internal/position"
)

var (
	// ErrInvalidThresholds indicates tier cutoffs that are not positive and
	// strictly increasing.
	ErrInvalidThresholds = errors.New("blunder: thresholds must be positive and strictly increasing")

	// ErrInvalidMateCap indicates a non-positive mate cap.
	ErrInvalidMateCap = errors.New("blunder: mate cap must be positive")
)

// Tier is the severity of an evaluation drop.
type Tier int

const (
	None Tier = iota
	Inaccuracy
	Mistake
	Blunder
)

// Tiers lists the flagged tiers from least to most severe.
var Tiers = []Tier{Inaccuracy, Mistake, Blunder}

func (t Tier) String() string {
	switch t {
	case Inaccuracy:
		return "inaccuracy"
	case Mistake:
		return "mistake"
	case Blunder:
		return "blunder"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	for _, tier := range append([]Tier{None}, Tiers...) {
		if tier.String() == string(b) {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("blunder: unknown tier %q", b)
}

// Thresholds are the minimum centipawn drops for each tier.
type Thresholds struct {
	Inaccuracy int `json:"inaccuracy" yaml:"inaccuracy"`
	Mistake    int `json:"mistake" yaml:"mistake"`
	Blunder    int `json:"blunder" yaml:"blunder"`
}

// DefaultThresholds returns cutoffs of half a pawn, a pawn and a half,
// and three pawns.
func DefaultThresholds() Thresholds {
	return Thresholds{Inaccuracy: 50, Mistake: 150, Blunder: 300}
}

// Validate checks that the cutoffs are positive and strictly increasing.
func (t Thresholds) Validate() error {
	if t.Inaccuracy <= 0 || t.Mistake <= t.Inaccuracy || t.Blunder <= t.Mistake {
		return fmt.Errorf("%w: got %d/%d/%d", ErrInvalidThresholds, t.Inaccuracy, t.Mistake, t.Blunder)
	}
	return nil
}

// Classify returns the most severe tier whose cutoff drop reaches.
func (t Thresholds) Classify(drop int) Tier {
	switch {
	case drop >= t.Blunder:
		return Blunder
	case drop >= t.Mistake:
		return Mistake
	case drop >= t.Inaccuracy:
		return Inaccuracy
	default:
		return None
	}
}

// Input pairs a move with the evaluations of the positions around it.
// Before is from the mover's perspective and After from the opponent's,
// as an engine reports them. Either may be nil when unavailable.
type Input struct {
	Move   pgn.Move
	Before *oracle.Evaluation
	After  *oracle.Evaluation
}

// Event is a flagged move.
type Event struct {
	Ply         int           `json:"ply" yaml:"ply"`
	MoveNumber  int           `json:"move_number" yaml:"move_number"`
	Side        position.Side `json:"side" yaml:"side"`
	SAN         string        `json:"san" yaml:"san"`
	Description string        `json:"description" yaml:"description"`

	// FEN is the position the move was played from.
	FEN string `json:"fen" yaml:"fen"`

	// Before and After are the raw evaluations of the positions before
	// and after the move.
	Before oracle.Evaluation `json:"before" yaml:"before"`
	After  oracle.Evaluation `json:"after" yaml:"after"`

	// MoverBefore and MoverAfter are the capped scores in centipawns from
	// the mover's perspective.
	MoverBefore int `json:"mover_before" yaml:"mover_before"`
	MoverAfter  int `json:"mover_after" yaml:"mover_after"`

	// Drop is MoverBefore - MoverAfter; always positive for an event.
	Drop int  `json:"drop" yaml:"drop"`
	Tier Tier `json:"tier" yaml:"tier"`
}

// Detector classifies evaluation drops.
type Detector struct {
	thresholds Thresholds
	mateCap    int
}

// New creates a Detector. Mate scores and centipawns are capped to
// ±mateCap before drops are computed.
func New(thresholds Thresholds, mateCap int) (*Detector, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if mateCap <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMateCap, mateCap)
	}
	return &Detector{thresholds: thresholds, mateCap: mateCap}, nil
}

// Thresholds returns the detector's cutoffs.
func (d *Detector) Thresholds() Thresholds { return d.thresholds }

// Drop returns the mover's capped scores and the drop between them.
// after is negated because it is scored for the opponent, who moves next.
func (d *Detector) Drop(before, after oracle.Evaluation) (moverBefore, moverAfter, drop int) {
	moverBefore = before.Capped(d.mateCap)
	moverAfter = -after.Capped(d.mateCap)
	return moverBefore, moverAfter, moverBefore - moverAfter
}

// Detect returns the flagged moves in input order. Inputs missing either
// evaluation are skipped.
func (d *Detector) Detect(inputs []Input) []Event {
	var events []Event
	for _, in := range inputs {
		if in.Before == nil || in.After == nil {
			continue
		}
		mb, ma, drop := d.Drop(*in.Before, *in.After)
		tier := d.thresholds.Classify(drop)
		if tier == None {
			continue
		}
		events = append(events, Event{
			Ply:         in.Move.Ply,
			MoveNumber:  in.Move.MoveNumber,
			Side:        in.Move.Side,
			SAN:         in.Move.SAN,
			Description: Describe(in.Move.SAN),
			FEN:         in.Move.Before.FEN,
			Before:      *in.Before,
			After:       *in.After,
			MoverBefore: mb,
			MoverAfter:  ma,
			Drop:        drop,
			Tier:        tier,
		})
	}
	return events
}

// Count is the number of times a move was flagged.
type Count struct {
	SAN   string `json:"san" yaml:"san"`
	Count int    `json:"count" yaml:"count"`
}

// RepeatedMistakes counts flagged moves by SAN and returns the n most
// frequent. Ties are ordered by SAN.
func RepeatedMistakes(events []Event, n int) []Count {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.SAN]++
	}
	out := make([]Count, 0, len(counts))
	for san, c := range counts {
		out = append(out, Count{SAN: san, Count: c})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.SAN, b.SAN)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
