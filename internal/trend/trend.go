// Package trend buckets per-game results by calendar period and
// summarizes how error rates move over time.
package trend

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/discochess/hindsight/internal/blunder"
)

// ErrInvalidGranularity indicates an unknown bucket size.
var ErrInvalidGranularity = errors.New("trend: granularity must be day or week")

// Granularity is the bucket size.
type Granularity string

const (
	Day  Granularity = "day"
	Week Granularity = "week"
)

// ParseGranularity parses "day" or "week", case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week:
		return g, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidGranularity, s)
	}
}

// Bucket returns the key and first day of the bucket holding t.
// Weeks are ISO weeks starting on Monday, keyed like "2025-W07".
func (g Granularity) Bucket(t time.Time) (string, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if g == Week {
		start := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
		year, week := day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), start
	}
	return day.Format(time.DateOnly), day
}

// Sample is what the aggregator needs from one game result.
type Sample struct {
	Date       time.Time
	Events     []blunder.Event
	TimePlayed time.Duration
}

// Aggregate summarizes the games in one bucket.
type Aggregate struct {
	Key          string        `json:"key" yaml:"key"`
	Start        time.Time     `json:"start" yaml:"start"`
	Games        int           `json:"games" yaml:"games"`
	Inaccuracies int           `json:"inaccuracies" yaml:"inaccuracies"`
	Mistakes     int           `json:"mistakes" yaml:"mistakes"`
	Blunders     int           `json:"blunders" yaml:"blunders"`
	TotalDrop    int           `json:"total_drop" yaml:"total_drop"`
	AvgDrop      float64       `json:"avg_drop" yaml:"avg_drop"`
	TimePlayed   time.Duration `json:"time_played" yaml:"time_played"`
}

// Flagged returns the number of flagged moves in the bucket.
func (a Aggregate) Flagged() int {
	return a.Inaccuracies + a.Mistakes + a.Blunders
}

// ErrorsPerGame returns mistakes and blunders per game.
func (a Aggregate) ErrorsPerGame() float64 {
	if a.Games == 0 {
		return 0
	}
	return float64(a.Mistakes+a.Blunders) / float64(a.Games)
}

// Build folds samples into aggregates ordered by bucket start. It holds
// no state, so the same samples always produce the same aggregates.
func Build(samples []Sample, g Granularity) []Aggregate {
	byKey := make(map[string]*Aggregate)
	for _, s := range samples {
		key, start := g.Bucket(s.Date)
		a, ok := byKey[key]
		if !ok {
			a = &Aggregate{Key: key, Start: start}
			byKey[key] = a
		}
		a.Games++
		a.TimePlayed += s.TimePlayed
		for _, e := range s.Events {
			switch e.Tier {
			case blunder.Inaccuracy:
				a.Inaccuracies++
			case blunder.Mistake:
				a.Mistakes++
			case blunder.Blunder:
				a.Blunders++
			default:
				continue
			}
			a.TotalDrop += e.Drop
		}
	}

	out := make([]Aggregate, 0, len(byKey))
	for _, a := range byKey {
		if n := a.Flagged(); n > 0 {
			a.AvgDrop = float64(a.TotalDrop) / float64(n)
		}
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b Aggregate) int {
		return a.Start.Compare(b.Start)
	})
	return out
}
