package hindsight

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/discochess/hindsight/internal/blunder"
	"github.com/discochess/hindsight/internal/timeuse"
	"github.com/discochess/hindsight/internal/trend"
)

// Record is a raw game as supplied by a source.
type Record struct {
	// Source names where the record came from, e.g. an archive month or a
	// file path.
	Source string

	// Text is the PGN text of a single game.
	Text string
}

// GameResult is the analysis of one game.
type GameResult struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	White  string `json:"white" yaml:"white"`
	Black  string `json:"black" yaml:"black"`
	Result string `json:"result" yaml:"result"`

	// Date is the day the game was played; zero when the record has no
	// usable date.
	Date time.Time `json:"date" yaml:"date"`

	// Player is the analyzed side, or "" when both sides were analyzed.
	Player Side `json:"player,omitempty" yaml:"player,omitempty"`

	Moves         int `json:"moves" yaml:"moves"`
	MissingClocks int `json:"missing_clocks" yaml:"missing_clocks"`

	TimeUse    []TimeUseEntry `json:"time_use" yaml:"time_use"`
	Blunders   []BlunderEvent `json:"blunders" yaml:"blunders"`
	TimePlayed time.Duration  `json:"time_played" yaml:"time_played"`
	Insights   Insights       `json:"insights" yaml:"insights"`

	// Unavailable counts positions the oracle could not score.
	Unavailable int `json:"unavailable" yaml:"unavailable"`

	// Partial is set when evaluations were skipped because the run's
	// breaker had tripped.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// HasDate reports whether the game's date is known.
func (r *GameResult) HasDate() bool { return !r.Date.IsZero() }

// Tally counts the game's flagged moves by tier.
func (r *GameResult) Tally() map[Tier]int {
	m := make(map[Tier]int, len(blunder.Tiers))
	for _, e := range r.Blunders {
		m[e.Tier]++
	}
	return m
}

// Exclusion records a game that produced no result.
type Exclusion struct {
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Index  int    `json:"index" yaml:"index"`
	GameID string `json:"game_id,omitempty" yaml:"game_id,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Drop is a flagged move together with the game it was played in.
type Drop struct {
	GameID string       `json:"game_id" yaml:"game_id"`
	Date   time.Time    `json:"date" yaml:"date"`
	White  string       `json:"white" yaml:"white"`
	Black  string       `json:"black" yaml:"black"`
	Event  BlunderEvent `json:"event" yaml:"event"`
}

// RunResult is the outcome of analyzing a set of records.
type RunResult struct {
	RunID    string    `json:"run_id" yaml:"run_id"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`

	Games    []GameResult `json:"games" yaml:"games"`
	Excluded []Exclusion  `json:"excluded,omitempty" yaml:"excluded,omitempty"`

	Granularity Granularity   `json:"granularity" yaml:"granularity"`
	Aggregates  []Bucket      `json:"aggregates" yaml:"aggregates"`
	Trend       TrendSummary  `json:"trend" yaml:"trend"`
	Insights    Insights      `json:"insights" yaml:"insights"`
	TimePlayed  time.Duration `json:"time_played" yaml:"time_played"`

	WorstDrops       []Drop          `json:"worst_drops" yaml:"worst_drops"`
	RepeatedMistakes []blunder.Count `json:"repeated_mistakes" yaml:"repeated_mistakes"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TopMoves is how many entries the run-wide drop and mistake lists hold.
const TopMoves = 5

// WorstDrops returns the n largest drops across results. Ties go to the
// earlier game, then the earlier ply.
func WorstDrops(results []GameResult, n int) []Drop {
	var drops []Drop
	for _, r := range results {
		for _, e := range r.Blunders {
			drops = append(drops, Drop{GameID: r.ID, Date: r.Date, White: r.White, Black: r.Black, Event: e})
		}
	}
	slices.SortFunc(drops, func(a, b Drop) int {
		if c := cmp.Compare(b.Event.Drop, a.Event.Drop); c != 0 {
			return c
		}
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.GameID, b.GameID); c != 0 {
			return c
		}
		return cmp.Compare(a.Event.Ply, b.Event.Ply)
	})
	if len(drops) > n {
		drops = drops[:n]
	}
	return drops
}

// RepeatedMistakes counts flagged moves by SAN across results and returns
// the n most frequent.
func RepeatedMistakes(results []GameResult, n int) []blunder.Count {
	var events []BlunderEvent
	for _, r := range results {
		events = append(events, r.Blunders...)
	}
	return blunder.RepeatedMistakes(events, n)
}

// Samples converts dated results into aggregation input. Results without
// a date are left out.
func Samples(results []GameResult) []trend.Sample {
	samples := make([]trend.Sample, 0, len(results))
	for _, r := range results {
		if !r.HasDate() {
			continue
		}
		samples = append(samples, trend.Sample{Date: r.Date, Events: r.Blunders, TimePlayed: r.TimePlayed})
	}
	return samples
}

// Aggregate buckets dated results and summarizes the trend. It is a pure
// function of its input.
func Aggregate(results []GameResult, g Granularity) ([]Bucket, TrendSummary) {
	aggs := trend.Build(Samples(results), g)
	return aggs, trend.Summarize(aggs)
}

// Summarize builds the run-wide view of results: aggregates, trend,
// insights, time played, worst drops, and repeated mistakes. Undated
// results count toward everything except aggregation.
func Summarize(results []GameResult, g Granularity) *RunResult {
	run := &RunResult{Games: results, Granularity: g}
	for _, r := range results {
		run.TimePlayed += r.TimePlayed
	}
	run.Aggregates, run.Trend = Aggregate(results, g)
	run.Insights = mergeInsights(results)
	run.WorstDrops = WorstDrops(results, TopMoves)
	run.RepeatedMistakes = RepeatedMistakes(results, TopMoves)
	if n := undated(results); n > 0 {
		run.Warnings = append(run.Warnings, fmt.Sprintf("%d games without a date were left out of aggregation", n))
	}
	return run
}

func undated(results []GameResult) int {
	n := 0
	for _, r := range results {
		if !r.HasDate() {
			n++
		}
	}
	return n
}

// mergeInsights sums the per-game insights.
func mergeInsights(results []GameResult) timeuse.Insights {
	var in timeuse.Insights
	for _, r := range results {
		in.Add(r.Insights)
	}
	return in
}
