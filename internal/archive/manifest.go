package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// Manifest summarizes the stored archives of one player.
type Manifest struct {
	Username  string                   `json:"username"`
	UpdatedAt time.Time                `json:"updated_at"`
	Months    map[string]*MonthSummary `json:"months"`
}

// MonthSummary describes the games of one monthly archive.
type MonthSummary struct {
	Month        string         `json:"month"`
	Games        int            `json:"games"`
	FetchedAt    time.Time      `json:"fetched_at"`
	Results      map[string]int `json:"results"`
	TimeControls map[string]int `json:"time_controls"`
	Opponents    map[string]int `json:"opponents"`
}

// NewMonthSummary returns an empty summary for m.
func NewMonthSummary(m Month) *MonthSummary {
	return &MonthSummary{
		Month:        m.String(),
		Results:      make(map[string]int),
		TimeControls: make(map[string]int),
		Opponents:    make(map[string]int),
	}
}

// Record counts one game. Empty values are counted as "unknown".
func (s *MonthSummary) Record(result, timeControl, opponent string) {
	s.Games++
	s.Results[orUnknown(result)]++
	s.TimeControls[orUnknown(timeControl)]++
	s.Opponents[orUnknown(opponent)]++
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Set replaces the summary for its month.
func (m *Manifest) Set(s *MonthSummary) {
	if m.Months == nil {
		m.Months = make(map[string]*MonthSummary)
	}
	m.Months[s.Month] = s
}

// TotalGames returns the number of games across all months.
func (m *Manifest) TotalGames() int {
	n := 0
	for _, s := range m.Months {
		n += s.Games
	}
	return n
}

// Sorted returns the month summaries in chronological order.
func (m *Manifest) Sorted() []*MonthSummary {
	keys := slices.Sorted(maps.Keys(m.Months))
	out := make([]*MonthSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.Months[k])
	}
	return out
}

// Manifest loads the stored manifest. A missing manifest yields an empty one.
func (a *Archive) Manifest(ctx context.Context) (*Manifest, error) {
	data, err := a.store.Read(ctx, manifestKey)
	if errors.Is(err, ErrNotFound) {
		return &Manifest{Months: make(map[string]*MonthSummary)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Months == nil {
		m.Months = make(map[string]*MonthSummary)
	}
	return &m, nil
}

// SaveManifest stores m, stamping its update time.
func (a *Archive) SaveManifest(ctx context.Context, m *Manifest) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := a.store.Write(ctx, manifestKey, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
