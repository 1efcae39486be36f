// Package archive persists raw monthly game archives and the manifest
// describing them.
package archive

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist in the store.
	ErrNotFound = errors.New("archive: object not found")

	// ErrInvalidMonth is returned for month names not in YYYY-MM form.
	ErrInvalidMonth = errors.New("archive: invalid month")
)

// Store is a key/value backend for archive objects. Keys are slash
// separated; backends add their codec's extension and any prefix.
type Store interface {
	// Read returns the decompressed object stored under key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write compresses data and stores it under key, replacing any
	// previous object.
	Write(ctx context.Context, key string, data []byte) error

	// List returns the keys that start with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

const (
	monthsPrefix = "archives/"
	monthsSuffix = ".pgn"
	manifestKey  = "manifest.json"
)

// Month identifies one monthly archive.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) key() string { return monthsPrefix + m.String() + monthsSuffix }

// Archive stores one PGN document per month.
type Archive struct {
	store Store
}

// New wraps s.
func New(s Store) *Archive {
	return &Archive{store: s}
}

// Put stores the PGN text for m.
func (a *Archive) Put(ctx context.Context, m Month, pgn []byte) error {
	if err := a.store.Write(ctx, m.key(), pgn); err != nil {
		return fmt.Errorf("writing archive %s: %w", m, err)
	}
	return nil
}

// Get returns the PGN text for m, or ErrNotFound.
func (a *Archive) Get(ctx context.Context, m Month) ([]byte, error) {
	data, err := a.store.Read(ctx, m.key())
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", m, err)
	}
	return data, nil
}

// Months returns the stored months in chronological order.
func (a *Archive) Months(ctx context.Context) ([]Month, error) {
	keys, err := a.store.List(ctx, monthsPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	var months []Month
	for _, k := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(k, monthsPrefix), monthsSuffix)
		if !ok {
			continue
		}
		m, err := ParseMonth(name)
		if err != nil {
			continue
		}
		months = append(months, m)
	}
	slices.SortFunc(months, func(a, b Month) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return months, nil
}

// Has reports whether an archive for m is stored.
func (a *Archive) Has(ctx context.Context, m Month) (bool, error) {
	months, err := a.Months(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(months, m), nil
}

// Close closes the underlying store.
func (a *Archive) Close() error {
	return a.store.Close()
}
