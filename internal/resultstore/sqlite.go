// Package resultstore keeps analyzed games in a SQLite database so trends
// can be recomputed without re-running the engine.
package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/discochess/hindsight"
)

// ErrNotFound is returned when no result is stored for a game.
var ErrNotFound = errors.New("resultstore: result not found")

// Store persists GameResults keyed by game ID.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn and applies the schema. Use ":memory:"
// for a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("resultstore: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("resultstore: exec %s: %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	games       INTEGER NOT NULL,
	excluded    INTEGER NOT NULL,
	warnings    TEXT
);

CREATE TABLE IF NOT EXISTS games (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	played_on   TEXT,
	white       TEXT NOT NULL,
	black       TEXT NOT NULL,
	result      TEXT NOT NULL,
	data        TEXT NOT NULL,
	analyzed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_run_id ON games(run_id);
CREATE INDEX IF NOT EXISTS idx_games_played_on ON games(played_on);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("resultstore: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores every game of run, replacing earlier results for the
// same games, and records the run itself.
func (s *Store) SaveRun(ctx context.Context, run *hindsight.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resultstore: begin: %w", err)
	}
	defer tx.Rollback()

	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("resultstore: marshal warnings: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, started_at, finished_at, games, excluded, warnings) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Started.UTC(), run.Finished.UTC(), len(run.Games), len(run.Excluded), string(warnings),
	)
	if err != nil {
		return fmt.Errorf("resultstore: insert run %s: %w", run.RunID, err)
	}

	now := time.Now().UTC()
	for i := range run.Games {
		if err := saveGame(ctx, tx, run.RunID, &run.Games[i], now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resultstore: commit: %w", err)
	}
	return nil
}

// Save stores one result under runID.
func (s *Store) Save(ctx context.Context, runID string, r *hindsight.GameResult) error {
	return saveGame(ctx, s.db, runID, r, time.Now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveGame(ctx context.Context, db execer, runID string, r *hindsight.GameResult, now time.Time) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("resultstore: marshal game %s: %w", r.ID, err)
	}
	var playedOn sql.NullString
	if r.HasDate() {
		playedOn = sql.NullString{String: r.Date.Format(time.DateOnly), Valid: true}
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO games (id, run_id, played_on, white, black, result, data, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, runID, playedOn, r.White, r.Black, r.Result, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("resultstore: insert game %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the stored result for a game.
func (s *Store) Get(ctx context.Context, id string) (*hindsight.GameResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM games WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("resultstore: get %s: %w", id, err)
	}
	var r hindsight.GameResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("resultstore: decode %s: %w", id, err)
	}
	return &r, nil
}

// IDs returns the set of stored game IDs.
func (s *Store) IDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM games`)
	if err != nil {
		return nil, fmt.Errorf("resultstore: list ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("resultstore: scan id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resultstore: list ids: %w", err)
	}
	return ids, nil
}

// Filter narrows All.
type Filter struct {
	// Since and Until bound the game date, inclusive. Zero means unbounded.
	// Undated games are returned only when both are zero.
	Since, Until time.Time

	// Player keeps games the named player took part in.
	Player string
}

// All returns the stored results matching f, ordered by date then ID.
func (s *Store) All(ctx context.Context, f Filter) ([]hindsight.GameResult, error) {
	query := `SELECT data FROM games WHERE 1=1`
	var args []any
	if !f.Since.IsZero() {
		query += ` AND played_on >= ?`
		args = append(args, f.Since.Format(time.DateOnly))
	}
	if !f.Until.IsZero() {
		query += ` AND played_on <= ?`
		args = append(args, f.Until.Format(time.DateOnly))
	}
	if f.Player != "" {
		query += ` AND (lower(white) = lower(?) OR lower(black) = lower(?))`
		args = append(args, f.Player, f.Player)
	}
	query += ` ORDER BY played_on, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resultstore: list games: %w", err)
	}
	defer rows.Close()

	var results []hindsight.GameResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("resultstore: scan game: %w", err)
		}
		var r hindsight.GameResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("resultstore: decode game: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resultstore: list games: %w", err)
	}
	return results, nil
}

// Count returns the number of stored games.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("resultstore: count: %w", err)
	}
	return n, nil
}
