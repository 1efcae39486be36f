// Package report renders analysis runs as text, Markdown, JSON, or YAML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/position"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("report: unknown format")

// Format is an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	JSON     Format = "json"
	YAML     Format = "yaml"
)

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, Markdown, JSON, YAML:
		return f, nil
	case "md":
		return Markdown, nil
	case "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Options controls what the human-readable formats include.
type Options struct {
	// Games adds a section per game with its longest thinks and flagged
	// moves.
	Games bool

	// Title heads the Markdown report.
	Title string
}

// Write renders run to w.
func Write(w io.Writer, run *hindsight.RunResult, f Format, opts Options) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case Markdown:
		return writeMarkdown(w, run, opts)
	case Text:
		return writeText(w, run, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// MoveLabel renders a move with its number, e.g. "12. Nf3" or "12... Nf6".
func MoveLabel(number int, side position.Side, san string) string {
	if side == position.Black {
		return fmt.Sprintf("%d... %s", number, san)
	}
	return fmt.Sprintf("%d. %s", number, san)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "undated"
	}
	return t.Format(time.DateOnly)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

func swing(before, after int) string {
	return oracle.FormatPawns(before) + " → " + oracle.FormatPawns(after)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
