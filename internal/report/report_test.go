package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/discochess/hindsight"
	"github.com/discochess/hindsight/internal/blunder"
	"github.com/discochess/hindsight/internal/oracle"
	"github.com/discochess/hindsight/internal/position"
	"github.com/discochess/hindsight/internal/report"
	"github.com/discochess/hindsight/internal/timeuse"
	"github.com/discochess/hindsight/internal/trend"
)

func sampleRun() *hindsight.RunResult {
	b := oracle.Budget{Depth: 12}
	game := hindsight.GameResult{
		ID:     "https://www.chess.com/game/live/1",
		White:  "alice",
		Black:  "Bob",
		Result: "1-0",
		Date:   time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		TimeUse: []timeuse.Entry{
			{Ply: 6, MoveNumber: 3, Side: position.Black, SAN: "Nf6", TimeSpent: 28500 * time.Millisecond, LegalMoves: 34},
		},
		Blunders: []blunder.Event{{
			Ply: 6, MoveNumber: 3, Side: position.Black, SAN: "Nf6", Description: "Knight to f6",
			Before: oracle.CP(50, b), After: oracle.MateIn(1, b),
			MoverBefore: 50, MoverAfter: -1000, Drop: 1050, Tier: blunder.Blunder,
		}},
		TimePlayed: 46 * time.Second,
		Insights:   timeuse.Insights{Timed: 4, LowComplexity: 1},
	}
	run := hindsight.Summarize([]hindsight.GameResult{game}, trend.Day)
	run.RunID = "run-1"
	run.Warnings = append(run.Warnings, "something odd")
	return run
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want report.Format
	}{
		{"text", report.Text},
		{"MD", report.Markdown},
		{"json", report.JSON},
		{"yml", report.YAML},
	}
	for _, tt := range tests {
		got, err := report.ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := report.ParseFormat("html"); !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("ParseFormat(html) error = %v, want ErrUnknownFormat", err)
	}
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, sampleRun(), report.Text, report.Options{Games: true}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Run run-1",
		"Games analyzed: 1",
		"Time played: 46s",
		"Timed moves: 4; 1 (25.0%) in simple positions",
		"Trend by day: insufficient data over 1 buckets",
		"2025-05-05",
		"3... Nf6 (Knight to f6) +0.50 → -10.00, drop 1050, blunder",
		"Nf6 ×1",
		"alice vs Bob, 2025-05-05, 1-0",
		"29s",
		"  - something odd",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q\n%s", want, out)
		}
	}
}

func TestWrite_Markdown(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, sampleRun(), report.Markdown, report.Options{Title: "Bob in May"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Bob in May",
		"| 2025-05-05 | 1 | 0 | 0 | 1 | 1050 | 46s |",
		"| 2025-05-05 | alice vs Bob | 3... Nf6 | +0.50 → -10.00 | 1050 | blunder |",
		"- `Nf6` ×1",
		"## Warnings",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown report missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "## Games") {
		t.Error("markdown report has a games section without Options.Games")
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, sampleRun(), report.JSON, report.Options{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var got hindsight.RunResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.RunID != "run-1" || len(got.Games) != 1 {
		t.Fatalf("decoded run = %+v", got)
	}
	if got.Games[0].Blunders[0].Tier != blunder.Blunder {
		t.Errorf("tier = %v, want blunder", got.Games[0].Blunders[0].Tier)
	}
	if !strings.Contains(buf.String(), `"tier": "blunder"`) {
		t.Error("tier is not encoded by name")
	}
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, sampleRun(), report.YAML, report.Options{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if doc["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", doc["run_id"])
	}
	if !strings.Contains(buf.String(), "tier: blunder") {
		t.Errorf("yaml output missing tier name:\n%s", buf.String())
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := report.Write(&bytes.Buffer{}, sampleRun(), report.Format("html"), report.Options{})
	if !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("Write() error = %v, want ErrUnknownFormat", err)
	}
}

func TestMoveLabel(t *testing.T) {
	if got := report.MoveLabel(12, position.White, "Nf3"); got != "12. Nf3" {
		t.Errorf("MoveLabel() = %q", got)
	}
	if got := report.MoveLabel(12, position.Black, "O-O"); got != "12... O-O" {
		t.Errorf("MoveLabel() = %q", got)
	}
}
