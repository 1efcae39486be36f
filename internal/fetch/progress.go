package fetch

import (
	"fmt"
	"io"
	"time"

	"github.com/discochess/hindsight/internal/archive"
)

// Phase names a step of a fetch.
type Phase string

const (
	PhaseList  Phase = "list"
	PhaseMonth Phase = "month"
	PhaseSkip  Phase = "skip"
	PhaseDone  Phase = "done"
)

// Progress reports the state of a fetch.
type Progress struct {
	Phase       Phase
	Month       archive.Month
	MonthsDone  int
	MonthsTotal int
	Games       int
	Bytes       int64
	StartTime   time.Time
}

// ProgressFunc is called after each step.
type ProgressFunc func(Progress)

// NewProgressPrinter returns a ProgressFunc writing one line per step to w.
func NewProgressPrinter(w io.Writer) ProgressFunc {
	return func(p Progress) {
		switch p.Phase {
		case PhaseList:
			fmt.Fprintf(w, "[List] %d monthly archives\n", p.MonthsTotal)
		case PhaseMonth:
			fmt.Fprintf(w, "[Fetch] %s (%d/%d) %d games, %s\n",
				p.Month, p.MonthsDone, p.MonthsTotal, p.Games, FormatBytes(p.Bytes))
		case PhaseSkip:
			fmt.Fprintf(w, "[Skip] %s (%d/%d) already stored\n", p.Month, p.MonthsDone, p.MonthsTotal)
		case PhaseDone:
			fmt.Fprintf(w, "[Done] %d games, %s in %s\n",
				p.Games, FormatBytes(p.Bytes), FormatDuration(time.Since(p.StartTime)))
		}
	}
}

// FormatBytes formats bytes as human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
