package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/discochess/hindsight"
)

func writeText(w io.Writer, run *hindsight.RunResult, opts Options) error {
	p := &printer{w: w}

	if run.RunID != "" {
		p.printf("Run %s\n", run.RunID)
	}
	p.printf("Games analyzed: %d", len(run.Games))
	if len(run.Excluded) > 0 {
		p.printf(" (%d excluded)", len(run.Excluded))
	}
	p.printf("\nTime played: %s\n", formatDuration(run.TimePlayed))

	in := run.Insights
	if in.Timed > 0 {
		p.printf("Timed moves: %d; %d (%.1f%%) in simple positions, %d (%.1f%%) in check, %d (%.1f%%) in endgames\n",
			in.Timed,
			in.LowComplexity, in.Percent(in.LowComplexity),
			in.InCheck, in.Percent(in.InCheck),
			in.Endgame, in.Percent(in.Endgame))
	}

	tr := run.Trend
	p.printf("\nTrend by %s: %s over %d buckets\n", run.Granularity, tr.Direction, tr.Buckets)
	if tr.Buckets >= 2 {
		p.printf("  slope %+.4f errors/game per day, early vs late p=%.4f, effect %s\n",
			tr.Slope, tr.EarlyLate.PValue, tr.Effect)
	}
	if len(run.Aggregates) > 0 {
		tw := tabwriter.NewWriter(p, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  bucket\tgames\tinaccuracies\tmistakes\tblunders\tavg drop\ttime")
		for _, b := range run.Aggregates {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%.0f\t%s\n",
				b.Key, b.Games, b.Inaccuracies, b.Mistakes, b.Blunders, b.AvgDrop, formatDuration(b.TimePlayed))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(run.WorstDrops) > 0 {
		p.printf("\nWorst drops:\n")
		for i, d := range run.WorstDrops {
			e := d.Event
			p.printf("  %d. %s %s vs %s: %s (%s) %s, drop %d, %s\n",
				i+1, formatDate(d.Date), d.White, d.Black,
				MoveLabel(e.MoveNumber, e.Side, e.SAN), e.Description,
				swing(e.MoverBefore, e.MoverAfter), e.Drop, e.Tier)
		}
	}

	if len(run.RepeatedMistakes) > 0 {
		p.printf("\nRepeated mistakes:\n")
		for _, c := range run.RepeatedMistakes {
			p.printf("  %s ×%d\n", c.SAN, c.Count)
		}
	}

	if opts.Games {
		for _, g := range run.Games {
			writeTextGame(p, &g)
		}
	}

	if len(run.Warnings) > 0 {
		p.printf("\nWarnings:\n")
		for _, warn := range run.Warnings {
			p.printf("  - %s\n", warn)
		}
	}
	return p.err
}

func writeTextGame(p *printer, g *hindsight.GameResult) {
	p.printf("\n%s vs %s, %s, %s\n", g.White, g.Black, formatDate(g.Date), g.Result)
	p.printf("  %s\n", g.ID)
	if g.MissingClocks > 0 {
		p.printf("  %d moves without clock data\n", g.MissingClocks)
	}
	if len(g.TimeUse) > 0 {
		p.printf("  Longest thinks:\n")
		for _, e := range g.TimeUse {
			p.printf("    %-14s %6s  legal moves %d, material %+d, check %s, endgame %s\n",
				MoveLabel(e.MoveNumber, e.Side, e.SAN), formatDuration(e.TimeSpent),
				e.LegalMoves, e.Material, yesNo(e.InCheck), yesNo(e.Endgame))
		}
	}
	if len(g.Blunders) > 0 {
		p.printf("  Flagged moves:\n")
		for _, e := range g.Blunders {
			p.printf("    %-14s %-11s %s, drop %d\n",
				MoveLabel(e.MoveNumber, e.Side, e.SAN), e.Tier, swing(e.MoverBefore, e.MoverAfter), e.Drop)
		}
	}
	if g.Unavailable > 0 {
		p.printf("  %d positions could not be evaluated\n", g.Unavailable)
	}
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	n, err := p.w.Write(b)
	p.err = err
	return n, err
}
