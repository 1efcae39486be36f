package report

import (
	"io"
	"time"

	"github.com/discochess/hindsight"
)

func writeMarkdown(w io.Writer, run *hindsight.RunResult, opts Options) error {
	p := &printer{w: w}

	title := opts.Title
	if title == "" {
		title = "Game analysis"
	}
	p.printf("# %s\n\n", title)
	if !run.Finished.IsZero() {
		p.printf("Generated: %s\n\n", run.Finished.Format(time.RFC3339))
	}

	p.printf("## Summary\n\n")
	p.printf("- **Games analyzed:** %d\n", len(run.Games))
	if len(run.Excluded) > 0 {
		p.printf("- **Excluded:** %d\n", len(run.Excluded))
	}
	p.printf("- **Time played:** %s\n", formatDuration(run.TimePlayed))
	if in := run.Insights; in.Timed > 0 {
		p.printf("- **Timed moves:** %d (%.1f%% simple positions, %.1f%% in check, %.1f%% endgames)\n",
			in.Timed, in.Percent(in.LowComplexity), in.Percent(in.InCheck), in.Percent(in.Endgame))
	}
	p.printf("\n")

	tr := run.Trend
	p.printf("## Trend by %s\n\n", run.Granularity)
	p.printf("**%s** across %d buckets and %d games.\n\n", tr.Direction, tr.Buckets, tr.Games)
	if tr.Buckets >= 2 {
		p.printf("- **Slope:** %+.4f errors per game per day\n", tr.Slope)
		p.printf("- **Mann-Whitney U (early vs late):** %.2f (z=%.2f, p=%.4f)\n",
			tr.EarlyLate.U, tr.EarlyLate.Z, tr.EarlyLate.PValue)
		p.printf("- **Effect size (Cohen's d):** %.2f (%s)\n\n", tr.EffectSize, tr.Effect)
	}
	if len(run.Aggregates) > 0 {
		p.printf("| Bucket | Games | Inaccuracies | Mistakes | Blunders | Avg drop | Time |\n")
		p.printf("|--------|-------|--------------|----------|----------|----------|------|\n")
		for _, b := range run.Aggregates {
			p.printf("| %s | %d | %d | %d | %d | %.0f | %s |\n",
				b.Key, b.Games, b.Inaccuracies, b.Mistakes, b.Blunders, b.AvgDrop, formatDuration(b.TimePlayed))
		}
		p.printf("\n")
	}

	if len(run.WorstDrops) > 0 {
		p.printf("## Worst drops\n\n")
		p.printf("| Date | Game | Move | Eval | Drop | Tier |\n")
		p.printf("|------|------|------|------|------|------|\n")
		for _, d := range run.WorstDrops {
			e := d.Event
			p.printf("| %s | %s vs %s | %s | %s | %d | %s |\n",
				formatDate(d.Date), d.White, d.Black, MoveLabel(e.MoveNumber, e.Side, e.SAN),
				swing(e.MoverBefore, e.MoverAfter), e.Drop, e.Tier)
		}
		p.printf("\n")
	}

	if len(run.RepeatedMistakes) > 0 {
		p.printf("## Repeated mistakes\n\n")
		for _, c := range run.RepeatedMistakes {
			p.printf("- `%s` ×%d\n", c.SAN, c.Count)
		}
		p.printf("\n")
	}

	if opts.Games && len(run.Games) > 0 {
		p.printf("## Games\n\n")
		for _, g := range run.Games {
			p.printf("### %s vs %s (%s, %s)\n\n", g.White, g.Black, formatDate(g.Date), g.Result)
			for _, e := range g.TimeUse {
				p.printf("- %s: %s, %d legal moves, material %+d\n",
					MoveLabel(e.MoveNumber, e.Side, e.SAN), formatDuration(e.TimeSpent), e.LegalMoves, e.Material)
			}
			for _, e := range g.Blunders {
				p.printf("- **%s** %s: %s\n", e.Tier, MoveLabel(e.MoveNumber, e.Side, e.SAN), swing(e.MoverBefore, e.MoverAfter))
			}
			p.printf("\n")
		}
	}

	if len(run.Warnings) > 0 {
		p.printf("## Warnings\n\n")
		for _, warn := range run.Warnings {
			p.printf("- %s\n", warn)
		}
		p.printf("\n")
	}

	p.printf("---\n\n*Report generated by hindsight*\n")
	return p.err
}
