package pgn

import (
	"regexp"
	"strconv"
	"time"

	"github.com/discochess/hindsight/internal/position"
)

var (
	clockAnnotation = regexp.MustCompile(`\[%clk\s+([^\]]*)\]`)
	clockValue      = regexp.MustCompile(`^(\d+):([0-5]?\d):([0-5]?\d)(?:\.(\d+))?$`)
)

// clockOf returns the remaining clock recorded in a move's comments.
// It returns false when the annotation is missing or malformed.
func clockOf(comments []string) (time.Duration, bool) {
	for _, c := range comments {
		m := clockAnnotation.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		return parseClock(m[1])
	}
	return 0, false
}

// parseClock parses H:MM:SS with an optional fractional second.
func parseClock(s string) (time.Duration, bool) {
	m := clockValue.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec)*time.Second
	if m[4] != "" {
		frac, err := strconv.ParseFloat("0."+m[4], 64)
		if err != nil {
			return 0, false
		}
		d += time.Duration(frac * float64(time.Second)).Round(time.Millisecond)
	}
	return d, true
}

// clockTracker carries the previous clock sample of each side through
// the parse of one game.
type clockTracker struct {
	last map[position.Side]*time.Duration
}

func newClockTracker() *clockTracker {
	return &clockTracker{last: make(map[position.Side]*time.Duration, 2)}
}

// observe records a side's clock after its move and returns the time spent
// on that move. The result is nil when either sample is unknown; a missing
// sample also breaks the chain for that side's next move.
func (t *clockTracker) observe(side position.Side, clock *time.Duration) *time.Duration {
	prev := t.last[side]
	t.last[side] = clock
	if prev == nil || clock == nil {
		return nil
	}
	spent := *prev - *clock
	if spent < 0 {
		spent = 0
	}
	return &spent
}
