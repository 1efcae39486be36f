package pgn

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Scanner splits a stream of concatenated PGN games into single records.
type Scanner struct {
	sc      *bufio.Scanner
	pending string
	text    string
	err     error
	done    bool
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	// Increase buffer size for long movetext lines.
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &Scanner{sc: sc}
}

// Scan advances to the next game. It returns false at the end of the
// stream or on a read error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	var game strings.Builder
	seenMoves := false
	if s.pending != "" {
		game.WriteString(s.pending)
		game.WriteByte('\n')
		s.pending = ""
	}

	depth := 0
	for s.sc.Scan() {
		line := s.sc.Text()
		header := depth == 0 && isTagLine(line)

		// A header after movetext starts the next game.
		if seenMoves && header {
			s.pending = line
			s.text = game.String()
			return true
		}
		if !header && strings.TrimSpace(line) != "" {
			seenMoves = true
		}
		if !header {
			depth = commentDepth(line, depth)
		}
		game.WriteString(line)
		game.WriteByte('\n')
	}

	s.done = true
	if err := s.sc.Err(); err != nil {
		s.err = fmt.Errorf("reading PGN: %w", err)
		return false
	}
	if strings.TrimSpace(game.String()) == "" {
		return false
	}
	s.text = game.String()
	return true
}

// isTagLine reports whether line looks like a [Name "value"] tag pair.
// Lines such as "[%clk 0:03:00]}" left over from a wrapped comment do not.
func isTagLine(line string) bool {
	t := strings.TrimSpace(line)
	if len(t) < 2 || t[0] != '[' || t[len(t)-1] != ']' {
		return false
	}
	c := t[1]
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

// commentDepth returns the brace comment nesting after line, starting
// from depth. PGN comments do not nest, so depth is 0 or 1.
func commentDepth(line string, depth int) int {
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case depth > 0:
			if c == '}' {
				depth = 0
			}
		case c == '{':
			depth = 1
		case c == ';':
			return 0
		}
	}
	return depth
}

// Text returns the most recent game record.
func (s *Scanner) Text() string { return s.text }

// Err returns the first read error.
func (s *Scanner) Err() error { return s.err }

// SplitGames reads every game record from r.
func SplitGames(r io.Reader) ([]string, error) {
	var games []string
	sc := NewScanner(r)
	for sc.Scan() {
		games = append(games, sc.Text())
	}
	return games, sc.Err()
}
