package pgn

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// Tag is a PGN header pair.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// token is a SAN move with the comments that follow it.
type token struct {
	san      string
	comments []string
}

// record is the lexical form of one game.
type record struct {
	tags   []Tag
	moves  []token
	result string
}

var (
	tagPattern        = regexp.MustCompile(`^\[([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]$`)
	moveNumberPattern = regexp.MustCompile(`^\d+\.+`)
)

// lex splits a single game into headers and movetext tokens.
// Variations, NAGs, and move numbers are discarded.
func lex(text string) (record, error) {
	var rec record
	var movetext strings.Builder

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	inMoves := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "%") {
			continue
		}
		if !inMoves && strings.HasPrefix(line, "[") {
			m := tagPattern.FindStringSubmatch(line)
			if m == nil {
				return record{}, fmt.Errorf("bad tag line %q", line)
			}
			rec.tags = append(rec.tags, Tag{Name: m[1], Value: strings.ReplaceAll(m[2], `\"`, `"`)})
			continue
		}
		if line == "" && !inMoves {
			continue
		}
		inMoves = true
		movetext.WriteString(line)
		movetext.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return record{}, fmt.Errorf("reading game: %w", err)
	}

	if err := lexMoves(movetext.String(), &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}

func lexMoves(s string, rec *record) error {
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return fmt.Errorf("unterminated comment at offset %d", i)
			}
			if n := len(rec.moves); n > 0 {
				rec.moves[n-1].comments = append(rec.moves[n-1].comments, s[i+1:i+1+end])
			}
			i += end + 2
		case c == ';':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return nil
			}
			i += end + 1
		case c == '(':
			next, err := skipVariation(s, i)
			if err != nil {
				return err
			}
			i = next
		case c == ')':
			return fmt.Errorf("unbalanced ')' at offset %d", i)
		case c == '$':
			i++
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\r\n{};()$", rune(s[j])) {
				j++
			}
			word := s[i:j]
			i = j

			switch word {
			case "1-0", "0-1", "1/2-1/2", "*":
				rec.result = word
				continue
			}
			word = moveNumberPattern.ReplaceAllString(word, "")
			word = strings.TrimRight(word, "!?")
			if word != "" {
				rec.moves = append(rec.moves, token{san: word})
			}
		}
	}
	return nil
}

// skipVariation returns the offset just past the variation starting at s[i].
func skipVariation(s string, i int) (int, error) {
	depth := 0
	for k := i; k < len(s); k++ {
		switch s[k] {
		case '{':
			end := strings.IndexByte(s[k+1:], '}')
			if end < 0 {
				return 0, fmt.Errorf("unterminated comment at offset %d", k)
			}
			k += end + 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated variation at offset %d", i)
}
