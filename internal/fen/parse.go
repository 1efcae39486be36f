// Package fen provides FEN (Forsyth-Edwards Notation) parsing utilities.
package fen

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidFEN indicates the FEN string is malformed.
var ErrInvalidFEN = errors.New("fen: invalid notation")

// Conventional piece values in pawn units.
const (
	PawnValue   = 1
	KnightValue = 3
	BishopValue = 3
	RookValue   = 5
	QueenValue  = 9
)

// Side holds the piece counts of one color. Kings are not counted.
type Side struct {
	Pawns   int
	Knights int
	Bishops int
	Rooks   int
	Queens  int
}

// Value returns the side's material in pawn units.
func (s Side) Value() int {
	return s.Pawns*PawnValue + s.NonPawn()
}

// NonPawn returns the value of the side's pieces other than pawns and king.
func (s Side) NonPawn() int {
	return s.Knights*KnightValue + s.Bishops*BishopValue + s.Rooks*RookValue + s.Queens*QueenValue
}

// Material represents the piece counts for both sides.
type Material struct {
	White Side
	Black Side
}

// Balance returns White's material minus Black's, in pawn units.
func (m Material) Balance() int {
	return m.White.Value() - m.Black.Value()
}

// NonPawn returns the combined non-pawn, non-king material of both sides.
func (m Material) NonPawn() int {
	return m.White.NonPawn() + m.Black.NonPawn()
}

// Queens returns the number of queens on the board.
func (m Material) Queens() int {
	return m.White.Queens + m.Black.Queens
}

// Normalize returns a normalized FEN string suitable for lookups.
// It extracts only the position, side to move, castling rights, and en passant square,
// ignoring the halfmove clock and fullmove number.
func Normalize(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return "", ErrInvalidFEN
	}
	if !isValidPiecePlacement(parts[0]) {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return strings.Join(parts[:4], " "), nil
}

// Placement returns the piece placement field of a FEN string.
func Placement(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) == 0 || !isValidPiecePlacement(parts[0]) {
		return "", ErrInvalidFEN
	}
	return parts[0], nil
}

// ParseMaterial extracts material counts from a FEN string.
func ParseMaterial(fen string) (Material, error) {
	parts := strings.Fields(fen)
	if len(parts) == 0 {
		return Material{}, ErrInvalidFEN
	}

	var m Material
	for _, ch := range parts[0] {
		side := &m.White
		if ch >= 'a' && ch <= 'z' {
			side = &m.Black
		}
		switch ch {
		case 'P', 'p':
			side.Pawns++
		case 'N', 'n':
			side.Knights++
		case 'B', 'b':
			side.Bishops++
		case 'R', 'r':
			side.Rooks++
		case 'Q', 'q':
			side.Queens++
		case 'K', 'k', '/', '1', '2', '3', '4', '5', '6', '7', '8':
		default:
			return Material{}, ErrInvalidFEN
		}
	}
	return m, nil
}

// SideToMove returns "w" or "b" from a FEN string.
func SideToMove(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return parts[1], nil
}

// FullMoveNumber returns the fullmove counter of a FEN string.
// A FEN without the counter is treated as move 1.
func FullMoveNumber(fen string) (int, error) {
	parts := strings.Fields(fen)
	if len(parts) < 6 {
		return 1, nil
	}
	n, err := strconv.Atoi(parts[5])
	if err != nil || n < 1 {
		return 0, ErrInvalidFEN
	}
	return n, nil
}

// InCheck reports whether the side to move is in check.
func InCheck(fen string) (bool, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 || !isValidPiecePlacement(parts[0]) {
		return false, ErrInvalidFEN
	}
	var king byte
	switch parts[1] {
	case "w":
		king = 'K'
	case "b":
		king = 'k'
	default:
		return false, ErrInvalidFEN
	}

	b := parseBoard(parts[0])
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if b[r][f] == king {
				return b.attacked(r, f, king == 'k'), nil
			}
		}
	}
	return false, ErrInvalidFEN
}

// board is indexed [rank][file] with rank 0 being the first rank.
type board [8][8]byte

func parseBoard(placement string) board {
	var b board
	for i, rank := range strings.Split(placement, "/") {
		r := 7 - i
		f := 0
		for j := 0; j < len(rank); j++ {
			ch := rank[j]
			if ch >= '1' && ch <= '8' {
				f += int(ch - '0')
				continue
			}
			b[r][f] = ch
			f++
		}
	}
	return b
}

func (b *board) at(r, f int) byte {
	if r < 0 || r > 7 || f < 0 || f > 7 {
		return 0
	}
	return b[r][f]
}

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// attacked reports whether square (r, f) is attacked by the given color.
func (b *board) attacked(r, f int, byWhite bool) bool {
	own := func(p byte) byte {
		if byWhite {
			return p - 'a' + 'A'
		}
		return p
	}

	// A white pawn attacks upward, so it sits one rank below the target.
	pawnRank := r + 1
	if byWhite {
		pawnRank = r - 1
	}
	if b.at(pawnRank, f-1) == own('p') || b.at(pawnRank, f+1) == own('p') {
		return true
	}
	for _, s := range knightSteps {
		if b.at(r+s[0], f+s[1]) == own('n') {
			return true
		}
	}
	for _, s := range kingSteps {
		if b.at(r+s[0], f+s[1]) == own('k') {
			return true
		}
	}
	if b.slides(r, f, rookRays[:], own('r'), own('q')) {
		return true
	}
	return b.slides(r, f, bishopRays[:], own('b'), own('q'))
}

func (b *board) slides(r, f int, rays [][2]int, pieces ...byte) bool {
	for _, d := range rays {
		for rr, ff := r+d[0], f+d[1]; rr >= 0 && rr < 8 && ff >= 0 && ff < 8; rr, ff = rr+d[0], ff+d[1] {
			p := b[rr][ff]
			if p == 0 {
				continue
			}
			for _, want := range pieces {
				if p == want {
					return true
				}
			}
			break
		}
	}
	return false
}

// isValidPiecePlacement validates the piece placement part of a FEN.
func isValidPiecePlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}

	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case strings.ContainsRune("PNBRQKpnbrqk", ch):
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}

	return true
}
