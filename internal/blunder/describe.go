package blunder

import "strings"

var pieceNames = map[byte]string{
	'N': "Knight",
	'B': "Bishop",
	'R': "Rook",
	'Q': "Queen",
	'K': "King",
}

// Describe renders a SAN move in words, e.g. "Knight to f3",
// "Castles kingside" or "Pawn to e8, promotes to Queen".
func Describe(san string) string {
	s := strings.TrimRight(san, "+#!?")
	switch s {
	case "O-O", "0-0":
		return "Castles kingside"
	case "O-O-O", "0-0-0":
		return "Castles queenside"
	}

	promotion := ""
	if i := strings.IndexByte(s, '='); i >= 0 {
		if i+1 < len(s) {
			promotion = pieceNames[s[i+1]]
		}
		s = s[:i]
	}
	if len(s) < 2 {
		return "Unrecognized move"
	}

	piece := "Pawn"
	if name, ok := pieceNames[s[0]]; ok {
		piece = name
	}
	desc := piece + " to " + s[len(s)-2:]
	if promotion != "" {
		desc += ", promotes to " + promotion
	}
	return desc
}
