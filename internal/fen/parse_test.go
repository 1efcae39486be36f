package fen

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "clocks dropped",
			input: "r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 3 3",
			want:  "r1bqkbnr/pppp1ppp/2n5/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq -",
		},
		{
			name:  "en passant square kept",
			input: "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",
			want:  "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6",
		},
		{
			name:  "partial castling rights",
			input: "r3k2r/ppp2ppp/8/8/8/8/PPP2PPP/R3K2R b Kq - 12 30",
			want:  "r3k2r/ppp2ppp/8/8/8/8/PPP2PPP/R3K2R b Kq -",
		},
		{
			name:  "already normalized",
			input: "8/8/8/4k3/8/8/4K3/4R3 w - -",
			want:  "8/8/8/4k3/8/8/4K3/4R3 w - -",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "placement only", input: "8/8/8/4k3/8/8/4K3/4R3", wantErr: true},
		{name: "bad side", input: "8/8/8/4k3/8/8/4K3/4R3 white - - 0 1", wantErr: true},
		{name: "seven ranks", input: "8/8/4k3/8/8/4K3/4R3 w - - 0 1", wantErr: true},
		{name: "nine files", input: "9/8/8/4k3/8/8/4K3/4R3 w - - 0 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidFEN) {
				t.Errorf("error = %v, want ErrInvalidFEN", err)
			}
		})
	}
}

func TestPlacement(t *testing.T) {
	// Same board, different move counters and side: placements match.
	a, err := Placement("8/8/8/4k3/8/8/4K3/4R3 w - - 0 1")
	if err != nil {
		t.Fatalf("Placement() error = %v", err)
	}
	b, err := Placement("8/8/8/4k3/8/8/4K3/4R3 b - - 7 40")
	if err != nil {
		t.Fatalf("Placement() error = %v", err)
	}
	if a != b || a != "8/8/8/4k3/8/8/4K3/4R3" {
		t.Errorf("Placement() = %q and %q, want both 8/8/8/4k3/8/8/4K3/4R3", a, b)
	}
	if _, err := Placement(""); !errors.Is(err, ErrInvalidFEN) {
		t.Errorf("Placement(\"\") error = %v, want ErrInvalidFEN", err)
	}
}

func TestParseMaterial(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Material
		wantErr bool
	}{
		{
			name:  "after scholar's mate",
			input: "r1bqkb1r/pppp1Qpp/2n2n2/4p3/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 0 4",
			want: Material{
				White: Side{Pawns: 8, Knights: 2, Bishops: 2, Rooks: 2, Queens: 1},
				Black: Side{Pawns: 7, Knights: 2, Bishops: 2, Rooks: 2, Queens: 1},
			},
		},
		{
			name:  "rook ending",
			input: "8/5pk1/6p1/8/8/6P1/r4PK1/3R4 w - - 0 41",
			want: Material{
				White: Side{Pawns: 2, Rooks: 1},
				Black: Side{Pawns: 2, Rooks: 1},
			},
		},
		{
			name:  "underpromotions",
			input: "NN2k3/8/8/8/8/8/8/4K2b b - - 0 60",
			want:  Material{White: Side{Knights: 2}, Black: Side{Bishops: 1}},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown piece", input: "8/8/8/4k3/8/8/4K3/4X3 w - - 0 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMaterial(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMaterial() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMaterial() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMaterial_Balance(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantBalance int
		wantNonPawn int
	}{
		{"starting position", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 0, 62},
		{"white up a rook", "8/8/8/4k3/8/8/4K3/4R3 w - - 0 1", 5, 5},
		{"bishops ending", "8/5b1p/1k1p1bp1/2p2P2/1PP5/3P4/2K4P/2B5 b - - 0 35", -2, 9},
		{"black queen vs rook", "3qk3/8/8/8/8/8/8/3RK3 w - - 0 1", -4, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMaterial(tt.input)
			if err != nil {
				t.Fatalf("ParseMaterial() error = %v", err)
			}
			if got := m.Balance(); got != tt.wantBalance {
				t.Errorf("Balance() = %d, want %d", got, tt.wantBalance)
			}
			if got := m.NonPawn(); got != tt.wantNonPawn {
				t.Errorf("NonPawn() = %d, want %d", got, tt.wantNonPawn)
			}
		})
	}
}

func TestInCheck(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr bool
	}{
		{name: "starting position", input: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"},
		{name: "fool's mate", input: "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", want: true},
		{name: "knight check", input: "4k3/8/3N4/8/8/8/8/4K3 b - - 0 1", want: true},
		{name: "pawn check", input: "4k3/3P4/8/8/8/8/8/4K3 b - - 0 1", want: true},
		{name: "pawn in front does not check", input: "4k3/4P3/8/8/8/8/8/4K3 b - - 0 1"},
		{name: "rook check", input: "4k3/8/8/8/8/8/8/4R1K1 b - - 0 1", want: true},
		{name: "blocked rook", input: "4k3/8/4p3/8/8/8/8/4R1K1 b - - 0 1"},
		{name: "bishops ending", input: "8/5b1p/1k1p1bp1/2p2P2/1PP5/3P4/2K4P/2B5 b - - 0 35"},
		{name: "missing king", input: "8/8/8/8/8/8/8/4K3 b - - 0 1", wantErr: true},
		{name: "invalid side", input: "4k3/8/8/8/8/8/8/4K3 x - - 0 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InCheck(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("InCheck() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFullMoveNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 1, false},
		{"8/5b1p/1k1p1bp1/2p2P2/1PP5/3P4/2K4P/2B5 b - - 0 35", 35, false},
		{"8/8/8/4k3/8/8/4K3/4R3 w - -", 1, false},
		{"8/8/8/4k3/8/8/4K3/4R3 w - - 0 x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := FullMoveNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FullMoveNumber() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FullMoveNumber() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSideToMove(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "white to move",
			input: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			want:  "w",
		},
		{
			name:  "black to move",
			input: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
			want:  "b",
		},
		{
			name:    "invalid side",
			input:   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
			wantErr: true,
		},
		{
			name:    "missing side",
			input:   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SideToMove(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SideToMove() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SideToMove() = %q, want %q", got, tt.want)
			}
		})
	}
}

func BenchmarkNormalize(b *testing.B) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Normalize(fen)
	}
}

func BenchmarkInCheck(b *testing.B) {
	fen := "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = InCheck(fen)
	}
}

func BenchmarkParseMaterial(b *testing.B) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseMaterial(fen)
	}
}
