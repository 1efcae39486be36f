package uci

import "testing"

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		depth int
		cp    *int
		mate  *int
		bound bool
		pvLen int
	}{
		{
			name:  "centipawn score",
			line:  "info depth 12 seldepth 18 multipv 1 score cp 35 nodes 12345 nps 100 pv e2e4 e7e5",
			ok:    true,
			depth: 12,
			cp:    ptr(35),
			pvLen: 2,
		},
		{
			name:  "mate score",
			line:  "info depth 20 score mate -3 pv h5f7",
			ok:    true,
			depth: 20,
			mate:  ptr(-3),
			pvLen: 1,
		},
		{
			name:  "lower bound",
			line:  "info depth 9 score cp 80 lowerbound nodes 10",
			ok:    true,
			depth: 9,
			cp:    ptr(80),
			bound: true,
		},
		{name: "second pv", line: "info depth 12 multipv 2 score cp 10 pv d2d4"},
		{name: "no score", line: "info depth 5 currmove e2e4 currmovenumber 1"},
		{name: "string", line: "info string NNUE evaluation using nn.nnue"},
		{name: "truncated score", line: "info depth 5 score cp"},
		{name: "unknown score unit", line: "info depth 5 score wdl 10 20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseInfo(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseInfo() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.depth != tt.depth {
				t.Errorf("depth = %d, want %d", got.depth, tt.depth)
			}
			if !same(got.centipawns, tt.cp) || !same(got.mate, tt.mate) {
				t.Errorf("score = %v/%v, want %v/%v", got.centipawns, got.mate, tt.cp, tt.mate)
			}
			if got.bound != tt.bound {
				t.Errorf("bound = %v, want %v", got.bound, tt.bound)
			}
			if len(got.pv) != tt.pvLen {
				t.Errorf("len(pv) = %d, want %d", len(got.pv), tt.pvLen)
			}
		})
	}
}

func TestLimit_Command(t *testing.T) {
	tests := []struct {
		limit   Limit
		want    string
		wantErr bool
	}{
		{Limit{Depth: 12}, "go depth 12", false},
		{Limit{MoveTime: 1500 * 1e6}, "go movetime 1500", false},
		{Limit{Depth: 8, MoveTime: 2e9}, "go depth 8 movetime 2000", false},
		{Limit{}, "", true},
	}

	for _, tt := range tests {
		got, err := tt.limit.command()
		if (err != nil) != tt.wantErr {
			t.Errorf("command(%+v) error = %v, wantErr %v", tt.limit, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("command(%+v) = %q, want %q", tt.limit, got, tt.want)
		}
	}
}

func ptr(n int) *int { return &n }

func same(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
