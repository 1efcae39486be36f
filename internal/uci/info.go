package uci

import (
	"strconv"
	"strings"
)

// info is the subset of an "info" line the session cares about.
type info struct {
	depth      int
	multipv    int
	centipawns *int
	mate       *int
	bound      bool
	nodes      int64
	pv         []string
}

// parseInfo parses an engine "info" line. It returns false for lines
// without a score and for secondary principal variations.
func parseInfo(line string) (info, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return info{}, false
	}

	var in info
	hasScore := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			in.depth = atoiAt(fields, i+1)
			i++
		case "multipv":
			in.multipv = atoiAt(fields, i+1)
			i++
		case "nodes":
			if i+1 < len(fields) {
				in.nodes, _ = strconv.ParseInt(fields[i+1], 10, 64)
			}
			i++
		case "score":
			if i+2 >= len(fields) {
				return info{}, false
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return info{}, false
			}
			switch fields[i+1] {
			case "cp":
				in.centipawns = &v
			case "mate":
				in.mate = &v
			default:
				return info{}, false
			}
			hasScore = true
			i += 2
			if i+1 < len(fields) && (fields[i+1] == "lowerbound" || fields[i+1] == "upperbound") {
				in.bound = true
				i++
			}
		case "pv":
			in.pv = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		case "string":
			// The rest of the line is free text.
			i = len(fields)
		}
	}

	if !hasScore || in.multipv > 1 {
		return info{}, false
	}
	return in, true
}

func atoiAt(fields []string, i int) int {
	if i >= len(fields) {
		return 0
	}
	n, _ := strconv.Atoi(fields[i])
	return n
}
