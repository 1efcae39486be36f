// Package main provides the hindsight CLI, which downloads a player's
// chess.com games and reports how they spend their clock, where they
// blunder, and how both change over time.
package main

import (
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
