// Command rogomatic starts a game under a pseudo-terminal and hands it over
// to the player program, which plays it by typing at that terminal.
package main

import (
	"fmt"
	"os"
)

// Build-time settings, set with -ldflags "-X main.name=value".
var (
	version = "14"

	// newRogue and rogue are installed game paths tried after ./rogue.
	newRogue = ""
	rogue    = ""

	// player is the installed controller tried after ./player.
	player = ""
)

func main() {
	if err := newRootCmd(runLaunch).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rogomatic: %v\n", err)
		os.Exit(1)
	}
}
