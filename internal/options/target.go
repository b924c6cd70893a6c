package options

import (
	"fmt"
	"strings"
)

// Environment variable names set for the target process only.
const (
	EnvRogueOpts = "ROGUEOPTS"
	EnvTerm      = "TERM"
	EnvTermcap   = "TERMCAP"
)

// TerminalName is the terminal type the target is told it runs on.
const TerminalName = "rterm"

// Termcap describes the small terminal the controller's screen parser
// understands. It must stay in sync with TerminalName and the 24x80 window.
const Termcap = `rg|rterm|Rog-O-Matic terminal:am:bs:xn:co#80:li#24:ce=\E^S:cl=^L:cm=\Ea%+ %+ :so=\ED:se=\Ed:pt:ta=^I:up=\E;:db:`

// targetToggles are appended after the name in ROGUEOPTS, in this order.
var targetToggles = []string{
	"fruit=apricot",
	"terse",
	"noflush",
	"noask",
	"jump",
	"step",
	"nopassgo",
	"inven=slow",
	"seefloor",
}

// DisplayName is the banner shown by the controller and used as the
// player's name inside the game.
func DisplayName(version, user string) string {
	return fmt.Sprintf("Rog-O-Matic %s for %s", version, user)
}

// TargetOptions builds the ROGUEOPTS value for the given player name.
func TargetOptions(displayName string) string {
	var b strings.Builder
	b.WriteString("name=")
	b.WriteString(displayName)
	for _, t := range targetToggles {
		b.WriteByte(',')
		b.WriteString(t)
	}
	return b.String()
}

// TargetEnv returns the three KEY=value entries the target must see.
func TargetEnv(targetOpts string) []string {
	return []string{
		EnvRogueOpts + "=" + targetOpts,
		EnvTerm + "=" + TerminalName,
		EnvTermcap + "=" + Termcap,
	}
}
