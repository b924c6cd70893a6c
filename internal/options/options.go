// Package options builds the two option strings the launcher hands out: the
// comma-joined flag string read by the controller, and the ROGUEOPTS string
// read by the target from its environment.
package options

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WireVersion identifies the field layout produced by Encode. Controllers
// depend on the order below; bump this only together with the controller.
const WireVersion = 1

// FieldCount is the number of comma-separated fields in an encoded string.
const FieldCount = 10

// NeverQuit is the QuitAt value meaning "play until the game ends".
const NeverQuit = math.MaxInt32

// ErrMalformed is returned by Decode for strings that do not follow the layout.
var ErrMalformed = errors.New("malformed controller options")

// Flags are the controller settings, listed in wire order.
type Flags struct {
	Cheat      bool // use trap arrows
	NoTerminal bool // don't mirror the game on the user's terminal
	Echo       bool // echo the game to the roguelog
	NoHalftime bool // no halftime summary
	Emacs      bool
	Terse      bool // status lines only
	User       bool // start in user mode
	QuitAt     int  // score threshold at which the controller quits
	DebugTrace bool
	MoveRate   int // moves per second, 0 means unlimited
}

// Defaults returns the flags used when nothing is requested on the command line.
func Defaults() Flags {
	return Flags{
		NoTerminal: true,
		QuitAt:     NeverQuit,
	}
}

// Encode renders flags as the controller wire string:
// cheat,noterm,echo,nohalf,emacs,terse,user,quitat,debug,moverate
func Encode(f Flags) string {
	fields := []string{
		boolField(f.Cheat),
		boolField(f.NoTerminal),
		boolField(f.Echo),
		boolField(f.NoHalftime),
		boolField(f.Emacs),
		boolField(f.Terse),
		boolField(f.User),
		strconv.Itoa(f.QuitAt),
		boolField(f.DebugTrace),
		strconv.Itoa(f.MoveRate),
	}
	return strings.Join(fields, ",")
}

// Decode parses a string produced by Encode. Boolean fields accept any
// integer, non-zero meaning true, the same way a C controller reads them.
func Decode(s string) (Flags, error) {
	parts := strings.Split(s, ",")
	if len(parts) != FieldCount {
		return Flags{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformed, FieldCount, len(parts))
	}

	vals := make([]int, FieldCount)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Flags{}, fmt.Errorf("%w: field %d: %q is not an integer", ErrMalformed, i+1, p)
		}
		vals[i] = n
	}

	return Flags{
		Cheat:      vals[0] != 0,
		NoTerminal: vals[1] != 0,
		Echo:       vals[2] != 0,
		NoHalftime: vals[3] != 0,
		Emacs:      vals[4] != 0,
		Terse:      vals[5] != 0,
		User:       vals[6] != 0,
		QuitAt:     vals[7],
		DebugTrace: vals[8] != 0,
		MoveRate:   vals[9],
	}, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
