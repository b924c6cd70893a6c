// Package handoff encodes the command-line tokens that let the controller
// attach to the target's pty and process.
//
// Each descriptor is written as a single character, 'a' plus the descriptor
// number, so only descriptors 0..MaxDescriptor can be represented. Encode and
// Decode reject anything outside that range instead of producing characters
// the controller would misread.
package handoff

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// Base is the character that encodes descriptor 0.
	Base = 'a'

	// MaxDescriptor is the highest descriptor that still maps to a printable
	// ASCII character ('~').
	MaxDescriptor = '~' - Base

	// SentinelDescriptors replaces the descriptor token in replay mode.
	SentinelDescriptors = "ZZ"

	// SentinelPID replaces the pid in replay mode: no live target.
	SentinelPID = "0"
)

var (
	// ErrDescriptorRange indicates a descriptor that cannot be encoded.
	ErrDescriptorRange = errors.New("descriptor outside encodable range")

	// ErrDescriptorsNotDistinct indicates read and write descriptors are equal.
	ErrDescriptorsNotDistinct = errors.New("read and write descriptors must differ")

	// ErrInvalidPID indicates a pid token that is not a positive integer.
	ErrInvalidPID = errors.New("invalid target pid")

	// ErrMalformedToken indicates a descriptor token of the wrong shape.
	ErrMalformedToken = errors.New("malformed descriptor token")
)

// Tokens is the complete contract between launcher and controller.
type Tokens struct {
	Descriptors string // two characters: read then write descriptor
	PID         string // decimal target pid, or SentinelPID
	Options     string // controller options string
}

// Encode builds live-play tokens for the given descriptors and target pid.
func Encode(readFD, writeFD, pid int, opts string) (Tokens, error) {
	if readFD == writeFD {
		return Tokens{}, fmt.Errorf("%w: both are %d", ErrDescriptorsNotDistinct, readFD)
	}
	r, err := encodeFD(readFD)
	if err != nil {
		return Tokens{}, err
	}
	w, err := encodeFD(writeFD)
	if err != nil {
		return Tokens{}, err
	}
	if pid <= 0 {
		return Tokens{}, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return Tokens{
		Descriptors: string([]byte{r, w}),
		PID:         strconv.Itoa(pid),
		Options:     opts,
	}, nil
}

// Replay builds the tokens used when no live target exists.
func Replay(opts string) Tokens {
	return Tokens{
		Descriptors: SentinelDescriptors,
		PID:         SentinelPID,
		Options:     opts,
	}
}

// IsReplay reports whether t carries the replay sentinels.
func (t Tokens) IsReplay() bool {
	return t.PID == SentinelPID
}

// Argv returns the four positional controller arguments. last is the
// display name in live play and the log file in replay.
func (t Tokens) Argv(last string) []string {
	return []string{t.Descriptors, t.PID, t.Options, last}
}

// Decoded is the controller's view of a token set.
type Decoded struct {
	ReadFD  int
	WriteFD int
	PID     int
}

// Decode reverses Encode. For replay tokens it returns ok=false and no error.
func Decode(t Tokens) (d Decoded, ok bool, err error) {
	if t.Descriptors == SentinelDescriptors && t.PID == SentinelPID {
		return Decoded{}, false, nil
	}
	if len(t.Descriptors) != 2 {
		return Decoded{}, false, fmt.Errorf("%w: %q", ErrMalformedToken, t.Descriptors)
	}
	if d.ReadFD, err = decodeFD(t.Descriptors[0]); err != nil {
		return Decoded{}, false, err
	}
	if d.WriteFD, err = decodeFD(t.Descriptors[1]); err != nil {
		return Decoded{}, false, err
	}
	if d.ReadFD == d.WriteFD {
		return Decoded{}, false, fmt.Errorf("%w: both are %d", ErrDescriptorsNotDistinct, d.ReadFD)
	}
	pid, perr := strconv.Atoi(t.PID)
	if perr != nil || pid <= 0 {
		return Decoded{}, false, fmt.Errorf("%w: %q", ErrInvalidPID, t.PID)
	}
	d.PID = pid
	return d, true, nil
}

func encodeFD(fd int) (byte, error) {
	if fd < 0 || fd > MaxDescriptor {
		return 0, fmt.Errorf("%w: %d (supported 0..%d)", ErrDescriptorRange, fd, MaxDescriptor)
	}
	return byte(Base + fd), nil
}

func decodeFD(c byte) (int, error) {
	if c < Base || c > Base+MaxDescriptor {
		return 0, fmt.Errorf("%w: %q", ErrDescriptorRange, c)
	}
	return int(c - Base), nil
}
