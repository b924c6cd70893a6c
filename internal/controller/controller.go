//go:build !windows

// Package controller replaces the launcher's process image with the
// controller program, handing it the pty and target through argv.
package controller

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/rogomatic/rogomatic/internal/fallback"
	"github.com/rogomatic/rogomatic/internal/handoff"
	"github.com/rogomatic/rogomatic/internal/logging"
	"github.com/rogomatic/rogomatic/internal/privilege"
)

var ctlLog = logging.ForComponent(logging.CompController)

// ErrControllerNotFound indicates no controller candidate could be executed.
var ErrControllerNotFound = errors.New("controller not found")

const (
	// DefaultProgramName is argv[0] of the controller.
	DefaultProgramName = "player"

	// DefaultNiceness is the priority hint applied to unprivileged users.
	DefaultNiceness = 4
)

// ExecFunc replaces the current process image. It returns only on failure.
type ExecFunc func(path string, argv []string, env []string) error

// Killer terminates the target when the controller cannot take over.
type Killer interface {
	Kill() error
}

// Launcher execs the first available controller candidate.
type Launcher struct {
	// Candidates are tried in order; empty entries are skipped.
	Candidates []string

	// ProgramName is passed as argv[0] (default "player").
	ProgramName string

	// Niceness is the scheduling priority hint (default DefaultNiceness).
	Niceness int

	// Privileged users keep their current priority. Nil means nobody is.
	Privileged privilege.Predicate

	// Exec defaults to unix.Exec.
	Exec ExecFunc

	// SetPriority defaults to setpriority(PRIO_PROCESS, self, n).
	SetPriority func(niceness int) error

	// Environ defaults to os.Environ.
	Environ func() []string
}

// Launch hands the live target over to the controller. On success the
// process image is gone and Launch never returns. If every candidate fails,
// target is killed and the error wraps ErrControllerNotFound.
func (l *Launcher) Launch(tokens handoff.Tokens, displayName string, target Killer) error {
	l.lowerPriority()

	err := l.execFirst(tokens.Argv(displayName))
	if err == nil {
		return nil
	}

	ctlLog.Error("controller_unavailable", "candidates", l.Candidates, "error", err)
	if target != nil {
		if kerr := target.Kill(); kerr != nil {
			ctlLog.Error("target_kill_failed", "error", kerr)
			return errors.Join(err, fmt.Errorf("kill target: %w", kerr))
		}
	}
	return err
}

// Replay starts the controller on a recorded game. There is no target, so
// the sentinel tokens are passed and nothing needs cleaning up on failure.
func (l *Launcher) Replay(logFile, opts string) error {
	err := l.execFirst(handoff.Replay(opts).Argv(logFile))
	if err != nil {
		ctlLog.Error("replay_unavailable", "candidates", l.Candidates, "error", err)
	}
	return err
}

func (l *Launcher) execFirst(args []string) error {
	argv := append([]string{l.programName()}, args...)
	env := l.environ()
	exec := l.Exec
	if exec == nil {
		exec = unix.Exec
	}

	_, err := fallback.First(l.Candidates, func(path string) error {
		ctlLog.Info("controller_exec", "path", path, "argv", argv)
		return exec(path, argv, env)
	})
	if err != nil {
		return fmt.Errorf("%w (tried %s): %w", ErrControllerNotFound, strings.Join(nonEmpty(l.Candidates), ", "), err)
	}
	return nil
}

func (l *Launcher) lowerPriority() {
	if l.Privileged != nil && l.Privileged() {
		ctlLog.Debug("priority_kept", "uid", os.Getuid())
		return
	}
	n := l.Niceness
	if n == 0 {
		n = DefaultNiceness
	}
	set := l.SetPriority
	if set == nil {
		set = func(n int) error { return unix.Setpriority(unix.PRIO_PROCESS, 0, n) }
	}
	// A hint only: an already nicer process cannot lower its niceness.
	if err := set(n); err != nil {
		ctlLog.Warn("set_priority_failed", "niceness", n, "error", err)
	}
}

func (l *Launcher) programName() string {
	if l.ProgramName == "" {
		return DefaultProgramName
	}
	return l.ProgramName
}

func (l *Launcher) environ() []string {
	if l.Environ == nil {
		return os.Environ()
	}
	return l.Environ()
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
