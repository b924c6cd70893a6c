//go:build !windows

// Package ptysession starts the target program on the slave side of a fresh
// pseudo-terminal and keeps the master side for the controller handoff.
package ptysession

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/rogomatic/rogomatic/internal/logging"
)

var ptyLog = logging.ForComponent(logging.CompPty)

var (
	// ErrPtyAllocation indicates the pseudo-terminal could not be opened or sized.
	ErrPtyAllocation = errors.New("pty allocation failed")

	// ErrForkFailed indicates the OS refused to create the target process.
	ErrForkFailed = errors.New("fork failed")

	// ErrImageReplacement indicates the child was created but could not exec
	// the target. The child has already exited.
	ErrImageReplacement = errors.New("target exec failed")
)

// DefaultSettleDelay is how long the target gets to initialize its terminal
// before the controller starts talking to it.
const DefaultSettleDelay = 100 * time.Millisecond

// Winsize is the character geometry of the pty. Pixel sizes are always zero.
type Winsize struct {
	Rows uint16
	Cols uint16
}

// DefaultSize matches the geometry advertised in the target's TERMCAP.
var DefaultSize = Winsize{Rows: 24, Cols: 80}

// Session owns the master side of the pty and identifies the target process.
type Session struct {
	master  *os.File
	size    Winsize
	pid     int
	derived []int
}

// TargetArgv builds the target's argument vector. A saved game wins over an
// initial file; with neither, the target gets no arguments.
func TargetArgv(execPath string, savedGame bool, initialFile string) []string {
	switch {
	case savedGame:
		return []string{execPath, "-r"}
	case initialFile != "":
		return []string{execPath, initialFile}
	default:
		return []string{execPath}
	}
}

// MergeEnv returns base with every key in overrides replaced, overrides last.
func MergeEnv(base, overrides []string) []string {
	keys := make(map[string]bool, len(overrides))
	for _, kv := range overrides {
		keys[envKey(kv)] = true
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if !keys[envKey(kv)] {
			out = append(out, kv)
		}
	}
	return append(out, overrides...)
}

func envKey(kv string) string {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i]
		}
	}
	return kv
}

// Start opens a pty of the given size and starts execPath on its slave side
// as a session leader with the slave as controlling terminal. env is the
// complete environment of the target.
//
// Errors wrap ErrPtyAllocation, ErrForkFailed or ErrImageReplacement. In
// every error case no target process is left running.
func Start(execPath string, argv, env []string, size Winsize) (*Session, error) {
	if len(argv) == 0 {
		argv = []string{execPath}
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPtyAllocation, err)
	}
	// The parent never needs the slave once the child holds it.
	defer func() { _ = tty.Close() }()

	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		_ = ptmx.Close()
		return nil, fmt.Errorf("%w: set window size: %v", ErrPtyAllocation, err)
	}

	// Built by hand rather than with exec.Command so a bare name like
	// "rogue" means ./rogue and not a $PATH lookup.
	cmd := &exec.Cmd{
		Path:   execPath,
		Args:   argv,
		Env:    env,
		Stdin:  tty,
		Stdout: tty,
		Stderr: tty,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid:  true,
			Setctty: true,
		},
	}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		return nil, startError(execPath, err)
	}

	s := &Session{
		master: ptmx,
		size:   size,
		pid:    cmd.Process.Pid,
	}
	ptyLog.Debug("target_started",
		"path", execPath,
		"argv", argv,
		"pid", s.pid,
		"rows", size.Rows,
		"cols", size.Cols)
	return s, nil
}

// startError separates resource exhaustion at fork time from failures of
// the exec inside the child.
func startError(execPath string, err error) error {
	if errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ENOSYS) {
		return fmt.Errorf("%w: %s: %v", ErrForkFailed, execPath, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrImageReplacement, execPath, err)
}

// PID returns the target's process id.
func (s *Session) PID() int { return s.pid }

// Size returns the pty geometry.
func (s *Session) Size() Winsize { return s.size }

// Master returns the master side of the pty.
func (s *Session) Master() *os.File { return s.master }

// Settle sleeps for d (DefaultSettleDelay when d <= 0). It is not an event
// wait; the controller must still tolerate slow first output.
func (s *Session) Settle(d time.Duration) {
	if d <= 0 {
		d = DefaultSettleDelay
	}
	time.Sleep(d)
}

// Descriptors duplicates the master into two new descriptors, one for
// reading from the target and one for writing to it. Both are the lowest
// free descriptor numbers and survive exec; the master itself does not.
func (s *Session) Descriptors() (readFD, writeFD int, err error) {
	// Fd leaves the master in blocking mode, and the dups share its file
	// description, so the controller's reads block.
	fd := s.master.Fd()
	readFD, err = unix.FcntlInt(fd, unix.F_DUPFD, 0)
	if err != nil {
		return -1, -1, fmt.Errorf("dup pty master: %w", err)
	}
	s.derived = append(s.derived, readFD)

	writeFD, err = unix.FcntlInt(fd, unix.F_DUPFD, 0)
	if err != nil {
		return -1, -1, fmt.Errorf("dup pty master: %w", err)
	}
	s.derived = append(s.derived, writeFD)

	ptyLog.Debug("pty_descriptors", "read_fd", readFD, "write_fd", writeFD)
	return readFD, writeFD, nil
}

// Kill sends SIGKILL to the target's process group (the target leads its
// own session) and to the target itself.
func (s *Session) Kill() error {
	if s.pid <= 0 {
		return nil
	}
	groupErr := unix.Kill(-s.pid, unix.SIGKILL)
	err := unix.Kill(s.pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = nil
	}
	if errors.Is(groupErr, unix.ESRCH) {
		groupErr = nil
	}
	ptyLog.Debug("target_killed", "pid", s.pid)
	return errors.Join(groupErr, err)
}

// Close releases the master and every derived descriptor.
func (s *Session) Close() error {
	var errs []error
	for _, fd := range s.derived {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	s.derived = nil
	if s.master != nil {
		if err := s.master.Close(); err != nil {
			errs = append(errs, err)
		}
		s.master = nil
	}
	return errors.Join(errs...)
}
