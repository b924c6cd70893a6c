//go:build !windows

// Package launcher ties the pieces together: it resolves the game, encodes
// the options, starts the game under a pty and hands it to the controller.
package launcher

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rogomatic/rogomatic/internal/controller"
	"github.com/rogomatic/rogomatic/internal/handoff"
	"github.com/rogomatic/rogomatic/internal/logging"
	"github.com/rogomatic/rogomatic/internal/options"
	"github.com/rogomatic/rogomatic/internal/ptysession"
	"github.com/rogomatic/rogomatic/internal/resolve"
	"github.com/rogomatic/rogomatic/internal/scores"
)

var launchLog = logging.ForComponent(logging.CompLaunch)

// ThresholdLabel identifies the controller in score files.
const ThresholdLabel = "Rog-O-Matic"

// Request is what the user asked for on the command line.
type Request struct {
	Flags          options.Flags
	ExplicitTarget string // -f
	SavedGame      bool   // -r
	Replay         bool   // -p
	ScoreOnly      bool   // -s

	// Arg is the optional positional argument: the target's initial file
	// when playing, the log file with Replay, the game version with ScoreOnly.
	Arg string
}

// LaunchConfig is the resolved, immutable description of one launch.
type LaunchConfig struct {
	TargetPath  string
	SavedGame   bool
	InitialFile string
	Options     string
	DisplayName string
}

// Session is the part of a pty session the launcher drives.
type Session interface {
	PID() int
	Settle(d time.Duration)
	Descriptors() (readFD, writeFD int, err error)
	Kill() error
	Close() error
}

// Controller hands a session, or a recorded game, to the controller program.
type Controller interface {
	Launch(tokens handoff.Tokens, displayName string, target controller.Killer) error
	Replay(logFile, opts string) error
}

// StartFunc starts the target under a pty.
type StartFunc func(execPath string, argv, env []string, size ptysession.Winsize) (Session, error)

// Launcher runs requests. Resolver and Controller are required.
type Launcher struct {
	Resolver   resolve.Resolver
	Controller Controller

	// Threshold supplies QuitAt for live play; nil keeps the requested value.
	Threshold scores.ThresholdFunc

	// Scores serves ScoreOnly requests.
	Scores scores.Dumper

	// StartPty defaults to ptysession.Start.
	StartPty StartFunc

	// Environ is the base environment of the target (default os.Environ).
	Environ func() []string

	Size        ptysession.Winsize
	SettleDelay time.Duration

	Version      string // shown in the display name
	User         string // shown in the display name
	ReplayLog    string // replayed when Request.Arg is empty
	ScoreVersion string // listed when Request.Arg is empty

	Stdout io.Writer
}

// Prepare resolves the target and encodes the options for req.
func (l *Launcher) Prepare(req Request) (LaunchConfig, error) {
	target, err := l.Resolver.Resolve(req.ExplicitTarget)
	if err != nil {
		return LaunchConfig{}, fmt.Errorf("resolve target: %w", err)
	}
	launchLog.Debug("target_resolved", "path", target)

	flags := req.Flags
	if !req.Replay && !req.ScoreOnly && l.Threshold != nil {
		flags.QuitAt = l.Threshold(target, ThresholdLabel)
	}

	lc := LaunchConfig{
		TargetPath:  target,
		SavedGame:   req.SavedGame,
		Options:     options.Encode(flags),
		DisplayName: options.DisplayName(l.Version, l.User),
	}
	if !req.Replay && !req.ScoreOnly {
		lc.InitialFile = req.Arg
	}
	return lc, nil
}

// Run performs req. Live play and replay replace the process image on
// success, so Run only returns for score listings and on failure.
func (l *Launcher) Run(req Request) error {
	lc, err := l.Prepare(req)
	if err != nil {
		return err
	}

	switch {
	case req.ScoreOnly:
		return l.dumpScores(firstNonEmpty(req.Arg, l.ScoreVersion))
	case req.Replay:
		logFile := firstNonEmpty(req.Arg, l.ReplayLog)
		launchLog.Info("replay", "log", logFile, "options", lc.Options)
		if err := l.Controller.Replay(logFile, lc.Options); err != nil {
			return fmt.Errorf("replay %s: %w", logFile, err)
		}
		return nil
	default:
		return l.Play(lc)
	}
}

// Play starts the target under a pty and hands it to the controller.
func (l *Launcher) Play(lc LaunchConfig) error {
	argv := ptysession.TargetArgv(lc.TargetPath, lc.SavedGame, lc.InitialFile)
	env := ptysession.MergeEnv(l.environ(), options.TargetEnv(options.TargetOptions(lc.DisplayName)))

	start := l.StartPty
	if start == nil {
		start = startPty
	}
	sess, err := start(lc.TargetPath, argv, env, l.size())
	if err != nil {
		return fmt.Errorf("start target: %w", err)
	}
	launchLog.Info("target_running", "pid", sess.PID(), "argv", argv)

	sess.Settle(l.SettleDelay)

	readFD, writeFD, err := sess.Descriptors()
	if err != nil {
		abandon(sess)
		return fmt.Errorf("hand off pty: %w", err)
	}
	tokens, err := handoff.Encode(readFD, writeFD, sess.PID(), lc.Options)
	if err != nil {
		abandon(sess)
		return fmt.Errorf("hand off pty: %w", err)
	}

	// Launch kills the target itself when no controller can be started.
	if err := l.Controller.Launch(tokens, lc.DisplayName, sess); err != nil {
		_ = sess.Close()
		return fmt.Errorf("launch controller: %w", err)
	}
	return nil
}

func (l *Launcher) dumpScores(version string) error {
	out := l.Stdout
	if out == nil {
		out = os.Stdout
	}
	if l.Scores == nil {
		return fmt.Errorf("score listing not configured")
	}
	if err := l.Scores.Dump(out, version); err != nil {
		return fmt.Errorf("list scores: %w", err)
	}
	return nil
}

func (l *Launcher) environ() []string {
	if l.Environ == nil {
		return os.Environ()
	}
	return l.Environ()
}

func (l *Launcher) size() ptysession.Winsize {
	if l.Size.Rows == 0 || l.Size.Cols == 0 {
		return ptysession.DefaultSize
	}
	return l.Size
}

// abandon kills a target nobody will ever talk to.
func abandon(sess Session) {
	if err := sess.Kill(); err != nil {
		launchLog.Error("target_kill_failed", "pid", sess.PID(), "error", err)
	}
	_ = sess.Close()
}

func startPty(execPath string, argv, env []string, size ptysession.Winsize) (Session, error) {
	s, err := ptysession.Start(execPath, argv, env, size)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
