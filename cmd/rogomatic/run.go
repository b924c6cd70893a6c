package main

import (
	"fmt"
	"os"
	"os/user"

	"golang.org/x/term"

	"github.com/rogomatic/rogomatic/internal/config"
	"github.com/rogomatic/rogomatic/internal/controller"
	"github.com/rogomatic/rogomatic/internal/launcher"
	"github.com/rogomatic/rogomatic/internal/logging"
	"github.com/rogomatic/rogomatic/internal/platform"
	"github.com/rogomatic/rogomatic/internal/privilege"
	"github.com/rogomatic/rogomatic/internal/ptysession"
	"github.com/rogomatic/rogomatic/internal/resolve"
	"github.com/rogomatic/rogomatic/internal/scores"
)

// runLaunch loads the configuration and performs req. On a successful live
// or replay launch the process image is replaced and this never returns.
func runLaunch(req launcher.Request) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rogomatic: warning: %v (using defaults)\n", err)
	}

	debug := req.Flags.DebugTrace || cfg.Logs.Debug
	logging.Init(logging.Config{
		LogDir:     cfg.LogDir(debug),
		Level:      logLevel(cfg.Logs.Level, debug),
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
		Debug:      debug,
	})
	defer logging.Shutdown()

	if !req.Flags.NoTerminal && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "rogomatic: warning: watch mode requested but stdout is not a terminal")
	}

	return newLauncher(cfg).Run(req)
}

func newLauncher(cfg config.Config) *launcher.Launcher {
	fallbacks := []string{newRogue, rogue}
	fallbacks = append(fallbacks, platform.Detect().GamePaths(cfg.Target.DefaultName)...)
	fallbacks = append(fallbacks, cfg.Target.Fallbacks...)

	return &launcher.Launcher{
		Resolver: resolve.Resolver{
			DefaultName: cfg.Target.DefaultName,
			Fallbacks:   fallbacks,
		},
		Controller: &controller.Launcher{
			Candidates: append([]string{"./" + controller.DefaultProgramName, player}, cfg.Controller.Paths...),
			Niceness:   cfg.Priority.Nice,
			Privileged: privilege.AllowList(cfg.Priority.PrivilegedUIDs, nil),
		},
		Threshold:    scores.FixedThreshold(cfg.Scores.QuitAt),
		Scores:       scores.FileDumper{Dir: cfg.Scores.Dir},
		Size:         ptysession.Winsize{Rows: cfg.Pty.Rows, Cols: cfg.Pty.Cols},
		SettleDelay:  cfg.SettleDelay(),
		Version:      version,
		User:         userName(),
		ReplayLog:    cfg.Replay.DefaultLog,
		ScoreVersion: cfg.Scores.DefaultVersion,
	}
}

func logLevel(configured string, debug bool) string {
	if debug {
		return "debug"
	}
	return configured
}

// userName is the login name shown in the player's banner.
func userName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}
