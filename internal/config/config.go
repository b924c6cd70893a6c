// Package config loads the launcher's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rogomatic/rogomatic/internal/options"
)

const (
	// FileName is the configuration file inside Dir().
	FileName = "config.toml"

	// HomeEnv overrides the configuration directory.
	HomeEnv = "ROGOMATIC_HOME"
)

// Config is the contents of config.toml.
type Config struct {
	Target     TargetSettings     `toml:"target"`
	Controller ControllerSettings `toml:"controller"`
	Pty        PtySettings        `toml:"pty"`
	Priority   PrioritySettings   `toml:"priority"`
	Scores     ScoreSettings      `toml:"scores"`
	Replay     ReplaySettings     `toml:"replay"`
	Logs       LogSettings        `toml:"logs"`

	// Home is the directory the configuration was loaded from.
	Home string `toml:"-"`
}

// TargetSettings configures how the game executable is found.
type TargetSettings struct {
	// DefaultName is looked up in the working directory first (default: rogue)
	DefaultName string `toml:"default_name"`

	// Fallbacks are tried after the build-time and platform paths
	Fallbacks []string `toml:"fallbacks"`
}

// ControllerSettings configures the controller program.
type ControllerSettings struct {
	// Paths are tried after ./player and the build-time path
	Paths []string `toml:"paths"`
}

// PtySettings configures the target's terminal.
type PtySettings struct {
	Rows uint16 `toml:"rows"`
	Cols uint16 `toml:"cols"`

	// SettleMS is the startup delay before the controller takes over
	SettleMS int `toml:"settle_ms"`
}

// PrioritySettings configures the scheduling hint.
type PrioritySettings struct {
	// Nice is the niceness applied to untrusted users (default: 4)
	Nice int `toml:"nice"`

	// PrivilegedUIDs keep their normal priority
	PrivilegedUIDs []int `toml:"privileged_uids"`
}

// ScoreSettings configures the score collaborators.
type ScoreSettings struct {
	// Dir holds rgmscore<version> files (default: config dir)
	Dir string `toml:"dir"`

	// QuitAt is the score at which the controller stops
	QuitAt int `toml:"quit_at"`

	// DefaultVersion is listed when -s is given without a version
	DefaultVersion string `toml:"default_version"`
}

// ReplaySettings configures -p.
type ReplaySettings struct {
	// DefaultLog is replayed when -p is given without a file
	DefaultLog string `toml:"default_log"`
}

// LogSettings configures the launcher's own log.
type LogSettings struct {
	Debug      bool   `toml:"debug"`
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		Target: TargetSettings{DefaultName: "rogue"},
		Pty:    PtySettings{Rows: 24, Cols: 80, SettleMS: 100},
		Priority: PrioritySettings{
			Nice: 4,
		},
		Scores: ScoreSettings{
			QuitAt:         options.NeverQuit,
			DefaultVersion: "5.4",
		},
		Replay: ReplaySettings{DefaultLog: "roguelog"},
		Logs:   LogSettings{Level: "info", Format: "json"},
	}
}

// Dir returns the configuration directory: $ROGOMATIC_HOME or ~/.rogomatic.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".rogomatic"), nil
}

// Path returns the path to config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads config.toml from Dir(). See LoadFile.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return withDirs(Defaults(), ""), nil
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path over the defaults. A missing
// file yields the defaults. A parse error yields the defaults and the error,
// so the caller can warn and carry on.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	dir := filepath.Dir(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return withDirs(cfg, dir), nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return withDirs(Defaults(), dir), fmt.Errorf("%s parse error: %w", FileName, err)
	}
	return withDirs(normalize(cfg), dir), nil
}

// normalize restores defaults for values a file set to zero.
func normalize(cfg Config) Config {
	def := Defaults()
	if cfg.Target.DefaultName == "" {
		cfg.Target.DefaultName = def.Target.DefaultName
	}
	if cfg.Pty.Rows == 0 {
		cfg.Pty.Rows = def.Pty.Rows
	}
	if cfg.Pty.Cols == 0 {
		cfg.Pty.Cols = def.Pty.Cols
	}
	if cfg.Pty.SettleMS <= 0 {
		cfg.Pty.SettleMS = def.Pty.SettleMS
	}
	if cfg.Scores.QuitAt <= 0 {
		cfg.Scores.QuitAt = def.Scores.QuitAt
	}
	if cfg.Scores.DefaultVersion == "" {
		cfg.Scores.DefaultVersion = def.Scores.DefaultVersion
	}
	if cfg.Replay.DefaultLog == "" {
		cfg.Replay.DefaultLog = def.Replay.DefaultLog
	}
	return cfg
}

func withDirs(cfg Config, dir string) Config {
	cfg.Home = dir
	if cfg.Scores.Dir == "" {
		cfg.Scores.Dir = dir
	}
	return cfg
}

// LogDir returns where the launcher log goes: the configured directory, the
// config home when debugging, or "" (discard).
func (c Config) LogDir(debug bool) string {
	if c.Logs.Dir != "" {
		return c.Logs.Dir
	}
	if debug || c.Logs.Debug {
		return c.Home
	}
	return ""
}

// SettleDelay returns the pty settle delay as a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Pty.SettleMS) * time.Millisecond
}
