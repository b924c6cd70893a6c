// Package scores holds the score-related collaborators of the launcher: the
// quit threshold handed to the controller and the score listing printed by
// the score-only mode.
package scores

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ThresholdFunc returns the score at which the controller should quit when
// playing execPath. label identifies the player in score files.
type ThresholdFunc func(execPath, label string) int

// FixedThreshold ignores its arguments and returns n.
func FixedThreshold(n int) ThresholdFunc {
	return func(string, string) int { return n }
}

// Dumper writes the score listing for a game version.
type Dumper interface {
	Dump(w io.Writer, version string) error
}

// FileDumper prints Dir/rgmscore<version> verbatim.
type FileDumper struct {
	Dir string
}

// FileName returns the score file for version.
func (d FileDumper) FileName(version string) string {
	return filepath.Join(d.Dir, "rgmscore"+version)
}

// Dump copies the score file to w. A missing file is reported on w and is
// not an error: there are simply no scores yet.
func (d FileDumper) Dump(w io.Writer, version string) error {
	name := d.FileName(version)
	f, err := os.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		_, err = fmt.Fprintf(w, "No scores recorded for Rogue %s.\n", version)
		return err
	}
	if err != nil {
		return fmt.Errorf("open score file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read score file %s: %w", name, err)
	}
	return nil
}
