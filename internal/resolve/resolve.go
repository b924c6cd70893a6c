// Package resolve locates the target game executable.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/rogomatic/rogomatic/internal/fallback"
	"github.com/rogomatic/rogomatic/internal/logging"
)

var resolveLog = logging.ForComponent(logging.CompResolve)

// ErrExecutableNotFound indicates no accessible executable was found.
var ErrExecutableNotFound = errors.New("executable not found")

// Resolver finds the target executable. The zero value looks for "rogue"
// in the working directory only.
type Resolver struct {
	// DefaultName is the file looked up in Dir when no explicit path is given.
	DefaultName string

	// Dir is the directory searched for DefaultName ("" = working directory).
	Dir string

	// Fallbacks are tried in order after Dir/DefaultName. Empty entries
	// are skipped, which lets unset build-time paths sit in the list.
	Fallbacks []string
}

// Resolve returns the executable to launch. A non-empty explicit path must
// itself be accessible; otherwise the default name and then the fallbacks
// are tried in order.
func (r Resolver) Resolve(explicit string) (string, error) {
	if explicit != "" {
		if err := Accessible(explicit); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, explicit, err)
		}
		return explicit, nil
	}

	name := r.defaultName()
	local := name
	if r.Dir != "" {
		local = filepath.Join(r.Dir, name)
	}

	candidates := append([]string{local}, r.Fallbacks...)
	path, err := fallback.First(candidates, Accessible)
	if err != nil {
		resolveLog.Debug("no_target", "candidates", candidates, "error", err)
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
	}
	return path, nil
}

func (r Resolver) defaultName() string {
	if r.DefaultName == "" {
		return "rogue"
	}
	return r.DefaultName
}

// Accessible returns nil when path is an existing, executable, non-directory file.
func Accessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return unix.EISDIR
	}
	return unix.Access(path, unix.X_OK)
}
