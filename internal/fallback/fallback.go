// Package fallback walks an ordered list of alternatives until one succeeds.
package fallback

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by First when every candidate failed.
var ErrExhausted = errors.New("no candidate succeeded")

// First calls try for each non-empty candidate in order and returns the
// first one for which try returns nil. When all fail, the returned error
// wraps ErrExhausted and every individual failure.
func First(candidates []string, try func(candidate string) error) (string, error) {
	var errs []error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		err := try(c)
		if err == nil {
			return c, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", c, err))
	}
	return "", errors.Join(append([]error{ErrExhausted}, errs...)...)
}
