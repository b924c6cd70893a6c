// Package privilege decides whether the invoking user may keep normal
// scheduling priority. It is an operational convenience, not access control.
package privilege

import "os"

// Predicate reports whether the current user is on the trusted list.
type Predicate func() bool

// Never is the predicate for installations without a trusted list.
func Never() bool { return false }

// AllowList returns a predicate that is true when getuid returns one of
// uids. A nil getuid means os.Getuid.
func AllowList(uids []int, getuid func() int) Predicate {
	if len(uids) == 0 {
		return Never
	}
	if getuid == nil {
		getuid = os.Getuid
	}
	allowed := make(map[int]struct{}, len(uids))
	for _, u := range uids {
		allowed[u] = struct{}{}
	}
	return func() bool {
		_, ok := allowed[getuid()]
		return ok
	}
}
