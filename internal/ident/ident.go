// Package ident generates identifiers for entities and checklist items.
package ident

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// New returns an identifier combining the current millisecond timestamp with
// a random suffix, both base36. Collisions within one process lifetime are
// astronomically unlikely; no guarantee is made across processes or clock
// skew, and the value is not cryptographically random.
func New() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	return ts + suffix
}
