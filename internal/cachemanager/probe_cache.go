package cachemanager

import (
	"strconv"
	"time"
)

// ProbeTTL bounds how long a memoized
// GetStandardTokenTypeIfInsertingCharacter result stays valid. It is short
// because the underlying begin state it was computed against can itself go
// stale the moment the line above it re-tokenizes differently.
const ProbeTTL = 2 * time.Second

// ProbeKey builds the cache key for a character-insertion probe: the
// tokenizer's begin-state fingerprint, the line text, the insertion
// column, and the inserted rune all have to match for a cached answer to
// still apply.
func ProbeKey(stateFingerprint string, text string, column int, ch rune) string {
	return stateFingerprint + "\x00" + text + "\x00" + strconv.Itoa(column) + "\x00" + string(ch)
}
