package tokenengine

// lineEntry is the per-line cache record. An absent entry (index beyond
// len(entries)) is conceptually {nil, false}.
type lineEntry struct {
	beginState BeginState
	valid      bool
}

// StateCache is the ordered per-line array of (beginState, valid) pairs
// plus the invalidFrontier cursor the scheduler walks. It is the data
// structure that makes tokenization incremental: without it every edit
// would force a full re-scan from line 1, because a line's tokens depend
// on the tokenizer state it is entered with.
//
// StateCache is not safe for concurrent use; callers are expected to
// serialize access the way Engine does, on its single owning goroutine.
type StateCache struct {
	entries         []lineEntry
	invalidFrontier int
	skipAheadHits   int
}

// NewStateCache returns an empty cache. Use Flush to seed it.
func NewStateCache() *StateCache {
	return &StateCache{}
}

// Flush discards all entries. If initial is non-nil, LineEntry[0] is seeded
// with it (valid=false, so the scheduler still visits line 1).
func (c *StateCache) Flush(initial BeginState) {
	c.entries = nil
	c.invalidFrontier = 0
	if initial != nil {
		c.entries = []lineEntry{{beginState: initial, valid: false}}
	}
}

// Len reports the cache's logical line count, which may differ from the
// buffer's line count between an edit and the next scheduler tick.
func (c *StateCache) Len() int {
	return len(c.entries)
}

// InvalidFrontier is the smallest 0-based index whose entry is not yet
// known to be valid.
func (c *StateCache) InvalidFrontier() int {
	return c.invalidFrontier
}

// SkipAheadHits counts how many SetEndState calls resolved via the
// skip-ahead optimisation, for tests and the demo harness to observe.
func (c *StateCache) SkipAheadHits() int {
	return c.skipAheadHits
}

// GetBeginState returns the cached begin state for 0-based line index i,
// or nil if i is beyond the cache or has never been set.
func (c *StateCache) GetBeginState(i int) BeginState {
	if i < 0 || i >= len(c.entries) {
		return nil
	}
	return c.entries[i].beginState
}

func (c *StateCache) ensureLen(n int) {
	for len(c.entries) < n {
		c.entries = append(c.entries, lineEntry{})
	}
}

// SetEndState runs the propagation protocol after line i (0-based) has
// been tokenized with result endState, given the buffer's current line
// count. Line i is marked valid, and, unless i is the buffer's last line,
// line i+1's begin state is adopted from endState unless
// it already matched it, in which case the frontier skips ahead over any
// downstream lines that are still marked valid.
func (c *StateCache) SetEndState(bufferLineCount, i int, endState BeginState) {
	prev := c.GetBeginState(i + 1)

	c.ensureLen(i + 1)
	c.entries[i].valid = true
	c.invalidFrontier = i + 1

	if i == bufferLineCount-1 {
		return
	}

	if prev == nil || !endState.Equals(prev) {
		c.ensureLen(i + 2)
		c.entries[i+1] = lineEntry{beginState: endState, valid: false}
		return
	}

	// Skip-ahead: the tokenizer state flowing into line i+1 is unchanged,
	// so every downstream line previously marked valid is still valid
	// relative to its (unchanged) begin state.
	c.skipAheadHits++
	j := i + 1
	for j < len(c.entries) && c.entries[j].valid {
		j++
	}
	c.invalidFrontier = j
}

// MarkFake marks line i (0-based) invalid without touching its begin
// state. Used by viewport tokenization: tokens are published for
// rendering, but the cache withholds the validity claim so the background
// scheduler re-tokenizes the line properly once it reaches it.
func (c *StateCache) MarkFake(i int) {
	if i < 0 {
		return
	}
	c.ensureLen(i + 1)
	c.entries[i].valid = false
}

func (c *StateCache) invalidateIndex(idx int) {
	if idx < 0 || idx >= len(c.entries) {
		return
	}
	c.entries[idx].valid = false
	if idx < c.invalidFrontier {
		c.invalidFrontier = idx
	}
}

// ApplyEdits patches the cache for a single buffer edit. rng is in 1-based
// buffer line coordinates; insertedLineCount is the number of line breaks
// the inserted text introduced. A range entirely beyond the current cache
// length is a no-op.
func (c *StateCache) ApplyEdits(rng LineRange, insertedLineCount int) {
	deletedLineCount := rng.EndLine - rng.StartLine
	if deletedLineCount < 0 {
		deletedLineCount = 0
	}
	k := deletedLineCount
	if insertedLineCount < k {
		k = insertedLineCount
	}

	preLen := len(c.entries)

	// Invalidate the touched lines against pre-edit indices so the
	// boundary line above the edit, which may now join differently with
	// content below, is always re-tokenized.
	for j := k; j >= 0; j-- {
		idx := rng.StartLine - 1 + j - 1
		if idx >= 0 && idx < preLen {
			c.invalidateIndex(idx)
		}
	}

	if rng.StartLine-1 < preLen {
		c.spliceOut(rng.StartLine-1, deletedLineCount)
		c.spliceIn(rng.StartLine-1, insertedLineCount)
	}

	if c.invalidFrontier > len(c.entries) {
		c.invalidFrontier = len(c.entries)
	}
}

func (c *StateCache) spliceOut(start, count int) {
	if count <= 0 || start >= len(c.entries) {
		return
	}
	end := start + count
	if end > len(c.entries) {
		end = len(c.entries)
	}
	c.entries = append(c.entries[:start], c.entries[end:]...)
}

func (c *StateCache) spliceIn(start, count int) {
	if count <= 0 {
		return
	}
	if start > len(c.entries) {
		start = len(c.entries)
	}
	tail := append([]lineEntry{}, c.entries[start:]...)
	ins := make([]lineEntry, count)
	c.entries = append(c.entries[:start], append(ins, tail...)...)
}
