package tokenengine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeState struct {
	tag string
}

func (s fakeState) Clone() BeginState { return s }

func (s fakeState) Equals(other BeginState) bool {
	o, ok := other.(fakeState)
	return ok && o.tag == s.tag
}

func TestStateCache_FlushSeedsLineZero(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "init"})

	require.Equal(t, 1, c.Len())
	require.Equal(t, 0, c.InvalidFrontier())
	require.Equal(t, fakeState{tag: "init"}, c.GetBeginState(0))
}

func TestStateCache_FlushNilClearsEverything(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "init"})
	c.Flush(nil)

	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.InvalidFrontier())
}

func TestStateCache_SetEndState_StateChangedAdvancesFrontierByOne(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})

	c.SetEndState(5, 0, fakeState{tag: "b"})

	require.Equal(t, 1, c.InvalidFrontier())
	require.Equal(t, fakeState{tag: "b"}, c.GetBeginState(1))
}

func TestStateCache_SetEndState_SkipAheadOverValidDownstream(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})
	// Seed lines 1..3 as already valid with begin state "a".
	c.SetEndState(5, 0, fakeState{tag: "a"})
	c.SetEndState(5, 1, fakeState{tag: "a"})
	c.SetEndState(5, 2, fakeState{tag: "a"})
	require.Equal(t, 3, c.InvalidFrontier())

	// Re-running line 0 with the same resulting state should skip back over
	// the still-valid lines 1 and 2.
	c.entries[0].valid = false
	c.invalidFrontier = 0
	c.SetEndState(5, 0, fakeState{tag: "a"})

	require.Equal(t, 3, c.InvalidFrontier())
	require.Equal(t, 1, c.SkipAheadHits())
}

func TestStateCache_SetEndState_LastLineStopsAtFrontier(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})

	c.SetEndState(1, 0, fakeState{tag: "b"})

	require.Equal(t, 1, c.InvalidFrontier())
	require.Equal(t, 1, c.Len())
}

func TestStateCache_MarkFake_DoesNotAdvanceFrontier(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})

	c.MarkFake(4)

	require.Equal(t, 0, c.InvalidFrontier())
	require.Equal(t, 5, c.Len())
}

func TestStateCache_ApplyEdits_PureInsertionInvalidatesBoundaryLine(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "s0"})
	// Distinct tags per line so a splice that silently reuses the wrong
	// entry shows up as a tag mismatch, not just a count mismatch.
	c.SetEndState(5, 0, fakeState{tag: "s1"})
	c.SetEndState(5, 1, fakeState{tag: "s2"})
	c.SetEndState(5, 2, fakeState{tag: "s3"})
	require.Equal(t, 3, c.InvalidFrontier())
	require.Equal(t, 4, c.Len())

	// Insert 2 new lines after line 2 (1-based); nothing deleted. Pre-edit
	// entries are [s0(valid) s1(valid) s2(valid) s3(invalid)]; the two new
	// lines land at indices 2 and 3, pushing s2/s3 down to 4/5, and the
	// boundary line above the edit (index 1, "s1") is invalidated.
	c.ApplyEdits(LineRange{StartLine: 3, EndLine: 3}, 2)

	require.Equal(t, 6, c.Len())
	require.Equal(t, 1, c.InvalidFrontier())
	require.Equal(t, fakeState{tag: "s0"}, c.GetBeginState(0))
	require.Equal(t, fakeState{tag: "s1"}, c.GetBeginState(1))
	require.Nil(t, c.GetBeginState(2))
	require.Nil(t, c.GetBeginState(3))
	require.Equal(t, fakeState{tag: "s2"}, c.GetBeginState(4))
	require.Equal(t, fakeState{tag: "s3"}, c.GetBeginState(5))
}

func TestStateCache_ApplyEdits_DeletionShrinksCache(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "s0"})
	// Distinct tags per line so a splice one line off (as this test once
	// caught) shows up as the wrong entry surviving, not just a right count.
	for i := 0; i < 4; i++ {
		c.SetEndState(5, i, fakeState{tag: fmt.Sprintf("s%d", i+1)})
	}
	require.Equal(t, 4, c.InvalidFrontier())
	require.Equal(t, 5, c.Len())

	// Delete lines 2..3 (1-based), nothing inserted. Pre-edit entries are
	// [s0(valid) s1(valid) s2(valid) s3(valid) s4(invalid)] at indices 0..4;
	// deleting lines 2..3 removes indices 1..2 (s1, s2), leaving [s0 s3 s4],
	// and the boundary line above the edit (index 0, "s0") is invalidated.
	c.ApplyEdits(LineRange{StartLine: 2, EndLine: 4}, 0)

	require.Equal(t, 3, c.Len())
	require.Equal(t, 0, c.InvalidFrontier())
	require.Equal(t, fakeState{tag: "s0"}, c.GetBeginState(0))
	require.Equal(t, fakeState{tag: "s3"}, c.GetBeginState(1))
	require.Equal(t, fakeState{tag: "s4"}, c.GetBeginState(2))
}

func TestStateCache_ApplyEdits_BeyondCacheIsNoop(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})

	require.NotPanics(t, func() {
		c.ApplyEdits(LineRange{StartLine: 50, EndLine: 52}, 1)
	})
}

func TestStateCache_GetBeginState_OutOfRangeIsNil(t *testing.T) {
	c := NewStateCache()
	c.Flush(fakeState{tag: "a"})

	require.Nil(t, c.GetBeginState(-1))
	require.Nil(t, c.GetBeginState(99))
}
