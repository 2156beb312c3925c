package tokenengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	now       time.Time
	idleQueue []func(IdleDeadline)
	zeroQueue []func()
}

func (h *fakeHost) RequestIdleCallback(cb func(deadline IdleDeadline)) {
	h.idleQueue = append(h.idleQueue, cb)
}

func (h *fakeHost) ScheduleZeroDelay(cb func()) {
	h.zeroQueue = append(h.zeroQueue, cb)
}

func (h *fakeHost) Now() time.Time { return h.now }

func (h *fakeHost) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *fakeHost) runIdle(budget time.Duration) {
	cb := h.idleQueue[0]
	h.idleQueue = h.idleQueue[1:]
	cb(fixedDeadline{remaining: budget})
	for len(h.zeroQueue) > 0 {
		next := h.zeroQueue[0]
		h.zeroQueue = h.zeroQueue[1:]
		next()
	}
}

type fixedDeadline struct{ remaining time.Duration }

func (d fixedDeadline) TimeRemaining() time.Duration { return d.remaining }

type stepTokenizer struct {
	step time.Duration
	host *fakeHost
}

func (t *stepTokenizer) GetInitialState() BeginState { return fakeState{tag: "init"} }

func (t *stepTokenizer) Tokenize(text string, hasEOL bool, state BeginState) (TokenizationResult, error) {
	t.host.advance(t.step)
	return TokenizationResult{
		Tokens:   []Token{{EndOffset: len(text), Type: TokenOther}},
		EndState: fakeState{tag: "end"},
	}, nil
}

type fakeBuf struct {
	lines    []string
	attached bool
}

func (b *fakeBuf) LineCount() int { return len(b.lines) }
func (b *fakeBuf) LineText(lineNumber int) string {
	if lineNumber < 1 || lineNumber > len(b.lines) {
		return ""
	}
	return b.lines[lineNumber-1]
}
func (b *fakeBuf) LineIndent(lineNumber int) int { return 0 }
func (b *fakeBuf) IsAttached() bool              { return b.attached }
func (b *fakeBuf) IsTooLarge() bool              { return false }
func (b *fakeBuf) SetTokens(batch []LineTokens, completed bool) {}
func (b *fakeBuf) ClearTokens()                                 {}
func (b *fakeBuf) OnContentChanged(fn func([]Change, bool)) func() { return func() {} }
func (b *fakeBuf) OnLanguageChanged(fn func(string)) func()        { return func() {} }
func (b *fakeBuf) OnAttachedChanged(fn func(bool)) func()          { return func() {} }
func (b *fakeBuf) LanguageID() string                               { return "fake" }

func newTestScheduler(t *testing.T, lineCount int, step time.Duration) (*scheduler, *fakeHost, *fakeBuf) {
	t.Helper()
	buf := &fakeBuf{lines: make([]string, lineCount), attached: true}
	for i := range buf.lines {
		buf.lines[i] = "x"
	}
	host := &fakeHost{now: time.Unix(0, 0)}
	cache := NewStateCache()
	cache.Flush(fakeState{tag: "init"})
	binding := &tokenizerBinding{languageID: "fake"}
	binding.tok = &stepTokenizer{step: step, host: host}
	safeTok := NewSafeTokenizer(identityCodec{}, &recordingSink{})

	var enqueued []func()
	enqueue := func(fn func()) { enqueued = append(enqueued, fn) }
	drain := func() {
		for len(enqueued) > 0 {
			fn := enqueued[0]
			enqueued = enqueued[1:]
			fn()
		}
	}
	disposed := func() bool { return false }

	s := newScheduler(cache, safeTok, buf, binding, host, &recordingSink{}, func(fn func()) {
		enqueue(fn)
		drain()
	}, disposed)
	return s, host, buf
}

func TestScheduler_ForceTokenization_ReachesTargetLine(t *testing.T) {
	s, _, _ := newTestScheduler(t, 5, 0)

	s.forceTokenization(3)

	require.GreaterOrEqual(t, s.cache.InvalidFrontier(), 3)
}

func TestScheduler_RunSlice_YieldsInMultipleSlicesThenCompletes(t *testing.T) {
	s, host, buf := newTestScheduler(t, 10, 2*time.Millisecond)

	s.beginBackground()
	require.Len(t, host.idleQueue, 1)

	host.runIdle(100 * time.Millisecond)

	require.Equal(t, buf.LineCount(), s.cache.InvalidFrontier())
	require.Greater(t, s.stats.SlicesRun, 1)
}

func TestScheduler_RunSlice_StopsAtDeadlineAndResumesOnNextIdle(t *testing.T) {
	s, host, buf := newTestScheduler(t, 10, 2*time.Millisecond)

	s.beginBackground()
	host.runIdle(3 * time.Millisecond)

	require.Less(t, s.cache.InvalidFrontier(), buf.LineCount())
	require.NotEmpty(t, host.idleQueue)
}

func TestScheduler_IsCheapToTokenize(t *testing.T) {
	s, _, _ := newTestScheduler(t, 5, 0)

	require.True(t, s.isCheapToTokenize(1))
	require.False(t, s.isCheapToTokenize(5))

	s.forceTokenization(2)
	require.True(t, s.isCheapToTokenize(2))
	require.True(t, s.isCheapToTokenize(3))
}

func TestScheduler_ViewportSkipsToForceWhenWithinFrontier(t *testing.T) {
	s, _, _ := newTestScheduler(t, 10, 0)
	s.forceTokenization(5)

	s.tokenizeViewport(2, 7)

	require.GreaterOrEqual(t, s.cache.InvalidFrontier(), 7)
}

func TestScheduler_ViewportBeyondFrontierMarksFake(t *testing.T) {
	s, _, buf := newTestScheduler(t, 20, 0)
	_ = buf

	s.tokenizeViewport(10, 15)

	for i := 9; i < 15; i++ {
		require.False(t, s.cache.entries[i].valid)
	}
}
