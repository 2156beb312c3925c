package tokenengine

import (
	"time"

	"github.com/zjrosen/tokenengine/internal/log"
)

// sliceQuantum bounds a single uninterrupted work burst inside an idle
// window. The engine tokenizes lines one at a time and checks elapsed
// wall-clock after each; once a burst runs longer than sliceQuantum it
// flushes what it has and yields. The comparison is strictly-greater-than,
// not greater-or-equal, so that millisecond-rounding on a fast host never
// produces a zero-length slice that flushes nothing and spins.
const sliceQuantum = time.Millisecond

// cheapTokenizeThreshold is the rune-length below which tokenizing a
// single line synchronously is considered too fast to perceptibly stall
// the UI.
const cheapTokenizeThreshold = 2048

// tokenizerBinding is the (languageID, Tokenizer) pair the lifecycle
// controller resolves and the scheduler reads from on every tick. It is
// owned by Engine and shared between the two so a registry or language
// change is visible to in-flight scheduling without extra plumbing.
type tokenizerBinding struct {
	languageID string
	tok        Tokenizer
}

// scheduler drives StateCache work in three modes: background (idle-sliced,
// cooperative), synchronous force-to-line, and viewport priming. All three
// read and write the same StateCache and SafeTokenizer; the engine's single
// owning goroutine is what makes that safe without locks.
type scheduler struct {
	cache   *StateCache
	safeTok *SafeTokenizer
	buf     Buffer
	binding *tokenizerBinding
	host    Host
	sink    ErrorSink

	// enqueue hands a closure back to the engine's run loop, converting a
	// host-driven callback (which may fire on a goroutine the engine does
	// not own) into a command the single-threaded loop executes in turn.
	enqueue func(func())
	// disposed reports whether the owning engine has been torn down; the
	// scheduler consults it at every suspension boundary and exits a slice
	// without publishing tokens if it is set.
	disposed func() bool

	scheduled  bool
	generation uint64
	stats      EngineStats
}

func newScheduler(cache *StateCache, safeTok *SafeTokenizer, buf Buffer, binding *tokenizerBinding, host Host, sink ErrorSink, enqueue func(func()), disposed func() bool) *scheduler {
	return &scheduler{
		cache:    cache,
		safeTok:  safeTok,
		buf:      buf,
		binding:  binding,
		host:     host,
		sink:     sink,
		enqueue:  enqueue,
		disposed: disposed,
	}
}

// bumpGeneration invalidates any idle callback already in flight (e.g.
// requested before a reset). It is the re-entrancy guard called out by the
// "double idle-callback during long tails" open question: we do not trust
// the host to serialize callbacks, so a stale one is simply dropped.
func (s *scheduler) bumpGeneration() {
	s.generation++
	s.scheduled = false
}

// beginBackground is the single entry point for (re)triggering background
// work. It is idempotent: calling it while a callback is already scheduled
// is a no-op, guarded by the scheduled bit.
func (s *scheduler) beginBackground() {
	if s.disposed() {
		return
	}
	if s.buf == nil || !s.buf.IsAttached() {
		return
	}
	if s.binding.tok == nil {
		return
	}
	if s.cache.InvalidFrontier() >= s.buf.LineCount() {
		return
	}
	if s.scheduled {
		return
	}

	s.scheduled = true
	gen := s.generation
	s.host.RequestIdleCallback(func(deadline IdleDeadline) {
		s.enqueue(func() { s.onIdle(deadline, gen) })
	})
}

func (s *scheduler) onIdle(deadline IdleDeadline, gen uint64) {
	if gen != s.generation || s.disposed() {
		return
	}
	s.scheduled = false
	endTime := s.host.Now().Add(deadline.TimeRemaining())
	s.runSlice(endTime, gen)
}

// runSlice tokenizes invalid lines in ~1ms bursts, flushing a batch to the
// buffer after each burst, until either the idle window's endTime is
// reached (in which case background scheduling is re-requested for the
// next window) or there is no more work (in which case it simply stops;
// the gates in beginBackground will skip re-scheduling until new work
// appears).
func (s *scheduler) runSlice(endTime time.Time, gen uint64) {
	if gen != s.generation || s.disposed() {
		return
	}

	s.stats.SlicesRun++
	sliceStart := s.host.Now()
	var batch []LineTokens

	for {
		if s.disposed() {
			return
		}
		if s.cache.InvalidFrontier() >= s.buf.LineCount() {
			break
		}

		line := s.cache.InvalidFrontier()
		tokens, endState := s.tokenizeLine(line)
		batch = append(batch, LineTokens{LineNumber: line + 1, Tokens: tokens})
		s.cache.SetEndState(s.buf.LineCount(), line, endState)
		s.stats.LinesTokenized++

		if s.host.Now().Sub(sliceStart) > sliceQuantum {
			break
		}
	}

	if s.disposed() {
		return
	}
	if len(batch) > 0 {
		log.Debug(log.CatScheduler, "flushing background slice", "lines", len(batch), "frontier", s.cache.InvalidFrontier())
		s.buf.SetTokens(batch, false)
	}

	if s.cache.InvalidFrontier() >= s.buf.LineCount() {
		return
	}

	if s.host.Now().Before(endTime) {
		s.host.ScheduleZeroDelay(func() {
			s.enqueue(func() { s.runSlice(endTime, gen) })
		})
		return
	}

	s.beginBackground()
}

// forceTokenization synchronously tokenizes lines up to and including
// lineNumber (1-based). Because SetEndState's skip-ahead optimisation can
// itself advance InvalidFrontier past lineNumber, the loop re-reads the
// frontier every iteration instead of incrementing a local counter.
func (s *scheduler) forceTokenization(lineNumber int) {
	if s.binding.tok == nil {
		return
	}
	for s.cache.InvalidFrontier() < lineNumber && s.cache.InvalidFrontier() < s.buf.LineCount() {
		line := s.cache.InvalidFrontier()
		tokens, endState := s.tokenizeLine(line)
		s.buf.SetTokens([]LineTokens{{LineNumber: line + 1, Tokens: tokens}}, true)
		s.cache.SetEndState(s.buf.LineCount(), line, endState)
		s.stats.LinesTokenized++
	}
}

// tokenizeViewport produces provisional tokens for [startLine, endLine]
// (1-based, inclusive) without necessarily tokenizing the gap between the
// invalid frontier and startLine.
func (s *scheduler) tokenizeViewport(startLine, endLine int) {
	if s.binding.tok == nil {
		return
	}

	frontier := s.cache.InvalidFrontier()
	if endLine <= frontier {
		return
	}
	if startLine <= frontier {
		s.forceTokenization(endLine)
		return
	}

	state, prefix := s.buildSyntheticPrefix(startLine)
	for _, idx := range prefix {
		text := s.buf.LineText(idx + 1)
		result := s.safeTok.Tokenize(s.binding.tok, s.binding.languageID, text, false, state)
		state = result.EndState
	}

	var batch []LineTokens
	for ln := startLine; ln <= endLine; ln++ {
		text := s.buf.LineText(ln)
		result := s.safeTok.Tokenize(s.binding.tok, s.binding.languageID, text, true, state)
		batch = append(batch, LineTokens{LineNumber: ln, Tokens: result.Tokens})
		s.cache.MarkFake(ln - 1)
		state = result.EndState
	}
	s.buf.SetTokens(batch, true)
}

// buildSyntheticPrefix walks backwards from the line above startLine,
// collecting lines whose leading indentation is strictly less than the
// indentation of the last collected line (starting from startLine's own
// indentation), until a line with a cached begin state is found or the top
// of the buffer is reached. Lines with indentation 0 are skipped rather
// than collected. If no cached anchor is found, the tokenizer's initial
// state is used. The returned indices are 0-based and in top-down order.
func (s *scheduler) buildSyntheticPrefix(startLine int) (BeginState, []int) {
	anchorIndent := s.buf.LineIndent(startLine)
	var collected []int
	var anchorState BeginState

	for line := startLine - 1; line >= 1; line-- {
		indent := s.buf.LineIndent(line)
		if indent == 0 {
			continue
		}
		if indent >= anchorIndent {
			continue
		}
		collected = append(collected, line-1)
		anchorIndent = indent
		if st := s.cache.GetBeginState(line - 1); st != nil {
			anchorState = st
			break
		}
	}

	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}

	if anchorState == nil {
		anchorState = s.binding.tok.GetInitialState()
	}
	return anchorState, collected
}

func (s *scheduler) tokenizeLine(line int) ([]Token, BeginState) {
	text := s.buf.LineText(line + 1)
	hasEOL := line+1 < s.buf.LineCount()

	beginState := s.cache.GetBeginState(line)
	if beginState == nil {
		beginState = s.binding.tok.GetInitialState()
	}

	result := s.safeTok.Tokenize(s.binding.tok, s.binding.languageID, text, hasEOL, beginState)
	return result.Tokens, result.EndState
}

// isCheapToTokenize reports whether lineNumber (1-based) is either already
// tokenized, or is the very next invalid line and short enough that
// tokenizing it synchronously will not perceptibly stall the UI.
func (s *scheduler) isCheapToTokenize(lineNumber int) bool {
	frontier := s.cache.InvalidFrontier()
	if lineNumber <= frontier {
		return true
	}
	if lineNumber != frontier+1 {
		return false
	}
	return len([]rune(s.buf.LineText(lineNumber))) < cheapTokenizeThreshold
}
