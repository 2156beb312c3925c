package tokenengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/tokenengine/internal/cachemanager"
	"github.com/zjrosen/tokenengine/internal/log"
	"github.com/zjrosen/tokenengine/internal/tokenerr"
)

// Engine is the per-buffer tokenization driver. It owns exactly one
// goroutine; every piece of mutable state reachable from this type
// (StateCache, tokenizerBinding, scheduler bookkeeping) is touched only
// from that goroutine, reached either by a direct call from it or by a
// closure pushed onto cmds. Exported methods that need a result block on a
// per-call done channel; fire-and-forget notifications (buffer/registry
// events) do not.
//
// This mirrors a single-threaded cooperative scheduler without requiring
// callers to run on a shared event loop themselves: Engine supplies its
// own.
type Engine struct {
	cmds    chan func()
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	cache     *StateCache
	binding   *tokenizerBinding
	buf       Buffer
	sched     *scheduler
	lifecycle *lifecycleController
	sink      ErrorSink

	// probeCache memoizes GetStandardTokenTypeIfInsertingCharacter answers,
	// keyed on the begin state's identity plus the spliced input. Editors
	// call this probe on every keystroke for auto-closing-pair decisions,
	// and the same (state, text, column, char) tuple recurs constantly
	// while a user types inside an unchanged line. The read-through wrapper
	// keeps the "check cache, else compute and populate" shape out of
	// probeInsertedCharacter itself.
	probeCache *cachemanager.ReadThroughCache[string, TokenType, probeInput]

	stats EngineStats
}

// New constructs an Engine bound to buf and registry, driven by host, with
// non-fatal errors delivered to sink. The engine begins running its owning
// goroutine immediately and subscribes to buf/registry events before
// returning.
func New(buf Buffer, registry TokenizerRegistry, host Host, sink ErrorSink) *Engine {
	e := &Engine{
		cmds:    make(chan func(), 64),
		stopCh:  make(chan struct{}),
		cache:   NewStateCache(),
		binding: &tokenizerBinding{},
		buf:     buf,
		sink:    sink,
	}
	probeStore := cachemanager.NewInMemoryCacheManager[string, TokenType](
		"insert-char-probe", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	e.probeCache = cachemanager.NewReadThroughCache[string, TokenType, probeInput](
		probeStore, e.computeInsertedCharacterType, false)

	safeTok := NewSafeTokenizer(identityCodec{}, sink)
	e.sched = newScheduler(e.cache, safeTok, buf, e.binding, host, sink, e.enqueue, e.closed.Load)
	e.lifecycle = newLifecycleController(buf, registry, e.binding, e.cache, sink, e.onResetLocked)

	e.wg.Add(1)
	go e.loop()

	e.runSync(func() {
		e.lifecycle.attach(e.enqueue)
		e.sched.beginBackground()
	})

	return e
}

// identityCodec is the default LanguageIDCodec used when the caller does
// not need null-tokenization fallbacks tagged with a real registry
// encoding; it simply hashes nothing and returns 0, since Engine itself
// never inspects Token.LanguageID.
type identityCodec struct{}

func (identityCodec) Encode(string) int { return 0 }

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case cmd := <-e.cmds:
			cmd()
		case <-e.stopCh:
			e.drain()
			return
		}
	}
}

// drain runs any commands already queued before stopCh was closed, so a
// caller blocked in runSync during Dispose still gets unblocked rather
// than hanging forever.
func (e *Engine) drain() {
	for {
		select {
		case cmd := <-e.cmds:
			cmd()
		default:
			return
		}
	}
}

func (e *Engine) enqueue(fn func()) {
	if e.closed.Load() {
		return
	}
	select {
	case e.cmds <- fn:
	case <-e.stopCh:
	}
}

// runSync enqueues fn and blocks until it has run, returning
// tokenerr.ErrDisposed instead if the engine is already disposed.
func (e *Engine) runSync(fn func()) error {
	if e.closed.Load() {
		return tokenerr.ErrDisposed
	}
	done := make(chan struct{})
	e.enqueue(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-e.stopCh:
		return tokenerr.ErrDisposed
	}
}

func (e *Engine) onResetLocked() {
	e.sched.bumpGeneration()
	e.sched.beginBackground()
}

// Reset discards all cached tokenizer state and re-flushes from scratch,
// as if the buffer had just been attached. Intended for host-driven
// scenarios (e.g. a manual "reparse" command) outside the normal
// content-changed/language-changed/attached event flow.
func (e *Engine) Reset() error {
	return e.runSync(func() {
		e.lifecycle.resolveTokenizer()
		e.lifecycle.flush()
		e.onResetLocked()
	})
}

// ForceTokenization synchronously tokenizes every line up to and
// including lineNumber (1-based), blocking until done. Returns
// tokenerr.ErrNoTokenizer if no tokenizer is bound for the buffer's
// current language.
func (e *Engine) ForceTokenization(lineNumber int) error {
	var resultErr error
	err := e.runSync(func() {
		if e.binding.tok == nil {
			resultErr = tokenerr.ErrNoTokenizer
			return
		}
		e.sched.forceTokenization(lineNumber)
	})
	if err != nil {
		return err
	}
	return resultErr
}

// TokenizeViewport synchronously produces provisional tokens covering
// [startLine, endLine] (1-based, inclusive), suitable for a just-scrolled
// viewport that must render before the background scheduler would
// otherwise reach it.
func (e *Engine) TokenizeViewport(startLine, endLine int) error {
	return e.runSync(func() {
		if e.binding.tok == nil {
			return
		}
		e.sched.tokenizeViewport(startLine, endLine)
	})
}

// IsCheapToTokenize reports whether lineNumber (1-based) can be
// synchronously tokenized, on the calling goroutine's critical path,
// without a perceptible stall: either it is already valid, or it is
// exactly the next invalid line and short.
func (e *Engine) IsCheapToTokenize(lineNumber int) bool {
	var result bool
	_ = e.runSync(func() {
		result = e.sched.isCheapToTokenize(lineNumber)
	})
	return result
}

// GetStandardTokenTypeIfInsertingCharacter predicts the TokenType that
// would result at pos if ch were inserted there, without mutating the
// buffer or the cache. It tokenizes a synthetic splice of the line's text
// using the cached begin state for pos.Line, and is used by editors to
// decide, for example, whether auto-closing a bracket would land inside a
// string or comment. It returns tokenerr.ErrNoTokenizer when no tokenizer
// is bound, and also when pos.Line lies past the invalid frontier and has
// no cached begin state.
func (e *Engine) GetStandardTokenTypeIfInsertingCharacter(pos Position, ch rune) (TokenType, error) {
	var result TokenType
	var resultErr error
	err := e.runSync(func() {
		if e.binding.tok == nil {
			resultErr = tokenerr.ErrNoTokenizer
			return
		}
		result, resultErr = e.probeInsertedCharacter(pos, ch)
	})
	if err != nil {
		return TokenOther, err
	}
	return result, resultErr
}

// probeInput is the read-through cache's miss-path input: everything
// computeInsertedCharacterType needs to tokenize the spliced line, carried
// alongside the cache key so the cache itself never inspects tokenizer
// internals.
type probeInput struct {
	beginState BeginState
	text       string
	col        int
	ch         rune
}

func (e *Engine) probeInsertedCharacter(pos Position, ch rune) (TokenType, error) {
	lineIdx := pos.Line - 1
	beginState := e.cache.GetBeginState(lineIdx)
	if beginState == nil {
		if lineIdx > e.cache.InvalidFrontier() {
			return TokenOther, tokenerr.ErrNoTokenizer
		}
		beginState = e.binding.tok.GetInitialState()
	}

	text := e.buf.LineText(pos.Line)
	runes := []rune(text)
	col := pos.Column
	if col < 0 {
		col = 0
	}
	if col > len(runes) {
		col = len(runes)
	}

	key := cachemanager.ProbeKey(fmt.Sprintf("%p", beginState), text, col, ch)
	input := probeInput{beginState: beginState, text: text, col: col, ch: ch}
	return e.probeCache.Get(context.Background(), key, input, cachemanager.ProbeTTL)
}

// computeInsertedCharacterType is the probe cache's miss path: tokenize the
// line with ch spliced in at in.col and report the type of the token
// covering the inserted character.
func (e *Engine) computeInsertedCharacterType(_ context.Context, in probeInput) (TokenType, error) {
	runes := []rune(in.text)
	spliced := string(runes[:in.col]) + string(in.ch) + string(runes[in.col:])

	safeTok := NewSafeTokenizer(identityCodec{}, e.sink)
	result := safeTok.Tokenize(e.binding.tok, e.binding.languageID, spliced, true, in.beginState)

	insertOffset := len(string(runes[:in.col]))
	tokenType := TokenOther
	found := false
	for _, tok := range result.Tokens {
		if insertOffset < tok.EndOffset {
			tokenType = tok.Type
			found = true
			break
		}
	}
	if !found && len(result.Tokens) > 0 {
		tokenType = result.Tokens[len(result.Tokens)-1].Type
	}
	return tokenType, nil
}

// Stats returns a snapshot of the engine's lifetime tokenization counters.
func (e *Engine) Stats() EngineStats {
	var result EngineStats
	_ = e.runSync(func() {
		result = EngineStats{
			LinesTokenized: e.sched.stats.LinesTokenized,
			SlicesRun:      e.sched.stats.SlicesRun,
			SkipAheadHits:  e.cache.SkipAheadHits(),
		}
	})
	return result
}

// Dispose tears down the engine: subscriptions are cancelled, any
// in-flight background slice observes closed and stops publishing, and
// the owning goroutine exits. Dispose is idempotent and safe to call more
// than once.
func (e *Engine) Dispose() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	log.Debug(log.CatLifecycle, "engine disposed")
	e.lifecycle.detach()
	close(e.stopCh)
	e.wg.Wait()
}
