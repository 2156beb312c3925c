package tokenengine

import (
	"github.com/zjrosen/tokenengine/internal/log"
	"github.com/zjrosen/tokenengine/internal/tokenerr"
)

// lifecycleController owns the subscriptions to Buffer, TokenizerRegistry
// and language changes, and is responsible for keeping StateCache and the
// active tokenizerBinding consistent with the outside world. Every handler
// runs on the engine's owning goroutine; there is no locking here because
// there is nothing to lock against.
type lifecycleController struct {
	buf      Buffer
	registry TokenizerRegistry
	binding  *tokenizerBinding
	cache    *StateCache
	sink     ErrorSink

	unsubscribers []func()

	onReset func()
}

func newLifecycleController(buf Buffer, registry TokenizerRegistry, binding *tokenizerBinding, cache *StateCache, sink ErrorSink, onReset func()) *lifecycleController {
	return &lifecycleController{
		buf:      buf,
		registry: registry,
		binding:  binding,
		cache:    cache,
		sink:     sink,
		onReset:  onReset,
	}
}

// attach wires the four event handlers and performs the initial resolve +
// flush. enqueue converts each raw callback into a command run on the
// engine's owning goroutine.
func (l *lifecycleController) attach(enqueue func(func())) {
	if l.buf != nil {
		l.unsubscribers = append(l.unsubscribers,
			l.buf.OnContentChanged(func(changes []Change, isFlush bool) {
				enqueue(func() { l.onContentChanged(changes, isFlush) })
			}),
			l.buf.OnLanguageChanged(func(newLanguageID string) {
				enqueue(func() { l.onLanguageChanged(newLanguageID) })
			}),
			l.buf.OnAttachedChanged(func(attached bool) {
				enqueue(func() { l.onAttached(attached) })
			}),
		)
	}
	if l.registry != nil {
		l.unsubscribers = append(l.unsubscribers,
			l.registry.OnChanged(func(changedLanguageIDs []string) {
				enqueue(func() { l.onRegistryChanged(changedLanguageIDs) })
			}),
		)
	}

	l.resolveTokenizer()
	l.flush()
}

func (l *lifecycleController) detach() {
	for _, unsub := range l.unsubscribers {
		unsub()
	}
	l.unsubscribers = nil
}

// resolveTokenizer looks up the buffer's current language in the registry
// and, if found, calls GetInitialState under the same panic-to-error
// translation SafeTokenizer uses for Tokenize. A failure leaves binding.tok
// nil, which the scheduler and forced/viewport paths all treat as "nothing
// to do" rather than an error to propagate. A buffer that reports
// IsTooLarge also leaves binding.tok nil, without reporting an error.
func (l *lifecycleController) resolveTokenizer() BeginState {
	if l.buf == nil || l.registry == nil {
		l.binding.tok = nil
		return nil
	}

	languageID := l.buf.LanguageID()
	if l.buf.IsTooLarge() {
		l.binding.languageID = languageID
		l.binding.tok = nil
		return nil
	}
	tok, ok := l.registry.Get(languageID)
	if !ok {
		l.binding.languageID = languageID
		l.binding.tok = nil
		return nil
	}

	initial, err := l.safeInitialState(tok)
	if err != nil {
		log.ErrorErr(log.CatLifecycle, "tokenizer init failed", err, "language", languageID)
		l.sink.ReportError(&tokenerr.TokenizerInitError{LanguageID: languageID, Err: err})
		l.binding.languageID = languageID
		l.binding.tok = nil
		return nil
	}

	l.binding.languageID = languageID
	l.binding.tok = tok
	return initial
}

func (l *lifecycleController) safeInitialState(tok Tokenizer) (state BeginState, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, err = nil, panicError(r)
		}
	}()
	state = tok.GetInitialState()
	if state == nil {
		return nil, errNilInitialState
	}
	return state, nil
}

func (l *lifecycleController) flush() {
	if l.buf == nil || l.buf.IsTooLarge() {
		l.cache.Flush(nil)
		return
	}
	initial := l.binding.tok
	if initial == nil {
		l.cache.Flush(nil)
		return
	}
	state, err := l.safeInitialState(initial)
	if err != nil {
		l.cache.Flush(nil)
		return
	}
	l.buf.ClearTokens()
	l.cache.Flush(state)
}

func (l *lifecycleController) onContentChanged(changes []Change, isFlush bool) {
	if isFlush {
		l.flush()
		l.onReset()
		return
	}
	for _, ch := range changes {
		l.cache.ApplyEdits(ch.Range, ch.InsertedLineCount)
	}
	l.onReset()
}

func (l *lifecycleController) onLanguageChanged(newLanguageID string) {
	log.Info(log.CatLifecycle, "language changed", "language", newLanguageID)
	l.resolveTokenizer()
	l.flush()
	l.onReset()
}

func (l *lifecycleController) onAttached(attached bool) {
	if !attached {
		return
	}
	l.resolveTokenizer()
	l.flush()
	l.onReset()
}

// onRegistryChanged re-resolves and flushes only if the currently bound
// language is one of the ones that changed; an unrelated grammar update
// must not interrupt an in-flight tokenization of a different language.
func (l *lifecycleController) onRegistryChanged(changedLanguageIDs []string) {
	for _, id := range changedLanguageIDs {
		if id == l.binding.languageID {
			log.Info(log.CatLifecycle, "registry changed for active language", "language", id)
			l.resolveTokenizer()
			l.flush()
			l.onReset()
			return
		}
	}
}
