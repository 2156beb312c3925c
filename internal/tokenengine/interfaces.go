package tokenengine

import "time"

// Buffer is the text storage this engine drives tokenization over. The
// engine only ever calls the read accessors and the two token sinks; it
// never mutates buffer content.
type Buffer interface {
	LineCount() int
	// LineText returns the text of the given 1-based line, without its
	// line terminator.
	LineText(lineNumber int) string
	// LineIndent returns the column (0-based rune count) of the first
	// non-whitespace rune on the given 1-based line, or 0 for a blank line.
	LineIndent(lineNumber int) int
	IsAttached() bool
	IsTooLarge() bool

	// SetTokens publishes a batch of per-line token results. completed is
	// false for a background slice that may still be superseded, true for
	// a synchronous or viewport result.
	SetTokens(batch []LineTokens, completed bool)
	ClearTokens()

	// OnContentChanged subscribes to incremental edits (isFlush == false,
	// changes non-empty) and full flushes (isFlush == true). The returned
	// function cancels the subscription.
	OnContentChanged(fn func(changes []Change, isFlush bool)) func()
	// OnLanguageChanged subscribes to the buffer's language identifier
	// changing. The returned function cancels the subscription.
	OnLanguageChanged(fn func(newLanguageID string)) func()
	// OnAttachedChanged subscribes to the buffer gaining or losing a
	// visible view. The returned function cancels the subscription.
	OnAttachedChanged(fn func(attached bool)) func()

	// LanguageID returns the buffer's current language identifier.
	LanguageID() string
}

// Tokenizer is the pluggable, stateful, per-language lexer. A concrete
// implementation's Tokenize must not mutate the state it is given; the
// engine's SafeTokenizer clones before calling, but well-behaved
// tokenizers should treat state as read-only regardless.
type Tokenizer interface {
	GetInitialState() BeginState
	Tokenize(text string, hasEOL bool, state BeginState) (TokenizationResult, error)
}

// TokenizerRegistry maps a language identifier to its Tokenizer.
type TokenizerRegistry interface {
	Get(languageID string) (Tokenizer, bool)
	// OnChanged subscribes to registrations changing for one or more
	// language identifiers. The returned function cancels the subscription.
	OnChanged(fn func(changedLanguageIDs []string)) func()
}

// LanguageIDCodec encodes a language identifier into the small integer
// space used to tag null-tokenizer fallback results.
type LanguageIDCodec interface {
	Encode(languageID string) int
}

// IdleDeadline is the budget granted to a background slice by the Host.
type IdleDeadline interface {
	TimeRemaining() time.Duration
}

// Host abstracts the two scheduling primitives the background mode needs:
// an idle callback with a deadline, and a zero-delay continuation used to
// yield between 1ms work bursts inside the same idle window.
type Host interface {
	RequestIdleCallback(cb func(deadline IdleDeadline))
	ScheduleZeroDelay(cb func())
	Now() time.Time
}

// ErrorSink receives non-fatal errors. Nothing reported through it is
// retried automatically; a line that fails tokenization is revisited only
// when it becomes invalid again.
type ErrorSink interface {
	ReportError(err error)
}
