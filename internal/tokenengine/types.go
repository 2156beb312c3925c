// Package tokenengine drives a pluggable line-oriented tokenizer across an
// editable text buffer, producing per-line token streams in the background
// while keeping a validity cache of per-line tokenizer state so that an
// edit only forces re-tokenization of the lines whose entry state actually
// changed.
package tokenengine

// BeginState is the opaque tokenizer state handed down from one line to the
// next. The engine never inspects its contents; it only clones and compares
// it. Concrete tokenizers supply their own representation behind this
// capability pair.
type BeginState interface {
	Clone() BeginState
	Equals(other BeginState) bool
}

// TokenType classifies a token for rendering and for the standard-token-type
// probe used by bracket/auto-closing-pair heuristics.
type TokenType int

const (
	TokenOther TokenType = iota
	TokenComment
	TokenString
	TokenRegEx
)

// Token is a single lexical span within a line. EndOffset is an absolute,
// 0-based byte offset into the line's text, capped at len(text).
type Token struct {
	EndOffset  int
	Type       TokenType
	LanguageID int
}

// TokenizationResult is what a Tokenizer produces for one line: the tokens
// covering it, and the BeginState the next line should be entered with.
type TokenizationResult struct {
	Tokens   []Token
	EndState BeginState
}

// LineRange identifies a span of lines in 1-based buffer coordinates, as
// delivered by Buffer content-change events. StartLine is the first
// affected line; EndLine is one past the last deleted line (so an edit
// that touches nothing but inserts lines has StartLine == EndLine).
type LineRange struct {
	StartLine int
	EndLine   int
}

// Change is a single incremental edit reported by the Buffer.
type Change struct {
	Range             LineRange
	InsertedLineCount int
}

// LineTokens pairs a 1-based buffer line number with the tokens computed
// for it, the unit the engine flushes back to the Buffer.
type LineTokens struct {
	LineNumber int
	Tokens     []Token
}

// Position identifies a caret: Line is 1-based, Column is a 0-based rune
// offset into that line's text.
type Position struct {
	Line   int
	Column int
}

// EngineStats exposes counters useful for tests and the demo harness to
// observe scheduler behaviour without reaching into internals.
type EngineStats struct {
	LinesTokenized int
	SlicesRun      int
	SkipAheadHits  int
}
