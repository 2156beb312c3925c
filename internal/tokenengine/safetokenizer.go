package tokenengine

import (
	"fmt"

	"github.com/zjrosen/tokenengine/internal/tokenerr"
)

// SafeTokenizer wraps an untrusted Tokenizer: it clones state before every
// call so a misbehaving tokenizer cannot corrupt the cached copy, recovers
// from panics the same way it handles returned errors, and normalises
// token end-offsets so none lies outside [0, len(text)] of the line.
//
// SafeTokenizer holds no state of its own; it is safe to share across
// calls.
type SafeTokenizer struct {
	codec LanguageIDCodec
	sink  ErrorSink
}

// NewSafeTokenizer returns a SafeTokenizer that reports failures to sink
// and encodes null-tokenization results via codec.
func NewSafeTokenizer(codec LanguageIDCodec, sink ErrorSink) *SafeTokenizer {
	return &SafeTokenizer{codec: codec, sink: sink}
}

// Tokenize runs tok against text, falling back to a null tokenization (one
// token covering the whole line, state unchanged) if tok fails or panics.
func (s *SafeTokenizer) Tokenize(tok Tokenizer, languageID string, text string, hasEOL bool, state BeginState) TokenizationResult {
	cloned := state.Clone()

	result, err := s.call(tok, text, hasEOL, cloned)
	if err != nil {
		s.sink.ReportError(&tokenerr.TokenizerRuntimeError{LanguageID: languageID, Err: err})
		return s.nullResult(languageID, text, state)
	}

	s.normalizeOffsets(result.Tokens, len(text))
	return result
}

func (s *SafeTokenizer) call(tok Tokenizer, text string, hasEOL bool, state BeginState) (result TokenizationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panicked: %v", r)
		}
	}()
	result, err = tok.Tokenize(text, hasEOL, state)
	return result, err
}

// nullResult produces the single-token fallback. endState is the caller's
// state, unchanged, so a failing line does not poison downstream lines.
func (s *SafeTokenizer) nullResult(languageID, text string, endState BeginState) TokenizationResult {
	return TokenizationResult{
		Tokens: []Token{{
			EndOffset:  len(text),
			Type:       TokenOther,
			LanguageID: s.codec.Encode(languageID),
		}},
		EndState: endState,
	}
}

func (s *SafeTokenizer) normalizeOffsets(tokens []Token, textLen int) {
	for i := range tokens {
		if tokens[i].EndOffset > textLen {
			tokens[i].EndOffset = textLen
		}
		if tokens[i].EndOffset < 0 {
			tokens[i].EndOffset = 0
		}
	}
}
