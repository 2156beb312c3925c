package harness

import (
	"fmt"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

// ChromaRegistry adapts github.com/alecthomas/chroma/v2's lexer catalogue
// into a tokenengine.TokenizerRegistry, so the demo harness can highlight
// real source files without a hand-written grammar.
//
// chroma's Lexer.Tokenise re-lexes from scratch given a full input; it has
// no notion of a resumable begin/end state. ChromaTokenizer bridges this
// by carrying the buffer's text tokenized so far inside its BeginState and
// re-lexing the whole accumulated prefix plus the new line on every call,
// then slicing out the tokens that fall within the new line. This is
// quadratic in document length, which is why it is confined to the demo
// harness rather than the core engine.
type ChromaRegistry struct{}

// NewChromaRegistry returns a TokenizerRegistry backed by chroma's static
// lexer catalogue. The catalogue never changes at runtime, so OnChanged's
// subscription is a no-op whose unsubscribe function does nothing.
func NewChromaRegistry() *ChromaRegistry {
	return &ChromaRegistry{}
}

func (r *ChromaRegistry) Get(languageID string) (tokenengine.Tokenizer, bool) {
	lexer := lexers.Get(languageID)
	if lexer == nil {
		return nil, false
	}
	return &ChromaTokenizer{lexer: chroma.Coalesce(lexer)}, true
}

func (r *ChromaRegistry) OnChanged(fn func(changedLanguageIDs []string)) func() {
	return func() {}
}

// ChromaTokenizer is the tokenengine.Tokenizer for one chroma lexer.
type ChromaTokenizer struct {
	lexer chroma.Lexer
}

func (t *ChromaTokenizer) GetInitialState() tokenengine.BeginState {
	return &chromaState{lexer: t.lexer, priorText: ""}
}

func (t *ChromaTokenizer) Tokenize(text string, hasEOL bool, state tokenengine.BeginState) (tokenengine.TokenizationResult, error) {
	cs, ok := state.(*chromaState)
	if !ok {
		return tokenengine.TokenizationResult{}, fmt.Errorf("harness: unexpected state type %T", state)
	}

	line := text
	if hasEOL {
		line += "\n"
	}
	full := cs.priorText + line

	iterator, err := t.lexer.Tokenise(nil, full)
	if err != nil {
		return tokenengine.TokenizationResult{}, fmt.Errorf("chroma tokenise: %w", err)
	}

	var tokens []tokenengine.Token
	offset := 0
	priorLen := len(cs.priorText)
	for _, tok := range iterator.Tokens() {
		start := offset
		end := offset + len(tok.Value)
		offset = end
		if end <= priorLen {
			continue
		}
		relEnd := end - priorLen
		if relEnd > len(text) {
			relEnd = len(text)
		}
		if start < priorLen && relEnd == 0 {
			continue
		}
		tokens = append(tokens, tokenengine.Token{
			EndOffset: relEnd,
			Type:      mapChromaType(tok.Type),
		})
	}
	if len(tokens) == 0 {
		tokens = []tokenengine.Token{{EndOffset: len(text), Type: tokenengine.TokenOther}}
	}

	return tokenengine.TokenizationResult{
		Tokens:   tokens,
		EndState: &chromaState{lexer: t.lexer, priorText: full},
	}, nil
}

type chromaState struct {
	lexer     chroma.Lexer
	priorText string
}

func (s *chromaState) Clone() tokenengine.BeginState {
	return &chromaState{lexer: s.lexer, priorText: s.priorText}
}

func (s *chromaState) Equals(other tokenengine.BeginState) bool {
	o, ok := other.(*chromaState)
	return ok && o.priorText == s.priorText
}

func mapChromaType(t chroma.TokenType) tokenengine.TokenType {
	switch {
	case t.InCategory(chroma.Comment):
		return tokenengine.TokenComment
	case t.InCategory(chroma.LiteralString):
		return tokenengine.TokenString
	case t == chroma.LiteralStringRegex:
		return tokenengine.TokenRegEx
	default:
		return tokenengine.TokenOther
	}
}
