package tokenengine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tokenengine/internal/harness"
	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

type wordRegistry struct{}

func (wordRegistry) Get(languageID string) (tokenengine.Tokenizer, bool) {
	if languageID != "words" {
		return nil, false
	}
	return wordTokenizer{}, true
}

func (wordRegistry) OnChanged(fn func([]string)) func() { return func() {} }

// wordTokenizer classifies each space-separated run as TokenString if
// it starts with a quote, TokenComment if it starts with '#', else
// TokenOther. It carries no real cross-line state, so every line's begin
// state compares equal to every other: a re-tokenized line's end state
// always matches the next line's cached begin state, the condition
// StateCache's skip-ahead path keys on.
type wordTokenizer struct{}

type wordState struct{}

func (wordState) Clone() tokenengine.BeginState { return wordState{} }
func (wordState) Equals(other tokenengine.BeginState) bool {
	_, ok := other.(wordState)
	return ok
}

func (wordTokenizer) GetInitialState() tokenengine.BeginState { return wordState{} }

func (wordTokenizer) Tokenize(text string, hasEOL bool, state tokenengine.BeginState) (tokenengine.TokenizationResult, error) {
	var tokens []tokenengine.Token
	offset := 0
	for offset < len(text) {
		end := offset
		for end < len(text) && text[end] != ' ' {
			end++
		}
		if end > offset {
			typ := tokenengine.TokenOther
			switch text[offset] {
			case '"':
				typ = tokenengine.TokenString
			case '#':
				typ = tokenengine.TokenComment
			}
			tokens = append(tokens, tokenengine.Token{EndOffset: end, Type: typ})
		}
		offset = end + 1
	}
	if len(tokens) == 0 {
		tokens = []tokenengine.Token{{EndOffset: len(text), Type: tokenengine.TokenOther}}
	}
	return tokenengine.TokenizationResult{Tokens: tokens, EndState: wordState{}}, nil
}

func TestEngine_ForceTokenizationAdvancesFrontierSynchronously(t *testing.T) {
	buf := harness.NewStubBuffer("hello world\n# a comment\n\"quoted\" text\n", "words")
	host := harness.NewFakeHost(time.Unix(0, 0))
	sink := &collectingSink{}

	e := tokenengine.New(buf, wordRegistry{}, host, sink)
	defer e.Dispose()

	err := e.ForceTokenization(3)
	require.NoError(t, err)
	require.True(t, e.IsCheapToTokenize(1))
	require.True(t, e.IsCheapToTokenize(3))
}

func TestEngine_BackgroundSliceTokenizesViaIdleCallback(t *testing.T) {
	buf := harness.NewStubBuffer("a\nb\nc\n", "words")
	host := harness.NewFakeHost(time.Unix(0, 0))
	sink := &collectingSink{}

	e := tokenengine.New(buf, wordRegistry{}, host, sink)
	defer e.Dispose()

	require.True(t, host.HasPendingIdle())
	host.RunIdle(50 * time.Millisecond)

	stats := e.Stats()
	require.Greater(t, stats.LinesTokenized, 0)
}

func TestEngine_ContentChangeInvalidatesThenReschedules(t *testing.T) {
	buf := harness.NewStubBuffer("a\nb\nc\n", "words")
	host := harness.NewFakeHost(time.Unix(0, 0))
	sink := &collectingSink{}

	e := tokenengine.New(buf, wordRegistry{}, host, sink)
	defer e.Dispose()

	require.NoError(t, e.ForceTokenization(3))
	require.True(t, e.IsCheapToTokenize(3))

	buf.SetText("a\nchanged\nc\n")

	// Replacing line 2 invalidates it and the boundary line above it, so
	// the frontier drops back to 0 and line 3 is no longer cheap.
	require.False(t, e.IsCheapToTokenize(3))

	// The idle callback New requested predates the edit; once it is popped,
	// the one still pending is the request made after the edit.
	host.RunIdle(50 * time.Millisecond)
	require.True(t, host.HasPendingIdle())
}

func TestEngine_GetStandardTokenTypeIfInsertingCharacter(t *testing.T) {
	buf := harness.NewStubBuffer("hello world\n", "words")
	host := harness.NewFakeHost(time.Unix(0, 0))
	sink := &collectingSink{}

	e := tokenengine.New(buf, wordRegistry{}, host, sink)
	defer e.Dispose()

	require.NoError(t, e.ForceTokenization(1))

	typ, err := e.GetStandardTokenTypeIfInsertingCharacter(tokenengine.Position{Line: 1, Column: 0}, '"')
	require.NoError(t, err)
	require.Equal(t, tokenengine.TokenString, typ)
}

func TestEngine_DisposeStopsBackgroundWork(t *testing.T) {
	buf := harness.NewStubBuffer("a\nb\nc\n", "words")
	host := harness.NewFakeHost(time.Unix(0, 0))
	sink := &collectingSink{}

	e := tokenengine.New(buf, wordRegistry{}, host, sink)
	e.Dispose()

	require.Error(t, e.ForceTokenization(1))
}

type collectingSink struct {
	errs []error
}

func (s *collectingSink) ReportError(err error) { s.errs = append(s.errs, err) }
