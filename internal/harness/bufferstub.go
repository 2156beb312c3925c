package harness

import (
	"strings"
	"sync"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

const defaultMaxBytes = 20 * 1024 * 1024

// StubBuffer is an in-memory tokenengine.Buffer. Content updates arrive as
// full-text snapshots (SetText); a line-mode Myers diff against the
// previous snapshot synthesizes the incremental Change events a real
// editor buffer would have produced directly, which is what lets the demo
// harness drive the engine from a file watcher that only ever reads whole
// files.
type StubBuffer struct {
	mu         sync.RWMutex
	lines      []string
	languageID string
	attached   bool
	maxBytes   int

	contentSubs  map[int]func(changes []tokenengine.Change, isFlush bool)
	languageSubs map[int]func(newLanguageID string)
	attachedSubs map[int]func(attached bool)
	nextSubID    int

	tokens map[int][]tokenengine.Token
}

// NewStubBuffer returns a StubBuffer seeded with text under languageID,
// initially attached.
func NewStubBuffer(text, languageID string) *StubBuffer {
	return &StubBuffer{
		lines:        splitLines(text),
		languageID:   languageID,
		attached:     true,
		maxBytes:     defaultMaxBytes,
		contentSubs:  make(map[int]func([]tokenengine.Change, bool)),
		languageSubs: make(map[int]func(string)),
		attachedSubs: make(map[int]func(bool)),
		tokens:       make(map[int][]tokenengine.Token),
	}
}

func splitLines(text string) []string {
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}

func (b *StubBuffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

func (b *StubBuffer) LineText(lineNumber int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx := lineNumber - 1
	if idx < 0 || idx >= len(b.lines) {
		return ""
	}
	return b.lines[idx]
}

func (b *StubBuffer) LineIndent(lineNumber int) int {
	text := b.LineText(lineNumber)
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	if n == len([]rune(text)) {
		return 0
	}
	return n
}

func (b *StubBuffer) IsAttached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached
}

func (b *StubBuffer) IsTooLarge() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, l := range b.lines {
		total += len(l) + 1
	}
	return total > b.maxBytes
}

func (b *StubBuffer) SetTokens(batch []tokenengine.LineTokens, completed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, lt := range batch {
		b.tokens[lt.LineNumber] = lt.Tokens
	}
}

func (b *StubBuffer) ClearTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[int][]tokenengine.Token)
}

// TokensForLine returns the most recently published tokens for the given
// 1-based line, for the demo renderer to read.
func (b *StubBuffer) TokensForLine(lineNumber int) []tokenengine.Token {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tokens[lineNumber]
}

func (b *StubBuffer) OnContentChanged(fn func(changes []tokenengine.Change, isFlush bool)) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.contentSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.contentSubs, id)
		b.mu.Unlock()
	}
}

func (b *StubBuffer) OnLanguageChanged(fn func(newLanguageID string)) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.languageSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.languageSubs, id)
		b.mu.Unlock()
	}
}

func (b *StubBuffer) OnAttachedChanged(fn func(attached bool)) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.attachedSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.attachedSubs, id)
		b.mu.Unlock()
	}
}

func (b *StubBuffer) LanguageID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.languageID
}

// SetAttached flips attachment state and notifies subscribers.
func (b *StubBuffer) SetAttached(attached bool) {
	b.mu.Lock()
	b.attached = attached
	subs := snapshotAttached(b.attachedSubs)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(attached)
	}
}

// SetLanguageID switches the buffer's language and notifies subscribers.
func (b *StubBuffer) SetLanguageID(languageID string) {
	b.mu.Lock()
	b.languageID = languageID
	subs := snapshotLanguage(b.languageSubs)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(languageID)
	}
}

// Flush replaces the buffer's content wholesale and notifies subscribers
// with isFlush=true, bypassing diffing entirely. Used for initial load.
func (b *StubBuffer) Flush(text string) {
	b.mu.Lock()
	b.lines = splitLines(text)
	subs := snapshotContent(b.contentSubs)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(nil, true)
	}
}

// SetText diffs text against the buffer's current content in line mode and
// notifies content subscribers with the resulting incremental Changes.
func (b *StubBuffer) SetText(text string) {
	b.mu.Lock()
	oldText := strings.Join(b.lines, "\n")
	changes := diffToChanges(oldText, text)
	b.lines = splitLines(text)
	subs := snapshotContent(b.contentSubs)
	b.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	for _, fn := range subs {
		fn(changes, false)
	}
}

func snapshotContent(m map[int]func([]tokenengine.Change, bool)) []func([]tokenengine.Change, bool) {
	out := make([]func([]tokenengine.Change, bool), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func snapshotLanguage(m map[int]func(string)) []func(string) {
	out := make([]func(string), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func snapshotAttached(m map[int]func(bool)) []func(bool) {
	out := make([]func(bool), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

// diffToChanges runs sergi/go-diff's line-mode Myers diff between oldText
// and newText and converts the resulting edit script into
// tokenengine.Change values in 1-based buffer coordinates.
func diffToChanges(oldText, newText string) []tokenengine.Change {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var changes []tokenengine.Change
	oldLine := 0
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldLine += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted := countLines(d.Text)
			inserted := 0
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				inserted = countLines(diffs[i+1].Text)
				i++
			}
			changes = append(changes, tokenengine.Change{
				Range:             tokenengine.LineRange{StartLine: oldLine + 1, EndLine: oldLine + 1 + deleted},
				InsertedLineCount: inserted,
			})
			oldLine += deleted
		case diffmatchpatch.DiffInsert:
			inserted := countLines(d.Text)
			changes = append(changes, tokenengine.Change{
				Range:             tokenengine.LineRange{StartLine: oldLine + 1, EndLine: oldLine + 1},
				InsertedLineCount: inserted,
			})
		}
	}
	return changes
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + boolToInt(!strings.HasSuffix(text, "\n"))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
