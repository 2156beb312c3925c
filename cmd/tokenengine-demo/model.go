package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/tokenengine/internal/clock"
	"github.com/zjrosen/tokenengine/internal/harness"
	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

var (
	styleComment = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)
	styleString  = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	styleRegex   = lipgloss.NewStyle().Foreground(lipgloss.Color("174"))
	styleOther   = lipgloss.NewStyle()
	styleLineNo  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	styleStatus  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("235")).Padding(0, 1)
	styleFrontier = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// tickMsg drives periodic redraws so the viewer reflects background
// tokenization progress without waiting on a file change.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model is the bubbletea root model for the tokenization viewer. It reads
// buffer lines and published tokens through StubBuffer's locked accessors
// and the engine's counters through Engine.Stats; it never touches
// tokenengine internals directly.
type model struct {
	engine       *tokenengine.Engine
	buf          *harness.StubBuffer
	instanceID   string
	clock        clock.Clock
	lastReparse  time.Time
	scrollOffset int
	height       int
	width        int
}

func newModel(engine *tokenengine.Engine, buf *harness.StubBuffer, instanceID string) model {
	return model{
		engine:      engine,
		buf:         buf,
		instanceID:  instanceID,
		clock:       clock.RealClock{},
		lastReparse: time.Now(),
		height:      24,
		width:       80,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "down", "j":
			m.scrollOffset++
		case "up", "k":
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
		case "g":
			m.scrollOffset = 0
		}
		return m, nil
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	stats := m.engine.Stats()
	lineCount := m.buf.LineCount()

	visibleRows := m.height - 2
	if visibleRows < 1 {
		visibleRows = 1
	}

	var b strings.Builder
	for i := 0; i < visibleRows; i++ {
		lineNumber := m.scrollOffset + i + 1
		if lineNumber > lineCount {
			break
		}
		b.WriteString(styleLineNo.Render(fmt.Sprintf("%4d ", lineNumber)))
		rendered := renderLine(m.buf.LineText(lineNumber), m.buf.TokensForLine(lineNumber))
		if maxWidth := m.width - 5; maxWidth > 3 && ansi.StringWidth(rendered) > maxWidth {
			rendered = ansi.Truncate(rendered, maxWidth-3, "...")
		}
		b.WriteString(rendered)
		b.WriteString("\n")
	}

	status := fmt.Sprintf(
		"instance=%s  lines=%d  tokenized=%d  slices=%d  skip-ahead=%d  reparsed %s",
		m.instanceID, lineCount, stats.LinesTokenized, stats.SlicesRun, stats.SkipAheadHits,
		clock.FormatRelativeTimeFrom(m.lastReparse, m.clock.Now()),
	)
	return b.String() + "\n" + styleStatus.Render(status)
}

func renderLine(text string, tokens []tokenengine.Token) string {
	if len(tokens) == 0 {
		return styleFrontier.Render(text)
	}

	var b strings.Builder
	start := 0
	for _, tok := range tokens {
		if tok.EndOffset <= start || tok.EndOffset > len(text) {
			continue
		}
		segment := text[start:tok.EndOffset]
		b.WriteString(styleFor(tok.Type).Render(segment))
		start = tok.EndOffset
	}
	if start < len(text) {
		b.WriteString(styleOther.Render(text[start:]))
	}
	return b.String()
}

func styleFor(t tokenengine.TokenType) lipgloss.Style {
	switch t {
	case tokenengine.TokenComment:
		return styleComment
	case tokenengine.TokenString:
		return styleString
	case tokenengine.TokenRegEx:
		return styleRegex
	default:
		return styleOther
	}
}
