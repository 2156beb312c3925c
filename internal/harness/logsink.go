package harness

import (
	"github.com/zjrosen/tokenengine/internal/log"
)

// LogSink reports engine errors through the structured logger rather than
// surfacing them to the user; tokenizer failures are expected to happen
// occasionally (a grammar bug, a pathological line) and are not fatal.
type LogSink struct{}

func (LogSink) ReportError(err error) {
	log.ErrorErr(log.CatTokenizer, "engine reported error", err)
}
