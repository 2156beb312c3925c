// Package harness provides the concrete adapters a host application wires
// into a tokenengine.Engine: a production Host backed by real timers, a
// deterministic FakeHost for tests, a Buffer implementation over an
// in-memory line array fed by Myers diffs, a TokenizerRegistry-compatible
// chroma lexer adapter, and a file-watching content source.
package harness

import (
	"time"

	"github.com/zjrosen/tokenengine/internal/tokenengine"
)

// TimerHost is the production tokenengine.Host: idle callbacks are
// simulated with a short timer (Go has no browser-style requestIdleCallback,
// so a fixed budget window stands in for one), and zero-delay
// continuations use a timer with duration zero, which still yields to the
// runtime's scheduler between bursts.
type TimerHost struct {
	idleBudget time.Duration
}

// NewTimerHost returns a TimerHost that grants idleBudget to each
// simulated idle window.
func NewTimerHost(idleBudget time.Duration) *TimerHost {
	if idleBudget <= 0 {
		idleBudget = 16 * time.Millisecond
	}
	return &TimerHost{idleBudget: idleBudget}
}

func (h *TimerHost) RequestIdleCallback(cb func(deadline tokenengine.IdleDeadline)) {
	budget := h.idleBudget
	time.AfterFunc(time.Millisecond, func() {
		cb(fixedDeadline{remaining: budget})
	})
}

func (h *TimerHost) ScheduleZeroDelay(cb func()) {
	time.AfterFunc(0, cb)
}

func (h *TimerHost) Now() time.Time { return time.Now() }

type fixedDeadline struct {
	remaining time.Duration
}

func (d fixedDeadline) TimeRemaining() time.Duration { return d.remaining }

// FakeHost is a deterministic tokenengine.Host for tests. Time only
// advances when the test calls Advance; idle and zero-delay callbacks are
// queued rather than fired, and are run explicitly via RunIdle/RunZeroDelay
// so a test controls exactly how much background work happens.
type FakeHost struct {
	now       time.Time
	idleQueue []func(tokenengine.IdleDeadline)
	zeroQueue []func()
}

// NewFakeHost returns a FakeHost whose clock starts at start.
func NewFakeHost(start time.Time) *FakeHost {
	return &FakeHost{now: start}
}

func (h *FakeHost) RequestIdleCallback(cb func(deadline tokenengine.IdleDeadline)) {
	h.idleQueue = append(h.idleQueue, cb)
}

func (h *FakeHost) ScheduleZeroDelay(cb func()) {
	h.zeroQueue = append(h.zeroQueue, cb)
}

func (h *FakeHost) Now() time.Time { return h.now }

// Advance moves the fake clock forward by d.
func (h *FakeHost) Advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// HasPendingIdle reports whether an idle callback is queued.
func (h *FakeHost) HasPendingIdle() bool { return len(h.idleQueue) > 0 }

// RunIdle pops and runs the oldest queued idle callback with the given
// budget, then drains every zero-delay continuation it schedules (and any
// further zero-delay continuations those schedule) before returning.
func (h *FakeHost) RunIdle(budget time.Duration) {
	if len(h.idleQueue) == 0 {
		return
	}
	cb := h.idleQueue[0]
	h.idleQueue = h.idleQueue[1:]
	cb(fixedDeadline{remaining: budget})
	h.drainZeroDelay()
}

func (h *FakeHost) drainZeroDelay() {
	for len(h.zeroQueue) > 0 {
		cb := h.zeroQueue[0]
		h.zeroQueue = h.zeroQueue[1:]
		cb()
	}
}
