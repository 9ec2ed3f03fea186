// Package debounce collects consecutive chat messages of one conversation
// into a single announcement before it is extracted.
package debounce

import (
	"time"
)

type State int

const (
	Idle State = iota
	Buffering
	Flushing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Flushing:
		return "flushing"
	}
	return "unknown"
}

// Trigger says why a buffer became due.
type Trigger string

const (
	// TriggerQuiet fires when no input arrived for the whole window.
	TriggerQuiet Trigger = "quiet"
	// TriggerMaxWait fires when the buffer has been open for max wait,
	// however often inputs keep arriving.
	TriggerMaxWait Trigger = "max_wait"
)

type batch struct {
	texts   []string
	firstAt time.Time
	lastAt  time.Time
}

func (b *batch) add(text string, now time.Time) {
	if len(b.texts) == 0 {
		b.firstAt = now
	}
	b.texts = append(b.texts, text)
	b.lastAt = now
}

// Machine is the per-conversation state machine. It holds no timers; the
// caller feeds it the current time.
//
//	Idle --Input--> Buffering --BeginFlush (due)--> Flushing --EndFlush--> Idle
//	                                                         \--EndFlush (inputs queued)--> Buffering
type Machine struct {
	window  time.Duration
	maxWait time.Duration

	state   State
	current batch
	// next collects inputs that arrive while Flushing.
	next batch
}

// NewMachine returns an Idle machine. maxWait below window is raised to window.
func NewMachine(window, maxWait time.Duration) *Machine {
	if maxWait < window {
		maxWait = window
	}
	return &Machine{window: window, maxWait: maxWait}
}

func (m *Machine) State() State {
	return m.state
}

// Input records one message received at now.
func (m *Machine) Input(text string, now time.Time) {
	switch m.state {
	case Idle:
		m.current.add(text, now)
		m.state = Buffering
	case Buffering:
		m.current.add(text, now)
	case Flushing:
		m.next.add(text, now)
	}
}

// Deadline returns when the buffer becomes due. ok is false unless Buffering.
func (m *Machine) Deadline() (deadline time.Time, ok bool) {
	if m.state != Buffering {
		return time.Time{}, false
	}
	quiet := m.current.lastAt.Add(m.window)
	capped := m.current.firstAt.Add(m.maxWait)
	if capped.Before(quiet) {
		return capped, true
	}
	return quiet, true
}

// Due reports whether the buffer should be flushed at now, and why.
func (m *Machine) Due(now time.Time) (Trigger, bool) {
	if m.state != Buffering {
		return "", false
	}
	if !now.Before(m.current.lastAt.Add(m.window)) {
		return TriggerQuiet, true
	}
	if !now.Before(m.current.firstAt.Add(m.maxWait)) {
		return TriggerMaxWait, true
	}
	return "", false
}

// BeginFlush moves a due buffer to Flushing and hands back its messages.
func (m *Machine) BeginFlush(now time.Time) ([]string, Trigger, bool) {
	trigger, due := m.Due(now)
	if !due {
		return nil, "", false
	}
	texts := m.current.texts
	m.current = batch{}
	m.state = Flushing
	return texts, trigger, true
}

// EndFlush completes a flush. Inputs queued meanwhile start the next buffer.
func (m *Machine) EndFlush() {
	if m.state != Flushing {
		return
	}
	if len(m.next.texts) > 0 {
		m.current = m.next
		m.next = batch{}
		m.state = Buffering
		return
	}
	m.state = Idle
}

// Reset discards everything and returns to Idle.
func (m *Machine) Reset() {
	m.current = batch{}
	m.next = batch{}
	m.state = Idle
}

// Pending returns the number of buffered messages not yet flushed.
func (m *Machine) Pending() int {
	return len(m.current.texts) + len(m.next.texts)
}
