package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestMachine_QuietWindow(t *testing.T) {
	m := NewMachine(3*time.Second, 15*time.Second)
	assert.Equal(t, Idle, m.State())
	_, ok := m.Deadline()
	assert.False(t, ok)

	m.Input("part one", at(0))
	assert.Equal(t, Buffering, m.State())

	m.Input("part two", at(2*time.Second))
	deadline, ok := m.Deadline()
	require.True(t, ok)
	assert.Equal(t, at(5*time.Second), deadline, "each input resets the quiet window")

	_, due := m.Due(at(4 * time.Second))
	assert.False(t, due)
	texts, _, ok := m.BeginFlush(at(4 * time.Second))
	assert.False(t, ok)
	assert.Nil(t, texts)
	assert.Equal(t, Buffering, m.State())

	texts, trigger, ok := m.BeginFlush(at(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, TriggerQuiet, trigger)
	assert.Equal(t, []string{"part one", "part two"}, texts)
	assert.Equal(t, Flushing, m.State())

	m.EndFlush()
	assert.Equal(t, Idle, m.State())
	assert.Zero(t, m.Pending())
}

func TestMachine_MaxWaitGuaranteesProgress(t *testing.T) {
	m := NewMachine(3*time.Second, 15*time.Second)

	// Inputs arrive every second, faster than the quiet window.
	for i := range 20 {
		now := at(time.Duration(i) * time.Second)
		if texts, trigger, ok := m.BeginFlush(now); ok {
			assert.Equal(t, TriggerMaxWait, trigger)
			assert.Equal(t, at(15*time.Second), now)
			assert.Len(t, texts, 15)
			return
		}
		m.Input("more", now)
		deadline, ok := m.Deadline()
		require.True(t, ok)
		assert.False(t, deadline.After(at(15*time.Second)), "deadline never passes max wait")
	}
	t.Fatal("buffer was never flushed under continuous input")
}

func TestMachine_InputDuringFlushStartsNextBatch(t *testing.T) {
	m := NewMachine(time.Second, 5*time.Second)
	m.Input("first", at(0))

	texts, _, ok := m.BeginFlush(at(time.Second))
	require.True(t, ok)
	assert.Equal(t, []string{"first"}, texts)

	m.Input("second", at(1500*time.Millisecond))
	m.Input("third", at(1700*time.Millisecond))
	assert.Equal(t, Flushing, m.State(), "inputs during a flush do not interrupt it")
	assert.Equal(t, 2, m.Pending())
	_, ok = m.Deadline()
	assert.False(t, ok)

	m.EndFlush()
	assert.Equal(t, Buffering, m.State())
	deadline, ok := m.Deadline()
	require.True(t, ok)
	assert.Equal(t, at(2700*time.Millisecond), deadline)

	texts, _, ok = m.BeginFlush(deadline)
	require.True(t, ok)
	assert.Equal(t, []string{"second", "third"}, texts)
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine(time.Second, time.Second)
	m.Input("a", at(0))
	m.Reset()
	assert.Equal(t, Idle, m.State())
	assert.Zero(t, m.Pending())

	m.Input("b", at(0))
	_, _, ok := m.BeginFlush(at(time.Second))
	require.True(t, ok)
	m.Input("c", at(time.Second))
	m.Reset()
	m.EndFlush()
	assert.Equal(t, Idle, m.State())
}

func TestMachine_MaxWaitBelowWindow(t *testing.T) {
	m := NewMachine(3*time.Second, time.Second)
	m.Input("a", at(0))
	deadline, ok := m.Deadline()
	require.True(t, ok)
	assert.Equal(t, at(3*time.Second), deadline)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "buffering", Buffering.String())
	assert.Equal(t, "flushing", Flushing.String())
	assert.Equal(t, "unknown", State(42).String())
}
