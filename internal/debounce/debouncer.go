package debounce

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/metrics"
	"github.com/telhawk-systems/announcer/internal/middleware"
)

// FlushFunc receives the joined messages of one conversation. ctx is
// cancelled when the conversation is cancelled or the Debouncer closes.
type FlushFunc func(ctx context.Context, conversationID, text string)

type Config struct {
	Window  time.Duration
	MaxWait time.Duration
}

type conversation struct {
	machine *Machine
	timer   *time.Timer
	// gen invalidates timers that fired after being replaced.
	gen    uint64
	cancel context.CancelFunc
}

// Debouncer runs one Machine per conversation and flushes each on its own
// timer goroutine.
type Debouncer struct {
	cfg    Config
	flush  FlushFunc
	logger *logging.Logger
	now    func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
	closed        bool
	wg            sync.WaitGroup
}

func New(cfg Config, flush FlushFunc, logger *logging.Logger) *Debouncer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Debouncer{
		cfg:           cfg,
		flush:         flush,
		logger:        logger,
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
}

// Add buffers text for conversationID and returns the resulting state.
func (d *Debouncer) Add(conversationID, text string) State {
	text = strings.TrimSpace(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Idle
	}
	if text == "" {
		if c, ok := d.conversations[conversationID]; ok {
			return c.machine.State()
		}
		return Idle
	}

	c, ok := d.conversations[conversationID]
	if !ok {
		c = &conversation{machine: NewMachine(d.cfg.Window, d.cfg.MaxWait)}
		d.conversations[conversationID] = c
		metrics.BufferedConversations.Set(float64(len(d.conversations)))
	}
	c.machine.Input(text, d.now())
	d.schedule(conversationID, c)
	return c.machine.State()
}

// State returns the state of conversationID.
func (d *Debouncer) State(conversationID string) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conversations[conversationID]; ok {
		return c.machine.State()
	}
	return Idle
}

// Cancel drops the buffer of conversationID and cancels an in-flight flush.
// It reports whether there was anything to cancel.
func (d *Debouncer) Cancel(conversationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[conversationID]
	if !ok {
		return false
	}
	d.drop(conversationID, c)
	return true
}

// Close cancels every conversation and waits for running flushes to return.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for id, c := range d.conversations {
		d.drop(id, c)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// drop must be called with d.mu held.
func (d *Debouncer) drop(conversationID string, c *conversation) {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	c.machine.Reset()
	delete(d.conversations, conversationID)
	metrics.BufferedConversations.Set(float64(len(d.conversations)))
}

// schedule arms the timer for the machine's deadline. Must hold d.mu.
func (d *Debouncer) schedule(conversationID string, c *conversation) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	deadline, ok := c.machine.Deadline()
	if !ok {
		return
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(max(deadline.Sub(d.now()), 0), func() {
		d.fire(conversationID, c, gen)
	})
}

func (d *Debouncer) fire(conversationID string, c *conversation, gen uint64) {
	d.mu.Lock()
	if d.closed || c.gen != gen || d.conversations[conversationID] != c {
		d.mu.Unlock()
		return
	}
	texts, trigger, ok := c.machine.BeginFlush(d.now())
	if !ok {
		d.schedule(conversationID, c)
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(middleware.WithConversationID(context.Background(), conversationID))
	c.cancel = cancel
	c.timer = nil
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer cancel()

	metrics.DebounceFlushes.WithLabelValues(string(trigger)).Inc()
	d.logger.DebugContext(ctx, "flushing buffered conversation",
		"messages", len(texts),
		"trigger", string(trigger),
	)

	d.flush(ctx, conversationID, strings.Join(texts, "\n"))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conversations[conversationID] != c {
		// Cancelled while flushing.
		return
	}
	c.cancel = nil
	c.machine.EndFlush()
	if c.machine.State() == Idle {
		delete(d.conversations, conversationID)
		metrics.BufferedConversations.Set(float64(len(d.conversations)))
		return
	}
	d.schedule(conversationID, c)
}
