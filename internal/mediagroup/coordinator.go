// Package mediagroup buffers Telegram album items and finalizes each album once.
//
// Telegram delivers every item of a media group as an independent update with
// no "last item" marker. The Coordinator collects items per group id and
// finalizes a group after a quiet period (debounce) following the most recent
// arrival. Finalization evaluates the whole group exactly once and hands the
// ordered items plus the verdict to the completion callback.
package mediagroup

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mymmrac/telego"
)

const (
	// DefaultDebounce is the quiet period after the last item before a group is finalized.
	DefaultDebounce = 200 * time.Millisecond

	// DefaultTTL bounds how long a group may stay buffered, measured from its oldest item.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often expired groups are purged.
	DefaultSweepInterval = time.Minute
)

// EvaluateFunc decides whether a finalized group is approved.
type EvaluateFunc func(msgs []*telego.Message) bool

// CompleteFunc receives a finalized group in arrival order with its verdict.
type CompleteFunc func(msgs []*telego.Message, approved bool)

// SubmitResult reports the state of a group after Submit.
// Complete is true only when the group had already been finalized;
// Approved and Messages are meaningful only then.
type SubmitResult struct {
	Complete bool
	Approved bool
	Messages []*telego.Message
}

// Options configures a Coordinator. Zero values fall back to the defaults.
type Options struct {
	Debounce      time.Duration
	TTL           time.Duration
	SweepInterval time.Duration
}

type bufferedMessage struct {
	msg *telego.Message
	at  time.Time
}

type entry struct {
	messages  []bufferedMessage
	validated bool
	approved  bool
	timer     *time.Timer
	gen       uint64 // bumped on every re-arm; a timer only finalizes its own generation

	evaluate   EvaluateFunc
	onComplete CompleteFunc
}

func (e *entry) snapshot() []*telego.Message {
	out := make([]*telego.Message, len(e.messages))
	for i, m := range e.messages {
		out[i] = m.msg
	}
	return out
}

// Coordinator is an in-memory, best-effort buffer of in-flight media groups.
// Safe for concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	groups map[string]*entry
	closed bool

	debounce      time.Duration
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stop      chan struct{}
	sweepDone chan struct{}
	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Coordinator and starts its background TTL sweep.
// Call Close to stop the sweep and cancel pending timers.
func New(opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	c := &Coordinator{
		groups:        make(map[string]*entry),
		debounce:      opts.Debounce,
		ttl:           opts.TTL,
		sweepInterval: opts.SweepInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Submit registers msg under groupID and re-arms the group's debounce timer.
//
// The evaluate and onComplete funcs of the first Submit for a group are the
// ones that fire; on later submissions for the same group they are ignored.
//
// If the group has already been finalized, Submit returns the existing verdict
// without buffering msg or invoking any callback again.
func (c *Coordinator) Submit(groupID string, msg *telego.Message, evaluate EvaluateFunc, onComplete CompleteFunc) SubmitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		slog.Debug("media group submit after close ignored", "media_group_id", groupID)
		return SubmitResult{}
	}

	e, ok := c.groups[groupID]
	if ok && e.validated {
		return SubmitResult{Complete: true, Approved: e.approved, Messages: e.snapshot()}
	}
	if !ok {
		e = &entry{evaluate: evaluate, onComplete: onComplete}
		c.groups[groupID] = e
	}

	e.messages = append(e.messages, bufferedMessage{msg: msg, at: c.now()})
	c.arm(groupID, e)

	return SubmitResult{}
}

// arm cancels the pending timer of e and schedules a new one. Caller holds c.mu.
func (c *Coordinator) arm(groupID string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(c.debounce, func() {
		c.finalize(groupID, e, gen)
	})
}

func (c *Coordinator) finalize(groupID string, e *entry, gen uint64) {
	c.mu.Lock()
	if !c.current(groupID, e, gen) {
		c.mu.Unlock()
		return
	}
	msgs := e.snapshot()
	evaluate := e.evaluate
	c.mu.Unlock()

	approved := evaluate != nil && evaluate(msgs)

	c.mu.Lock()
	// An item may have arrived while evaluating; its own timer finalizes the group.
	if !c.current(groupID, e, gen) {
		c.mu.Unlock()
		return
	}
	e.validated = true
	e.approved = approved
	e.timer = nil
	onComplete := e.onComplete
	if onComplete != nil {
		c.inflight.Add(1)
	}
	c.mu.Unlock()

	slog.Debug("media group finalized",
		"media_group_id", groupID,
		"messages", len(msgs),
		"approved", approved,
	)

	if onComplete != nil {
		defer c.inflight.Done()
		onComplete(msgs, approved)
	}
}

// current reports whether gen is still the live generation of the buffered entry e.
// Caller holds c.mu.
func (c *Coordinator) current(groupID string, e *entry, gen uint64) bool {
	if c.closed {
		return false
	}
	cur, ok := c.groups[groupID]
	return ok && cur == e && e.gen == gen && !e.validated
}

// IsValidated reports whether groupID has been finalized.
func (c *Coordinator) IsValidated(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.groups[groupID]
	return ok && e.validated
}

// Approval returns the verdict of a finalized group.
// ok is false when the group is unknown or not finalized yet.
func (c *Coordinator) Approval(groupID string) (approved, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.groups[groupID]
	if !found || !e.validated {
		return false, false
	}
	return e.approved, true
}

// Clear cancels any pending finalization and forgets groupID.
func (c *Coordinator) Clear(groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(groupID)
}

// Pending returns the number of buffered groups, finalized or not.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

func (c *Coordinator) removeLocked(groupID string) {
	e, ok := c.groups[groupID]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(c.groups, groupID)
}

func (c *Coordinator) sweepLoop() {
	defer close(c.sweepDone)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(c.now()); n > 0 {
				slog.Debug("expired media groups purged", "count", n)
			}
		}
	}
}

// sweep removes every group whose oldest item is older than the TTL.
func (c *Coordinator) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.groups {
		if len(e.messages) == 0 || now.Sub(e.messages[0].at) > c.ttl {
			c.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Close stops the sweep, cancels all pending timers and waits for completion
// callbacks that are already running. Submit after Close is a no-op.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		for id := range c.groups {
			c.removeLocked(id)
		}
		c.mu.Unlock()

		close(c.stop)
		<-c.sweepDone
		c.inflight.Wait()
	})
}
