// Package clock implements the hierarchical musical clock tree at the
// center of this module (spec.md components C1, C4 and C5): a tree of
// Clocks, each with its own TempoMap, where a parent advances real or
// virtual time on behalf of its children and children schedule wake-ups
// on their parent's queue instead of sleeping independently.
//
// This is a direct generalization of source/clock.py's Clock class, kept
// in the teacher repo's concurrency idiom (pkg/engine used sync.Cond and
// goroutines for its own producer/consumer wiring) rather than translated
// line-for-line from Python's threading primitives.
package clock

import (
	"sync"
	"time"

	"github.com/amane-labs/polyclock/pkg/logger"
	"github.com/amane-labs/polyclock/pkg/tempo"
)

// TimingPolicy controls how a master clock recovers from a forked body
// that runs long and makes the clock fall behind real time. Relative
// policy (the default) re-measures from the last sleep and so never tries
// to "catch up"; Absolute policy always sleeps toward a fixed offset from
// the clock's start time, which can result in a shorter-than-requested (or
// skipped) sleep to catch back up. Mirrors clock.py's timing_policy.
type TimingPolicy int

const (
	// Relative never tries to catch up after falling behind.
	Relative TimingPolicy = iota
	// Absolute always targets a fixed offset from the clock's start time.
	Absolute
)

// Option configures a Clock at construction via NewMaster.
type Option func(*Clock)

// WithName sets the clock's name, used only for logging.
func WithName(name string) Option { return func(c *Clock) { c.name = name } }

// WithPoolSize overrides DefaultPoolSize for the master's WorkerPool.
// Ignored on anything but the master (forked clocks share their master's
// pool).
func WithPoolSize(n int) Option { return func(c *Clock) { c.poolSizeOverride = n } }

// WithTimingPolicy sets the master's catch-up behavior.
func WithTimingPolicy(p TimingPolicy) Option { return func(c *Clock) { c.timingPolicy = p } }

// WithPreciseTiming toggles use of the two-phase precision sleep (SleepUntil)
// versus a plain time.Sleep for the master's waits. Defaults to true.
func WithPreciseTiming(b bool) Option { return func(c *Clock) { c.usePrecise = b } }

// Clock is one node of the clock tree. The zero value is not usable; build
// one with NewMaster and Fork.
type Clock struct {
	name         string
	parent       *Clock
	tempoMap     *tempo.Map
	parentOffset float64 // parent's own Time() at the moment this clock was forked

	timingPolicy TimingPolicy
	usePrecise   bool
	startTime    time.Time
	lastWaitTime time.Time
	logProcess   bool

	poolSizeOverride int
	pool             *WorkerPool // non-nil only on the master

	// Guards this clock's own children and queue (i.e. this clock acting
	// as "parent" toward them), plus the readyAndWaiting/finished state of
	// each direct child (conceptually the child's own fields, but only
	// ever touched while holding the parent's lock, since registering a
	// wake-up and flipping readyAndWaiting must be atomic together).
	mu       sync.Mutex
	cond     *sync.Cond
	children []*Clock
	queue    []wakeUp
	seq      int64

	readyAndWaiting bool // guarded by parent.mu; meaningless on the master
	finished        bool // guarded by parent.mu

	// The single-slot edge-triggered wake signal a non-master clock blocks
	// on between registering a wake-up and its parent waking it.
	wakeMu   sync.Mutex
	wakeCond *sync.Cond
	woken    bool
}

// NewMaster creates a master (root) clock: one with no parent, driving its
// own wall-clock sleeps and owning the WorkerPool every forked descendant
// ultimately submits tasks to.
func NewMaster(opts ...Option) *Clock {
	c := &Clock{
		tempoMap:     tempo.New(1.0),
		timingPolicy: Relative,
		usePrecise:   true,
	}
	c.cond = sync.NewCond(&c.mu)
	c.wakeCond = sync.NewCond(&c.wakeMu)
	for _, opt := range opts {
		opt(c)
	}
	now := time.Now()
	c.startTime = now
	c.lastWaitTime = now
	c.pool = NewWorkerPool(c.poolSizeOverride)
	return c
}

// Name returns the clock's name, or "" if none was given.
func (c *Clock) Name() string { return c.name }

// IsMaster reports whether this is a root clock.
func (c *Clock) IsMaster() bool { return c.parent == nil }

// master walks up to the root clock, which owns the WorkerPool.
func (c *Clock) master() *Clock {
	n := c
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// LogProcessingTime turns on a diagnostic log line, each time this clock is
// about to wait, reporting how long it spent processing since its last
// wait. Supplements source/clock.py's log_processing_time flag.
func (c *Clock) LogProcessingTime(on bool) { c.logProcess = on }

// StopLoggingProcessingTime turns the diagnostic log line back off.
// Supplements source/clock.py's stop_logging_processing_time.
func (c *Clock) StopLoggingProcessingTime() { c.logProcess = false }

// MasterOffset returns the recursive sum of parentOffset up the chain to
// the root, distinct from TimeInMaster: this is purely the accumulated
// "where this clock started" offset, with no contribution from the
// clock's own elapsed time. Supplements source/clock.py's master_offset.
func (c *Clock) MasterOffset() float64 {
	if c.IsMaster() {
		return 0
	}
	return c.parentOffset + c.parent.MasterOffset()
}

// Beats returns the cumulative number of beats elapsed on this clock.
func (c *Clock) Beats() float64 { return c.tempoMap.Beats() }

// Time returns the cumulative parent-time elapsed on this clock, i.e. how
// much time has passed on this clock's own tempo map, expressed in its
// parent's seconds.
func (c *Clock) Time() float64 { return c.tempoMap.Time() }

// TimeInParent returns this clock's current position expressed in its
// parent's own time coordinate (its parentOffset plus its own elapsed
// time). For the master this equals Time().
func (c *Clock) TimeInParent() float64 {
	if c.IsMaster() {
		return c.Time()
	}
	return c.parentOffset + c.Time()
}

// TimeInMaster returns this clock's current position expressed in the
// master clock's own time coordinate, recursively converting through every
// ancestor.
func (c *Clock) TimeInMaster() float64 {
	if c.IsMaster() {
		return c.Time()
	}
	return c.parent.timeInMasterAt(c.TimeInParent())
}

// timeInMasterAt converts a time t expressed in this clock's own
// coordinate up into the master's coordinate.
func (c *Clock) timeInMasterAt(t float64) float64 {
	if c.IsMaster() {
		return t
	}
	return c.parent.timeInMasterAt(c.parentOffset + t)
}

// AbsoluteRate returns the product of this clock's rate with every
// ancestor's rate up to the root, i.e. how many beats of this clock pass
// per master-second when every intervening tempo is compounded.
//
// source/clock.py only multiplies by the immediate parent's rate
// (self.rate * self.parent.rate); spec.md section 3 describes the
// recursive-to-root product instead. This implementation follows spec.md,
// since the spec is the authoritative contract and original_source is
// only consulted to resolve points the spec leaves ambiguous or silent,
// not to override an explicit statement (see DESIGN.md).
func (c *Clock) AbsoluteRate() float64 {
	rate := c.tempoMap.Rate()
	if c.parent != nil {
		rate *= c.parent.AbsoluteRate()
	}
	return rate
}

// Tempo setters, forwarded straight to this clock's own TempoMap. Per
// spec.md section 9's single-writer assumption (also documented in the
// tempo package doc), these are expected to be called only from this clock's own
// forked body.
func (c *Clock) SetBeatLength(beatLength float64)                       { c.tempoMap.SetBeatLength(beatLength) }
func (c *Clock) SetRate(rate float64)                                   { c.tempoMap.SetRate(rate) }
func (c *Clock) SetTempo(tempo float64)                                 { c.tempoMap.SetTempo(tempo) }
func (c *Clock) BeatLength() float64                                    { return c.tempoMap.BeatLength() }
func (c *Clock) Rate() float64                                          { return c.tempoMap.Rate() }
func (c *Clock) Tempo() float64                                         { return c.tempoMap.Tempo() }
func (c *Clock) SetBeatLengthTarget(target, transitionBeats float64, shape ...float64) {
	c.tempoMap.SetBeatLengthTarget(target, transitionBeats, shape...)
}
func (c *Clock) SetRateTarget(target, transitionBeats float64, shape ...float64) {
	c.tempoMap.SetRateTarget(target, transitionBeats, shape...)
}
func (c *Clock) SetTempoTarget(target, transitionBeats float64, shape ...float64) {
	c.tempoMap.SetTempoTarget(target, transitionBeats, shape...)
}

// Fork spawns a child clock and runs body on a pooled goroutine (see
// WorkerPool), passing it the child clock to drive its own waits through.
// The child is added to this clock's children before body starts and
// removed (along with any wake-up it had pending) once body returns or
// panics; a panic is not recovered, matching spec.md section 7's "errors
// originating inside a forked body are the collaborator's problem" — this
// clock only guarantees the tree stays consistent before the panic
// continues unwinding.
func (c *Clock) Fork(body func(child *Clock)) *Clock {
	child := &Clock{
		parent:       c,
		tempoMap:     tempo.New(1.0),
		parentOffset: c.Time(),
		timingPolicy: c.timingPolicy,
		usePrecise:   c.usePrecise,
	}
	child.cond = sync.NewCond(&child.mu)
	child.wakeCond = sync.NewCond(&child.wakeMu)
	now := time.Now()
	child.startTime = now
	child.lastWaitTime = now

	c.mu.Lock()
	c.children = append(c.children, child)
	c.mu.Unlock()

	c.master().pool.Submit(func() {
		defer func() {
			c.mu.Lock()
			c.children = removeClock(c.children, child)
			c.queue = removeWakeUpsFor(c.queue, child)
			c.cond.Broadcast()
			c.mu.Unlock()
			if r := recover(); r != nil {
				panic(r)
			}
		}()
		body(child)
	})
	return child
}

// ForkUnsynchronized runs body on a pooled goroutine with no clock of its
// own and no rendezvous with this clock's wait steps: it is fire-and-forget
// background work (e.g. audio playback) that should run concurrently
// without this clock's wait barrier ever needing it to be ready_and_waiting.
func (c *Clock) ForkUnsynchronized(body func()) {
	c.master().pool.Submit(body)
}

// WaitForChildrenToFinish blocks until every wake-up currently queued by a
// direct child has been serviced and no live children remain, without any
// upper bound on beats (unlike Wait). Forked subordinate clocks that never
// finish (e.g. an infinite loop) make this block forever, matching
// clock.py's wait_for_children_to_finish.
func (c *Clock) WaitForChildrenToFinish() {
	c.rendezvousBarrier()
	c.drainDueWakeUps(0, true)
}

// Wait advances this clock by beats beats, servicing any child wake-ups
// due before then in queue order, then sleeping (if this is the master) or
// registering its own wake-up with its parent (if not) for the remainder.
func (c *Clock) Wait(beats float64) {
	c.rendezvousBarrier()
	end := c.tempoMap.Beats() + beats
	c.drainDueWakeUps(end, false)

	remaining := end - c.tempoMap.Beats()
	wt := c.tempoMap.GetWaitTime(remaining)
	c.waitInParent(wt)
	c.tempoMap.Advance(remaining, wt)
}

// Sleep is an alias for Wait, matching source/clock.py's sleep() method
// (kept as a separate name there for readability at call sites; spec.md
// section 3 lists it as a synonym rather than a distinct operation).
func (c *Clock) Sleep(beats float64) { c.Wait(beats) }

// rendezvousBarrier blocks until every direct child is ready_and_waiting,
// i.e. each one is parked waiting for a wake-up rather than still running.
// This is spec.md section 8's rendezvous-safety law: the master only ever
// begins advancing time once every live child has nothing left to do but
// wait.
func (c *Clock) rendezvousBarrier() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !allReadyLocked(c.children) {
		c.cond.Wait()
	}
}

// drainDueWakeUps services queued wake-ups in order until either the queue
// is empty (unconditional) or the earliest entry is not due before end.
// Each iteration: pop the earliest wake-up, wait (in real time, or by
// registering with this clock's own parent) long enough to reach its
// parentTime, advance this clock's own tempo map to match, wake the child,
// and block until that child either finishes or re-arms (registers a new
// wake-up and goes ready_and_waiting again) before moving on to the next
// queued entry.
func (c *Clock) drainDueWakeUps(end float64, unconditional bool) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || (!unconditional && c.queue[0].parentTime >= end) {
			c.mu.Unlock()
			return
		}
		w := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		beatsTillWake := w.parentTime - c.tempoMap.Beats()
		parentWait := c.tempoMap.GetWaitTime(beatsTillWake)
		c.waitInParent(parentWait)
		c.tempoMap.Advance(beatsTillWake, parentWait)

		c.mu.Lock()
		w.clock.readyAndWaiting = false
		c.cond.Broadcast()
		c.mu.Unlock()
		w.clock.signalWake()

		c.mu.Lock()
		for containsClock(c.children, w.clock) && !w.clock.readyAndWaiting {
			c.cond.Wait()
		}
		c.mu.Unlock()
	}
}

// waitInParent is the leaf of the recursion: it is the one place actual
// time passes, either by sleeping for real (on the master) or by
// registering a wake-up with this clock's parent and blocking until woken
// (everywhere else). Mirrors clock.py's _wait_in_parent.
func (c *Clock) waitInParent(dt float64) {
	if c.logProcess {
		logger.LogInfo("clock %q processed for %s before its next wait", c.name, time.Since(c.lastWaitTime))
	}

	if dt > 0 {
		if c.IsMaster() {
			c.sleepAsMaster(dt)
		} else {
			c.registerWithParentAndBlock(dt)
		}
	}

	c.lastWaitTime = time.Now()
}

// runningBehindGrace is the tolerance spec.md sections 4.3 and 7 give a
// master clock whose stop-sleeping instant has already passed: only past
// this much does it warn and skip the sleep outright, rather than simply
// falling through to a (now effectively no-op) sleep call. Without this
// grace window, ordinary processing overruns of a few milliseconds would
// spuriously log "running behind" on every step instead of just quietly
// sleeping for whatever's left (possibly nothing).
const runningBehindGrace = 10 * time.Millisecond

// sleepAsMaster sleeps for dt parent-seconds, choosing a stop time
// according to timingPolicy: Absolute always targets a fixed offset from
// startTime (so a body that ran long gets a shorter sleep next time, to
// catch back up), Relative always targets a fixed offset from the last
// wait (so it never tries to catch up once behind). clock.py computes the
// same stop_sleeping_time distinction.
func (c *Clock) sleepAsMaster(dt float64) {
	var target time.Time
	if c.timingPolicy == Absolute {
		target = c.startTime.Add(time.Duration((c.tempoMap.Time() + dt) * float64(time.Second)))
	} else {
		target = c.lastWaitTime.Add(time.Duration(dt * float64(time.Second)))
	}

	if target.Before(time.Now().Add(-runningBehindGrace)) {
		logger.LogWarn("clock %q is running behind real time; not sleeping this step", c.name)
		return
	}
	if c.usePrecise {
		SleepUntil(target)
	} else {
		time.Sleep(time.Until(target))
	}
}

// registerWithParentAndBlock registers a wake-up on the parent's queue for
// dt beats of parent-time from now, marks this clock ready_and_waiting,
// and blocks on its own wake signal until the parent services that
// wake-up.
func (c *Clock) registerWithParentAndBlock(dt float64) {
	p := c.parent
	wakeAt := c.TimeInParent() + dt

	p.mu.Lock()
	p.queue = insertSorted(p.queue, wakeUp{parentTime: wakeAt, clock: c, seq: p.seq})
	p.seq++
	c.readyAndWaiting = true
	p.cond.Broadcast()
	p.mu.Unlock()

	c.waitForWake()
}

// waitForWake blocks until signalWake is called, consuming exactly one
// pending wake. This is the single-slot edge-triggered "wait_signal"
// spec.md describes: a clock blocking here has exactly one wake-up
// outstanding, and waking it clears the slot so the next registration
// starts fresh.
func (c *Clock) waitForWake() {
	c.wakeMu.Lock()
	for !c.woken {
		c.wakeCond.Wait()
	}
	c.woken = false
	c.wakeMu.Unlock()
}

func (c *Clock) signalWake() {
	c.wakeMu.Lock()
	c.woken = true
	c.wakeCond.Broadcast()
	c.wakeMu.Unlock()
}

func allReadyLocked(children []*Clock) bool {
	for _, ch := range children {
		if !ch.readyAndWaiting {
			return false
		}
	}
	return true
}

func containsClock(children []*Clock, target *Clock) bool {
	for _, ch := range children {
		if ch == target {
			return true
		}
	}
	return false
}

func removeClock(children []*Clock, target *Clock) []*Clock {
	kept := children[:0:0]
	for _, ch := range children {
		if ch != target {
			kept = append(kept, ch)
		}
	}
	return kept
}
