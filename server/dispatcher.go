package server

import (
	"sync"

	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/partition"
	"github.com/psa-spm/spm-core/status"
)

// SignalMessage is the one signal bit a Dispatcher asserts on its
// partition's Loop whenever at least one active message is pending.
// spec.md §4.4 allows a partition to expose one signal per RoT service;
// this reference implementation collapses that to a single doorbell,
// since a partition here processes one message at a time regardless of
// which of its SIDs it targets; handlers tell SIDs apart via
// Context.SID.
const SignalMessage uint32 = 1

type pendingEntry struct {
	msg      *ipc.ActiveMessage
	complete func(status.Code)
}

// Dispatcher is a partition's message inbox: Enqueue (called by package
// client) appends a message and asserts SignalMessage on the
// partition's Loop; the partition's own handler goroutine calls Wait
// then Get in a loop, exactly mirroring psa_wait()/psa_get().
type Dispatcher struct {
	loop *partition.Loop

	mu      sync.Mutex
	pending []pendingEntry
}

// NewDispatcher constructs a Dispatcher bound to loop.
func NewDispatcher(loop *partition.Loop) *Dispatcher {
	return &Dispatcher{loop: loop}
}

// Enqueue appends msg to the inbox and wakes any blocked Wait call.
// complete is invoked exactly once, when the handler calls
// Context.Reply.
func (d *Dispatcher) Enqueue(msg *ipc.ActiveMessage, complete func(status.Code)) {
	d.mu.Lock()
	d.pending = append(d.pending, pendingEntry{msg: msg, complete: complete})
	d.mu.Unlock()
	d.loop.Assert(SignalMessage)
}

// Wait blocks (block=true, PSA_BLOCK) until at least one message is
// pending, or polls (block=false, PSA_POLL) and returns immediately
// with whatever is pending right now, possibly zero. The asserted
// signal word is always SignalMessage or 0, since this Dispatcher
// asserts nothing else. Returns partition.ErrLoopTerminated if the
// partition's Loop is shut down while blocked.
func (d *Dispatcher) Wait(block bool) (uint32, error) {
	return d.loop.Wait(SignalMessage, block)
}

// Get dequeues the oldest pending message and returns a Context for it.
// Returns ok=false if the inbox was empty (a spurious wake, or a caller
// that did not first observe SignalMessage via Wait).
func (d *Dispatcher) Get() (ctx *Context, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, false
	}
	e := d.pending[0]
	d.pending = d.pending[1:]
	if len(d.pending) == 0 {
		d.loop.Clear(SignalMessage)
	}
	return newContext(e.msg, e.complete), true
}
