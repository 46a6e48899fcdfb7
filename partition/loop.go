// Package partition implements the per-partition scheduling unit of
// spec.md §4.4: one goroutine per partition processing a FIFO queue of
// submitted work, plus a signal-mask wait/assert primitive a service
// handler blocks on between messages (the Go analogue of psa_wait()).
package partition

import (
	"errors"
	"sync"
)

// ErrLoopTerminated is returned by Submit/SubmitInternal once the loop
// has been told to stop. Mirrors the teacher's Loop contract in
// options.go ("Submit...Returns ErrLoopTerminated if the loop has been
// shut down").
var ErrLoopTerminated = errors.New("partition: loop terminated")

// Loop is a single-goroutine FIFO task queue, with a higher-priority
// internal queue drained ahead of the external one on every iteration -
// the same two-tier shape as the teacher's Loop interface
// (Submit/SubmitInternal), hand-implemented here because spec.md's
// partition scheduler needs nothing beyond FIFO dispatch and a signal
// wait, not the full go-eventloop timer/FD/promise machinery.
type Loop struct {
	mu          sync.Mutex
	cond        *sync.Cond
	internalQ   []func()
	externalQ   []func()
	terminated  bool
	signals     uint32
}

// NewLoop constructs a Loop. Call Run on a dedicated goroutine to start
// processing submitted work.
func NewLoop() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Submit enqueues fn onto the external (lower-priority) queue.
func (l *Loop) Submit(fn func()) error {
	return l.submit(&l.externalQ, fn)
}

// SubmitInternal enqueues fn onto the internal (higher-priority) queue,
// drained fully before any external work on each iteration.
func (l *Loop) SubmitInternal(fn func()) error {
	return l.submit(&l.internalQ, fn)
}

func (l *Loop) submit(q *[]func(), fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminated {
		return ErrLoopTerminated
	}
	*q = append(*q, fn)
	l.cond.Broadcast()
	return nil
}

// Run processes submitted work until Terminate is called, blocking
// between batches. It is intended to be the entire body of a
// partition's dedicated goroutine.
func (l *Loop) Run() {
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		fn()
	}
}

// next blocks until either work is available or the loop is
// terminated, draining one internal task if present, else one external
// task. Returns ok=false once terminated with no remaining work.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.internalQ) == 0 && len(l.externalQ) == 0 && !l.terminated {
		l.cond.Wait()
	}
	if len(l.internalQ) > 0 {
		fn := l.internalQ[0]
		l.internalQ = l.internalQ[1:]
		return fn, true
	}
	if len(l.externalQ) > 0 {
		fn := l.externalQ[0]
		l.externalQ = l.externalQ[1:]
		return fn, true
	}
	return nil, false
}

// Terminate stops the loop after any already-queued work drains on the
// next Run iteration boundary; Submit/SubmitInternal begin returning
// ErrLoopTerminated immediately.
func (l *Loop) Terminate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.terminated = true
	l.cond.Broadcast()
}

// Assert ORs mask into the loop's signal word and wakes any Wait call
// that might now be satisfied, per spec.md §4.4's psa_wait/signal model.
func (l *Loop) Assert(mask uint32) {
	l.mu.Lock()
	l.signals |= mask
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Clear ANDs the complement of mask into the loop's signal word, for a
// handler that has finished processing the signals named by mask.
func (l *Loop) Clear(mask uint32) {
	l.mu.Lock()
	l.signals &^= mask
	l.mu.Unlock()
}

// Wait implements psa_wait(signal_mask, timeout), collapsing the PSA
// timeout argument to the two modes spec.md §4.4 actually distinguishes:
// block=true is PSA_BLOCK (wait indefinitely for a bit in mask to be
// asserted), block=false is PSA_POLL (return immediately with whatever
// of mask is currently asserted, even if that is zero). Returns
// ErrLoopTerminated if the loop is terminated while a blocking Wait is
// parked, since a terminated loop will never assert anything again.
func (l *Loop) Wait(mask uint32, block bool) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !block {
		return l.signals & mask, nil
	}
	for l.signals&mask == 0 {
		if l.terminated {
			return 0, ErrLoopTerminated
		}
		l.cond.Wait()
	}
	return l.signals & mask, nil
}
