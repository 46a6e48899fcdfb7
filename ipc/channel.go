// Package ipc implements the channel and active-message state machines
// of spec.md §4.2-§4.3: connection lifecycle, per-call lifecycle, and
// the bounded I/O vector copy discipline that moves data across the
// client/server trust boundary without either side holding a direct
// reference into the other's memory.
package ipc

import (
	"sync/atomic"

	"github.com/psa-spm/spm-core/handle"
	"github.com/psa-spm/spm-core/status"
)

// ChannelState is the channel connection-lifecycle state, manipulated
// exclusively via atomic compare-and-swap per spec.md §3: "A channel
// state transition occurs only via an atomic compare-and-set on the
// state byte; a failed CAS is a programming error and panics."
type ChannelState uint32

const (
	// StateIdle is the zero value; no handle-bearing Channel is ever
	// observed in this state, it exists only to give ChannelState a
	// well-defined value before Connecting begins (spec.md's diagram
	// initial state, "pre-existence").
	StateIdle ChannelState = iota
	StateConnecting
	StateConnected
	StateCalling
	StateClosing
	StateDropped
)

func (s ChannelState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateCalling:
		return "CALLING"
	case StateClosing:
		return "CLOSING"
	case StateDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Channel is a client connection to one partition's service. Created by
// Connect, destroyed once Close observes the server's DISCONNECT reply.
// It is shared, for the span of one call, by the client (owner) and the
// server partition handling the active message that references it - but
// only the client ever resolves it by handle; the server only ever sees
// it indirectly via ActiveMessage.ChannelHandle.
type Channel struct {
	// OwnerPartitionID is the identity of the caller that created this
	// channel (INVALID_SOURCE/0 for an NSPE/emulator caller).
	OwnerPartitionID int32
	// PeerSID is the service identifier this channel is connected to.
	PeerSID uint32

	state uint32

	// pendingMessage is the handle of the one ActiveMessage currently
	// in flight against this channel, or handle.Invalid. Spec.md §3:
	// "At-most-one active message per channel at any instant."
	pendingMessage handle.Handle
}

// NewConnecting constructs a Channel already in StateConnecting, per
// spec.md §4.2: "connect allocates a channel in CONNECTING."
func NewConnecting(owner int32, sid uint32) *Channel {
	return &Channel{
		OwnerPartitionID: owner,
		PeerSID:          sid,
		state:            uint32(StateConnecting),
	}
}

// State returns the channel's current state.
func (c *Channel) State() ChannelState {
	return ChannelState(atomic.LoadUint32(&c.state))
}

// transition performs the single legal CAS from `from` to `to`, panicking
// per spec.md's invariant if the channel was not actually in `from`.
func (c *Channel) transition(from, to ChannelState) {
	if !atomic.CompareAndSwapUint32(&c.state, uint32(from), uint32(to)) {
		status.Panicf("ipc: illegal channel transition %s->%s (actual state %s)", from, to, c.State())
	}
}

// transitionFromEither performs a CAS into `to` from whichever of
// `fromA`/`fromB` the channel currently holds, panicking if it holds
// neither (used by Close, which is legal from CONNECTED or DROPPED).
func (c *Channel) transitionFromEither(fromA, fromB, to ChannelState) {
	cur := ChannelState(atomic.LoadUint32(&c.state))
	if cur != fromA && cur != fromB {
		status.Panicf("ipc: illegal channel transition to %s (actual state %s, expected %s or %s)", to, cur, fromA, fromB)
	}
	if !atomic.CompareAndSwapUint32(&c.state, uint32(cur), uint32(to)) {
		status.Panicf("ipc: channel state CAS race transitioning to %s", to)
	}
}

// CompleteConnect resolves a pending connect. success transitions
// CONNECTING -> CONNECTED; otherwise CONNECTING -> DROPPED.
func (c *Channel) CompleteConnect(success bool) {
	if success {
		c.transition(StateConnecting, StateConnected)
	} else {
		c.transition(StateConnecting, StateDropped)
	}
}

// BeginCall transitions CONNECTED -> CALLING. Panics if the channel is
// not CONNECTED, per spec.md §4.2 / testable property #7 ("call on a
// non-CONNECTED channel panics").
func (c *Channel) BeginCall() {
	c.transition(StateConnected, StateCalling)
}

// CompleteCall resolves a reply to an in-flight call. drop transitions
// CALLING -> CLOSING (PSA_DROP_CONNECTION); otherwise CALLING ->
// CONNECTED (any other reply status, success or error).
func (c *Channel) CompleteCall(drop bool) {
	if drop {
		c.transition(StateCalling, StateClosing)
	} else {
		c.transition(StateCalling, StateConnected)
	}
}

// BeginClose transitions CONNECTED or DROPPED -> CLOSING, per spec.md
// §4.2 ("close requires CONNECTED or DROPPED").
func (c *Channel) BeginClose() {
	c.transitionFromEither(StateConnected, StateDropped, StateClosing)
}

// SetPendingMessage records the handle of the one ActiveMessage now in
// flight against this channel. Panics if one is already pending, which
// would violate the at-most-one-active-message invariant.
func (c *Channel) SetPendingMessage(h handle.Handle) {
	if c.pendingMessage != handle.Invalid {
		status.Panicf("ipc: channel already has a pending message")
	}
	c.pendingMessage = h
}

// ClearPendingMessage releases the recorded in-flight message handle.
func (c *Channel) ClearPendingMessage() {
	c.pendingMessage = handle.Invalid
}

// PendingMessage returns the handle of the channel's in-flight message,
// or handle.Invalid if none.
func (c *Channel) PendingMessage() handle.Handle {
	return c.pendingMessage
}
