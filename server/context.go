// Package server implements the RoT-service-facing half of spec.md §6:
// the per-message Context a partition's handler goroutine uses to read
// request vectors, write response vectors, and reply with a status
// code, plus the Dispatcher that queues active messages for a
// partition and wakes it via the signal-mask wait/assert primitive in
// package partition.
package server

import (
	"github.com/psa-spm/spm-core/handle"
	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/status"
)

// Context is the server-side view of one active message. It is
// deliberately narrower than ipc.ActiveMessage: a handler can read in-
// vectors, write/skip out-vectors, query identity/type/rhandle, and
// reply exactly once - it cannot resolve the message's channel handle
// by itself, since (per spec.md §4.3) channel handles are a client-only
// concept. This mirrors the teacher's makeServerContext, which derives
// a narrower server-side context from the client one rather than
// exposing it directly.
type Context struct {
	msg      *ipc.ActiveMessage
	complete func(status.Code)
	replied  bool
}

// newContext wraps msg for delivery to a handler, with complete invoked
// exactly once by Reply.
func newContext(msg *ipc.ActiveMessage, complete func(status.Code)) *Context {
	return &Context{msg: msg, complete: complete}
}

// Type reports which of CONNECT/CALL/DISCONNECT this message is.
func (c *Context) Type() ipc.MessageType { return c.msg.Type }

// RHandle returns the per-call tag the service may use to correlate
// state across multiple calls on the same channel (spec.md §6).
func (c *Context) RHandle() uintptr { return c.msg.RHandle }

// Identity returns the partition ID of the connecting client, or
// status.InvalidSource (0) for an NSPE/emulator caller.
func (c *Context) Identity() int32 { return c.msg.CallerIdentity }

// SID returns the service identifier the message's channel is
// connected to, so a partition exposing more than one SID can
// distinguish which operation a CALL targets.
func (c *Context) SID() uint32 { return c.msg.SID }

// InSize returns the declared length of input vector idx.
func (c *Context) InSize(idx int) (int, error) {
	v, err := c.msg.InVector(idx)
	if err != nil {
		return 0, err
	}
	return v.Len(), nil
}

// OutSize returns the declared length of output vector idx.
func (c *Context) OutSize(idx int) (int, error) {
	v, err := c.msg.OutVector(idx)
	if err != nil {
		return 0, err
	}
	return v.Len(), nil
}

// Read copies up to len(dst) unread bytes from input vector idx.
func (c *Context) Read(idx int, dst []byte) (int, error) {
	v, err := c.msg.InVector(idx)
	if err != nil {
		return 0, err
	}
	return v.Read(dst), nil
}

// Write copies up to len(src) bytes into output vector idx.
func (c *Context) Write(idx int, src []byte) (int, error) {
	v, err := c.msg.OutVector(idx)
	if err != nil {
		return 0, err
	}
	return v.Write(src), nil
}

// Skip advances output vector idx's cursor by up to n bytes without
// writing, e.g. when a handler declines to populate a vector it was
// offered but does not need.
func (c *Context) Skip(idx, n int) (int, error) {
	v, err := c.msg.OutVector(idx)
	if err != nil {
		return 0, err
	}
	return v.Skip(n), nil
}

// Reply completes the message with the given status code. Per spec.md
// §4.3 a message may be replied to exactly once; replying twice is a
// programming error and panics, mirroring the teacher's panic-on-
// protocol-violation style (e.g. handler.go's double-registration
// panic).
func (c *Context) Reply(code status.Code) {
	if c.replied {
		status.Panicf("server: message already replied")
	}
	c.replied = true
	c.complete(code)
}

// Panic reports a fatal invariant violation from within a handler,
// halting the secure world rather than returning a recoverable status
// code - the server-side counterpart to spec.md §6's panic(fmt,...),
// exposed on Context so a handler never needs to import package status
// directly just to report one.
func (c *Context) Panic(format string, args ...any) {
	status.Panicf(format, args...)
}

// ChannelHandle exposes the client-issued channel handle this message
// belongs to, strictly for SPM-internal bookkeeping - RoT service code
// has no legitimate use for it and should prefer Identity/RHandle.
func (c *Context) ChannelHandle() handle.Handle { return c.msg.ChannelHandle }
