package ipc

import (
	"github.com/psa-spm/spm-core/handle"
	"github.com/psa-spm/spm-core/status"
)

// MaxIOVectors is the fixed number of input and output vectors an active
// message may carry, per spec.md §6 (PSA_MAX_IOVEC).
const MaxIOVectors = 4

// MessageType identifies which of the three framed requests an
// ActiveMessage carries, per spec.md §4.3.
type MessageType uint8

const (
	MsgConnect MessageType = iota
	MsgCall
	MsgDisconnect
)

func (t MessageType) String() string {
	switch t {
	case MsgConnect:
		return "CONNECT"
	case MsgCall:
		return "CALL"
	case MsgDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// IOVector is one input or output buffer of an active message, with a
// read/write cursor. Data is supplied by the client; it is never
// resliced or retained beyond the message's lifetime, matching spec.md
// §4.3's copy-in/copy-out discipline (no shared memory across the
// boundary).
type IOVector struct {
	Data   []byte
	cursor int
}

// Len returns the vector's declared length.
func (v *IOVector) Len() int { return len(v.Data) }

// Remaining returns the number of bytes not yet consumed from the
// vector's cursor.
func (v *IOVector) Remaining() int { return len(v.Data) - v.cursor }

// Read copies up to len(dst) unread bytes from the vector into dst,
// advancing the cursor, and returns the number of bytes copied.
func (v *IOVector) Read(dst []byte) int {
	n := copy(dst, v.Data[v.cursor:])
	v.cursor += n
	return n
}

// Write copies up to len(src) bytes from src into the vector at the
// cursor, advancing it, and returns the number of bytes copied. It
// refuses to write past the vector's declared length - the client
// allocated exactly that much space.
func (v *IOVector) Write(src []byte) int {
	n := copy(v.Data[v.cursor:], src)
	v.cursor += n
	return n
}

// Skip advances the cursor by up to n bytes without copying, and
// returns the number of bytes actually skipped.
func (v *IOVector) Skip(n int) int {
	if n > v.Remaining() {
		n = v.Remaining()
	}
	if n < 0 {
		n = 0
	}
	v.cursor += n
	return n
}

// ActiveMessage is one in-flight CONNECT, CALL, or DISCONNECT request
// dispatched to a server partition, per spec.md §4.3. It is the unit
// the server-side Context API (package server) operates on.
type ActiveMessage struct {
	// ChannelHandle is the client-visible channel this message belongs
	// to ("rhandle" in the original PSA terminology).
	ChannelHandle handle.Handle
	// SID is the service identifier the owning channel is connected to,
	// so a partition exposing more than one SID can distinguish which
	// operation a CALL targets.
	SID uint32
	// Type is which of CONNECT/CALL/DISCONNECT this message carries.
	Type MessageType
	// RHandle is an opaque per-call tag the partition's service code may
	// stash data against across calls on the same channel (spec.md §6's
	// rhandle field of psa_msg_t).
	RHandle uintptr

	InVec  [MaxIOVectors]IOVector
	InLen  int
	OutVec [MaxIOVectors]IOVector
	OutLen int

	// CallerIdentity is the partition ID of the connecting client, or
	// status.InvalidSource's partition-id analogue (0) for an
	// NSPE/emulator caller. Delivered to the service via
	// server.Context.Identity.
	CallerIdentity int32
}

// InVector returns the idx'th input vector, validating idx against the
// message's actual input-vector count (not just MaxIOVectors).
func (m *ActiveMessage) InVector(idx int) (*IOVector, error) {
	if idx < 0 || idx >= m.InLen {
		return nil, status.Newf(status.BadPointer, "ipc: in-vector index %d out of range (have %d)", idx, m.InLen)
	}
	return &m.InVec[idx], nil
}

// OutVector returns the idx'th output vector, validating idx against the
// message's actual output-vector count.
func (m *ActiveMessage) OutVector(idx int) (*IOVector, error) {
	if idx < 0 || idx >= m.OutLen {
		return nil, status.Newf(status.BadPointer, "ipc: out-vector index %d out of range (have %d)", idx, m.OutLen)
	}
	return &m.OutVec[idx], nil
}
