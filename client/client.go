// Package client implements the caller-facing half of spec.md §6:
// Connect/Call/Close/Version, each of which builds an ipc.ActiveMessage,
// hands it to the target partition's Dispatcher, and blocks the calling
// goroutine on a buffered result channel until the service replies -
// the same blocking-adapter-over-a-result-channel shape as the
// teacher's Channel.Invoke, with the server's handler goroutine
// standing in for the teacher's RPC handler goroutine.
package client

import (
	"github.com/psa-spm/spm-core/handle"
	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/partition"
	"github.com/psa-spm/spm-core/status"
)

// Client is one partition's (or the NSPE's) view onto the system: it
// can connect to any registered SID and exchange calls over the
// resulting channel.
type Client struct {
	// OwnerID is this client's identity, stamped as CallerIdentity on
	// every message it sends and as the owner of every channel/handle
	// it creates. status.InvalidSource (0) for an NSPE/emulator caller.
	OwnerID int32

	registry *partition.Registry
	space    *ipc.Space
}

// New constructs a Client bound to the given partition registry and
// handle space, identified as owner.
func New(owner int32, registry *partition.Registry, space *ipc.Space) *Client {
	return &Client{OwnerID: owner, registry: registry, space: space}
}

// dispatch submits msg to part's Dispatcher and blocks for the reply,
// translating an un-wired partition (Enqueue == nil, a boot-time
// configuration mistake) into a panic rather than a silent hang.
func dispatch(part *partition.Partition, msg *ipc.ActiveMessage) status.Code {
	if part.Enqueue == nil {
		status.Panicf("client: partition %d has no dispatcher wired", part.ID)
	}
	resultCh := make(chan status.Code, 1)
	part.Enqueue(msg, func(code status.Code) { resultCh <- code })
	return <-resultCh
}

// Connect opens a channel to the RoT service identified by sid,
// requesting the given minor version. On success (Success or a
// positive application status) the returned handle is CONNECTED and
// ready for Call; on PSA_CONNECTION_REFUSED, PSA_CONNECTION_BUSY, or
// VERSION the channel has already been destroyed and the returned
// handle is handle.Invalid.
func (c *Client) Connect(sid uint32, version uint32) (handle.Handle, status.Code) {
	part, ok := c.registry.Lookup(sid)
	if !ok {
		return handle.Invalid, status.ConnectionRefused
	}

	svc, _ := c.registry.Service(sid)
	if c.OwnerID == status.InvalidSource && !svc.AllowNSPE {
		return handle.Invalid, status.ConnectionRefused
	}
	if !versionSatisfies(svc, version) {
		return handle.Invalid, status.Version
	}

	ch := ipc.NewConnecting(c.OwnerID, sid)
	chHandle, err := c.space.Channels.Create(c.OwnerID, ch)
	if err != nil {
		return handle.Invalid, status.CodeOf(err)
	}

	msg := &ipc.ActiveMessage{
		ChannelHandle:  chHandle,
		SID:            sid,
		Type:           ipc.MsgConnect,
		CallerIdentity: c.OwnerID,
	}
	msgHandle, err := c.space.Messages.Create(part.ID, msg)
	if err != nil {
		_ = c.space.Channels.Destroy(chHandle, c.OwnerID)
		return handle.Invalid, status.CodeOf(err)
	}
	ch.SetPendingMessage(msgHandle)

	code := dispatch(part, msg)
	_ = c.space.Messages.Destroy(msgHandle, part.ID)
	ch.ClearPendingMessage()

	success := code == status.Success || code > 0
	ch.CompleteConnect(success)
	if !success {
		_ = c.space.Channels.Destroy(chHandle, c.OwnerID)
		return handle.Invalid, code
	}
	return chHandle, code
}

// versionSatisfies applies svc's VersionPolicy to a requested version,
// per spec.md §3's STRICT/RELAXED RotService.version_policy.
func versionSatisfies(svc partition.RotService, requested uint32) bool {
	switch svc.VersionPolicy {
	case partition.VersionStrict:
		return requested == svc.MinVersion
	default:
		return requested >= svc.MinVersion
	}
}

// Version reports the minor version a SID is prepared to serve, or
// status.VersionNone if no partition implements sid, per spec.md §6's
// version(sid) entry point.
func (c *Client) Version(sid uint32) uint32 {
	svc, ok := c.registry.Service(sid)
	if !ok {
		return status.VersionNone
	}
	return svc.MinVersion
}

// Call issues a request over an already-CONNECTED channel, with up to
// 4 input and 4 output vectors. Panics (via Channel.BeginCall) if h is
// not CONNECTED - spec.md testable property #7.
func (c *Client) Call(h handle.Handle, in, out [][]byte) status.Code {
	ch, err := c.space.Channels.Get(h, c.OwnerID)
	if err != nil {
		return status.CodeOf(err)
	}

	ch.BeginCall()

	msg := &ipc.ActiveMessage{
		ChannelHandle:  h,
		SID:            ch.PeerSID,
		Type:           ipc.MsgCall,
		CallerIdentity: c.OwnerID,
		InLen:          len(in),
		OutLen:         len(out),
	}
	for i, b := range in {
		msg.InVec[i] = ipc.IOVector{Data: b}
	}
	for i, b := range out {
		msg.OutVec[i] = ipc.IOVector{Data: b}
	}

	if !ipc.ValidateVectors(msg, c.space.Validator) {
		ch.CompleteCall(true)
		return status.DropConnection
	}

	part, ok := c.registry.Lookup(ch.PeerSID)
	if !ok {
		ch.CompleteCall(true)
		return status.ConnectionRefused
	}

	msgHandle, err := c.space.Messages.Create(part.ID, msg)
	if err != nil {
		ch.CompleteCall(true)
		return status.CodeOf(err)
	}
	ch.SetPendingMessage(msgHandle)

	code := dispatch(part, msg)
	_ = c.space.Messages.Destroy(msgHandle, part.ID)
	ch.ClearPendingMessage()

	ch.CompleteCall(code == status.DropConnection)
	return code
}

// Close disconnects an established channel, blocking until the server
// observes the DISCONNECT and destroying the channel handle regardless
// of the server's reply (spec.md §4.2: close always succeeds from the
// caller's perspective once issued).
func (c *Client) Close(h handle.Handle) {
	ch, err := c.space.Channels.Get(h, c.OwnerID)
	if err != nil {
		return
	}
	ch.BeginClose()

	if part, ok := c.registry.Lookup(ch.PeerSID); ok {
		msg := &ipc.ActiveMessage{
			ChannelHandle:  h,
			Type:           ipc.MsgDisconnect,
			CallerIdentity: c.OwnerID,
		}
		dispatch(part, msg)
	}
	_ = c.space.Channels.Destroy(h, c.OwnerID)
}
