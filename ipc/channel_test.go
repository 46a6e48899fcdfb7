package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psa-spm/spm-core/handle"
)

func TestChannelHappyPathLifecycle(t *testing.T) {
	c := NewConnecting(1, 42)
	assert.Equal(t, StateConnecting, c.State())

	c.CompleteConnect(true)
	assert.Equal(t, StateConnected, c.State())

	c.BeginCall()
	assert.Equal(t, StateCalling, c.State())

	c.CompleteCall(false)
	assert.Equal(t, StateConnected, c.State())

	c.BeginClose()
	assert.Equal(t, StateClosing, c.State())
}

func TestChannelConnectRefused(t *testing.T) {
	c := NewConnecting(1, 42)
	c.CompleteConnect(false)
	assert.Equal(t, StateDropped, c.State())
	// a dropped channel may still be closed.
	c.BeginClose()
	assert.Equal(t, StateClosing, c.State())
}

func TestChannelCallDropsConnection(t *testing.T) {
	c := NewConnecting(1, 42)
	c.CompleteConnect(true)
	c.BeginCall()
	c.CompleteCall(true)
	assert.Equal(t, StateClosing, c.State())
}

// TestCallOnNonConnectedChannelPanics exercises testable property #7:
// issuing a call against anything but a CONNECTED channel is a
// programming error and panics.
func TestCallOnNonConnectedChannelPanics(t *testing.T) {
	c := NewConnecting(1, 42)
	assert.Panics(t, func() { c.BeginCall() })
}

func TestReplyFromNonCallingStatePanics(t *testing.T) {
	c := NewConnecting(1, 42)
	c.CompleteConnect(true)
	assert.Panics(t, func() { c.CompleteCall(false) })
}

func TestCloseFromCallingStatePanics(t *testing.T) {
	c := NewConnecting(1, 42)
	c.CompleteConnect(true)
	c.BeginCall()
	assert.Panics(t, func() { c.BeginClose() })
}

func TestPendingMessageAtMostOne(t *testing.T) {
	c := NewConnecting(1, 42)
	c.SetPendingMessage(handle.Handle(7))
	assert.Panics(t, func() { c.SetPendingMessage(handle.Handle(8)) })
	c.ClearPendingMessage()
	assert.Equal(t, handle.Invalid, c.PendingMessage())
}

func TestSpaceCreateAndRegisterChannel(t *testing.T) {
	sp, err := NewSpace(WithMaxChannels(2))
	require.NoError(t, err)

	c := NewConnecting(1, 42)
	h, err := sp.Channels.Create(1, c)
	require.NoError(t, err)

	got, err := sp.Channels.Get(h, 1)
	require.NoError(t, err)
	assert.Same(t, c, got)
}
