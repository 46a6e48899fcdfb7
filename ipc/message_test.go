package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIOVectorReadWriteSkip(t *testing.T) {
	in := IOVector{Data: []byte("hello world")}
	buf := make([]byte, 5)
	n := in.Read(buf)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
	assert.Equal(t, 6, in.Remaining())

	skipped := in.Skip(1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 5, in.Remaining())

	rest := make([]byte, 10)
	n = in.Read(rest)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(rest[:n]))
	assert.Equal(t, 0, in.Remaining())
}

func TestIOVectorWriteDoesNotOverrun(t *testing.T) {
	out := IOVector{Data: make([]byte, 4)}
	n := out.Write([]byte("abcdefgh"))
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, out.Remaining())
	assert.Equal(t, []byte("abcd"), out.Data)
}

func TestIOVectorSkipClampsAtRemaining(t *testing.T) {
	v := IOVector{Data: []byte("abc")}
	assert.Equal(t, 3, v.Skip(100))
	assert.Equal(t, 0, v.Remaining())
	assert.Equal(t, 0, v.Skip(1))
}

func TestActiveMessageVectorBoundsChecked(t *testing.T) {
	msg := &ActiveMessage{InLen: 1, OutLen: 0}
	msg.InVec[0] = IOVector{Data: []byte("x")}

	v, err := msg.InVector(0)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	_, err = msg.InVector(1)
	assert.Error(t, err)

	_, err = msg.OutVector(0)
	assert.Error(t, err)
}

func TestValidateVectorsDefaultNoop(t *testing.T) {
	msg := &ActiveMessage{InLen: 1, OutLen: 1}
	msg.InVec[0] = IOVector{Data: []byte("in")}
	msg.OutVec[0] = IOVector{Data: make([]byte, 2)}
	assert.True(t, ValidateVectors(msg, nil))
}

type rejectAll struct{}

func (rejectAll) Validate([]byte, bool) bool { return false }

func TestValidateVectorsRejection(t *testing.T) {
	msg := &ActiveMessage{InLen: 1}
	msg.InVec[0] = IOVector{Data: []byte("in")}
	assert.False(t, ValidateVectors(msg, rejectAll{}))
}
