package its

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psa-spm/spm-core/nvstore"
	"github.com/psa-spm/spm-core/status"
)

func newTestService() *Service {
	return NewService(nvstore.NewMemory())
}

// TestRoundTrip exercises testable property #1.
func TestRoundTrip(t *testing.T) {
	svc := newTestService()
	payload := []byte("the quick brown fox")
	require.Equal(t, status.Success, svc.Set(1, 5, payload, 0))

	out := make([]byte, len(payload))
	code := svc.Get(1, 5, 0, len(payload), out)
	require.Equal(t, status.Success, code)
	assert.Equal(t, payload, out)
}

// TestOwnerIsolation exercises testable property #2: a different
// identity's Get must return KeyNotFound, never Success, never a
// distinguishable error.
func TestOwnerIsolation(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 7, []byte("alpha"), 0))

	out := make([]byte, 5)
	code := svc.Get(2, 7, 0, 5, out)
	assert.Equal(t, status.KeyNotFound, code)

	code = svc.Get(1, 7, 0, 5, out)
	assert.Equal(t, status.Success, code)
	assert.Equal(t, "alpha", string(out))
}

// TestWriteOnceImmutability exercises testable property #3.
func TestWriteOnceImmutability(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 9, []byte("v1"), WriteOnce))
	assert.Equal(t, status.FlagsSetAfterCreate, svc.Set(1, 9, []byte("v2"), 0))

	out := make([]byte, 2)
	require.Equal(t, status.Success, svc.Get(1, 9, 0, 2, out))
	assert.Equal(t, "v1", string(out))
}

// TestKeySpaceValidation exercises testable property #4.
func TestKeySpaceValidation(t *testing.T) {
	svc := newTestService()
	assert.Equal(t, status.InvalidKey, svc.Set(1, 0x00010000, []byte("x"), 0))
	assert.Equal(t, status.InvalidKey, svc.Get(1, 0x00010000, 0, 1, make([]byte, 1)))
	_, code := svc.GetInfo(1, 0x00010000)
	assert.Equal(t, status.InvalidKey, code)
	assert.Equal(t, status.InvalidKey, svc.Remove(1, 0x00010000))
}

// TestOffsetAndLengthBounds exercises testable property #5.
func TestOffsetAndLengthBounds(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 11, []byte("abcd"), 0))

	// off > S=4 -> OFFSET_INVALID
	assert.Equal(t, status.OffsetInvalid, svc.Get(1, 11, 5, 1, make([]byte, 1)))
	// off == S is legal (reads zero bytes); off+len > S -> INCORRECT_SIZE
	assert.Equal(t, status.IncorrectSize, svc.Get(1, 11, 2, 5, make([]byte, 5)))
	// exactly at the boundary succeeds.
	assert.Equal(t, status.Success, svc.Get(1, 11, 0, 4, make([]byte, 4)))
}

func TestGetInfoReturnsSizeAndFlags(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 3, []byte("hello"), WriteOnce))

	info, code := svc.GetInfo(1, 3)
	require.Equal(t, status.Success, code)
	assert.Equal(t, 5, info.Size)
	assert.Equal(t, WriteOnce, info.Flags)
}

func TestRemoveWriteOnceForbidden(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 4, []byte("x"), WriteOnce))
	assert.Equal(t, status.StorageFailure, svc.Remove(1, 4))
}

func TestRemoveThenGetIsKeyNotFound(t *testing.T) {
	svc := newTestService()
	require.Equal(t, status.Success, svc.Set(1, 6, []byte("x"), 0))
	require.Equal(t, status.Success, svc.Remove(1, 6))
	assert.Equal(t, status.KeyNotFound, svc.Get(1, 6, 0, 1, make([]byte, 1)))
}

func TestGetMissingKeyIsKeyNotFound(t *testing.T) {
	svc := newTestService()
	assert.Equal(t, status.KeyNotFound, svc.Get(1, 99, 0, 1, make([]byte, 1)))
}

// TestDirectClientStampsInvalidSource covers spec.md §4.7's emulator
// mode and E2E-2's basic round trip through the direct-call path.
func TestDirectClientStampsInvalidSource(t *testing.T) {
	svc := newTestService()
	d := NewDirectClient(svc)

	assert.False(t, d.Exists(5))
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	require.Equal(t, status.Success, d.Set(5, data, 0))

	info, code := d.GetInfo(5)
	require.Equal(t, status.Success, code)
	assert.Equal(t, 16, info.Size)

	out := make([]byte, 16)
	require.Equal(t, status.Success, d.Get(5, 0, 16, out))
	assert.Equal(t, data, out)

	require.Equal(t, status.Success, d.Remove(5))
	assert.False(t, d.Exists(5))
}

func TestDirectClientBadOffset(t *testing.T) {
	svc := newTestService()
	d := NewDirectClient(svc)
	require.Equal(t, status.Success, d.Set(11, []byte("abcd"), 0))
	assert.Equal(t, status.OffsetInvalid, d.Get(11, 5, 1, make([]byte, 1)))
}

func TestDirectClientHighUID(t *testing.T) {
	svc := newTestService()
	d := NewDirectClient(svc)
	assert.Equal(t, status.InvalidKey, d.Set(0x00010000, []byte("x"), 0))
}
