package handle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psa-spm/spm-core/status"
)

func TestCreateGetDestroy(t *testing.T) {
	m := NewManager[string](4)

	h, err := m.Create(1, "payload-a")
	require.NoError(t, err)
	assert.NotEqual(t, Invalid, h)

	got, err := m.Get(h, 1)
	require.NoError(t, err)
	assert.Equal(t, "payload-a", got)

	_, err = m.Get(h, 2)
	assert.True(t, status.Is(err, status.InvalidHandle))

	require.NoError(t, m.Destroy(h, 1))

	_, err = m.Get(h, 1)
	assert.True(t, status.Is(err, status.InvalidHandle))
}

func TestPoolExhausted(t *testing.T) {
	m := NewManager[int](2)
	_, err := m.Create(0, 1)
	require.NoError(t, err)
	_, err = m.Create(0, 2)
	require.NoError(t, err)
	_, err = m.Create(0, 3)
	assert.True(t, status.Is(err, status.PoolExhausted))
}

func TestGenerationDetectsStaleHandle(t *testing.T) {
	m := NewManager[int](1)
	h1, err := m.Create(0, 1)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(h1, 0))

	h2, err := m.Create(0, 2)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "reused slot must not alias the old handle")

	_, err = m.Get(h1, 0)
	assert.True(t, status.Is(err, status.InvalidHandle))

	got, err := m.Get(h2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

// TestNoAliasingUnderRandomInterleaving exercises testable property #6
// from spec.md §8: across any interleaving of create/destroy up to pool
// capacity, no two simultaneously live handles share a handle value.
func TestNoAliasingUnderRandomInterleaving(t *testing.T) {
	const capacity = 8
	m := NewManager[int](capacity)
	live := map[Handle]bool{}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 5000; i++ {
		if len(live) > 0 && (rng.Intn(2) == 0 || len(live) == capacity) {
			var victim Handle
			for h := range live {
				victim = h
				break
			}
			require.NoError(t, m.Destroy(victim, 0))
			delete(live, victim)
			continue
		}
		h, err := m.Create(0, i)
		if err != nil {
			assert.True(t, status.Is(err, status.PoolExhausted))
			continue
		}
		assert.False(t, live[h], "handle %v aliases a still-live handle", h)
		live[h] = true
	}
}

func TestInvalidHandleIndexOutOfRange(t *testing.T) {
	m := NewManager[int](2)
	_, err := m.Get(Handle(0xFFFFFFF), 0)
	assert.True(t, status.Is(err, status.InvalidHandle))
}
