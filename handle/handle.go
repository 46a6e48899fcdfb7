// Package handle implements the SPM's opaque handle pool: a fixed-size,
// generation-tagged allocator mapping integer handles to typed payload
// slots. Handles cross the client/server trust boundary, so a raw slice
// index is unacceptable; the generation counter detects stale handles
// and use-after-free from a non-secure caller, per spec.md §4.1.
package handle

import (
	"sync"

	"github.com/psa-spm/spm-core/status"
)

// Handle is an opaque, nonzero integer naming a live slot in a Manager.
type Handle uint32

// Invalid is the reserved zero handle; no live slot is ever assigned it.
const Invalid Handle = 0

const (
	indexBits      = 16
	generationBits = 16
	indexMask      = 1<<indexBits - 1
)

// makeHandle packs (index, generation) into a nonzero Handle. The index
// is stored biased by one so that index 0 / generation 0 never collides
// with Invalid (0).
func makeHandle(index int, generation uint32) Handle {
	return Handle((uint32(index)+1)&indexMask | (generation&((1<<generationBits)-1))<<indexBits)
}

func (h Handle) index() int         { return int(uint32(h)&indexMask) - 1 }
func (h Handle) generation() uint32 { return uint32(h) >> indexBits }

// Manager is a fixed-capacity pool of handles, each naming one payload of
// type T. It is safe for concurrent use; all pool mutation is guarded by
// a single mutex, matching spec.md §4.1's "a single spinlock or
// equivalent" and §5's note that the handle-manager pool avoids
// cross-partition priority inversion by using one simple lock rather
// than a lock per slot.
type Manager[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []int
}

type slot[T any] struct {
	payload    T
	owner      int32
	generation uint32
	live       bool
}

// NewManager constructs a Manager with the given fixed capacity.
// Capacity must be > 0; it corresponds to MAX_CHANNELS or
// MAX_ACTIVE_MESSAGES (spec.md §6).
func NewManager[T any](capacity int) *Manager[T] {
	if capacity <= 0 {
		status.Panicf("handle: capacity must be positive, got %d", capacity)
	}
	m := &Manager[T]{
		slots: make([]slot[T], capacity),
		free:  make([]int, capacity),
	}
	for i := range m.free {
		m.free[i] = capacity - 1 - i
	}
	return m
}

// Create allocates a new handle for payload, owned by owner. Returns
// status.PoolExhausted if every slot is in use.
func (m *Manager[T]) Create(owner int32, payload T) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.free) == 0 {
		return Invalid, status.Newf(status.PoolExhausted, "handle pool exhausted (capacity %d)", len(m.slots))
	}
	idx := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]

	s := &m.slots[idx]
	s.payload = payload
	s.owner = owner
	s.live = true
	// generation starts at 0 on first use of a slot and is bumped on
	// every subsequent Destroy, so the very first handle issued from a
	// fresh slot is generation 0 (matches typical zero-value init).
	return makeHandle(idx, s.generation), nil
}

// Get resolves handle to its payload, checking that expectedOwner
// matches the slot's declared owner (INVALID_SOURCE/0 is never an
// acceptable "friend" wildcard here - callers that want to bypass the
// owner check pass the slot's own recorded owner). Returns
// status.InvalidHandle if the handle is stale, unknown, or owned by
// someone else.
func (m *Manager[T]) Get(h Handle, expectedOwner int32) (T, error) {
	var zero T
	if h == Invalid {
		return zero, status.Newf(status.InvalidHandle, "invalid handle")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := h.index()
	if idx < 0 || idx >= len(m.slots) {
		return zero, status.Newf(status.InvalidHandle, "handle index out of range")
	}
	s := &m.slots[idx]
	if !s.live || s.generation != h.generation() {
		return zero, status.Newf(status.InvalidHandle, "stale or destroyed handle")
	}
	if s.owner != expectedOwner {
		return zero, status.Newf(status.InvalidHandle, "handle owner mismatch")
	}
	return s.payload, nil
}

// Replace overwrites the payload stored at handle's slot, without
// affecting liveness/ownership/generation. Used to update in-place
// mutable state (e.g. a channel's FSM state byte lives inside the
// payload itself and is swapped atomically by the caller; Replace is for
// the rarer case of swapping the whole payload value, e.g. attaching a
// reverse-handle once it becomes known).
func (m *Manager[T]) Replace(h Handle, expectedOwner int32, payload T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := h.index()
	if idx < 0 || idx >= len(m.slots) {
		return status.Newf(status.InvalidHandle, "handle index out of range")
	}
	s := &m.slots[idx]
	if !s.live || s.generation != h.generation() || s.owner != expectedOwner {
		return status.Newf(status.InvalidHandle, "stale, destroyed, or foreign handle")
	}
	s.payload = payload
	return nil
}

// Destroy releases handle's slot back to the pool, advancing its
// generation so any copy of this handle retained elsewhere is detected
// as stale on the next Get.
func (m *Manager[T]) Destroy(h Handle, expectedOwner int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := h.index()
	if idx < 0 || idx >= len(m.slots) {
		return status.Newf(status.InvalidHandle, "handle index out of range")
	}
	s := &m.slots[idx]
	if !s.live || s.generation != h.generation() || s.owner != expectedOwner {
		return status.Newf(status.InvalidHandle, "stale, destroyed, or foreign handle")
	}
	var zero T
	s.payload = zero
	s.live = false
	s.generation++
	m.free = append(m.free, idx)
	return nil
}

// Len reports the number of currently live handles. Intended for tests
// and diagnostics, not the hot path.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots) - len(m.free)
}
