// Package nvstore defines the Non-Volatile Store Adapter contract
// (spec.md §4.5): the thin platform abstraction the ITS service persists
// records through, plus the status-code mapping from NV-store outcomes
// onto ITS status codes.
package nvstore

import (
	"errors"

	"github.com/psa-spm/spm-core/status"
)

// Store is the platform-provided non-volatile key/value backend. Keys
// are 16-bit (spec.md §3: "(key & 0xFFFF0000) == 0"); callers are
// responsible for that validation before calling Store methods - Store
// itself assumes a valid key.
//
// Implementations must make Set atomic: either the new value is fully
// committed, or the old value is left untouched.
type Store interface {
	// GetSize returns the size in bytes of the value stored at key, or
	// ErrNotFound.
	GetSize(key uint16) (int, error)

	// Get reads the value stored at key into buf, which must be exactly
	// the value's size (callers call GetSize first).
	Get(key uint16, buf []byte) error

	// Set writes buf as the value for key, replacing any existing
	// value unless that value was created by SetOnce, in which case it
	// returns ErrAlreadyExists and leaves the value untouched.
	Set(key uint16, buf []byte) error

	// SetOnce writes buf as the value for key, but only if key does not
	// already hold a value. Returns ErrAlreadyExists otherwise.
	SetOnce(key uint16, buf []byte) error

	// Remove deletes the value stored at key.
	Remove(key uint16) error
}

// Sentinel errors a Store implementation returns; FromNVStoreGet and
// FromNVStoreSet map these
// (and only these, plus Success) onto ITS status codes per spec.md §4.5.
var (
	ErrNotFound          = errors.New("nvstore: key not found")
	ErrWriteError        = errors.New("nvstore: write error")
	ErrDataCorrupt       = errors.New("nvstore: data corrupt")
	ErrReadError         = errors.New("nvstore: read error")
	ErrFlashAreaTooSmall = errors.New("nvstore: flash area too small")
	ErrAlreadyExists     = errors.New("nvstore: already exists")
	ErrBadValue          = errors.New("nvstore: bad value")
	// ErrWriteOnce is returned by Remove when the stored record was
	// created with the write-once flag. This resolves the spec.md §9
	// open question ("the implementer must pick one...the safest choice
	// is to forbid removal of write-once records") in favor of
	// forbidding the removal.
	ErrWriteOnce = errors.New("nvstore: cannot remove a write-once record")
)

// FromNVStoreGet maps a Store error observed during a read-path
// operation (GetSize/Get) onto the corresponding ITS status.Code, per
// the table in spec.md §4.5.
func FromNVStoreGet(err error) status.Code {
	switch {
	case err == nil:
		return status.Success
	case errors.Is(err, ErrNotFound):
		return status.KeyNotFound
	case errors.Is(err, ErrDataCorrupt), errors.Is(err, ErrReadError):
		return status.StorageFailure
	case errors.Is(err, ErrBadValue):
		return status.InvalidKey
	default:
		return status.StorageFailure
	}
}

// FromNVStoreSet maps a Store error observed during a write-path
// operation (Set/SetOnce/Remove) onto the corresponding ITS status.Code.
func FromNVStoreSet(err error) status.Code {
	switch {
	case err == nil:
		return status.Success
	case errors.Is(err, ErrWriteError):
		return status.StorageFailure
	case errors.Is(err, ErrDataCorrupt), errors.Is(err, ErrReadError):
		return status.StorageFailure
	case errors.Is(err, ErrFlashAreaTooSmall):
		return status.InsufficientSpace
	case errors.Is(err, ErrAlreadyExists):
		return status.FlagsSetAfterCreate
	case errors.Is(err, ErrBadValue):
		return status.BadPointer
	case errors.Is(err, ErrWriteOnce):
		return status.StorageFailure
	default:
		return status.StorageFailure
	}
}
