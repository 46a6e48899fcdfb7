// Package its implements the Internal Trusted Storage service of
// spec.md §4.6: owner-stamped, write-once-capable key/value records
// persisted through a nvstore.Store, with owner isolation deliberately
// indistinguishable from absence (spec.md §8 property #2).
package its

import (
	"github.com/psa-spm/spm-core/nvstore"
	"github.com/psa-spm/spm-core/status"
)

// Service implements the four ITS operations over a nvstore.Store. It
// has no IPC dependency of its own - package spm's boot wiring adapts
// it to the CALL-dispatch loop, and package its/direct.go adapts it to
// the emulator's bypass-IPC calling convention (spec.md §4.7).
type Service struct {
	store nvstore.Store
}

// NewService constructs a Service backed by store.
func NewService(store nvstore.Store) *Service {
	return &Service{store: store}
}

// validateKey enforces spec.md §3's `(uid & 0xFFFF0000) == 0` invariant
// before any NV-store traffic occurs (testable property #4).
func validateKey(uid uint32) bool {
	return uid&0xFFFF0000 == 0
}

// Set implements spec.md §4.6's set(uid, data, flags).
func (s *Service) Set(identity int32, uid uint32, payload []byte, flags uint32) status.Code {
	if !validateKey(uid) {
		return status.InvalidKey
	}
	record := encodeRecord(identity, flags, payload)
	defer zeroize(record)

	var err error
	if flags&WriteOnce != 0 {
		err = s.store.SetOnce(uint16(uid), record)
	} else {
		err = s.store.Set(uint16(uid), record)
	}
	return nvstore.FromNVStoreSet(err)
}

// readRecord fetches the full record (header+payload) for uid, or
// returns a status.Code describing why it could not. size is the full
// on-disk record size, including HeaderSize.
func (s *Service) readRecord(uid uint32) (record []byte, size int, code status.Code) {
	size, err := s.store.GetSize(uint16(uid))
	if err != nil {
		return nil, 0, nvstore.FromNVStoreGet(err)
	}
	record = make([]byte, size)
	if err := s.store.Get(uint16(uid), record); err != nil {
		return nil, 0, nvstore.FromNVStoreGet(err)
	}
	return record, size, status.Success
}

// Get implements spec.md §4.6's get(uid, offset, length, out).
func (s *Service) Get(identity int32, uid uint32, offset, length int, out []byte) status.Code {
	if !validateKey(uid) {
		return status.InvalidKey
	}

	record, size, code := s.readRecord(uid)
	if code != status.Success {
		return code
	}
	defer zeroize(record)

	if HeaderSize+offset > size {
		return status.OffsetInvalid
	}
	if HeaderSize+offset+length > size {
		return status.IncorrectSize
	}

	owner, _ := decodeHeader(record)
	if owner != identity {
		// Indistinguishable from absence: owner isolation must not leak
		// existence of a key owned by someone else (spec.md §8 property
		// #2).
		return status.KeyNotFound
	}

	copy(out, record[HeaderSize+offset:HeaderSize+offset+length])
	return status.Success
}

// Info describes a stored record's payload size and create_flags, as
// returned by GetInfo.
type Info struct {
	Size  int
	Flags uint32
}

// GetInfo implements spec.md §4.6's get_info(uid).
func (s *Service) GetInfo(identity int32, uid uint32) (Info, status.Code) {
	if !validateKey(uid) {
		return Info{}, status.InvalidKey
	}

	record, size, code := s.readRecord(uid)
	if code != status.Success {
		return Info{}, code
	}
	defer zeroize(record)

	owner, flags := decodeHeader(record)
	if owner != identity {
		return Info{}, status.KeyNotFound
	}
	return Info{Size: size - HeaderSize, Flags: flags}, status.Success
}

// Remove implements spec.md §4.6's remove(uid). Write-once records
// cannot be removed: the NV layer rejects it and Remove surfaces
// status.StorageFailure (spec.md §9's resolved open question).
func (s *Service) Remove(identity int32, uid uint32) status.Code {
	if !validateKey(uid) {
		return status.InvalidKey
	}

	record, _, code := s.readRecord(uid)
	if code != status.Success {
		return code
	}
	owner, _ := decodeHeader(record)
	zeroize(record)
	if owner != identity {
		return status.KeyNotFound
	}

	return nvstore.FromNVStoreSet(s.store.Remove(uint16(uid)))
}
