package its

import "encoding/binary"

// HeaderSize is the fixed, bit-exact on-disk header size (spec.md
// §4.6): a little-endian int32 owner_identity followed by a
// little-endian uint32 create_flags, ahead of the raw payload.
const HeaderSize = 8

// WriteOnce is the sole defined create_flags bit; all others are
// reserved and must be zero.
const WriteOnce uint32 = 1 << 0

// encodeRecord serializes owner/flags/payload into the exact wire
// layout spec.md §4.6 mandates. encoding/binary is used instead of the
// teacher's protobuf-based Cloner because the layout is fixed and
// bit-exact, not self-describing (see DESIGN.md).
func encodeRecord(owner int32, flags uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(owner))
	binary.LittleEndian.PutUint32(buf[4:8], flags)
	copy(buf[HeaderSize:], payload)
	return buf
}

// decodeHeader reads the owner/flags header from the front of buf. The
// caller guarantees len(buf) >= HeaderSize.
func decodeHeader(buf []byte) (owner int32, flags uint32) {
	owner = int32(binary.LittleEndian.Uint32(buf[0:4]))
	flags = binary.LittleEndian.Uint32(buf[4:8])
	return
}

// zeroize overwrites buf with zero bytes. Called on every scratch
// buffer that held record contents before it is released, per spec.md
// §4.6's "zero the scratch buffer before releasing it."
func zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
