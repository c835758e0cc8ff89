package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the op list.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Counted ops: tag byte + uint32 big-endian run length
//   - Single ops: tag byte only
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of ops.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(ops []Op) []byte {
	s := &serializer{buf: make([]byte, 0, 1+len(ops)*5)}
	s.writeByte(HashVersion)
	for _, op := range ops {
		s.writeByte(op.Tag)
		if counted(op.Tag) {
			s.writeUint32(op.Count)
		}
	}
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}
