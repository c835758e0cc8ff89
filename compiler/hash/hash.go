// Package hash computes content hashes of programs that ignore comments
// and layout.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashProgram computes the SHA-256 content hash of a program.
//
// The hash is computed over a deterministic serialization of the
// normalized op list. Two programs that differ only in comments,
// whitespace produce the same hash.
func HashProgram(src string) [32]byte {
	return sha256.Sum256(Serialize(Normalize(src)))
}

// HexHash returns HashProgram as a lowercase hex string.
func HexHash(src string) string {
	h := HashProgram(src)
	return hex.EncodeToString(h[:])
}
