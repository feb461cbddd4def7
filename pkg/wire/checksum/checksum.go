// Package checksum computes the frame checksum: the first four bytes of
// double-SHA256 over the payload. There is no third-party
// double-SHA256 helper available, so this wraps the standard library
// crypto/sha256 directly — a single, well-understood primitive, not a
// case for pulling in an external hashing library.
package checksum

import "crypto/sha256"

// Size is the number of checksum bytes carried in a frame header.
const Size = 4

// DoubleSha256 returns SHA256(SHA256(b)).
func DoubleSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Sum returns the first Size bytes of DoubleSha256(b), the frame checksum.
func Sum(b []byte) [Size]byte {
	full := DoubleSha256(b)
	var out [Size]byte
	copy(out[:], full[:Size])
	return out
}
