package chain

import "math/big"

// compactToBig expands a Bitcoin-style compact "Bits" difficulty target
// into the full 256-bit integer it represents. The encoding is the
// classic base-256 exponent/mantissa scheme (top byte exponent, low three
// bytes mantissa); math/big is a standard-library fit here since no
// example repo carries a big-integer difficulty-target helper of its own.
func compactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := bits >> 24

	target := new(big.Int)
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target.SetUint64(uint64(mantissa))
	} else {
		target.SetUint64(uint64(mantissa))
		target.Lsh(target, uint(8*(exponent-3)))
	}

	if bits&0x00800000 != 0 {
		target.Neg(target)
	}
	return target
}

// verifyPoW reports whether hash, interpreted as a big-endian integer,
// is at or below the target encoded in bits.
func verifyPoW(hashLE [32]byte, bits uint32) bool {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return false
	}

	// hashLE is little-endian wire order; reverse to big-endian for
	// numeric comparison against the target.
	var be [32]byte
	for i := range hashLE {
		be[i] = hashLE[31-i]
	}
	hashInt := new(big.Int).SetBytes(be[:])
	return hashInt.Cmp(target) <= 0
}
