// Package random provides test-fixture helpers: random strings, byte
// slices and Uint256 hashes, used across the wire/peer/chain test suites
// instead of hand-rolled literals.
package random

import (
	"crypto/sha256"
	"math/rand"
	"time"

	"github.com/makonode/p2p/pkg/wire/util"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// String returns a random uppercase string of length n.
func String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(Int(65, 90))
	}
	return string(b)
}

// Bytes returns a random byte slice of length n.
func Bytes(n int) []byte {
	b := make([]byte, n)
	Fill(b)
	return b
}

// Fill fills buf with random bytes.
func Fill(buf []byte) {
	rng.Read(buf)
}

// Int returns a random integer in [min,max).
func Int(min, max int) int {
	return min + rng.Intn(max-min)
}

// Uint256 returns a random Uint256, useful for test fixtures that need a
// plausible but arbitrary hash.
func Uint256() util.Uint256 {
	sum := sha256.Sum256([]byte(String(20)))
	u, _ := util.Uint256DecodeBytes(sum[:])
	return u
}
