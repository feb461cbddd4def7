// Package bloom implements the per-peer approximate membership filters
// PEER keeps: one tracking addresses already relayed to a peer
// (capacity 5000, FPR 0.001) and one tracking inventory already
// sent/seen (capacity 50000, FPR 1e-6). Hashed with twmb/murmur3, the
// same non-cryptographic hash family Bitcoin's own BIP37 bloom filter
// uses, rather than the stdlib FNV.
package bloom

import (
	"math"

	"github.com/twmb/murmur3"
)

// Filter is a classic k-hash-function Bloom filter sized for a target
// capacity and false-positive rate.
type Filter struct {
	bits []uint64
	m    uint64
	k    uint32
}

// New builds a Filter sized to hold capacity items at the given false
// positive rate.
func New(capacity int, fpr float64) *Filter {
	m := optimalM(capacity, fpr)
	k := optimalK(capacity, m)
	words := (m + 63) / 64
	return &Filter{bits: make([]uint64, words), m: uint64(m), k: k}
}

func optimalM(n int, p float64) int {
	if n <= 0 {
		n = 1
	}
	m := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	if m < 64 {
		m = 64
	}
	return int(math.Ceil(m))
}

func optimalK(n, m int) uint32 {
	if n <= 0 {
		n = 1
	}
	k := float64(m) / float64(n) * math.Ln2
	if k < 1 {
		k = 1
	}
	return uint32(math.Round(k))
}

// Add inserts b into the filter.
func (f *Filter) Add(b []byte) {
	h1, h2 := murmur3.SeedSum128(0, 0x5bd1e995, b)
	for i := uint32(0); i < f.k; i++ {
		idx := (h1 + uint64(i)*h2) % f.m
		f.bits[idx/64] |= 1 << (idx % 64)
	}
}

// Contains reports whether b was (probably) added before. False positives
// are possible; false negatives are not.
func (f *Filter) Contains(b []byte) bool {
	h1, h2 := murmur3.SeedSum128(0, 0x5bd1e995, b)
	for i := uint32(0); i < f.k; i++ {
		idx := (h1 + uint64(i)*h2) % f.m
		if f.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}
