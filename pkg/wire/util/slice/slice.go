// Package slice holds small byte-slice helpers shared by the wire codec,
// in particular the byte-order reversal between a hash's wire
// representation and its display (big-endian hex) representation.
package slice

// Reverse returns a new slice with b's bytes in reverse order. b is left
// untouched.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
