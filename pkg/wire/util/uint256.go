// Package util holds the small wire-shared value types: the 32-byte hash
// used throughout the protocol and the network address record carried in
// `version`/`addr` messages.
package util

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/makonode/p2p/pkg/wire/util/slice"
)

// Uint256Size is the length in bytes of a Uint256.
const Uint256Size = 32

// Uint256 is a 32-byte hash, stored internally in wire (little-endian)
// byte order, the order it is hashed and transmitted in. String/JSON
// render it reversed, matching the conventional big-endian display order
// block and transaction hashes are shown in.
type Uint256 [Uint256Size]byte

// Uint256DecodeBytes decodes a wire-order (little-endian) byte slice into
// a Uint256.
func Uint256DecodeBytes(b []byte) (Uint256, error) {
	if len(b) != Uint256Size {
		return Uint256{}, errors.New("util: wrong byte length for Uint256")
	}
	var u Uint256
	copy(u[:], b)
	return u, nil
}

// Uint256DecodeString decodes a display-order (big-endian) hex string into
// a Uint256.
func Uint256DecodeString(s string) (Uint256, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Uint256{}, err
	}
	return Uint256DecodeBytes(slice.Reverse(b))
}

// Bytes returns the wire-order (little-endian) byte representation.
func (u Uint256) Bytes() []byte {
	out := make([]byte, Uint256Size)
	copy(out, u[:])
	return out
}

// String returns the display-order (big-endian) hex representation.
func (u Uint256) String() string { return hex.EncodeToString(slice.Reverse(u[:])) }

// Equals reports whether u and v are the same hash.
func (u Uint256) Equals(v Uint256) bool { return bytes.Equal(u[:], v[:]) }

// Less provides a total order over hashes, comparing wire-order bytes.
func (u Uint256) Less(v Uint256) bool { return bytes.Compare(u[:], v[:]) < 0 }

// IsZero reports whether u is the zero hash (used as a "no stop hash" /
// genesis-parent sentinel in getblocks/getheaders).
func (u Uint256) IsZero() bool { return u == Uint256{} }

// MarshalJSON implements json.Marshaler.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler, accepting an optional 0x prefix.
func (u *Uint256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := Uint256DecodeString(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
