package chain

import "errors"

// ValidationError occurs when verification of a header or block fails.
type ValidationError struct{ msg string }

func (v ValidationError) Error() string { return v.msg }

// DatabaseError occurs when the chain fails to read/write its storage.
type DatabaseError struct{ msg string }

func (d DatabaseError) Error() string { return d.msg }

// Sentinel errors the CHAIN collaborator returns to POOL.
var (
	// ErrBlockAlreadyExists is returned when a block at or below the
	// current tip is offered again.
	ErrBlockAlreadyExists = errors.New("chain: block already saved")
	// ErrNotContiguous is returned when a header batch does not chain
	// from the current tip.
	ErrNotContiguous = errors.New("chain: headers not contiguous with tip")
	// ErrBadProofOfWork is returned when a header's hash does not meet
	// its own Bits target.
	ErrBadProofOfWork = errors.New("chain: hash does not meet difficulty target")
	// ErrUnknownParent is returned by Add when no header is known for the
	// block's own hash, so its body cannot be recorded yet.
	ErrUnknownParent = errors.New("chain: parent header not found")
)
