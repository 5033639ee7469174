package warp

import "errors"

// ErrIllegalAccess is returned by Execute when a LOAD, STORE, FLW, or FSW
// addresses memory outside the bounds of the Memory passed in. The
// machine package wraps this into a FatalError, per spec.md §7.
var ErrIllegalAccess = errors.New("warp: illegal memory access")

// ErrMalformedInstruction is returned by Execute when asked to run an
// opcode it does not implement.
var ErrMalformedInstruction = errors.New("warp: malformed instruction")
