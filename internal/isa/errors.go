package isa

import "errors"

// ErrUnknownOpcode is returned by Decode when the major opcode field does
// not match any instruction this module implements.
var ErrUnknownOpcode = errors.New("isa: unknown opcode")
