// Package warp implements the SIMT engine's per-warp state: the set of
// paths a warp is currently executing, the per-lane register files behind
// them, and the instruction execution that drives both forward.
package warp

import "github.com/rcornwell/simtx/internal/bitmask"

// IdlePC is the sentinel fetch_pc value marking a path whose lanes have
// finished (exited or joined) and are waiting to be reclaimed into the
// machine's idle lane pool by CleanIdles.
const IdlePC = 0

// Path is one program-counter value together with the set of the warp's
// lanes currently fetching from it.
type Path struct {
	FetchPC int32
	Mask    bitmask.Mask
	Age     int // cycles since this path was last scheduled
}

// NewPath builds a path at pc with the given active lanes.
func NewPath(pc int32, mask bitmask.Mask) Path {
	return Path{FetchPC: pc, Mask: mask}
}

// IsSingle reports whether exactly one lane follows this path.
func (p Path) IsSingle() bool {
	return p.Mask.IsSingleton()
}
