// Package scheduler provides the pluggable path-scheduling strategy
// described in spec.md §4.3, plus a round-robin reference implementation.
// No teacher package has an analogous concept (S/370 has no warps to
// schedule); the interface itself is specified directly by spec.md.
package scheduler

import "github.com/rcornwell/simtx/internal/warp"

// Scheduler is an alias for warp.Scheduler so callers outside warp don't
// need to import that package just to name the interface.
type Scheduler = warp.Scheduler
