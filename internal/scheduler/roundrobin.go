package scheduler

import "github.com/rcornwell/simtx/internal/warp"

// RoundRobin is the reference Scheduler. Among a warp's eligible paths —
// excluding any with no active lanes — it picks whichever has gone
// longest since it last ran (Path.Age), which Warp.Schedule maintains
// for every path on every call. Ties favor the path with more active
// lanes, so a larger chunk of the warp advances together when two paths
// are equally overdue. A path parked on a barrier or thread join is
// still scheduled like any other: dispatchCall just re-runs its
// Blocking handler, which keeps returning ErrNotReady (and the path
// stays split off at the call site) until the wait actually clears.
type RoundRobin struct{}

func (RoundRobin) Schedule(w *warp.Warp) (int, bool) {
	best := -1
	for i, p := range w.Paths {
		if p.Mask.IsEmpty() {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		bp := w.Paths[best]
		if p.Age > bp.Age || (p.Age == bp.Age && p.Mask.Popcount() > bp.Mask.Popcount()) {
			best = i
		}
	}
	return best, best != -1
}
