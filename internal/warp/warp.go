package warp

import (
	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/predictor"
)

// NoCurrent is the sentinel Current value meaning "no path scheduled";
// the scheduler must be asked again before the warp can execute.
const NoCurrent = -1

// BranchOutcome records what a BRANCH instruction actually did, for the
// per-PC history kept in CondBranchStat — a supplemented diagnostic not
// named in spec.md's field list but called for by its "diagnostic dumps"
// bullet (see SPEC_FULL.md, SUPPLEMENTED FEATURES).
type BranchOutcome struct {
	Divergent    bool
	TakenMask    bitmask.Mask
	NotTakenMask bitmask.Mask
}

// CondBranchStat accumulates history for one conditional branch PC.
type CondBranchStat struct {
	TimesPassed int
	History     []BranchOutcome
}

// LoopStat accumulates how often a detected backward branch/jump has been
// taken, and how many lane-passes went through it.
type LoopStat struct {
	TimesPassed int
	LanesPassed int
}

// Scheduler selects which of a warp's paths should execute next. It is
// declared here, the consumer side, so that reference implementations
// (internal/scheduler) can depend on this package without a cycle.
type Scheduler interface {
	// Schedule returns the index into w.Paths to run next, or ok=false if
	// none are eligible (e.g. every path has an empty mask).
	Schedule(w *Warp) (int, bool)
}

// Warp is a group of lanes sharing one instruction stream, split across
// zero or more divergent paths.
type Warp struct {
	ID    int
	Cores []*core.Core
	Paths []Path

	// Current is the index into Paths currently selected for execution,
	// or NoCurrent if the scheduler must be consulted again.
	Current int

	Predictor *predictor.Predictor

	CondBranchData map[int32]*CondBranchStat
	BranchMaskHist map[int32][]bitmask.Mask
	DetectedLoops  map[int32]int32
	LoopStats      map[int32]*LoopStat

	invalidated bool
}

// New builds a warp of the given number of lanes, idle (no paths) until
// the driver gives it an initial PC via PushPath.
func New(id, lanes int) *Warp {
	cores := make([]*core.Core, lanes)
	for i := range cores {
		cores[i] = &core.Core{}
	}
	return &Warp{
		ID:             id,
		Cores:          cores,
		Current:        NoCurrent,
		Predictor:      predictor.New(),
		CondBranchData: map[int32]*CondBranchStat{},
		BranchMaskHist: map[int32][]bitmask.Mask{},
		DetectedLoops:  map[int32]int32{},
		LoopStats:      map[int32]*LoopStat{},
	}
}

// Lanes returns the number of lanes in this warp.
func (w *Warp) Lanes() int {
	return len(w.Cores)
}

// CurrentPath returns the path selected to run, if any.
func (w *Warp) CurrentPath() (*Path, bool) {
	if w.Current == NoCurrent || w.Current >= len(w.Paths) {
		return nil, false
	}
	return &w.Paths[w.Current], true
}

// SetPC retargets the path at index pid to pc. If another path is already
// fetching from pc, pid's lanes are merged into it and pid is removed —
// this is how a uniform branch or jump reconverges with an existing path
// instead of creating a duplicate, matching implem.rs's set_pc.
func (w *Warp) SetPC(pid int, pc int32) {
	for i := range w.Paths {
		if i == pid {
			continue
		}
		if w.Paths[i].FetchPC == pc {
			w.Paths[i].Mask = w.Paths[i].Mask.Union(w.Paths[pid].Mask)
			w.RemovePath(pid)
			return
		}
	}
	w.Paths[pid].FetchPC = pc
}

// PushPath adds a new path, merging into an existing path at the same
// fetch_pc if one exists. Returns the index the path now occupies.
func (w *Warp) PushPath(p Path) int {
	w.invalidated = true
	for i := range w.Paths {
		if w.Paths[i].FetchPC == p.FetchPC {
			w.Paths[i].Mask = w.Paths[i].Mask.Union(p.Mask)
			return i
		}
	}
	w.Paths = append(w.Paths, p)
	return len(w.Paths) - 1
}

// RemovePath drops the path at index pid. Any removal invalidates the
// current schedule — matching implem.rs, which unconditionally clears
// current_path rather than trying to track index shifts.
func (w *Warp) RemovePath(pid int) {
	w.Paths = append(w.Paths[:pid], w.Paths[pid+1:]...)
	w.Current = NoCurrent
	w.invalidated = true
}

// CleanIdles drains every path whose fetch_pc is IdlePC (lanes that have
// exited or joined) and returns their lane indices translated to global
// ids via offset, for the caller to fold back into the idle lane pool.
func (w *Warp) CleanIdles(offset int) []int {
	var drained []int
	kept := w.Paths[:0]
	for _, p := range w.Paths {
		if p.FetchPC == IdlePC {
			p.Mask.ForEach(func(lane int) { drained = append(drained, offset+lane) })
			continue
		}
		kept = append(kept, p)
	}
	w.Paths = kept
	if len(drained) > 0 {
		w.Current = NoCurrent
		w.invalidated = true
	}
	return drained
}

// RetireAll drives every lane still on an active path to IdlePC, merging
// them into a single idle path so the next CleanIdles call reclaims them
// into the host's idle pool. This is what exit() does to the calling
// lane's warp (spec.md §6 Termination): it retires every active lane of
// that warp, not just the one that called exit.
func (w *Warp) RetireAll() {
	var all bitmask.Mask
	for _, p := range w.Paths {
		all = all.Union(p.Mask)
	}
	w.Paths = w.Paths[:0]
	w.Current = NoCurrent
	w.invalidated = true
	if !all.IsEmpty() {
		w.PushPath(NewPath(IdlePC, all))
	}
}

// Schedule asks s to pick a path and records the result, bumping the Age
// of every path not picked so an age-based scheduler can detect
// starvation.
func (w *Warp) Schedule(s Scheduler) (int, bool) {
	idx, ok := s.Schedule(w)
	if ok {
		w.Current = idx
	}
	for i := range w.Paths {
		if ok && i == idx {
			w.Paths[i].Age = 0
		} else {
			w.Paths[i].Age++
		}
	}
	w.invalidated = false
	return idx, ok
}

// Invalidated reports whether a path was added or removed since the last
// Schedule call, so the machine loop knows to re-schedule this warp
// before stepping it again.
func (w *Warp) Invalidated() bool {
	return w.invalidated
}

func (w *Warp) recordMaskHistory(pc int32, mask bitmask.Mask) {
	w.BranchMaskHist[pc] = append(w.BranchMaskHist[pc], mask)
}

func (w *Warp) recordBranch(pc int32, outcome BranchOutcome) {
	stat, ok := w.CondBranchData[pc]
	if !ok {
		stat = &CondBranchStat{}
		w.CondBranchData[pc] = stat
	}
	stat.TimesPassed++
	stat.History = append(stat.History, outcome)
}

// recordLoop is called whenever a backward BRANCH or backward unconditional
// JAL (rd==0) is fetched, regardless of whether the branch is taken; this
// matches implem.rs, which records the static backward edge at dispatch
// time rather than at runtime resolution.
func (w *Warp) recordLoop(sourcePC, targetPC int32, lanesPassed int) {
	w.DetectedLoops[sourcePC] = targetPC
	stat, ok := w.LoopStats[sourcePC]
	if !ok {
		stat = &LoopStat{}
		w.LoopStats[sourcePC] = stat
	}
	stat.TimesPassed++
	stat.LanesPassed += lanesPassed
}
