package scheduler

import (
	"testing"

	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/warp"
)

func TestRoundRobinPicksOldestEligible(t *testing.T) {
	w := warp.New(0, 4)
	w.PushPath(warp.NewPath(0x100, bitmask.Single(0)))
	w.PushPath(warp.NewPath(0x200, bitmask.Single(1)))
	w.Paths[0].Age = 3
	w.Paths[1].Age = 9

	idx, ok := (RoundRobin{}).Schedule(w)
	if !ok || idx != 1 {
		t.Fatalf("Schedule got: (%d,%v) expected: (1,true)", idx, ok)
	}
}

func TestRoundRobinNoneEligible(t *testing.T) {
	w := warp.New(0, 4)
	w.PushPath(warp.NewPath(0x100, bitmask.Single(0)))
	w.Paths[0].Mask = w.Paths[0].Mask.Clear(0)

	_, ok := (RoundRobin{}).Schedule(w)
	if ok {
		t.Errorf("Schedule reported an eligible path when none should qualify")
	}
}

func TestRoundRobinBreaksTiesByLargerMask(t *testing.T) {
	w := warp.New(0, 4)
	w.PushPath(warp.NewPath(0x100, bitmask.Single(0)))
	w.PushPath(warp.NewPath(0x200, bitmask.Single(1).Set(2)))
	w.Paths[0].Age = 5
	w.Paths[1].Age = 5

	idx, ok := (RoundRobin{}).Schedule(w)
	if !ok || idx != 1 {
		t.Fatalf("Schedule got: (%d,%v) expected: (1,true) (larger mask wins tie)", idx, ok)
	}
}
