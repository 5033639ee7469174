// Package scalar implements the single-lane, in-order reference engine:
// a cross-check oracle for the SIMT warp engine, not a user-facing
// execution mode. spec.md §1 calls the scalar pipeline "the scalar
// pipelined variant used only as a reference" and places its own
// correctness out of scope; what's in scope here is using the same
// decode/execute semantics the warp engine uses, with exactly one lane,
// so that a program whose warp-level execution never diverges can be
// checked against it instruction for instruction.
//
// Grounded on original_source/src/machine.rs's RV32IMachine: a plain
// fetch-decode-execute loop with no pipeline staging, since cycle-accurate
// timing is a non-goal (spec.md §1 Non-goals). Rather than re-implement
// RV32IMF semantics a second time, Core wraps a one-lane warp.Warp and
// drives its existing Execute/SetPC/PushPath machinery — the scalar core
// is the degenerate case of the SIMT engine, not a separate codebase.
package scalar

import (
	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/isa"
	"github.com/rcornwell/simtx/internal/memory"
	"github.com/rcornwell/simtx/internal/warp"
)

// Core is a single-lane in-order RV32IMF engine used only to cross-check
// the warp engine's uniform-mask execution in tests.
type Core struct {
	w *warp.Warp
}

// New builds a Core with its program counter at entry.
func New(entry int32) *Core {
	w := warp.New(0, 1)
	w.PushPath(warp.NewPath(entry, bitmask.Single(0)))
	return &Core{w: w}
}

// PC returns the current program counter, or warp.IdlePC once the
// program has exited.
func (c *Core) PC() int32 {
	if len(c.w.Paths) == 0 {
		return warp.IdlePC
	}
	return c.w.Paths[0].FetchPC
}

// Finished reports whether the lane has retired.
func (c *Core) Finished() bool {
	return c.PC() == warp.IdlePC
}

// GetReg and SetReg expose the lane's integer register file directly, for
// bootstrapping a program's initial registers and reading its result.
func (c *Core) GetReg(i uint32) int32    { return c.w.Cores[0].GetReg(i) }
func (c *Core) SetReg(i uint32, v int32) { c.w.Cores[0].SetReg(i, v) }
func (c *Core) RawCore() *core.Core      { return c.w.Cores[0] }

// Step fetches, decodes, and executes one instruction from mem at the
// current PC. Unlike Machine.Step, there is no PLT interception or CSR
// handling here — the scalar core exists to validate opcode execution,
// not the runtime-call or thread-id machinery, so it executes every
// decoded instruction directly through warp.Execute.
func (c *Core) Step(mem *memory.Memory) error {
	if c.Finished() {
		return nil
	}
	pc := c.w.Paths[0].FetchPC

	word, err := mem.GetWord(uint32(pc))
	if err != nil {
		return err
	}

	var inst isa.Instruction
	if expanded, compressed := isa.ExpandCompressed(uint16(word)); compressed {
		inst, err = isa.Decode(expanded)
		inst.Size = 2
	} else {
		inst, err = isa.Decode(word)
	}
	if err != nil {
		return err
	}

	return c.w.Execute(mem, 0, inst)
}

// Run steps the core until it retires or maxCycles is exhausted, returning
// false if the budget ran out first — a test guard against an infinite
// loop in a program under test, not a feature the original specifies.
func (c *Core) Run(mem *memory.Memory, maxCycles int) (bool, error) {
	for i := 0; i < maxCycles; i++ {
		if c.Finished() {
			return true, nil
		}
		if err := c.Step(mem); err != nil {
			return false, err
		}
	}
	return c.Finished(), nil
}
