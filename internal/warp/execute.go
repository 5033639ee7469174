package warp

import (
	"fmt"

	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/isa"
	"github.com/rcornwell/simtx/internal/memory"
)

// Execute runs inst across every active lane of the path at pid, mutating
// register files and — for control-flow instructions — the warp's path
// list. The caller (internal/machine) has already ruled out SYSTEM CSR
// reads and PLT-intercepted JAL targets, which it handles itself; every
// other opcode in spec.md §4.2 is executed here.
func (w *Warp) Execute(mem *memory.Memory, pid int, inst isa.Instruction) error {
	path := &w.Paths[pid]
	pc := path.FetchPC
	mask := path.Mask

	switch inst.Op {
	case isa.OpLUI:
		mask.ForEach(func(lane int) { w.Cores[lane].SetReg(inst.Rd, inst.ImmU) })
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpAUIPC:
		mask.ForEach(func(lane int) { w.Cores[lane].SetReg(inst.Rd, pc+inst.ImmU) })
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpJAL:
		link := pc + int32(inst.Size)
		mask.ForEach(func(lane int) { w.Cores[lane].SetReg(inst.Rd, link) })
		if inst.Rd == 0 && inst.ImmJ < 0 {
			w.recordLoop(pc, pc+inst.ImmJ, mask.Popcount())
		}
		w.SetPC(pid, pc+inst.ImmJ)

	case isa.OpJALR:
		return w.executeJALR(pid, inst)

	case isa.OpBRANCH:
		return w.executeBranch(pid, inst)

	case isa.OpLOAD:
		if err := w.executeLoad(mem, mask, pc, inst); err != nil {
			return err
		}
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpSTORE:
		if err := w.executeStore(mem, mask, pc, inst); err != nil {
			return err
		}
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpOPIMM:
		mask.ForEach(func(lane int) { w.executeOpImm(lane, inst) })
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpOPREG:
		mask.ForEach(func(lane int) { w.executeOpReg(lane, inst) })
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpFLW:
		if err := w.executeFLW(mem, mask, pc, inst); err != nil {
			return err
		}
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpFSW:
		if err := w.executeFSW(mem, mask, pc, inst); err != nil {
			return err
		}
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpFMADD, isa.OpFMSUB, isa.OpFNMSUB, isa.OpFNMADD:
		mask.ForEach(func(lane int) { w.executeFMA(lane, inst) })
		w.SetPC(pid, pc+int32(inst.Size))

	case isa.OpFOPREG:
		mask.ForEach(func(lane int) { w.executeFOpReg(lane, inst) })
		w.SetPC(pid, pc+int32(inst.Size))

	default:
		return fmt.Errorf("%w: opcode %#x", ErrMalformedInstruction, uint32(inst.Op))
	}
	return nil
}

func (w *Warp) executeJALR(pid int, inst isa.Instruction) error {
	path := &w.Paths[pid]
	pc := path.FetchPC
	mask := path.Mask
	link := pc + int32(inst.Size)

	targets := make(map[int32]bitmask.Mask)
	mask.ForEach(func(lane int) {
		c := w.Cores[lane]
		target := (c.GetReg(inst.Rs1) + inst.ImmI) &^ 1
		c.SetReg(inst.Rd, link)
		targets[target] = targets[target].Set(lane)
	})

	if len(targets) == 1 {
		for target := range targets {
			w.SetPC(pid, target)
		}
		return nil
	}

	w.RemovePath(pid)
	for target, groupMask := range targets {
		idx := w.PushPath(NewPath(target, groupMask))
		if target == pc {
			w.Current = idx
		}
	}
	return nil
}

func (w *Warp) executeBranch(pid int, inst isa.Instruction) error {
	path := &w.Paths[pid]
	pc := path.FetchPC
	mask := path.Mask

	var taken, notTaken bitmask.Mask
	mask.ForEach(func(lane int) {
		c := w.Cores[lane]
		if branchTaken(inst.Func3, c.GetReg(inst.Rs1), c.GetReg(inst.Rs2)) {
			taken = taken.Set(lane)
		} else {
			notTaken = notTaken.Set(lane)
		}
	})

	if inst.ImmB < 0 {
		w.recordLoop(pc, pc+inst.ImmB, mask.Popcount())
	}

	predicted := w.Predictor.Predict(pc, mask.Popcount())
	actualDivergent := !taken.IsEmpty() && !notTaken.IsEmpty()
	if mask.Popcount() > 1 {
		// A single active lane can never diverge; folding its outcome into
		// the counter/histogram would teach the predictor from branches it
		// was never asked to predict (spec.md §4.4).
		w.Predictor.Update(pc, predicted, actualDivergent)
	}
	w.recordMaskHistory(pc, mask)
	w.recordBranch(pc, BranchOutcome{Divergent: actualDivergent, TakenMask: taken, NotTakenMask: notTaken})

	switch {
	case notTaken.IsEmpty():
		w.SetPC(pid, pc+inst.ImmB)
	case taken.IsEmpty():
		w.SetPC(pid, pc+int32(inst.Size))
	default:
		w.RemovePath(pid)
		w.PushPath(NewPath(pc+inst.ImmB, taken))
		w.PushPath(NewPath(pc+int32(inst.Size), notTaken))
	}
	return nil
}

func branchTaken(funct3 uint32, a, b int32) bool {
	switch funct3 {
	case isa.FuncBEQ:
		return a == b
	case isa.FuncBNE:
		return a != b
	case isa.FuncBLT:
		return a < b
	case isa.FuncBGE:
		return a >= b
	case isa.FuncBLTU:
		return uint32(a) < uint32(b)
	case isa.FuncBGEU:
		return uint32(a) >= uint32(b)
	default:
		return false
	}
}

func (w *Warp) executeLoad(mem *memory.Memory, mask bitmask.Mask, pc int32, inst isa.Instruction) error {
	var outerErr error
	mask.ForEach(func(lane int) {
		if outerErr != nil {
			return
		}
		c := w.Cores[lane]
		addr := uint32(c.GetReg(inst.Rs1) + inst.ImmI)
		var v int32
		switch inst.Func3 {
		case isa.FuncByte:
			b, err := mem.GetByte(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			v = int32(int8(b))
		case isa.FuncByteU:
			b, err := mem.GetByte(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			v = int32(b)
		case isa.FuncHalf:
			h, err := mem.GetHalf(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			v = int32(int16(h))
		case isa.FuncHalfU:
			h, err := mem.GetHalf(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			v = int32(h)
		case isa.FuncWord:
			word, err := mem.GetWord(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			v = int32(word)
		default:
			outerErr = fmt.Errorf("%w: load funct3 %#x", ErrMalformedInstruction, inst.Func3)
			return
		}
		c.SetReg(inst.Rd, v)
	})
	return outerErr
}

func (w *Warp) executeStore(mem *memory.Memory, mask bitmask.Mask, pc int32, inst isa.Instruction) error {
	var outerErr error
	mask.ForEach(func(lane int) {
		if outerErr != nil {
			return
		}
		c := w.Cores[lane]
		addr := uint32(c.GetReg(inst.Rs1) + inst.ImmS)
		v := c.GetReg(inst.Rs2)
		var err error
		switch inst.Func3 {
		case isa.FuncByte:
			err = mem.PutByte(addr, uint8(v))
		case isa.FuncHalf:
			err = mem.PutHalf(addr, uint16(v))
		case isa.FuncWord:
			err = mem.PutWord(addr, uint32(v))
		default:
			err = fmt.Errorf("%w: store funct3 %#x", ErrMalformedInstruction, inst.Func3)
		}
		if err != nil {
			outerErr = wrapAccess(err)
		}
	})
	return outerErr
}

func wrapAccess(err error) error {
	return fmt.Errorf("%w: %v", ErrIllegalAccess, err)
}

func (w *Warp) executeOpImm(lane int, inst isa.Instruction) {
	c := w.Cores[lane]
	a := c.GetReg(inst.Rs1)
	var r int32
	switch inst.Func3 {
	case isa.FuncADD:
		r = a + inst.ImmI
	case isa.FuncSLT:
		r = boolToInt32(a < inst.ImmI)
	case isa.FuncSLTU:
		r = boolToInt32(uint32(a) < uint32(inst.ImmI))
	case isa.FuncXOR:
		r = a ^ inst.ImmI
	case isa.FuncOR:
		r = a | inst.ImmI
	case isa.FuncAND:
		r = a & inst.ImmI
	case isa.FuncSLL:
		r = a << uint32(inst.ImmI&0x1F)
	case isa.FuncSR:
		shamt := uint32(inst.ImmI & 0x1F)
		if inst.Func7 == isa.Funct7Alt {
			r = a >> shamt
		} else {
			r = int32(uint32(a) >> shamt)
		}
	}
	c.SetReg(inst.Rd, r)
}

func (w *Warp) executeOpReg(lane int, inst isa.Instruction) {
	c := w.Cores[lane]
	a := c.GetReg(inst.Rs1)
	b := c.GetReg(inst.Rs2)
	var r int32

	if inst.Func7 == isa.Funct7MExt {
		r = executeMExt(inst.Func3, a, b)
		c.SetReg(inst.Rd, r)
		return
	}

	switch inst.Func3 {
	case isa.FuncADD:
		if inst.Func7 == isa.Funct7Alt {
			r = a - b
		} else {
			r = a + b
		}
	case isa.FuncSLT:
		r = boolToInt32(a < b)
	case isa.FuncSLTU:
		r = boolToInt32(uint32(a) < uint32(b))
	case isa.FuncXOR:
		r = a ^ b
	case isa.FuncOR:
		r = a | b
	case isa.FuncAND:
		r = a & b
	case isa.FuncSLL:
		r = a << uint32(b&0x1F)
	case isa.FuncSR:
		shamt := uint32(b & 0x1F)
		if inst.Func7 == isa.Funct7Alt {
			r = a >> shamt
		} else {
			r = int32(uint32(a) >> shamt)
		}
	}
	c.SetReg(inst.Rd, r)
}

// executeMExt implements the M-extension's division-by-zero conventions
// directly: DIV/DIVU by zero yield all-ones, REM/REMU by zero yield the
// dividend unchanged, matching implem.rs's OpCode::OPREG funct7=0b1 arm.
func executeMExt(funct3 uint32, a, b int32) int32 {
	switch funct3 {
	case isa.FuncMUL:
		return a * b
	case isa.FuncMULH:
		return int32((int64(a) * int64(b)) >> 32)
	case isa.FuncMULHSU:
		return int32((int64(a) * int64(uint32(b))) >> 32)
	case isa.FuncMULHU:
		return int32((uint64(uint32(a)) * uint64(uint32(b))) >> 32)
	case isa.FuncDIV:
		if b == 0 {
			return -1
		}
		if a == -2147483648 && b == -1 {
			return a
		}
		return a / b
	case isa.FuncDIVU:
		if b == 0 {
			return -1
		}
		return int32(uint32(a) / uint32(b))
	case isa.FuncREM:
		if b == 0 {
			return a
		}
		if a == -2147483648 && b == -1 {
			return 0
		}
		return a % b
	case isa.FuncREMU:
		if b == 0 {
			return a
		}
		return int32(uint32(a) % uint32(b))
	default:
		return 0
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (w *Warp) executeFLW(mem *memory.Memory, mask bitmask.Mask, pc int32, inst isa.Instruction) error {
	var outerErr error
	mask.ForEach(func(lane int) {
		if outerErr != nil {
			return
		}
		c := w.Cores[lane]
		addr := uint32(c.GetReg(inst.Rs1) + inst.ImmI)
		switch inst.Func3 {
		case 2: // single precision, NaN-boxed
			word, err := mem.GetWord(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			c.SetFReg(inst.Rd, core.Float{Hi: 0xFFFFFFFF, Lo: word})
		case 3: // double precision, hi word then lo word
			hi, err := mem.GetWord(addr)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			lo, err := mem.GetWord(addr + 4)
			if err != nil {
				outerErr = wrapAccess(err)
				return
			}
			c.SetFReg(inst.Rd, core.Float{Hi: hi, Lo: lo})
		default:
			outerErr = fmt.Errorf("%w: flw funct3 %#x", ErrMalformedInstruction, inst.Func3)
		}
	})
	return outerErr
}

func (w *Warp) executeFSW(mem *memory.Memory, mask bitmask.Mask, pc int32, inst isa.Instruction) error {
	var outerErr error
	mask.ForEach(func(lane int) {
		if outerErr != nil {
			return
		}
		c := w.Cores[lane]
		addr := uint32(c.GetReg(inst.Rs1) + inst.ImmS)
		f := c.GetFReg(inst.Rs2)
		switch inst.Func3 {
		case 2:
			if err := mem.PutWord(addr, f.Lo); err != nil {
				outerErr = wrapAccess(err)
			}
		case 3:
			if err := mem.PutWord(addr, f.Hi); err != nil {
				outerErr = wrapAccess(err)
				return
			}
			if err := mem.PutWord(addr+4, f.Lo); err != nil {
				outerErr = wrapAccess(err)
			}
		default:
			outerErr = fmt.Errorf("%w: fsw funct3 %#x", ErrMalformedInstruction, inst.Func3)
		}
	})
	return outerErr
}

func (w *Warp) executeFMA(lane int, inst isa.Instruction) {
	c := w.Cores[lane]
	a := c.GetF32(inst.Rs1)
	b := c.GetF32(inst.Rs2)
	d := c.GetF32(inst.Rs3)
	var r float32
	switch inst.Op {
	case isa.OpFMADD:
		r = a*b + d
	case isa.OpFMSUB:
		r = a*b - d
	case isa.OpFNMSUB:
		r = -(a*b - d)
	case isa.OpFNMADD:
		r = -(a*b + d)
	}
	c.SetF32(inst.Rd, r)
}
