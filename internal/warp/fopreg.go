package warp

import (
	"math"

	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/isa"
)

// executeFOpReg implements the FOPREG opcode class: float arithmetic,
// sign-injection, min/max, integer conversion, compare, and FCLASS. Only
// single precision is exercised here; double precision is reached only
// through FCVT.S.D/FCVT.D.S conversion, per spec.md's Non-goal on full
// float exception semantics.
func (w *Warp) executeFOpReg(lane int, inst isa.Instruction) {
	c := w.Cores[lane]

	switch inst.Func7 {
	case isa.Funct7FADD:
		c.SetF32(inst.Rd, c.GetF32(inst.Rs1)+c.GetF32(inst.Rs2))
	case isa.Funct7FSUB:
		c.SetF32(inst.Rd, c.GetF32(inst.Rs1)-c.GetF32(inst.Rs2))
	case isa.Funct7FMUL:
		c.SetF32(inst.Rd, c.GetF32(inst.Rs1)*c.GetF32(inst.Rs2))
	case isa.Funct7FDIV:
		c.SetF32(inst.Rd, c.GetF32(inst.Rs1)/c.GetF32(inst.Rs2))

	case isa.Funct7FSGNJ:
		executeSignInject(c, inst)

	case isa.Funct7FMINMAX:
		a, b := c.GetF32(inst.Rs1), c.GetF32(inst.Rs2)
		if inst.Func3 == isa.FuncMAX {
			c.SetF32(inst.Rd, max(a, b))
		} else {
			c.SetF32(inst.Rd, min(a, b))
		}

	case isa.Funct7FCVTWS:
		f := c.GetF32(inst.Rs1)
		if inst.Rs2 == 1 {
			c.SetReg(inst.Rd, int32(clampUnsigned(f)))
		} else {
			c.SetReg(inst.Rd, clampSigned(f))
		}

	case isa.Funct7FCVTSW:
		if inst.Rs2 == 1 {
			c.SetF32(inst.Rd, float32(uint32(c.GetReg(inst.Rs1))))
		} else {
			c.SetF32(inst.Rd, float32(c.GetReg(inst.Rs1)))
		}

	case isa.Funct7FCMP:
		a, b := c.GetF32(inst.Rs1), c.GetF32(inst.Rs2)
		var result bool
		switch inst.Func3 {
		case isa.FuncFLE:
			result = a <= b
		case isa.FuncFLT:
			result = a < b
		case isa.FuncFEQ:
			result = a == b
		}
		c.SetReg(inst.Rd, boolToInt32(result))

	case isa.Funct7FCLASS:
		// Shared by Func3: FMV.X.W (0) and FCLASS.S (1).
		switch inst.Func3 {
		case isa.FuncFMVXW:
			c.SetReg(inst.Rd, int32(c.GetFReg(inst.Rs1).Lo))
		case isa.FuncFCLASS:
			// Full IEEE-754 classification is out of scope (spec.md §1,
			// full float exception semantics is a Non-goal); report
			// nothing.
			c.SetReg(inst.Rd, 0)
		}

	case isa.Funct7FMVWX:
		c.SetFReg(inst.Rd, core.Float{Hi: 0xFFFFFFFF, Lo: uint32(c.GetReg(inst.Rs1))})

	case isa.Funct7FCVTSD:
		c.SetF32(inst.Rd, float32(c.GetF64(inst.Rs1)))
	case isa.Funct7FCVTDS:
		c.SetF64(inst.Rd, float64(c.GetF32(inst.Rs1)))
	}
}

func executeSignInject(c *core.Core, inst isa.Instruction) {
	a := c.GetFReg(inst.Rs1)
	sign := c.GetFReg(inst.Rs2).Lo & 0x80000000
	magnitude := a.Lo &^ 0x80000000

	var lo uint32
	switch inst.Func3 {
	case isa.FuncSGNJ:
		lo = magnitude | sign
	case isa.FuncSGNJN:
		lo = magnitude | (^sign & 0x80000000)
	case isa.FuncSGNJX:
		lo = a.Lo ^ sign
	}
	c.SetFReg(inst.Rd, core.Float{Hi: 0xFFFFFFFF, Lo: lo})
}

// clampSigned and clampUnsigned implement FCVT.W.S/FCVT.WU.S's saturating
// behavior at the int32/uint32 bounds, per spec.md §4.2.
func clampSigned(f float32) int32 {
	switch {
	case f >= float32(math.MaxInt32):
		return math.MaxInt32
	case f <= float32(math.MinInt32):
		return math.MinInt32
	default:
		return int32(f)
	}
}

func clampUnsigned(f float32) uint32 {
	switch {
	case f <= 0:
		return 0
	case f >= float32(math.MaxUint32):
		return math.MaxUint32
	default:
		return uint32(f)
	}
}
