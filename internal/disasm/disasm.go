// Package disasm renders decoded instructions as assembly text for the
// machine's diagnostic dumps. Grounded on emu/disassemble/disassemble.go's
// shape (a mnemonic table plus per-operand-class formatting, returning the
// formatted text and the instruction's byte length) — regeneralized from
// S/370's RR/RX/RS/SI/S/SS operand classes to RV32IMF's register/immediate
// fields.
package disasm

import (
	"fmt"

	"github.com/rcornwell/simtx/internal/isa"
)

// Format renders inst as "mnemonic operands", padding the mnemonic with
// trailing spaces to an 8-column field the way emu/disassemble pads its
// opcode column, and returns the text together
// with the instruction's size in bytes so a caller walking a code section
// can advance past it.
func Format(inst isa.Instruction) (string, uint32) {
	mnem := isa.Mnemonic(inst)
	padded := mnem + "        "
	padded = padded[:8]

	var operands string
	switch inst.Op {
	case isa.OpLUI, isa.OpAUIPC:
		operands = fmt.Sprintf("x%d, %#x", inst.Rd, uint32(inst.ImmU)>>12)
	case isa.OpJAL:
		operands = fmt.Sprintf("x%d, %+d", inst.Rd, inst.ImmJ)
	case isa.OpJALR:
		operands = fmt.Sprintf("x%d, %d(x%d)", inst.Rd, inst.ImmI, inst.Rs1)
	case isa.OpBRANCH:
		operands = fmt.Sprintf("x%d, x%d, %+d", inst.Rs1, inst.Rs2, inst.ImmB)
	case isa.OpLOAD:
		operands = fmt.Sprintf("x%d, %d(x%d)", inst.Rd, inst.ImmI, inst.Rs1)
	case isa.OpSTORE:
		operands = fmt.Sprintf("x%d, %d(x%d)", inst.Rs2, inst.ImmS, inst.Rs1)
	case isa.OpOPIMM:
		operands = fmt.Sprintf("x%d, x%d, %d", inst.Rd, inst.Rs1, inst.ImmI)
	case isa.OpOPREG:
		operands = fmt.Sprintf("x%d, x%d, x%d", inst.Rd, inst.Rs1, inst.Rs2)
	case isa.OpFLW, isa.OpFSW:
		reg := inst.Rd
		imm := inst.ImmI
		if inst.Op == isa.OpFSW {
			reg = inst.Rs2
			imm = inst.ImmS
		}
		operands = fmt.Sprintf("f%d, %d(x%d)", reg, imm, inst.Rs1)
	case isa.OpFMADD, isa.OpFMSUB, isa.OpFNMSUB, isa.OpFNMADD:
		operands = fmt.Sprintf("f%d, f%d, f%d, f%d", inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3)
	case isa.OpFOPREG:
		switch inst.Func7 {
		case isa.Funct7FCVTWS:
			operands = fmt.Sprintf("x%d, f%d", inst.Rd, inst.Rs1)
		case isa.Funct7FCVTSW:
			operands = fmt.Sprintf("f%d, x%d", inst.Rd, inst.Rs1)
		case isa.Funct7FCMP:
			operands = fmt.Sprintf("x%d, f%d, f%d", inst.Rd, inst.Rs1, inst.Rs2)
		default:
			operands = fmt.Sprintf("f%d, f%d, f%d", inst.Rd, inst.Rs1, inst.Rs2)
		}
	case isa.OpSYSTEM:
		operands = fmt.Sprintf("x%d, %#x", inst.Rd, uint32(inst.ImmI)&0xFFF)
	default:
		return fmt.Sprintf("%#08x", inst.Raw), inst.Size
	}
	return padded + operands, inst.Size
}

// FormatAt decodes an instruction word the caller has already fetched
// (compressed or full-width) and formats it, for a driver's "dump the next
// N instructions" diagnostic. If the low 16 bits are a compressed form
// ExpandCompressed recognizes, only they are used and the size is 2.
func FormatAt(word uint32) (string, uint32, error) {
	if expanded, compressed := isa.ExpandCompressed(uint16(word)); compressed {
		inst, err := isa.Decode(expanded)
		if err != nil {
			return "", 0, err
		}
		inst.Size = 2
		text, _ := Format(inst)
		return text, 2, nil
	}
	inst, err := isa.Decode(word)
	if err != nil {
		return "", 0, err
	}
	text, size := Format(inst)
	return text, size, nil
}
