// Package isa decodes 32-bit (and 16-bit compressed) RISC-V RV32IMF
// instruction words into a structured Instruction, independent of any
// execution engine.
package isa

import "fmt"

// Instruction is a decoded instruction word together with the size (2 or
// 4 bytes) it occupied in the instruction stream, so callers can advance
// the program counter without re-examining the raw bits.
type Instruction struct {
	Raw   uint32
	Size  uint32
	Op    Opcode
	Rd    uint32
	Rs1   uint32
	Rs2   uint32
	Rs3   uint32 // FMADD family only
	Func3 uint32
	Func7 uint32
	ImmI  int32
	ImmS  int32
	ImmB  int32
	ImmU  int32
	ImmJ  int32
}

func bits(word uint32, hi, lo uint32) uint32 {
	mask := uint32(1)<<(hi-lo+1) - 1
	return (word >> lo) & mask
}

func signExtend(v uint32, width uint32) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

// Decode interprets a 32-bit word as an RV32IMF instruction. The caller
// is responsible for handling compressed (16-bit) words via ExpandCompressed
// first; Decode always consumes a full word and reports Size 4.
func Decode(word uint32) (Instruction, error) {
	op := Opcode(bits(word, 6, 0))
	inst := Instruction{
		Raw:   word,
		Size:  4,
		Op:    op,
		Rd:    bits(word, 11, 7),
		Func3: bits(word, 14, 12),
		Rs1:   bits(word, 19, 15),
		Rs2:   bits(word, 24, 20),
		Func7: bits(word, 31, 25),
	}

	switch op {
	case OpLUI, OpAUIPC:
		inst.ImmU = int32(word & 0xFFFFF000)
	case OpJAL:
		raw := (bits(word, 31, 31) << 20) | (bits(word, 19, 12) << 12) |
			(bits(word, 20, 20) << 11) | (bits(word, 30, 21) << 1)
		inst.ImmJ = signExtend(raw, 21)
	case OpJALR, OpLOAD, OpFLW, OpOPIMM, OpSYSTEM:
		inst.ImmI = signExtend(bits(word, 31, 20), 12)
	case OpSTORE, OpFSW:
		raw := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		inst.ImmS = signExtend(raw, 12)
	case OpBRANCH:
		raw := (bits(word, 31, 31) << 12) | (bits(word, 7, 7) << 11) |
			(bits(word, 30, 25) << 5) | (bits(word, 11, 8) << 1)
		inst.ImmB = signExtend(raw, 13)
	case OpFMADD, OpFMSUB, OpFNMSUB, OpFNMADD:
		inst.Rs3 = bits(word, 31, 27)
		inst.Func7 = bits(word, 26, 25) // fmt: 00=S, 01=D
	case OpOPREG, OpFOPREG:
		// Rs2, Func7 already populated above; FOPREG reuses Rs2 to select
		// the signed/unsigned FCVT variant within a Func7 class, while
		// Func3 selects the sign-inject, min/max, compare and FCLASS ones.
	default:
		return Instruction{}, fmt.Errorf("%w: opcode %#x", ErrUnknownOpcode, uint32(op))
	}

	return inst, nil
}

// ExpandCompressed expands a 16-bit compressed instruction half-word into
// the equivalent 32-bit RV32 word, reporting false if half is not a
// compressed word recognized by this module. Only the handful of forms
// that appear in the corpus of emulated binaries are supported: C.ADDI,
// C.LI, C.MV, C.JR and C.NOP.
func ExpandCompressed(half uint16) (uint32, bool) {
	op := half & 0x3
	if op == 0x3 {
		return 0, false // not actually compressed
	}
	funct3 := (half >> 13) & 0x7

	switch {
	case op == 0x1 && funct3 == 0x0: // C.ADDI / C.NOP
		rd := uint32((half >> 7) & 0x1F)
		imm := signExtend(uint32((half>>12&0x1)<<5|(half>>2&0x1F)), 6)
		return encodeI(OpOPIMM, rd, FuncADD, rd, imm), true
	case op == 0x1 && funct3 == 0x2: // C.LI
		rd := uint32((half >> 7) & 0x1F)
		imm := signExtend(uint32((half>>12&0x1)<<5|(half>>2&0x1F)), 6)
		return encodeI(OpOPIMM, rd, FuncADD, 0, imm), true
	case op == 0x2 && funct3 == 0x4: // C.MV / C.JR
		if (half>>12)&0x1 != 0 {
			return 0, false // C.ADD / C.JALR / C.EBREAK
		}
		rd := uint32((half >> 7) & 0x1F)
		rs2 := uint32((half >> 2) & 0x1F)
		if rs2 == 0 {
			return encodeI(OpJALR, 0, 0, rd, 0), true
		}
		return encodeR(OpOPREG, rd, FuncADD, Funct7Base, 0, rs2), true
	default:
		return 0, false
	}
}

func encodeI(op Opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(op) | rd<<7 | funct3<<12 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

func encodeR(op Opcode, rd, funct3, funct7, rs1, rs2 uint32) uint32 {
	return uint32(op) | rd<<7 | funct3<<12 | rs1<<15 | rs2<<20 | funct7<<25
}
