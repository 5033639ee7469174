package machine_test

import "github.com/rcornwell/simtx/internal/isa"

// The encoders below mirror internal/isa.Decode's bit layout in reverse —
// test-only assembler helpers so the scenario suite can write RV32IMF
// instruction streams directly instead of hex literals, the way a real
// assembler would produce them.

func rType(op isa.Opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return uint32(op) | rd<<7 | funct3<<12 | rs1<<15 | rs2<<20 | funct7<<25
}

func iType(op isa.Opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(op) | rd<<7 | funct3<<12 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

func sType(op isa.Opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return uint32(op) | (u&0x1F)<<7 | funct3<<12 | rs1<<15 | rs2<<20 | ((u>>5)&0x7F)<<25
}

func bType(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return uint32(isa.OpBRANCH) |
		((u>>11)&0x1)<<7 | ((u>>1)&0xF)<<8 |
		funct3<<12 | rs1<<15 | rs2<<20 |
		((u>>5)&0x3F)<<25 | ((u>>12)&0x1)<<31
}

func jType(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return uint32(isa.OpJAL) | rd<<7 |
		((u>>12)&0xFF)<<12 | ((u>>11)&0x1)<<20 |
		((u>>1)&0x3FF)<<21 | ((u>>20)&0x1)<<31
}

func uType(op isa.Opcode, rd uint32, imm int32) uint32 {
	return uint32(op) | rd<<7 | (uint32(imm) & 0xFFFFF000)
}

func addi(rd, rs1 uint32, imm int32) uint32 {
	return iType(isa.OpOPIMM, rd, isa.FuncADD, rs1, imm)
}

func nop() uint32 { return addi(0, 0, 0) }

func beq(rs1, rs2 uint32, imm int32) uint32  { return bType(isa.FuncBEQ, rs1, rs2, imm) }
func bne(rs1, rs2 uint32, imm int32) uint32  { return bType(isa.FuncBNE, rs1, rs2, imm) }
func jal(rd uint32, imm int32) uint32        { return jType(rd, imm) }
func jalr(rd, rs1 uint32, imm int32) uint32  { return iType(isa.OpJALR, rd, 0, rs1, imm) }
func sw(rs2, rs1 uint32, imm int32) uint32   { return sType(isa.OpSTORE, isa.FuncWord, rs1, rs2, imm) }
func lw(rd, rs1 uint32, imm int32) uint32    { return iType(isa.OpLOAD, rd, isa.FuncWord, rs1, imm) }
func lui(rd uint32, imm int32) uint32        { return uType(isa.OpLUI, rd, imm) }
