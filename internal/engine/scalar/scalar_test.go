package scalar

import (
	"testing"

	"github.com/rcornwell/simtx/internal/isa"
	"github.com/rcornwell/simtx/internal/memory"
)

func assemble(mem *memory.Memory, pc uint32, words ...uint32) {
	for _, w := range words {
		_ = mem.PutWord(pc, w)
		pc += 4
	}
}

func encodeI(op isa.Opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(op) | rd<<7 | funct3<<12 | rs1<<15 | (uint32(imm)&0xFFF)<<20
}

func encodeJALR(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(isa.OpJALR, rd, 0, rs1, imm)
}

func TestUniformArithmeticScenario(t *testing.T) {
	// Entry must be nonzero: warp.IdlePC is 0, so a path booted there would
	// read as already-retired before Step ever ran.
	const entry = 0x400

	mem := memory.New(4096)
	// addi a0, zero, 7; addi a0, a0, 35; jalr zero, 0(ra)
	assemble(mem, entry,
		encodeI(isa.OpOPIMM, 10, isa.FuncADD, 0, 7),
		encodeI(isa.OpOPIMM, 10, isa.FuncADD, 10, 35),
		encodeJALR(0, 1, 0),
	)

	c := New(entry)
	c.SetReg(1, 0) // ra = 0, so the jalr retires the lane (pc&^1 == 0)
	done, err := c.Run(mem, 16)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !done {
		t.Fatal("program did not finish within budget")
	}
	if got := c.GetReg(10); got != 42 {
		t.Fatalf("reg a0 = %d, want 42", got)
	}
}
