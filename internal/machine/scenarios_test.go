package machine_test

import (
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/isa"
	"github.com/rcornwell/simtx/internal/machine"
	"github.com/rcornwell/simtx/internal/memory"
	"github.com/rcornwell/simtx/internal/warp"
)

// entryPoint is the address every scenario below boots its lanes at.
// Address 0 is warp.IdlePC, the sentinel CleanIdles uses to reclaim
// retired lanes, so real code can never start there.
const entryPoint = int32(0x400)

func assemble(mem *memory.Memory, base uint32, words ...uint32) {
	for i, w := range words {
		Expect(mem.PutWord(base+uint32(i)*4, w)).To(Succeed())
	}
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runUntil(m *machine.Machine, maxSteps int, done func() bool) {
	for i := 0; i < maxSteps && !done(); i++ {
		Expect(m.Step()).To(Succeed())
	}
}

var _ = Describe("Uniform arithmetic (spec.md §8 scenario 1)", func() {
	It("computes 7+35=42 identically on every lane", func() {
		const lanes = 3
		mem := memory.New(4096)
		assemble(mem, uint32(entryPoint),
			addi(10, 0, 7),
			addi(10, 10, 35),
			jalr(0, 1, 0), // ra is 0 for every fresh lane: retires to IdlePC
		)
		m := machine.New(lanes, 1, map[int32]string{}, mem, discardLog())
		for i := 0; i < lanes; i++ {
			m.SetPCOf(i, entryPoint)
		}

		runUntil(m, 16, m.Finished)

		Expect(m.Finished()).To(BeTrue())
		for i := 0; i < lanes; i++ {
			Expect(m.GetRegisterOf(i, 10)).To(Equal(int32(42)))
		}
	})
})

var _ = Describe("Data-dependent divergence (spec.md §8 scenario 2)", func() {
	It("diverges on a0 and reconverges with the per-lane result preserved", func() {
		const lanes = 4
		mem := memory.New(4096)
		assemble(mem, uint32(entryPoint),
			beq(10, 0, 0x0C), // branch to else when a0==0
			addi(11, 0, 9),   // a1 = 9 (not-taken side)
			jal(0, 0x08),     // jump to end
			addi(11, 0, 4),   // else: a1 = 4
			nop(),            // end
			jal(0, 0),        // self loop, freezes the reconverged state
		)
		m := machine.New(lanes, 1, map[int32]string{}, mem, discardLog())
		m.SetRegisterOf(0, 10, 1) // lane 0 takes the not-taken branch
		for i := 0; i < lanes; i++ {
			m.SetPCOf(i, entryPoint)
		}

		reconvergedAt := entryPoint + 0x14
		runUntil(m, 20, func() bool {
			return len(m.Warps[0].Paths) == 1 && m.Warps[0].Paths[0].FetchPC == reconvergedAt
		})

		Expect(m.GetRegisterOf(0, 11)).To(Equal(int32(9)))
		for i := 1; i < lanes; i++ {
			Expect(m.GetRegisterOf(i, 11)).To(Equal(int32(4)))
		}
		Expect(m.Warps[0].Paths).To(HaveLen(1))
		Expect(m.Warps[0].Paths[0].Mask.Popcount()).To(Equal(lanes))
	})
})

var _ = Describe("Nested divergence with reconvergence (spec.md §8 scenario 3)", func() {
	It("allows up to 4 concurrent paths mid-region and merges back to one", func() {
		const lanes = 4
		mem := memory.New(4096)
		assemble(mem, uint32(entryPoint),
			beq(10, 0, 0x10), // idx0: branch on a0
			beq(11, 0, 0x18), // idx1: branch on a1 (a0==1 side)
			addi(11, 0, 4),   // idx2: tag lane3
			jal(0, 0x20),     // idx3: -> end
			beq(11, 0, 0x14), // idx4 (L1=+0x10): branch on a1 (a0==0 side)
			addi(11, 0, 2),   // idx5: tag lane1
			jal(0, 0x14),     // idx6: -> end
			addi(11, 0, 3),   // idx7 (L2=+0x1C): tag lane2
			jal(0, 0x0C),     // idx8: -> end
			addi(11, 0, 1),   // idx9 (L3=+0x24): tag lane0
			jal(0, 0x04),     // idx10: -> end
			nop(),            // idx11 (END=+0x2C)
			jal(0, 0),        // idx12: self loop at +0x30
		)
		m := machine.New(lanes, 1, map[int32]string{}, mem, discardLog())
		// (a0,a1) per lane: 0=(0,0) 1=(0,1) 2=(1,0) 3=(1,1)
		m.SetRegisterOf(1, 11, 1)
		m.SetRegisterOf(2, 10, 1)
		m.SetRegisterOf(3, 10, 1)
		m.SetRegisterOf(3, 11, 1)
		for i := 0; i < lanes; i++ {
			m.SetPCOf(i, entryPoint)
		}

		maxPaths := 0
		for i := 0; i < 40; i++ {
			Expect(m.Step()).To(Succeed())
			n := len(m.Warps[0].Paths)
			if n > maxPaths {
				maxPaths = n
			}
			Expect(n).To(BeNumerically("<=", 4))
		}

		Expect(maxPaths).To(Equal(4), "the two sequential branches should have produced all four combinations at some point")
		Expect(m.Warps[0].Paths).To(HaveLen(1))
		Expect(m.Warps[0].Paths[0].Mask.Popcount()).To(Equal(lanes))
		Expect(m.GetRegisterOf(0, 11)).To(Equal(int32(1)))
		Expect(m.GetRegisterOf(1, 11)).To(Equal(int32(2)))
		Expect(m.GetRegisterOf(2, 11)).To(Equal(int32(3)))
		Expect(m.GetRegisterOf(3, 11)).To(Equal(int32(4)))
	})
})

var _ = Describe("Divergence predictor learning (spec.md §8 scenario 4)", func() {
	It("predicts divergence after the 4th consistent occurrence", func() {
		w := warp.New(0, 2)
		branch := isa.Instruction{Op: isa.OpBRANCH, Size: 4, Func3: isa.FuncBEQ, Rs1: 1, Rs2: 2, ImmB: 0x100}
		w.Cores[0].SetReg(1, 1)
		w.Cores[0].SetReg(2, 1) // lane 0 always taken
		w.Cores[1].SetReg(1, 1)
		w.Cores[1].SetReg(2, 2) // lane 1 always not-taken
		mem := memory.New(4096)

		for i := 0; i < 64; i++ {
			w.Paths = nil
			w.Current = warp.NoCurrent
			pid := w.PushPath(warp.NewPath(entryPoint, bitmask.Single(0).Set(1)))
			Expect(w.Execute(mem, pid, branch)).To(Succeed())

			if i >= 3 {
				Expect(w.Predictor.Counter(entryPoint)).To(BeNumerically(">=", 2))
				Expect(w.Predictor.Predict(entryPoint, 2)).To(BeTrue())
			}
		}
	})
})

var _ = Describe("Thread create and join (spec.md §8 scenario 5)", func() {
	It("joins a child that writes to memory before the parent reads it", func() {
		const x = uint32(0x2000)
		const tidPtr = uint32(0x1000)
		const childEntry = int32(0x100)
		const pltCreate, pltWait = int32(0x9000), int32(0x9004)

		mem := memory.New(0x3000)
		assemble(mem, uint32(entryPoint),
			lui(3, int32(x)),               // fp = X
			lui(2, int32(tidPtr)),          // sp = tidPtr
			addi(10, 2, 0),                 // a0 = tidPtr
			addi(11, 0, 0),                 // a1 = attr
			addi(12, 0, int32(childEntry)), // a2 = start routine
			addi(13, 0, 0),                 // a3 = arg
			jal(1, pltCreate-(entryPoint+0x18)),
			lw(14, 2, 0),    // a4 = tid (reload address from sp, a0 was clobbered by the call's return)
			addi(10, 14, 0), // a0 = tid
			jal(1, pltWait-(entryPoint+0x24)),
			lw(15, 3, 0),   // a5 = mem[X]
			addi(1, 0, 0),  // ra = 0
			jalr(0, 1, 0),  // retire
		)
		assemble(mem, uint32(childEntry),
			lui(5, int32(x)),
			addi(6, 0, 123),
			sw(6, 5, 0),
			addi(1, 0, 0),
			jalr(0, 1, 0), // retire
		)

		plt := map[int32]string{
			pltCreate: "pthread_create",
			pltWait:   "pthread_join",
		}
		m := machine.New(2, 1, plt, mem, discardLog())
		m.SetPCOf(0, entryPoint)

		runUntil(m, 100, m.Finished)

		Expect(m.Finished()).To(BeTrue())
		Expect(m.GetPCOf(0)).To(Equal(int32(0)))
		Expect(m.GetPCOf(1)).To(Equal(int32(0)))
		got, err := mem.GetWord(x)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(uint32(123)))
	})
})

var _ = Describe("Barrier synchronization (spec.md §8 scenario 6)", func() {
	It("releases all four lanes only once every lane has arrived", func() {
		const lanes = 4
		const counterBase = int32(0x2000)
		const resultBase = int32(0x1000) // 4K-aligned: lui keeps only the upper 20 bits
		const barrierAddr = int32(0x3000)
		const pltInit, pltWait = int32(0x9000), int32(0x9004)

		mem := memory.New(0x3000)
		assemble(mem, uint32(entryPoint),
			iTypeCSR(5),          // x5 = hartid (lane id)     +0x00
			lui(6, counterBase),  // x6 = counterArr base      +0x04
			iSLLI(7, 5, 2),       // x7 = id*4                 +0x08
			rADD(6, 6, 7),        // x6 = counterArr + id*4    +0x0C
			addi(8, 0, 1),        // x8 = 1                     +0x10
			sw(8, 6, 0),          // counterArr[id] = 1        +0x14
			lui(10, barrierAddr), // a0 = barrier addr          +0x18
			addi(11, 0, 0),       // a1 = attr                  +0x1C
			addi(12, 0, lanes),   // a2 = capacity              +0x20
			jal(1, pltInit-(entryPoint+0x24)),
			lui(10, barrierAddr), // a0 = barrier addr (reload)  +0x28
			jal(1, pltWait-(entryPoint+0x2C)),
			lui(6, counterBase), // x6 = counterArr base (reload) +0x30
			lw(13, 6, 0),        // x13 = counterArr[0]            +0x34
			lw(14, 6, 4),        // x14 = counterArr[1]            +0x38
			lw(15, 6, 8),        // x15 = counterArr[2]            +0x3C
			lw(16, 6, 12),       // x16 = counterArr[3]            +0x40
			rADD(17, 13, 14),    // sum = c0+c1                    +0x44
			rADD(17, 17, 15),    // sum += c2                      +0x48
			rADD(17, 17, 16),    // sum += c3                      +0x4C
			lui(18, resultBase), // x18 = resultArr base           +0x50
			iSLLI(19, 5, 2),     // x19 = id*4                     +0x54
			rADD(18, 18, 19),    // x18 = resultArr + id*4         +0x58
			sw(17, 18, 0),       // resultArr[id] = sum            +0x5C
			addi(1, 0, 0),       //                                +0x60
			jalr(0, 1, 0),       // retire                         +0x64
		)

		plt := map[int32]string{
			pltInit: "pthread_barrier_init",
			pltWait: "pthread_barrier_wait",
		}
		m := machine.New(lanes, 1, plt, mem, discardLog())
		for i := 0; i < lanes; i++ {
			m.SetPCOf(i, entryPoint)
		}

		runUntil(m, 200, m.Finished)

		Expect(m.Finished()).To(BeTrue())
		for i := int32(0); i < lanes; i++ {
			got, err := mem.GetWord(uint32(resultBase) + uint32(i)*4)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(uint32(lanes)), "lane %d should observe every peer's increment", i)
		}
	})
})

func iTypeCSR(rd uint32) uint32 {
	return iType(isa.OpSYSTEM, rd, isa.FuncCSRRS, 0, int32(isa.CSRMHARTID))
}

func iSLLI(rd, rs1 uint32, shamt int32) uint32 {
	return iType(isa.OpOPIMM, rd, isa.FuncSLL, rs1, shamt)
}

func rADD(rd, rs1, rs2 uint32) uint32 {
	return rType(isa.OpOPREG, rd, isa.FuncADD, rs1, rs2, isa.Funct7Base)
}
