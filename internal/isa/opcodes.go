package isa

// Opcode is the 7-bit major opcode field (bits [6:0]) of a 32-bit
// instruction word, after any compressed instruction has been expanded.
type Opcode uint32

const (
	OpLUI    Opcode = 0x37 // rd = imm_u
	OpAUIPC  Opcode = 0x17 // rd = pc + imm_u
	OpJAL    Opcode = 0x6F // rd = pc+instrSize, pc += imm_j
	OpJALR   Opcode = 0x67 // rd = pc+instrSize, pc = (rs1+imm_i) & ^1
	OpBRANCH Opcode = 0x63 // conditional pc += imm_b
	OpLOAD   Opcode = 0x03 // rd = mem[rs1+imm_i]
	OpSTORE  Opcode = 0x23 // mem[rs1+imm_s] = rs2
	OpOPIMM  Opcode = 0x13 // rd = rs1 op imm_i
	OpOPREG  Opcode = 0x33 // rd = rs1 op rs2 (incl. M-extension)
	OpFLW    Opcode = 0x07 // fd = mem[rs1+imm_i]
	OpFSW    Opcode = 0x27 // mem[rs1+imm_s] = fs2
	OpFMADD  Opcode = 0x43
	OpFMSUB  Opcode = 0x47
	OpFNMSUB Opcode = 0x4B
	OpFNMADD Opcode = 0x4F
	OpFOPREG Opcode = 0x53 // float arithmetic/compare/convert/sign-inject
	OpSYSTEM Opcode = 0x73 // CSR read (this module: MHARTID only)
)

// BRANCH funct3 values.
const (
	FuncBEQ  = 0x0
	FuncBNE  = 0x1
	FuncBLT  = 0x4
	FuncBGE  = 0x5
	FuncBLTU = 0x6
	FuncBGEU = 0x7
)

// LOAD/STORE funct3 values (width and signedness).
const (
	FuncByte     = 0x0
	FuncHalf     = 0x1
	FuncWord     = 0x2
	FuncByteU    = 0x4
	FuncHalfU    = 0x5
)

// OPIMM/OPREG funct3 values.
const (
	FuncADD  = 0x0 // also SUB on OPREG with funct7 bit5 set
	FuncSLL  = 0x1
	FuncSLT  = 0x2
	FuncSLTU = 0x3
	FuncXOR  = 0x4
	FuncSR   = 0x5 // SRL/SRA distinguished by funct7 bit5
	FuncOR   = 0x6
	FuncAND  = 0x7
)

// OPREG funct7 values.
const (
	Funct7Base = 0x00
	Funct7Alt  = 0x20 // SUB, SRA
	Funct7MExt = 0x01 // MUL/DIV/REM family
)

// M-extension funct3 values (OPREG, funct7 == Funct7MExt).
const (
	FuncMUL    = 0x0
	FuncMULH   = 0x1
	FuncMULHSU = 0x2
	FuncMULHU  = 0x3
	FuncDIV    = 0x4
	FuncDIVU   = 0x5
	FuncREM    = 0x6
	FuncREMU   = 0x7
)

// FOPREG funct7 values (float arithmetic class); the rs2 field selects the
// signed/unsigned variant within the FCVT classes, funct3 the variant
// within the sign-inject, min/max, compare and FCLASS classes.
const (
	Funct7FADD   = 0x00
	Funct7FSUB   = 0x04
	Funct7FMUL   = 0x08
	Funct7FDIV   = 0x0C
	Funct7FSGNJ  = 0x10
	Funct7FMINMAX = 0x14
	Funct7FCVTWS = 0x60 // FCVT.W.S / FCVT.WU.S, rs2 selects signed/unsigned
	Funct7FCVTSW = 0x68 // FCVT.S.W / FCVT.S.WU
	Funct7FCMP   = 0x50
	// Funct7FCLASS is shared by two instructions, distinguished by Func3:
	// FMV.X.W (Func3 == 0, reinterpret fs1's bits into rd) and FCLASS.S
	// (Func3 == 1).
	Funct7FCLASS = 0x70
	Funct7FMVWX  = 0x78 // FMV.W.X: reinterpret rs1's bits into fd
	Funct7FCVTSD = 0x20 // FCVT.S.D
	Funct7FCVTDS = 0x21 // FCVT.D.S
)

// FOPREG funct3 for the FSGNJ and FCMP classes, and for disambiguating
// the Funct7FCLASS class.
const (
	FuncSGNJ  = 0x0
	FuncSGNJN = 0x1
	FuncSGNJX = 0x2

	FuncMIN = 0x0
	FuncMAX = 0x1

	FuncFLE = 0x0
	FuncFLT = 0x1
	FuncFEQ = 0x2

	FuncFMVXW  = 0x0
	FuncFCLASS = 0x1
)

// SYSTEM funct3 for CSR reads; this module only implements MHARTID.
const (
	FuncCSRRS = 0x2
)

// CSR addresses.
const (
	CSRMHARTID = 0xF14
)
