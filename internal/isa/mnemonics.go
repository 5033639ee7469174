package isa

// Mnemonic returns the instruction's textual name for diagnostic dumps and
// disassembly. It does not attempt to resolve M-extension or float
// sub-variants perfectly; internal/disasm layers operand formatting on top.
func Mnemonic(inst Instruction) string {
	switch inst.Op {
	case OpLUI:
		return "lui"
	case OpAUIPC:
		return "auipc"
	case OpJAL:
		return "jal"
	case OpJALR:
		return "jalr"
	case OpBRANCH:
		return branchMnemonic(inst.Func3)
	case OpLOAD:
		return loadMnemonic(inst.Func3)
	case OpSTORE:
		return storeMnemonic(inst.Func3)
	case OpOPIMM:
		return opImmMnemonic(inst.Func3, inst.Func7)
	case OpOPREG:
		return opRegMnemonic(inst.Func3, inst.Func7)
	case OpFLW:
		return "flw"
	case OpFSW:
		return "fsw"
	case OpFMADD:
		return "fmadd.s"
	case OpFMSUB:
		return "fmsub.s"
	case OpFNMSUB:
		return "fnmsub.s"
	case OpFNMADD:
		return "fnmadd.s"
	case OpFOPREG:
		return fopRegMnemonic(inst.Func3, inst.Func7)
	case OpSYSTEM:
		return "csrrs"
	default:
		return "unknown"
	}
}

func branchMnemonic(f3 uint32) string {
	switch f3 {
	case FuncBEQ:
		return "beq"
	case FuncBNE:
		return "bne"
	case FuncBLT:
		return "blt"
	case FuncBGE:
		return "bge"
	case FuncBLTU:
		return "bltu"
	case FuncBGEU:
		return "bgeu"
	default:
		return "b?"
	}
}

func loadMnemonic(f3 uint32) string {
	switch f3 {
	case FuncByte:
		return "lb"
	case FuncHalf:
		return "lh"
	case FuncWord:
		return "lw"
	case FuncByteU:
		return "lbu"
	case FuncHalfU:
		return "lhu"
	default:
		return "l?"
	}
}

func storeMnemonic(f3 uint32) string {
	switch f3 {
	case FuncByte:
		return "sb"
	case FuncHalf:
		return "sh"
	case FuncWord:
		return "sw"
	default:
		return "s?"
	}
}

func opImmMnemonic(f3, f7 uint32) string {
	switch f3 {
	case FuncADD:
		return "addi"
	case FuncSLL:
		return "slli"
	case FuncSLT:
		return "slti"
	case FuncSLTU:
		return "sltiu"
	case FuncXOR:
		return "xori"
	case FuncSR:
		if f7 == Funct7Alt {
			return "srai"
		}
		return "srli"
	case FuncOR:
		return "ori"
	case FuncAND:
		return "andi"
	default:
		return "opimm?"
	}
}

func opRegMnemonic(f3, f7 uint32) string {
	if f7 == Funct7MExt {
		switch f3 {
		case FuncMUL:
			return "mul"
		case FuncMULH:
			return "mulh"
		case FuncMULHSU:
			return "mulhsu"
		case FuncMULHU:
			return "mulhu"
		case FuncDIV:
			return "div"
		case FuncDIVU:
			return "divu"
		case FuncREM:
			return "rem"
		case FuncREMU:
			return "remu"
		}
	}
	switch f3 {
	case FuncADD:
		if f7 == Funct7Alt {
			return "sub"
		}
		return "add"
	case FuncSLL:
		return "sll"
	case FuncSLT:
		return "slt"
	case FuncSLTU:
		return "sltu"
	case FuncXOR:
		return "xor"
	case FuncSR:
		if f7 == Funct7Alt {
			return "sra"
		}
		return "srl"
	case FuncOR:
		return "or"
	case FuncAND:
		return "and"
	default:
		return "opreg?"
	}
}

func fopRegMnemonic(f3, f7 uint32) string {
	switch f7 {
	case Funct7FADD:
		return "fadd.s"
	case Funct7FSUB:
		return "fsub.s"
	case Funct7FMUL:
		return "fmul.s"
	case Funct7FDIV:
		return "fdiv.s"
	case Funct7FSGNJ:
		switch f3 {
		case FuncSGNJN:
			return "fsgnjn.s"
		case FuncSGNJX:
			return "fsgnjx.s"
		default:
			return "fsgnj.s"
		}
	case Funct7FMINMAX:
		if f3 == FuncMAX {
			return "fmax.s"
		}
		return "fmin.s"
	case Funct7FCVTWS:
		return "fcvt.w.s"
	case Funct7FCVTSW:
		return "fcvt.s.w"
	case Funct7FCMP:
		switch f3 {
		case FuncFLE:
			return "fle.s"
		case FuncFLT:
			return "flt.s"
		default:
			return "feq.s"
		}
	case Funct7FCLASS:
		return "fclass.s"
	case Funct7FCVTSD:
		return "fcvt.s.d"
	case Funct7FCVTDS:
		return "fcvt.d.s"
	default:
		return "fopreg?"
	}
}
