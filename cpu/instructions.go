// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"strings"
	"sync"
)

type instfunc func(c *CPU, operand []byte) error

// Mode describes how an instruction's operand bytes are encoded.
type Mode byte

// All operand encodings
const (
	IMP Mode = iota // Implied (no operand)
	IMM             // Immediate byte
	IMW             // Immediate little-endian word
	ABS             // Absolute little-endian address
	REL             // Signed byte offset from the next instruction
)

var modeOperandBytes = [...]byte{IMP: 0, IMM: 1, IMW: 2, ABS: 2, REL: 1}

// OperandBytes returns the number of operand bytes following the opcode.
func (m Mode) OperandBytes() int {
	return int(modeOperandBytes[m])
}

// Number of CPU cycles consumed by each opcode. Undefined opcodes are zero.
var cycles = [256]byte{
	//  0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F
	1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 0x00
	2, 2, 2, 2, 2, 2, 3, 3, 4, 4, 4, 4, 4, 4, 3, 3, // 0x10
	4, 4, 4, 4, 4, 4, 5, 5, 5, 5, 3, 3, 3, 3, 3, 0, // 0x20
	4, 4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 2, 3, 3, 2, 2, // 0x30
	1, 1, 1, 1, 1, 1, 2, 0, 1, 1, 1, 1, 1, 1, 2, 0, // 0x40
	1, 1, 1, 1, 1, 1, 2, 0, 1, 1, 1, 1, 1, 1, 2, 0, // 0x50
	1, 1, 1, 1, 1, 1, 2, 0, 1, 1, 1, 1, 1, 1, 0, 0, // 0x60
	1, 1, 1, 1, 1, 1, 0, 0, 1, 1, 1, 1, 1, 1, 0, 0, // 0x70
	1, 1, 1, 1, 1, 1, 0, 0, 1, 1, 1, 1, 1, 1, 2, 3, // 0x80
	2, 2, 2, 2, 2, 2, 3, 3, 2, 2, 2, 2, 2, 2, 3, 3, // 0x90
	3, 3, 3, 3, 3, 3, 3, 2, 2, 2, 2, 2, 5, 4, 0, 0, // 0xA0
	3, 3, 3, 3, 3, 3, 0, 0, 3, 3, 3, 3, 3, 3, 0, 0, // 0xB0
	4, 4, 4, 4, 4, 4, 4, 4, 3, 3, 0, 0, 0, 0, 0, 0, // 0xC0
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, // 0xD0
	2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 2, 2, 0, 0, // 0xE0
	1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 8, // 0xF0
}

// Opcode data for a single defined opcode. Args is the operand template
// shown by the disassembler and matched by the assembler; "%s" marks where
// the encoded operand appears.
type opcodeData struct {
	opcode byte
	name   string
	args   string
	mode   Mode
	fn     instfunc
}

// Conditions tested by conditional jumps.
var (
	ifZero        = (*Status).Zero
	ifCarry       = (*Status).Carry
	ifNegative    = (*Status).Negative
	ifNotZero     = func(s *Status) bool { return !s.Zero() }
	ifNotCarry    = func(s *Status) bool { return !s.Carry() }
	ifNotNegative = func(s *Status) bool { return !s.Negative() }
)

var index16 = [...]Reg16{RegIDX, RegIDY}

func opcodeTable() []opcodeData {
	d := []opcodeData{
		{0x00, "NOP", "", IMP, (*CPU).nop},
		{0x01, "HLT", "", IMP, (*CPU).hlt},
	}
	add := func(opcode byte, name, args string, mode Mode, fn instfunc) {
		d = append(d, opcodeData{opcode, name, args, mode, fn})
	}

	for r := RegA; r < numReg8; r++ {
		n := r.String()
		add(0x10+byte(r), "LD", n+",#%s", IMM, ld8Imm(r))
		add(0x20+byte(r), "ST", "[%s],"+n, ABS, st8Abs(r))
		add(0x40+byte(r), "ADD", "A,"+n, IMP, alu8Reg((*ALU).Add8, r))
		add(0x48+byte(r), "SUB", "A,"+n, IMP, alu8Reg((*ALU).Sub8, r))
		add(0x50+byte(r), "AND", "A,"+n, IMP, alu8Reg((*ALU).And8, r))
		add(0x58+byte(r), "OR", "A,"+n, IMP, alu8Reg((*ALU).Or8, r))
		add(0x60+byte(r), "XOR", "A,"+n, IMP, alu8Reg((*ALU).Xor8, r))
		add(0x68+byte(r), "INC", n, IMP, unary8((*ALU).Increment8, r))
		add(0x70+byte(r), "DEC", n, IMP, unary8((*ALU).Decrement8, r))
		add(0x78+byte(r), "SHL", n, IMP, unary8((*ALU).ShiftLeft8, r))
		add(0x80+byte(r), "SHR", n, IMP, unary8((*ALU).ShiftRight8, r))
		add(0x88+byte(r), "CMP", "A,"+n, IMP, cmp8Reg(r))
		add(0x90+byte(r), "CMP", n+",#%s", IMM, cmp8Imm(r))
		add(0xb0+byte(r), "PUSH", n, IMP, push8(r))
		add(0xb8+byte(r), "POP", n, IMP, pop8(r))
		add(0xd0+byte(r), "MOV", "A,"+n, IMP, mov8(RegA, r))
		add(0xd6+byte(r), "MOV", n+",A", IMP, mov8(r, RegA))
		add(0xe0+byte(r), "SWP", "A,"+n, IMP, swp8(RegA, r))

		// LD F,[nn] ($1D) writes E, the same slot as $1C.
		dst := r
		if r == RegF {
			dst = RegE
		}
		add(0x18+byte(r), "LD", n+",[%s]", ABS, ld8Abs(dst))
	}

	// 16-bit loads and stores
	add(0x16, "LD", "DA,#%s", IMW, ld16Imm(RegDA))
	add(0x17, "LD", "DB,#%s", IMW, ld16Imm(RegDB))
	add(0x1e, "LD", "IDX,#%s", IMW, ld16Imm(RegIDX))
	add(0x1f, "LD", "IDY,#%s", IMW, ld16Imm(RegIDY))
	add(0x26, "ST", "[%s],DA", ABS, st16Abs(RegDA))
	add(0x27, "ST", "[%s],DB", ABS, st16Abs(RegDB))
	add(0x28, "LD", "DA,[%s]", ABS, ld16Abs(RegDA))
	add(0x29, "LD", "DB,[%s]", ABS, ld16Abs(RegDB))
	add(0x2a, "LD", "SP,#%s", IMW, ld16Imm(RegSP))

	// Indexed loads and stores through IDX and IDY
	for i, x := range index16 {
		n := x.String()
		add(0x2b+byte(i), "LD", "A,["+n+"]", IMP, ldIndexed(x, 0))
		add(0x2d+byte(i), "ST", "["+n+"],A", IMP, stIndexed(x, 0))
		add(0x30+byte(i), "LD", "A,["+n+"+]", IMP, ldIndexed(x, 1))
		add(0x32+byte(i), "ST", "["+n+"+],A", IMP, stIndexed(x, 1))
		add(0x34+byte(i), "LD", "A,["+n+"-]", IMP, ldIndexed(x, -1))
		add(0x36+byte(i), "ST", "["+n+"-],A", IMP, stIndexed(x, -1))
		add(0x38+byte(i), "INC", n, IMP, unary16((*ALU).Increment16, x))
		add(0x3a+byte(i), "DEC", n, IMP, unary16((*ALU).Decrement16, x))
		add(0x3c+byte(i), "ADD", n+",#%s", IMW, alu16Imm((*ALU).Add16, x))
		add(0x3e+byte(i), "ADD", n+",A", IMP, addIndexA(x))
		add(0x96+byte(i), "CMP", n+",#%s", IMW, cmp16Imm(x))
	}

	// 8-bit immediate arithmetic and logic
	add(0x46, "ADD", "A,#%s", IMM, alu8Imm((*ALU).Add8))
	add(0x4e, "SUB", "A,#%s", IMM, alu8Imm((*ALU).Sub8))
	add(0x56, "AND", "A,#%s", IMM, alu8Imm((*ALU).And8))
	add(0x5e, "OR", "A,#%s", IMM, alu8Imm((*ALU).Or8))
	add(0x66, "XOR", "A,#%s", IMM, alu8Imm((*ALU).Xor8))

	// 16-bit compare and arithmetic
	add(0x8e, "CMP", "DA,DB", IMP, cmp16Reg(RegDA, RegDB))
	add(0x8f, "CMP", "DA,#%s", IMW, cmp16Imm(RegDA))
	add(0x98, "ADD", "DA,DB", IMP, alu16Reg((*ALU).Add16, RegDA, RegDB))
	add(0x99, "SUB", "DA,DB", IMP, alu16Reg((*ALU).Sub16, RegDA, RegDB))
	add(0x9a, "INC", "DA", IMP, unary16((*ALU).Increment16, RegDA))
	add(0x9b, "INC", "DB", IMP, unary16((*ALU).Increment16, RegDB))
	add(0x9c, "DEC", "DA", IMP, unary16((*ALU).Decrement16, RegDA))
	add(0x9d, "DEC", "DB", IMP, unary16((*ALU).Decrement16, RegDB))
	add(0x9e, "ADD", "DA,#%s", IMW, alu16Imm((*ALU).Add16, RegDA))
	add(0x9f, "SUB", "DA,#%s", IMW, alu16Imm((*ALU).Sub16, RegDA))

	// Jumps, calls and returns
	add(0xa0, "JMP", "%s", ABS, jump(nil))
	add(0xa1, "JZ", "%s", ABS, jump(ifZero))
	add(0xa2, "JNZ", "%s", ABS, jump(ifNotZero))
	add(0xa3, "JC", "%s", ABS, jump(ifCarry))
	add(0xa4, "JNC", "%s", ABS, jump(ifNotCarry))
	add(0xa5, "JN", "%s", ABS, jump(ifNegative))
	add(0xa6, "JNN", "%s", ABS, jump(ifNotNegative))
	add(0xa7, "JMP", "IDX", IMP, (*CPU).jmpIndex)
	add(0xa8, "JR", "%s", REL, jumpRelative(nil))
	add(0xa9, "JRZ", "%s", REL, jumpRelative(ifZero))
	add(0xaa, "JRNZ", "%s", REL, jumpRelative(ifNotZero))
	add(0xab, "JRC", "%s", REL, jumpRelative(ifCarry))
	add(0xac, "CALL", "%s", ABS, (*CPU).call)
	add(0xad, "RET", "", IMP, (*CPU).ret)

	// 16-bit stack operations
	for i, r := range [...]Reg16{RegDA, RegDB, RegIDX, RegIDY} {
		add(0xc0+byte(i), "PUSH", r.String(), IMP, push16(r))
		add(0xc4+byte(i), "POP", r.String(), IMP, pop16(r))
	}
	add(0xc8, "PUSHF", "", IMP, (*CPU).pushf)
	add(0xc9, "POPF", "", IMP, (*CPU).popf)

	// 16-bit register transfers
	add(0xdc, "MOV", "DA,DB", IMP, mov16(RegDA, RegDB))
	add(0xdd, "MOV", "DB,DA", IMP, mov16(RegDB, RegDA))
	add(0xde, "SWP", "DA,DB", IMP, swp16(RegDA, RegDB))
	add(0xdf, "SWP", "IDX,IDY", IMP, swp16(RegIDX, RegIDY))
	add(0xe6, "MOV", "IDX,DA", IMP, mov16(RegIDX, RegDA))
	add(0xe7, "MOV", "IDY,DA", IMP, mov16(RegIDY, RegDA))
	add(0xe8, "MOV", "DA,IDX", IMP, mov16(RegDA, RegIDX))
	add(0xe9, "MOV", "DA,IDY", IMP, mov16(RegDA, RegIDY))
	add(0xea, "MOV", "DA,SP", IMP, mov16(RegDA, RegSP))
	add(0xeb, "MOV", "SP,DA", IMP, mov16(RegSP, RegDA))
	add(0xec, "MOV", "DA,AB", IMP, (*CPU).movPairToDA)
	add(0xed, "MOV", "AB,DA", IMP, (*CPU).movDAToPair)

	// Flags and system
	add(0xf0, "CLC", "", IMP, (*CPU).clc)
	add(0xf1, "SEC", "", IMP, (*CPU).sec)
	add(0xf2, "CLV", "", IMP, (*CPU).clv)
	add(0xff, "SYS", "", IMP, (*CPU).sys)

	return d
}

// An Instruction describes a CPU instruction, including its name, its
// operand template, its opcode value, its length, and its CPU cycle cost.
type Instruction struct {
	Name   string   // all-caps mnemonic
	Args   string   // operand template; "%s" marks the encoded operand
	Mode   Mode     // operand encoding
	Opcode byte     // hexadecimal opcode value
	Length byte     // combined size of opcode and operand, in bytes
	Cycles byte     // number of CPU cycles to execute the instruction
	fn     instfunc // emulator implementation of the instruction
}

// Defined reports whether the opcode has an implementation.
func (inst *Instruction) Defined() bool {
	return inst.fn != nil
}

// An InstructionSet defines the set of all possible instructions that
// can run on the emulated CPU.
type InstructionSet struct {
	instructions [256]Instruction          // all instructions by opcode
	variants     map[string][]*Instruction // variants of each instruction
}

// Lookup retrieves a CPU instruction corresponding to the requested opcode.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// GetInstructions returns all CPU instructions whose name matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

func newInstructionSet() *InstructionSet {
	set := &InstructionSet{variants: make(map[string][]*Instruction)}

	for i := range set.instructions {
		inst := &set.instructions[i]
		inst.Name = "???"
		inst.Opcode = byte(i)
		inst.Length = 1
	}

	for _, d := range opcodeTable() {
		inst := &set.instructions[d.opcode]
		if inst.fn != nil {
			panic("duplicate opcode")
		}
		if cycles[d.opcode] == 0 {
			panic("missing cycle count")
		}
		inst.Name = d.name
		inst.Args = d.args
		inst.Mode = d.mode
		inst.Length = 1 + byte(d.mode.OperandBytes())
		inst.Cycles = cycles[d.opcode]
		inst.fn = d.fn

		set.variants[inst.Name] = append(set.variants[inst.Name], inst)
	}
	return set
}

var instructionSet = sync.OnceValue(newInstructionSet)

// GetInstructionSet returns the processor's instruction set.
func GetInstructionSet() *InstructionSet {
	return instructionSet()
}
