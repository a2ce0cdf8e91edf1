// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "strings"

// Registers contains the state of all processor registers.
type Registers struct {
	A   byte   // general purpose
	B   byte   // general purpose
	C   byte   // general purpose
	D   byte   // general purpose
	E   byte   // general purpose
	F   byte   // general purpose
	DA  uint16 // 16-bit general purpose
	DB  uint16 // 16-bit general purpose
	IDX uint16 // index register X
	IDY uint16 // index register Y
	PC  uint16 // program counter
	SP  uint16 // stack pointer
}

// Reg8 identifies one of the 8-bit registers. Opcodes that operate on an
// 8-bit register add the register's index to a base opcode.
type Reg8 byte

// 8-bit registers, in opcode order.
const (
	RegA Reg8 = iota
	RegB
	RegC
	RegD
	RegE
	RegF

	numReg8
)

var reg8Names = [numReg8]string{"A", "B", "C", "D", "E", "F"}

func (r Reg8) String() string {
	return reg8Names[r]
}

// Reg16 identifies one of the 16-bit registers.
type Reg16 byte

// 16-bit registers.
const (
	RegDA Reg16 = iota
	RegDB
	RegIDX
	RegIDY
	RegPC
	RegSP

	numReg16
)

var reg16Names = [numReg16]string{"DA", "DB", "IDX", "IDY", "PC", "SP"}

func (r Reg16) String() string {
	return reg16Names[r]
}

// Init zeroes the register file and places PC and SP at their reset
// positions.
func (r *Registers) Init() {
	*r = Registers{}
	r.PC = ROMStart
	r.SP = StackTop
}

func (r *Registers) ptr8(reg Reg8) *byte {
	switch reg {
	case RegA:
		return &r.A
	case RegB:
		return &r.B
	case RegC:
		return &r.C
	case RegD:
		return &r.D
	case RegE:
		return &r.E
	default:
		return &r.F
	}
}

func (r *Registers) ptr16(reg Reg16) *uint16 {
	switch reg {
	case RegDA:
		return &r.DA
	case RegDB:
		return &r.DB
	case RegIDX:
		return &r.IDX
	case RegIDY:
		return &r.IDY
	case RegPC:
		return &r.PC
	default:
		return &r.SP
	}
}

// LookupReg8 returns the 8-bit register with the given case-insensitive
// name.
func LookupReg8(name string) (Reg8, bool) {
	name = strings.ToUpper(name)
	for i, n := range reg8Names {
		if n == name {
			return Reg8(i), true
		}
	}
	return 0, false
}

// LookupReg16 returns the 16-bit register with the given case-insensitive
// name.
func LookupReg16(name string) (Reg16, bool) {
	name = strings.ToUpper(name)
	for i, n := range reg16Names {
		if n == name {
			return Reg16(i), true
		}
	}
	return 0, false
}
