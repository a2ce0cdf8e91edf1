// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a go8 instruction set disassembler.
package disasm

import (
	"fmt"
	"strings"

	"github.com/beevik/go8/cpu"
)

var hex = "0123456789ABCDEF"

// Return a big-endian hexadecimal string representation of the
// little-endian byte slice.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code. Undefined
// opcodes, and instructions whose bytes run past the end of memory, are
// shown as data.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	opcode, err := m.LoadByte(addr)
	if err != nil {
		return "???", addr + 1
	}

	inst := cpu.GetInstructionSet().Lookup(opcode)
	if !inst.Defined() {
		return fmt.Sprintf(".DB $%02X", opcode), addr + 1
	}

	operand := make([]byte, inst.Length-1)
	for i := range operand {
		operand[i], err = m.LoadByte(addr + 1 + uint16(i))
		if err != nil {
			return fmt.Sprintf(".DB $%02X", opcode), addr + 1
		}
	}

	if inst.Mode == cpu.REL {
		// Convert relative offset to absolute address.
		target := int(addr) + int(inst.Length) + int(int8(operand[0]))
		operand = []byte{byte(target), byte(target >> 8)}
	}

	line = inst.Name
	if inst.Args != "" {
		args := inst.Args
		if strings.Contains(args, "%s") {
			args = fmt.Sprintf(args, "$"+hexString(operand))
		}
		line += " " + args
	}
	return line, addr + uint16(inst.Length)
}

// RegisterString returns a one-line summary of the processor's registers
// and flags, omitting PC.
func RegisterString(c *cpu.CPU) string {
	r := &c.Reg
	return fmt.Sprintf("A=%02X B=%02X C=%02X D=%02X E=%02X F=%02X DA=%04X DB=%04X IDX=%04X IDY=%04X SP=%04X [%s]",
		r.A, r.B, r.C, r.D, r.E, r.F, r.DA, r.DB, r.IDX, r.IDY, r.SP, c.SR.String())
}
