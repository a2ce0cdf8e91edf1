// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/go8/asm"
	"github.com/beevik/go8/cpu"
)

func loadCPU(t *testing.T, asmString string) *cpu.CPU {
	t.Helper()
	b := strings.NewReader(asmString)
	r, _, err := asm.Assemble(b, "test.asm", 0x1000, nil, 0)
	if err != nil {
		t.Error(err)
		for _, e := range r.Errors {
			t.Error(e)
		}
		return nil
	}

	mem, err := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.LoadProgram(r.Code, r.Origin); err != nil {
		t.Fatal(err)
	}
	c := cpu.NewCPU(mem)
	c.SetPC(r.Origin)
	return c
}

func stepCPU(t *testing.T, c *cpu.CPU, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if err := c.Step(); err != nil {
			t.Errorf("step %d failed: %v", i, err)
			return
		}
	}
}

func runCPU(t *testing.T, asmString string, steps int) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, asmString)
	if c != nil {
		stepCPU(t, c, steps)
	}
	return c
}

// runToHalt steps until the processor executes HLT.
func runToHalt(t *testing.T, c *cpu.CPU, max int) {
	t.Helper()
	for i := 0; i < max; i++ {
		if err := c.Step(); err != nil {
			t.Errorf("step %d failed: %v", i, err)
			return
		}
		if c.LastStop() == cpu.StopHalted {
			return
		}
	}
	t.Errorf("no HLT after %d steps", max)
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if c.Reg.PC != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, c.Reg.PC)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp uint16) {
	t.Helper()
	if c.Reg.SP != sp {
		t.Errorf("stack pointer incorrect. exp: $%04X, got: $%04X", sp, c.Reg.SP)
	}
}

func expectCycles(t *testing.T, c *cpu.CPU, cycles uint64) {
	t.Helper()
	if c.Cycles() != cycles {
		t.Errorf("Cycles incorrect. exp: %d, got: %d", cycles, c.Cycles())
	}
}

func expectReg(t *testing.T, c *cpu.CPU, name string, v byte) {
	t.Helper()
	got, err := c.GetRegister(name)
	if err != nil {
		t.Error(err)
		return
	}
	if got != v {
		t.Errorf("Register %s incorrect. exp: $%02X, got: $%02X", name, v, got)
	}
}

func expectReg16(t *testing.T, c *cpu.CPU, name string, v uint16) {
	t.Helper()
	got, err := c.GetRegister16(name)
	if err != nil {
		t.Error(err)
		return
	}
	if got != v {
		t.Errorf("Register %s incorrect. exp: $%04X, got: $%04X", name, v, got)
	}
}

func expectFlags(t *testing.T, c *cpu.CPU, flags string) {
	t.Helper()
	if got := c.SR.String(); got != flags {
		t.Errorf("Flags incorrect. exp: %s, got: %s", flags, got)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got, err := c.Mem.LoadByte(addr)
	if err != nil {
		t.Error(err)
		return
	}
	if got != v {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func TestReset(t *testing.T) {
	mem, _ := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	c := cpu.NewCPU(mem)
	expectPC(t, c, cpu.ROMStart)
	expectSP(t, c, cpu.StackTop)
	expectFlags(t, c, "----")
	if c.Running() {
		t.Error("new CPU should not be running")
	}
}

func TestLoadStore(t *testing.T) {
	asm := `
	.ORG $1000
	LD A,#$5E
	ST [$2000],A
	LD B,[$2000]`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}

	expectPC(t, c, 0x1008)
	expectCycles(t, c, 10)
	expectReg(t, c, "A", 0x5e)
	expectReg(t, c, "B", 0x5e)
	expectMem(t, c, 0x2000, 0x5e)
	if c.Instructions() != 3 {
		t.Errorf("Instructions incorrect. exp: 3, got: %d", c.Instructions())
	}
}

func TestLoadFQuirk(t *testing.T) {
	asm := `
	LD F,#$11
	LD F,[$2000]`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}
	c.Mem.StoreByte(0x2000, 0x99)
	stepCPU(t, c, 2)

	expectReg(t, c, "E", 0x99)
	expectReg(t, c, "F", 0x11)
}

func TestWordLoadStore(t *testing.T) {
	asm := `
	LD DA,#$BEEF
	ST [$2000],DA
	LD DB,[$2000]`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}
	expectMem(t, c, 0x2000, 0xef)
	expectMem(t, c, 0x2001, 0xbe)
	expectReg16(t, c, "DB", 0xbeef)
	expectFlags(t, c, "N---")
}

func TestAddCarry(t *testing.T) {
	c := runCPU(t, "\tLD A,#$FF\n\tADD A,#1", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "A", 0x00)
	expectFlags(t, c, "--CZ")
}

func TestAddOverflow(t *testing.T) {
	c := runCPU(t, "\tLD A,#$7F\n\tLD B,#1\n\tADD A,B", 3)
	if c == nil {
		return
	}
	expectReg(t, c, "A", 0x80)
	expectFlags(t, c, "NV--")
}

func TestSubBorrow(t *testing.T) {
	c := runCPU(t, "\tLD A,#0\n\tSUB A,#1", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "A", 0xff)
	expectFlags(t, c, "N-C-")
}

func TestSubOverflow(t *testing.T) {
	c := runCPU(t, "\tLD A,#$80\n\tSUB A,#1", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "A", 0x7f)
	expectFlags(t, c, "-V--")
}

func TestLogicClearsCarry(t *testing.T) {
	asm := `
	SEC
	LD A,#$F0
	AND A,#$0F
	SEC
	LD A,#$F0
	OR A,#$0F
	SEC
	XOR A,#$0F`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}
	expectReg(t, c, "A", 0x00)
	expectFlags(t, c, "---Z")

	stepCPU(t, c, 3)
	expectReg(t, c, "A", 0xff)
	expectFlags(t, c, "N---")

	stepCPU(t, c, 2)
	expectReg(t, c, "A", 0xf0)
	expectFlags(t, c, "N---")
}

func TestShift(t *testing.T) {
	c := runCPU(t, "\tLD C,#$81\n\tSHL C", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "C", 0x02)
	expectFlags(t, c, "--C-")

	c = runCPU(t, "\tLD C,#$01\n\tSHR C", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "C", 0x00)
	expectFlags(t, c, "--CZ")
}

func TestIncDecWrap(t *testing.T) {
	c := runCPU(t, "\tLD D,#$FF\n\tINC D\n\tDEC D", 2)
	if c == nil {
		return
	}
	expectReg(t, c, "D", 0x00)
	expectFlags(t, c, "--CZ")

	stepCPU(t, c, 1)
	expectReg(t, c, "D", 0xff)
	expectFlags(t, c, "N-C-")
}

func TestCompare(t *testing.T) {
	asm := `
	LD A,#5
	LD B,#5
	CMP A,B
	CMP A,#6
	CMP B,#4`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}
	expectFlags(t, c, "---Z")

	stepCPU(t, c, 1)
	expectFlags(t, c, "N-C-")

	stepCPU(t, c, 1)
	expectFlags(t, c, "----")
	expectReg(t, c, "A", 5)
}

func TestCompare16(t *testing.T) {
	asm := `
	LD DA,#1
	CMP DA,#2
	LD DB,#1
	CMP DA,DB
	LD IDX,#$2000
	CMP IDX,#$1000`

	c := runCPU(t, asm, 2)
	if c == nil {
		return
	}
	expectReg16(t, c, "DA", 1)
	expectFlags(t, c, "N-C-")

	stepCPU(t, c, 2)
	expectFlags(t, c, "---Z")

	stepCPU(t, c, 2)
	expectFlags(t, c, "----")
}

func TestArithmetic16(t *testing.T) {
	asm := `
	LD DA,#$FFFF
	INC DA
	LD DB,#$10
	ADD DA,DB
	SUB DA,#$20
	DEC DB`

	c := runCPU(t, asm, 2)
	if c == nil {
		return
	}
	expectReg16(t, c, "DA", 0)
	expectFlags(t, c, "--CZ")

	stepCPU(t, c, 2)
	expectReg16(t, c, "DA", 0x10)
	expectFlags(t, c, "----")

	stepCPU(t, c, 1)
	expectReg16(t, c, "DA", 0xfff0)
	expectFlags(t, c, "N-C-")

	stepCPU(t, c, 1)
	expectReg16(t, c, "DB", 0x0f)
}

func TestIndexed(t *testing.T) {
	asm := `
	LD IDX,#$2000
	LD A,#7
	ST [IDX+],A
	INC A
	ST [IDX+],A
	LD IDY,#$2001
	LD A,[IDY-]
	LD A,[IDY]
	ADD IDX,A
	ST [IDX-],A`

	c := runCPU(t, asm, 10)
	if c == nil {
		return
	}
	expectMem(t, c, 0x2000, 0x07)
	expectMem(t, c, 0x2001, 0x08)
	expectMem(t, c, 0x2009, 0x07)
	expectReg16(t, c, "IDY", 0x2000)
	expectReg16(t, c, "IDX", 0x2008)
	expectReg(t, c, "A", 0x07)
}

func TestJumps(t *testing.T) {
	asm := `
	.ORG $1000
	LD B,#5
	LD A,#0
loop:	ADD A,#2
	DEC B
	JRNZ loop
	JMP done
	HLT
done:	LD IDX,#end
	JMP IDX
	HLT
end:	HLT`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}
	runToHalt(t, c, 100)
	expectReg(t, c, "A", 10)
	expectReg(t, c, "B", 0)
	expectPC(t, c, 0x1013)
	if c.Running() {
		t.Error("CPU should not be running after HLT")
	}
}

func TestConditionalJumps(t *testing.T) {
	asm := `
	.ORG $1000
	SEC
	JC taken1
	HLT
taken1:	CLC
	JNC taken2
	HLT
taken2:	LD A,#$80
	JN taken3
	HLT
taken3:	LD A,#1
	JNN taken4
	HLT
taken4:	JZ fail
	JNZ taken5
fail:	HLT
taken5:	LD A,#0
	JRZ ok
	HLT
ok:	SEC
	JRC end
	HLT
end:	LD F,#$AA
	HLT`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}
	runToHalt(t, c, 100)
	expectReg(t, c, "F", 0xaa)
}

func TestCallReturn(t *testing.T) {
	asm := `
	.ORG $1000
	CALL sub
	HLT
sub:	LD A,#$42
	RET`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}

	stepCPU(t, c, 1)
	expectPC(t, c, 0x1004)
	expectSP(t, c, 0xfffd)
	expectMem(t, c, 0xfffe, 0x10)
	expectMem(t, c, 0xfffd, 0x03)

	stepCPU(t, c, 2)
	expectPC(t, c, 0x1003)
	expectSP(t, c, 0xffff)
	expectReg(t, c, "A", 0x42)

	stepCPU(t, c, 1)
	if c.LastStop() != cpu.StopHalted {
		t.Errorf("stop reason incorrect. exp: %v, got: %v", cpu.StopHalted, c.LastStop())
	}
}

func TestStack(t *testing.T) {
	asm := `
	LD A,#$11
	PUSH A
	LD A,#$22
	PUSH A
	POP B
	POP C`

	c := runCPU(t, asm, 4)
	if c == nil {
		return
	}
	expectSP(t, c, 0xfffd)
	expectMem(t, c, 0xfffe, 0x11)
	expectMem(t, c, 0xfffd, 0x22)

	stepCPU(t, c, 2)
	expectReg(t, c, "B", 0x22)
	expectReg(t, c, "C", 0x11)
	expectSP(t, c, 0xffff)
}

func TestStack16(t *testing.T) {
	asm := `
	LD DA,#$1234
	PUSH DA
	POP IDX
	SEC
	PUSHF
	CLC
	POPF`

	c := runCPU(t, asm, 2)
	if c == nil {
		return
	}
	expectSP(t, c, 0xfffd)
	expectMem(t, c, 0xfffd, 0x34)
	expectMem(t, c, 0xfffe, 0x12)

	stepCPU(t, c, 1)
	expectReg16(t, c, "IDX", 0x1234)
	expectSP(t, c, 0xffff)

	stepCPU(t, c, 4)
	expectFlags(t, c, "--C-")
	expectSP(t, c, 0xffff)
}

func TestMoveSwap(t *testing.T) {
	asm := `
	LD A,#$12
	LD B,#$34
	MOV DA,AB
	SWP A,B
	MOV AB,DA
	MOV DA,SP
	MOV DB,DA
	SWP DA,DB
	MOV D,A
	MOV A,E`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}
	expectReg16(t, c, "DA", 0x1234)

	stepCPU(t, c, 1)
	expectReg(t, c, "A", 0x34)
	expectReg(t, c, "B", 0x12)

	stepCPU(t, c, 1)
	expectReg(t, c, "A", 0x12)
	expectReg(t, c, "B", 0x34)

	stepCPU(t, c, 3)
	expectReg16(t, c, "DA", 0xffff)
	expectReg16(t, c, "DB", 0xffff)

	stepCPU(t, c, 2)
	expectReg(t, c, "D", 0x12)
	expectReg(t, c, "A", 0x00)
	expectFlags(t, c, "---Z")
}

func TestROMImmutable(t *testing.T) {
	c := runCPU(t, "\tLD A,#$AA\n\tST [$F400],A", 2)
	if c == nil {
		return
	}
	expectMem(t, c, 0xf400, 0x10)
}

func TestUnknownOpcode(t *testing.T) {
	c := loadCPU(t, "\t.DB $02")
	if c == nil {
		return
	}
	err := c.Step()
	if !errors.Is(err, cpu.ErrUnknownInstruction) {
		t.Errorf("expected ErrUnknownInstruction, got %v", err)
	}
	if c.Running() || c.LastStop() != cpu.StopFault {
		t.Errorf("CPU should be stopped by fault, got %v", c.LastStop())
	}
}

func TestWordPastEnd(t *testing.T) {
	c := loadCPU(t, "\tLD DA,[$FFFF]")
	if c == nil {
		return
	}
	if err := c.Step(); !errors.Is(err, cpu.ErrAddressOutOfRange) {
		t.Errorf("expected ErrAddressOutOfRange, got %v", err)
	}
}

func TestWordStorePastEnd(t *testing.T) {
	c := loadCPU(t, "\tLD DA,#$ABCD\n\tST [$FFFF],DA")
	if c == nil {
		return
	}
	stepCPU(t, c, 1)
	if err := c.Step(); !errors.Is(err, cpu.ErrAddressOutOfRange) {
		t.Errorf("expected ErrAddressOutOfRange, got %v", err)
	}
	expectMem(t, c, 0x0000, 0x00)

	c = loadCPU(t, "\tLD DA,#$ABCD\n\tPUSH DA")
	if c == nil {
		return
	}
	stepCPU(t, c, 1)
	c.Reg.SP = 0x0001
	if err := c.Step(); !errors.Is(err, cpu.ErrAddressOutOfRange) {
		t.Errorf("expected ErrAddressOutOfRange, got %v", err)
	}
	expectSP(t, c, 0x0001)
	expectMem(t, c, 0x0000, 0x00)
}

func TestRegisterByName(t *testing.T) {
	mem, _ := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	c := cpu.NewCPU(mem)

	if err := c.SetRegister("b", 0); err != nil {
		t.Fatal(err)
	}
	expectFlags(t, c, "---Z")
	if err := c.SetRegister("B", 3); err != nil {
		t.Fatal(err)
	}
	expectFlags(t, c, "----")
	expectReg(t, c, "b", 3)

	if err := c.SetRegister16("idx", 0x4000); err != nil {
		t.Fatal(err)
	}
	expectReg16(t, c, "IDX", 0x4000)

	if _, err := c.GetRegister("Q"); !errors.Is(err, cpu.ErrInvalidRegisterName) {
		t.Errorf("expected ErrInvalidRegisterName, got %v", err)
	}
	if err := c.SetRegister16("A", 1); !errors.Is(err, cpu.ErrInvalidRegisterName) {
		t.Errorf("expected ErrInvalidRegisterName, got %v", err)
	}
}

func TestString(t *testing.T) {
	mem, _ := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	c := cpu.NewCPU(mem)
	c.Reg.A = 0x12
	c.SR.SetCarry(true)

	exp := "A=12 B=00 C=00 D=00 E=00 F=00 SR=[--C-]\n" +
		"DA=0000 DB=0000 IDX=0000 IDY=0000 PC=F400 SP=FFFF"
	if got := c.String(); got != exp {
		t.Errorf("String incorrect.\nexp: %s\ngot: %s", exp, got)
	}
}

func TestInstructionTable(t *testing.T) {
	set := cpu.GetInstructionSet()
	defined := 0
	for i := 0; i < 256; i++ {
		inst := set.Lookup(byte(i))
		if !inst.Defined() {
			if inst.Name != "???" || inst.Length != 1 {
				t.Errorf("undefined opcode $%02X has name %s length %d", i, inst.Name, inst.Length)
			}
			continue
		}
		defined++
		if inst.Cycles == 0 {
			t.Errorf("opcode $%02X has no cycle count", i)
		}
		if int(inst.Length) != 1+inst.Mode.OperandBytes() {
			t.Errorf("opcode $%02X length %d doesn't match mode", i, inst.Length)
		}
	}
	if defined < 180 {
		t.Errorf("too few defined opcodes: %d", defined)
	}

	cases := []struct {
		opcode byte
		name   string
		cycles byte
	}{
		{0x00, "NOP", 1},
		{0x16, "LD", 3},
		{0xac, "CALL", 5},
		{0xad, "RET", 4},
		{0xff, "SYS", 8},
	}
	for _, c := range cases {
		inst := set.Lookup(c.opcode)
		if inst.Name != c.name || inst.Cycles != c.cycles {
			t.Errorf("opcode $%02X incorrect. exp: %s/%d, got: %s/%d",
				c.opcode, c.name, c.cycles, inst.Name, inst.Cycles)
		}
	}

	if n := len(set.GetInstructions("jmp")); n != 2 {
		t.Errorf("JMP variants incorrect. exp: 2, got: %d", n)
	}
}
