// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assemble(code string) (*Assembly, *SourceMap, error) {
	r := strings.NewReader(code)
	return Assemble(r, "test", 0x1000, nil, 0)
}

func checkASM(t *testing.T, asm string, expected string) {
	t.Helper()
	assembly, _, err := assemble(asm)
	if err != nil {
		t.Error(err)
		for _, e := range assembly.Errors {
			t.Error(e)
		}
		return
	}

	code := assembly.Code
	b := make([]byte, len(code)*2)
	for i, j := 0, 0; i < len(code); i, j = i+1, j+2 {
		v := code[i]
		b[j+0] = hex[v>>4]
		b[j+1] = hex[v&0x0f]
	}
	s := string(b)

	if s != expected {
		t.Error("code doesn't match expected")
		t.Errorf("got: %s\n", s)
		t.Errorf("exp: %s\n", expected)
	}
}

func checkASMError(t *testing.T, asm string, errString string) {
	t.Helper()
	assembly, _, err := assemble(asm)
	if err == nil {
		t.Errorf("Expected error on %s, didn't get one\n", asm)
		return
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("Expected ErrParse, got '%v'\n", err)
	}
	if len(assembly.Errors) == 0 || !strings.Contains(assembly.Errors[0], errString) {
		t.Errorf("Expected '%s', got %q\n", errString, assembly.Errors)
	}
}

func TestImmediate(t *testing.T) {
	asm := `
	LD A,#$20
	LD F,#$20
	ADD A,#$20
	SUB A,#$20
	AND A,#$20
	OR A,#$20
	XOR A,#$20
	CMP C,#$20`

	checkASM(t, asm, "1020152046204E2056205E2066209220")
}

func TestImmediateWord(t *testing.T) {
	asm := `
	LD DA,#$1234
	LD IDY,#$1234
	LD SP,#$FFFF
	ADD IDX,#2
	CMP DA,#$100
	SUB DA,#1`

	checkASM(t, asm, "1634121F34122AFFFF3C02008F00019F0100")
}

func TestAbsolute(t *testing.T) {
	asm := `
	LD B,[$2000]
	ST [$2000],C
	LD DB,[$2000]
	ST [$2000],DA
	JMP $2000
	CALL $2000`

	checkASM(t, asm, "190020220020290020260020A00020AC0020")
}

func TestImplied(t *testing.T) {
	asm := `
	NOP
	HLT
	ADD A,B
	SUB A,A
	INC F
	DEC D
	SHL A
	SHR E
	CMP A,C
	CMP DA,DB
	PUSH B
	POP F
	PUSH IDX
	POP DB
	PUSHF
	POPF
	MOV A,D
	MOV E,A
	MOV DA,DB
	SWP A,F
	SWP IDX,IDY
	MOV AB,DA
	CLC
	SYS
	RET
	JMP IDX`

	checkASM(t, asm, "000141486D7378848A8EB1BDC2C5C8C9D3DADCE5DFEDF0FFADA7")
}

func TestIndexed(t *testing.T) {
	asm := `
	LD A,[IDX]
	LD A,[IDY]
	ST [IDX],A
	LD A,[IDX+]
	ST [IDY+],A
	LD A,[IDY-]
	ST [IDX-],A
	INC IDY
	DEC IDX
	ADD IDY,A`

	checkASM(t, asm, "2B2C2D30333536393A3F")
}

func TestCaseAndSpacing(t *testing.T) {
	asm := `
	ld a, # $20
	st [ idx + ], a
	Cmp DA , DB`

	checkASM(t, asm, "1020328E")
}

func TestRelative(t *testing.T) {
	asm := `
	.ORG $1000
loop:	NOP
	JR loop
	JRZ done
	JRNZ loop
done:	HLT`

	checkASM(t, asm, "00A8FDA902AAF901")
}

func TestLabelsAndData(t *testing.T) {
	asm := `
	.ORG $0200
start:	LD DA,#msg
	LD A,#<msg
	LD B,#>msg
	JMP start
msg:	.DB "Hi", 0
	.DW $1234, msg
	.DS 2, $FF`

	checkASM(t, asm, "160A02100A1102A0000248690034120A02FFFF")
}

func TestConstants(t *testing.T) {
	asm := `
COUNT = 5
	.EQ BASE $3000
	LD A,#COUNT*2
	LD B,[BASE+1]
	LD C,#'A'
	LD D,#LATER
LATER	.EQU 3`

	checkASM(t, asm, "100A19013012411303")
}

func TestColumnZeroLabel(t *testing.T) {
	asm := `
top
	NOP
	JMP top ; comment with "quotes"`

	checkASM(t, asm, "00A00010")
}

func TestOriginGap(t *testing.T) {
	asm := `
	.ORG $10
	NOP
	.ORG $14
	HLT`

	assembly, _, err := assemble(asm)
	if err != nil {
		t.Fatal(err)
	}
	if assembly.Origin != 0x10 {
		t.Errorf("origin incorrect. exp: $%04X, got: $%04X", 0x10, assembly.Origin)
	}
	exp := []byte{0x00, 0x00, 0x00, 0x00, 0x01}
	if !bytes.Equal(assembly.Code, exp) {
		t.Errorf("code incorrect. exp: % X, got: % X", exp, assembly.Code)
	}
}

func TestErrors(t *testing.T) {
	checkASMError(t, "\tFOO A", "unknown instruction 'FOO'")
	checkASMError(t, "\tLD A,#$100", "does not fit in a byte")
	checkASMError(t, "\tJR far\n\t.DS 200\nfar: NOP", "out of range")
	checkASMError(t, "\tLD A,#missing", "undefined symbol 'missing'")
	checkASMError(t, "x = 1\nx = 2", "'x' redefined")
	checkASMError(t, "\tADD B,C", "invalid operand")
	checkASMError(t, "\t.ORG later\nlater: NOP", "must be defined before use")
	checkASMError(t, "\t.ORG $2000\n\tNOP\n\t.ORG $1000", "below the current address")
	checkASMError(t, "\t.DB", "missing data")
}

func TestUndefinedOperands(t *testing.T) {
	checkASMError(t, "\t.DB 1,missing", "undefined symbol 'missing'")
	checkASMError(t, "\t.DW missing", "undefined symbol 'missing'")
	checkASMError(t, "\tJMP missing", "undefined symbol 'missing'")
	checkASMError(t, "\t.DS 2, missing", "undefined symbol 'missing'")
	checkASMError(t, "\tJR missing", "undefined symbol 'missing'")
}

func TestErrorLine(t *testing.T) {
	assembly, _, err := assemble("\tNOP\n\tNOP\n\tBAD\n")
	if err == nil {
		t.Fatal("expected error")
	}
	exp := "Syntax error in 'test' line 3: unknown instruction 'BAD'"
	if assembly.Errors[0] != exp {
		t.Errorf("error incorrect. exp: %s, got: %s", exp, assembly.Errors[0])
	}
}

func TestSourceMap(t *testing.T) {
	asm := `
	.ORG $0300
start:	LD A,#1
	NOP
end:	HLT`

	_, sm, err := assemble(asm)
	if err != nil {
		t.Fatal(err)
	}
	if sm.Origin != 0x0300 || sm.Size != 4 {
		t.Errorf("source map header incorrect. got origin $%04X size %d", sm.Origin, sm.Size)
	}

	file, line := sm.Search(0x0302)
	if file != "test" || line != 4 {
		t.Errorf("search incorrect. exp: test:4, got: %s:%d", file, line)
	}
	if _, line := sm.Search(0x0301); line != -1 {
		t.Errorf("search of operand byte should fail, got line %d", line)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	var sm2 SourceMap
	if _, err := sm2.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	addr, ok := sm2.Label("end")
	if !ok || addr != 0x0303 {
		t.Errorf("label 'end' incorrect. exp: $0303, got: $%04X (%v)", addr, ok)
	}
	if sm2.CRC != sm.CRC {
		t.Errorf("CRC incorrect. exp: %08X, got: %08X", sm.CRC, sm2.CRC)
	}
}

func TestAssembleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.asm")
	if err := os.WriteFile(path, []byte("\tLD A,#7\n\tHLT\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := AssembleFile(path, 0, &out); err != nil {
		t.Fatal(err)
	}

	bin, err := os.ReadFile(filepath.Join(dir, "prog.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bin, []byte{0x10, 0x07, 0x01}) {
		t.Errorf("binary incorrect. got: % X", bin)
	}
	if _, err := os.Stat(filepath.Join(dir, "prog.map")); err != nil {
		t.Error(err)
	}
	if !strings.Contains(out.String(), "prog.bin") {
		t.Errorf("unexpected output: %s", out.String())
	}
}
