// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a two-pass assembler for the go8 instruction set.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/go8/cpu"
	"github.com/beevik/go8/expr"
)

// ErrParse is returned when assembly fails. Details are in Assembly.Errors.
var ErrParse = errors.New("parse error")

type directiveData struct {
	fn    func(a *assembler, row int, label, args string, param int)
	param int
}

var directives map[string]directiveData

func init() {
	directives = map[string]directiveData{
		".org":   {fn: (*assembler).parseOrigin},
		"org":    {fn: (*assembler).parseOrigin},
		".db":    {fn: (*assembler).parseData, param: 1},
		".byte":  {fn: (*assembler).parseData, param: 1},
		".dw":    {fn: (*assembler).parseData, param: 2},
		".word":  {fn: (*assembler).parseData, param: 2},
		".ds":    {fn: (*assembler).parseSpace},
		".space": {fn: (*assembler).parseSpace},
		".eq":    {fn: (*assembler).parseEquate},
		".equ":   {fn: (*assembler).parseEquate},
		"equ":    {fn: (*assembler).parseEquate},
		"=":      {fn: (*assembler).parseEquate},
	}
}

// A segment is a chunk of machine code produced by one source line.
type segment interface {
	address() int
	size() int
	line() int
}

// An instruction segment holds one instruction and its operand expression.
type instruction struct {
	addr    int
	row     int
	text    string
	inst    *cpu.Instruction
	operand string
}

func (i *instruction) address() int { return i.addr }
func (i *instruction) size() int    { return int(i.inst.Length) }
func (i *instruction) line() int    { return i.row }

// A data segment holds the expressions and strings of .DB and .DW.
type data struct {
	addr  int
	row   int
	unit  int
	items []dataItem
}

type dataItem struct {
	expr     string
	str      string
	isString bool
}

func (d *data) address() int { return d.addr }
func (d *data) line() int    { return d.row }

func (d *data) size() int {
	n := 0
	for _, it := range d.items {
		if it.isString {
			n += len(it.str)
		} else {
			n += d.unit
		}
	}
	return n
}

// A space segment reserves a run of bytes with the same fill value.
type space struct {
	addr  int
	row   int
	count int
	fill  string
}

func (s *space) address() int { return s.addr }
func (s *space) size() int    { return s.count }
func (s *space) line() int    { return s.row }

// An asmerror records an error encountered during assembly.
type asmerror struct {
	row int
	msg string
}

// The assembler is a state object used during the assembly of machine code
// from assembly code.
type assembler struct {
	instSet     *cpu.InstructionSet
	origin      int               // address of the first byte of code
	pc          int               // address of the next segment
	code        []byte            // generated machine code
	r           io.Reader         // the reader passed to Assemble
	filename    string            // name of the source file
	constants   map[string]string // constant -> expression
	labels      map[string]int    // label -> address
	order       []string          // labels in definition order
	segments    []segment         // all code segments in address order
	sourceLines []SourceLine      // source code line mappings
	final       bool              // all labels are known
	evaluating  map[string]bool   // constants being evaluated
	parser      expr.Parser
	errors      []asmerror
	out         io.Writer
	verbose     bool
}

// Assembly contains the assembled machine code and the errors encountered
// producing it.
type Assembly struct {
	Origin uint16   // address of the first byte of code
	Code   []byte   // assembled machine code
	Errors []string // errors encountered during assembly
}

// ReadFrom reads machine code from a binary input source.
func (a *Assembly) ReadFrom(r io.Reader) (n int64, err error) {
	a.Errors = []string{}
	a.Code, err = io.ReadAll(r)
	n = int64(len(a.Code))
	if n > 0x10000 {
		return n, fmt.Errorf("code exceeded 64K size")
	}
	return n, err
}

// WriteTo saves machine code as binary data into an output writer.
func (a *Assembly) WriteTo(w io.Writer) (n int64, err error) {
	nn, err := w.Write(a.Code)
	return int64(nn), err
}

// Option type used by the Assemble function.
type Option uint

// Options for the Assemble function.
const (
	Verbose Option = 1 << iota // verbose output during assembly
)

// DefaultOrigin is the load address used when the source has no .ORG.
const DefaultOrigin = 0x0000

// AssembleFile reads a file containing go8 assembly code, assembles it,
// and produces a binary output file and a source map file next to it.
func AssembleFile(path string, options Option, out io.Writer) error {
	inFile, err := os.Open(path)
	if err != nil {
		return err
	}
	defer inFile.Close()

	assembly, sourceMap, err := Assemble(inFile, path, DefaultOrigin, out, options)
	if err != nil {
		for _, e := range assembly.Errors {
			fmt.Fprintln(out, e)
		}
		return err
	}

	ext := filepath.Ext(path)
	prefix := path[:len(path)-len(ext)]
	binPath := prefix + ".bin"
	if err := writeFile(binPath, assembly); err != nil {
		return err
	}
	mapPath := prefix + ".map"
	if err := writeFile(mapPath, sourceMap); err != nil {
		return err
	}

	fmt.Fprintf(out, "Assembled '%s' to produce '%s' and '%s'.\n",
		filepath.Base(path),
		filepath.Base(binPath),
		filepath.Base(mapPath))
	return nil
}

func writeFile(path string, w io.WriterTo) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Assemble reads assembly source from r and assembles it into go8 machine
// code. Code starts at origin unless the source sets another with .ORG.
// Messages are written to out, which may be nil.
func Assemble(r io.Reader, filename string, origin uint16, out io.Writer, options Option) (*Assembly, *SourceMap, error) {
	if out == nil {
		out = io.Discard
	}

	a := &assembler{
		instSet:    cpu.GetInstructionSet(),
		origin:     -1,
		pc:         int(origin),
		r:          r,
		filename:   filename,
		constants:  make(map[string]string),
		labels:     make(map[string]int),
		evaluating: make(map[string]bool),
		out:        out,
		verbose:    (options & Verbose) != 0,
	}

	// Assembly consists of the following steps
	steps := []func(a *assembler) error{
		(*assembler).parse,        // Parse lines, assign addresses, collect labels
		(*assembler).generateCode, // Evaluate operands and emit machine code
	}

	var err error
	for _, step := range steps {
		err = step(a)
		if err == nil && len(a.errors) > 0 {
			err = ErrParse
		}
		if err != nil {
			break
		}
	}

	errs := make([]string, 0, len(a.errors))
	for _, e := range a.errors {
		s := fmt.Sprintf("Syntax error in '%s' line %d: %s", filename, e.row, e.msg)
		errs = append(errs, s)
	}

	if a.origin < 0 {
		a.origin = int(origin)
	}
	assembly := &Assembly{
		Origin: uint16(a.origin),
		Code:   a.code,
		Errors: errs,
	}

	sourceMap := &SourceMap{
		Origin:  uint16(a.origin),
		Size:    uint32(len(a.code)),
		CRC:     crc32.ChecksumIEEE(a.code),
		Files:   []string{filename},
		Lines:   a.sourceLines,
		Exports: a.exports(),
	}

	return assembly, sourceMap, err
}

// Read the assembly code, build up the code segments, assign their
// addresses and record every label.
func (a *assembler) parse() error {
	a.logSection("Parsing assembly code")

	scanner := bufio.NewScanner(a.r)
	for row := 1; scanner.Scan(); row++ {
		a.parseLine(row, scanner.Text())
	}
	return scanner.Err()
}

// Evaluate every operand now that all labels are known, and emit the
// machine code.
func (a *assembler) generateCode() error {
	a.logSection("Generating code")
	a.final = true

	for _, s := range a.segments {
		if a.origin < 0 {
			a.origin = s.address()
		}
		if gap := s.address() - (a.origin + len(a.code)); gap > 0 {
			a.code = append(a.code, make([]byte, gap)...)
		}

		start := len(a.code)
		switch ss := s.(type) {
		case *instruction:
			a.code = append(a.code, ss.inst.Opcode)
			a.code = append(a.code, a.encodeOperand(ss)...)
			a.logCode(ss.addr, a.code[start:], ss.text)

		case *data:
			for _, it := range ss.items {
				if it.isString {
					a.code = append(a.code, it.str...)
					continue
				}
				v, _ := a.eval(ss.row, it.expr)
				a.checkRange(ss.row, v, ss.unit)
				a.code = append(a.code, toBytes(ss.unit, int(v))...)
			}
			a.logBytes(ss.addr, a.code[start:])

		case *space:
			var fill byte
			if ss.fill != "" {
				v, _ := a.eval(ss.row, ss.fill)
				a.checkRange(ss.row, v, 1)
				fill = byte(v)
			}
			for i := 0; i < ss.count; i++ {
				a.code = append(a.code, fill)
			}
			a.logBytes(ss.addr, a.code[start:])
		}
	}

	if len(a.code) > 0x10000 {
		a.addError(0, "code exceeded 64K size")
	}
	return nil
}

func (a *assembler) encodeOperand(i *instruction) []byte {
	inst := i.inst
	switch inst.Mode {
	case cpu.IMM:
		v, _ := a.eval(i.row, i.operand)
		a.checkRange(i.row, v, 1)
		return []byte{byte(v)}

	case cpu.IMW, cpu.ABS:
		v, _ := a.eval(i.row, i.operand)
		a.checkRange(i.row, v, 2)
		return toBytes(2, int(v))

	case cpu.REL:
		v, _ := a.eval(i.row, i.operand)
		offset, err := relOffset(int(v), i.addr+int(inst.Length))
		if err != nil {
			a.addError(i.row, "branch target $%04X out of range", v)
		}
		return []byte{offset}

	default:
		return nil
	}
}

func (a *assembler) checkRange(row int, v int64, unit int) {
	switch unit {
	case 1:
		if v < -128 || v > 0xff {
			a.addError(row, "value $%X does not fit in a byte", v)
		}
	case 2:
		if v < -32768 || v > 0xffff {
			a.addError(row, "value $%X does not fit in a word", v)
		}
	}
}

// Compute the relative offset from addr2 to addr1.
func relOffset(addr1, addr2 int) (byte, error) {
	diff := addr1 - addr2
	if diff < -128 || diff > 127 {
		return 0, ErrParse
	}
	return byte(diff), nil
}

func (a *assembler) exports() []Export {
	exports := make([]Export, 0, len(a.order))
	for _, label := range a.order {
		exports = append(exports, Export{Label: label, Address: uint16(a.labels[label])})
	}
	return exports
}

func (a *assembler) addError(row int, format string, args ...any) {
	a.errors = append(a.errors, asmerror{row, fmt.Sprintf(format, args...)})
}

func (a *assembler) log(format string, args ...any) {
	if a.verbose {
		fmt.Fprintf(a.out, format, args...)
		fmt.Fprintln(a.out)
	}
}

func (a *assembler) logCode(addr int, b []byte, text string) {
	a.log("%04X-   %-8s    %s", addr, byteString(b), strings.TrimSpace(text))
}

func (a *assembler) logBytes(addr int, b []byte) {
	for i, n := 0, len(b); i < n; i += 3 {
		j := i + 3
		if j > n {
			j = n
		}
		a.log("%04X-   %s", addr+i, byteString(b[i:j]))
	}
}

func (a *assembler) logSection(name string) {
	if a.verbose {
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(a.out, "-- %s --\n", name)
		fmt.Fprintln(a.out, strings.Repeat("-", len(name)+6))
	}
}
