// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/go8/cpu"
)

// Parse a single line of source, producing at most one segment. A line has
// the form
//
//	[label[:]] [mnemonic|directive [operands]] [; comment]
//
// A label must start in the first column unless it ends with a colon.
func (a *assembler) parseLine(row int, text string) {
	line := stripComment(text)
	if strings.TrimSpace(line) == "" {
		return
	}

	word, rest := nextWord(line)
	var label string
	if strings.HasSuffix(word, ":") {
		label = word[:len(word)-1]
		word, rest = nextWord(rest)
	} else if next, after := nextWord(rest); isEquate(next) || (!whitespace(line[0]) && !a.isKeyword(word)) {
		label = word
		word, rest = next, after
	}

	if word == "" {
		a.defineLabel(row, label)
		return
	}

	if d, ok := directives[strings.ToLower(word)]; ok {
		d.fn(a, row, label, rest, d.param)
		return
	}

	a.defineLabel(row, label)
	a.parseInstruction(row, text, word, rest)
}

func (a *assembler) isKeyword(word string) bool {
	if _, ok := directives[strings.ToLower(word)]; ok {
		return true
	}
	return len(a.instSet.GetInstructions(word)) > 0
}

func isEquate(word string) bool {
	switch strings.ToLower(word) {
	case "=", ".eq", ".equ", "equ":
		return true
	}
	return false
}

func (a *assembler) defineLabel(row int, label string) {
	if label == "" {
		return
	}
	if !a.checkIdentifier(row, label) {
		return
	}
	a.labels[label] = a.pc
	a.order = append(a.order, label)
	a.log("%-15s Addr:$%04X", label, a.pc)
}

func (a *assembler) checkIdentifier(row int, name string) bool {
	if !validIdentifier(name) {
		a.addError(row, "invalid identifier '%s'", name)
		return false
	}
	_, isLabel := a.labels[name]
	_, isConst := a.constants[name]
	if isLabel || isConst {
		a.addError(row, "'%s' redefined", name)
		return false
	}
	return true
}

func (a *assembler) addSegment(row int, s segment) {
	a.segments = append(a.segments, s)
	a.pc += s.size()
	if a.pc > 0x10000 {
		a.addError(row, "code extends past $FFFF")
	}
}

// Parse an instruction and select the opcode whose operand template
// matches the operand text.
func (a *assembler) parseInstruction(row int, text, mnemonic, args string) {
	variants := a.instSet.GetInstructions(mnemonic)
	if len(variants) == 0 {
		a.addError(row, "unknown instruction '%s'", mnemonic)
		return
	}

	operand := compact(args)
	inst, exprText := matchInstruction(variants, operand)
	if inst == nil {
		a.addError(row, "invalid operand '%s' for %s", operand, strings.ToUpper(mnemonic))
		return
	}

	a.sourceLines = append(a.sourceLines, SourceLine{Address: a.pc, FileIndex: 0, Line: row})
	a.addSegment(row, &instruction{
		addr:    a.pc,
		row:     row,
		text:    text,
		inst:    inst,
		operand: exprText,
	})
}

// matchInstruction picks the variant whose template matches operand. Exact
// templates win; otherwise the template with the most fixed text around
// its "%s" wins. The returned string is the expression that fills "%s".
func matchInstruction(variants []*cpu.Instruction, operand string) (*cpu.Instruction, string) {
	upper := strings.ToUpper(operand)
	for _, inst := range variants {
		if !strings.Contains(inst.Args, "%s") && inst.Args == upper {
			return inst, ""
		}
	}

	var best *cpu.Instruction
	var bestExpr string
	bestLen := -1
	for _, inst := range variants {
		i := strings.Index(inst.Args, "%s")
		if i < 0 {
			continue
		}
		prefix, suffix := inst.Args[:i], inst.Args[i+2:]
		n := len(prefix) + len(suffix)
		if len(upper) <= n || !strings.HasPrefix(upper, prefix) || !strings.HasSuffix(upper, suffix) {
			continue
		}
		if n > bestLen {
			best, bestExpr, bestLen = inst, operand[len(prefix):len(operand)-len(suffix)], n
		}
	}
	return best, bestExpr
}

func (a *assembler) parseOrigin(row int, label, args string, param int) {
	v, ok := a.eval(row, args)
	if !ok {
		return
	}
	switch {
	case v < 0 || v > 0xffff:
		a.addError(row, "origin $%X out of range", v)
		return
	case len(a.segments) > 0 && int(v) < a.pc:
		a.addError(row, "origin $%04X is below the current address $%04X", v, a.pc)
		return
	}
	a.pc = int(v)
	a.defineLabel(row, label)
}

func (a *assembler) parseData(row int, label, args string, unit int) {
	a.defineLabel(row, label)

	items := splitList(args)
	if len(items) == 0 {
		a.addError(row, "missing data")
		return
	}

	d := &data{addr: a.pc, row: row, unit: unit}
	for _, item := range items {
		if strings.HasPrefix(item, "\"") {
			s, err := strconv.Unquote(item)
			if err != nil {
				a.addError(row, "bad string %s", item)
				return
			}
			d.items = append(d.items, dataItem{str: s, isString: true})
			continue
		}
		d.items = append(d.items, dataItem{expr: item})
	}
	a.addSegment(row, d)
}

func (a *assembler) parseSpace(row int, label, args string, param int) {
	a.defineLabel(row, label)

	items := splitList(args)
	if len(items) < 1 || len(items) > 2 {
		a.addError(row, ".DS takes a count and an optional fill value")
		return
	}
	n, ok := a.eval(row, items[0])
	if !ok {
		return
	}
	if n < 0 || n > 0x10000 {
		a.addError(row, "invalid .DS count %d", n)
		return
	}

	s := &space{addr: a.pc, row: row, count: int(n)}
	if len(items) == 2 {
		s.fill = items[1]
	}
	a.addSegment(row, s)
}

// Parse a constant definition. Both "name = value" and ".EQ name value"
// are accepted.
func (a *assembler) parseEquate(row int, label, args string, param int) {
	if label == "" {
		args = strings.TrimSpace(args)
		i := strings.IndexAny(args, " \t,")
		if i < 0 {
			a.addError(row, "missing constant value")
			return
		}
		label, args = args[:i], strings.TrimLeft(args[i:], " \t,")
	}
	args = strings.TrimSpace(args)
	if args == "" {
		a.addError(row, "missing constant value")
		return
	}
	if !a.checkIdentifier(row, label) {
		return
	}
	a.constants[label] = args
	a.log("%-15s = %s", label, args)
}

// eval evaluates an expression. Before code generation only labels and
// constants already defined may appear in it.
func (a *assembler) eval(row int, s string) (int64, bool) {
	v, err := a.parser.Eval(s, a)
	if err != nil {
		a.addError(row, "%v", err)
		return 0, false
	}
	return v, true
}

// ResolveIdentifier returns the value of a label or constant.
func (a *assembler) ResolveIdentifier(name string) (int64, error) {
	if addr, ok := a.labels[name]; ok {
		return int64(addr), nil
	}
	if e, ok := a.constants[name]; ok {
		if a.evaluating[name] {
			return 0, fmt.Errorf("circular definition of '%s'", name)
		}
		a.evaluating[name] = true
		defer delete(a.evaluating, name)
		return a.parser.Eval(e, a)
	}
	if !a.final {
		return 0, fmt.Errorf("'%s' must be defined before use", name)
	}
	return 0, fmt.Errorf("undefined symbol '%s'", name)
}

// nextWord splits off the first whitespace-delimited word of s. An '='
// is always a word of its own.
func nextWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	if strings.HasPrefix(s, "=") {
		return "=", s[1:]
	}
	i := strings.IndexAny(s, " \t=")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// stripComment removes a trailing ';' comment, ignoring semicolons inside
// quotes.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			return s[:i]
		}
	}
	return s
}

// compact removes whitespace outside quotes.
func compact(s string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case whitespace(c):
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// splitList splits a comma-separated list, ignoring commas inside quotes.
// Items are trimmed of surrounding whitespace.
func splitList(s string) []string {
	var items []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			items = append(items, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(items) > 0 {
		items = append(items, last)
	}
	return items
}

func validIdentifier(s string) bool {
	if s == "" || !identStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !identStart(s[i]) && !decimal(s[i]) {
			return false
		}
	}
	return true
}
