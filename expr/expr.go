// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr evaluates the integer expressions accepted by the assembler
// and the interactive host.
//
// Operators, from lowest to highest precedence:
//
//	|  ^  &  << >>  + -  * / %
//
// Unary operators are - + ~ and the byte selectors < (low byte) and
// > (high byte). Numbers may be written as decimal, $hex, 0xhex, 0bbinary,
// 0ddecimal, %binary or 'c'. Identifiers are resolved by a Resolver.
package expr

import (
	"errors"
	"fmt"
	"strconv"
)

// Errors
var (
	ErrSyntax       = errors.New("expression syntax error")
	ErrDivideByZero = errors.New("division by zero")
)

// A Resolver supplies values for identifiers appearing in an expression.
type Resolver interface {
	ResolveIdentifier(name string) (int64, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (int64, error)

// ResolveIdentifier calls f(name).
func (f ResolverFunc) ResolveIdentifier(name string) (int64, error) {
	return f(name)
}

// A Parser evaluates expressions. In HexMode, bare numbers and identifiers
// made only of hex digits are read as hexadecimal.
type Parser struct {
	HexMode bool
}

// Eval evaluates s. Identifiers are passed to r, which may be nil when the
// expression is known to contain none.
func (p *Parser) Eval(s string, r Resolver) (int64, error) {
	sc := &scanner{src: s, hex: p.HexMode, r: r}
	v, err := sc.parseBinary(1)
	if err != nil {
		return 0, err
	}
	sc.skipSpace()
	if sc.pos < len(sc.src) {
		return 0, sc.errorf("unexpected '%c'", sc.src[sc.pos])
	}
	return v, nil
}

// Eval evaluates s with a default parser.
func Eval(s string, r Resolver) (int64, error) {
	var p Parser
	return p.Eval(s, r)
}

type binop struct {
	sym  string
	prec int
	fn   func(a, b int64) (int64, error)
}

// Two-character operators come first so they match before their prefixes.
var binops = []binop{
	{"<<", 4, func(a, b int64) (int64, error) { return a << uint64(b), nil }},
	{">>", 4, func(a, b int64) (int64, error) { return a >> uint64(b), nil }},
	{"|", 1, func(a, b int64) (int64, error) { return a | b, nil }},
	{"^", 2, func(a, b int64) (int64, error) { return a ^ b, nil }},
	{"&", 3, func(a, b int64) (int64, error) { return a & b, nil }},
	{"+", 5, func(a, b int64) (int64, error) { return a + b, nil }},
	{"-", 5, func(a, b int64) (int64, error) { return a - b, nil }},
	{"*", 6, func(a, b int64) (int64, error) { return a * b, nil }},
	{"/", 6, func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	}},
	{"%", 6, func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a % b, nil
	}},
}

type scanner struct {
	src string
	pos int
	hex bool
	r   Resolver
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && whitespace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *scanner) peek() byte {
	if s.pos < len(s.src) {
		return s.src[s.pos]
	}
	return 0
}

func (s *scanner) peekBinop() *binop {
	s.skipSpace()
	rest := s.src[s.pos:]
	for i := range binops {
		op := &binops[i]
		if len(rest) >= len(op.sym) && rest[:len(op.sym)] == op.sym {
			return op
		}
	}
	return nil
}

// parseBinary parses a chain of binary operators whose precedence is at
// least minPrec. Operators of equal precedence associate to the left.
func (s *scanner) parseBinary(minPrec int) (int64, error) {
	lhs, err := s.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := s.peekBinop()
		if op == nil || op.prec < minPrec {
			return lhs, nil
		}
		s.pos += len(op.sym)
		rhs, err := s.parseBinary(op.prec + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = op.fn(lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func (s *scanner) parseUnary() (int64, error) {
	s.skipSpace()
	c := s.peek()
	switch {
	case c == '-', c == '+', c == '~':
		s.pos++
	case c == '<' && !s.at("<<"), c == '>' && !s.at(">>"):
		s.pos++
	default:
		return s.parsePrimary()
	}

	v, err := s.parseUnary()
	if err != nil {
		return 0, err
	}
	switch c {
	case '-':
		return -v, nil
	case '~':
		return ^v, nil
	case '<':
		return v & 0xff, nil
	case '>':
		return (v >> 8) & 0xff, nil
	default:
		return v, nil
	}
}

func (s *scanner) at(prefix string) bool {
	rest := s.src[s.pos:]
	return len(rest) >= len(prefix) && rest[:len(prefix)] == prefix
}

func (s *scanner) parsePrimary() (int64, error) {
	c := s.peek()
	switch {
	case c == 0:
		return 0, s.errorf("missing operand")
	case c == '(':
		s.pos++
		v, err := s.parseBinary(1)
		if err != nil {
			return 0, err
		}
		s.skipSpace()
		if s.peek() != ')' {
			return 0, s.errorf("missing ')'")
		}
		s.pos++
		return v, nil
	case c == '$':
		s.pos++
		return s.parseDigits(16, hexadecimal)
	case c == '%':
		s.pos++
		return s.parseDigits(2, binary)
	case c == '\'':
		if s.pos+2 >= len(s.src) || s.src[s.pos+2] != '\'' {
			return 0, s.errorf("bad character literal")
		}
		v := int64(s.src[s.pos+1])
		s.pos += 3
		return v, nil
	case decimal(c):
		return s.parseNumber()
	case identStart(c):
		return s.parseIdentifier()
	default:
		return 0, s.errorf("unexpected '%c'", c)
	}
}

func (s *scanner) parseNumber() (int64, error) {
	if s.peek() == '0' && s.pos+2 < len(s.src) {
		switch s.src[s.pos+1] {
		case 'x', 'X':
			s.pos += 2
			return s.parseDigits(16, hexadecimal)
		case 'b', 'B':
			if binary(s.src[s.pos+2]) {
				s.pos += 2
				return s.parseDigits(2, binary)
			}
		case 'd', 'D':
			s.pos += 2
			return s.parseDigits(10, decimal)
		}
	}
	if s.hex {
		return s.parseDigits(16, hexadecimal)
	}
	return s.parseDigits(10, decimal)
}

func (s *scanner) parseDigits(base int, fn func(c byte) bool) (int64, error) {
	start := s.pos
	for s.pos < len(s.src) && fn(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return 0, s.errorf("missing digits")
	}
	if s.pos < len(s.src) && identifier(s.src[s.pos]) {
		return 0, s.errorf("bad number '%s'", s.src[start:s.pos+1])
	}
	v, err := strconv.ParseInt(s.src[start:s.pos], base, 64)
	if err != nil {
		return 0, s.errorf("bad number '%s'", s.src[start:s.pos])
	}
	return v, nil
}

func (s *scanner) parseIdentifier() (int64, error) {
	start := s.pos
	for s.pos < len(s.src) && identifier(s.src[s.pos]) {
		s.pos++
	}
	id := s.src[start:s.pos]

	if s.hex && allHex(id) {
		v, err := strconv.ParseInt(id, 16, 64)
		if err == nil {
			return v, nil
		}
	}
	if s.r == nil {
		return 0, fmt.Errorf("unknown identifier '%s'", id)
	}
	return s.r.ResolveIdentifier(id)
}

func allHex(s string) bool {
	for i := 0; i < len(s); i++ {
		if !hexadecimal(s[i]) {
			return false
		}
	}
	return true
}

func whitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func decimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func hexadecimal(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func binary(c byte) bool {
	return c == '0' || c == '1'
}

func identStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}

func identifier(c byte) bool {
	return identStart(c) || decimal(c)
}
