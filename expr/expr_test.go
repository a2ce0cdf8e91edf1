// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"errors"
	"fmt"
	"testing"
)

var symbols = ResolverFunc(func(name string) (int64, error) {
	switch name {
	case "start":
		return 0x1234, nil
	case "PC":
		return 0x0200, nil
	case "ab":
		return 7, nil
	}
	return 0, fmt.Errorf("unknown identifier '%s'", name)
})

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		exp  int64
	}{
		{"1", 1},
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"8-2-1", 5},
		{"100/10/2", 5},
		{"-5+2", -3},
		{"~0", -1},
		{"$ff", 255},
		{"0x1F", 31},
		{"0b101", 5},
		{"0d99", 99},
		{"%1100", 12},
		{"7%4", 3},
		{"'A'", 65},
		{"1<<4", 16},
		{"$100>>4", 16},
		{"$f0 | $0f", 0xff},
		{"$ff & $0f", 0x0f},
		{"$ff ^ $0f", 0xf0},
		{"1 | 2 ^ 3 & 4", 1 | (2 ^ (3 & 4))},
		{"<start", 0x34},
		{">start", 0x12},
		{"<start+1", 0x35},
		{"start+2", 0x1236},
		{" ( PC + 1 ) * 2 ", 0x402},
		{"-(3*2)", -6},
	}

	for _, test := range tests {
		v, err := Eval(test.expr, symbols)
		if err != nil {
			t.Errorf("'%s': unexpected error: %v", test.expr, err)
			continue
		}
		if v != test.exp {
			t.Errorf("'%s' incorrect. exp: %d, got: %d", test.expr, test.exp, v)
		}
	}
}

func TestHexMode(t *testing.T) {
	p := Parser{HexMode: true}

	tests := []struct {
		expr string
		exp  int64
	}{
		{"10", 0x10},
		{"ff", 0xff},
		{"ab", 0xab},
		{"start+1", 0x1235},
		{"0d10", 10},
		{"$10+10", 0x20},
	}

	for _, test := range tests {
		v, err := p.Eval(test.expr, symbols)
		if err != nil {
			t.Errorf("'%s': unexpected error: %v", test.expr, err)
			continue
		}
		if v != test.exp {
			t.Errorf("'%s' incorrect. exp: $%X, got: $%X", test.expr, test.exp, v)
		}
	}
}

func TestErrors(t *testing.T) {
	syntax := []string{"", "1+", "(1", "1)", "$", "12ab", "'a", "1 2", "#5"}
	for _, s := range syntax {
		_, err := Eval(s, symbols)
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("'%s': expected syntax error, got %v", s, err)
		}
	}

	if _, err := Eval("1/0", nil); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("expected divide by zero, got %v", err)
	}
	if _, err := Eval("5%0", nil); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("expected divide by zero, got %v", err)
	}
	if _, err := Eval("nothing", symbols); err == nil {
		t.Error("expected unresolved identifier error")
	}
	if _, err := Eval("start", nil); err == nil {
		t.Error("expected error with nil resolver")
	}
}
