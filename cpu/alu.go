// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// ALU performs arithmetic and logic on register slots handed to it for the
// duration of a single call. It keeps no register state of its own; every
// operation reports its outcome through the owning processor's status
// register.
type ALU struct {
	sr *Status
}

// NewALU returns an ALU that reports flags into sr.
func NewALU(sr *Status) *ALU {
	return &ALU{sr: sr}
}

// Add8 adds v to the register at dst.
func (a *ALU) Add8(dst *byte, v byte) {
	d := *dst
	r := int(d) + int(v)
	a.sr.UpdateArithmeticFlags(r)
	a.sr.SetOverflow((d^v)&0x80 == 0 && (d^byte(r))&0x80 != 0)
	*dst = byte(r)
}

// Sub8 subtracts v from the register at dst. Overflow uses the
// two's-complement subtract test (operands of different sign, result sign
// differing from dst), not the same-sign test that Add8 applies.
func (a *ALU) Sub8(dst *byte, v byte) {
	d := *dst
	r := int(d) - int(v)
	a.sr.UpdateArithmeticFlags(r)
	a.sr.SetOverflow((d^v)&0x80 != 0 && (d^byte(r))&0x80 != 0)
	*dst = byte(r)
}

// And8 stores dst & v into dst. Carry is always cleared.
func (a *ALU) And8(dst *byte, v byte) {
	*dst &= v
	a.logicFlags(*dst)
}

// Or8 stores dst | v into dst. Carry is always cleared.
func (a *ALU) Or8(dst *byte, v byte) {
	*dst |= v
	a.logicFlags(*dst)
}

// Xor8 stores dst ^ v into dst. Carry is always cleared.
func (a *ALU) Xor8(dst *byte, v byte) {
	*dst ^= v
	a.logicFlags(*dst)
}

func (a *ALU) logicFlags(r byte) {
	a.sr.UpdateZero(uint16(r))
	a.sr.UpdateNegative(r)
	a.sr.SetCarry(false)
}

// ShiftLeft8 shifts dst left by one. Carry receives bit 7.
func (a *ALU) ShiftLeft8(dst *byte) {
	a.sr.SetCarry(*dst&0x80 != 0)
	*dst <<= 1
	a.sr.UpdateZero(uint16(*dst))
	a.sr.UpdateNegative(*dst)
}

// ShiftRight8 shifts dst right by one. Carry receives bit 0.
func (a *ALU) ShiftRight8(dst *byte) {
	a.sr.SetCarry(*dst&0x01 != 0)
	*dst >>= 1
	a.sr.UpdateZero(uint16(*dst))
	a.sr.UpdateNegative(*dst)
}

// Increment8 adds one to dst. Carry is set when the result wraps.
func (a *ALU) Increment8(dst *byte) {
	a.step8(dst, 1)
}

// Decrement8 subtracts one from dst. Carry is set when the result wraps.
func (a *ALU) Decrement8(dst *byte) {
	a.step8(dst, -1)
}

func (a *ALU) step8(dst *byte, delta int) {
	r := int(*dst) + delta
	*dst = byte(r)
	a.sr.UpdateZero(uint16(*dst))
	a.sr.UpdateNegative(*dst)
	a.sr.SetCarry(r > 0xff || r < 0)
}

// Compare8 subtracts y from x without storing the difference.
func (a *ALU) Compare8(x, y byte) {
	r := int(x) - int(y)
	a.sr.UpdateZero(uint16(byte(r)))
	a.sr.UpdateNegative(byte(r))
	a.sr.SetCarry(r < 0)
}

// Compare16 subtracts y from x without storing the difference. Negative
// comes from bit 15 of the raw signed difference.
func (a *ALU) Compare16(x, y uint16) {
	r := int32(x) - int32(y)
	a.sr.UpdateZero(uint16(r))
	a.sr.SetCarry(r < 0)
	a.sr.UpdateNegative(byte(r >> 8))
}

// Add16 adds v to the 16-bit register at dst. Overflow is never touched.
func (a *ALU) Add16(dst *uint16, v uint16) {
	a.arith16(dst, int(*dst)+int(v))
}

// Sub16 subtracts v from the 16-bit register at dst.
func (a *ALU) Sub16(dst *uint16, v uint16) {
	a.arith16(dst, int(*dst)-int(v))
}

// Increment16 adds one to the 16-bit register at dst.
func (a *ALU) Increment16(dst *uint16) {
	a.arith16(dst, int(*dst)+1)
}

// Decrement16 subtracts one from the 16-bit register at dst.
func (a *ALU) Decrement16(dst *uint16) {
	a.arith16(dst, int(*dst)-1)
}

func (a *ALU) arith16(dst *uint16, r int) {
	*dst = uint16(r)
	a.sr.UpdateZero(*dst)
	a.sr.SetCarry(r > 0xffff || r < 0)
	a.sr.UpdateNegative(byte(*dst >> 8))
}
