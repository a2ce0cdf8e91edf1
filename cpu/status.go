// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Bits assigned to the status register. Only the low four bits are defined.
const (
	ZeroBit     = 1 << 0
	CarryBit    = 1 << 1
	OverflowBit = 1 << 2
	NegativeBit = 1 << 3

	statusMask = ZeroBit | CarryBit | OverflowBit | NegativeBit
)

// Status holds the processor flags. Flags change only through the update
// methods below; nothing clears them implicitly except Reset.
type Status struct {
	bits byte
}

// Reset clears all flags.
func (s *Status) Reset() {
	s.bits = 0
}

// Byte returns the flags packed into a byte.
func (s *Status) Byte() byte {
	return s.bits
}

// SetByte restores the flags from a packed byte. Undefined bits are
// discarded.
func (s *Status) SetByte(v byte) {
	s.bits = v & statusMask
}

// Zero reports whether the Zero flag is set.
func (s *Status) Zero() bool { return s.bits&ZeroBit != 0 }

// Carry reports whether the Carry flag is set.
func (s *Status) Carry() bool { return s.bits&CarryBit != 0 }

// Overflow reports whether the Overflow flag is set.
func (s *Status) Overflow() bool { return s.bits&OverflowBit != 0 }

// Negative reports whether the Negative flag is set.
func (s *Status) Negative() bool { return s.bits&NegativeBit != 0 }

// UpdateZero sets the Zero flag if v is zero. It serves both 8-bit and
// 16-bit values.
func (s *Status) UpdateZero(v uint16) {
	s.set(ZeroBit, v == 0)
}

// UpdateNegative sets the Negative flag from bit 7 of v. For 16-bit values
// callers pass the high byte.
func (s *Status) UpdateNegative(v byte) {
	s.set(NegativeBit, v&0x80 != 0)
}

// SetCarry sets or clears the Carry flag.
func (s *Status) SetCarry(on bool) {
	s.set(CarryBit, on)
}

// SetOverflow sets or clears the Overflow flag.
func (s *Status) SetOverflow(on bool) {
	s.set(OverflowBit, on)
}

// UpdateArithmeticFlags derives Zero, Carry and Negative from the
// untruncated result of an 8-bit add or subtract.
func (s *Status) UpdateArithmeticFlags(result int) {
	b := byte(result)
	s.UpdateZero(uint16(b))
	s.SetCarry(result > 0xff || result < 0)
	s.UpdateNegative(b)
}

func (s *Status) set(bit byte, on bool) {
	if on {
		s.bits |= bit
	} else {
		s.bits &^= bit
	}
}

// String renders the flags as "NVCZ", with a dash for each clear flag.
func (s *Status) String() string {
	b := []byte("----")
	if s.Negative() {
		b[0] = 'N'
	}
	if s.Overflow() {
		b[1] = 'V'
	}
	if s.Carry() {
		b[2] = 'C'
	}
	if s.Zero() {
		b[3] = 'Z'
	}
	return string(b)
}
