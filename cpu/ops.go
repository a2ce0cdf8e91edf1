// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

func operandWord(operand []byte) uint16 {
	return uint16(operand[0]) | uint16(operand[1])<<8
}

func (c *CPU) updateZN8(v byte) {
	c.SR.UpdateZero(uint16(v))
	c.SR.UpdateNegative(v)
}

func (c *CPU) updateZN16(v uint16) {
	c.SR.UpdateZero(v)
	c.SR.UpdateNegative(byte(v >> 8))
}

//
// loads and stores
//

func ld8Imm(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		p := c.Reg.ptr8(r)
		*p = operand[0]
		c.updateZN8(*p)
		return nil
	}
}

func ld8Abs(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		v, err := c.load(operandWord(operand))
		if err != nil {
			return err
		}
		*c.Reg.ptr8(r) = v
		c.updateZN8(v)
		return nil
	}
}

func st8Abs(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		return c.store(operandWord(operand), *c.Reg.ptr8(r))
	}
}

func ld16Imm(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		v := operandWord(operand)
		*c.Reg.ptr16(r) = v
		c.updateZN16(v)
		return nil
	}
}

func ld16Abs(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		v, err := c.loadWord(operandWord(operand))
		if err != nil {
			return err
		}
		*c.Reg.ptr16(r) = v
		c.updateZN16(v)
		return nil
	}
}

func st16Abs(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		return c.storeWord(operandWord(operand), *c.Reg.ptr16(r))
	}
}

// The index register moves by delta after the access.
func ldIndexed(x Reg16, delta int) instfunc {
	return func(c *CPU, operand []byte) error {
		p := c.Reg.ptr16(x)
		v, err := c.load(*p)
		if err != nil {
			return err
		}
		c.Reg.A = v
		c.updateZN8(v)
		*p = uint16(int(*p) + delta)
		return nil
	}
}

func stIndexed(x Reg16, delta int) instfunc {
	return func(c *CPU, operand []byte) error {
		p := c.Reg.ptr16(x)
		if err := c.store(*p, c.Reg.A); err != nil {
			return err
		}
		*p = uint16(int(*p) + delta)
		return nil
	}
}

//
// arithmetic and logic
//

func alu8Reg(op func(*ALU, *byte, byte), src Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, &c.Reg.A, *c.Reg.ptr8(src))
		return nil
	}
}

func alu8Imm(op func(*ALU, *byte, byte)) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, &c.Reg.A, operand[0])
		return nil
	}
}

func unary8(op func(*ALU, *byte), r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, c.Reg.ptr8(r))
		return nil
	}
}

func cmp8Reg(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		c.alu.Compare8(c.Reg.A, *c.Reg.ptr8(r))
		return nil
	}
}

func cmp8Imm(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		c.alu.Compare8(*c.Reg.ptr8(r), operand[0])
		return nil
	}
}

func alu16Reg(op func(*ALU, *uint16, uint16), dst, src Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, c.Reg.ptr16(dst), *c.Reg.ptr16(src))
		return nil
	}
}

func alu16Imm(op func(*ALU, *uint16, uint16), dst Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, c.Reg.ptr16(dst), operandWord(operand))
		return nil
	}
}

func unary16(op func(*ALU, *uint16), r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		op(c.alu, c.Reg.ptr16(r))
		return nil
	}
}

func addIndexA(x Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		c.alu.Add16(c.Reg.ptr16(x), uint16(c.Reg.A))
		return nil
	}
}

func cmp16Reg(x, y Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		c.alu.Compare16(*c.Reg.ptr16(x), *c.Reg.ptr16(y))
		return nil
	}
}

func cmp16Imm(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		c.alu.Compare16(*c.Reg.ptr16(r), operandWord(operand))
		return nil
	}
}

//
// jumps and subroutines
//

func jump(cond func(*Status) bool) instfunc {
	return func(c *CPU, operand []byte) error {
		if cond == nil || cond(&c.SR) {
			c.Reg.PC = operandWord(operand)
		}
		return nil
	}
}

// The offset is relative to the PC after the operand byte.
func jumpRelative(cond func(*Status) bool) instfunc {
	return func(c *CPU, operand []byte) error {
		if cond == nil || cond(&c.SR) {
			c.Reg.PC = uint16(int(c.Reg.PC) + int(int8(operand[0])))
		}
		return nil
	}
}

func (c *CPU) jmpIndex(operand []byte) error {
	c.Reg.PC = c.Reg.IDX
	return nil
}

// CALL writes the high byte of the return address first, directly below
// SP, then the low byte below it.
func (c *CPU) call(operand []byte) error {
	ret := c.Reg.PC
	if err := c.store(c.Reg.SP-1, byte(ret>>8)); err != nil {
		return err
	}
	c.Reg.SP--
	if err := c.store(c.Reg.SP-1, byte(ret)); err != nil {
		return err
	}
	c.Reg.SP--
	c.Reg.PC = operandWord(operand)
	return nil
}

func (c *CPU) ret(operand []byte) error {
	lo, err := c.load(c.Reg.SP)
	if err != nil {
		return err
	}
	c.Reg.SP++
	hi, err := c.load(c.Reg.SP)
	if err != nil {
		return err
	}
	c.Reg.SP++
	c.Reg.PC = uint16(lo) | uint16(hi)<<8
	return nil
}

//
// stack
//

func (c *CPU) push(v byte) error {
	if err := c.store(c.Reg.SP-1, v); err != nil {
		return err
	}
	c.Reg.SP--
	return nil
}

func (c *CPU) pop() (byte, error) {
	v, err := c.load(c.Reg.SP)
	if err != nil {
		return 0, err
	}
	c.Reg.SP++
	return v, nil
}

func push8(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		return c.push(*c.Reg.ptr8(r))
	}
}

func pop8(r Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		v, err := c.pop()
		if err != nil {
			return err
		}
		*c.Reg.ptr8(r) = v
		c.updateZN8(v)
		return nil
	}
}

// Word pushes move SP by two and store the value as one little-endian
// word, unlike CALL.
func push16(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		sp := c.Reg.SP - 2
		if err := c.storeWord(sp, *c.Reg.ptr16(r)); err != nil {
			return err
		}
		c.Reg.SP = sp
		return nil
	}
}

func pop16(r Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		v, err := c.loadWord(c.Reg.SP)
		if err != nil {
			return err
		}
		c.Reg.SP += 2
		*c.Reg.ptr16(r) = v
		c.updateZN16(v)
		return nil
	}
}

func (c *CPU) pushf(operand []byte) error {
	return c.push(c.SR.Byte())
}

func (c *CPU) popf(operand []byte) error {
	v, err := c.pop()
	if err != nil {
		return err
	}
	c.SR.SetByte(v)
	return nil
}

//
// register transfers
//

func mov8(dst, src Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		v := *c.Reg.ptr8(src)
		*c.Reg.ptr8(dst) = v
		c.updateZN8(v)
		return nil
	}
}

func swp8(x, y Reg8) instfunc {
	return func(c *CPU, operand []byte) error {
		px, py := c.Reg.ptr8(x), c.Reg.ptr8(y)
		*px, *py = *py, *px
		return nil
	}
}

func mov16(dst, src Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		v := *c.Reg.ptr16(src)
		*c.Reg.ptr16(dst) = v
		c.updateZN16(v)
		return nil
	}
}

func swp16(x, y Reg16) instfunc {
	return func(c *CPU, operand []byte) error {
		px, py := c.Reg.ptr16(x), c.Reg.ptr16(y)
		*px, *py = *py, *px
		return nil
	}
}

func (c *CPU) movPairToDA(operand []byte) error {
	c.Reg.DA = uint16(c.Reg.A)<<8 | uint16(c.Reg.B)
	c.updateZN16(c.Reg.DA)
	return nil
}

func (c *CPU) movDAToPair(operand []byte) error {
	c.Reg.A, c.Reg.B = byte(c.Reg.DA>>8), byte(c.Reg.DA)
	c.updateZN16(c.Reg.DA)
	return nil
}

//
// flags and system
//

func (c *CPU) nop(operand []byte) error {
	return nil
}

func (c *CPU) hlt(operand []byte) error {
	c.halt(StopHalted)
	return nil
}

func (c *CPU) clc(operand []byte) error {
	c.SR.SetCarry(false)
	return nil
}

func (c *CPU) sec(operand []byte) error {
	c.SR.SetCarry(true)
	return nil
}

func (c *CPU) clv(operand []byte) error {
	c.SR.SetOverflow(false)
	return nil
}

func (c *CPU) sys(operand []byte) error {
	return c.syscall()
}
