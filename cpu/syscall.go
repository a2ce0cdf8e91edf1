// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Syscall selectors, passed in register A.
const (
	SysPrintChar   = 0 // B = character
	SysPrintString = 1 // B:C = address of NUL-terminated string
	SysClearScreen = 2
	SysSetCursor   = 3 // B = column, C = row
	SysSetColor    = 4 // B = foreground, C = background
	SysGetChar     = 5 // returns key in B, 0 if none
	SysSetPixel    = 6 // B = x, C = y, D = color
	SysGetPixel    = 7 // B = x, C = y; returns color in D
)

// Longest string PrintString will read before giving up on a terminator.
const maxSyscallString = 1024

// A Display is the text and pixel service reached through the SYS
// instruction.
type Display interface {
	PrintChar(ch byte)
	PrintString(s string)
	Clear()
	SetCursor(col, row byte)
	SetColor(fg, bg byte)
	GetChar() byte
	SetPixel(x, y, color byte) error
	GetPixel(x, y byte) (byte, error)
}

// AttachDisplay connects the display reached by SYS. With no display
// attached every syscall is a no-op.
func (c *CPU) AttachDisplay(d Display) {
	c.display = d
}

func (c *CPU) syscall() error {
	d := c.display
	if d == nil {
		return nil
	}

	r := &c.Reg
	switch r.A {
	case SysPrintChar:
		d.PrintChar(r.B)
	case SysPrintString:
		s, err := c.loadString(uint16(r.B)<<8 | uint16(r.C))
		if err != nil {
			return err
		}
		d.PrintString(s)
	case SysClearScreen:
		d.Clear()
	case SysSetCursor:
		d.SetCursor(r.B, r.C)
	case SysSetColor:
		d.SetColor(r.B, r.C)
	case SysGetChar:
		r.B = d.GetChar()
	case SysSetPixel:
		return d.SetPixel(r.B, r.C, r.D)
	case SysGetPixel:
		v, err := d.GetPixel(r.B, r.C)
		if err != nil {
			return err
		}
		r.D = v
	}
	return nil
}

func (c *CPU) loadString(addr uint16) (string, error) {
	var b []byte
	for i := 0; i < maxSyscallString; i++ {
		v, err := c.load(addr + uint16(i))
		if err != nil {
			return "", err
		}
		if v == 0 {
			break
		}
		b = append(b, v)
	}
	return string(b), nil
}
