// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "fmt"

// Address map constants.
const (
	DefaultMemorySize = 0x10000

	ROMStart = 0xf400
	ROMEnd   = 0xf7ff
	ROMSize  = ROMEnd - ROMStart + 1

	BitmapStart = 0x8000
	BitmapEnd   = 0xbfff

	StackTop = 0xffff
)

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) (byte, error)

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint16, v byte) error

	// LoadWord loads a little-endian 16-bit value from addr and addr+1.
	LoadWord(addr uint16) (uint16, error)

	// StoreWord stores a little-endian 16-bit value to addr and addr+1.
	StoreWord(addr uint16, v uint16) error

	// Clear zeroes all RAM and re-seeds the ROM overlay.
	Clear()
}

// SystemMemory is a byte-addressable RAM array with a read-only ROM image
// overlaid at ROMStart..ROMEnd. Reads in the ROM range return the overlay;
// writes there are discarded.
type SystemMemory struct {
	ram     []byte
	rom     *ROM
	overlay [ROMSize]byte
}

// NewMemory creates a memory of the given size in bytes with the ROM image
// mapped over it. A nil rom selects the built-in boot ROM.
func NewMemory(size int, rom *ROM) (*SystemMemory, error) {
	if size <= 0 || size > DefaultMemorySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMemorySize, size)
	}
	if rom == nil {
		rom = DefaultROM()
	}
	m := &SystemMemory{
		ram: make([]byte, size),
		rom: rom,
	}
	m.overlay = rom.image
	return m, nil
}

// Size returns the configured memory size in bytes.
func (m *SystemMemory) Size() int {
	return len(m.ram)
}

// ROM returns the ROM image mapped into this memory.
func (m *SystemMemory) ROM() *ROM {
	return m.rom
}

func isROM(addr int) bool {
	return addr >= ROMStart && addr <= ROMEnd
}

func (m *SystemMemory) check(addr int) error {
	if addr < 0 || addr >= len(m.ram) {
		return fmt.Errorf("%w: $%04X", ErrAddressOutOfRange, addr)
	}
	return nil
}

func (m *SystemMemory) load(addr int) (byte, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	if isROM(addr) {
		return m.overlay[addr-ROMStart], nil
	}
	return m.ram[addr], nil
}

func (m *SystemMemory) store(addr int, v byte) error {
	if err := m.check(addr); err != nil {
		return err
	}
	if !isROM(addr) {
		m.ram[addr] = v
	}
	return nil
}

// LoadByte loads a single byte from the address and returns it.
func (m *SystemMemory) LoadByte(addr uint16) (byte, error) {
	return m.load(int(addr))
}

// StoreByte stores a byte to the requested address. Stores into the ROM
// range are silently discarded.
func (m *SystemMemory) StoreByte(addr uint16, v byte) error {
	return m.store(int(addr), v)
}

// LoadWord loads a little-endian 16-bit value. Addresses do not wrap, so a
// word at $FFFF is out of range.
func (m *SystemMemory) LoadWord(addr uint16) (uint16, error) {
	lo, err := m.load(int(addr))
	if err != nil {
		return 0, err
	}
	hi, err := m.load(int(addr) + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// StoreWord stores a little-endian 16-bit value.
func (m *SystemMemory) StoreWord(addr uint16, v uint16) error {
	if err := m.store(int(addr), byte(v)); err != nil {
		return err
	}
	return m.store(int(addr)+1, byte(v>>8))
}

// LoadBytes fills b with the bytes starting at addr.
func (m *SystemMemory) LoadBytes(addr uint16, b []byte) error {
	for i := range b {
		v, err := m.load(int(addr) + i)
		if err != nil {
			return err
		}
		b[i] = v
	}
	return nil
}

// LoadProgram copies a program image into RAM at start. The program must
// fit inside memory and must not touch the ROM range.
func (m *SystemMemory) LoadProgram(program []byte, start uint16) error {
	if len(program) == 0 {
		return nil
	}
	first, last := int(start), int(start)+len(program)-1
	if last >= len(m.ram) {
		return fmt.Errorf("%w: $%04X..$%04X", ErrProgramTooLarge, first, last)
	}
	if first <= ROMEnd && last >= ROMStart {
		return fmt.Errorf("%w: $%04X..$%04X", ErrProgramOverlapsROM, first, last)
	}
	copy(m.ram[first:], program)
	return nil
}

// Clear zeroes all RAM and re-seeds the ROM overlay from the ROM image.
func (m *SystemMemory) Clear() {
	clear(m.ram)
	m.overlay = m.rom.image
}

// Reboot is an alias for Clear.
func (m *SystemMemory) Reboot() {
	m.Clear()
}
