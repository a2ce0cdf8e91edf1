// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the go8 processor: an 8-bit CPU with six 8-bit
// registers, four 16-bit registers, a 64K address space with a boot ROM
// overlay, and a clock that runs the processor in real time, flat out,
// throttled or one step at a time.
package cpu

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// StopReason records why the processor last left the running state.
type StopReason int32

// Stop reasons
const (
	StopNone      StopReason = iota
	StopHalted               // executed HLT
	StopRequested            // Stop or RequestStop was called
	StopFault                // an instruction failed
)

var stopReasonNames = []string{"none", "halted", "stopped", "fault"}

func (r StopReason) String() string {
	return stopReasonNames[r]
}

// CPU represents a single processor. It contains a reference to the memory
// associated with the CPU and owns its registers, flags, ALU and clock.
type CPU struct {
	Reg     Registers       // CPU registers
	SR      Status          // status flags
	Mem     Memory          // assigned memory
	Clock   *Clock          // clock driving the processor
	InstSet *InstructionSet // instruction set used by the CPU
	LastPC  uint16          // address of the last executed instruction

	alu          *ALU
	display      Display
	debugger     *Debugger
	storeByte    func(c *CPU, addr uint16, v byte) error
	running      atomic.Bool
	stopReason   atomic.Int32
	instructions atomic.Uint64
	cycles       atomic.Uint64
}

// NewCPU creates a processor bound to the specified memory. Registers start
// in their reset state and the clock starts in Fast mode.
func NewCPU(m Memory) *CPU {
	c := &CPU{
		Mem:       m,
		InstSet:   GetInstructionSet(),
		storeByte: (*CPU).storeByteNormal,
	}
	c.alu = NewALU(&c.SR)
	c.Clock = newClock(c)
	c.Reset()
	return c
}

// Reset zeroes all registers, points PC at the boot ROM, places SP at the
// top of memory and clears the flags. Memory is left untouched.
func (c *CPU) Reset() {
	c.Reg.Init()
	c.SR.Reset()
	c.LastPC = 0
}

// ColdBoot stops the processor, erases memory, resets and starts again.
func (c *CPU) ColdBoot() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.Mem.Clear()
	c.Reset()
	return c.Start()
}

// WarmBoot stops the processor, resets it and starts again, keeping
// memory.
func (c *CPU) WarmBoot() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.Reset()
	return c.Start()
}

// Start places the processor in the running state and starts its clock.
func (c *CPU) Start() error {
	return c.Clock.Start()
}

// Stop stops the clock and leaves the processor stopped.
func (c *CPU) Stop() error {
	return c.Clock.Stop()
}

// Running reports whether the processor is in the running state.
func (c *CPU) Running() bool {
	return c.running.Load()
}

// RequestStop asks a running processor to stop once the current
// instruction completes. It is safe to call from breakpoint handlers.
func (c *CPU) RequestStop() {
	c.halt(StopRequested)
}

// LastStop returns the reason the processor last stopped.
func (c *CPU) LastStop() StopReason {
	return StopReason(c.stopReason.Load())
}

func (c *CPU) halt(reason StopReason) {
	c.stopReason.Store(int32(reason))
	c.running.Store(false)
}

func (c *CPU) resume() {
	c.stopReason.Store(int32(StopNone))
	c.running.Store(true)
}

// Instructions returns the total number of executed instructions.
func (c *CPU) Instructions() uint64 {
	return c.instructions.Load()
}

// Cycles returns the total number of CPU cycles consumed.
func (c *CPU) Cycles() uint64 {
	return c.cycles.Load()
}

// SetPC updates the CPU program counter to 'addr'.
func (c *CPU) SetPC(addr uint16) {
	c.Reg.PC = addr
}

// GetInstruction returns the instruction at the requested address.
func (c *CPU) GetInstruction(addr uint16) (*Instruction, error) {
	opcode, err := c.Mem.LoadByte(addr)
	if err != nil {
		return nil, err
	}
	return c.InstSet.Lookup(opcode), nil
}

// Step executes a single instruction on the caller's goroutine. Any error
// leaves the processor stopped.
func (c *CPU) Step() error {
	pc := c.Reg.PC

	opcode, err := c.Mem.LoadByte(pc)
	if err != nil {
		return c.fault(err)
	}
	c.Reg.PC++

	inst := c.InstSet.Lookup(opcode)
	if inst.fn == nil {
		return c.fault(fmt.Errorf("%w $%02X at $%04X", ErrUnknownInstruction, opcode, pc))
	}

	// Fetch the operand (if any), advancing the PC past it.
	var buf [2]byte
	operand := buf[:inst.Length-1]
	for i := range operand {
		operand[i], err = c.Mem.LoadByte(c.Reg.PC)
		if err != nil {
			return c.fault(err)
		}
		c.Reg.PC++
	}

	c.LastPC = pc
	if err := inst.fn(c, operand); err != nil {
		return c.fault(err)
	}

	c.instructions.Add(1)
	c.cycles.Add(uint64(inst.Cycles))

	if c.debugger != nil {
		c.debugger.onUpdatePC(c, c.Reg.PC)
	}
	return nil
}

// ExecuteCycle is an alias for Step.
func (c *CPU) ExecuteCycle() error {
	return c.Step()
}

func (c *CPU) fault(err error) error {
	c.halt(StopFault)
	return err
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a byte
// to memory.
func (c *CPU) AttachDebugger(debugger *Debugger) {
	c.debugger = debugger
	c.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently attached debugger from the CPU.
func (c *CPU) DetachDebugger() {
	c.debugger = nil
	c.storeByte = (*CPU).storeByteNormal
}

func (c *CPU) load(addr uint16) (byte, error) {
	return c.Mem.LoadByte(addr)
}

func (c *CPU) store(addr uint16, v byte) error {
	return c.storeByte(c, addr, v)
}

func (c *CPU) loadWord(addr uint16) (uint16, error) {
	return c.Mem.LoadWord(addr)
}

// storeWord fails without storing either byte when the word would extend
// past $FFFF.
func (c *CPU) storeWord(addr uint16, v uint16) error {
	if addr == 0xffff {
		return fmt.Errorf("%w: $%X", ErrAddressOutOfRange, int(addr)+1)
	}
	if err := c.store(addr, byte(v)); err != nil {
		return err
	}
	return c.store(addr+1, byte(v>>8))
}

// StoreByte stores a byte to memory the way an instruction does, so an
// attached debugger sees the store.
func (c *CPU) StoreByte(addr uint16, v byte) error {
	return c.store(addr, v)
}

func (c *CPU) storeByteNormal(addr uint16, v byte) error {
	return c.Mem.StoreByte(addr, v)
}

func (c *CPU) storeByteDebugger(addr uint16, v byte) error {
	c.debugger.onDataStore(c, addr, v)
	return c.Mem.StoreByte(addr, v)
}

// GetRegister returns the value of the named 8-bit register.
func (c *CPU) GetRegister(name string) (byte, error) {
	r, ok := LookupReg8(name)
	if !ok {
		return 0, fmt.Errorf("%w '%s'", ErrInvalidRegisterName, name)
	}
	return *c.Reg.ptr8(r), nil
}

// SetRegister assigns the named 8-bit register and updates the Zero flag.
func (c *CPU) SetRegister(name string, v byte) error {
	r, ok := LookupReg8(name)
	if !ok {
		return fmt.Errorf("%w '%s'", ErrInvalidRegisterName, name)
	}
	*c.Reg.ptr8(r) = v
	c.SR.UpdateZero(uint16(v))
	return nil
}

// GetRegister16 returns the value of the named 16-bit register.
func (c *CPU) GetRegister16(name string) (uint16, error) {
	r, ok := LookupReg16(name)
	if !ok {
		return 0, fmt.Errorf("%w '%s'", ErrInvalidRegisterName, name)
	}
	return *c.Reg.ptr16(r), nil
}

// SetRegister16 assigns the named 16-bit register and updates the Zero
// flag.
func (c *CPU) SetRegister16(name string, v uint16) error {
	r, ok := LookupReg16(name)
	if !ok {
		return fmt.Errorf("%w '%s'", ErrInvalidRegisterName, name)
	}
	*c.Reg.ptr16(r) = v
	c.SR.UpdateZero(v)
	return nil
}

// String returns a two-line dump of the processor state.
func (c *CPU) String() string {
	var b strings.Builder
	r := &c.Reg
	fmt.Fprintf(&b, "A=%02X B=%02X C=%02X D=%02X E=%02X F=%02X SR=[%s]\n",
		r.A, r.B, r.C, r.D, r.E, r.F, c.SR.String())
	fmt.Fprintf(&b, "DA=%04X DB=%04X IDX=%04X IDY=%04X PC=%04X SP=%04X",
		r.DA, r.DB, r.IDX, r.IDY, r.PC, r.SP)
	return b.String()
}
