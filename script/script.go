// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package script drives a go8 machine from Lua. Scripts see a global go8
// table:
//
//	go8.reg(name)            register value (8 or 16 bit)
//	go8.setreg(name, v)      set a register
//	go8.flag(name)           N, V, C or Z flag as a boolean
//	go8.peek(addr)           load a byte
//	go8.poke(addr, v)        store a byte
//	go8.peekw(addr)          load a little-endian word
//	go8.pokew(addr, v)       store a little-endian word
//	go8.load(addr, b...)     store consecutive bytes
//	go8.loadstring(addr, s)  store the bytes of a string
//	go8.assemble(src [,org]) assemble source into memory; returns origin, size
//	go8.disasm(addr)         disassemble one instruction; returns line, next
//	go8.step([n])            execute up to n instructions; returns the count
//	go8.run([max])           execute until HLT or max instructions
//	go8.reset()              reset the registers
//	go8.running()            whether the clock is running
//	go8.cycles()             total cycles
//	go8.instructions()       total instructions
//	go8.screen()             text surface contents
//	go8.key(s)               queue keys for the machine
//
// Errors raised by the machine become Lua errors.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/go8/asm"
	"github.com/beevik/go8/cpu"
	"github.com/beevik/go8/disasm"
	"github.com/beevik/go8/video"
	lua "github.com/yuin/gopher-lua"
)

// Errors
var (
	ErrMachineRunning = errors.New("machine is running")
)

// Default instruction limit for go8.run.
const DefaultRunLimit = 1_000_000

// A Machine is the processor and screen a script controls. Screen may be
// nil.
type Machine struct {
	CPU    *cpu.CPU
	Screen *video.Screen
}

// An Engine is a Lua interpreter bound to a machine. It is not safe for
// concurrent use.
type Engine struct {
	L   *lua.LState
	m   Machine
	out io.Writer
}

// New creates an engine. Output from the Lua print function goes to out.
func New(m Machine, out io.Writer) *Engine {
	e := &Engine{
		L:   lua.NewState(),
		m:   m,
		out: out,
	}

	t := e.L.NewTable()
	e.L.SetFuncs(t, map[string]lua.LGFunction{
		"reg":          e.reg,
		"setreg":       e.setreg,
		"flag":         e.flag,
		"peek":         e.peek,
		"poke":         e.poke,
		"peekw":        e.peekw,
		"pokew":        e.pokew,
		"load":         e.load,
		"loadstring":   e.loadString,
		"assemble":     e.assemble,
		"disasm":       e.disasm,
		"step":         e.step,
		"run":          e.run,
		"reset":        e.reset,
		"running":      e.running,
		"cycles":       e.cycles,
		"instructions": e.instructions,
		"screen":       e.screen,
		"key":          e.key,
	})
	e.L.SetGlobal("go8", t)
	e.L.SetGlobal("print", e.L.NewFunction(e.print))
	return e
}

// Close releases the interpreter.
func (e *Engine) Close() {
	e.L.Close()
}

// RunFile executes a Lua file. Cancelling ctx aborts the script.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()
	return e.L.DoFile(path)
}

// RunString executes Lua source. Cancelling ctx aborts the script.
func (e *Engine) RunString(ctx context.Context, src string) error {
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()
	return e.L.DoString(src)
}

func (e *Engine) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(e.out, strings.Join(parts, "\t"))
	return 0
}

func (e *Engine) check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

func checkAddr(L *lua.LState, n int) uint16 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xffff {
		L.ArgError(n, "address out of range")
	}
	return uint16(v)
}

func checkByte(L *lua.LState, n int) byte {
	v := L.CheckInt(n)
	if v < -0x80 || v > 0xff {
		L.ArgError(n, "byte value out of range")
	}
	return byte(v)
}

// The machine may only be touched while its clock is not executing on
// another goroutine.
func (e *Engine) checkIdle(L *lua.LState) {
	k := e.m.CPU.Clock
	if k.Running() && k.Mode() != cpu.ModeStepped {
		L.RaiseError("%v", ErrMachineRunning)
	}
}

func (e *Engine) reg(L *lua.LState) int {
	name := L.CheckString(1)
	c := e.m.CPU
	if v, err := c.GetRegister(name); err == nil {
		L.Push(lua.LNumber(v))
		return 1
	}
	v, err := c.GetRegister16(name)
	e.check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) setreg(L *lua.LState) int {
	name := L.CheckString(1)
	v := L.CheckInt(2)
	e.checkIdle(L)

	c := e.m.CPU
	if _, ok := cpu.LookupReg8(name); ok {
		e.check(L, c.SetRegister(name, byte(v)))
		return 0
	}
	e.check(L, c.SetRegister16(name, uint16(v)))
	return 0
}

func (e *Engine) flag(L *lua.LState) int {
	sr := &e.m.CPU.SR
	var on bool
	switch strings.ToUpper(L.CheckString(1)) {
	case "N":
		on = sr.Negative()
	case "V":
		on = sr.Overflow()
	case "C":
		on = sr.Carry()
	case "Z":
		on = sr.Zero()
	default:
		L.ArgError(1, "unknown flag")
	}
	L.Push(lua.LBool(on))
	return 1
}

func (e *Engine) peek(L *lua.LState) int {
	v, err := e.m.CPU.Mem.LoadByte(checkAddr(L, 1))
	e.check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) poke(L *lua.LState) int {
	e.check(L, e.m.CPU.Mem.StoreByte(checkAddr(L, 1), checkByte(L, 2)))
	return 0
}

func (e *Engine) peekw(L *lua.LState) int {
	v, err := e.m.CPU.Mem.LoadWord(checkAddr(L, 1))
	e.check(L, err)
	L.Push(lua.LNumber(v))
	return 1
}

func (e *Engine) pokew(L *lua.LState) int {
	addr := checkAddr(L, 1)
	e.check(L, e.m.CPU.Mem.StoreWord(addr, uint16(L.CheckInt(2))))
	return 0
}

func (e *Engine) load(L *lua.LState) int {
	addr := checkAddr(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		e.check(L, e.m.CPU.Mem.StoreByte(addr, checkByte(L, i)))
		addr++
	}
	return 0
}

func (e *Engine) loadString(L *lua.LState) int {
	addr := checkAddr(L, 1)
	s := L.CheckString(2)
	for i := 0; i < len(s); i++ {
		e.check(L, e.m.CPU.Mem.StoreByte(addr+uint16(i), s[i]))
	}
	return 0
}

func (e *Engine) assemble(L *lua.LState) int {
	src := L.CheckString(1)
	origin := uint16(L.OptInt(2, asm.DefaultOrigin))

	a, _, err := asm.Assemble(strings.NewReader(src), "script", origin, nil, 0)
	if err != nil {
		msg := err.Error()
		if a != nil && len(a.Errors) > 0 {
			msg = strings.Join(a.Errors, "\n")
		}
		L.RaiseError("%s", msg)
	}
	for i, b := range a.Code {
		e.check(L, e.m.CPU.Mem.StoreByte(a.Origin+uint16(i), b))
	}
	L.Push(lua.LNumber(a.Origin))
	L.Push(lua.LNumber(len(a.Code)))
	return 2
}

func (e *Engine) disasm(L *lua.LState) int {
	line, next := disasm.Disassemble(e.m.CPU.Mem, checkAddr(L, 1))
	L.Push(lua.LString(line))
	L.Push(lua.LNumber(next))
	return 2
}

func (e *Engine) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	e.checkIdle(L)
	L.Push(lua.LNumber(e.execute(L, n, false)))
	return 1
}

func (e *Engine) run(L *lua.LState) int {
	max := L.OptInt(1, DefaultRunLimit)
	e.checkIdle(L)
	L.Push(lua.LNumber(e.execute(L, max, true)))
	return 1
}

// execute steps the processor up to max times and returns the number of
// instructions executed. With untilHalt set it also stops after HLT.
func (e *Engine) execute(L *lua.LState, max int, untilHalt bool) int {
	c := e.m.CPU
	ctx := L.Context()

	n := 0
	for ; n < max; n++ {
		if ctx != nil && n&0x3ff == 0 && ctx.Err() != nil {
			L.RaiseError("%v", ctx.Err())
		}
		inst, err := c.GetInstruction(c.Reg.PC)
		e.check(L, err)
		e.check(L, c.Clock.Step())
		if untilHalt && inst.Name == "HLT" {
			return n + 1
		}
	}
	return n
}

func (e *Engine) reset(L *lua.LState) int {
	e.checkIdle(L)
	e.m.CPU.Reset()
	return 0
}

func (e *Engine) running(L *lua.LState) int {
	L.Push(lua.LBool(e.m.CPU.Clock.Running()))
	return 1
}

func (e *Engine) cycles(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.CPU.Cycles()))
	return 1
}

func (e *Engine) instructions(L *lua.LState) int {
	L.Push(lua.LNumber(e.m.CPU.Instructions()))
	return 1
}

func (e *Engine) screen(L *lua.LState) int {
	if e.m.Screen == nil {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(e.m.Screen.String()))
	return 1
}

func (e *Engine) key(L *lua.LState) int {
	s := L.CheckString(1)
	if e.m.Screen != nil {
		e.m.Screen.PushKeys(s)
	}
	return 0
}
