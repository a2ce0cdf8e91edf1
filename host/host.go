// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host allows you to create a "host" that emulates a go8 computer
// system: a go8 CPU, up to 64K of memory, a boot ROM, a text and bitmap
// screen, a built-in assembler, a built-in debugger, and other useful
// tools.
//
// Within the host it is possible to assemble and load machine code into
// memory, run it under any of the clock modes, debug and step through
// machine code, set address and data breakpoints, dump the contents of
// memory, disassemble the contents of memory, manipulate CPU registers and
// memory, evaluate arbitrary expressions, and drive the machine from Lua.
package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/go8/asm"
	"github.com/beevik/go8/cpu"
	"github.com/beevik/go8/disasm"
	"github.com/beevik/go8/expr"
	"github.com/beevik/go8/monitor"
	"github.com/beevik/go8/script"
	"github.com/beevik/go8/video"
	"github.com/beevik/term"
)

// ErrQuit is returned by RunCommands when the quit command is executed.
var ErrQuit = errors.New("Exiting program")

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displayCycles
	displayAnnotations

	displayAll = displayRegisters | displayCycles | displayAnnotations
)

type state int32

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateStepOverBreakpoint
)

// Config holds the options used to create a host.
type Config struct {
	MemorySize int          // bytes of memory; cpu.DefaultMemorySize if zero
	ROM        *cpu.ROM     // boot ROM; the default ROM if nil
	Output     io.Writer    // command output until RunCommands; stdout if nil
	Logger     *slog.Logger // clock event log; discarded if nil
}

// A Host represents a fully emulated go8 system with a built-in assembler,
// a built-in debugger, and other useful tools.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	rawOutput   io.Writer
	interactive bool
	mem         *cpu.SystemMemory
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	screen      *video.Screen
	lastCmd     *selection
	state       atomic.Int32
	exprParser  expr.Parser
	sourceMap   *asm.SourceMap
	settings    *settings
	annotations map[uint16]string
	log         *slog.Logger

	mu     sync.Mutex
	hit    []string           // breakpoint report for the current run
	cancel context.CancelFunc // aborts the running Lua script
}

// New creates a new go8 host environment.
func New(config Config) (*Host, error) {
	size := config.MemorySize
	if size == 0 {
		size = cpu.DefaultMemorySize
	}
	mem, err := cpu.NewMemory(size, config.ROM)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	h := &Host{
		mem:         mem,
		settings:    newSettings(),
		annotations: make(map[uint16]string),
		log:         logger,
	}

	// Create the emulated CPU and its screen.
	h.cpu = cpu.NewCPU(mem)
	h.screen = video.NewScreen(mem)
	h.setOutput(out)
	h.cpu.AttachDisplay(h.screen)
	h.screen.SetStore(h.cpu.StoreByte)
	h.cpu.Clock.AddObserver(clockLogger{log: logger})

	// Create a CPU debugger and attach it to the CPU.
	h.debugger = cpu.NewDebugger(newDebugHandler(h))
	h.cpu.AttachDebugger(h.debugger)

	h.onSettingsUpdate()
	return h, nil
}

// CPU returns the emulated processor.
func (h *Host) CPU() *cpu.CPU {
	return h.cpu
}

// Screen returns the emulated screen.
func (h *Host) Screen() *video.Screen {
	return h.screen
}

func (h *Host) setOutput(w io.Writer) {
	h.rawOutput = w
	h.output = bufio.NewWriter(w)
	if h.settings.EchoScreen {
		h.screen.SetEcho(w)
	}
}

func (h *Host) getState() state {
	return state(h.state.Load())
}

func (h *Host) setState(s state) {
	h.state.Store(int32(s))
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered, and an empty line
// repeats the previous command. RunCommands returns ErrQuit if the quit
// command was executed.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) error {
	h.input = bufio.NewScanner(r)
	h.setOutput(w)
	h.interactive = interactive

	if interactive {
		h.println()
		h.displayPC()
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}

		var s selection
		if line != "" {
			n, args, err := cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}

			switch n := n.(type) {
			case *cmd.Command:
				s = selection{cmd: n.Data.(*command), args: args}
			case *cmd.Tree:
				h.displayCommands(groups[n])
				continue
			}
		} else if interactive && h.lastCmd != nil {
			s = *h.lastCmd
		}

		if s.cmd == nil || s.cmd.handler == nil {
			continue
		}
		h.lastCmd = &s

		if err := s.cmd.handler(h, s); err != nil {
			return err
		}
	}
}

// Break interrupts a running CPU or Lua script.
func (h *Host) Break() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if h.getState() == stateProcessingCommands {
		h.println()
		h.prompt()
		return
	}
	h.setState(stateProcessingCommands)
	h.cpu.RequestStop()
}

// AssembleFile assembles a source file, writing the binary and source map
// next to it.
func (h *Host) AssembleFile(filename string, verbose bool) error {
	var options asm.Option
	if verbose {
		options |= asm.Verbose
	}
	err := asm.AssembleFile(filename, options, h.output)
	h.flush()
	return err
}

// SetClock selects the clock mode by name and its target frequency. A
// frequency of zero selects the mode's default.
func (h *Host) SetClock(mode string, freq float64) error {
	m, err := cpu.ParseClockMode(mode)
	if err != nil {
		return err
	}
	if err := h.cpu.Clock.SetMode(m, freq); err != nil {
		return err
	}
	h.syncClockSettings()
	return nil
}

// Load loads a program file into memory. Assembly sources are assembled
// first. A raw binary without a source map needs an address; pass -1 to
// use the origin recorded in the source map.
func (h *Host) Load(filename string, addr int) error {
	origin, code, sourceMap, err := h.readProgram(filename, addr)
	if err != nil {
		return err
	}
	if err := h.mem.LoadProgram(code, origin); err != nil {
		return err
	}
	h.sourceMap = sourceMap
	h.cpu.SetPC(origin)
	h.settings.NextDisasmAddr = origin
	h.log.Debug("program loaded", "file", filename, "origin", origin, "size", len(code))
	h.printf("Loaded '%s' to $%04X..$%04X\n", filepath.Base(filename), origin, int(origin)+len(code)-1)
	return nil
}

// RunLua runs a Lua script against the machine. Break aborts the script.
func (h *Host) RunLua(ctx context.Context, filename string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.cancel = nil
		h.mu.Unlock()
	}()

	e := script.New(script.Machine{CPU: h.cpu, Screen: h.screen}, h.output)
	defer e.Close()
	defer h.flush()
	return e.RunFile(ctx, filename)
}

// Monitor runs the full-screen monitor until the user quits it.
func (h *Host) Monitor(ctx context.Context) error {
	h.screen.SetEcho(nil)
	defer h.onSettingsUpdate()
	return monitor.New(h.cpu, h.screen).Run(ctx)
}

// WritePNG saves an image of the screen.
func (h *Host) WritePNG(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := h.screen.WritePNG(f, h.settings.ScreenScale); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
		h.flush()
	}
}

func (h *Host) displayPC() {
	if h.interactive {
		d, _ := h.disassemble(h.cpu.Reg.PC, displayAll)
		h.println(d)
	}
}

// width returns the console width used to wrap help text.
func (h *Host) width() int {
	if f, ok := h.rawOutput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

func (h *Host) cmdAnnotate(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	var annotation string
	if len(c.args) >= 2 {
		annotation = strings.Join(c.args[1:], " ")
	}

	if annotation == "" {
		delete(h.annotations, addr)
		h.printf("Annotation removed at $%04X.\n", addr)
	} else {
		h.annotations[addr] = annotation
		h.printf("Annotation added at $%04X.\n", addr)
	}

	return nil
}

func (h *Host) cmdAssembleFile(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	filename := c.args[0]
	if filepath.Ext(filename) == "" {
		filename += ".asm"
	}

	verbose := false
	if len(c.args) >= 2 {
		v, err := stringToBool(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		verbose = v
	}

	if err := h.AssembleFile(filename, verbose); err != nil {
		h.printf("Failed to assemble '%s': %v\n", filepath.Base(filename), err)
	}
	return nil
}

func (h *Host) cmdBootCold(c selection) error {
	h.execute(h.cpu.ColdBoot)
	return nil
}

func (h *Host) cmdBootWarm(c selection) error {
	h.execute(h.cpu.WarmBoot)
	return nil
}

func (h *Host) cmdBreakpointList(c selection) error {
	h.println("Addr  Enabled")
	h.println("----- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("$%04X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointEnable(c selection) error {
	return h.enableBreakpoint(c, true)
}

func (h *Host) cmdBreakpointDisable(c selection) error {
	return h.enableBreakpoint(c, false)
}

func (h *Host) enableBreakpoint(c selection, enable bool) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = !enable
	h.printf("Breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func enabledString(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}

func (h *Host) cmdClockMode(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	var freq float64
	if len(c.args) >= 2 {
		v, err := h.exprParser.Eval(strings.Join(c.args[1:], " "), h)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		freq = float64(v)
	}

	if err := h.SetClock(c.args[0], freq); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	k := h.cpu.Clock
	if f := k.Frequency(); f > 0 {
		h.printf("Clock mode set to %s at %d Hz.\n", k.Mode(), int64(f))
	} else {
		h.printf("Clock mode set to %s.\n", k.Mode())
	}
	return nil
}

func (h *Host) cmdClockStatus(c selection) error {
	k := h.cpu.Clock
	state := "stopped"
	if k.Running() {
		state = "running"
	}
	h.printf("Mode:         %s (%s)\n", k.Mode(), state)
	if f := k.Frequency(); f > 0 {
		h.printf("Target:       %d Hz\n", int64(f))
	}
	h.printf("Actual:       %d instructions/s, %d cycles/s\n",
		int64(k.ActualFrequency()), int64(k.ActualCycleFrequency()))
	h.printf("Instructions: %d\n", h.cpu.Instructions())
	h.printf("Cycles:       %d\n", h.cpu.Cycles())
	if err := k.Err(); err != nil {
		h.printf("Last error:   %v\n", err)
	}
	return nil
}

func (h *Host) cmdDataBreakpointList(c selection) error {
	h.println("Addr  Enabled  Value")
	h.println("----- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("$%04X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			h.printf("$%04X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if len(c.args) > 1 {
		value, err := h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		h.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, byte(value))
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%04X.\n", addr)
	}

	return nil
}

func (h *Host) cmdDataBreakpointRemove(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c selection) error {
	return h.enableDataBreakpoint(c, true)
}

func (h *Host) cmdDataBreakpointDisable(c selection) error {
	return h.enableDataBreakpoint(c, false)
}

func (h *Host) enableDataBreakpoint(c selection, enable bool) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = !enable
	h.printf("Data breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdDisassemble(c selection) error {
	if len(c.args) == 0 {
		c.args = []string{"$"}
	}

	addr, err := h.parseAddrArg(c.args[0], h.settings.NextDisasmAddr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	lines := h.settings.DisasmLines
	if len(c.args) > 1 {
		l, err := h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr, displayAnnotations)
		h.println(d)
		if next < addr {
			break
		}
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.args = []string{"$", strconv.Itoa(lines)}
	return nil
}

func (h *Host) cmdEvaluate(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	v, err := h.exprParser.Eval(strings.Join(c.args, " "), h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	switch {
	case v >= 0 && v <= 0xff:
		h.printf("$%02X (%d)\n", v, v)
	case v >= -0x8000 && v <= 0xffff:
		h.printf("$%04X (%d)\n", uint16(v), v)
	default:
		h.printf("$%X (%d)\n", v, v)
	}
	return nil
}

func (h *Host) cmdExecute(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	file, err := os.Open(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	defer file.Close()

	input, output, interactive := h.input, h.rawOutput, h.interactive
	lastCmd := h.lastCmd
	err = h.RunCommands(file, output, false)
	h.input, h.interactive, h.lastCmd = input, interactive, lastCmd
	return err
}

func (h *Host) cmdExports(c selection) error {
	if h.sourceMap == nil || len(h.sourceMap.Exports) == 0 {
		h.println("No active exports.")
		return nil
	}
	for _, e := range h.sourceMap.Exports {
		h.printf("%-16s $%04X\n", e.Label, e.Address)
	}
	return nil
}

func (h *Host) cmdHelp(c selection) error {
	if len(c.args) == 0 {
		h.displayCommands(groups[cmds])
		return nil
	}

	n, _, err := cmds.Lookup(strings.Join(c.args, " "))
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	switch n := n.(type) {
	case *cmd.Tree:
		h.displayCommands(groups[n])
	case *cmd.Command:
		cc := n.Data.(*command)
		if cc.usage != "" {
			h.printf("Syntax: %s\n\n", cc.usage)
		}
		switch {
		case cc.description != "":
			h.printf("Description:\n%s\n\n", indentWrap(3, h.width(), cc.description))
		case cc.brief != "":
			h.printf("Description:\n%s.\n\n", indentWrap(3, h.width(), cc.brief))
		}
	}
	return nil
}

func (h *Host) cmdLoad(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	filename := c.args[0]
	if filepath.Ext(filename) == "" {
		filename += ".bin"
	}

	loadAddr := -1
	if len(c.args) >= 2 {
		addr, err := h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		loadAddr = int(addr)
	}

	if err := h.Load(filename, loadAddr); err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
	}
	return nil
}

func (h *Host) cmdLua(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	if err := h.RunLua(context.Background(), c.args[0]); err != nil {
		h.printf("%v\n", err)
	}
	return nil
}

func (h *Host) cmdMemoryDump(c selection) error {
	if len(c.args) == 0 {
		c.args = []string{"$"}
	}

	addr, err := h.parseAddrArg(c.args[0], h.settings.NextMemDumpAddr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.args) >= 2 {
		bytes, err = h.parseAddr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.args = []string{"$", strconv.Itoa(int(bytes))}
	return nil
}

func (h *Host) cmdMemorySet(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseAddr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	values := make([]byte, 0, len(c.args)-1)
	for _, a := range c.args[1:] {
		v, err := h.parseAddr(a)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		values = append(values, byte(v))
	}

	for i, v := range values {
		if err := h.mem.StoreByte(addr+uint16(i), v); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}
	h.printf("Memory set at $%04X..$%04X.\n", addr, int(addr)+len(values)-1)
	return nil
}

func (h *Host) cmdMemoryCopy(c selection) error {
	if len(c.args) < 3 {
		h.displayUsage(c.cmd)
		return nil
	}

	var a [3]uint16
	for i := range a {
		v, err := h.parseAddr(c.args[i])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		a[i] = v
	}
	dst, begin, end := a[0], a[1], a[2]
	if end < begin {
		h.println("Source range is empty.")
		return nil
	}

	buf := make([]byte, int(end)-int(begin)+1)
	if err := h.mem.LoadBytes(begin, buf); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	for i, v := range buf {
		if err := h.mem.StoreByte(dst+uint16(i), v); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}
	h.printf("Copied $%04X..$%04X to $%04X.\n", begin, end, dst)
	return nil
}

func (h *Host) cmdMonitor(c selection) error {
	if err := h.Monitor(context.Background()); err != nil {
		h.printf("%v\n", err)
	}
	return nil
}

func (h *Host) cmdQuit(c selection) error {
	h.cpu.Stop()
	return ErrQuit
}

func (h *Host) cmdRegister(c selection) error {
	if len(c.args) == 0 {
		d, _ := h.disassemble(h.cpu.Reg.PC, displayAll)
		h.println(d)
		return nil
	}
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	key := strings.ToLower(c.args[0])
	v, err := h.exprParser.Eval(strings.Join(c.args[1:], " "), h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if key == "." {
		key = "pc"
	}
	name := strings.ToUpper(key)

	if bit, ok := flagBits[key]; ok {
		sr := &h.cpu.SR
		if v != 0 {
			sr.SetByte(sr.Byte() | bit)
		} else {
			sr.SetByte(sr.Byte() &^ bit)
		}
		h.printf("Flag %s set to %v.\n", name, v != 0)
		return nil
	}

	if _, ok := cpu.LookupReg8(name); ok {
		h.cpu.SetRegister(name, byte(v))
		h.printf("Register %s set to $%02X.\n", name, byte(v))
		return nil
	}
	if err := h.cpu.SetRegister16(name, uint16(v)); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Register %s set to $%04X.\n", name, uint16(v))
	if name == "PC" {
		h.settings.NextDisasmAddr = uint16(v)
	}
	return nil
}

var flagBits = map[string]byte{
	"negative": cpu.NegativeBit,
	"overflow": cpu.OverflowBit,
	"carry":    cpu.CarryBit,
	"zero":     cpu.ZeroBit,
}

func (h *Host) cmdReset(c selection) error {
	if err := h.cpu.Stop(); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.cpu.Reset()
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	h.println("Processor reset.")
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c selection) error {
	if len(c.args) > 0 {
		pc, err := h.parseAddr(c.args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(pc)
	}

	if h.interactive {
		h.printf("Running from $%04X. Press ctrl-C to break.\n", h.cpu.Reg.PC)
	}
	h.execute(h.cpu.Start)
	return nil
}

func (h *Host) cmdScreenText(c selection) error {
	if s := h.screen.String(); s != "" {
		h.println(s)
	}
	return nil
}

func (h *Host) cmdScreenPNG(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}
	if err := h.WritePNG(c.args[0]); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Saved screen to '%s'.\n", filepath.Base(c.args[0]))
	return nil
}

func (h *Host) cmdScreenKey(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}
	text := strings.Join(c.args, " ")
	if s, err := strconv.Unquote(text); err == nil {
		text = s
	}
	h.screen.PushKeys(text)
	return nil
}

func (h *Host) cmdSet(c selection) error {
	switch len(c.args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage(c.cmd)

	default:
		key, value := c.args[0], strings.Join(c.args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("Setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			v, err = h.exprParser.Eval(value, h)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			err = h.onSettingsUpdate()
		}
		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}
	}

	return nil
}

func (h *Host) cmdStepIn(c selection) error {
	return h.stepCommand(c, h.step)
}

func (h *Host) cmdStepOver(c selection) error {
	return h.stepCommand(c, h.stepOver)
}

func (h *Host) stepCommand(c selection, step func() (bool, error)) error {
	// Parse the number of steps.
	count := 1
	if len(c.args) > 0 {
		n, err := h.parseAddr(c.args[0])
		if err == nil {
			count = int(n)
		}
	}

	if h.cpu.Clock.Running() && h.cpu.Clock.Mode() != cpu.ModeStepped {
		h.println("The CPU is running.")
		return nil
	}

	// Step the CPU count times.
	h.clearHit()
	h.setState(stateRunning)
	for i := count - 1; i >= 0 && h.getState() == stateRunning; i-- {
		ok, err := step()
		switch {
		case err != nil:
			h.printf("%v\n", err)
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines:
			h.displayPC()
		}
		if !ok {
			break
		}
	}
	h.setState(stateProcessingCommands)
	h.reportHit()

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

func (h *Host) cmdStepOut(c selection) error {
	if h.cpu.Clock.Running() && h.cpu.Clock.Mode() != cpu.ModeStepped {
		h.println("The CPU is running.")
		return nil
	}

	// Step until a RET unwinds the stack past its current depth.
	sp := h.cpu.Reg.SP
	h.clearHit()
	h.setState(stateRunning)
	for h.getState() == stateRunning {
		inst, _ := h.cpu.GetInstruction(h.cpu.Reg.PC)
		ok, err := h.step()
		if err != nil {
			h.printf("%v\n", err)
		}
		if !ok || (inst != nil && inst.Name == "RET" && h.cpu.Reg.SP > sp) {
			break
		}
	}
	h.setState(stateProcessingCommands)
	h.reportHit()

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	h.displayPC()
	return nil
}

// execute starts the processor with start and waits until it stops. In
// Stepped mode the instructions are executed on this goroutine.
func (h *Host) execute(start func() error) {
	k := h.cpu.Clock

	h.clearHit()
	h.setState(stateRunning)
	if err := start(); err != nil {
		h.setState(stateProcessingCommands)
		h.printf("%v\n", err)
		return
	}

	if k.Mode() == cpu.ModeStepped {
		for h.getState() == stateRunning && k.Running() {
			if ok, _ := h.step(); !ok {
				break
			}
		}
		k.Stop()
	} else {
		k.Wait(context.Background())
	}
	h.setState(stateProcessingCommands)

	h.reportHit()
	switch h.cpu.LastStop() {
	case cpu.StopHalted:
		h.printf("Halted at $%04X.\n", h.cpu.LastPC)
	case cpu.StopFault:
		if err := k.Err(); err != nil {
			h.printf("Fault: %v.\n", err)
		}
	}

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	h.displayPC()
}

// step executes one instruction on this goroutine. It reports false once
// stepping should end, after a HLT or an error.
func (h *Host) step() (bool, error) {
	c := h.cpu
	inst, err := c.GetInstruction(c.Reg.PC)
	if err != nil {
		return false, err
	}
	if err := c.Clock.Step(); err != nil {
		return false, err
	}
	return inst.Name != "HLT", nil
}

func (h *Host) stepOver() (bool, error) {
	c := h.cpu

	// CALL instructions need to be handled specially.
	inst, err := c.GetInstruction(c.Reg.PC)
	if err != nil {
		return false, err
	}
	if inst.Name != "CALL" {
		return h.step()
	}

	// Place a step-over breakpoint on the instruction following the CALL.
	// Either modify an already existing breakpoint on that instruction, or
	// create a temporary one.
	next := c.Reg.PC + uint16(inst.Length)
	tmpBreakpointCreated := false
	b := h.debugger.GetBreakpoint(next)
	if b == nil {
		b = h.debugger.AddBreakpoint(next)
		tmpBreakpointCreated = true
	}
	b.StepOver = true

	// Run until interrupted.
	ok := true
	for ok && h.getState() == stateRunning {
		ok, err = h.step()
	}
	b.StepOver = false

	// If we were interrupted by the temporary step-over breakpoint,
	// then continue as normal.
	if h.getState() == stateStepOverBreakpoint {
		h.setState(stateRunning)
	}

	// Remove the temporarily created breakpoint.
	if tmpBreakpointCreated {
		h.debugger.RemoveBreakpoint(next)
	}
	return ok, err
}

func (h *Host) readProgram(filename string, addr int) (origin uint16, code []byte, sourceMap *asm.SourceMap, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, nil, nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".asm") {
		a, sm, err := asm.Assemble(file, filename, asm.DefaultOrigin, nil, 0)
		if err != nil {
			for _, e := range a.Errors {
				h.println(e)
			}
			return 0, nil, nil, err
		}
		return a.Origin, a.Code, sm, nil
	}

	a := &asm.Assembly{}
	if _, err := a.ReadFrom(file); err != nil {
		return 0, nil, nil, err
	}

	sourceMap = h.readSourceMap(filename, a.Code)
	switch {
	case addr >= 0:
		origin = uint16(addr)
	case sourceMap != nil:
		origin = sourceMap.Origin
	default:
		return 0, nil, nil, errors.New("no source map found, so a load address is required")
	}
	return origin, a.Code, sourceMap, nil
}

// readSourceMap loads the source map stored next to a binary file. A map
// that does not describe the code is ignored.
func (h *Host) readSourceMap(filename string, code []byte) *asm.SourceMap {
	ext := filepath.Ext(filename)
	mapFilename := filename[:len(filename)-len(ext)] + ".map"

	file, err := os.Open(mapFilename)
	if err != nil {
		return nil
	}
	defer file.Close()

	sm := &asm.SourceMap{}
	if _, err := sm.ReadFrom(file); err != nil {
		h.printf("Failed to read '%s': %v\n", filepath.Base(mapFilename), err)
		return nil
	}
	if sm.Size != uint32(len(code)) || sm.CRC != crc32.ChecksumIEEE(code) {
		h.printf("Ignoring '%s': it does not match the binary.\n", filepath.Base(mapFilename))
		return nil
	}
	h.printf("Loaded '%s' source map\n", filepath.Base(mapFilename))
	return sm
}

func (h *Host) onSettingsUpdate() error {
	h.exprParser.HexMode = h.settings.HexMode
	if h.settings.EchoScreen {
		h.screen.SetEcho(h.rawOutput)
	} else {
		h.screen.SetEcho(nil)
	}
	if h.settings.ScreenScale < 1 {
		h.settings.ScreenScale = 1
	}
	return h.applyClockSettings()
}

// applyClockSettings reconfigures the clock when the ClockMode or
// ClockFrequency setting differs from the clock's state. A new mode starts
// at its default frequency.
func (h *Host) applyClockSettings() error {
	k := h.cpu.Clock
	mode, err := cpu.ParseClockMode(h.settings.ClockMode)
	if err != nil {
		h.syncClockSettings()
		return err
	}

	switch {
	case mode != k.Mode():
		err = k.SetMode(mode, 0)
	case float64(h.settings.ClockFrequency) != k.Frequency():
		err = k.SetMode(mode, float64(h.settings.ClockFrequency))
	}
	h.syncClockSettings()
	return err
}

func (h *Host) syncClockSettings() {
	k := h.cpu.Clock
	h.settings.ClockMode = k.Mode().String()
	h.settings.ClockFrequency = int(k.Frequency())
}

// ResolveIdentifier returns the value of a register or of a label exported
// by the loaded program.
func (h *Host) ResolveIdentifier(name string) (int64, error) {
	upper := strings.ToUpper(name)
	if _, ok := cpu.LookupReg8(upper); ok {
		v, err := h.cpu.GetRegister(upper)
		return int64(v), err
	}
	if _, ok := cpu.LookupReg16(upper); ok {
		v, err := h.cpu.GetRegister16(upper)
		return int64(v), err
	}

	if h.sourceMap != nil {
		if addr, ok := h.sourceMap.Label(name); ok {
			return int64(addr), nil
		}
		for _, e := range h.sourceMap.Exports {
			if strings.EqualFold(e.Label, name) {
				return int64(e.Address), nil
			}
		}
	}

	return 0, fmt.Errorf("identifier '%s' not found", name)
}

func (h *Host) parseAddr(s string) (uint16, error) {
	v, err := h.exprParser.Eval(s, h)
	if err != nil {
		return 0, err
	}
	if v < -0x8000 || v > 0xffff {
		return 0, fmt.Errorf("value $%X out of range", v)
	}
	return uint16(v), nil
}

// parseAddrArg handles the "$" (continue from next) and "." (PC) address
// shorthands before falling back to expression evaluation.
func (h *Host) parseAddrArg(s string, next uint16) (uint16, error) {
	switch s {
	case "$":
		if next == 0 {
			return h.cpu.Reg.PC, nil
		}
		return next, nil
	case ".":
		return h.cpu.Reg.PC, nil
	default:
		return h.parseAddr(s)
	}
}

func (h *Host) disassemble(addr uint16, flags displayFlags) (str string, next uint16) {
	var line string
	line, next = disasm.Disassemble(h.mem, addr)

	if h.settings.CompactMode {
		str = fmt.Sprintf("%04X-  %-15s", addr, line)
	} else {
		n := int(next - addr)
		b := make([]byte, n)
		if n > 3 || h.mem.LoadBytes(addr, b) != nil {
			b = nil
		}
		str = fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(b), line)
	}

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.RegisterString(h.cpu)
	}

	if (flags&displayCycles) != 0 && !h.settings.CompactMode {
		str += fmt.Sprintf(" C=%-12d", h.cpu.Cycles())
	}

	if (flags & displayAnnotations) != 0 {
		if anno, ok := h.annotations[addr]; ok {
			str += " ; " + anno
		}
	}

	return str, next
}

func (h *Host) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	load := func(a uint16) byte {
		v, _ := h.mem.LoadByte(a)
		return v
	}

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := int(addr0), 6, 32; a <= int(addr1); a, c1, c2 = a+1, c1+3, c2+1 {
			m := load(uint16(a))
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(string(buf))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := (uint32(addr1) + 8) & 0xffff8
	if stop > 0x10000 {
		stop = 0x10000
	}

	a := uint32(start)
	for r := start; r < stop; r += 8 {
		addrToBuf(uint16(a), buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= uint32(addr0) && a <= uint32(addr1) {
				m := load(uint16(a))
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(string(buf))
	}
}

func (h *Host) displayUsage(c *command) {
	if c.usage != "" {
		h.printf("Syntax: %s\n", c.usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) displayCommands(g *group) {
	if g == nil {
		return
	}
	h.printf("%s:\n", g.title)
	for _, c := range g.commands {
		if c.brief != "" {
			h.printf("    %-15s  %s\n", c.name, c.brief)
		}
	}
}

func (h *Host) clearHit() {
	h.mu.Lock()
	h.hit = nil
	h.mu.Unlock()
}

func (h *Host) addHit(lines ...string) {
	h.mu.Lock()
	h.hit = append(h.hit, lines...)
	h.mu.Unlock()
}

// reportHit prints the messages recorded by breakpoints since the last
// clearHit.
func (h *Host) reportHit() {
	h.mu.Lock()
	lines := h.hit
	h.hit = nil
	h.mu.Unlock()
	for _, l := range lines {
		h.println(l)
	}
}

// Breakpoint notifications may arrive on the clock's goroutine, so they
// only record what happened and stop the processor.

func (h *Host) onBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	if b.StepOver {
		h.setState(stateStepOverBreakpoint)
		return
	}
	h.setState(stateBreakpoint)
	h.addHit(fmt.Sprintf("Breakpoint hit at $%04X.", b.Address))
	c.RequestStop()
}

func (h *Host) onDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.setState(stateBreakpoint)
	h.addHit(fmt.Sprintf("Data breakpoint hit on address $%04X.", b.Address))
	if c.LastPC != c.Reg.PC {
		line, _ := disasm.Disassemble(h.mem, c.LastPC)
		h.addHit(fmt.Sprintf("%04X-   %s", c.LastPC, line))
	}
	c.RequestStop()
}
