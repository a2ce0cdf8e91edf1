// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

// A command is the host-side record attached to every command in the tree.
// It keeps the help text alongside the handler.
type command struct {
	name        string
	brief       string
	description string
	usage       string
	handler     func(h *Host, c selection) error
}

// A group lists the commands of one tree for help display.
type group struct {
	title    string
	commands []*command
}

// A selection is a command together with the arguments typed after it.
type selection struct {
	cmd  *command
	args []string
}

var (
	cmds   *cmd.Tree
	groups = make(map[*cmd.Tree]*group)
)

func newGroup(t *cmd.Tree, title string) *group {
	g := &group{title: title}
	groups[t] = g
	return g
}

func (g *group) add(t *cmd.Tree, c *command) {
	g.commands = append(g.commands, c)
	t.AddCommand(cmd.CommandDescriptor{
		Name:        c.name,
		Brief:       c.brief,
		Description: c.description,
		Usage:       c.usage,
		Data:        c,
	})
}

func (g *group) subtree(t *cmd.Tree, name, brief string) (*cmd.Tree, *group) {
	sub := t.AddSubtree(cmd.TreeDescriptor{Name: name, Brief: brief})
	g.commands = append(g.commands, &command{name: name, brief: brief})
	return sub, newGroup(sub, brief)
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "go8"})
	rg := newGroup(root, "go8 commands")

	rg.add(root, &command{
		name:        "help",
		description: "Display help for a command.",
		usage:       "help [<command>]",
		handler:     (*Host).cmdHelp,
	})
	rg.add(root, &command{
		name:  "annotate",
		brief: "Annotate an address",
		description: "Provide a code annotation at a memory address." +
			" When disassembling code at this address, the annotation will" +
			" be displayed.",
		usage:   "annotate <address> <string>",
		handler: (*Host).cmdAnnotate,
	})

	// Assemble commands
	as, ag := rg.subtree(root, "assemble", "Assemble commands")
	ag.add(as, &command{
		name:  "file",
		brief: "Assemble a file from disk and save the binary to disk",
		description: "Run the assembler on the specified file," +
			" producing a binary file and source map file if successful." +
			" If you want verbose output, specify true as a second parameter.",
		usage:   "assemble file <filename> [<verbose>]",
		handler: (*Host).cmdAssembleFile,
	})

	// Boot commands
	bo, bg := rg.subtree(root, "boot", "Boot commands")
	bg.add(bo, &command{
		name:        "cold",
		brief:       "Cold boot the machine",
		description: "Erase memory, reset the processor and run the boot ROM.",
		usage:       "boot cold",
		handler:     (*Host).cmdBootCold,
	})
	bg.add(bo, &command{
		name:  "warm",
		brief: "Warm boot the machine",
		description: "Reset the processor and run the boot ROM, keeping the" +
			" contents of memory. The ROM jumps to a program loaded at $0000.",
		usage:   "boot warm",
		handler: (*Host).cmdBootWarm,
	})

	// Breakpoint commands
	bp, bpg := rg.subtree(root, "breakpoint", "Breakpoint commands")
	bpg.add(bp, &command{
		name:        "list",
		brief:       "List breakpoints",
		description: "List all current breakpoints.",
		usage:       "breakpoint list",
		handler:     (*Host).cmdBreakpointList,
	})
	bpg.add(bp, &command{
		name:  "add",
		brief: "Add a breakpoint",
		description: "Add a breakpoint at the specified address." +
			" The breakpoints starts enabled.",
		usage:   "breakpoint add <address>",
		handler: (*Host).cmdBreakpointAdd,
	})
	bpg.add(bp, &command{
		name:        "remove",
		brief:       "Remove a breakpoint",
		description: "Remove a breakpoint at the specified address.",
		usage:       "breakpoint remove <address>",
		handler:     (*Host).cmdBreakpointRemove,
	})
	bpg.add(bp, &command{
		name:        "enable",
		brief:       "Enable a breakpoint",
		description: "Enable a previously added breakpoint.",
		usage:       "breakpoint enable <address>",
		handler:     (*Host).cmdBreakpointEnable,
	})
	bpg.add(bp, &command{
		name:  "disable",
		brief: "Disable a breakpoint",
		description: "Disable a previously added breakpoint. This" +
			" prevents the breakpoint from being hit when running the" +
			" CPU",
		usage:   "breakpoint disable <address>",
		handler: (*Host).cmdBreakpointDisable,
	})

	// Clock commands
	ck, ckg := rg.subtree(root, "clock", "Clock commands")
	ckg.add(ck, &command{
		name:  "mode",
		brief: "Select the clock mode",
		description: "Select how the clock paces instructions: fast," +
			" realtime, limited or stepped. An optional frequency in cycles" +
			" per second sets the target for the realtime and limited modes.",
		usage:   "clock mode <mode> [<frequency>]",
		handler: (*Host).cmdClockMode,
	})
	ckg.add(ck, &command{
		name:  "status",
		brief: "Display clock status",
		description: "Display the clock mode, the target frequency and the" +
			" measured execution rate.",
		usage:   "clock status",
		handler: (*Host).cmdClockStatus,
	})

	// Data breakpoint commands
	db, dbg := rg.subtree(root, "databreakpoint", "Data breakpoint commands")
	dbg.add(db, &command{
		name:        "list",
		brief:       "List data breakpoints",
		description: "List all current data breakpoints.",
		usage:       "databreakpoint list",
		handler:     (*Host).cmdDataBreakpointList,
	})
	dbg.add(db, &command{
		name:  "add",
		brief: "Add a data breakpoint",
		description: "Add a new data breakpoint at the specified" +
			" memory address. When the CPU stores data at this address, the" +
			" breakpoint will stop the CPU. Optionally, a byte" +
			" value may be specified, and the CPU will stop only" +
			" when this value is stored. The data breakpoint starts" +
			" enabled.",
		usage:   "databreakpoint add <address> [<value>]",
		handler: (*Host).cmdDataBreakpointAdd,
	})
	dbg.add(db, &command{
		name:  "remove",
		brief: "Remove a data breakpoint",
		description: "Remove a previously added data breakpoint at" +
			" the specified memory address.",
		usage:   "databreakpoint remove <address>",
		handler: (*Host).cmdDataBreakpointRemove,
	})
	dbg.add(db, &command{
		name:        "enable",
		brief:       "Enable a data breakpoint",
		description: "Enable a previously added breakpoint.",
		usage:       "databreakpoint enable <address>",
		handler:     (*Host).cmdDataBreakpointEnable,
	})
	dbg.add(db, &command{
		name:        "disable",
		brief:       "Disable a data breakpoint",
		description: "Disable a previously added breakpoint.",
		usage:       "databreakpoint disable <address>",
		handler:     (*Host).cmdDataBreakpointDisable,
	})

	rg.add(root, &command{
		name:  "disassemble",
		brief: "Disassemble code",
		description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		usage:   "disassemble [<address>] [<lines>]",
		handler: (*Host).cmdDisassemble,
	})
	rg.add(root, &command{
		name:        "evaluate",
		brief:       "Evaluate an expression",
		description: "Evaluate a mathematical expression.",
		usage:       "evaluate <expression>",
		handler:     (*Host).cmdEvaluate,
	})
	rg.add(root, &command{
		name:  "execute",
		brief: "Execute a go8 command file",
		description: "Load a go8 command file from disk and execute the" +
			" commands it contains.",
		usage:   "execute <filename>",
		handler: (*Host).cmdExecute,
	})
	rg.add(root, &command{
		name:  "exports",
		brief: "List exported addresses",
		description: "Display a list of all labels exported by the most" +
			" recently loaded program. Exported labels are stored in a" +
			" binary file's associated source map file.",
		usage:   "exports",
		handler: (*Host).cmdExports,
	})
	rg.add(root, &command{
		name:  "load",
		brief: "Load a program",
		description: "Load the contents of a binary file into the emulated" +
			" system's memory. If the file has an associated source map, it" +
			" will be loaded too. If the file contains raw binary data, you must" +
			" specify the address where the data will be loaded. Assembly" +
			" source files (.asm) are assembled before loading.",
		usage:   "load <filename> [<address>]",
		handler: (*Host).cmdLoad,
	})
	rg.add(root, &command{
		name:  "lua",
		brief: "Run a Lua script",
		description: "Run a Lua script against the machine. The script" +
			" controls the machine through the go8 table. Press Ctrl-C to" +
			" abort a long running script.",
		usage:   "lua <filename>",
		handler: (*Host).cmdLua,
	})

	// Memory commands
	me, meg := rg.subtree(root, "memory", "Memory commands")
	meg.add(me, &command{
		name:  "dump",
		brief: "Dump memory at address",
		description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		usage:   "memory dump [<address>] [<bytes>]",
		handler: (*Host).cmdMemoryDump,
	})
	meg.add(me, &command{
		name:  "set",
		brief: "Set memory at address",
		description: "Set the contents of memory starting from the specified" +
			" address. The values to assign should be a series of" +
			" space-separated byte values. You may use an expression for each" +
			" byte value.",
		usage:   "memory set <address> <byte> [<byte> ...]",
		handler: (*Host).cmdMemorySet,
	})
	meg.add(me, &command{
		name:  "copy",
		brief: "Copy memory",
		description: "Copy memory from one range of addresses to another. You" +
			" must specify the destination address, the first byte of the source" +
			" address, and the last byte of the source address.",
		usage:   "memory copy <dst addr> <src addr begin> <src addr end>",
		handler: (*Host).cmdMemoryCopy,
	})

	rg.add(root, &command{
		name:  "monitor",
		brief: "Open the full-screen monitor",
		description: "Take over the terminal with a view of the machine's" +
			" screen, registers and clock. Press Ctrl-C to return.",
		usage:   "monitor",
		handler: (*Host).cmdMonitor,
	})
	rg.add(root, &command{
		name:        "quit",
		brief:       "Quit the program",
		description: "Quit the program.",
		usage:       "quit",
		handler:     (*Host).cmdQuit,
	})
	rg.add(root, &command{
		name:  "register",
		brief: "View or change register values",
		description: "When used without arguments, this command displays the current" +
			" contents of the CPU registers. When used with arguments, this" +
			" command changes the value of a register or one of the CPU's status" +
			" flags. Allowed register names include A through F, DA, DB, IDX," +
			" IDY, PC and SP. Status flags are named Negative, Overflow, Carry" +
			" and Zero.",
		usage:   "register [<name> <value>]",
		handler: (*Host).cmdRegister,
	})
	rg.add(root, &command{
		name:  "reset",
		brief: "Reset the processor",
		description: "Stop the processor and reset its registers and flags." +
			" Memory is left untouched.",
		usage:   "reset",
		handler: (*Host).cmdReset,
	})
	rg.add(root, &command{
		name:  "run",
		brief: "Run the CPU",
		description: "Run the CPU until it halts, a breakpoint is hit or" +
			" the user types Ctrl-C. The clock mode decides how fast" +
			" instructions execute.",
		usage:   "run [<address>]",
		handler: (*Host).cmdRun,
	})

	// Screen commands
	sc, scg := rg.subtree(root, "screen", "Screen commands")
	scg.add(sc, &command{
		name:        "text",
		brief:       "Display the screen text",
		description: "Display the characters on the machine's text screen.",
		usage:       "screen text",
		handler:     (*Host).cmdScreenText,
	})
	scg.add(sc, &command{
		name:  "png",
		brief: "Save a screen image",
		description: "Render the text screen and bitmap to a PNG file. The" +
			" ScreenScale setting enlarges the image.",
		usage:   "screen png <filename>",
		handler: (*Host).cmdScreenPNG,
	})
	scg.add(sc, &command{
		name:  "key",
		brief: "Type keys",
		description: "Queue the remaining text as key presses for the" +
			" machine. A trailing newline is not added.",
		usage:   "screen key <text>",
		handler: (*Host).cmdScreenKey,
	})

	rg.add(root, &command{
		name:  "set",
		brief: "Set a configuration variable",
		description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		usage:   "set [<var> <value>]",
		handler: (*Host).cmdSet,
	})

	// Step commands
	st, stg := rg.subtree(root, "step", "Step the debugger")
	stg.add(st, &command{
		name:  "in",
		brief: "Step into next instruction",
		description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step into the subroutine." +
			" The number of steps may be specified as an option.",
		usage:   "step in [<count>]",
		handler: (*Host).cmdStepIn,
	})
	stg.add(st, &command{
		name:  "over",
		brief: "Step over next instruction",
		description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step over the subroutine." +
			" The number of steps may be specified as an option.",
		usage:   "step over [<count>]",
		handler: (*Host).cmdStepOver,
	})
	stg.add(st, &command{
		name:  "out",
		brief: "Step out of the current subroutine",
		description: "Step the CPU until it executes a RET instruction" +
			" that returns from the currently running subroutine.",
		usage:   "step out",
		handler: (*Host).cmdStepOut,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble file")
	root.AddShortcut("b", "breakpoint")
	root.AddShortcut("bp", "breakpoint")
	root.AddShortcut("ba", "breakpoint add")
	root.AddShortcut("br", "breakpoint remove")
	root.AddShortcut("bl", "breakpoint list")
	root.AddShortcut("be", "breakpoint enable")
	root.AddShortcut("bd", "breakpoint disable")
	root.AddShortcut("cm", "clock mode")
	root.AddShortcut("cs", "clock status")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("db", "databreakpoint")
	root.AddShortcut("dbp", "databreakpoint")
	root.AddShortcut("dbl", "databreakpoint list")
	root.AddShortcut("dba", "databreakpoint add")
	root.AddShortcut("dbr", "databreakpoint remove")
	root.AddShortcut("dbe", "databreakpoint enable")
	root.AddShortcut("dbd", "databreakpoint disable")
	root.AddShortcut("e", "evaluate")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("mc", "memory copy")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("r", "register")
	root.AddShortcut("s", "step over")
	root.AddShortcut("si", "step in")
	root.AddShortcut("so", "step out")
	root.AddShortcut("st", "screen text")
	root.AddShortcut("?", "help")
	root.AddShortcut(".", "register")

	cmds = root
}
