// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/go8/host"
)

func newHost(t *testing.T) *host.Host {
	t.Helper()
	h, err := host.New(host.Config{})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// run executes the command lines non-interactively and returns the output.
func run(t *testing.T, h *host.Host, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := h.RunCommands(in, &out, false); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func expectOutput(t *testing.T, out string, exp ...string) {
	t.Helper()
	for _, e := range exp {
		if !strings.Contains(out, e) {
			t.Errorf("output missing %q.\ngot:\n%s", e, out)
		}
	}
}

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.asm")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEvaluate(t *testing.T) {
	h := newHost(t)
	out := run(t, h,
		"evaluate 1+2",
		"e $1000+$20",
		"evaluate -1")
	expectOutput(t, out, "$03 (3)", "$1020 (4128)", "$FFFF (-1)")
}

func TestUnknownCommand(t *testing.T) {
	h := newHost(t)
	out := run(t, h, "frobnicate", "# comment line")
	expectOutput(t, out, "Command not found.")
	if strings.Count(out, "\n") != 1 {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestQuit(t *testing.T) {
	h := newHost(t)
	var out bytes.Buffer
	err := h.RunCommands(strings.NewReader("quit\nevaluate 1\n"), &out, false)
	if err != host.ErrQuit {
		t.Errorf("expected ErrQuit, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("commands after quit were executed:\n%s", out.String())
	}
}

func TestRegister(t *testing.T) {
	h := newHost(t)
	out := run(t, h,
		"register a $42",
		"register da $1234",
		"register carry 1",
		"evaluate a",
		"evaluate da+1")
	expectOutput(t, out,
		"Register A set to $42.",
		"Register DA set to $1234.",
		"Flag CARRY set to true.",
		"$42 (66)",
		"$1235 (4661)")
	if !h.CPU().SR.Carry() {
		t.Error("carry flag not set")
	}
}

func TestMemorySetAndDump(t *testing.T) {
	h := newHost(t)
	out := run(t, h,
		"memory set $2000 $41 $42 $43",
		"memory dump $2000 3",
		"memory copy $3000 $2000 $2002",
		"m $3000 3")
	expectOutput(t, out,
		"Memory set at $2000..$2002.",
		"2000- 41 42 43",
		"Copied $2000..$2002 to $3000.",
		"3000- 41 42 43")
}

func TestMemorySetROM(t *testing.T) {
	h := newHost(t)
	mem := h.CPU().Mem
	before, _ := mem.LoadByte(0xf400)
	run(t, h, "memory set $F400 $FF $FE")
	after, _ := mem.LoadByte(0xf400)
	if before != after {
		t.Errorf("ROM byte changed from $%02X to $%02X", before, after)
	}
}

func TestLoadAndRun(t *testing.T) {
	path := writeSource(t, "\t.ORG $1000\n\tLD A,#$05\n\tHLT\n")

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"run",
		"evaluate a")
	expectOutput(t, out,
		"Loaded 'prog.asm' to $1000..$1002",
		"Halted at $1002.",
		"$05 (5)")
}

func TestLoadRequiresAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	h := newHost(t)
	out := run(t, h, "load "+path, "load "+path+" $4000")
	expectOutput(t, out,
		"Failed to load 'raw.bin'",
		"Loaded 'raw.bin' to $4000..$4001")
}

func TestBreakpoint(t *testing.T) {
	path := writeSource(t, "\t.ORG $1000\n\tLD A,#1\n\tLD B,#2\n\tHLT\n")

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"breakpoint add $1002",
		"run $1000",
		"evaluate a",
		"evaluate b")
	expectOutput(t, out,
		"Breakpoint added at $1002.",
		"Breakpoint hit at $1002.",
		"$01 (1)",
		"$00 (0)")
}

func TestDataBreakpoint(t *testing.T) {
	path := writeSource(t, "\t.ORG $1000\n\tLD A,#7\n\tST [$2000],A\n\tHLT\n")

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"databreakpoint add $2000",
		"run")
	expectOutput(t, out,
		"Data breakpoint added at $2000.",
		"Data breakpoint hit on address $2000.")
	if strings.Contains(out, "Halted") {
		t.Errorf("processor ran past the data breakpoint:\n%s", out)
	}
}

func TestDataBreakpointOnPixel(t *testing.T) {
	src := "\t.ORG $1000\n\tLD A,#6\n\tLD B,#3\n\tLD C,#4\n\tLD D,#$E0\n\tSYS\n\tHLT\n"
	path := writeSource(t, src)

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"databreakpoint add $8203",
		"run")
	expectOutput(t, out, "Data breakpoint hit on address $8203.")
	if strings.Contains(out, "Halted") {
		t.Errorf("processor ran past the data breakpoint:\n%s", out)
	}
	if v, _ := h.CPU().Mem.LoadByte(0x8203); v != 0xe0 {
		t.Errorf("pixel incorrect. exp: $E0, got: $%02X", v)
	}
}

func TestStep(t *testing.T) {
	path := writeSource(t, "\t.ORG $1000\n\tLD A,#1\n\tLD B,#2\n\tHLT\n")

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"step in 2",
		"evaluate pc")
	expectOutput(t, out, "$1004 (4100)")
}

func TestStepOver(t *testing.T) {
	src := `
	.ORG $1000
	CALL sub
	LD B,#2
	HLT
sub:
	LD A,#1
	RET`
	path := writeSource(t, src)

	h := newHost(t)
	out := run(t, h,
		"load "+path,
		"step over",
		"evaluate pc",
		"evaluate a")
	expectOutput(t, out, "$1003 (4099)", "$01 (1)")
}

func TestSettings(t *testing.T) {
	h := newHost(t)
	out := run(t, h,
		"set hex on",
		"evaluate 10",
		"set nosuchsetting 1")
	expectOutput(t, out,
		"Setting updated.",
		"$10 (16)",
		"Setting 'nosuchsetting' not found")
}

func TestClockMode(t *testing.T) {
	h := newHost(t)
	out := run(t, h,
		"clock mode realtime 1000",
		"clock status",
		"clock mode warp")
	expectOutput(t, out,
		"Clock mode set to realtime at 1000 Hz.",
		"Mode:         realtime (stopped)",
		"Target:       1000 Hz",
		"warp")

	if f := h.CPU().Clock.Frequency(); f != 1000 {
		t.Errorf("frequency incorrect. exp: 1000, got: %v", f)
	}
}

func TestScreenText(t *testing.T) {
	path := writeSource(t, "\t.ORG $1000\n\tLD A,#0\n\tLD B,#'H'\n\tSYS\n\tHLT\n")

	h := newHost(t)
	out := run(t, h,
		"set echo off",
		"load "+path,
		"run",
		"screen text")
	expectOutput(t, out, "Halted at", "H\n")
	if got := h.Screen().String(); got != "H" {
		t.Errorf("screen incorrect. exp: %q, got: %q", "H", got)
	}
}

func TestHelp(t *testing.T) {
	h := newHost(t)
	out := run(t, h, "help", "help breakpoint")
	expectOutput(t, out, "breakpoint", "Breakpoint commands:")
}
