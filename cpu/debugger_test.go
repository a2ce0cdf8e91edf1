// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu_test

import (
	"sync"
	"testing"

	"github.com/beevik/go8/cpu"
)

type breakHandler struct {
	mu     sync.Mutex
	stop   bool
	hits   []uint16
	stores []uint16
}

func (h *breakHandler) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits = append(h.hits, b.Address)
	if h.stop {
		c.RequestStop()
	}
}

func (h *breakHandler) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stores = append(h.stores, b.Address)
	if h.stop {
		c.RequestStop()
	}
}

func TestBreakpoint(t *testing.T) {
	asm := `
	.ORG $1000
	NOP
	NOP
	NOP
	NOP`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}
	h := &breakHandler{}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)

	d.AddBreakpoint(0x1002)
	b := d.AddBreakpoint(0x1003)
	b.Disabled = true

	stepCPU(t, c, 4)
	if len(h.hits) != 1 || h.hits[0] != 0x1002 {
		t.Errorf("breakpoint hits incorrect. got: %v", h.hits)
	}

	bps := d.GetBreakpoints()
	if len(bps) != 2 || bps[0].Address != 0x1002 || bps[1].Address != 0x1003 {
		t.Errorf("GetBreakpoints incorrect: %v", bps)
	}

	d.RemoveBreakpoint(0x1002)
	if d.GetBreakpoint(0x1002) != nil {
		t.Error("breakpoint not removed")
	}
}

func TestBreakpointStopsClock(t *testing.T) {
	c := loadCPU(t, spinLoop)
	if c == nil {
		return
	}
	h := &breakHandler{stop: true}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)
	d.AddBreakpoint(0x1000)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := waitCPU(t, c); err != nil {
		t.Fatal(err)
	}

	expectPC(t, c, 0x1000)
	expectReg(t, c, "A", 1)
	if c.LastStop() != cpu.StopRequested {
		t.Errorf("stop reason incorrect. exp: stopped, got: %v", c.LastStop())
	}
}

func TestDataBreakpoint(t *testing.T) {
	asm := `
	LD A,#1
	ST [$2000],A
	LD A,#2
	ST [$2000],A
	ST [$2001],A
	LD IDX,#$2001
	ST [IDX],A`

	c := loadCPU(t, asm)
	if c == nil {
		return
	}
	h := &breakHandler{}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)

	d.AddConditionalDataBreakpoint(0x2000, 2)
	d.AddDataBreakpoint(0x2001)

	stepCPU(t, c, 7)
	exp := []uint16{0x2000, 0x2001, 0x2001}
	if len(h.stores) != len(exp) {
		t.Fatalf("data breakpoint hits incorrect. exp: %v, got: %v", exp, h.stores)
	}
	for i := range exp {
		if h.stores[i] != exp[i] {
			t.Errorf("data breakpoint hits incorrect. exp: %v, got: %v", exp, h.stores)
			break
		}
	}

	d.RemoveDataBreakpoint(0x2001)
	if len(d.GetDataBreakpoints()) != 1 {
		t.Error("data breakpoint not removed")
	}

	c.DetachDebugger()
	c.SetPC(0x1000)
	stepCPU(t, c, 4)
	if len(h.stores) != len(exp) {
		t.Error("detached debugger still reporting stores")
	}
}
