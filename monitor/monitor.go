// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package monitor implements a full-screen terminal front end for a go8
// machine. It shows the text surface, the processor state and the clock
// statistics, and feeds typed keys to the machine.
package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/beevik/go8/cpu"
	"github.com/beevik/go8/disasm"
	"github.com/beevik/go8/video"
	"github.com/jroimartin/gocui"
)

// RefreshInterval is how often the views are redrawn.
const RefreshInterval = 100 * time.Millisecond

// View names
const (
	screenView    = "screen"
	registersView = "registers"
	helpView      = "help"
)

var helpText = []string{
	"F5      run / stop",
	"F10     step",
	"F6      next clock mode",
	"Ctrl-R  warm boot",
	"Ctrl-C  quit",
}

// A Monitor displays a machine in the terminal.
type Monitor struct {
	cpu    *cpu.CPU
	screen *video.Screen

	mu     sync.Mutex
	status string
}

// New creates a monitor for a processor and its screen.
func New(c *cpu.CPU, s *video.Screen) *Monitor {
	return &Monitor{cpu: c, screen: s}
}

// Run takes over the terminal until the user quits or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	g.SetManagerFunc(m.layout)

	bindings := []struct {
		key     gocui.Key
		handler func(g *gocui.Gui, v *gocui.View) error
	}{
		{gocui.KeyCtrlC, quit},
		{gocui.KeyF5, m.onRunStop},
		{gocui.KeyF10, m.onStep},
		{gocui.KeyF6, m.onNextMode},
		{gocui.KeyCtrlR, m.onWarmBoot},
	}
	for _, b := range bindings {
		if err := g.SetKeybinding("", b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	defer close(done)
	go m.refreshLoop(ctx, g, done)

	err = g.MainLoop()
	if err == gocui.ErrQuit {
		return nil
	}
	return err
}

func (m *Monitor) refreshLoop(ctx context.Context, g *gocui.Gui, done <-chan struct{}) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			g.Update(quitGui)
			return
		case <-ticker.C:
			g.Update(m.refresh)
		}
	}
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func quitGui(g *gocui.Gui) error {
	return gocui.ErrQuit
}

func (m *Monitor) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sx1 := min(video.Columns+1, maxX-1)
	sy1 := min(video.Rows+1, maxY-1)
	if v, err := g.SetView(screenView, 0, 0, sx1, sy1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Screen"
		v.Editable = true
		v.Editor = gocui.EditorFunc(m.onKey)
		if _, err := g.SetCurrentView(screenView); err != nil {
			return err
		}
	}

	rx0 := sx1 + 1
	rx1 := max(maxX-1, rx0+1)
	if v, err := g.SetView(registersView, rx0, 0, rx1, 10); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Processor"
	}

	if v, err := g.SetView(helpView, rx0, 11, rx1, max(sy1, 12+len(helpText))); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Keys"
		fmt.Fprint(v, strings.Join(helpText, "\n"))
	}
	return nil
}

func (m *Monitor) refresh(g *gocui.Gui) error {
	if v, err := g.View(screenView); err == nil {
		v.Clear()
		fmt.Fprint(v, strings.Join(m.screen.Text(), "\n"))
	}
	if v, err := g.View(registersView); err == nil {
		v.Clear()
		m.writeState(v)
	}
	return nil
}

// writeState prints the processor and clock state.
func (m *Monitor) writeState(w io.Writer) {
	c := m.cpu
	k := c.Clock

	state := "stopped"
	if k.Running() {
		state = "running"
	}

	line, _ := disasm.Disassemble(c.Mem, c.Reg.PC)
	fmt.Fprintln(w, c.String())
	fmt.Fprintf(w, "$%04X  %s\n", c.Reg.PC, line)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Clock:  %s (%s)\n", k.Mode(), state)
	fmt.Fprintf(w, "Target: %s\n", formatHz(k.Frequency()))
	fmt.Fprintf(w, "Actual: %s\n", formatHz(k.ActualCycleFrequency()))
	fmt.Fprintf(w, "Instructions: %d  Cycles: %d\n", c.Instructions(), c.Cycles())

	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	if status != "" {
		fmt.Fprintln(w, status)
	}
}

func formatHz(f float64) string {
	switch {
	case f <= 0:
		return "-"
	case f >= 1e6:
		return fmt.Sprintf("%.2f MHz", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("%.2f kHz", f/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", f)
	}
}

func (m *Monitor) setStatus(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.status = "Error: " + err.Error()
	} else {
		m.status = ""
	}
}

// Key handlers never return machine errors to gocui, since that would end
// the main loop. The error is shown in the processor view instead.

func (m *Monitor) onRunStop(g *gocui.Gui, v *gocui.View) error {
	if m.cpu.Clock.Running() {
		m.setStatus(m.cpu.Stop())
	} else {
		m.setStatus(m.cpu.Start())
	}
	return m.refresh(g)
}

func (m *Monitor) onStep(g *gocui.Gui, v *gocui.View) error {
	k := m.cpu.Clock
	if k.Running() && k.Mode() != cpu.ModeStepped {
		return nil
	}
	m.setStatus(k.Step())
	return m.refresh(g)
}

func (m *Monitor) onNextMode(g *gocui.Gui, v *gocui.View) error {
	m.setStatus(m.cpu.Clock.SetMode(nextMode(m.cpu.Clock.Mode()), 0))
	return m.refresh(g)
}

func (m *Monitor) onWarmBoot(g *gocui.Gui, v *gocui.View) error {
	m.setStatus(m.cpu.WarmBoot())
	return m.refresh(g)
}

func (m *Monitor) onKey(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	if b, ok := keyByte(key, ch); ok {
		m.screen.PushKey(b)
	}
}

func nextMode(mode cpu.ClockMode) cpu.ClockMode {
	return (mode + 1) % (cpu.ModeStepped + 1)
}

// keyByte converts a terminal key to the byte queued for the machine.
func keyByte(key gocui.Key, ch rune) (byte, bool) {
	if ch != 0 {
		if ch < 0x80 {
			return byte(ch), true
		}
		return 0, false
	}
	switch key {
	case gocui.KeyEnter:
		return '\n', true
	case gocui.KeySpace:
		return ' ', true
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		return '\b', true
	case gocui.KeyTab:
		return '\t', true
	case gocui.KeyEsc:
		return 0x1b, true
	}
	return 0, false
}
