// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package video

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/beevik/go8/cpu"
)

func newScreen(t *testing.T) *Screen {
	t.Helper()
	mem, err := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewScreen(mem)
}

func expectText(t *testing.T, s *Screen, exp string) {
	t.Helper()
	if got := s.String(); got != exp {
		t.Errorf("screen text incorrect.\nexp: %q\ngot: %q", exp, got)
	}
}

func expectCursor(t *testing.T, s *Screen, col, row int) {
	t.Helper()
	c, r := s.Cursor()
	if c != col || r != row {
		t.Errorf("cursor incorrect. exp: %d,%d, got: %d,%d", col, row, c, r)
	}
}

func TestPrint(t *testing.T) {
	s := newScreen(t)
	s.PrintString("HELLO\nWORLD")
	expectText(t, s, "HELLO\nWORLD")
	expectCursor(t, s, 5, 1)

	s.PrintString("\rJ")
	expectText(t, s, "HELLO\nJORLD")
	expectCursor(t, s, 1, 1)

	s.PrintChar('\b')
	expectText(t, s, "HELLO\n ORLD")
	expectCursor(t, s, 0, 1)

	s.PrintChar(0x07)
	expectCursor(t, s, 0, 1)
}

func TestWrap(t *testing.T) {
	s := newScreen(t)
	s.PrintString(strings.Repeat("A", Columns) + "B")
	expectText(t, s, strings.Repeat("A", Columns)+"\nB")
	expectCursor(t, s, 1, 1)

	// Backspace at column 0 moves to the end of the previous row.
	s.SetCursor(0, 1)
	s.PrintChar('\b')
	expectCursor(t, s, Columns-1, 0)
}

func TestScroll(t *testing.T) {
	s := newScreen(t)
	for i := 0; i < Rows; i++ {
		s.PrintString(string(rune('a'+i)) + "\n")
	}
	lines := s.Text()
	if lines[0] != "b" {
		t.Errorf("first row incorrect. exp: %q, got: %q", "b", lines[0])
	}
	if lines[Rows-2] != "y" || lines[Rows-1] != "" {
		t.Errorf("last rows incorrect: %q %q", lines[Rows-2], lines[Rows-1])
	}
	expectCursor(t, s, 0, Rows-1)
}

func TestClearAndColor(t *testing.T) {
	s := newScreen(t)
	s.SetColor(0x12, 0x36)
	s.PrintChar('X')
	cell := s.Cell(0, 0)
	if cell.Ch != 'X' || cell.FG != 2 || cell.BG != 6 {
		t.Errorf("cell incorrect: %+v", cell)
	}

	s.Clear()
	expectText(t, s, "")
	expectCursor(t, s, 0, 0)
	if cell := s.Cell(Columns-1, Rows-1); cell.BG != 6 {
		t.Errorf("clear background incorrect. exp: 6, got: %d", cell.BG)
	}
}

func TestSetCursorClamps(t *testing.T) {
	s := newScreen(t)
	s.SetCursor(200, 100)
	expectCursor(t, s, Columns-1, Rows-1)
}

func TestKeys(t *testing.T) {
	s := newScreen(t)
	if k := s.GetChar(); k != 0 {
		t.Errorf("empty queue returned %d", k)
	}
	s.PushKeys("ab")
	if k := s.GetChar(); k != 'a' {
		t.Errorf("key incorrect. exp: 'a', got: %q", k)
	}
	if k := s.GetChar(); k != 'b' {
		t.Errorf("key incorrect. exp: 'b', got: %q", k)
	}

	for i := 0; i < keyQueueSize+10; i++ {
		s.PushKey('x')
	}
	n := 0
	for s.GetChar() != 0 {
		n++
	}
	if n != keyQueueSize {
		t.Errorf("queue length incorrect. exp: %d, got: %d", keyQueueSize, n)
	}
}

func TestPixels(t *testing.T) {
	mem, _ := cpu.NewMemory(cpu.DefaultMemorySize, nil)
	s := NewScreen(mem)

	if err := s.SetPixel(3, 2, 0xe0); err != nil {
		t.Fatal(err)
	}
	v, _ := mem.LoadByte(cpu.BitmapStart + 2*BitmapWidth + 3)
	if v != 0xe0 {
		t.Errorf("bitmap memory incorrect. exp: $E0, got: $%02X", v)
	}
	if v, _ := s.GetPixel(3, 2); v != 0xe0 {
		t.Errorf("pixel incorrect. exp: $E0, got: $%02X", v)
	}

	if err := s.SetPixel(200, 0, 0xff); err != nil {
		t.Errorf("out of range store returned %v", err)
	}
	if v, _ := s.GetPixel(0, 128); v != 0 {
		t.Errorf("out of range pixel read $%02X", v)
	}
}

func TestPixelStoreHook(t *testing.T) {
	s := newScreen(t)
	var addrs []uint16
	s.SetStore(func(addr uint16, v byte) error {
		addrs = append(addrs, addr)
		return nil
	})

	s.SetPixel(1, 1, 0x1c)
	s.SetPixel(128, 1, 0x1c)
	if len(addrs) != 1 || addrs[0] != cpu.BitmapStart+BitmapWidth+1 {
		t.Errorf("stores incorrect. exp: [$%04X], got: %04X", cpu.BitmapStart+BitmapWidth+1, addrs)
	}
}

func TestEcho(t *testing.T) {
	s := newScreen(t)
	var b bytes.Buffer
	s.SetEcho(&b)
	s.PrintString("hi\n")
	if b.String() != "hi\n" {
		t.Errorf("echo incorrect: %q", b.String())
	}
}

func TestRGB332(t *testing.T) {
	tests := []struct {
		v   byte
		exp color.RGBA
	}{
		{0x00, color.RGBA{0, 0, 0, 0xff}},
		{0xff, color.RGBA{0xff, 0xff, 0xff, 0xff}},
		{0xe0, color.RGBA{0xff, 0, 0, 0xff}},
		{0x1c, color.RGBA{0, 0xff, 0, 0xff}},
		{0x03, color.RGBA{0, 0, 0xff, 0xff}},
	}
	for _, tt := range tests {
		if got := RGB332(tt.v); got != tt.exp {
			t.Errorf("RGB332($%02X) incorrect. exp: %v, got: %v", tt.v, tt.exp, got)
		}
	}
}

func TestRender(t *testing.T) {
	s := newScreen(t)
	s.SetColor(1, 6)
	s.Clear()
	s.SetPixel(0, 0, 0xe0)

	img := s.Render(2)
	b := img.Bounds()
	if b.Dx() != Columns*CellWidth*2 || b.Dy() != Rows*CellHeight*2 {
		t.Fatalf("image size incorrect: %v", b)
	}

	// The bitmap covers the top-left corner; elsewhere the background shows.
	if got := img.RGBAAt(0, 0); got != RGB332(0xe0) {
		t.Errorf("bitmap pixel incorrect: %v", got)
	}
	if got := img.RGBAAt(b.Dx()-1, b.Dy()-1); got != Palette[6] {
		t.Errorf("background pixel incorrect: %v", got)
	}
}

func TestWritePNG(t *testing.T) {
	s := newScreen(t)
	s.PrintString("GO8")

	var b bytes.Buffer
	if err := s.WritePNG(&b, 1); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&b)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != Columns*CellWidth {
		t.Errorf("png width incorrect: %d", img.Bounds().Dx())
	}
}
