// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package video implements the go8 text and pixel surface reached through
// the processor's SYS instruction.
package video

import (
	"io"
	"strings"
	"sync"

	"github.com/beevik/go8/cpu"
)

// Text and bitmap geometry.
const (
	Columns = 40
	Rows    = 25

	BitmapWidth  = 128
	BitmapHeight = 128
)

// Default colors, as palette indexes.
const (
	DefaultForeground = 1
	DefaultBackground = 0
)

// Largest number of keys held before new keys are dropped.
const keyQueueSize = 256

// A Cell is one character position of the text surface.
type Cell struct {
	Ch byte // character code; space when empty
	FG byte // foreground palette index
	BG byte // background palette index
}

// Screen is a 40x25 character surface with a 128x128 bitmap overlay stored
// in the processor's bitmap memory. It is safe for concurrent use by the
// processor and a viewer.
type Screen struct {
	mu       sync.Mutex
	mem      cpu.Memory
	cells    [Rows][Columns]Cell
	col, row int
	fg, bg   byte
	keys     []byte
	echo     io.Writer
	store    func(addr uint16, v byte) error
}

// NewScreen creates a cleared screen whose bitmap lives in mem.
func NewScreen(mem cpu.Memory) *Screen {
	s := &Screen{
		mem: mem,
		fg:  DefaultForeground,
		bg:  DefaultBackground,
	}
	s.clear()
	return s
}

// SetEcho mirrors every printed character to w. A nil writer disables
// echoing.
func (s *Screen) SetEcho(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo = w
}

// SetStore routes bitmap stores made by SetPixel through fn, typically
// (*cpu.CPU).StoreByte so that data breakpoints see them. A nil fn stores
// directly to memory.
func (s *Screen) SetStore(fn func(addr uint16, v byte) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = fn
}

// PrintChar writes a character at the cursor and advances it. Newline,
// carriage return and backspace move the cursor; other control characters
// are ignored. The screen scrolls when the cursor moves past the last row.
func (s *Screen) PrintChar(ch byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(ch)
}

// PrintString writes each character of str.
func (s *Screen) PrintString(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < len(str); i++ {
		s.put(str[i])
	}
}

func (s *Screen) put(ch byte) {
	if s.echo != nil {
		s.echo.Write([]byte{ch})
	}

	switch {
	case ch == '\n':
		s.col = 0
		s.newline()
	case ch == '\r':
		s.col = 0
	case ch == '\b':
		if s.col > 0 {
			s.col--
		} else if s.row > 0 {
			s.row, s.col = s.row-1, Columns-1
		}
		s.cells[s.row][s.col] = Cell{' ', s.fg, s.bg}
	case ch < 0x20 || ch == 0x7f:
	default:
		s.cells[s.row][s.col] = Cell{ch, s.fg, s.bg}
		if s.col++; s.col == Columns {
			s.col = 0
			s.newline()
		}
	}
}

func (s *Screen) newline() {
	if s.row < Rows-1 {
		s.row++
		return
	}
	copy(s.cells[:], s.cells[1:])
	for c := range s.cells[Rows-1] {
		s.cells[Rows-1][c] = Cell{' ', s.fg, s.bg}
	}
}

// Clear fills the screen with spaces in the current colors and homes the
// cursor.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Screen) clear() {
	for r := range s.cells {
		for c := range s.cells[r] {
			s.cells[r][c] = Cell{' ', s.fg, s.bg}
		}
	}
	s.col, s.row = 0, 0
}

// SetCursor moves the cursor. Coordinates are clamped to the screen.
func (s *Screen) SetCursor(col, row byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.col = min(int(col), Columns-1)
	s.row = min(int(row), Rows-1)
}

// Cursor returns the cursor position.
func (s *Screen) Cursor() (col, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col, s.row
}

// SetColor selects the palette indexes used by subsequent output.
func (s *Screen) SetColor(fg, bg byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fg, s.bg = fg&0x0f, bg&0x0f
}

// PushKey queues a key for GetChar.
func (s *Screen) PushKey(k byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) < keyQueueSize {
		s.keys = append(s.keys, k)
	}
}

// PushKeys queues every byte of str.
func (s *Screen) PushKeys(str string) {
	for i := 0; i < len(str); i++ {
		s.PushKey(str[i])
	}
}

// GetChar removes and returns the oldest queued key, or 0 when the queue is
// empty.
func (s *Screen) GetChar() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.keys) == 0 {
		return 0
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k
}

func pixelAddr(x, y byte) (uint16, bool) {
	if int(x) >= BitmapWidth || int(y) >= BitmapHeight {
		return 0, false
	}
	return cpu.BitmapStart + uint16(y)*BitmapWidth + uint16(x), true
}

// SetPixel stores an RGB332 color into bitmap memory. Coordinates outside
// the bitmap are ignored.
func (s *Screen) SetPixel(x, y, color byte) error {
	addr, ok := pixelAddr(x, y)
	if !ok {
		return nil
	}
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	if store != nil {
		return store(addr, color)
	}
	return s.mem.StoreByte(addr, color)
}

// GetPixel returns the RGB332 color at a bitmap position. Coordinates
// outside the bitmap read as 0.
func (s *Screen) GetPixel(x, y byte) (byte, error) {
	addr, ok := pixelAddr(x, y)
	if !ok {
		return 0, nil
	}
	return s.mem.LoadByte(addr)
}

// Cell returns the cell at a position.
func (s *Screen) Cell(col, row int) Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells[row][col]
}

// Text returns the characters of each row with trailing spaces removed.
func (s *Screen) Text() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, Rows)
	var b [Columns]byte
	for r := range s.cells {
		for c, cell := range s.cells[r] {
			b[c] = cell.Ch
		}
		lines[r] = strings.TrimRight(string(b[:]), " ")
	}
	return lines
}

// String returns the text rows joined by newlines, without trailing blank
// rows.
func (s *Screen) String() string {
	lines := s.Text()
	n := len(lines)
	for n > 0 && lines[n-1] == "" {
		n--
	}
	return strings.Join(lines[:n], "\n")
}
