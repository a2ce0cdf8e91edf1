// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package video

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Palette holds the 16 text colors.
var Palette = [16]color.RGBA{
	{0x00, 0x00, 0x00, 0xff}, // black
	{0xff, 0xff, 0xff, 0xff}, // white
	{0x88, 0x00, 0x00, 0xff}, // red
	{0xaa, 0xff, 0xee, 0xff}, // cyan
	{0xcc, 0x44, 0xcc, 0xff}, // purple
	{0x00, 0xcc, 0x55, 0xff}, // green
	{0x00, 0x00, 0xaa, 0xff}, // blue
	{0xee, 0xee, 0x77, 0xff}, // yellow
	{0xdd, 0x88, 0x55, 0xff}, // orange
	{0x66, 0x44, 0x00, 0xff}, // brown
	{0xff, 0x77, 0x77, 0xff}, // light red
	{0x33, 0x33, 0x33, 0xff}, // dark grey
	{0x77, 0x77, 0x77, 0xff}, // grey
	{0xaa, 0xff, 0x66, 0xff}, // light green
	{0x00, 0x88, 0xff, 0xff}, // light blue
	{0xbb, 0xbb, 0xbb, 0xff}, // light grey
}

// RGB332 expands a bitmap byte (3 bits red, 3 green, 2 blue) to a color.
func RGB332(v byte) color.RGBA {
	return color.RGBA{
		R: (v >> 5) * 255 / 7,
		G: ((v >> 2) & 7) * 255 / 7,
		B: (v & 3) * 255 / 3,
		A: 0xff,
	}
}

var face = basicfont.Face7x13

// Size of one character cell in unscaled pixels.
const (
	CellWidth  = 7
	CellHeight = 13
)

// Bitmap returns the bitmap layer as an image. Pixels of color 0 are
// transparent.
func (s *Screen) Bitmap() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, BitmapWidth, BitmapHeight))
	for y := 0; y < BitmapHeight; y++ {
		for x := 0; x < BitmapWidth; x++ {
			v, err := s.GetPixel(byte(x), byte(y))
			if err != nil || v == 0 {
				continue
			}
			img.SetRGBA(x, y, RGB332(v))
		}
	}
	return img
}

// Render composes the screen into an image. Cell backgrounds are drawn
// first, then the bitmap stretched over the whole text area, then the
// characters. The result is enlarged by scale, which is at least 1.
func (s *Screen) Render(scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}

	bounds := image.Rect(0, 0, Columns*CellWidth, Rows*CellHeight)
	img := image.NewRGBA(bounds)

	s.mu.Lock()
	cells := s.cells
	s.mu.Unlock()

	for r := range cells {
		for c, cell := range cells[r] {
			rect := image.Rect(c*CellWidth, r*CellHeight, (c+1)*CellWidth, (r+1)*CellHeight)
			draw.Draw(img, rect, image.NewUniform(Palette[cell.BG&0x0f]), image.Point{}, draw.Src)
		}
	}

	bm := s.Bitmap()
	draw.NearestNeighbor.Scale(img, bounds, bm, bm.Bounds(), draw.Over, nil)

	d := &font.Drawer{Dst: img, Face: face}
	for r := range cells {
		for c, cell := range cells[r] {
			if cell.Ch <= ' ' || cell.Ch >= 0x7f {
				continue
			}
			d.Src = image.NewUniform(Palette[cell.FG&0x0f])
			d.Dot = fixed.P(c*CellWidth, r*CellHeight+face.Ascent)
			d.DrawString(string(rune(cell.Ch)))
		}
	}

	if scale == 1 {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), img, bounds, draw.Src, nil)
	return out
}

// WritePNG renders the screen and encodes it as PNG.
func (s *Screen) WritePNG(w io.Writer, scale int) error {
	return png.Encode(w, s.Render(scale))
}
