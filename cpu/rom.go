// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "fmt"

// A ROM is an immutable boot image mapped at ROMStart.
type ROM struct {
	image [ROMSize]byte
}

// NewROM creates a ROM from an image of at most ROMSize bytes. Shorter
// images are padded with zeroes.
func NewROM(image []byte) (*ROM, error) {
	if len(image) > ROMSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrROMTooLarge, len(image))
	}
	r := &ROM{}
	copy(r.image[:], image)
	return r, nil
}

// Bytes returns a copy of the ROM image.
func (r *ROM) Bytes() []byte {
	b := make([]byte, ROMSize)
	copy(b, r.image[:])
	return b
}

// At returns the ROM byte mapped at the absolute address addr, which must
// lie in the ROM range.
func (r *ROM) At(addr uint16) byte {
	return r.image[int(addr)-ROMStart]
}

// Banner is printed by the built-in boot ROM.
const Banner = "GO8 READY"

const bannerAddr = ROMStart + 0x16

// The boot program clears the screen, prints the banner and then jumps to
// the program at $0000 if its first byte is non-zero. Otherwise it halts.
var bootProgram = []byte{
	0x10, 0x02, //                  F400 LD A,#2
	0xff, //                        F402 SYS
	0x10, 0x01, //                  F403 LD A,#1
	0x11, bannerAddr >> 8, //       F405 LD B,#>banner
	0x12, bannerAddr & 0xff, //     F407 LD C,#<banner
	0xff, //                        F409 SYS
	0x18, 0x00, 0x00, //            F40A LD A,[$0000]
	0x90, 0x00, //                  F40D CMP A,#0
	0xa1, 0x15, 0xf4, //            F40F JZ $F415
	0xa0, 0x00, 0x00, //            F412 JMP $0000
	0x01, //                        F415 HLT
}

// DefaultROM returns the built-in boot ROM.
func DefaultROM() *ROM {
	image := append([]byte{}, bootProgram...)
	image = append(image, Banner+"\n\x00"...)
	r, err := NewROM(image)
	if err != nil {
		panic(err)
	}
	return r
}
