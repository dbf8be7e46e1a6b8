// Package wsqtest builds small synthetic WSQ files for tests.
package wsqtest

import (
	"bytes"
	"encoding/binary"
)

// Options describes a synthetic WSQ file. Only subband 0 can carry coded data; its
// Huffman table 0 maps code 00 to a 16-bit zero run and code 01 to the value 0.
type Options struct {
	Width, Height int
	CodeBand0     bool
	Entropy       []byte
}

// Mean is the gray level every pixel of a file without coefficients decodes to.
const Mean = 118

type builder struct {
	bytes.Buffer
}

func (b *builder) u8(v uint8) { b.WriteByte(v) }

func (b *builder) u16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	b.Write(buf[:])
}

func (b *builder) u32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func (b *builder) scaled(scale uint8, v uint16) {
	b.u8(scale)
	b.u16(v)
}

// Blank returns a width x height file whose subbands are all uncoded.
func Blank(width, height int) []byte {
	return Build(Options{Width: width, Height: height})
}

func Build(opts Options) []byte {
	var b builder
	b.u16(0xFFA0) // SOI

	comment := "NIST_COM test"
	b.u16(0xFFA8)
	b.u16(uint16(2 + len(comment)))
	b.WriteString(comment)

	// DTT: two 3-tap filters.
	b.u16(0xFFA4)
	b.u16(4 + 2*6 + 2*6)
	b.u8(3)
	b.u8(3)
	for i := 0; i < 2; i++ {
		for _, v := range []uint32{10, 5} {
			b.u8(0)
			b.u8(1)
			b.u32(v)
		}
	}

	// DQT
	b.u16(0xFFA5)
	b.u16(2 + 3 + 64*6)
	b.scaled(2, 44)
	for band := 0; band < 64; band++ {
		if band == 0 && opts.CodeBand0 {
			b.scaled(1, 20)
			b.scaled(1, 24)
			continue
		}
		b.scaled(0, 0)
		b.scaled(0, 0)
	}

	// DHT
	b.u16(0xFFA6)
	b.u16(2 + 1 + 16 + 2)
	b.u8(0)
	for i := 0; i < 16; i++ {
		if i == 1 {
			b.u8(2)
		} else {
			b.u8(0)
		}
	}
	b.u8(106)
	b.u8(180)

	// SOF: mean shift 117.5, scale 1.
	b.u16(0xFFA2)
	b.u16(17)
	b.u8(0)
	b.u8(255)
	b.u16(uint16(opts.Height))
	b.u16(uint16(opts.Width))
	b.scaled(1, 1175)
	b.scaled(1, 10)
	b.u8(2)
	b.u16(0)

	// SOB
	b.u16(0xFFA3)
	b.u16(3)
	b.u8(0)
	b.Write(opts.Entropy)

	b.u16(0xFFA1) // EOI
	return b.Bytes()
}
