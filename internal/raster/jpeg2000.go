package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/cocosip/go-dicom-codec/jpeg2000"
)

var (
	jp2Signature = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}
	j2kSOC       = []byte{0xFF, 0x4F, 0xFF, 0x51}

	ErrNoCodestream = errors.New("raster: jp2 file has no contiguous codestream box")
)

// IsJPEG2000 reports whether data starts with a JP2 signature box or a raw J2K
// codestream (SOC followed by SIZ).
func IsJPEG2000(data []byte) bool {
	return bytes.HasPrefix(data, jp2Signature) || bytes.HasPrefix(data, j2kSOC)
}

// Codestream returns the raw J2K codestream held in data, unwrapping the jp2c box of
// a JP2 file.
func Codestream(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, j2kSOC) {
		return data, nil
	}
	if !bytes.HasPrefix(data, jp2Signature) {
		return nil, fmt.Errorf("raster: not a jpeg2000 stream")
	}

	for off := 0; off+8 <= len(data); {
		length := uint64(binary.BigEndian.Uint32(data[off:]))
		boxType := string(data[off+4 : off+8])
		header := uint64(8)
		switch length {
		case 0:
			length = uint64(len(data) - off)
		case 1:
			if off+16 > len(data) {
				return nil, ErrNoCodestream
			}
			length = binary.BigEndian.Uint64(data[off+8:])
			header = 16
		}
		if length < header || uint64(off)+length > uint64(len(data)) {
			return nil, fmt.Errorf("raster: jp2 box %q at offset %d overruns file", boxType, off)
		}
		if boxType == "jp2c" {
			return data[uint64(off)+header : uint64(off)+length], nil
		}
		off += int(length)
	}
	return nil, ErrNoCodestream
}

// jpeg2000Size reads the image area from the SIZ marker segment that follows SOC.
func jpeg2000Size(data []byte) (width, height uint32, err error) {
	cs, err := Codestream(data)
	if err != nil {
		return 0, 0, err
	}
	// SOC, SIZ, Lsiz, Rsiz, then Xsiz, Ysiz, XOsiz, YOsiz.
	if len(cs) < 24 || !bytes.HasPrefix(cs, j2kSOC) {
		return 0, 0, fmt.Errorf("raster: jpeg2000 codestream has no SIZ segment")
	}
	xsiz := binary.BigEndian.Uint32(cs[8:])
	ysiz := binary.BigEndian.Uint32(cs[12:])
	xosiz := binary.BigEndian.Uint32(cs[16:])
	yosiz := binary.BigEndian.Uint32(cs[20:])
	if xosiz >= xsiz || yosiz >= ysiz {
		return 0, 0, fmt.Errorf("raster: jpeg2000 image area %dx%d at offset %d,%d is empty", xsiz, ysiz, xosiz, yosiz)
	}
	return xsiz - xosiz, ysiz - yosiz, nil
}

// WrapJP2 places a raw codestream in a minimal JP2 file: signature, file type and
// codestream boxes.
func WrapJP2(codestream []byte) []byte {
	var buf bytes.Buffer
	buf.Write(jp2Signature)

	ftyp := []byte("ftypjp2 \x00\x00\x00\x00jp2 ")
	binary.Write(&buf, binary.BigEndian, uint32(len(ftyp)+4))
	buf.Write(ftyp)

	binary.Write(&buf, binary.BigEndian, uint32(len(codestream)+8))
	buf.WriteString("jp2c")
	buf.Write(codestream)
	return buf.Bytes()
}

// pureJPEG2000 decodes with the pure-Go codec.
type pureJPEG2000 struct{}

func (pureJPEG2000) Decode(data []byte) (image.Image, error) {
	cs, err := Codestream(data)
	if err != nil {
		return nil, err
	}

	dec := jpeg2000.NewDecoder()
	if err := dec.Decode(cs); err != nil {
		return nil, err
	}
	return componentsToImage(dec)
}

func componentsToImage(dec *jpeg2000.Decoder) (image.Image, error) {
	w, h := dec.Width(), dec.Height()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	n := w * h
	depth := dec.BitDepth()
	if depth <= 0 || depth > 16 {
		return nil, fmt.Errorf("raster: unsupported jpeg2000 bit depth %d", depth)
	}

	planes := 1
	if dec.Components() >= 3 {
		planes = 3
	}
	data := make([][]int32, planes)
	for c := range data {
		plane, err := dec.GetComponentData(c)
		if err != nil {
			return nil, err
		}
		if len(plane) < n {
			return nil, fmt.Errorf("raster: component %d has %d samples, want %d", c, len(plane), n)
		}
		data[c] = plane
	}

	var offset int32
	if dec.IsSigned() {
		offset = 1 << (depth - 1)
	}
	maxVal := int32(1)<<depth - 1
	sample := func(c, i int) int32 {
		v := data[c][i] + offset
		if v < 0 {
			return 0
		}
		if v > maxVal {
			return maxVal
		}
		return v
	}
	rect := image.Rect(0, 0, w, h)

	switch {
	case planes == 1 && depth <= 8:
		img := image.NewGray(rect)
		for i := 0; i < n; i++ {
			img.Pix[i] = uint8(sample(0, i) << (8 - depth))
		}
		return img, nil
	case planes == 1:
		img := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			img.SetGray16(i%w, i/w, color.Gray16{Y: uint16(sample(0, i) << (16 - depth))})
		}
		return img, nil
	case depth <= 8:
		img := image.NewRGBA(rect)
		for i := 0; i < n; i++ {
			p := img.Pix[i*4 : i*4+4]
			p[0] = uint8(sample(0, i) << (8 - depth))
			p[1] = uint8(sample(1, i) << (8 - depth))
			p[2] = uint8(sample(2, i) << (8 - depth))
			p[3] = 0xFF
		}
		return img, nil
	default:
		img := image.NewRGBA64(rect)
		for i := 0; i < n; i++ {
			img.SetRGBA64(i%w, i/w, color.RGBA64{
				R: uint16(sample(0, i) << (16 - depth)),
				G: uint16(sample(1, i) << (16 - depth)),
				B: uint16(sample(2, i) << (16 - depth)),
				A: 0xFFFF,
			})
		}
		return img, nil
	}
}
