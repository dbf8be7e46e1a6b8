// Package wsq decodes Wavelet Scalar Quantization (WSQ) grayscale fingerprint images
// as produced by the FBI WSQ 3.1 encoders. Decoding follows the reference decoder:
// tables, Huffman-coded subband data, dequantization and a 20-node inverse wavelet
// reconstruction.
//
// Importing the package registers the "wsq" format with the image package.
package wsq

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const (
	markerSOI = 0xFFA0
	markerEOI = 0xFFA1
	markerSOF = 0xFFA2
	markerSOB = 0xFFA3
	markerDTT = 0xFFA4
	markerDQT = 0xFFA5
	markerDHT = 0xFFA6
	markerDRT = 0xFFA7
	markerCOM = 0xFFA8
)

// MaxPixels bounds the frame area Decode accepts. Coefficient planes are sized
// from the frame header alone, so the check runs before any of them is allocated.
const MaxPixels = 1 << 24

var (
	ErrFormat    = errors.New("wsq: not a WSQ image")
	ErrTruncated = errors.New("wsq: truncated data")
	ErrCorrupt   = errors.New("wsq: corrupt data")
)

// FrameHeader carries the SOF parameters of a WSQ image.
type FrameHeader struct {
	Black    uint8
	White    uint8
	Width    int
	Height   int
	MShift   float64
	RScale   float64
	Encoder  uint8
	Software uint16
}

func init() {
	image.RegisterFormat("wsq", "\xff\xa0", decodeImage, decodeImageConfig)
}

// Decode reconstructs the 8-bit grayscale image held in data.
func Decode(data []byte) (*image.Gray, error) {
	d := &decoder{r: &reader{buf: data}}
	if err := d.readHeaders(); err != nil {
		return nil, err
	}

	width, height := d.frame.Width, d.frame.Height
	w, q := buildTrees(width, height)

	qdata, err := d.readBlocks(q)
	if err != nil {
		return nil, err
	}

	fdata := unquantize(qdata, &d.dqt, q, width, height)
	if err := reconstruct(fdata, width, height, w, &d.dtt); err != nil {
		return nil, err
	}
	return toGray(fdata, width, height, d.frame.MShift, d.frame.RScale), nil
}

// DecodeHeader reads the tables and frame header without decoding image data.
func DecodeHeader(data []byte) (FrameHeader, error) {
	d := &decoder{r: &reader{buf: data}}
	if err := d.readHeaders(); err != nil {
		return FrameHeader{}, err
	}
	return d.frame, nil
}

func decodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wsq: read: %w", err)
	}
	return Decode(data)
}

func decodeImageConfig(r io.Reader) (image.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("wsq: read: %w", err)
	}
	frame, err := DecodeHeader(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.GrayModel, Width: frame.Width, Height: frame.Height}, nil
}

func toGray(fdata []float64, width, height int, mShift, rScale float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width]
		for x := range row {
			v := fdata[y*width+x]*rScale + mShift + 0.5
			switch {
			case v < 0:
				row[x] = 0
			case v > 255:
				row[x] = 255
			default:
				row[x] = uint8(v)
			}
		}
	}
	return img
}
