package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/cocosip/go-dicom-codec/jpeg2000"
	"github.com/dunamismax/bioconvert/internal/wsq/wsqtest"
)

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 256)})
		}
	}
	return img
}

func encodeJ2K(t *testing.T, img *image.Gray) []byte {
	t.Helper()

	b := img.Bounds()
	params := jpeg2000.DefaultEncodeParams(b.Dx(), b.Dy(), 1, 8, false)
	params.NumLevels = 2
	data, err := jpeg2000.NewEncoder(params).Encode(img.Pix)
	if err != nil {
		t.Fatalf("encode jpeg2000: %v", err)
	}
	return data
}

func TestDecodeGenericJPEG2000(t *testing.T) {
	src := gradient(16, 12)
	codestream := encodeJ2K(t, src)

	for name, data := range map[string][]byte{
		"raw codestream": codestream,
		"jp2 file":       WrapJP2(codestream),
	} {
		t.Run(name, func(t *testing.T) {
			if !IsJPEG2000(data) {
				t.Fatalf("expected data to be recognised as jpeg2000")
			}
			img, err := DecodeGeneric(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds() != src.Bounds() {
				t.Fatalf("expected bounds %v, got %v", src.Bounds(), img.Bounds())
			}
			for y := 0; y < 12; y++ {
				for x := 0; x < 16; x++ {
					got := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
					if want := src.GrayAt(x, y).Y; got != want {
						t.Fatalf("lossless pixel (%d,%d): expected %d, got %d", x, y, want, got)
					}
				}
			}
		})
	}
}

func TestDecodeGenericStdlibFormats(t *testing.T) {
	src := gradient(9, 5)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, src); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, src, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	for name, data := range map[string][]byte{"png": pngBuf.Bytes(), "jpeg": jpegBuf.Bytes()} {
		img, err := DecodeGeneric(data)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if img.Bounds().Dx() != 9 || img.Bounds().Dy() != 5 {
			t.Fatalf("%s: unexpected bounds %v", name, img.Bounds())
		}
	}
}

func TestDecodeGenericRejectsGarbage(t *testing.T) {
	if _, err := DecodeGeneric(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := DecodeGeneric([]byte("not an image at all")); err == nil {
		t.Fatalf("expected error for unknown data")
	}
	truncated := WrapJP2([]byte{0xFF, 0x4F, 0xFF, 0x51, 0x00})
	if _, err := DecodeGeneric(truncated); err == nil {
		t.Fatalf("expected error for truncated codestream")
	}
}

func TestCodestreamUnwrapsBoxes(t *testing.T) {
	cs := []byte{0xFF, 0x4F, 0xFF, 0x51, 1, 2, 3}
	got, err := Codestream(WrapJP2(cs))
	if err != nil {
		t.Fatalf("codestream: %v", err)
	}
	if !bytes.Equal(got, cs) {
		t.Fatalf("expected %v, got %v", cs, got)
	}

	noCodestream := append([]byte(nil), jp2Signature...)
	if _, err := Codestream(noCodestream); !errors.Is(err, ErrNoCodestream) {
		t.Fatalf("expected ErrNoCodestream, got %v", err)
	}

	overrun := append(append([]byte(nil), jp2Signature...), 0x00, 0x00, 0x10, 0x00, 'j', 'p', '2', 'c')
	if _, err := Codestream(overrun); err == nil {
		t.Fatalf("expected error for overrunning box")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	src := gradient(20, 10)

	pngData, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("encode png: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			if got := color.GrayModel.Convert(decoded.At(x, y)).(color.Gray).Y; got != src.GrayAt(x, y).Y {
				t.Fatalf("png is lossy at (%d,%d)", x, y)
			}
		}
	}

	jpegData, err := EncodeJPEG(src)
	if err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(jpegData))
	if err != nil {
		t.Fatalf("decode jpeg config: %v", err)
	}
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Fatalf("expected 20x10 jpeg, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDecodeWSQRejectsEmpty(t *testing.T) {
	if _, err := DecodeWSQ(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := DecodeWSQ([]byte{0xFF, 0xA0, 0x00}); err == nil {
		t.Fatalf("expected error for truncated wsq")
	}
}

// sizHeader is the start of a codestream declaring a width x height image.
func sizHeader(width, height uint32) []byte {
	cs := []byte{0xFF, 0x4F, 0xFF, 0x51, 0x00, 0x29, 0x00, 0x00}
	for _, v := range []uint32{width, height, 0, 0} {
		cs = binary.BigEndian.AppendUint32(cs, v)
	}
	return append(cs, make([]byte, 24)...)
}

// pngHeader is a grayscale PNG signature and IHDR chunk with no image data.
func pngHeader(width, height uint32) []byte {
	ihdr := []byte("IHDR")
	ihdr = binary.BigEndian.AppendUint32(ihdr, width)
	ihdr = binary.BigEndian.AppendUint32(ihdr, height)
	ihdr = append(ihdr, 8, 0, 0, 0, 0)

	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, 13)
	out = append(out, ihdr...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(ihdr))
}

func TestDecodeGenericRejectsOversizedImages(t *testing.T) {
	for name, data := range map[string][]byte{
		"raw codestream":  sizHeader(100000, 100000),
		"jp2 file":        WrapJP2(sizHeader(65535, 65535)),
		"wide codestream": sizHeader(MaxPixels+1, 1),
		"png":             pngHeader(70000, 70000),
	} {
		if _, err := DecodeGeneric(data); !errors.Is(err, ErrTooLarge) {
			t.Fatalf("%s: expected ErrTooLarge, got %v", name, err)
		}
	}
}

func TestDecodeGenericRejectsEmptyCodestreamArea(t *testing.T) {
	cs := sizHeader(10, 10)
	binary.BigEndian.PutUint32(cs[16:], 10)
	if _, err := DecodeGeneric(cs); err == nil || errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected an empty-area error, got %v", err)
	}
}

func TestDecodeGenericRejectsWSQ(t *testing.T) {
	if _, err := DecodeGeneric(wsqtest.Blank(16, 16)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := DecodeWSQ(wsqtest.Blank(16, 16)); err != nil {
		t.Fatalf("expected the wsq decoder to accept it, got %v", err)
	}
}
