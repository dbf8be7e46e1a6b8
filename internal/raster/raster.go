// Package raster decodes the images embedded in biometric records and encodes
// converted images. JPEG2000 goes through a pluggable backend: pure Go by default,
// libvips when built with the govips tag.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dunamismax/bioconvert/internal/wsq"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the area of any image this package decodes. Dimensions come
// from the stream header and are checked before pixel buffers are allocated.
const MaxPixels = wsq.MaxPixels

var (
	ErrEmptyInput        = errors.New("raster: empty input")
	ErrEmptyImage        = errors.New("raster: decoded image has no pixels")
	ErrTooLarge          = errors.New("raster: image exceeds the pixel limit")
	ErrUnsupportedFormat = errors.New("raster: unsupported image format")
)

// jpeg2000Backend turns a JP2 file or raw J2K codestream into an image.
type jpeg2000Backend interface {
	Decode(data []byte) (image.Image, error)
}

var j2k = newJPEG2000Backend()

// DecodeGeneric decodes JPEG2000 (JP2 or raw codestream) through the JPEG2000
// backend and JPEG, PNG, BMP, TIFF or WebP through image.Decode. WSQ is only
// accepted by DecodeWSQ.
func DecodeGeneric(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	if IsJPEG2000(data) {
		width, height, err := jpeg2000Size(data)
		if err != nil {
			return nil, fmt.Errorf("decode jpeg2000: %w", err)
		}
		if err := checkSize(uint64(width), uint64(height)); err != nil {
			return nil, err
		}
		img, err := j2k.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode jpeg2000: %w", err)
		}
		return checkImage(img)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "wsq" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := checkSize(uint64(cfg.Width), uint64(cfg.Height)); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return checkImage(img)
}

func checkSize(width, height uint64) error {
	if width > MaxPixels || height > MaxPixels || width*height > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}
	return nil
}

// DecodeWSQ decodes an FBI WSQ fingerprint image.
func DecodeWSQ(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	img, err := wsq.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode wsq: %w", err)
	}
	return checkImage(img)
}

func checkImage(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}
