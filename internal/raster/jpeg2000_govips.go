//go:build govips && cgo

package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

// govipsJPEG2000 decodes through libvips (openjpeg). Streams libvips was built
// without support for fall back to the pure-Go codec.
type govipsJPEG2000 struct {
	fallback jpeg2000Backend
}

func (g govipsJPEG2000) Decode(data []byte) (image.Image, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return g.fallback.Decode(data)
	}
	defer ref.Close()

	// PNG keeps every sample exact on the way out of libvips.
	out, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export decoded jpeg2000: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("read decoded jpeg2000: %w", err)
	}
	return img, nil
}
