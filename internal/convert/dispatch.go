package convert

import (
	"errors"
	"fmt"
	"image"

	"github.com/dunamismax/bioconvert/internal/iso19794"
	"github.com/dunamismax/bioconvert/internal/raster"
)

type RasterDecodeFunc func(data []byte) (image.Image, error)

// RasterCodecs are the decoders the dispatch table routes to.
type RasterCodecs struct {
	Generic RasterDecodeFunc
	WSQ     RasterDecodeFunc
}

func DefaultRasterCodecs() RasterCodecs {
	return RasterCodecs{
		Generic: raster.DecodeGeneric,
		WSQ:     raster.DecodeWSQ,
	}
}

type rasterKey struct {
	modality Modality
	tag      int
}

type dispatchTable map[rasterKey]RasterDecodeFunc

func newDispatchTable(c RasterCodecs) dispatchTable {
	return dispatchTable{
		{ModalityFinger, iso19794.FingerCompressionJPEG2000Lossy}: c.Generic,
		{ModalityFinger, iso19794.FingerCompressionJPEG2000}:      c.Generic,
		{ModalityFinger, iso19794.FingerCompressionWSQ}:           c.WSQ,
		{ModalityFace, iso19794.FaceImageDataJPEG2000Lossy}:       c.Generic,
		{ModalityFace, iso19794.FaceImageDataJPEG2000}:            c.Generic,
		{ModalityIris, iso19794.IrisImageMonoJPEG2000}:            c.Generic,
	}
}

var errNoImage = errors.New("decoder returned no image")

func (t dispatchTable) decode(rec DecodedRecord) (image.Image, error) {
	decode, ok := t[rasterKey{rec.Modality, rec.Tag}]
	if !ok || decode == nil {
		return nil, NewError(KindUnsupportedCompression, fmt.Errorf("%s tag %d", rec.Modality, rec.Tag))
	}
	if len(rec.Image) == 0 {
		return nil, NewError(KindRasterDecodeFailed, raster.ErrEmptyInput)
	}

	img, err := decode(rec.Image)
	if err != nil {
		return nil, NewError(KindRasterDecodeFailed, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, NewError(KindRasterDecodeFailed, errNoImage)
	}
	return img, nil
}
