package convert

import (
	"image"

	"github.com/dunamismax/bioconvert/internal/raster"
)

func encodeRaster(target TargetFormat, img image.Image) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch target.container {
	case containerJPEG:
		data, err = raster.EncodeJPEG(img)
	case containerPNG:
		data, err = raster.EncodePNG(img)
	default:
		return nil, NewError(KindUnsupportedTargetFormat, nil)
	}
	if err != nil {
		return nil, NewError(KindTechnical, err)
	}
	return data, nil
}
