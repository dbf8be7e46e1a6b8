//go:build !govips || !cgo

package raster

func Startup() error {
	return nil
}

func Shutdown() {}

func newJPEG2000Backend() jpeg2000Backend {
	return pureJPEG2000{}
}
