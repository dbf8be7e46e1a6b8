package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dunamismax/bioconvert/internal/iso19794"
)

// runWrap embeds a raw image into a single-representation ISO/IEC 19794 record. The
// tag is the modality's compression, image data type or image format code.
func runWrap(args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("wrap", flag.ContinueOnError)
	fs.SetOutput(stdout)
	modality := fs.String("modality", "finger", "record modality: finger, face or iris")
	tag := fs.Uint("tag", iso19794.FingerCompressionWSQ, "compression or image data type code")
	width := fs.Uint("width", 0, "image width written to the record")
	height := fs.Uint("height", 0, "image height written to the record")
	out := fs.String("out", "", "output path (default: <image>.iso)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("exactly one image file is required")
	}
	if *tag > 0xFF {
		return fmt.Errorf("tag %d does not fit in one byte", *tag)
	}
	if *width > 0xFFFF || *height > 0xFFFF {
		return fmt.Errorf("dimensions %dx%d exceed 65535", *width, *height)
	}

	in := fs.Arg(0)
	img, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}

	record, err := wrapRecord(*modality, uint8(*tag), uint16(*width), uint16(*height), img, time.Now().UTC())
	if err != nil {
		return err
	}

	dst := *out
	if dst == "" {
		dst = in + ".iso"
	}
	if err := os.WriteFile(dst, record, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	logger.Printf("wrapped modality=%s tag=%d input=%s output=%s bytes=%d", *modality, *tag, in, dst, len(record))
	fmt.Fprintln(stdout, dst)
	return nil
}

// wrapRecord stamps the single representation with capturedAt.
func wrapRecord(modality string, tag uint8, width, height uint16, img []byte, capturedAt time.Time) ([]byte, error) {
	captured := iso19794.CaptureDateTimeOf(capturedAt)
	switch modality {
	case "finger":
		return iso19794.EncodeFinger(&iso19794.FingerRecord{
			DistinctPositionsCount: 1,
			Representations: []iso19794.FingerRepresentation{{
				CaptureTime: captured,
				BitDepth:    8,
				Compression: tag,
				Width:       width,
				Height:      height,
				Image:       img,
			}},
		})
	case "face":
		return iso19794.EncodeFace(&iso19794.FaceRecord{
			Representations: []iso19794.FaceRepresentation{{
				CaptureTime:   captured,
				ImageDataType: tag,
				Width:         width,
				Height:        height,
				Image:         img,
			}},
		})
	case "iris":
		return iso19794.EncodeIris(&iso19794.IrisRecord{
			EyesRepresented: 1,
			Representations: []iso19794.IrisRepresentation{{
				CaptureTime: captured,
				ImageFormat: tag,
				BitDepth:    8,
				Width:       width,
				Height:      height,
				Image:       img,
			}},
		})
	default:
		return nil, fmt.Errorf("unknown modality %q", modality)
	}
}
