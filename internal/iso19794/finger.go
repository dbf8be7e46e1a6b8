package iso19794

import "fmt"

const (
	fingerFormatID = "FIR\x00"
	fingerVersion  = "020\x00"
)

// Finger image compression algorithms (ISO/IEC 19794-4:2011, table 4).
const (
	FingerCompressionNone          = 0
	FingerCompressionNoneBitPacked = 1
	FingerCompressionWSQ           = 2
	FingerCompressionJPEG          = 3
	FingerCompressionJPEG2000Lossy = 4
	FingerCompressionJPEG2000      = 5
	FingerCompressionPNG           = 6
)

type FingerRecord struct {
	Header                 GeneralHeader
	DistinctPositionsCount uint8
	Representations        []FingerRepresentation
}

type FingerRepresentation struct {
	CaptureTime          CaptureDateTime
	Device               CaptureDevice
	Quality              []QualityBlock
	Certifications       []CertificationBlock
	Position             uint8
	RepresentationNumber uint8
	ScaleUnits           uint8
	ScanResolutionX      uint16
	ScanResolutionY      uint16
	ImageResolutionX     uint16
	ImageResolutionY     uint16
	BitDepth             uint8
	Compression          uint8
	Impression           uint8
	Width                uint16
	Height               uint16
	Image                []byte
}

// Compression reports the compression algorithm of the first representation.
func (r *FingerRecord) Compression() int {
	return int(r.Representations[0].Compression)
}

// Image returns the embedded image of the first representation.
func (r *FingerRecord) Image() []byte {
	return r.Representations[0].Image
}

func DecodeFinger(version string, data []byte) (*FingerRecord, error) {
	if err := checkVersion(version, VersionFinger2011); err != nil {
		return nil, err
	}

	r := newReader(data)
	header, err := r.readGeneralHeader(fingerFormatID, fingerVersion)
	if err != nil {
		return nil, fmt.Errorf("finger record: %w", err)
	}
	distinct, err := r.u8("distinct positions")
	if err != nil {
		return nil, fmt.Errorf("finger record: %w", err)
	}

	record := &FingerRecord{
		Header:                 header,
		DistinctPositionsCount: distinct,
		Representations:        make([]FingerRepresentation, 0, header.RepresentationCount),
	}
	for i := 0; i < int(header.RepresentationCount); i++ {
		rep, err := readFingerRepresentation(r, header.CertificationFlag)
		if err != nil {
			return nil, fmt.Errorf("finger representation %d: %w", i, err)
		}
		record.Representations = append(record.Representations, rep)
	}
	return record, nil
}

func readFingerRepresentation(r *reader, certFlag uint8) (FingerRepresentation, error) {
	var rep FingerRepresentation

	body, err := r.representation()
	if err != nil {
		return rep, err
	}
	if rep.CaptureTime, err = body.readCaptureDateTime(); err != nil {
		return rep, err
	}
	if rep.Device, err = body.readCaptureDevice(); err != nil {
		return rep, err
	}
	if rep.Quality, err = body.readQualityBlocks(); err != nil {
		return rep, err
	}
	if rep.Certifications, err = body.readCertificationBlocks(certFlag); err != nil {
		return rep, err
	}

	if err := body.need(18, "finger image header"); err != nil {
		return rep, err
	}
	rep.Position, _ = body.u8("position")
	rep.RepresentationNumber, _ = body.u8("representation number")
	rep.ScaleUnits, _ = body.u8("scale units")
	rep.ScanResolutionX, _ = body.u16("scan resolution x")
	rep.ScanResolutionY, _ = body.u16("scan resolution y")
	rep.ImageResolutionX, _ = body.u16("image resolution x")
	rep.ImageResolutionY, _ = body.u16("image resolution y")
	rep.BitDepth, _ = body.u8("bit depth")
	rep.Compression, _ = body.u8("compression")
	rep.Impression, _ = body.u8("impression")
	rep.Width, _ = body.u16("width")
	rep.Height, _ = body.u16("height")

	imageLength, err := body.u32("image length")
	if err != nil {
		return rep, err
	}
	if rep.Image, err = body.bytes(int(imageLength), "image data"); err != nil {
		return rep, err
	}
	return rep, nil
}
