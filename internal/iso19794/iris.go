package iso19794

import "fmt"

const (
	irisFormatID = "IIR\x00"
	irisVersion  = "020\x00"
)

// Iris image formats (ISO/IEC 19794-6:2011, table 5).
const (
	IrisImageMonoRaw      = 0x02
	IrisImageRGBRaw       = 0x04
	IrisImageMonoJPEG     = 0x06
	IrisImageRGBJPEG      = 0x08
	IrisImageMonoJPEG2000 = 0x0A
	IrisImageMonoPNG      = 0x0E
	IrisImageRGBPNG       = 0x10
)

type IrisRecord struct {
	Header          GeneralHeader
	EyesRepresented uint8
	Representations []IrisRepresentation
}

type IrisRepresentation struct {
	CaptureTime          CaptureDateTime
	Device               CaptureDevice
	Quality              []QualityBlock
	Certifications       []CertificationBlock
	RepresentationNumber uint16
	EyeLabel             uint8
	ImageType            uint8
	ImageFormat          uint8
	Properties           uint8
	Width                uint16
	Height               uint16
	BitDepth             uint8
	Range                uint16
	RollAngle            uint16
	RollUncertainty      uint16
	CentreSmallestX      uint16
	CentreLargestX       uint16
	CentreSmallestY      uint16
	CentreLargestY       uint16
	DiameterSmallest     uint16
	DiameterLargest      uint16
	Image                []byte
}

// ImageFormat reports the image format of the first representation.
func (r *IrisRecord) ImageFormat() int {
	return int(r.Representations[0].ImageFormat)
}

func (r *IrisRecord) Image() []byte {
	return r.Representations[0].Image
}

func DecodeIris(version string, data []byte) (*IrisRecord, error) {
	if err := checkVersion(version, VersionIris2011); err != nil {
		return nil, err
	}

	r := newReader(data)
	header, err := r.readGeneralHeader(irisFormatID, irisVersion)
	if err != nil {
		return nil, fmt.Errorf("iris record: %w", err)
	}
	eyes, err := r.u8("eyes represented")
	if err != nil {
		return nil, fmt.Errorf("iris record: %w", err)
	}

	record := &IrisRecord{
		Header:          header,
		EyesRepresented: eyes,
		Representations: make([]IrisRepresentation, 0, header.RepresentationCount),
	}
	for i := 0; i < int(header.RepresentationCount); i++ {
		rep, err := readIrisRepresentation(r, header.CertificationFlag)
		if err != nil {
			return nil, fmt.Errorf("iris representation %d: %w", i, err)
		}
		record.Representations = append(record.Representations, rep)
	}
	return record, nil
}

func readIrisRepresentation(r *reader, certFlag uint8) (IrisRepresentation, error) {
	var rep IrisRepresentation

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

	if err := body.need(29, "iris image header"); err != nil {
		return rep, err
	}
	rep.RepresentationNumber, _ = body.u16("representation number")
	rep.EyeLabel, _ = body.u8("eye label")
	rep.ImageType, _ = body.u8("image type")
	rep.ImageFormat, _ = body.u8("image format")
	rep.Properties, _ = body.u8("image properties")
	rep.Width, _ = body.u16("width")
	rep.Height, _ = body.u16("height")
	rep.BitDepth, _ = body.u8("bit depth")
	rep.Range, _ = body.u16("range")
	rep.RollAngle, _ = body.u16("roll angle")
	rep.RollUncertainty, _ = body.u16("roll angle uncertainty")
	rep.CentreSmallestX, _ = body.u16("iris centre smallest x")
	rep.CentreLargestX, _ = body.u16("iris centre largest x")
	rep.CentreSmallestY, _ = body.u16("iris centre smallest y")
	rep.CentreLargestY, _ = body.u16("iris centre largest y")
	rep.DiameterSmallest, _ = body.u16("iris diameter smallest")
	rep.DiameterLargest, _ = body.u16("iris diameter largest")

	imageLength, err := body.u32("image length")
	if err != nil {
		return rep, err
	}
	if rep.Image, err = body.bytes(int(imageLength), "image data"); err != nil {
		return rep, err
	}
	return rep, nil
}
