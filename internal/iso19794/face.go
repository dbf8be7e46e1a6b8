package iso19794

import "fmt"

const (
	faceFormatID = "FAC\x00"
	faceVersion  = "030\x00"
)

// Face image data types (ISO/IEC 19794-5:2011, image information block).
const (
	FaceImageDataJPEG          = 0x00
	FaceImageDataJPEG2000Lossy = 0x01
	FaceImageDataJPEG2000      = 0x02
	FaceImageDataPNG           = 0x03
)

type FaceRecord struct {
	Header            GeneralHeader
	TemporalSemantics uint16
	Representations   []FaceRepresentation
}

type Landmark struct {
	Type uint8
	Code uint8
	X    uint16
	Y    uint16
	Z    uint16
}

type PoseAngle struct {
	Yaw              uint8
	Pitch            uint8
	Roll             uint8
	YawUncertainty   uint8
	PitchUncertainty uint8
	RollUncertainty  uint8
}

type FaceRepresentation struct {
	CaptureTime         CaptureDateTime
	Device              CaptureDevice
	Quality             []QualityBlock
	Certifications      []CertificationBlock
	Gender              uint8
	EyeColour           uint8
	HairColour          uint8
	SubjectHeight       uint8
	PropertyMask        uint32
	Expression          uint16
	Pose                PoseAngle
	Landmarks           []Landmark
	FaceImageType       uint8
	ImageDataType       uint8
	Width               uint16
	Height              uint16
	SpatialSamplingRate uint8
	PostAcquisition     uint16
	CrossReference      uint8
	ColourSpace         uint8
	Image               []byte
}

// ImageDataType reports the image data type of the first representation.
func (r *FaceRecord) ImageDataType() int {
	return int(r.Representations[0].ImageDataType)
}

func (r *FaceRecord) Image() []byte {
	return r.Representations[0].Image
}

func DecodeFace(version string, data []byte) (*FaceRecord, error) {
	if err := checkVersion(version, VersionFace2011); err != nil {
		return nil, err
	}

	r := newReader(data)
	header, err := r.readGeneralHeader(faceFormatID, faceVersion)
	if err != nil {
		return nil, fmt.Errorf("face record: %w", err)
	}
	temporal, err := r.u16("temporal semantics")
	if err != nil {
		return nil, fmt.Errorf("face record: %w", err)
	}

	record := &FaceRecord{
		Header:            header,
		TemporalSemantics: temporal,
		Representations:   make([]FaceRepresentation, 0, header.RepresentationCount),
	}
	for i := 0; i < int(header.RepresentationCount); i++ {
		rep, err := readFaceRepresentation(r, header.CertificationFlag)
		if err != nil {
			return nil, fmt.Errorf("face representation %d: %w", i, err)
		}
		record.Representations = append(record.Representations, rep)
	}
	return record, nil
}

func readFaceRepresentation(r *reader, certFlag uint8) (FaceRepresentation, error) {
	var rep FaceRepresentation

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

	if err := body.need(17, "facial information"); err != nil {
		return rep, err
	}
	landmarkCount, _ := body.u16("landmark count")
	rep.Gender, _ = body.u8("gender")
	rep.EyeColour, _ = body.u8("eye colour")
	rep.HairColour, _ = body.u8("hair colour")
	rep.SubjectHeight, _ = body.u8("subject height")
	rep.PropertyMask, _ = body.u24("property mask")
	rep.Expression, _ = body.u16("expression")
	rep.Pose.Yaw, _ = body.u8("yaw")
	rep.Pose.Pitch, _ = body.u8("pitch")
	rep.Pose.Roll, _ = body.u8("roll")
	rep.Pose.YawUncertainty, _ = body.u8("yaw uncertainty")
	rep.Pose.PitchUncertainty, _ = body.u8("pitch uncertainty")
	rep.Pose.RollUncertainty, _ = body.u8("roll uncertainty")

	if err := body.need(int(landmarkCount)*8, "landmark points"); err != nil {
		return rep, err
	}
	rep.Landmarks = make([]Landmark, landmarkCount)
	for i := range rep.Landmarks {
		lm := &rep.Landmarks[i]
		lm.Type, _ = body.u8("landmark type")
		lm.Code, _ = body.u8("landmark code")
		lm.X, _ = body.u16("landmark x")
		lm.Y, _ = body.u16("landmark y")
		lm.Z, _ = body.u16("landmark z")
	}

	if err := body.need(11, "image information"); err != nil {
		return rep, err
	}
	rep.FaceImageType, _ = body.u8("face image type")
	rep.ImageDataType, _ = body.u8("image data type")
	rep.Width, _ = body.u16("width")
	rep.Height, _ = body.u16("height")
	rep.SpatialSamplingRate, _ = body.u8("spatial sampling rate")
	rep.PostAcquisition, _ = body.u16("post acquisition processing")
	rep.CrossReference, _ = body.u8("cross reference")
	rep.ColourSpace, _ = body.u8("colour space")

	// The image runs to the end of the representation.
	if rep.Image, err = body.bytes(body.remaining(), "image data"); err != nil {
		return rep, err
	}
	if len(rep.Image) == 0 {
		return rep, fmt.Errorf("%w: empty image data", ErrTruncated)
	}
	return rep, nil
}
