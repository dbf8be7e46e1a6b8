package iso19794

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrEmpty is returned when encoding a record without representations.
var ErrEmpty = errors.New("record has no representations")

type writer struct {
	bytes.Buffer
}

func (w *writer) u8(v uint8) { w.WriteByte(v) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *writer) u24(v uint32) {
	w.Write([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *writer) captureDateTime(c CaptureDateTime) {
	w.u16(c.Year)
	w.u8(c.Month)
	w.u8(c.Day)
	w.u8(c.Hour)
	w.u8(c.Minute)
	w.u8(c.Second)
	w.u16(c.Millisecond)
}

func (w *writer) captureDevice(d CaptureDevice) {
	w.u8(d.Technology)
	w.u16(d.VendorID)
	w.u16(d.TypeID)
}

func (w *writer) qualityBlocks(blocks []QualityBlock) {
	w.u8(uint8(len(blocks)))
	for _, q := range blocks {
		w.u8(q.Score)
		w.u16(q.VendorID)
		w.u16(q.AlgorithmID)
	}
}

func (w *writer) certificationBlocks(flag uint8, blocks []CertificationBlock) {
	if flag == 0 {
		return
	}
	w.u8(uint8(len(blocks)))
	for _, c := range blocks {
		w.u16(c.AuthorityID)
		w.u8(c.SchemeID)
	}
}

// representation prefixes body with its length, which includes the length field itself.
func (w *writer) representation(body []byte) {
	w.u32(uint32(len(body) + 4))
	w.Write(body)
}

// record assembles the general header, part-specific header tail and the
// representations. headerTail is the bytes that follow the certification flag.
func record(formatID, version string, certFlag uint8, headerTail []byte, reps [][]byte) []byte {
	length := 15 + len(headerTail)
	for _, rep := range reps {
		length += len(rep) + 4
	}

	var w writer
	w.Grow(length)
	w.WriteString(formatID)
	w.WriteString(version)
	w.u32(uint32(length))
	w.u16(uint16(len(reps)))
	w.u8(certFlag)
	w.Write(headerTail)
	for _, rep := range reps {
		w.representation(rep)
	}
	return w.Bytes()
}

// EncodeFinger serialises rec as an ISO/IEC 19794-4:2011 record. The general header's
// length and representation count are derived; the certification flag is taken from rec.
func EncodeFinger(rec *FingerRecord) ([]byte, error) {
	if len(rec.Representations) == 0 {
		return nil, ErrEmpty
	}
	flag := rec.Header.CertificationFlag
	reps := make([][]byte, 0, len(rec.Representations))
	for _, rep := range rec.Representations {
		var w writer
		w.captureDateTime(rep.CaptureTime)
		w.captureDevice(rep.Device)
		w.qualityBlocks(rep.Quality)
		w.certificationBlocks(flag, rep.Certifications)
		w.u8(rep.Position)
		w.u8(rep.RepresentationNumber)
		w.u8(rep.ScaleUnits)
		w.u16(rep.ScanResolutionX)
		w.u16(rep.ScanResolutionY)
		w.u16(rep.ImageResolutionX)
		w.u16(rep.ImageResolutionY)
		w.u8(rep.BitDepth)
		w.u8(rep.Compression)
		w.u8(rep.Impression)
		w.u16(rep.Width)
		w.u16(rep.Height)
		w.u32(uint32(len(rep.Image)))
		w.Write(rep.Image)
		reps = append(reps, w.Bytes())
	}
	return record(fingerFormatID, fingerVersion, flag, []byte{rec.DistinctPositionsCount}, reps), nil
}

func EncodeFace(rec *FaceRecord) ([]byte, error) {
	if len(rec.Representations) == 0 {
		return nil, ErrEmpty
	}
	flag := rec.Header.CertificationFlag
	reps := make([][]byte, 0, len(rec.Representations))
	for _, rep := range rec.Representations {
		var w writer
		w.captureDateTime(rep.CaptureTime)
		w.captureDevice(rep.Device)
		w.qualityBlocks(rep.Quality)
		w.certificationBlocks(flag, rep.Certifications)
		w.u16(uint16(len(rep.Landmarks)))
		w.u8(rep.Gender)
		w.u8(rep.EyeColour)
		w.u8(rep.HairColour)
		w.u8(rep.SubjectHeight)
		w.u24(rep.PropertyMask)
		w.u16(rep.Expression)
		w.u8(rep.Pose.Yaw)
		w.u8(rep.Pose.Pitch)
		w.u8(rep.Pose.Roll)
		w.u8(rep.Pose.YawUncertainty)
		w.u8(rep.Pose.PitchUncertainty)
		w.u8(rep.Pose.RollUncertainty)
		for _, lm := range rep.Landmarks {
			w.u8(lm.Type)
			w.u8(lm.Code)
			w.u16(lm.X)
			w.u16(lm.Y)
			w.u16(lm.Z)
		}
		w.u8(rep.FaceImageType)
		w.u8(rep.ImageDataType)
		w.u16(rep.Width)
		w.u16(rep.Height)
		w.u8(rep.SpatialSamplingRate)
		w.u16(rep.PostAcquisition)
		w.u8(rep.CrossReference)
		w.u8(rep.ColourSpace)
		w.Write(rep.Image)
		reps = append(reps, w.Bytes())
	}
	var tail [2]byte
	binary.BigEndian.PutUint16(tail[:], rec.TemporalSemantics)
	return record(faceFormatID, faceVersion, flag, tail[:], reps), nil
}

func EncodeIris(rec *IrisRecord) ([]byte, error) {
	if len(rec.Representations) == 0 {
		return nil, ErrEmpty
	}
	flag := rec.Header.CertificationFlag
	reps := make([][]byte, 0, len(rec.Representations))
	for _, rep := range rec.Representations {
		var w writer
		w.captureDateTime(rep.CaptureTime)
		w.captureDevice(rep.Device)
		w.qualityBlocks(rep.Quality)
		w.certificationBlocks(flag, rep.Certifications)
		w.u16(rep.RepresentationNumber)
		w.u8(rep.EyeLabel)
		w.u8(rep.ImageType)
		w.u8(rep.ImageFormat)
		w.u8(rep.Properties)
		w.u16(rep.Width)
		w.u16(rep.Height)
		w.u8(rep.BitDepth)
		w.u16(rep.Range)
		w.u16(rep.RollAngle)
		w.u16(rep.RollUncertainty)
		w.u16(rep.CentreSmallestX)
		w.u16(rep.CentreLargestX)
		w.u16(rep.CentreSmallestY)
		w.u16(rep.CentreLargestY)
		w.u16(rep.DiameterSmallest)
		w.u16(rep.DiameterLargest)
		w.u32(uint32(len(rep.Image)))
		w.Write(rep.Image)
		reps = append(reps, w.Bytes())
	}
	return record(irisFormatID, irisVersion, flag, []byte{rec.EyesRepresented}, reps), nil
}
