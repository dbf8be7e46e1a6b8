package convert

import (
	"fmt"

	"github.com/dunamismax/bioconvert/internal/iso19794"
)

// DecodedRecord is the part of a biometric record the converter needs: the
// compression or encoding tag and the embedded image.
type DecodedRecord struct {
	Modality Modality
	Tag      int
	Image    []byte
}

// RecordDecoder parses one record of a modality and reports the tag and image of
// its first representation.
type RecordDecoder func(version string, data []byte) (tag int, image []byte, err error)

type RecordDecoders struct {
	Finger RecordDecoder
	Face   RecordDecoder
	Iris   RecordDecoder
}

// DefaultRecordDecoders reads ISO/IEC 19794 2011 records.
func DefaultRecordDecoders() RecordDecoders {
	return RecordDecoders{
		Finger: func(version string, data []byte) (int, []byte, error) {
			rec, err := iso19794.DecodeFinger(version, data)
			if err != nil {
				return 0, nil, err
			}
			return rec.Compression(), rec.Image(), nil
		},
		Face: func(version string, data []byte) (int, []byte, error) {
			rec, err := iso19794.DecodeFace(version, data)
			if err != nil {
				return 0, nil, err
			}
			return rec.ImageDataType(), rec.Image(), nil
		},
		Iris: func(version string, data []byte) (int, []byte, error) {
			rec, err := iso19794.DecodeIris(version, data)
			if err != nil {
				return 0, nil, err
			}
			return rec.ImageFormat(), rec.Image(), nil
		},
	}
}

func (d RecordDecoders) extract(modality Modality, version string, raw []byte) (DecodedRecord, error) {
	var (
		decode RecordDecoder
		kind   Kind
	)
	switch modality {
	case ModalityFinger:
		decode, kind = d.Finger, KindInvalidFingerRecord
	case ModalityFace:
		decode, kind = d.Face, KindInvalidFaceRecord
	case ModalityIris:
		decode, kind = d.Iris, KindInvalidIrisRecord
	default:
		return DecodedRecord{}, NewError(KindTechnical, fmt.Errorf("no record decoder for modality %s", modality))
	}
	if decode == nil {
		return DecodedRecord{}, NewError(KindTechnical, fmt.Errorf("no record decoder for modality %s", modality))
	}

	tag, image, err := decode(version, raw)
	if err != nil {
		return DecodedRecord{}, NewError(kind, err)
	}
	return DecodedRecord{Modality: modality, Tag: tag, Image: image}, nil
}
