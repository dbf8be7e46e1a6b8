package convert

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure. Every kind maps to one stable error code.
type Kind int

const (
	KindTechnical Kind = iota
	KindInvalidRequest
	KindEmptySource
	KindInvalidSourceFormat
	KindInvalidTargetFormat
	KindUnsupportedTargetFormat
	KindEmptySourceValue
	KindInvalidBase64
	KindRasterDecodeFailed
	KindInvalidFingerRecord
	KindInvalidFaceRecord
	KindInvalidIrisRecord
	KindUnsupportedCompression
)

type kindInfo struct {
	name    string
	code    string
	message string
}

var kinds = map[Kind]kindInfo{
	KindTechnical:               {"Technical", "MOS-CNV-500", "technical error"},
	KindInvalidRequest:          {"InvalidRequest", "MOS-CNV-001", "request, source format or target format is missing"},
	KindEmptySource:             {"EmptySource", "MOS-CNV-500", "source values must not be empty"},
	KindInvalidSourceFormat:     {"InvalidSourceFormat", "MOS-CNV-003", "invalid source format"},
	KindInvalidTargetFormat:     {"InvalidTargetFormat", "MOS-CNV-004", "invalid target format"},
	KindUnsupportedTargetFormat: {"UnsupportedTargetFormat", "MOS-CNV-004", "target format not supported"},
	KindEmptySourceValue:        {"EmptySourceValue", "MOS-CNV-005", "source value must not be blank"},
	KindInvalidBase64:           {"InvalidBase64", "MOS-CNV-006", "source value is not url-safe base64"},
	KindRasterDecodeFailed:      {"RasterDecodeFailed", "MOS-CNV-007", "could not decode embedded image"},
	KindInvalidFingerRecord:     {"InvalidFingerRecord", "MOS-CNV-008", "source value is not a valid finger ISO record"},
	KindInvalidFaceRecord:       {"InvalidFaceRecord", "MOS-CNV-009", "source value is not a valid face ISO record"},
	KindInvalidIrisRecord:       {"InvalidIrisRecord", "MOS-CNV-010", "source value is not a valid iris ISO record"},
	KindUnsupportedCompression:  {"UnsupportedCompression", "MOS-CNV-011", "compression type not supported"},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the caller-visible error code of k.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[KindTechnical].code
}

// Error is the only error type returned by Converter.Convert. Err, when set, carries
// the underlying diagnostic and never influences Code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Key != "" {
		msg += " (key " + e.Key + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can compare against
// NewError(kind, nil).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func NewError(kind Kind, err error) *Error {
	info, ok := kinds[kind]
	if !ok {
		info = kinds[KindTechnical]
	}
	return &Error{Kind: kind, Code: info.code, Message: info.message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindTechnical.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTechnical
}

// CodeOf returns the error code of err; errors outside the taxonomy are technical.
func CodeOf(err error) string {
	return KindOf(err).Code()
}
