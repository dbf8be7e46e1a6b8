package convert

import "github.com/dunamismax/bioconvert/internal/iso19794"

type Modality int

const (
	ModalityFinger Modality = iota + 1
	ModalityFace
	ModalityIris
)

func (m Modality) String() string {
	switch m {
	case ModalityFinger:
		return "finger"
	case ModalityFace:
		return "face"
	case ModalityIris:
		return "iris"
	default:
		return "unknown"
	}
}

// SourceFormat is a recognised input record format. Version is the token handed to
// the record decoder.
type SourceFormat struct {
	Token    string
	Modality Modality
	Version  string
}

var (
	SourceFinger2011 = SourceFormat{Token: "ISO19794_4_2011", Modality: ModalityFinger, Version: iso19794.VersionFinger2011}
	SourceFace2011   = SourceFormat{Token: "ISO19794_5_2011", Modality: ModalityFace, Version: iso19794.VersionFace2011}
	SourceIris2011   = SourceFormat{Token: "ISO19794_6_2011", Modality: ModalityIris, Version: iso19794.VersionIris2011}
)

var sourceFormats = map[string]SourceFormat{
	SourceFinger2011.Token: SourceFinger2011,
	SourceFace2011.Token:   SourceFace2011,
	SourceIris2011.Token:   SourceIris2011,
}

// ResolveSource matches token exactly and case-sensitively.
func ResolveSource(token string) (SourceFormat, error) {
	f, ok := sourceFormats[token]
	if !ok {
		return SourceFormat{}, NewError(KindInvalidSourceFormat, nil)
	}
	return f, nil
}

type container int

const (
	containerNone container = iota
	containerJPEG
	containerPNG
)

// TargetFormat is a recognised output format. Only the generic image containers
// are implemented; per-record-format targets are declared but not supported.
type TargetFormat struct {
	Token     string
	container container
}

// Supported reports whether the converter can produce this target.
func (t TargetFormat) Supported() bool {
	return t.container != containerNone
}

var (
	TargetJPEG = TargetFormat{Token: "IMAGE/JPEG", container: containerJPEG}
	TargetPNG  = TargetFormat{Token: "IMAGE/PNG", container: containerPNG}
)

var targetFormats = map[string]TargetFormat{
	TargetJPEG.Token:       TargetJPEG,
	TargetPNG.Token:        TargetPNG,
	"ISO19794_4_2011/JPEG": {Token: "ISO19794_4_2011/JPEG"},
	"ISO19794_5_2011/JPEG": {Token: "ISO19794_5_2011/JPEG"},
	"ISO19794_6_2011/JPEG": {Token: "ISO19794_6_2011/JPEG"},
	"ISO19794_4_2011/PNG":  {Token: "ISO19794_4_2011/PNG"},
	"ISO19794_5_2011/PNG":  {Token: "ISO19794_5_2011/PNG"},
	"ISO19794_6_2011/PNG":  {Token: "ISO19794_6_2011/PNG"},
}

// ResolveTarget matches token exactly and case-sensitively. An unsupported but
// recognised target resolves successfully; Convert rejects it before decoding.
func ResolveTarget(token string) (TargetFormat, error) {
	f, ok := targetFormats[token]
	if !ok {
		return TargetFormat{}, NewError(KindInvalidTargetFormat, nil)
	}
	return f, nil
}
