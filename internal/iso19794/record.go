// Package iso19794 reads and writes the 2011 editions of the ISO/IEC 19794 biometric
// data interchange records for finger images (part 4), face images (part 5) and iris
// images (part 6). Only the fields needed to locate the embedded image and its
// compression are interpreted; everything else is kept verbatim.
package iso19794

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	VersionFinger2011 = "ISO19794_4_2011"
	VersionFace2011   = "ISO19794_5_2011"
	VersionIris2011   = "ISO19794_6_2011"
)

var (
	ErrTruncated        = errors.New("truncated record")
	ErrFormat           = errors.New("invalid format identifier")
	ErrVersion          = errors.New("unsupported record version")
	ErrNoRepresentation = errors.New("record has no representation")
)

type GeneralHeader struct {
	FormatID            [4]byte
	Version             [4]byte
	RecordLength        uint32
	RepresentationCount uint16
	CertificationFlag   uint8
}

type CaptureDateTime struct {
	Year        uint16
	Month       uint8
	Day         uint8
	Hour        uint8
	Minute      uint8
	Second      uint8
	Millisecond uint16
}

// CaptureDateTimeOf converts t to the record's UTC capture timestamp.
func CaptureDateTimeOf(t time.Time) CaptureDateTime {
	t = t.UTC()
	return CaptureDateTime{
		Year:        uint16(t.Year()),
		Month:       uint8(t.Month()),
		Day:         uint8(t.Day()),
		Hour:        uint8(t.Hour()),
		Minute:      uint8(t.Minute()),
		Second:      uint8(t.Second()),
		Millisecond: uint16(t.Nanosecond() / int(time.Millisecond)),
	}
}

type QualityBlock struct {
	Score       uint8
	VendorID    uint16
	AlgorithmID uint16
}

type CertificationBlock struct {
	AuthorityID uint16
	SchemeID    uint8
}

// CaptureDevice groups the device fields shared by every 2011 representation header.
type CaptureDevice struct {
	Technology uint8
	VendorID   uint16
	TypeID     uint16
}

type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) need(n int, field string) error {
	if n < 0 || r.remaining() < n {
		return fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left", ErrTruncated, field, n, r.off, r.remaining())
	}
	return nil
}

func (r *reader) u8(field string) (uint8, error) {
	if err := r.need(1, field); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16(field string) (uint16, error) {
	if err := r.need(2, field); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u24(field string) (uint32, error) {
	if err := r.need(3, field); err != nil {
		return 0, err
	}
	b := r.buf[r.off:]
	r.off += 3
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *reader) u32(field string) (uint32, error) {
	if err := r.need(4, field); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int, field string) ([]byte, error) {
	if err := r.need(n, field); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

// readGeneralHeader reads the 15 bytes every 2011 part shares; the trailing
// part-specific fields are read by the caller.
func (r *reader) readGeneralHeader(formatID, version string) (GeneralHeader, error) {
	var h GeneralHeader
	if err := r.need(15, "general header"); err != nil {
		return h, err
	}
	copy(h.FormatID[:], r.buf[r.off:r.off+4])
	copy(h.Version[:], r.buf[r.off+4:r.off+8])
	r.off += 8

	if string(h.FormatID[:]) != formatID {
		return h, fmt.Errorf("%w: got %q, want %q", ErrFormat, h.FormatID[:], formatID)
	}
	if string(h.Version[:]) != version {
		return h, fmt.Errorf("%w: got %q, want %q", ErrVersion, h.Version[:], version)
	}

	var err error
	if h.RecordLength, err = r.u32("record length"); err != nil {
		return h, err
	}
	if int(h.RecordLength) > len(r.buf) {
		return h, fmt.Errorf("%w: record length %d exceeds %d available bytes", ErrTruncated, h.RecordLength, len(r.buf))
	}
	if h.RepresentationCount, err = r.u16("representation count"); err != nil {
		return h, err
	}
	if h.RepresentationCount == 0 {
		return h, ErrNoRepresentation
	}
	if h.CertificationFlag, err = r.u8("certification flag"); err != nil {
		return h, err
	}
	return h, nil
}

func (r *reader) readCaptureDateTime() (CaptureDateTime, error) {
	var (
		c   CaptureDateTime
		err error
	)
	if err = r.need(9, "capture date time"); err != nil {
		return c, err
	}
	c.Year, _ = r.u16("year")
	c.Month, _ = r.u8("month")
	c.Day, _ = r.u8("day")
	c.Hour, _ = r.u8("hour")
	c.Minute, _ = r.u8("minute")
	c.Second, _ = r.u8("second")
	c.Millisecond, _ = r.u16("millisecond")
	return c, nil
}

func (r *reader) readCaptureDevice() (CaptureDevice, error) {
	var d CaptureDevice
	if err := r.need(5, "capture device"); err != nil {
		return d, err
	}
	d.Technology, _ = r.u8("device technology")
	d.VendorID, _ = r.u16("device vendor")
	d.TypeID, _ = r.u16("device type")
	return d, nil
}

func (r *reader) readQualityBlocks() ([]QualityBlock, error) {
	n, err := r.u8("quality block count")
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)*5, "quality blocks"); err != nil {
		return nil, err
	}
	blocks := make([]QualityBlock, n)
	for i := range blocks {
		blocks[i].Score, _ = r.u8("quality score")
		blocks[i].VendorID, _ = r.u16("quality vendor")
		blocks[i].AlgorithmID, _ = r.u16("quality algorithm")
	}
	return blocks, nil
}

func (r *reader) readCertificationBlocks(flag uint8) ([]CertificationBlock, error) {
	if flag == 0 {
		return nil, nil
	}
	n, err := r.u8("certification block count")
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)*3, "certification blocks"); err != nil {
		return nil, err
	}
	blocks := make([]CertificationBlock, n)
	for i := range blocks {
		blocks[i].AuthorityID, _ = r.u16("certification authority")
		blocks[i].SchemeID, _ = r.u8("certification scheme")
	}
	return blocks, nil
}

// representation returns a reader bounded to the next representation and advances r
// past it.
func (r *reader) representation() (*reader, error) {
	start := r.off
	length, err := r.u32("representation length")
	if err != nil {
		return nil, err
	}
	if length < 4 || int(length) > len(r.buf)-start {
		return nil, fmt.Errorf("%w: representation length %d at offset %d", ErrTruncated, length, start)
	}
	rep := &reader{buf: r.buf[:start+int(length)], off: r.off}
	r.off = start + int(length)
	return rep, nil
}

func checkVersion(got, want string) error {
	if got != want {
		return fmt.Errorf("%w: %q does not describe a %s record", ErrVersion, got, want)
	}
	return nil
}
