package wsq

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	maxSubbands  = 64
	numSubbands  = 60
	maxHuffTable = 8
)

type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if len(r.buf)-r.off < n {
		return fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, r.off)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

func (r *reader) marker() (uint16, error) {
	m, err := r.u16()
	if err != nil {
		return 0, err
	}
	if m>>8 != 0xFF {
		return 0, fmt.Errorf("%w: expected marker at offset %d, got %#04x", ErrCorrupt, r.off-2, m)
	}
	return m, nil
}

// scaled reads a scale byte followed by a value of the given width and returns
// value / 10^scale.
func (r *reader) scaled(wide bool) (float64, error) {
	scale, err := r.u8()
	if err != nil {
		return 0, err
	}
	var raw uint32
	if wide {
		raw, err = r.u32()
	} else {
		var v uint16
		v, err = r.u16()
		raw = uint32(v)
	}
	if err != nil {
		return 0, err
	}
	return float64(raw) / math.Pow(10, float64(scale)), nil
}

type transformTable struct {
	lofilt  []float64
	hifilt  []float64
	defined bool
}

type quantTable struct {
	binCenter float64
	qbin      [maxSubbands]float64
	zbin      [maxSubbands]float64
	defined   bool
}

type decoder struct {
	r     *reader
	frame FrameHeader
	dtt   transformTable
	dqt   quantTable
	huff  [maxHuffTable]*huffTable
}

// readHeaders consumes SOI and every table up to and including the frame header.
func (d *decoder) readHeaders() error {
	m, err := d.r.marker()
	if err != nil || m != markerSOI {
		return ErrFormat
	}
	for {
		m, err := d.r.marker()
		if err != nil {
			return err
		}
		if m == markerSOF {
			break
		}
		if err := d.readTable(m); err != nil {
			return err
		}
	}
	return d.readFrameHeader()
}

func (d *decoder) readTable(m uint16) error {
	switch m {
	case markerDTT:
		return d.readTransformTable()
	case markerDQT:
		return d.readQuantTable()
	case markerDHT:
		return d.readHuffmanTables()
	case markerCOM, markerDRT:
		n, err := d.r.u16()
		if err != nil {
			return err
		}
		if n < 2 {
			return fmt.Errorf("%w: segment length %d", ErrCorrupt, n)
		}
		return d.r.skip(int(n) - 2)
	default:
		return fmt.Errorf("%w: unexpected marker %#04x", ErrCorrupt, m)
	}
}

func (d *decoder) readTransformTable() error {
	if _, err := d.r.u16(); err != nil {
		return err
	}
	hisz, err := d.r.u8()
	if err != nil {
		return err
	}
	losz, err := d.r.u8()
	if err != nil {
		return err
	}
	if hisz == 0 || losz == 0 || hisz%2 == 0 || losz%2 == 0 {
		return fmt.Errorf("%w: unsupported filter lengths %d/%d", ErrCorrupt, hisz, losz)
	}

	if d.dtt.hifilt, err = d.readFilter(int(hisz)); err != nil {
		return err
	}
	if d.dtt.lofilt, err = d.readFilter(int(losz)); err != nil {
		return err
	}
	d.dtt.defined = true
	return nil
}

// readFilter reads the stored half of an odd-length symmetric analysis filter and
// returns the matching synthesis filter, which alternates sign away from the centre.
func (d *decoder) readFilter(size int) ([]float64, error) {
	half := (size + 1) / 2
	center := half - 1
	filt := make([]float64, size)
	for cnt := 0; cnt < half; cnt++ {
		sign, err := d.r.u8()
		if err != nil {
			return nil, err
		}
		v, err := d.r.scaled(true)
		if err != nil {
			return nil, err
		}
		if sign != 0 {
			v = -v
		}
		if cnt%2 == 1 {
			v = -v
		}
		filt[center+cnt] = v
		filt[center-cnt] = v
	}
	return filt, nil
}

func (d *decoder) readQuantTable() error {
	if _, err := d.r.u16(); err != nil {
		return err
	}
	var err error
	if d.dqt.binCenter, err = d.r.scaled(false); err != nil {
		return err
	}
	for i := 0; i < maxSubbands; i++ {
		if d.dqt.qbin[i], err = d.r.scaled(false); err != nil {
			return err
		}
		if d.dqt.zbin[i], err = d.r.scaled(false); err != nil {
			return err
		}
	}
	d.dqt.defined = true
	return nil
}

func (d *decoder) readHuffmanTables() error {
	length, err := d.r.u16()
	if err != nil {
		return err
	}
	left := int(length) - 2
	for left > 0 {
		id, err := d.r.u8()
		if err != nil {
			return err
		}
		if int(id) >= maxHuffTable {
			return fmt.Errorf("%w: huffman table id %d", ErrCorrupt, id)
		}
		var bits [16]uint8
		total := 0
		for i := range bits {
			if bits[i], err = d.r.u8(); err != nil {
				return err
			}
			total += int(bits[i])
		}
		if total == 0 || total > 256 {
			return fmt.Errorf("%w: huffman table %d has %d values", ErrCorrupt, id, total)
		}
		if err := d.r.need(total); err != nil {
			return err
		}
		values := append([]uint8(nil), d.r.buf[d.r.off:d.r.off+total]...)
		d.r.off += total

		table, err := newHuffTable(bits, values)
		if err != nil {
			return err
		}
		d.huff[id] = table
		left -= 1 + 16 + total
	}
	if left < 0 {
		return fmt.Errorf("%w: huffman segment overruns its length", ErrCorrupt)
	}
	return nil
}

func (d *decoder) readFrameHeader() error {
	r := d.r
	if _, err := r.u16(); err != nil {
		return err
	}
	if err := r.need(6); err != nil {
		return err
	}
	d.frame.Black, _ = r.u8()
	d.frame.White, _ = r.u8()
	h, _ := r.u16()
	w, _ := r.u16()
	d.frame.Height, d.frame.Width = int(h), int(w)

	var err error
	if d.frame.MShift, err = r.scaled(false); err != nil {
		return err
	}
	if d.frame.RScale, err = r.scaled(false); err != nil {
		return err
	}
	if d.frame.Encoder, err = r.u8(); err != nil {
		return err
	}
	if d.frame.Software, err = r.u16(); err != nil {
		return err
	}
	if d.frame.Width == 0 || d.frame.Height == 0 {
		return fmt.Errorf("%w: empty frame %dx%d", ErrCorrupt, d.frame.Width, d.frame.Height)
	}
	if d.frame.Width*d.frame.Height > MaxPixels {
		return fmt.Errorf("%w: frame %dx%d exceeds %d pixels", ErrCorrupt, d.frame.Width, d.frame.Height, MaxPixels)
	}
	return nil
}
