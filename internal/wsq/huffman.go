package wsq

import "fmt"

type huffTable struct {
	maxcode [17]int
	mincode [17]int
	valptr  [17]int
	values  []uint8
}

// newHuffTable builds canonical decode tables from per-length code counts.
func newHuffTable(bits [16]uint8, values []uint8) (*huffTable, error) {
	sizes := make([]int, 0, len(values))
	for i, n := range bits {
		for j := 0; j < int(n); j++ {
			sizes = append(sizes, i+1)
		}
	}

	codes := make([]int, len(sizes))
	code, size := 0, sizes[0]
	for k := 0; k < len(sizes); {
		for k < len(sizes) && sizes[k] == size {
			codes[k] = code
			code++
			k++
		}
		if k == len(sizes) {
			break
		}
		for sizes[k] != size {
			code <<= 1
			size++
		}
	}

	t := &huffTable{values: values}
	next := 0
	for i := 1; i <= 16; i++ {
		n := int(bits[i-1])
		if n == 0 {
			t.maxcode[i] = -1
			continue
		}
		t.valptr[i] = next
		t.mincode[i] = codes[next]
		next += n - 1
		t.maxcode[i] = codes[next]
		next++
	}
	if code > 1<<16 {
		return nil, fmt.Errorf("%w: huffman codes overflow 16 bits", ErrCorrupt)
	}
	return t, nil
}

// bitReader reads an entropy-coded segment MSB first, removing 0xFF00 stuffing.
// It stops at the first marker, which is left in marker.
type bitReader struct {
	r      *reader
	cur    uint8
	count  int
	marker uint16
}

// bit returns the next bit, or ok == false once a marker has been reached.
func (b *bitReader) bit() (bit int, ok bool, err error) {
	if b.marker != 0 {
		return 0, false, nil
	}
	if b.count == 0 {
		c, err := b.r.u8()
		if err != nil {
			return 0, false, err
		}
		if c == 0xFF {
			c2, err := b.r.u8()
			if err != nil {
				return 0, false, err
			}
			if c2 != 0x00 {
				b.marker = uint16(c)<<8 | uint16(c2)
				return 0, false, nil
			}
		}
		b.cur, b.count = c, 8
	}
	b.count--
	return int(b.cur>>uint(b.count)) & 1, true, nil
}

func (b *bitReader) bits(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		bit, ok, err := b.bit()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: marker inside coded value", ErrCorrupt)
		}
		v = v<<1 | bit
	}
	return v, nil
}

// symbol decodes one Huffman symbol. It returns -1 when the segment ends; trailing
// one-bit padding before the marker never forms a complete code.
func (b *bitReader) symbol(t *huffTable) (int, error) {
	code := 0
	for length := 1; length <= 16; length++ {
		bit, ok, err := b.bit()
		if err != nil {
			return 0, err
		}
		if !ok {
			return -1, nil
		}
		code = code<<1 | bit
		if t.maxcode[length] >= 0 && code <= t.maxcode[length] {
			idx := t.valptr[length] + code - t.mincode[length]
			if idx < 0 || idx >= len(t.values) {
				return 0, fmt.Errorf("%w: huffman index %d", ErrCorrupt, idx)
			}
			return int(t.values[idx]), nil
		}
	}
	return 0, fmt.Errorf("%w: huffman code longer than 16 bits", ErrCorrupt)
}

// readBlocks decodes every block between the frame header and EOI into the
// quantized coefficients of the coded subbands, in subband order.
func (d *decoder) readBlocks(q []qnode) ([]int, error) {
	if !d.dqt.defined {
		return nil, fmt.Errorf("%w: missing quantization table", ErrCorrupt)
	}
	size := 0
	for i := 0; i < numSubbands; i++ {
		if d.dqt.qbin[i] != 0 {
			size += q[i].lenx * q[i].leny
		}
	}
	qdata := make([]int, size)
	pos := 0

	put := func(v int) error {
		if pos >= size {
			return fmt.Errorf("%w: more coefficients than subbands hold", ErrCorrupt)
		}
		qdata[pos] = v
		pos++
		return nil
	}
	zeros := func(n int) error {
		if pos+n > size {
			return fmt.Errorf("%w: zero run of %d overflows subbands", ErrCorrupt, n)
		}
		pos += n
		return nil
	}

	m, err := d.r.marker()
	if err != nil {
		return nil, err
	}
	for m != markerEOI {
		for m != markerSOB {
			if err := d.readTable(m); err != nil {
				return nil, err
			}
			if m, err = d.r.marker(); err != nil {
				return nil, err
			}
		}
		if _, err := d.r.u16(); err != nil {
			return nil, err
		}
		id, err := d.r.u8()
		if err != nil {
			return nil, err
		}
		if int(id) >= maxHuffTable || d.huff[id] == nil {
			return nil, fmt.Errorf("%w: block references undefined huffman table %d", ErrCorrupt, id)
		}
		table := d.huff[id]

		br := &bitReader{r: d.r}
		for {
			sym, err := br.symbol(table)
			if err != nil {
				return nil, err
			}
			if sym < 0 {
				break
			}
			switch {
			case sym >= 1 && sym <= 100:
				err = zeros(sym)
			case sym == 101 || sym == 102:
				var n int
				if n, err = br.bits(8); err == nil {
					err = put(signed(n, sym == 102))
				}
			case sym == 103 || sym == 104:
				var n int
				if n, err = br.bits(16); err == nil {
					err = put(signed(n, sym == 104))
				}
			case sym == 105:
				var n int
				if n, err = br.bits(8); err == nil {
					err = zeros(n)
				}
			case sym == 106:
				var n int
				if n, err = br.bits(16); err == nil {
					err = zeros(n)
				}
			case sym >= 107 && sym <= 254:
				err = put(sym - 180)
			default:
				err = fmt.Errorf("%w: invalid huffman symbol %d", ErrCorrupt, sym)
			}
			if err != nil {
				return nil, err
			}
		}
		m = br.marker
	}

	if pos != size {
		return nil, fmt.Errorf("%w: decoded %d of %d coefficients", ErrCorrupt, pos, size)
	}
	return qdata, nil
}

func signed(n int, negative bool) int {
	if negative {
		return -n
	}
	return n
}
