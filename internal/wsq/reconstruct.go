package wsq

import "fmt"

// unquantize places the decoded coefficients of every coded subband into a
// width*height plane. Subbands with a zero bin width stay zero.
func unquantize(qdata []int, dqt *quantTable, q []qnode, width, height int) []float64 {
	fdata := make([]float64, width*height)
	c := dqt.binCenter
	pos := 0
	for band := 0; band < numSubbands; band++ {
		qb := dqt.qbin[band]
		if qb == 0 {
			continue
		}
		zb := dqt.zbin[band] / 2
		n := q[band]
		for row := 0; row < n.leny; row++ {
			base := (n.y+row)*width + n.x
			for col := 0; col < n.lenx; col++ {
				fdata[base+col] = dequantize(qdata[pos], qb, zb, c)
				pos++
			}
		}
	}
	return fdata
}

func dequantize(v int, qbin, halfZbin, center float64) float64 {
	switch {
	case v > 0:
		return qbin*(float64(v)-center) + halfZbin
	case v < 0:
		return qbin*(float64(v)+center) - halfZbin
	default:
		return 0
	}
}

// reconstruct runs the inverse transform from the deepest node up to the full
// image, columns before rows at each node.
func reconstruct(fdata []float64, width, height int, w []wnode, dtt *transformTable) error {
	if !dtt.defined {
		return fmt.Errorf("%w: missing transform table", ErrCorrupt)
	}

	maxLen := width
	if height > maxLen {
		maxLen = height
	}
	line := make([]float64, maxLen)
	out := make([]float64, maxLen)

	for node := wTreeLen - 1; node >= 0; node-- {
		n := w[node]
		if n.lenx == 0 || n.leny == 0 {
			continue
		}
		base := n.y*width + n.x

		for col := 0; col < n.lenx; col++ {
			src := line[:n.leny]
			for i := range src {
				src[i] = fdata[base+i*width+col]
			}
			dst := out[:n.leny]
			join(dst, src, dtt, n.invCol)
			for i, v := range dst {
				fdata[base+i*width+col] = v
			}
		}

		for row := 0; row < n.leny; row++ {
			off := base + row*width
			src := line[:n.lenx]
			copy(src, fdata[off:off+n.lenx])
			dst := out[:n.lenx]
			join(dst, src, dtt, n.invRow)
			copy(fdata[off:off+n.lenx], dst)
		}
	}
	return nil
}

// join merges the lowpass and highpass halves of src into dst. The lowpass half
// holds the even samples and comes first unless inverted.
func join(dst, src []float64, dtt *transformTable, inverted bool) {
	n := len(src)
	llen := (n + 1) / 2
	hlen := n - llen

	low, high := src[:llen], src[llen:]
	if inverted {
		high, low = src[:hlen], src[hlen:]
	}
	synthesize(dst, low, high, dtt.lofilt, dtt.hifilt)
}

// synthesize upsamples low onto even and high onto odd positions and filters both
// with whole-sample symmetric extension at the edges.
func synthesize(dst, low, high, lofilt, hifilt []float64) {
	n := len(dst)
	lc := len(lofilt) / 2
	hc := len(hifilt) / 2
	for i := 0; i < n; i++ {
		var sum float64
		for k, c := range lofilt {
			if j := mirror(i+k-lc, n); j%2 == 0 {
				sum += c * low[j/2]
			}
		}
		for k, c := range hifilt {
			if j := mirror(i+k-hc, n); j%2 == 1 {
				sum += c * high[j/2]
			}
		}
		dst[i] = sum
	}
}

func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
