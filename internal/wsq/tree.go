package wsq

const (
	wTreeLen = 20
	qTreeLen = 64
)

// wnode is one node of the wavelet decomposition tree. invRow and invCol mark the
// nodes whose highpass half is stored first along that axis.
type wnode struct {
	x, y       int
	lenx, leny int
	invRow     bool
	invCol     bool
}

// qnode locates one quantized subband inside the coefficient plane.
type qnode struct {
	x, y       int
	lenx, leny int
}

func buildTrees(width, height int) ([]wnode, []qnode) {
	w := buildWTree(width, height)
	return w, buildQTree(w)
}

func buildWTree(width, height int) []wnode {
	w := make([]wnode, wTreeLen)
	for _, n := range []int{2, 4, 7, 9, 11, 13, 16, 18} {
		w[n].invRow = true
	}
	for _, n := range []int{3, 5, 8, 9, 12, 13, 17, 18} {
		w[n].invCol = true
	}

	wTree4(w, 0, 1, width, height, 0, 0, true)

	lenx, lenx2 := split(w[1].lenx)
	leny, leny2 := split(w[1].leny)

	wTree4(w, 4, 6, lenx2, leny, lenx, 0, false)
	wTree4(w, 5, 10, lenx, leny2, 0, leny, false)
	wTree4(w, 14, 15, lenx, leny, 0, 0, false)

	w[19].x, w[19].y = 0, 0
	w[19].lenx = (w[15].lenx + 1) / 2
	w[19].leny = (w[15].leny + 1) / 2
	return w
}

// split halves n, giving the larger part first.
func split(n int) (int, int) {
	if n%2 == 0 {
		return n / 2, n / 2
	}
	return (n + 1) / 2, (n+1)/2 - 1
}

// wTree4 fills node start1 and its four children starting at start2. When stop is
// set the fourth child is left to a later call.
func wTree4(w []wnode, start1, start2, lenx, leny, x, y int, stop bool) {
	p1, p2 := start1, start2

	w[p1].x, w[p1].y = x, y
	w[p1].lenx, w[p1].leny = lenx, leny

	w[p2].x, w[p2+2].x = x, x
	w[p2].y, w[p2+1].y = y, y

	if lenx%2 == 0 {
		w[p2].lenx = lenx / 2
		w[p2+1].lenx = w[p2].lenx
	} else if p1 == 4 {
		w[p2].lenx = (lenx - 1) / 2
		w[p2+1].lenx = w[p2].lenx + 1
	} else {
		w[p2].lenx = (lenx + 1) / 2
		w[p2+1].lenx = w[p2].lenx - 1
	}
	w[p2+1].x = w[p2].lenx + x
	if !stop {
		w[p2+3].lenx = w[p2+1].lenx
		w[p2+3].x = w[p2+1].x
	}
	w[p2+2].lenx = w[p2].lenx

	if leny%2 == 0 {
		w[p2].leny = leny / 2
		w[p2+2].leny = w[p2].leny
	} else if p1 == 5 {
		w[p2].leny = (leny - 1) / 2
		w[p2+2].leny = w[p2].leny + 1
	} else {
		w[p2].leny = (leny + 1) / 2
		w[p2+2].leny = w[p2].leny - 1
	}
	w[p2+2].y = w[p2].leny + y
	if !stop {
		w[p2+3].leny = w[p2+2].leny
		w[p2+3].y = w[p2+2].y
	}
	w[p2+1].leny = w[p2].leny
}

func buildQTree(w []wnode) []qnode {
	q := make([]qnode, qTreeLen)
	qTree16(q, 3, w[14], false, false)
	qTree16(q, 19, w[4], false, true)
	qTree16(q, 48, w[0], false, false)
	qTree16(q, 35, w[5], true, false)
	qTree4(q, 0, w[19].lenx, w[19].leny, w[19].x, w[19].y)
	return q
}

// quarter splits n in two; for odd n the shorter part goes first when smallFirst
// is set.
func quarter(n int, smallFirst bool) (first, second int) {
	if n%2 == 0 {
		return n / 2, n / 2
	}
	if smallFirst {
		return (n+1)/2 - 1, (n + 1) / 2
	}
	return (n + 1) / 2, (n+1)/2 - 1
}

// qTree4 splits one region into four subbands at start..start+3 in raster order.
func qTree4(q []qnode, start, lenx, leny, x, y int) {
	qQuad(q, start, lenx, leny, x, y, false, false)
}

// qQuad lays out four subbands. smallLeft and smallTop move the shorter half of an
// odd length to the left column or top row.
func qQuad(q []qnode, p, lenx, leny, x, y int, smallLeft, smallTop bool) {
	left, right := quarter(lenx, smallLeft)
	top, bottom := quarter(leny, smallTop)

	q[p] = qnode{x: x, y: y, lenx: left, leny: top}
	q[p+1] = qnode{x: x + left, y: y, lenx: right, leny: top}
	q[p+2] = qnode{x: x, y: y + top, lenx: left, leny: bottom}
	q[p+3] = qnode{x: x + left, y: y + top, lenx: right, leny: bottom}
}

// qTree16 splits a wavelet node into 16 subbands at start..start+15, four per
// quadrant. rw and cl select which half of an odd height or width is shorter.
func qTree16(q []qnode, start int, n wnode, rw, cl bool) {
	tempx, temp2x := quarter(n.lenx, cl)
	tempy, temp2y := quarter(n.leny, rw)

	qQuad(q, start, tempx, tempy, n.x, n.y, false, false)
	qQuad(q, start+4, temp2x, tempy, n.x+tempx, n.y, true, false)
	qQuad(q, start+8, tempx, temp2y, n.x, n.y+tempy, false, true)
	qQuad(q, start+12, temp2x, temp2y, n.x+tempx, n.y+tempy, true, true)
}
