package bitmap

// Blit merges src into dst with its top-left corner at (x, y). The source is
// clipped against all four destination edges; nothing outside dst is written.
func Blit(src, dst *Bitmap, x, y int, op CombinationOperator) {
	if src == nil || dst == nil {
		return
	}

	srcX0, srcX1 := max(0, -x), min(src.width, dst.width-x)
	srcY0, srcY1 := max(0, -y), min(src.height, dst.height-y)
	if srcX0 >= srcX1 || srcY0 >= srcY1 {
		return
	}

	c := blitter{
		src:       src,
		dst:       dst,
		op:        op,
		shift:     uint(x & 7),
		byteShift: x >> 3,
		firstByte: (x + srcX0) >> 3,
		lastByte:  (x + srcX1 - 1) >> 3,
		firstMask: byte(0xFF >> uint((x+srcX0)&7)),
		lastMask:  byte(0xFF << uint(7-((x+srcX1-1)&7))),
		srcFirst:  srcX0 >> 3,
		srcLast:   (srcX1 - 1) >> 3,
	}

	for sy := srcY0; sy < srcY1; sy++ {
		srcRow := src.Row(sy)
		dstRow := dst.Row(sy + y)
		switch {
		case c.shift == 0:
			c.alignedRow(srcRow, dstRow)
		case c.lastByte-c.firstByte <= c.srcLast-c.srcFirst:
			c.specialShiftedRow(srcRow, dstRow)
		default:
			c.shiftedRow(srcRow, dstRow)
		}
	}
}

type blitter struct {
	src, dst  *Bitmap
	op        CombinationOperator
	shift     uint // x & 7
	byteShift int  // x >> 3, floored
	firstByte int
	lastByte  int
	firstMask byte
	lastMask  byte
	srcFirst  int
	srcLast   int
}

func (c *blitter) mask(di int) byte {
	m := byte(0xFF)
	if di == c.firstByte {
		m &= c.firstMask
	}
	if di == c.lastByte {
		m &= c.lastMask
	}
	return m
}

func srcAt(row []byte, i int) byte {
	if i < 0 || i >= len(row) {
		return 0
	}
	return row[i]
}

// alignedRow handles destinations starting on a byte boundary: one source
// byte maps onto exactly one destination byte.
func (c *blitter) alignedRow(srcRow, dstRow []byte) {
	for di := c.firstByte; di <= c.lastByte; di++ {
		dstRow[di] = combineMasked(dstRow[di], srcRow[di-c.byteShift], c.mask(di), c.op)
	}
}

// specialShiftedRow walks the destination bytes; every destination byte is
// assembled from two neighbouring source bytes and the row never needs more
// destination bytes than it has source bytes.
func (c *blitter) specialShiftedRow(srcRow, dstRow []byte) {
	for di := c.firstByte; di <= c.lastByte; di++ {
		k := di - c.byteShift
		v := byte((uint16(srcAt(srcRow, k-1))<<8 | uint16(srcAt(srcRow, k))) >> c.shift)
		dstRow[di] = combineMasked(dstRow[di], v, c.mask(di), c.op)
	}
}

// shiftedRow walks the source bytes and carries the low bits of each one into
// the next destination byte, finishing with one extra partial trailing byte.
func (c *blitter) shiftedRow(srcRow, dstRow []byte) {
	var carry byte
	for si := c.srcFirst; si <= c.srcLast; si++ {
		s := srcRow[si]
		c.put(dstRow, si+c.byteShift, carry|s>>c.shift)
		carry = s << (8 - c.shift)
	}
	c.put(dstRow, c.srcLast+c.byteShift+1, carry)
}

func (c *blitter) put(dstRow []byte, di int, v byte) {
	if di < c.firstByte || di > c.lastByte {
		return
	}
	dstRow[di] = combineMasked(dstRow[di], v, c.mask(di), c.op)
}
