package jbig2

import (
	"encoding/binary"
	"image"
	"math/rand"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// arithEncoder is the MQ encoder of T.88 Annex E, used to build coded test
// data for the decoders.
type arithEncoder struct {
	a, c uint32
	ct   int
	// out[0] stands in for the byte before the first output byte.
	out []byte
}

func newArithEncoder() *arithEncoder {
	return &arithEncoder{a: 0x8000, ct: 12, out: []byte{0}}
}

func (e *arithEncoder) encode(cx *ArithContext, d int) {
	qe := arithQeTable[cx.i]
	q := uint32(qe.qe)
	e.a -= q
	if d == int(cx.mps) {
		if e.a&0x8000 != 0 {
			e.c += q
			return
		}
		if e.a < q {
			e.a = q
		} else {
			e.c += q
		}
		cx.i = qe.nmps
		e.renorm()
		return
	}
	if e.a < q {
		e.c += q
	} else {
		e.a = q
	}
	if qe.switchM {
		cx.mps ^= 1
	}
	cx.i = qe.nlps
	e.renorm()
}

func (e *arithEncoder) renorm() {
	for {
		e.a = (e.a << 1) & 0xFFFF
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
		if e.a&0x8000 != 0 {
			return
		}
	}
}

func (e *arithEncoder) byteOut() {
	last := len(e.out) - 1
	switch {
	case e.out[last] == 0xFF:
		e.out = append(e.out, byte(e.c>>20))
		e.c &= 0xFFFFF
		e.ct = 7
	case e.c < 0x8000000:
		e.out = append(e.out, byte(e.c>>19))
		e.c &= 0x7FFFF
		e.ct = 8
	default:
		e.out[last]++
		if e.out[last] == 0xFF {
			e.c &= 0x7FFFFFF
			e.out = append(e.out, byte(e.c>>20))
			e.c &= 0xFFFFF
			e.ct = 7
		} else {
			e.out = append(e.out, byte(e.c>>19))
			e.c &= 0x7FFFF
			e.ct = 8
		}
	}
}

// flush terminates the code stream with the 0xFFAC marker.
func (e *arithEncoder) flush() []byte {
	tmp := e.c + e.a
	e.c |= 0xFFFF
	if e.c >= tmp {
		e.c -= 0x8000
	}
	e.c <<= uint(e.ct)
	e.byteOut()
	e.c <<= uint(e.ct)
	e.byteOut()
	if e.out[len(e.out)-1] != 0xFF {
		e.out = append(e.out, 0xFF)
	}
	e.out = append(e.out, 0xAC)
	return e.out[1:]
}

// intEncoder is the IAx encoder. A nil value encodes OOB.
type intEncoder struct {
	cx []ArithContext
}

func newIntEncoder() *intEncoder { return &intEncoder{cx: newContexts(512)} }

func (ie *intEncoder) encode(e *arithEncoder, v *int) {
	prev := 1
	bit := func(b int) {
		e.encode(&ie.cx[prev], b)
		if prev < 256 {
			prev = prev<<1 | b
		} else {
			prev = (prev<<1|b)&0x1FF | 0x100
		}
	}
	sign, mag := 1, int64(0)
	if v != nil {
		sign, mag = 0, int64(*v)
		if mag < 0 {
			sign, mag = 1, -mag
		}
	}
	depth := 0
	for depth < len(intRanges)-1 && mag >= intRanges[depth].base+1<<intRanges[depth].bits {
		depth++
	}
	bit(sign)
	for i := 0; i < depth; i++ {
		bit(1)
	}
	if depth < len(intRanges)-1 {
		bit(0)
	}
	raw := mag - intRanges[depth].base
	for i := intRanges[depth].bits - 1; i >= 0; i-- {
		bit(int(raw>>i) & 1)
	}
}

func (ie *intEncoder) value(e *arithEncoder, v int) { ie.encode(e, &v) }

func (ie *intEncoder) oob(e *arithEncoder) { ie.encode(e, nil) }

type iaidEncoder struct {
	cx      []ArithContext
	codeLen int
}

func newIaidEncoder(codeLen int) *iaidEncoder {
	return &iaidEncoder{cx: newContexts(1 << codeLen), codeLen: codeLen}
}

func (ie *iaidEncoder) encode(e *arithEncoder, v int) {
	prev := 1
	for i := ie.codeLen - 1; i >= 0; i-- {
		b := v >> i & 1
		e.encode(&ie.cx[prev], b)
		prev = prev<<1 | b
	}
}

// encodeGeneric codes img with a generic region template. Pixels set in
// skip are not coded and must be 0 in img.
func encodeGeneric(e *arithEncoder, cx []ArithContext, img *bitmap.Bitmap, template int, at []image.Point, tpgdon bool, skip *bitmap.Bitmap) {
	t := genericTemplates[template]
	ltp := 0
	for y := 0; y < img.Height(); y++ {
		if tpgdon {
			same := 0
			if rowsEqual(img, y, y-1) {
				same = 1
			}
			e.encode(&cx[t.sltp], same^ltp)
			ltp = same
			if ltp == 1 {
				continue
			}
		}
		for x := 0; x < img.Width(); x++ {
			if skip != nil && skip.Pixel(x, y) != 0 {
				continue
			}
			ctx := 0
			for _, px := range t.fixed {
				ctx |= img.Pixel(x+px.dx, y+px.dy) << px.bit
			}
			for i, b := range t.atBits {
				ctx |= img.Pixel(x+at[i].X, y+at[i].Y) << b
			}
			e.encode(&cx[ctx], img.Pixel(x, y))
		}
	}
}

func rowsEqual(bm *bitmap.Bitmap, y0, y1 int) bool {
	for x := 0; x < bm.Width(); x++ {
		if bm.Pixel(x, y0) != bm.Pixel(x, y1) {
			return false
		}
	}
	return true
}

// encodeRefinement codes img against ref with a refinement template.
func encodeRefinement(e *arithEncoder, cx []ArithContext, img *bitmap.Bitmap, p RefinementParams) {
	t := refinementTemplates[p.Template]
	ref := p.Reference
	ltp := 0
	for y := 0; y < img.Height(); y++ {
		ry := y - p.DY
		if p.TPGRON {
			cur := 1
			for x := 0; x < img.Width(); x++ {
				if v, ok := typicalValue(ref, x-p.DX, ry); ok && v != img.Pixel(x, y) {
					cur = 0
					break
				}
			}
			e.encode(&cx[t.sltp], cur^ltp)
			ltp = cur
		}
		for x := 0; x < img.Width(); x++ {
			rx := x - p.DX
			if ltp == 1 {
				if _, ok := typicalValue(ref, rx, ry); ok {
					continue
				}
			}
			ctx := 0
			for _, px := range t.ref {
				ctx |= ref.Pixel(rx+px.dx, ry+px.dy) << px.bit
			}
			for _, px := range t.own {
				ctx |= img.Pixel(x+px.dx, y+px.dy) << px.bit
			}
			if p.Template == 0 {
				ctx |= ref.Pixel(rx+p.AT[1].X, ry+p.AT[1].Y) << 8
				ctx |= img.Pixel(x+p.AT[0].X, y+p.AT[0].Y) << 12
			}
			e.encode(&cx[ctx], img.Pixel(x, y))
		}
	}
}

// bitWriter packs values MSB first.
type bitWriter struct {
	out []byte
	acc byte
	n   int
}

func (w *bitWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | byte(v>>uint(i)&1)
		w.n++
		if w.n == 8 {
			w.out = append(w.out, w.acc)
			w.acc, w.n = 0, 0
		}
	}
}

func (w *bitWriter) align() {
	if w.n != 0 {
		w.bits(0, 8-w.n)
	}
}

func (w *bitWriter) bytes() []byte {
	w.align()
	return w.out
}

// encodeHuffman writes v (nil for OOB) with table t.
func encodeHuffman(w *bitWriter, t *HuffmanTable, v *int) bool {
	for _, l := range t.lines {
		if l.prefLen == 0 {
			continue
		}
		if v == nil {
			if l.kind == lineOOB {
				w.bits(l.code, l.prefLen)
				return true
			}
			continue
		}
		x := int64(*v)
		switch {
		case l.kind == lineNormal && x >= l.rangeLow && x < l.rangeLow+1<<l.rangeLen:
			w.bits(l.code, l.prefLen)
			w.bits(uint32(x-l.rangeLow), l.rangeLen)
			return true
		case l.kind == lineLower && x <= l.rangeLow:
			w.bits(l.code, l.prefLen)
			w.bits(uint32(l.rangeLow-x), l.rangeLen)
			return true
		case l.kind == lineUpper && x >= l.rangeLow:
			w.bits(l.code, l.prefLen)
			w.bits(uint32(x-l.rangeLow), l.rangeLen)
			return true
		}
	}
	return false
}

func randomBitmap(rng *rand.Rand, w, h int) *bitmap.Bitmap {
	bm := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.SetPixel(x, y, rng.Intn(2))
		}
	}
	return bm
}

// bitmapFromRows builds a bitmap from rows of '#' (black) and '.' (white).
func bitmapFromRows(rows ...string) *bitmap.Bitmap {
	bm := bitmap.New(len(rows[0]), len(rows))
	for y, r := range rows {
		for x, c := range r {
			if c == '#' {
				bm.SetPixel(x, y, 1)
			}
		}
	}
	return bm
}

// testSegment is a segment to serialize into a test stream.
type testSegment struct {
	number   uint32
	typ      SegmentType
	refs     []uint32
	page     uint32
	data     []byte
	unknown  bool
	deferred bool
}

func (s testSegment) header() []byte {
	flags := byte(s.typ)
	if s.deferred {
		flags |= 0x80
	}
	if s.page > 0xFF {
		flags |= 0x40
	}
	out := binary.BigEndian.AppendUint32(nil, s.number)
	out = append(out, flags)
	if len(s.refs) <= 4 {
		out = append(out, byte(len(s.refs))<<5)
	} else {
		out = binary.BigEndian.AppendUint32(out, 0xE0000000|uint32(len(s.refs)))
		out = append(out, make([]byte, (len(s.refs)+8)>>3)...)
	}
	for _, r := range s.refs {
		switch {
		case s.number > 65536:
			out = binary.BigEndian.AppendUint32(out, r)
		case s.number > 256:
			out = binary.BigEndian.AppendUint16(out, uint16(r))
		default:
			out = append(out, byte(r))
		}
	}
	if s.page > 0xFF {
		out = binary.BigEndian.AppendUint32(out, s.page)
	} else {
		out = append(out, byte(s.page))
	}
	length := uint32(len(s.data))
	if s.unknown {
		length = unknownLength
	}
	return binary.BigEndian.AppendUint32(out, length)
}

// sequentialStream lays out each header followed by its data.
func sequentialStream(segs ...testSegment) []byte {
	var out []byte
	for _, s := range segs {
		out = append(out, s.header()...)
		out = append(out, s.data...)
	}
	return out
}

// randomAccessStream lays out every header, then every data part.
func randomAccessStream(segs ...testSegment) []byte {
	var out []byte
	for _, s := range segs {
		out = append(out, s.header()...)
	}
	for _, s := range segs {
		out = append(out, s.data...)
	}
	return out
}

func pageInfoData(w, h uint32, flags byte, striping uint16) []byte {
	out := binary.BigEndian.AppendUint32(nil, w)
	out = binary.BigEndian.AppendUint32(out, h)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = append(out, flags)
	return binary.BigEndian.AppendUint16(out, striping)
}

func regionInfoData(w, h uint32, x, y int32, op byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, w)
	out = binary.BigEndian.AppendUint32(out, h)
	out = binary.BigEndian.AppendUint32(out, uint32(x))
	out = binary.BigEndian.AppendUint32(out, uint32(y))
	return append(out, op)
}

func atData(at []image.Point) []byte {
	var out []byte
	for _, p := range at {
		out = append(out, byte(int8(p.X)), byte(int8(p.Y)))
	}
	return out
}

// genericRegionData encodes img as an arithmetic generic region segment
// body with template 0 and nominal AT pixels.
func genericRegionData(img *bitmap.Bitmap, x, y int32, op byte) []byte {
	at := defaultGenericAT(0)
	out := regionInfoData(uint32(img.Width()), uint32(img.Height()), x, y, op)
	out = append(out, 0x00)
	out = append(out, atData(at)...)
	e := newArithEncoder()
	encodeGeneric(e, newContexts(genericContextSize(0)), img, 0, at, false, nil)
	return append(out, e.flush()...)
}
