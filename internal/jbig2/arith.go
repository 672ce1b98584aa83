package jbig2

const defaultAValue = 0x8000

// arithQe is one row of the MQ coder probability estimation table.
type arithQe struct {
	qe      uint16
	nmps    uint8
	nlps    uint8
	switchM bool
}

var arithQeTable = [...]arithQe{
	{0x5601, 1, 1, true}, {0x3401, 2, 6, false}, {0x1801, 3, 9, false},
	{0x0AC1, 4, 12, false}, {0x0521, 5, 29, false}, {0x0221, 38, 33, false},
	{0x5601, 7, 6, true}, {0x5401, 8, 14, false}, {0x4801, 9, 14, false},
	{0x3801, 10, 14, false}, {0x3001, 11, 17, false}, {0x2401, 12, 18, false},
	{0x1C01, 13, 20, false}, {0x1601, 29, 21, false}, {0x5601, 15, 14, true},
	{0x5401, 16, 14, false}, {0x5101, 17, 15, false}, {0x4801, 18, 16, false},
	{0x3801, 19, 17, false}, {0x3401, 20, 18, false}, {0x3001, 21, 19, false},
	{0x2801, 22, 19, false}, {0x2401, 23, 20, false}, {0x2201, 24, 21, false},
	{0x1C01, 25, 22, false}, {0x1801, 26, 23, false}, {0x1601, 27, 24, false},
	{0x1401, 28, 25, false}, {0x1201, 29, 26, false}, {0x1101, 30, 27, false},
	{0x0AC1, 31, 28, false}, {0x09C1, 32, 29, false}, {0x08A1, 33, 30, false},
	{0x0521, 34, 31, false}, {0x0441, 35, 32, false}, {0x02A1, 36, 33, false},
	{0x0221, 37, 34, false}, {0x0141, 38, 35, false}, {0x0111, 39, 36, false},
	{0x0085, 40, 37, false}, {0x0049, 41, 38, false}, {0x0025, 42, 39, false},
	{0x0015, 43, 40, false}, {0x0009, 44, 41, false}, {0x0005, 45, 42, false},
	{0x0001, 45, 43, false}, {0x5601, 46, 46, false},
}

// ArithContext is the adaptive probability state of one context.
type ArithContext struct {
	i   uint8
	mps uint8
}

func newContexts(n int) []ArithContext { return make([]ArithContext, n) }

func (cx *ArithContext) lps(qe arithQe) int {
	d := int(1 - cx.mps)
	if qe.switchM {
		cx.mps ^= 1
	}
	cx.i = qe.nlps
	return d
}

func (cx *ArithContext) nmps(qe arithQe) int {
	cx.i = qe.nmps
	return int(cx.mps)
}

// ArithDecoder is the MQ binary arithmetic decoder. Past the end of its
// data it keeps reading 0xFF, so decoding never fails.
type ArithDecoder struct {
	stream *BitStream
	b      byte
	c      uint32
	a      uint32
	ct     int
}

// NewArithDecoder starts decoding at the current byte of stream.
func NewArithDecoder(stream *BitStream) *ArithDecoder {
	d := &ArithDecoder{stream: stream}
	d.b = stream.curByteArith()
	d.c = uint32(d.b^0xFF) << 16
	d.byteIn()
	d.c <<= 7
	d.ct -= 7
	d.a = defaultAValue
	return d
}

// DecodeBit decodes one bit with cx and adapts it.
func (d *ArithDecoder) DecodeBit(cx *ArithContext) int {
	qe := arithQeTable[cx.i]
	d.a -= uint32(qe.qe)
	if d.c>>16 < d.a {
		if d.a&defaultAValue != 0 {
			return int(cx.mps)
		}
		var bit int
		if d.a < uint32(qe.qe) {
			bit = cx.lps(qe)
		} else {
			bit = cx.nmps(qe)
		}
		d.renorm()
		return bit
	}

	d.c -= d.a << 16
	var bit int
	if d.a < uint32(qe.qe) {
		bit = cx.nmps(qe)
	} else {
		bit = cx.lps(qe)
	}
	d.a = uint32(qe.qe)
	d.renorm()
	return bit
}

func (d *ArithDecoder) byteIn() {
	if d.b == 0xFF {
		if b1 := d.stream.nextByteArith(); b1 > 0x8F {
			// marker: feed 1 bits without consuming it
			d.ct = 8
		} else {
			d.stream.incByte()
			d.b = b1
			d.c += 0xFE00 - uint32(d.b)<<9
			d.ct = 7
		}
		return
	}
	d.stream.incByte()
	d.b = d.stream.curByteArith()
	d.c += 0xFF00 - uint32(d.b)<<8
	d.ct = 8
}

func (d *ArithDecoder) renorm() {
	for {
		if d.ct == 0 {
			d.byteIn()
		}
		d.a <<= 1
		d.c <<= 1
		d.ct--
		if d.a&defaultAValue != 0 {
			return
		}
	}
}
