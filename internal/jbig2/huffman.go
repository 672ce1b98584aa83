package jbig2

import (
	"errors"
	"fmt"
	"math"
)

type lineKind uint8

const (
	lineNormal lineKind = iota
	lineLower
	lineUpper
	lineOOB
)

// huffLine is one table line: a prefix code followed by rangeLen extra bits.
type huffLine struct {
	prefLen  int
	rangeLen int
	rangeLow int64
	kind     lineKind
	code     uint32
}

// HuffmanTable is a canonical prefix code table, either one of the
// standard tables B.1 to B.15 or a user table from a tables segment.
type HuffmanTable struct {
	lines  []huffLine
	oob    bool
	maxLen int
	index  map[uint64]int
}

func newHuffmanTable(lines []huffLine) (*HuffmanTable, error) {
	t := &HuffmanTable{lines: lines}
	for _, l := range lines {
		if l.kind == lineOOB {
			t.oob = true
		}
	}
	if err := t.assignCodes(); err != nil {
		return nil, err
	}
	return t, nil
}

// HasOOB reports whether the table has an out-of-band line.
func (t *HuffmanTable) HasOOB() bool { return t.oob }

// Len returns the number of table lines.
func (t *HuffmanTable) Len() int { return len(t.lines) }

func (t *HuffmanTable) assignCodes() error {
	for _, l := range t.lines {
		if l.prefLen < 0 || l.prefLen > 32 {
			return malformed("huffman prefix length %d", l.prefLen)
		}
		t.maxLen = max(t.maxLen, l.prefLen)
	}
	counts := make([]int, t.maxLen+1)
	for _, l := range t.lines {
		counts[l.prefLen]++
	}
	counts[0] = 0

	t.index = make(map[uint64]int, len(t.lines))
	first := 0
	for n := 1; n <= t.maxLen; n++ {
		first = (first + counts[n-1]) << 1
		if first > math.MaxUint32 {
			return malformed("huffman code overflow")
		}
		code := first
		for i := range t.lines {
			if t.lines[i].prefLen != n {
				continue
			}
			if code>>n != 0 {
				return malformed("huffman code lengths oversubscribed")
			}
			t.lines[i].code = uint32(code)
			t.index[uint64(n)<<32|uint64(code)] = i
			code++
		}
	}
	return nil
}

// HuffmanDecoder decodes table values from a bit stream.
type HuffmanDecoder struct {
	stream *BitStream
}

// NewHuffmanDecoder binds a decoder to stream.
func NewHuffmanDecoder(stream *BitStream) *HuffmanDecoder {
	return &HuffmanDecoder{stream: stream}
}

// Decode reads one value with table t. ok is false when the out-of-band
// line was decoded.
func (hd *HuffmanDecoder) Decode(t *HuffmanTable) (v int, ok bool, err error) {
	if t == nil {
		return 0, false, errors.New("jbig2: missing huffman table")
	}
	var code uint64
	for n := 1; n <= t.maxLen; n++ {
		bit, err := hd.stream.ReadBit()
		if err != nil {
			return 0, false, err
		}
		code = code<<1 | uint64(bit)
		i, found := t.index[uint64(n)<<32|code]
		if !found {
			continue
		}
		l := t.lines[i]
		if l.kind == lineOOB {
			return 0, false, nil
		}
		extra, err := hd.stream.ReadBits(l.rangeLen)
		if err != nil {
			return 0, false, err
		}
		value := l.rangeLow + int64(extra)
		if l.kind == lineLower {
			value = l.rangeLow - int64(extra)
		}
		if value < math.MinInt32 || value > math.MaxInt32 {
			return 0, false, fmt.Errorf("%w: huffman value %d", ErrIntegerOverflow, value)
		}
		return int(value), true, nil
	}
	return 0, false, malformed("no huffman code matches")
}

// ParseHuffmanTable reads a user table in the tables segment format.
func ParseHuffmanTable(bs *BitStream) (*HuffmanTable, error) {
	flags, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	oob := flags&0x01 != 0
	htps := int(flags>>1&0x07) + 1
	htrs := int(flags>>4&0x07) + 1
	low, err := bs.ReadInt32()
	if err != nil {
		return nil, err
	}
	high, err := bs.ReadInt32()
	if err != nil {
		return nil, err
	}
	if low > high {
		return nil, malformed("huffman table range %d > %d", low, high)
	}

	var lines []huffLine
	for cur := int64(low); cur < int64(high); {
		prefLen, err := bs.ReadBits(htps)
		if err != nil {
			return nil, err
		}
		rangeLen, err := bs.ReadBits(htrs)
		if err != nil {
			return nil, err
		}
		if rangeLen >= 32 {
			return nil, malformed("huffman range length %d", rangeLen)
		}
		lines = append(lines, huffLine{prefLen: int(prefLen), rangeLen: int(rangeLen), rangeLow: cur})
		cur += 1 << rangeLen
	}

	prefLen, err := bs.ReadBits(htps)
	if err != nil {
		return nil, err
	}
	lines = append(lines, huffLine{prefLen: int(prefLen), rangeLen: 32, rangeLow: int64(low) - 1, kind: lineLower})

	prefLen, err = bs.ReadBits(htps)
	if err != nil {
		return nil, err
	}
	lines = append(lines, huffLine{prefLen: int(prefLen), rangeLen: 32, rangeLow: int64(high), kind: lineUpper})

	if oob {
		prefLen, err = bs.ReadBits(htps)
		if err != nil {
			return nil, err
		}
		lines = append(lines, huffLine{prefLen: int(prefLen), kind: lineOOB})
	}
	return newHuffmanTable(lines)
}

// newValueTable builds a table whose line i decodes to i, from a list of
// prefix lengths. Zero lengths mark values that never occur.
func newValueTable(lengths []int) (*HuffmanTable, error) {
	lines := make([]huffLine, len(lengths))
	for i, n := range lengths {
		lines[i] = huffLine{prefLen: n, rangeLow: int64(i)}
	}
	return newHuffmanTable(lines)
}

// decodeSymbolIDTable reads the run-code table and the symbol ID code
// lengths that precede Huffman coded text region data.
func decodeSymbolIDTable(bs *BitStream, numSyms int) (*HuffmanTable, error) {
	runLens := make([]int, 35)
	for i := range runLens {
		v, err := bs.ReadBits(4)
		if err != nil {
			return nil, err
		}
		runLens[i] = int(v)
	}
	runTable, err := newValueTable(runLens)
	if err != nil {
		return nil, err
	}

	hd := NewHuffmanDecoder(bs)
	lengths := make([]int, 0, numSyms)
	for len(lengths) < numSyms {
		rc, _, err := hd.Decode(runTable)
		if err != nil {
			return nil, err
		}
		var fill, repeat, extraBits int
		switch {
		case rc < 32:
			lengths = append(lengths, rc)
			continue
		case rc == 32:
			if len(lengths) == 0 {
				return nil, malformed("symbol id run code repeats nothing")
			}
			fill, extraBits, repeat = lengths[len(lengths)-1], 2, 3
		case rc == 33:
			extraBits, repeat = 3, 3
		case rc == 34:
			extraBits, repeat = 7, 11
		default:
			return nil, malformed("symbol id run code %d", rc)
		}
		extra, err := bs.ReadBits(extraBits)
		if err != nil {
			return nil, err
		}
		repeat += int(extra)
		if len(lengths)+repeat > numSyms {
			return nil, malformed("symbol id run overflows %d symbols", numSyms)
		}
		for ; repeat > 0; repeat-- {
			lengths = append(lengths, fill)
		}
	}
	bs.AlignByte()
	return newValueTable(lengths)
}
