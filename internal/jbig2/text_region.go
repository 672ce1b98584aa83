package jbig2

import (
	"fmt"
	"image"
	"sync"

	"github.com/samber/lo"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// Corner is the reference corner of placed symbol instances.
type Corner int

const (
	CornerBottomLeft Corner = iota
	CornerTopLeft
	CornerBottomRight
	CornerTopRight
)

func (c Corner) String() string {
	switch c {
	case CornerBottomLeft:
		return "bottom-left"
	case CornerTopLeft:
		return "top-left"
	case CornerBottomRight:
		return "bottom-right"
	case CornerTopRight:
		return "top-right"
	}
	return fmt.Sprintf("Corner(%d)", int(c))
}

// TextInt names the integers of the text region decoding procedure.
type TextInt int

const (
	IntDT TextInt = iota
	IntFS
	IntDS
	IntRDW
	IntRDH
	IntRDX
	IntRDY
	IntRSize
	numTextInts
)

// TextRegionParams configures one text region decode.
type TextRegionParams struct {
	Width        int
	Height       int
	Huffman      bool
	Refine       bool
	LogStrips    int
	RefCorner    Corner
	Transposed   bool
	Op           bitmap.CombinationOperator
	DefaultPixel bool
	DSOffset     int
	RTemplate    int
	RAT          []image.Point
	NumInstances int
	Symbols      []*bitmap.Bitmap
	SymCodeLen   int

	// Tables holds the Huffman table of each TextInt when Huffman is set.
	Tables [numTextInts]*HuffmanTable
	// SymbolIDs is the Huffman symbol ID table. When nil, IDs are read as
	// SymCodeLen raw bits.
	SymbolIDs *HuffmanTable
}

// TextCoder supplies the coded values of the text region decoding
// procedure, either from the arithmetic decoder or from Huffman tables.
type TextCoder interface {
	Int(kind TextInt) (v int, ok bool, err error)
	CurT(logStrips int) (int, error)
	SymbolID() (int, error)
	RI() (int, error)
	// Refine decodes a refined symbol instance. For Huffman coding it
	// also consumes the refinement data size.
	Refine(p RefinementParams) (*bitmap.Bitmap, error)
}

// textIntDecoders holds the IAx decoders used by text regions. Symbol
// dictionaries share one set across their aggregate instances.
type textIntDecoders struct {
	ints [numTextInts]*ArithIntDecoder
	it   *ArithIntDecoder
	ri   *ArithIntDecoder
	id   *ArithIaidDecoder
}

func newTextIntDecoders(symCodeLen int) *textIntDecoders {
	ia := &textIntDecoders{
		it: NewArithIntDecoder(),
		ri: NewArithIntDecoder(),
		id: NewArithIaidDecoder(symCodeLen),
	}
	for i := range ia.ints {
		ia.ints[i] = NewArithIntDecoder()
	}
	return ia
}

// ArithTextCoder decodes text region values with the MQ coder.
type ArithTextCoder struct {
	d  *ArithDecoder
	ia *textIntDecoders
	gr []ArithContext
}

// NewArithTextCoder returns a coder with fresh contexts.
func NewArithTextCoder(d *ArithDecoder, symCodeLen, rTemplate int) *ArithTextCoder {
	return &ArithTextCoder{
		d:  d,
		ia: newTextIntDecoders(symCodeLen),
		gr: newContexts(refinementContextSize(rTemplate)),
	}
}

// Int decodes one integer of the given kind; ok is false on OOB.
func (c *ArithTextCoder) Int(kind TextInt) (int, bool, error) {
	return c.ia.ints[kind].Decode(c.d)
}

// CurT decodes the T offset of an instance within its strip.
func (c *ArithTextCoder) CurT(int) (int, error) {
	v, ok, err := c.ia.it.Decode(c.d)
	if err == nil && !ok {
		err = malformed("text region: OOB current T")
	}
	return v, err
}

// SymbolID decodes the symbol id of the next instance.
func (c *ArithTextCoder) SymbolID() (int, error) { return c.ia.id.Decode(c.d), nil }

// RI decodes the refinement flag of the next instance.
func (c *ArithTextCoder) RI() (int, error) {
	v, ok, err := c.ia.ri.Decode(c.d)
	if err == nil && !ok {
		err = malformed("text region: OOB refinement flag")
	}
	return v, err
}

// Refine decodes a refined instance with the shared refinement contexts.
func (c *ArithTextCoder) Refine(p RefinementParams) (*bitmap.Bitmap, error) {
	return DecodeRefinement(p, c.d, c.gr)
}

// HuffmanTextCoder decodes text region values with Huffman tables.
type HuffmanTextCoder struct {
	bs     *BitStream
	hd     *HuffmanDecoder
	params *TextRegionParams
	gr     []ArithContext
}

// NewHuffmanTextCoder returns a coder reading from bs with the tables of p.
func NewHuffmanTextCoder(bs *BitStream, p *TextRegionParams) *HuffmanTextCoder {
	return &HuffmanTextCoder{
		bs:     bs,
		hd:     NewHuffmanDecoder(bs),
		params: p,
		gr:     newContexts(refinementContextSize(p.RTemplate)),
	}
}

// Int decodes one integer with the table selected for kind.
func (c *HuffmanTextCoder) Int(kind TextInt) (int, bool, error) {
	return c.hd.Decode(c.params.Tables[kind])
}

// CurT reads the T offset as logStrips raw bits.
func (c *HuffmanTextCoder) CurT(logStrips int) (int, error) {
	v, err := c.bs.ReadBits(logStrips)
	return int(v), err
}

// SymbolID decodes a symbol id with the run-coded table, or as raw bits
// when the region has none.
func (c *HuffmanTextCoder) SymbolID() (int, error) {
	if c.params.SymbolIDs == nil {
		v, err := c.bs.ReadBits(c.params.SymCodeLen)
		return int(v), err
	}
	v, ok, err := c.hd.Decode(c.params.SymbolIDs)
	if err == nil && !ok {
		err = malformed("text region: OOB symbol id")
	}
	return v, err
}

// RI reads the refinement flag as one raw bit.
func (c *HuffmanTextCoder) RI() (int, error) { return c.bs.ReadBit() }

// Refine reads the size-prefixed refinement data of an instance and
// decodes it.
func (c *HuffmanTextCoder) Refine(p RefinementParams) (*bitmap.Bitmap, error) {
	size, ok, err := c.hd.Decode(c.params.Tables[IntRSize])
	if err != nil {
		return nil, err
	}
	if !ok || size < 0 {
		return nil, malformed("text region: refinement size")
	}
	c.bs.AlignByte()
	start := c.bs.Offset()
	if start+size > c.bs.Len() {
		return nil, fmt.Errorf("%w: refinement data of %d bytes", ErrStreamIO, size)
	}
	sub := NewBitStream(c.bs.Buf()[start : start+size])
	bm, err := DecodeRefinement(p, NewArithDecoder(sub), c.gr)
	if err != nil {
		return nil, err
	}
	c.bs.SetOffset(start + size)
	return bm, nil
}

// DecodeTextRegion places the symbol instances coded by c into a new
// region bitmap.
func DecodeTextRegion(p TextRegionParams, c TextCoder) (*bitmap.Bitmap, error) {
	if !validImageSize(p.Width, p.Height) {
		return nil, malformed("text region size %dx%d", p.Width, p.Height)
	}
	bm := bitmap.New(p.Width, p.Height)
	if p.DefaultPixel {
		bm.Fill(true)
	}

	strips := 1 << p.LogStrips
	dt, err := mustInt(c, IntDT)
	if err != nil {
		return nil, err
	}
	stripT := -dt * strips
	firstS := 0

	for n := 0; n < p.NumInstances; {
		dt, err := mustInt(c, IntDT)
		if err != nil {
			return nil, err
		}
		stripT += dt * strips

		var curS int
		for first := true; ; first = false {
			if first {
				dfs, err := mustInt(c, IntFS)
				if err != nil {
					return nil, err
				}
				firstS += dfs
				curS = firstS
			} else {
				ids, ok, err := c.Int(IntDS)
				if err != nil {
					return nil, err
				}
				if !ok || n >= p.NumInstances {
					break
				}
				curS += ids + p.DSOffset
			}

			curT := 0
			if strips > 1 {
				if curT, err = c.CurT(p.LogStrips); err != nil {
					return nil, err
				}
			}
			t := stripT + curT

			id, err := c.SymbolID()
			if err != nil {
				return nil, err
			}
			if id < 0 || id >= len(p.Symbols) {
				return nil, malformed("text region: symbol id %d of %d", id, len(p.Symbols))
			}
			ri := 0
			if p.Refine {
				if ri, err = c.RI(); err != nil {
					return nil, err
				}
			}

			ib := p.Symbols[id]
			if ri != 0 {
				if ib, err = refineInstance(p, c, ib); err != nil {
					return nil, err
				}
			}
			curS = placeInstance(bm, ib, curS, t, p)
			n++
		}
	}
	return bm, nil
}

func mustInt(c TextCoder, kind TextInt) (int, error) {
	v, ok, err := c.Int(kind)
	if err == nil && !ok {
		err = malformed("text region: unexpected OOB")
	}
	return v, err
}

func refineInstance(p TextRegionParams, c TextCoder, base *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	var d [4]int
	for i, kind := range []TextInt{IntRDW, IntRDH, IntRDX, IntRDY} {
		v, err := mustInt(c, kind)
		if err != nil {
			return nil, err
		}
		d[i] = v
	}
	rdw, rdh, rdx, rdy := d[0], d[1], d[2], d[3]
	return c.Refine(RefinementParams{
		Width:     base.Width() + rdw,
		Height:    base.Height() + rdh,
		Template:  p.RTemplate,
		Reference: base,
		DX:        rdw>>1 + rdx,
		DY:        rdh>>1 + rdy,
		AT:        p.RAT,
	})
}

// placeInstance draws ib at the strip position (s, t) and returns the
// updated current S.
func placeInstance(bm, ib *bitmap.Bitmap, s, t int, p TextRegionParams) int {
	w, h := ib.Width(), ib.Height()
	corner := p.RefCorner
	if !p.Transposed && (corner == CornerTopRight || corner == CornerBottomRight) {
		s += w - 1
	} else if p.Transposed && (corner == CornerBottomLeft || corner == CornerBottomRight) {
		s += h - 1
	}

	x, y := s, t
	if p.Transposed {
		x, y = t, s
	}
	switch corner {
	case CornerBottomLeft:
		y -= h - 1
	case CornerBottomRight:
		x -= w - 1
		y -= h - 1
	case CornerTopRight:
		x -= w - 1
	}
	bitmap.Blit(ib, bm, x, y, p.Op)

	if !p.Transposed && (corner == CornerTopLeft || corner == CornerBottomLeft) {
		s += w - 1
	} else if p.Transposed && (corner == CornerTopLeft || corner == CornerTopRight) {
		s += h - 1
	}
	return s
}

// TextRegion is a text region segment (types 4, 6, 7).
type TextRegion struct {
	info   RegionInfo
	params TextRegionParams
	data   []byte

	dicts   []*SymbolDictionary
	numSyms int

	mu sync.Mutex
	bm *bitmap.Bitmap
}

// textTableSelectors maps the 2-bit Huffman selectors of FS, DS, DT and
// the refinement deltas to standard tables. 0 marks an invalid value and
// -1 a user table.
var textTableSelectors = [numTextInts][4]int{
	IntFS:    {6, 7, 0, -1},
	IntDS:    {8, 9, 10, -1},
	IntDT:    {11, 12, 13, -1},
	IntRDW:   {14, 15, 0, -1},
	IntRDH:   {14, 15, 0, -1},
	IntRDX:   {14, 15, 0, -1},
	IntRDY:   {14, 15, 0, -1},
	IntRSize: {1, -1, 0, 0},
}

// textTableOrder is the order in which user tables are assigned.
var textTableOrder = []TextInt{IntFS, IntDS, IntDT, IntRDW, IntRDH, IntRDX, IntRDY, IntRSize}

// Init parses the region header, collects the referred symbols and, for
// Huffman coding, the tables and symbol ID code lengths.
func (r *TextRegion) Init(h *SegmentHeader, bs *BitStream) error {
	info, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}
	if info.Height < 0 {
		return malformed("text region: unknown height")
	}
	flags, err := bs.ReadUint16()
	if err != nil {
		return err
	}
	p := TextRegionParams{
		Width:        info.Width,
		Height:       info.Height,
		Huffman:      flags&0x0001 != 0,
		Refine:       flags&0x0002 != 0,
		LogStrips:    int(flags>>2) & 0x03,
		RefCorner:    Corner(flags>>4) & 0x03,
		Transposed:   flags&0x0040 != 0,
		DefaultPixel: flags&0x0200 != 0,
		DSOffset:     int(flags>>10) & 0x1F,
		RTemplate:    int(flags>>15) & 0x01,
	}
	if p.DSOffset >= 16 {
		p.DSOffset -= 32
	}
	if p.Op, err = bitmap.OperatorFromCode(uint8(flags>>7) & 0x03); err != nil {
		return malformed("text region: %v", err)
	}

	var selectors [numTextInts]int
	if p.Huffman {
		hf, err := bs.ReadUint16()
		if err != nil {
			return err
		}
		for i, kind := range textTableOrder {
			selectors[kind] = int(hf>>(2*i)) & 0x03
		}
		selectors[IntRSize] &= 0x01
	}

	if p.Refine && p.RTemplate == 0 {
		if p.RAT, err = readATPixels(bs, 2); err != nil {
			return err
		}
	}

	n, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if limit := uint64(info.Width) * uint64(info.Height); uint64(n) > limit {
		h.logger().Warn("text region instance count clamped",
			"segment", h.Number, "instances", n, "limit", limit)
		n = uint32(limit)
	}
	p.NumInstances = int(n)

	dicts, err := referredPayloads[*SymbolDictionary](h)
	if err != nil {
		return err
	}
	numSyms := lo.SumBy(dicts, func(d *SymbolDictionary) int { return d.NumExported() })

	if p.Huffman {
		tables, err := referredPayloads[*TableSegment](h)
		if err != nil {
			return err
		}
		user := 0
		for _, kind := range textTableOrder {
			std := textTableSelectors[kind][selectors[kind]]
			switch {
			case std > 0:
				p.Tables[kind] = StandardTable(std)
			case std < 0:
				if user >= len(tables) {
					return fmt.Errorf("%w: text region user table %d", ErrMissingReferredSegment, user)
				}
				p.Tables[kind] = tables[user].Table()
				user++
			default:
				return malformed("text region: huffman selector %d for %v", selectors[kind], kind)
			}
		}
		if p.SymbolIDs, err = decodeSymbolIDTable(bs, numSyms); err != nil {
			return err
		}
	} else {
		p.SymCodeLen = ceilLog2(numSyms)
	}

	r.info, r.params, r.data, r.dicts, r.numSyms = info, p, bs.Remaining(), dicts, numSyms
	return nil
}

// RegionInfo returns the region placement.
func (r *TextRegion) RegionInfo() RegionInfo { return r.info }

// Params returns the decode configuration. Symbols are filled in when the
// region is decoded.
func (r *TextRegion) Params() TextRegionParams { return r.params }

// RegionBitmap decodes the region on first call.
func (r *TextRegion) RegionBitmap() (*bitmap.Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bm != nil {
		return r.bm, nil
	}

	lists := make([][]*bitmap.Bitmap, 0, len(r.dicts))
	for _, d := range r.dicts {
		syms, err := d.Dictionary()
		if err != nil {
			return nil, err
		}
		lists = append(lists, syms)
	}
	p := r.params
	p.Symbols = lo.Flatten(lists)
	if len(p.Symbols) != r.numSyms {
		return nil, malformed("text region: %d symbols, expected %d", len(p.Symbols), r.numSyms)
	}

	bs := NewBitStream(r.data)
	var c TextCoder
	if p.Huffman {
		c = NewHuffmanTextCoder(bs, &p)
	} else {
		c = NewArithTextCoder(NewArithDecoder(bs), p.SymCodeLen, p.RTemplate)
	}
	bm, err := DecodeTextRegion(p, c)
	if err != nil {
		return nil, err
	}
	r.bm = bm
	return bm, nil
}

func (k TextInt) String() string {
	names := [...]string{"DT", "FS", "DS", "RDW", "RDH", "RDX", "RDY", "RSIZE"}
	if k >= 0 && int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("TextInt(%d)", int(k))
}
