package jbig2

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/jdeng/jbig2go/internal/bitmap"
	"github.com/jdeng/jbig2go/internal/fax"
)

// GenericParams configures one generic region decode.
type GenericParams struct {
	Width    int
	Height   int
	MMR      bool
	Template int
	TPGDON   bool
	// AT holds the adaptive template pixels: four for template 0, one for
	// the others.
	AT []image.Point
	// Skip marks pixels that are not coded and read as 0.
	Skip *bitmap.Bitmap
}

// ctxPixel is a template pixel and the context bit it feeds.
type ctxPixel struct {
	bit    int
	dx, dy int
}

type genericTemplate struct {
	fixed   []ctxPixel
	atBits  []int
	ctxSize int
	sltp    int
}

var genericTemplates = [4]genericTemplate{
	{
		fixed: []ctxPixel{
			{0, -1, 0}, {1, -2, 0}, {2, -3, 0}, {3, -4, 0},
			{5, 2, -1}, {6, 1, -1}, {7, 0, -1}, {8, -1, -1}, {9, -2, -1},
			{12, 1, -2}, {13, 0, -2}, {14, -1, -2},
		},
		atBits:  []int{4, 10, 11, 15},
		ctxSize: 1 << 16,
		sltp:    0x9B25,
	},
	{
		fixed: []ctxPixel{
			{0, -1, 0}, {1, -2, 0}, {2, -3, 0},
			{4, 2, -1}, {5, 1, -1}, {6, 0, -1}, {7, -1, -1}, {8, -2, -1},
			{9, 2, -2}, {10, 1, -2}, {11, 0, -2}, {12, -1, -2},
		},
		atBits:  []int{3},
		ctxSize: 1 << 13,
		sltp:    0x0795,
	},
	{
		fixed: []ctxPixel{
			{0, -1, 0}, {1, -2, 0},
			{3, 1, -1}, {4, 0, -1}, {5, -1, -1}, {6, -2, -1},
			{7, 1, -2}, {8, 0, -2}, {9, -1, -2},
		},
		atBits:  []int{2},
		ctxSize: 1 << 10,
		sltp:    0x00E5,
	},
	{
		fixed: []ctxPixel{
			{0, -1, 0}, {1, -2, 0}, {2, -3, 0}, {3, -4, 0},
			{5, 1, -1}, {6, 0, -1}, {7, -1, -1}, {8, -2, -1}, {9, -3, -1},
		},
		atBits:  []int{4},
		ctxSize: 1 << 10,
		sltp:    0x0195,
	},
}

// genericContextSize returns the number of contexts a template needs.
func genericContextSize(template int) int {
	return genericTemplates[template&3].ctxSize
}

// defaultGenericAT returns the nominal AT pixels of a template.
func defaultGenericAT(template int) []image.Point {
	if template == 0 {
		return []image.Point{{3, -1}, {-3, -1}, {2, -2}, {-2, -2}}
	}
	if template == 1 {
		return []image.Point{{3, -1}}
	}
	return []image.Point{{2, -1}}
}

// DecodeGenericArith decodes a generic region with the arithmetic decoder d
// and the template contexts cx, which are shared with the caller.
func DecodeGenericArith(p GenericParams, d *ArithDecoder, cx []ArithContext) (*bitmap.Bitmap, error) {
	if p.Template < 0 || p.Template > 3 {
		return nil, malformed("generic template %d", p.Template)
	}
	t := genericTemplates[p.Template]
	if len(p.AT) < len(t.atBits) {
		return nil, malformed("generic template %d needs %d AT pixels", p.Template, len(t.atBits))
	}
	if len(cx) < t.ctxSize {
		return nil, malformed("generic context table too small")
	}
	if !validImageSize(p.Width, p.Height) {
		return nil, malformed("generic region size %dx%d", p.Width, p.Height)
	}

	bm := bitmap.New(p.Width, p.Height)
	ltp := 0
	for y := 0; y < p.Height; y++ {
		if p.TPGDON {
			ltp ^= d.DecodeBit(&cx[t.sltp])
			if ltp == 1 {
				bm.CopyRow(y, y-1)
				continue
			}
		}
		for x := 0; x < p.Width; x++ {
			if p.Skip != nil && p.Skip.Pixel(x, y) != 0 {
				continue
			}
			ctx := 0
			for _, px := range t.fixed {
				ctx |= bm.Pixel(x+px.dx, y+px.dy) << px.bit
			}
			for i, b := range t.atBits {
				ctx |= bm.Pixel(x+p.AT[i].X, y+p.AT[i].Y) << b
			}
			if d.DecodeBit(&cx[ctx]) != 0 {
				bm.SetPixel(x, y, 1)
			}
		}
	}
	return bm, nil
}

// DecodeGenericMMR decodes an MMR coded generic region starting at the
// current bit of bs and leaves bs after the last coded row.
func DecodeGenericMMR(p GenericParams, bs *BitStream) (*bitmap.Bitmap, error) {
	if !validImageSize(p.Width, p.Height) {
		return nil, malformed("generic region size %dx%d", p.Width, p.Height)
	}
	bm := bitmap.New(p.Width, p.Height)
	end, err := fax.DecodeG4(bs.Buf(), bs.BitPos(), bm)
	bs.SetBitPos(end)
	switch {
	case errors.Is(err, fax.ErrTruncated):
		return nil, fmt.Errorf("%w: mmr: %w", ErrStreamIO, err)
	case err != nil:
		return nil, fmt.Errorf("%w: mmr: %w", ErrMalformedHeader, err)
	}
	return bm, nil
}

// GenericRegion is a generic region segment (types 36, 38, 39).
type GenericRegion struct {
	info   RegionInfo
	params GenericParams
	data   []byte

	mu sync.Mutex
	bm *bitmap.Bitmap
}

// Init parses the region header. The bitmap is decoded on first use.
func (r *GenericRegion) Init(h *SegmentHeader, bs *BitStream) error {
	info, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	p := GenericParams{
		Width:    info.Width,
		Height:   info.Height,
		MMR:      flags&0x01 != 0,
		Template: int(flags>>1) & 0x03,
		TPGDON:   flags&0x08 != 0,
	}
	if flags&0x10 != 0 {
		return malformed("generic region: extended templates are not supported")
	}
	if !p.MMR {
		p.AT, err = readATPixels(bs, len(defaultGenericAT(p.Template)))
		if err != nil {
			return err
		}
	}

	data := bs.Remaining()
	if h.unknownLength {
		// The data ends with a 32-bit row count after the end marker.
		if len(data) < 4 {
			return malformed("generic region: missing row count")
		}
		rows := NewBitStream(data[len(data)-4:])
		n, _ := rows.ReadUint32()
		if n > maxImageSize {
			return malformed("generic region: row count %d", n)
		}
		if info.Height < 0 || int(n) < info.Height {
			info.Height = int(n)
		}
		p.Height = info.Height
		data = data[:len(data)-4]
	}
	if info.Height < 0 {
		return malformed("generic region: unknown height")
	}

	r.info, r.params, r.data = info, p, data
	return nil
}

// RegionInfo returns the region placement.
func (r *GenericRegion) RegionInfo() RegionInfo { return r.info }

// Params returns the decode configuration.
func (r *GenericRegion) Params() GenericParams { return r.params }

// RegionBitmap decodes the region on first call and returns the same
// bitmap afterwards.
func (r *GenericRegion) RegionBitmap() (*bitmap.Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bm != nil {
		return r.bm, nil
	}
	bs := NewBitStream(r.data)
	var (
		bm  *bitmap.Bitmap
		err error
	)
	if r.params.MMR {
		bm, err = DecodeGenericMMR(r.params, bs)
	} else {
		bm, err = DecodeGenericArith(r.params, NewArithDecoder(bs), newContexts(genericContextSize(r.params.Template)))
	}
	if err != nil {
		return nil, err
	}
	r.bm = bm
	return bm, nil
}

// scanGenericLength finds the data length of an unknown-length immediate
// generic region whose data starts at data[0]. The region ends after the
// end marker (0xFFAC for arithmetic, 0x0000 for MMR coding) and the 32-bit
// row count that follows it.
func scanGenericLength(data []byte) (int, error) {
	const headerLen = 18 // region info and flags
	if len(data) < headerLen {
		return 0, malformed("generic region: truncated header")
	}
	marker := []byte{0xFF, 0xAC}
	if data[17]&0x01 != 0 {
		marker = []byte{0x00, 0x00}
	}
	i := bytes.Index(data[headerLen:], marker)
	if i < 0 || headerLen+i+2+4 > len(data) {
		return 0, malformed("generic region: end marker not found")
	}
	return headerLen + i + 2 + 4, nil
}
