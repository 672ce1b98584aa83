package jbig2

import (
	"sync"

	"github.com/jdeng/jbig2go/internal/bitmap"
	"github.com/jdeng/jbig2go/internal/fax"
)

// HalftoneParams configures one halftone region decode.
type HalftoneParams struct {
	Width        int
	Height       int
	MMR          bool
	Template     int
	EnableSkip   bool
	Op           bitmap.CombinationOperator
	DefaultPixel bool

	// Grid geometry, in 1/256 pixel units for X, Y, RX and RY.
	GridWidth  int
	GridHeight int
	GridX      int
	GridY      int
	RX         int
	RY         int

	Patterns []*bitmap.Bitmap
}

// cellOrigin returns the top-left pixel of grid cell (m, n).
func (p HalftoneParams) cellOrigin(m, n int) (x, y int) {
	x = (p.GridX + m*p.RY + n*p.RX) >> 8
	y = (p.GridY + m*p.RX - n*p.RY) >> 8
	return x, y
}

// skipMask marks grid cells whose pattern lies entirely outside the
// region. The pattern size is taken from pattern 0.
func (p HalftoneParams) skipMask() *bitmap.Bitmap {
	pw, ph := p.Patterns[0].Width(), p.Patterns[0].Height()
	skip := bitmap.New(p.GridWidth, p.GridHeight)
	for m := 0; m < p.GridHeight; m++ {
		for n := 0; n < p.GridWidth; n++ {
			x, y := p.cellOrigin(m, n)
			if x+pw <= 0 || x >= p.Width || y+ph <= 0 || y >= p.Height {
				skip.SetPixel(n, m, 1)
			}
		}
	}
	return skip
}

// DecodeHalftone decodes the gray-scale planes from bs and renders the
// region.
func DecodeHalftone(p HalftoneParams, bs *BitStream) (*bitmap.Bitmap, error) {
	if !validImageSize(p.Width, p.Height) || !validImageSize(p.GridWidth, p.GridHeight) {
		return nil, malformed("halftone region %dx%d, grid %dx%d", p.Width, p.Height, p.GridWidth, p.GridHeight)
	}
	if len(p.Patterns) == 0 {
		return nil, malformed("halftone region without patterns")
	}
	bm := bitmap.New(p.Width, p.Height)
	if p.DefaultPixel {
		bm.Fill(true)
	}

	var skip *bitmap.Bitmap
	if p.EnableSkip {
		skip = p.skipMask()
	}
	planes, err := decodeGrayPlanes(p, skip, bs)
	if err != nil {
		return nil, err
	}

	maxGray := len(p.Patterns) - 1
	for m := 0; m < p.GridHeight; m++ {
		for n := 0; n < p.GridWidth; n++ {
			if skip != nil && skip.Pixel(n, m) != 0 {
				continue
			}
			gray := 0
			for j, plane := range planes {
				gray |= plane.Pixel(n, m) << j
			}
			gray = min(gray, maxGray)
			x, y := p.cellOrigin(m, n)
			bitmap.Blit(p.Patterns[gray], bm, x, y, p.Op)
		}
	}
	return bm, nil
}

// decodeGrayPlanes decodes the Gray-coded bit planes, most significant
// first, and converts them to binary.
func decodeGrayPlanes(p HalftoneParams, skip *bitmap.Bitmap, bs *BitStream) ([]*bitmap.Bitmap, error) {
	bpp := ceilLog2(len(p.Patterns))
	planes := make([]*bitmap.Bitmap, bpp)
	if bpp == 0 {
		return planes, nil
	}

	gp := GenericParams{
		Width:    p.GridWidth,
		Height:   p.GridHeight,
		MMR:      p.MMR,
		Template: p.Template,
		AT:       defaultGenericAT(p.Template),
		Skip:     skip,
	}
	var (
		d  *ArithDecoder
		cx []ArithContext
	)
	if !p.MMR {
		d = NewArithDecoder(bs)
		cx = newContexts(genericContextSize(p.Template))
	}

	for j := bpp - 1; j >= 0; j-- {
		var err error
		if p.MMR {
			planes[j], err = DecodeGenericMMR(gp, bs)
			bs.SetBitPos(fax.SkipEOFB(bs.Buf(), bs.BitPos()))
		} else {
			planes[j], err = DecodeGenericArith(gp, d, cx)
		}
		if err != nil {
			return nil, err
		}
		if j < bpp-1 {
			bitmap.Blit(planes[j+1], planes[j], 0, 0, bitmap.XOR)
		}
	}
	return planes, nil
}

// HalftoneRegion is a halftone region segment (types 20, 22, 23).
type HalftoneRegion struct {
	info   RegionInfo
	params HalftoneParams
	data   []byte
	dict   *PatternDictionary

	mu sync.Mutex
	bm *bitmap.Bitmap
}

// Init parses the region header. The bitmap is decoded on first use.
func (r *HalftoneRegion) Init(h *SegmentHeader, bs *BitStream) error {
	info, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}
	if info.Height < 0 {
		return malformed("halftone region: unknown height")
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	p := HalftoneParams{
		Width:        info.Width,
		Height:       info.Height,
		MMR:          flags&0x01 != 0,
		Template:     int(flags>>1) & 0x03,
		EnableSkip:   flags&0x08 != 0,
		DefaultPixel: flags&0x80 != 0,
	}
	if p.Op, err = bitmap.OperatorFromCode((flags >> 4) & 0x07); err != nil {
		return malformed("halftone region: %v", err)
	}

	var grid [4]uint32
	for i := range grid {
		if grid[i], err = bs.ReadUint32(); err != nil {
			return err
		}
	}
	rx, err := bs.ReadUint16()
	if err != nil {
		return err
	}
	ry, err := bs.ReadUint16()
	if err != nil {
		return err
	}
	if grid[0] > maxImageSize || grid[1] > maxImageSize {
		return malformed("halftone grid %dx%d", grid[0], grid[1])
	}
	p.GridWidth, p.GridHeight = int(grid[0]), int(grid[1])
	p.GridX, p.GridY = int(int32(grid[2])), int(int32(grid[3]))
	p.RX, p.RY = int(rx), int(ry)

	dicts, err := referredPayloads[*PatternDictionary](h)
	if err != nil {
		return err
	}
	if len(dicts) != 1 {
		return malformed("halftone region refers to %d pattern dictionaries", len(dicts))
	}

	r.info, r.params, r.data, r.dict = info, p, bs.Remaining(), dicts[0]
	return nil
}

// RegionInfo returns the region placement.
func (r *HalftoneRegion) RegionInfo() RegionInfo { return r.info }

// Params returns the decode configuration. Patterns are filled in when the
// region is decoded.
func (r *HalftoneRegion) Params() HalftoneParams { return r.params }

// RegionBitmap decodes the region on first call.
func (r *HalftoneRegion) RegionBitmap() (*bitmap.Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bm != nil {
		return r.bm, nil
	}
	patterns, err := r.dict.Dictionary()
	if err != nil {
		return nil, err
	}
	p := r.params
	p.Patterns = patterns
	bm, err := DecodeHalftone(p, NewBitStream(r.data))
	if err != nil {
		return nil, err
	}
	r.bm = bm
	return bm, nil
}
