package jbig2

import (
	"image"
	"sync"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// RefinementParams configures one generic refinement decode.
type RefinementParams struct {
	Width     int
	Height    int
	Template  int
	Reference *bitmap.Bitmap
	// DX, DY place the reference relative to the refined bitmap.
	DX, DY int
	TPGRON bool
	// AT holds GRAT1 (on the refined bitmap) and GRAT2 (on the
	// reference), used by template 0 only.
	AT []image.Point
}

// refinementTemplate lists the pixels of a refinement template: ref pixels
// are read from the reference, the others from the bitmap being decoded.
type refinementTemplate struct {
	ref     []ctxPixel
	own     []ctxPixel
	ctxSize int
	sltp    int
}

var refinementTemplates = [2]refinementTemplate{
	{
		ref: []ctxPixel{
			{0, 1, 1}, {1, 0, 1}, {2, -1, 1},
			{3, 1, 0}, {4, 0, 0}, {5, -1, 0},
			{6, 1, -1}, {7, 0, -1},
		},
		own:     []ctxPixel{{9, -1, 0}, {10, 1, -1}, {11, 0, -1}},
		ctxSize: 1 << 13,
		sltp:    0x0010,
	},
	{
		ref: []ctxPixel{
			{0, 1, 1}, {1, 0, 1},
			{2, 1, 0}, {3, 0, 0}, {4, -1, 0},
			{5, 0, -1},
		},
		own:     []ctxPixel{{6, -1, 0}, {7, 1, -1}, {8, 0, -1}, {9, -1, -1}},
		ctxSize: 1 << 10,
		sltp:    0x0008,
	},
}

func refinementContextSize(template int) int {
	return refinementTemplates[template&1].ctxSize
}

// typicalValue returns the value of the 3x3 reference neighbourhood of
// (x, y) when it is uniform.
func typicalValue(ref *bitmap.Bitmap, x, y int) (int, bool) {
	v := ref.Pixel(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if ref.Pixel(x+dx, y+dy) != v {
				return 0, false
			}
		}
	}
	return v, true
}

// DecodeRefinement runs the generic refinement decoding procedure.
func DecodeRefinement(p RefinementParams, d *ArithDecoder, cx []ArithContext) (*bitmap.Bitmap, error) {
	if p.Template < 0 || p.Template > 1 {
		return nil, malformed("refinement template %d", p.Template)
	}
	if p.Reference == nil {
		return nil, malformed("refinement without reference bitmap")
	}
	t := refinementTemplates[p.Template]
	if p.Template == 0 && len(p.AT) < 2 {
		return nil, malformed("refinement template 0 needs 2 AT pixels")
	}
	if len(cx) < t.ctxSize {
		return nil, malformed("refinement context table too small")
	}
	if !validImageSize(p.Width, p.Height) {
		return nil, malformed("refinement region size %dx%d", p.Width, p.Height)
	}

	bm := bitmap.New(p.Width, p.Height)
	ref := p.Reference
	ltp := 0
	for y := 0; y < p.Height; y++ {
		if p.TPGRON {
			ltp ^= d.DecodeBit(&cx[t.sltp])
		}
		ry := y - p.DY
		for x := 0; x < p.Width; x++ {
			rx := x - p.DX
			if ltp == 1 {
				if v, ok := typicalValue(ref, rx, ry); ok {
					bm.SetPixel(x, y, v)
					continue
				}
			}
			ctx := 0
			for _, px := range t.ref {
				ctx |= ref.Pixel(rx+px.dx, ry+px.dy) << px.bit
			}
			for _, px := range t.own {
				ctx |= bm.Pixel(x+px.dx, y+px.dy) << px.bit
			}
			if p.Template == 0 {
				ctx |= ref.Pixel(rx+p.AT[1].X, ry+p.AT[1].Y) << 8
				ctx |= bm.Pixel(x+p.AT[0].X, y+p.AT[0].Y) << 12
			}
			if d.DecodeBit(&cx[ctx]) != 0 {
				bm.SetPixel(x, y, 1)
			}
		}
	}
	return bm, nil
}

// RefinementRegion is a generic refinement region segment (types 40, 42,
// 43). Its reference is the referred region, or the page area under the
// region when nothing is referred.
type RefinementRegion struct {
	info     RegionInfo
	params   RefinementParams
	data     []byte
	referred Region

	mu sync.Mutex
	bm *bitmap.Bitmap
}

// Init parses the region header and resolves the referred region.
func (r *RefinementRegion) Init(h *SegmentHeader, bs *BitStream) error {
	info, err := parseRegionInfo(bs)
	if err != nil {
		return err
	}
	if info.Height < 0 {
		return malformed("refinement region: unknown height")
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	p := RefinementParams{
		Width:    info.Width,
		Height:   info.Height,
		Template: int(flags & 0x01),
		TPGRON:   flags&0x02 != 0,
	}
	if p.Template == 0 {
		p.AT, err = readATPixels(bs, 2)
		if err != nil {
			return err
		}
	}

	regions, err := referredPayloads[Region](h)
	if err != nil {
		return err
	}
	if len(regions) > 1 {
		return malformed("refinement region refers to %d regions", len(regions))
	}
	if len(regions) == 1 {
		r.referred = regions[0]
	}
	r.info, r.params, r.data = info, p, bs.Remaining()
	return nil
}

// RegionInfo returns the region placement.
func (r *RefinementRegion) RegionInfo() RegionInfo { return r.info }

// Params returns the decode configuration without its reference.
func (r *RefinementRegion) Params() RefinementParams { return r.params }

// RefersToRegion reports whether the reference comes from a referred
// region rather than the page.
func (r *RefinementRegion) RefersToRegion() bool { return r.referred != nil }

// RegionBitmap decodes the region against the referred region.
func (r *RefinementRegion) RegionBitmap() (*bitmap.Bitmap, error) {
	if r.referred == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.bm != nil {
			return r.bm, nil
		}
		return nil, malformed("refinement region has no reference")
	}
	ref, err := r.referred.RegionBitmap()
	if err != nil {
		return nil, err
	}
	return r.refine(ref)
}

// RefinePage decodes the region against page, the page area it refines.
func (r *RefinementRegion) RefinePage(page *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	return r.refine(bitmap.Extract(r.info.Rect(), page))
}

func (r *RefinementRegion) refine(ref *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bm != nil {
		return r.bm, nil
	}
	p := r.params
	p.Reference = ref
	bm, err := DecodeRefinement(p, NewArithDecoder(NewBitStream(r.data)), newContexts(refinementContextSize(p.Template)))
	if err != nil {
		return nil, err
	}
	r.bm = bm
	return bm, nil
}

// readATPixels reads n signed (x, y) byte pairs.
func readATPixels(bs *BitStream, n int) ([]image.Point, error) {
	at := make([]image.Point, n)
	for i := range at {
		x, err := bs.ReadInt8()
		if err != nil {
			return nil, err
		}
		y, err := bs.ReadInt8()
		if err != nil {
			return nil, err
		}
		at[i] = image.Point{x, y}
	}
	return at, nil
}
