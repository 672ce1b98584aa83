package jbig2

import (
	"github.com/samber/lo"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// Page groups the segments associated with one page number.
type Page struct {
	Number uint32

	doc      *Document
	segments []*SegmentHeader
	byNumber map[uint32]*SegmentHeader
}

// Segments returns the page segments in stream order.
func (p *Page) Segments() []*SegmentHeader { return p.segments }

// Info returns the page information segment payload.
func (p *Page) Info() (*PageInformation, error) {
	h, ok := lo.Find(p.segments, func(h *SegmentHeader) bool { return h.Type == TypePageInformation })
	if !ok {
		return nil, malformed("page %d has no page information segment", p.Number)
	}
	pl, err := h.Payload()
	if err != nil {
		return nil, err
	}
	info, ok := pl.(*PageInformation)
	if !ok {
		return nil, h.wrap(malformed("segment %d is not page information", h.Number))
	}
	return info, nil
}

// Bitmap composes the page: every immediate region is decoded and
// combined onto a page-sized bitmap. Intermediate regions are only
// decoded when something refines them.
func (p *Page) Bitmap() (*bitmap.Bitmap, error) {
	info, err := p.Info()
	if err != nil {
		return nil, err
	}
	height := info.Height
	if height < 0 {
		if height, err = p.stripedHeight(); err != nil {
			return nil, err
		}
	}

	page := bitmap.New(info.Width, height)
	if info.DefaultPixel {
		page.Fill(true)
	}
	for _, h := range p.segments {
		if !h.Type.IsImmediate() {
			continue
		}
		if err := p.compose(page, info, h); err != nil {
			return nil, h.wrap(err)
		}
	}
	p.doc.log.Debug("page composed", "page", p.Number, "width", page.Width(), "height", page.Height())
	return page, nil
}

func (p *Page) compose(page *bitmap.Bitmap, info *PageInformation, h *SegmentHeader) error {
	pl, err := h.Payload()
	if err != nil {
		return err
	}
	r, ok := pl.(Region)
	if !ok {
		return malformed("segment %d is not a region", h.Number)
	}

	var bm *bitmap.Bitmap
	if rr, ok := r.(*RefinementRegion); ok && !rr.RefersToRegion() {
		bm, err = rr.RefinePage(page)
	} else {
		bm, err = r.RegionBitmap()
	}
	if err != nil {
		return err
	}

	ri := r.RegionInfo()
	op := info.DefaultOp
	if info.OverrideAllowed {
		op = ri.Op
	}
	bitmap.Blit(bm, page, ri.X, ri.Y, op)
	return nil
}

// stripedHeight derives the height of a page whose page information
// leaves it open: the row after the last end of stripe, or the bottom of
// the lowest immediate region.
func (p *Page) stripedHeight() (int, error) {
	height := 0
	for _, h := range p.segments {
		switch {
		case h.Type == TypeEndOfStripe:
			pl, err := h.Payload()
			if err != nil {
				return 0, err
			}
			es, ok := pl.(*EndOfStripe)
			if !ok {
				return 0, h.wrap(malformed("segment %d is not an end of stripe", h.Number))
			}
			height = max(height, es.LastRow+1)
		case h.Type.IsImmediate():
			pl, err := h.Payload()
			if err != nil {
				return 0, err
			}
			r, ok := pl.(Region)
			if !ok {
				return 0, h.wrap(malformed("segment %d is not a region", h.Number))
			}
			ri := r.RegionInfo()
			height = max(height, ri.Y+ri.Height)
		}
	}
	if height > maxImageSize {
		return 0, malformed("page %d height %d", p.Number, height)
	}
	return height, nil
}
