package jbig2

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// minSegmentHeaderSize is the size of the shortest possible segment header.
const minSegmentHeaderSize = 11

// Document is a parsed JBIG2 stream, optionally with a separate globals
// stream. Segment headers are parsed eagerly; payloads and bitmaps are
// decoded on demand.
type Document struct {
	header *FileHeader
	cfg    Config
	log    *slog.Logger
	cache  *payloadCache

	segments []*SegmentHeader
	seen     map[SegmentID]bool
	// globals holds the globals stream; shared holds the segments of the
	// main stream that belong to no page.
	globals map[uint32]*SegmentHeader
	shared  map[uint32]*SegmentHeader
	pages   map[uint32]*Page
}

// NewDocument parses the segment headers of data and globals. When
// embedded is set, or data lacks the file signature, data is read with the
// embedded organisation. globals is always embedded.
func NewDocument(data, globals []byte, embedded bool, cfg Config) (*Document, error) {
	cfg = cfg.withDefaults()
	cache, err := newPayloadCache(cfg.CacheSize, cfg.Logger)
	if err != nil {
		return nil, err
	}
	d := &Document{
		cfg:     cfg,
		log:     cfg.Logger,
		cache:   cache,
		seen:    make(map[SegmentID]bool),
		globals: make(map[uint32]*SegmentHeader),
		shared:  make(map[uint32]*SegmentHeader),
		pages:   make(map[uint32]*Page),
	}

	if len(globals) > 0 {
		if err := d.parseStream(globals, OrganisationEmbedded, true); err != nil {
			return nil, fmt.Errorf("jbig2: globals: %w", err)
		}
	}

	org := OrganisationEmbedded
	if !embedded {
		var hdr *FileHeader
		if data, hdr, err = stripFileHeader(data); err != nil {
			return nil, err
		}
		if hdr != nil {
			d.header, org = hdr, hdr.Organisation
		}
	}
	if err := d.parseStream(data, org, false); err != nil {
		return nil, err
	}
	if d.header != nil && d.header.HasNumPages && int(d.header.NumPages) != len(d.pages) {
		d.log.Warn("page count differs from file header", "header", d.header.NumPages, "found", len(d.pages))
	}
	return d, nil
}

func (d *Document) parseStream(data []byte, org Organisation, global bool) error {
	bs := NewBitStream(data)
	var headers []*SegmentHeader
	for bs.BytesLeft() >= minSegmentHeaderSize {
		h, err := ParseSegmentHeader(bs)
		if err != nil {
			return err
		}
		h.global, h.doc = global, d
		headers = append(headers, h)

		if org != OrganisationRandomAccess {
			h.DataOffset = bs.Offset()
			if err := d.frame(h, data); err != nil {
				return err
			}
			bs.SetOffset(h.DataOffset + len(h.data))
		}
		if h.Type == TypeEndOfFile {
			break
		}
	}
	if bs.BytesLeft() > 0 && org != OrganisationRandomAccess {
		d.log.Warn("trailing bytes after last segment", "bytes", bs.BytesLeft())
	}

	if org == OrganisationRandomAccess {
		offset := bs.Offset()
		for _, h := range headers {
			h.DataOffset = offset
			if err := d.frame(h, data); err != nil {
				return err
			}
			offset += len(h.data)
		}
	}

	for _, h := range headers {
		if err := d.add(h); err != nil {
			return err
		}
	}
	return nil
}

// frame attaches the segment data starting at h.DataOffset.
func (d *Document) frame(h *SegmentHeader, data []byte) error {
	start := min(h.DataOffset, len(data))
	if h.unknownLength {
		n, err := scanGenericLength(data[start:])
		if err != nil {
			return h.wrap(err)
		}
		h.DataLength = uint32(n)
	}
	end := uint64(start) + uint64(h.DataLength)
	if end > uint64(len(data)) {
		d.log.Warn("segment data truncated", "segment", h.Number, "type", h.Type,
			"length", h.DataLength, "available", len(data)-start)
		end = uint64(len(data))
	}
	h.data = data[start:end]
	return nil
}

// add resolves the referred segments of h and files it under its page or
// the global pool. A segment number may appear once per stream.
func (d *Document) add(h *SegmentHeader) error {
	if d.seen[h.ID()] {
		return h.wrap(malformed("segment number %d reused", h.Number))
	}
	h.refs = make([]*SegmentHeader, 0, len(h.Referred))
	for _, n := range h.Referred {
		ref := d.lookup(h.PageAssociation, n)
		if ref == nil {
			return h.wrap(fmt.Errorf("%w: %d", ErrMissingReferredSegment, n))
		}
		h.refs = append(h.refs, ref)
	}

	switch {
	case h.global:
		d.globals[h.Number] = h
	case h.PageAssociation == 0:
		d.shared[h.Number] = h
	default:
		p, ok := d.pages[h.PageAssociation]
		if !ok {
			p = &Page{Number: h.PageAssociation, doc: d, byNumber: make(map[uint32]*SegmentHeader)}
			d.pages[h.PageAssociation] = p
		}
		p.segments = append(p.segments, h)
		p.byNumber[h.Number] = h
	}
	d.seen[h.ID()] = true
	d.segments = append(d.segments, h)
	d.log.Debug("segment parsed", "segment", h.Number, "type", h.Type,
		"page", h.PageAssociation, "length", h.DataLength, "referred", h.Referred)
	return nil
}

// lookup finds segment n on page, then among the page-less segments of
// the main stream, then in the globals stream.
func (d *Document) lookup(page, n uint32) *SegmentHeader {
	if p, ok := d.pages[page]; ok && page != 0 {
		if h, ok := p.byNumber[n]; ok {
			return h
		}
	}
	if h, ok := d.shared[n]; ok {
		return h
	}
	return d.globals[n]
}

// Header returns the file header, or nil for embedded streams.
func (d *Document) Header() *FileHeader { return d.header }

// Config returns the effective configuration.
func (d *Document) Config() Config { return d.cfg }

// Logger returns the document logger.
func (d *Document) Logger() *slog.Logger { return d.log }

// Segments returns every segment, globals first, in stream order.
func (d *Document) Segments() []*SegmentHeader { return d.segments }

// GlobalSegments returns the segments not associated with a page.
func (d *Document) GlobalSegments() []*SegmentHeader {
	return lo.Filter(d.segments, func(h *SegmentHeader, _ int) bool {
		return h.global || h.PageAssociation == 0
	})
}

// NumPages returns the number of pages found in the stream.
func (d *Document) NumPages() int { return len(d.pages) }

// PageNumbers returns the page numbers in ascending order.
func (d *Document) PageNumbers() []uint32 {
	nums := lo.Keys(d.pages)
	slices.Sort(nums)
	return nums
}

// Page returns the page with the given page number.
func (d *Document) Page(n uint32) (*Page, error) {
	p, ok := d.pages[n]
	if !ok {
		return nil, fmt.Errorf("jbig2: no page %d", n)
	}
	return p, nil
}

// Segment returns the non-global segment with the given number, or the
// global one if no page holds it.
func (d *Document) Segment(n uint32) (*SegmentHeader, bool) {
	h, ok := lo.Find(d.segments, func(h *SegmentHeader) bool { return !h.global && h.Number == n })
	if ok {
		return h, true
	}
	h, ok = d.globals[n]
	return h, ok
}
