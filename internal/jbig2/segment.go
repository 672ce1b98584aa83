package jbig2

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// SegmentType is the 6-bit segment type code.
type SegmentType uint8

const (
	TypeSymbolDictionary                  SegmentType = 0
	TypeIntermediateTextRegion            SegmentType = 4
	TypeImmediateTextRegion               SegmentType = 6
	TypeImmediateLosslessTextRegion       SegmentType = 7
	TypePatternDictionary                 SegmentType = 16
	TypeIntermediateHalftoneRegion        SegmentType = 20
	TypeImmediateHalftoneRegion           SegmentType = 22
	TypeImmediateLosslessHalftoneRegion   SegmentType = 23
	TypeIntermediateGenericRegion         SegmentType = 36
	TypeImmediateGenericRegion            SegmentType = 38
	TypeImmediateLosslessGenericRegion    SegmentType = 39
	TypeIntermediateRefinementRegion      SegmentType = 40
	TypeImmediateRefinementRegion         SegmentType = 42
	TypeImmediateLosslessRefinementRegion SegmentType = 43
	TypePageInformation                   SegmentType = 48
	TypeEndOfPage                         SegmentType = 49
	TypeEndOfStripe                       SegmentType = 50
	TypeEndOfFile                         SegmentType = 51
	TypeProfiles                          SegmentType = 52
	TypeTables                            SegmentType = 53
	TypeExtension                         SegmentType = 62
)

var segmentTypeNames = map[SegmentType]string{
	TypeSymbolDictionary:                  "symbol dictionary",
	TypeIntermediateTextRegion:            "intermediate text region",
	TypeImmediateTextRegion:               "immediate text region",
	TypeImmediateLosslessTextRegion:       "immediate lossless text region",
	TypePatternDictionary:                 "pattern dictionary",
	TypeIntermediateHalftoneRegion:        "intermediate halftone region",
	TypeImmediateHalftoneRegion:           "immediate halftone region",
	TypeImmediateLosslessHalftoneRegion:   "immediate lossless halftone region",
	TypeIntermediateGenericRegion:         "intermediate generic region",
	TypeImmediateGenericRegion:            "immediate generic region",
	TypeImmediateLosslessGenericRegion:    "immediate lossless generic region",
	TypeIntermediateRefinementRegion:      "intermediate refinement region",
	TypeImmediateRefinementRegion:         "immediate refinement region",
	TypeImmediateLosslessRefinementRegion: "immediate lossless refinement region",
	TypePageInformation:                   "page information",
	TypeEndOfPage:                         "end of page",
	TypeEndOfStripe:                       "end of stripe",
	TypeEndOfFile:                         "end of file",
	TypeProfiles:                          "profiles",
	TypeTables:                            "tables",
	TypeExtension:                         "extension",
}

func (t SegmentType) String() string {
	if name, ok := segmentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type %d", uint8(t))
}

// IsRegion reports whether t is a text, halftone, generic or refinement
// region type.
func (t SegmentType) IsRegion() bool {
	switch t {
	case TypeIntermediateTextRegion, TypeImmediateTextRegion, TypeImmediateLosslessTextRegion,
		TypeIntermediateHalftoneRegion, TypeImmediateHalftoneRegion, TypeImmediateLosslessHalftoneRegion,
		TypeIntermediateGenericRegion, TypeImmediateGenericRegion, TypeImmediateLosslessGenericRegion,
		TypeIntermediateRefinementRegion, TypeImmediateRefinementRegion, TypeImmediateLosslessRefinementRegion:
		return true
	}
	return false
}

// IsImmediate reports whether t is a region composed directly onto the page.
func (t SegmentType) IsImmediate() bool {
	return t.IsRegion() && t&0x02 != 0
}

// SegmentData is the decoded payload of a segment. Init parses the segment
// data from bs and resolves referred payloads through h; expensive bitmap
// decoding is deferred to the payload's accessors.
type SegmentData interface {
	Init(h *SegmentHeader, bs *BitStream) error
}

// Region is implemented by payloads that produce a region bitmap.
type Region interface {
	SegmentData
	RegionInfo() RegionInfo
	RegionBitmap() (*bitmap.Bitmap, error)
}

// Dictionary is implemented by symbol and pattern dictionaries.
type Dictionary interface {
	SegmentData
	Dictionary() ([]*bitmap.Bitmap, error)
}

// SegmentID identifies a segment within a document. Segments of the
// globals stream live in their own number space.
type SegmentID struct {
	Global bool
	Number uint32
}

func (id SegmentID) String() string {
	if id.Global {
		return fmt.Sprintf("g%d", id.Number)
	}
	return fmt.Sprintf("%d", id.Number)
}

// SegmentHeader is a parsed segment header together with the data it
// frames.
type SegmentHeader struct {
	Number            uint32
	Type              SegmentType
	DeferredNonRetain bool
	// RetainBits holds the referred-to segment retention flags, packed as
	// they appear in the header.
	RetainBits      []byte
	Referred        []uint32
	PageAssociation uint32
	DataLength      uint32
	HeaderLength    int
	DataOffset      int

	unknownLength bool
	global        bool
	data          []byte
	refs          []*SegmentHeader
	doc           *Document
}

// ParseSegmentHeader reads one segment header at the current offset of bs.
// Referred numbers are checked against the segment number but not
// resolved.
func ParseSegmentHeader(bs *BitStream) (*SegmentHeader, error) {
	start := bs.Offset()
	number, err := bs.ReadUint32()
	if err != nil {
		return nil, err
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	h := &SegmentHeader{
		Number:            number,
		Type:              SegmentType(flags & 0x3F),
		DeferredNonRetain: flags&0x80 != 0,
	}

	refSize := 8
	if number > 65536 {
		refSize = 32
	} else if number > 256 {
		refSize = 16
	}

	b, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	count := int(b >> 5)
	if count <= 4 {
		h.RetainBits = []byte{b & 0x1F}
	} else {
		bs.SetOffset(bs.Offset() - 1)
		v, err := bs.ReadUint32()
		if err != nil {
			return nil, err
		}
		// retain bits and referred numbers must fit in what is left
		v &= 0x1FFFFFFF
		if need := uint64(v+8)>>3 + uint64(v)*uint64(refSize>>3); need > uint64(bs.BytesLeft()) {
			return nil, malformed("segment %d refers to %d segments", number, v)
		}
		count = int(v)
		h.RetainBits = make([]byte, (count+8)>>3)
		for i := range h.RetainBits {
			if h.RetainBits[i], err = bs.ReadByte(); err != nil {
				return nil, err
			}
		}
	}

	h.Referred = make([]uint32, count)
	for i := range h.Referred {
		ref, err := bs.ReadBits(refSize)
		if err != nil {
			return nil, err
		}
		if ref >= number {
			return nil, malformed("segment %d refers to later segment %d", number, ref)
		}
		h.Referred[i] = ref
	}

	if flags&0x40 != 0 {
		h.PageAssociation, err = bs.ReadUint32()
	} else {
		var pa byte
		pa, err = bs.ReadByte()
		h.PageAssociation = uint32(pa)
	}
	if err != nil {
		return nil, err
	}

	if h.DataLength, err = bs.ReadUint32(); err != nil {
		return nil, err
	}
	if h.DataLength == unknownLength {
		if h.Type != TypeImmediateGenericRegion && h.Type != TypeImmediateLosslessGenericRegion {
			return nil, malformed("segment %d (%s) has unknown data length", number, h.Type)
		}
		h.unknownLength = true
	}
	h.HeaderLength = bs.Offset() - start
	return h, nil
}

// ID returns the document-wide identity of the segment.
func (h *SegmentHeader) ID() SegmentID { return SegmentID{Global: h.global, Number: h.Number} }

// SubStream returns a bit stream over the segment data only.
func (h *SegmentHeader) SubStream() *BitStream { return NewBitStream(h.data) }

// Data returns the segment data bytes.
func (h *SegmentHeader) Data() []byte { return h.data }

// ReferredSegments returns the resolved referred-to segments in header
// order.
func (h *SegmentHeader) ReferredSegments() []*SegmentHeader { return h.refs }

// Payload returns the decoded segment data. Concurrent callers share a
// single decode, and the result is memoized in the document cache.
func (h *SegmentHeader) Payload() (SegmentData, error) {
	if h.doc == nil {
		return h.load()
	}
	return h.doc.cache.get(h.ID(), h.load)
}

// Invalidate drops the memoized payload. The next Payload call decodes the
// segment again.
func (h *SegmentHeader) Invalidate() {
	if h.doc != nil {
		h.doc.cache.remove(h.ID())
	}
}

func (h *SegmentHeader) load() (SegmentData, error) {
	sd, err := newSegmentData(h.Type)
	if err != nil {
		return nil, h.wrap(err)
	}
	if err := sd.Init(h, h.SubStream()); err != nil {
		return nil, h.wrap(err)
	}
	h.logger().Debug("segment initialised", "segment", h.Number, "type", h.Type)
	return sd, nil
}

// wrap attributes err to h unless it already names a segment.
func (h *SegmentHeader) wrap(err error) error {
	var se *SegmentError
	if errors.As(err, &se) {
		return err
	}
	return &SegmentError{Number: h.Number, Type: h.Type, Err: err}
}

func (h *SegmentHeader) logger() *slog.Logger {
	if h.doc == nil {
		return slog.Default()
	}
	return h.doc.log
}

// referredPayloads decodes the referred segments and returns the payloads
// of type T in header order.
func referredPayloads[T any](h *SegmentHeader) ([]T, error) {
	payloads := make([]SegmentData, 0, len(h.refs))
	for _, ref := range h.refs {
		p, err := ref.Payload()
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return lo.FilterMap(payloads, func(p SegmentData, _ int) (T, bool) {
		v, ok := p.(T)
		return v, ok
	}), nil
}
