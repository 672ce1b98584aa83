package jbig2

import (
	"github.com/jdeng/jbig2go/internal/bitmap"
)

// PageInformation is the page information segment (type 48).
type PageInformation struct {
	Width       int
	Height      int // -1 when the height is set by end of stripe segments
	ResolutionX uint32
	ResolutionY uint32

	Lossless        bool
	MayRefine       bool
	DefaultPixel    bool
	DefaultOp       bitmap.CombinationOperator
	AuxBuffers      bool
	OverrideAllowed bool

	Striped       bool
	MaxStripeSize int
}

// Init parses the page information fields.
func (pi *PageInformation) Init(_ *SegmentHeader, bs *BitStream) error {
	var fields [4]uint32
	for i := range fields {
		v, err := bs.ReadUint32()
		if err != nil {
			return err
		}
		fields[i] = v
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	striping, err := bs.ReadUint16()
	if err != nil {
		return err
	}

	w, h := fields[0], fields[1]
	if w > maxImageSize || (h != unknownLength && h > maxImageSize) {
		return malformed("page size %dx%d", w, h)
	}
	op, err := bitmap.OperatorFromCode((flags >> 3) & 0x03)
	if err != nil {
		return malformed("page information: %v", err)
	}
	*pi = PageInformation{
		Width:           int(w),
		Height:          int(h),
		ResolutionX:     fields[2],
		ResolutionY:     fields[3],
		Lossless:        flags&0x01 != 0,
		MayRefine:       flags&0x02 != 0,
		DefaultPixel:    flags&0x04 != 0,
		DefaultOp:       op,
		AuxBuffers:      flags&0x20 != 0,
		OverrideAllowed: flags&0x40 != 0,
		Striped:         striping&0x8000 != 0,
		MaxStripeSize:   int(striping & 0x7FFF),
	}
	if h == unknownLength {
		pi.Height = -1
		if !pi.Striped {
			return malformed("page information: unknown height on an unstriped page")
		}
	}
	return nil
}

// EndOfStripe is the end of stripe segment (type 50).
type EndOfStripe struct {
	// LastRow is the last page row covered by the stripe.
	LastRow int
}

// Init reads the last row of the stripe.
func (es *EndOfStripe) Init(_ *SegmentHeader, bs *BitStream) error {
	v, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if v >= maxImageSize {
		return malformed("end of stripe at row %d", v)
	}
	es.LastRow = int(v)
	return nil
}

// EndMarker is the payload of end of page and end of file segments, which
// carry no data.
type EndMarker struct{}

// Init accepts the empty end-of-page and end-of-file segments.
func (EndMarker) Init(*SegmentHeader, *BitStream) error { return nil }

// Profiles is the profiles segment (type 52).
type Profiles struct {
	Profiles []uint32
}

// Init reads the profile list.
func (p *Profiles) Init(h *SegmentHeader, bs *BitStream) error {
	n, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if int(n) > bs.BytesLeft()/4 {
		return malformed("profiles: %d entries in %d bytes", n, bs.BytesLeft())
	}
	p.Profiles = make([]uint32, n)
	for i := range p.Profiles {
		if p.Profiles[i], err = bs.ReadUint32(); err != nil {
			return err
		}
	}
	h.logger().Warn("profiles segment ignored", "segment", h.Number, "profiles", p.Profiles)
	return nil
}

// Extension is an extension segment (type 62). Its contents are not
// interpreted.
type Extension struct {
	Code      uint32
	Necessary bool
	Data      []byte
}

// Init reads the extension code and keeps its data.
func (e *Extension) Init(h *SegmentHeader, bs *BitStream) error {
	v, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	e.Code = v & 0x7FFFFFFF
	e.Necessary = v&0x80000000 != 0
	e.Data = bs.Remaining()
	h.logger().Warn("extension segment ignored", "segment", h.Number, "code", e.Code, "necessary", e.Necessary)
	return nil
}
