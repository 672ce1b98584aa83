package jbig2

import (
	"fmt"

	"github.com/jdeng/jbig2go/internal/bitmap"
	"github.com/jdeng/jbig2go/internal/jbig2"
)

// ResultType identifies what kind of result payload a segment produces.
type ResultType int

const (
	// ResultTypeVoid indicates the segment produces no result.
	ResultTypeVoid ResultType = iota
	// ResultTypeImage indicates the segment produces a region bitmap.
	ResultTypeImage
	// ResultTypeSymbolDict indicates the segment produces a symbol dictionary.
	ResultTypeSymbolDict
	// ResultTypePatternDict indicates the segment produces a pattern dictionary.
	ResultTypePatternDict
	// ResultTypeHuffmanTable indicates the segment produces a Huffman table.
	ResultTypeHuffmanTable
)

func (rt ResultType) String() string {
	switch rt {
	case ResultTypeVoid:
		return "Void"
	case ResultTypeImage:
		return "Image"
	case ResultTypeSymbolDict:
		return "SymbolDict"
	case ResultTypePatternDict:
		return "PatternDict"
	case ResultTypeHuffmanTable:
		return "HuffmanTable"
	default:
		return fmt.Sprintf("ResultType(%d)", int(rt))
	}
}

// Segment is one segment of the stream. Its payload is decoded on demand.
type Segment struct {
	h *jbig2.SegmentHeader
}

// Number returns the segment number.
func (seg *Segment) Number() uint32 { return seg.h.Number }

// Type returns the segment type code.
func (seg *Segment) Type() uint8 { return uint8(seg.h.Type) }

// TypeName returns a readable name of the segment type.
func (seg *Segment) TypeName() string { return seg.h.Type.String() }

// DataLength returns the length of the segment data.
func (seg *Segment) DataLength() uint32 { return seg.h.DataLength }

// PageAssociation returns the page number, or 0 for global segments.
func (seg *Segment) PageAssociation() uint32 { return seg.h.PageAssociation }

// Referred returns the referred-to segment numbers.
func (seg *Segment) Referred() []uint32 { return seg.h.Referred }

// ResultType returns the kind of result the segment produces.
func (seg *Segment) ResultType() ResultType {
	switch t := seg.h.Type; {
	case t.IsRegion():
		return ResultTypeImage
	case t == jbig2.TypeSymbolDictionary:
		return ResultTypeSymbolDict
	case t == jbig2.TypePatternDictionary:
		return ResultTypePatternDict
	case t == jbig2.TypeTables:
		return ResultTypeHuffmanTable
	}
	return ResultTypeVoid
}

// Image decodes the region bitmap of a region segment. A refinement region
// that refines the page has no bitmap of its own and returns an error.
func (seg *Segment) Image() (*Image, error) {
	r, err := payload[jbig2.Region](seg)
	if err != nil {
		return nil, err
	}
	bm, err := r.RegionBitmap()
	if err != nil {
		return nil, err
	}
	return &Image{bm: bm}, nil
}

// SymbolDict decodes the exported symbols of a symbol dictionary segment.
func (seg *Segment) SymbolDict() (*SymbolDict, error) {
	sd, err := payload[*jbig2.SymbolDictionary](seg)
	if err != nil {
		return nil, err
	}
	syms, err := sd.Dictionary()
	if err != nil {
		return nil, err
	}
	return &SymbolDict{symbols: syms}, nil
}

// PatternDict decodes the patterns of a pattern dictionary segment.
func (seg *Segment) PatternDict() (*PatternDict, error) {
	pd, err := payload[*jbig2.PatternDictionary](seg)
	if err != nil {
		return nil, err
	}
	patterns, err := pd.Dictionary()
	if err != nil {
		return nil, err
	}
	return &PatternDict{patterns: patterns}, nil
}

// HuffmanTable returns the user table of a tables segment.
func (seg *Segment) HuffmanTable() (*HuffmanTable, error) {
	ts, err := payload[*jbig2.TableSegment](seg)
	if err != nil {
		return nil, err
	}
	return &HuffmanTable{table: ts.Table()}, nil
}

func payload[T any](seg *Segment) (T, error) {
	var zero T
	p, err := seg.h.Payload()
	if err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("jbig2: segment %d is a %s", seg.h.Number, seg.h.Type)
	}
	return v, nil
}

// SymbolDict represents a decoded symbol dictionary.
type SymbolDict struct {
	symbols []*bitmap.Bitmap
}

// NumImages returns the number of exported symbols.
func (sd *SymbolDict) NumImages() int { return len(sd.symbols) }

// Image returns the symbol at index, or nil when out of range.
func (sd *SymbolDict) Image(index int) *Image {
	if index < 0 || index >= len(sd.symbols) {
		return nil
	}
	return &Image{bm: sd.symbols[index]}
}

// PatternDict represents a decoded pattern dictionary.
type PatternDict struct {
	patterns []*bitmap.Bitmap
}

// NumPatterns returns the number of patterns.
func (pd *PatternDict) NumPatterns() int { return len(pd.patterns) }

// Pattern returns the pattern of a gray value, or nil when out of range.
func (pd *PatternDict) Pattern(gray int) *Image {
	if gray < 0 || gray >= len(pd.patterns) {
		return nil
	}
	return &Image{bm: pd.patterns[gray]}
}

// HuffmanTable represents a decoded user Huffman table.
type HuffmanTable struct {
	table *jbig2.HuffmanTable
}

// Len returns the number of table lines.
func (ht *HuffmanTable) Len() int { return ht.table.Len() }

// HasOOB reports whether the table codes an out-of-band value.
func (ht *HuffmanTable) HasOOB() bool { return ht.table.HasOOB() }
