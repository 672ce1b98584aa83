package jbig2

import (
	"image"
	"sync"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// PatternDictParams configures a pattern dictionary decode.
type PatternDictParams struct {
	MMR      bool
	Template int
	Width    int // HDPW
	Height   int // HDPH
	GrayMax  int
}

// collectiveAT returns the AT pixels of the collective bitmap.
func (p PatternDictParams) collectiveAT() []image.Point {
	at := []image.Point{{-p.Width, 0}}
	if p.Template == 0 {
		at = append(at, image.Point{-3, -1}, image.Point{2, -2}, image.Point{-2, -2})
	}
	return at
}

// DecodePatternDict decodes the collective bitmap and slices it into
// GrayMax+1 patterns, left to right.
func DecodePatternDict(p PatternDictParams, bs *BitStream) ([]*bitmap.Bitmap, error) {
	if p.Width < 1 || p.Height < 1 {
		return nil, malformed("pattern dictionary: pattern size %dx%d", p.Width, p.Height)
	}
	if p.GrayMax < 0 || p.GrayMax >= maxPatterns {
		return nil, malformed("pattern dictionary: gray max %d", p.GrayMax)
	}
	n := p.GrayMax + 1
	if n*p.Width > maxImageSize {
		return nil, malformed("pattern dictionary: collective width %d", n*p.Width)
	}

	gp := GenericParams{
		Width:    n * p.Width,
		Height:   p.Height,
		MMR:      p.MMR,
		Template: p.Template,
		AT:       p.collectiveAT(),
	}
	var (
		coll *bitmap.Bitmap
		err  error
	)
	if p.MMR {
		coll, err = DecodeGenericMMR(gp, bs)
	} else {
		coll, err = DecodeGenericArith(gp, NewArithDecoder(bs), newContexts(genericContextSize(p.Template)))
	}
	if err != nil {
		return nil, err
	}

	patterns := make([]*bitmap.Bitmap, n)
	for g := range patterns {
		x := g * p.Width
		patterns[g] = bitmap.Extract(image.Rect(x, 0, x+p.Width, p.Height), coll)
	}
	return patterns, nil
}

// PatternDictionary is a pattern dictionary segment (type 16).
type PatternDictionary struct {
	params PatternDictParams
	data   []byte

	mu       sync.Mutex
	patterns []*bitmap.Bitmap
}

// Init parses the dictionary header. Patterns are decoded on first use.
func (pd *PatternDictionary) Init(_ *SegmentHeader, bs *BitStream) error {
	flags, err := bs.ReadByte()
	if err != nil {
		return err
	}
	pw, err := bs.ReadByte()
	if err != nil {
		return err
	}
	ph, err := bs.ReadByte()
	if err != nil {
		return err
	}
	grayMax, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if pw == 0 || ph == 0 {
		return malformed("pattern dictionary: pattern size %dx%d", pw, ph)
	}
	if grayMax >= maxPatterns {
		return malformed("pattern dictionary: gray max %d", grayMax)
	}
	pd.params = PatternDictParams{
		MMR:      flags&0x01 != 0,
		Template: int(flags>>1) & 0x03,
		Width:    int(pw),
		Height:   int(ph),
		GrayMax:  int(grayMax),
	}
	pd.data = bs.Remaining()
	return nil
}

// Params returns the decode configuration.
func (pd *PatternDictionary) Params() PatternDictParams { return pd.params }

// NumPatterns returns GrayMax+1.
func (pd *PatternDictionary) NumPatterns() int { return pd.params.GrayMax + 1 }

// Dictionary returns the patterns indexed by gray value. They are shared
// with every halftone region using the dictionary.
func (pd *PatternDictionary) Dictionary() ([]*bitmap.Bitmap, error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.patterns != nil {
		return pd.patterns, nil
	}
	patterns, err := DecodePatternDict(pd.params, NewBitStream(pd.data))
	if err != nil {
		return nil, err
	}
	pd.patterns = patterns
	return patterns, nil
}
