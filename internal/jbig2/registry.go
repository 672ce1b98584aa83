package jbig2

import "fmt"

// registry maps every supported segment type to the constructor of its
// payload. It is fixed at compile time.
var registry = map[SegmentType]func() SegmentData{
	TypeSymbolDictionary:                  func() SegmentData { return new(SymbolDictionary) },
	TypeIntermediateTextRegion:            func() SegmentData { return new(TextRegion) },
	TypeImmediateTextRegion:               func() SegmentData { return new(TextRegion) },
	TypeImmediateLosslessTextRegion:       func() SegmentData { return new(TextRegion) },
	TypePatternDictionary:                 func() SegmentData { return new(PatternDictionary) },
	TypeIntermediateHalftoneRegion:        func() SegmentData { return new(HalftoneRegion) },
	TypeImmediateHalftoneRegion:           func() SegmentData { return new(HalftoneRegion) },
	TypeImmediateLosslessHalftoneRegion:   func() SegmentData { return new(HalftoneRegion) },
	TypeIntermediateGenericRegion:         func() SegmentData { return new(GenericRegion) },
	TypeImmediateGenericRegion:            func() SegmentData { return new(GenericRegion) },
	TypeImmediateLosslessGenericRegion:    func() SegmentData { return new(GenericRegion) },
	TypeIntermediateRefinementRegion:      func() SegmentData { return new(RefinementRegion) },
	TypeImmediateRefinementRegion:         func() SegmentData { return new(RefinementRegion) },
	TypeImmediateLosslessRefinementRegion: func() SegmentData { return new(RefinementRegion) },
	TypePageInformation:                   func() SegmentData { return new(PageInformation) },
	TypeEndOfPage:                         func() SegmentData { return new(EndMarker) },
	TypeEndOfStripe:                       func() SegmentData { return new(EndOfStripe) },
	TypeEndOfFile:                         func() SegmentData { return new(EndMarker) },
	TypeProfiles:                          func() SegmentData { return new(Profiles) },
	TypeTables:                            func() SegmentData { return new(TableSegment) },
	TypeExtension:                         func() SegmentData { return new(Extension) },
}

func newSegmentData(t SegmentType) (SegmentData, error) {
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnresolvedSegmentType, uint8(t))
	}
	return factory(), nil
}
