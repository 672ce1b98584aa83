package jbig2

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformedHeader reports a header or flag field that violates the
	// stream syntax.
	ErrMalformedHeader = errors.New("jbig2: malformed header")
	// ErrMissingReferredSegment reports a referred-to segment number that
	// matches neither the page nor the global segments, or a referred
	// segment of the wrong kind.
	ErrMissingReferredSegment = errors.New("jbig2: missing referred segment")
	// ErrUnresolvedSegmentType reports a segment type code without a
	// registered decoder.
	ErrUnresolvedSegmentType = errors.New("jbig2: unresolved segment type")
	// ErrIntegerOverflow reports a decoded integer outside the 32-bit range.
	ErrIntegerOverflow = errors.New("jbig2: integer overflow")
	// ErrStreamIO reports a read past the end of the available data.
	ErrStreamIO = fmt.Errorf("jbig2: stream: %w", io.ErrUnexpectedEOF)
)

// SegmentError attributes a decoding failure to a segment.
type SegmentError struct {
	Number uint32
	Type   SegmentType
	Err    error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("jbig2: segment %d (%s): %v", e.Number, e.Type, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedHeader}, args...)...)
}
