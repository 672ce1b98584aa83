package jbig2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jdeng/jbig2go/internal/jbig2"
)

// DefaultPageCacheSize is the number of decoded page images a Decoder keeps.
const DefaultPageCacheSize = 8

// Errors reported by the decoder. They are returned wrapped, so test them
// with errors.Is.
var (
	ErrMalformedHeader        = jbig2.ErrMalformedHeader
	ErrMissingReferredSegment = jbig2.ErrMissingReferredSegment
	ErrUnresolvedSegmentType  = jbig2.ErrUnresolvedSegmentType
	ErrIntegerOverflow        = jbig2.ErrIntegerOverflow
	ErrStreamIO               = jbig2.ErrStreamIO
)

// SegmentError attributes a decoding failure to a segment.
type SegmentError = jbig2.SegmentError

// Options configures JBIG2 decoding behavior.
type Options struct {
	// GlobalData provides optional global segment data, as stored in the
	// JBIG2Globals stream of a PDF.
	GlobalData []byte
	// SrcData contains the main JBIG2 data to decode.
	SrcData []byte
	// Embedded reads SrcData as a stream without file header, as embedded
	// in PDF files. Data without the file signature is always read that way.
	Embedded bool
	// CacheSize bounds the decoded segment payloads kept in memory.
	CacheSize int
	// Logger receives warnings and debug output. Nil means slog.Default().
	Logger *slog.Logger
	// Concurrency bounds the pages DecodeAll decodes at once.
	Concurrency int
}

// Decoder decodes the pages of one JBIG2 stream. It is safe for concurrent
// use.
type Decoder struct {
	doc   *jbig2.Document
	pages *lru.Cache[uint32, *Image]
	group singleflight.Group
}

// New parses the segment headers of opts.SrcData and opts.GlobalData.
// Bitmaps are decoded when pages are requested.
func New(opts Options) (*Decoder, error) {
	if len(opts.SrcData) == 0 {
		return nil, errors.New("jbig2: empty source data")
	}
	doc, err := jbig2.NewDocument(opts.SrcData, opts.GlobalData, opts.Embedded, jbig2.Config{
		CacheSize:      opts.CacheSize,
		Logger:         opts.Logger,
		MaxConcurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, err
	}
	pages, err := lru.New[uint32, *Image](DefaultPageCacheSize)
	if err != nil {
		return nil, err
	}
	return &Decoder{doc: doc, pages: pages}, nil
}

// NumPages returns the number of pages in the stream.
func (d *Decoder) NumPages() int { return d.doc.NumPages() }

// PageNumbers returns the page numbers in ascending order.
func (d *Decoder) PageNumbers() []uint32 { return d.doc.PageNumbers() }

// Page returns the composed bitmap of page n. Page numbers start at 1.
func (d *Decoder) Page(n int) (*Image, error) {
	if n < 1 {
		return nil, fmt.Errorf("jbig2: invalid page number %d", n)
	}
	num := uint32(n)
	if img, ok := d.pages.Get(num); ok {
		return img, nil
	}
	v, err, _ := d.group.Do(strconv.Itoa(n), func() (any, error) {
		p, err := d.doc.Page(num)
		if err != nil {
			return nil, err
		}
		bm, err := p.Bitmap()
		if err != nil {
			return nil, err
		}
		img := &Image{bm: bm}
		d.pages.Add(num, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Image), nil
}

// DecodeAll decodes every page, in page number order. Pages are decoded
// concurrently up to Options.Concurrency.
func (d *Decoder) DecodeAll(ctx context.Context) ([]*Image, error) {
	nums := d.doc.PageNumbers()
	images := make([]*Image, len(nums))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.doc.Config().MaxConcurrency)
	for i, n := range nums {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := d.Page(int(n))
			if err != nil {
				return fmt.Errorf("jbig2: page %d: %w", n, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Segments returns all segments, globals first, in stream order.
func (d *Decoder) Segments() []*Segment {
	headers := d.doc.Segments()
	segments := make([]*Segment, len(headers))
	for i, h := range headers {
		segments[i] = &Segment{h: h}
	}
	return segments
}

// Organisation describes the stream layout: "sequential", "random-access"
// or "embedded".
func (d *Decoder) Organisation() string {
	if h := d.doc.Header(); h != nil {
		return h.Organisation.String()
	}
	return jbig2.OrganisationEmbedded.String()
}
