package jbig2

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdeng/jbig2go/internal/fixtures"
)

func openFixture(t *testing.T, name string) (*Decoder, fixtures.Fixture) {
	t.Helper()
	f, err := fixtures.Lookup(name)
	require.NoError(t, err)
	d, err := New(Options{SrcData: f.Data(), GlobalData: f.Globals(), Embedded: f.Embedded})
	require.NoError(t, err)
	return d, f
}

func TestDecoderCreation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err, "empty source data")

	d, _ := openFixture(t, "generic-text")
	assert.Equal(t, 1, d.NumPages())
	assert.Equal(t, []uint32{1}, d.PageNumbers())
}

func TestDecodeFixtures(t *testing.T) {
	for _, f := range fixtures.All() {
		t.Run(f.Name, func(t *testing.T) {
			d, _ := openFixture(t, f.Name)
			img, err := d.Page(1)
			require.NoError(t, err)
			assert.Equal(t, f.Width, img.Width())
			assert.Equal(t, f.Height, img.Height())
			assert.Equal(t, (f.Width+7)/8, img.Stride())
			assert.Equal(t, f.Checksum, img.Checksum())
		})
	}
}

// Bit errors anywhere in a stream surface as errors, never as panics.
func TestCorruptFixtures(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	quiet := slog.New(slog.DiscardHandler)
	for _, f := range fixtures.All() {
		t.Run(f.Name, func(t *testing.T) {
			src := f.Data()
			for i := 0; i < 400; i++ {
				data := bytes.Clone(src)
				for n := 1 + rng.Intn(4); n > 0; n-- {
					bit := rng.Intn(len(data) * 8)
					data[bit>>3] ^= 0x80 >> (bit & 7)
				}
				assert.NotPanics(t, func() {
					d, err := New(Options{SrcData: data, GlobalData: f.Globals(), Embedded: f.Embedded, Logger: quiet})
					if err != nil {
						return
					}
					for _, n := range d.PageNumbers() {
						_, _ = d.Page(int(n))
					}
				}, "iteration %d", i)
			}
		})
	}
}

func TestPageIsCached(t *testing.T) {
	d, _ := openFixture(t, "refinement")
	first, err := d.Page(1)
	require.NoError(t, err)
	second, err := d.Page(1)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPageNumberOutOfRange(t *testing.T) {
	d, _ := openFixture(t, "halftone")
	_, err := d.Page(0)
	assert.Error(t, err)
	_, err = d.Page(2)
	assert.Error(t, err)
}

func TestDecodeAll(t *testing.T) {
	d, f := openFixture(t, "huffman-text")
	images, err := d.DecodeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, f.Checksum, images[0].Checksum())
}

func TestDecodeAllCanceled(t *testing.T) {
	d, _ := openFixture(t, "generic-text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.DecodeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrganisation(t *testing.T) {
	tests := map[string]string{
		"generic-text": "sequential",
		"huffman-text": "random-access",
		"halftone":     "sequential",
		"striped":      "embedded",
	}
	for name, want := range tests {
		d, _ := openFixture(t, name)
		assert.Equal(t, want, d.Organisation(), name)
	}
}

func TestSegments(t *testing.T) {
	d, _ := openFixture(t, "halftone")
	segs := d.Segments()

	type summary struct {
		Number uint32
		Type   string
		Page   uint32
		Result ResultType
	}
	var got []summary
	for _, s := range segs {
		got = append(got, summary{s.Number(), s.TypeName(), s.PageAssociation(), s.ResultType()})
	}
	want := []summary{
		{0, "page information", 1, ResultTypeVoid},
		{1, "pattern dictionary", 1, ResultTypePatternDict},
		{2, "immediate halftone region", 1, ResultTypeImage},
		{3, "end of page", 1, ResultTypeVoid},
		{4, "end of file", 0, ResultTypeVoid},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}

	pd, err := segs[1].PatternDict()
	require.NoError(t, err)
	require.Equal(t, 4, pd.NumPatterns())
	assert.Equal(t, 4, pd.Pattern(3).Width())
	assert.Nil(t, pd.Pattern(4))

	region, err := segs[2].Image()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 16), region.Bounds())
	assert.Equal(t, []uint32{1}, segs[2].Referred())

	_, err = segs[0].SymbolDict()
	assert.Error(t, err)
}

func TestSymbolDictAndTables(t *testing.T) {
	d, _ := openFixture(t, "huffman-text")
	var dict *SymbolDict
	var table *HuffmanTable
	for _, s := range d.Segments() {
		var err error
		switch s.ResultType() {
		case ResultTypeSymbolDict:
			dict, err = s.SymbolDict()
		case ResultTypeHuffmanTable:
			table, err = s.HuffmanTable()
		}
		require.NoError(t, err)
	}
	require.NotNil(t, dict)
	require.NotNil(t, table)

	assert.Equal(t, 4, dict.NumImages())
	heights := []int{dict.Image(0).Height(), dict.Image(1).Height(), dict.Image(2).Height(), dict.Image(3).Height()}
	assert.Equal(t, []int{6, 6, 9, 9}, heights)
	assert.Nil(t, dict.Image(-1))

	// two range lines, the lower and upper range lines and OOB
	assert.Equal(t, 5, table.Len())
	assert.True(t, table.HasOOB())
}

func TestMissingGlobals(t *testing.T) {
	f, err := fixtures.Lookup("striped")
	require.NoError(t, err)
	_, err = New(Options{SrcData: f.Data(), Embedded: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingReferredSegment)

	var segErr *SegmentError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, uint32(4), segErr.Number)
}

func TestImageDecodeRegistered(t *testing.T) {
	f, err := fixtures.Lookup("generic-text")
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(f.Data()))
	require.NoError(t, err)
	assert.Equal(t, "jbig2", format)
	assert.Equal(t, f.Width, cfg.Width)
	assert.Equal(t, f.Height, cfg.Height)

	img, format, err := image.Decode(bytes.NewReader(f.Data()))
	require.NoError(t, err)
	assert.Equal(t, "jbig2", format)

	d, _ := openFixture(t, "generic-text")
	page, err := d.Page(1)
	require.NoError(t, err)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			want := color.GrayModel.Convert(page.At(x, y))
			if got := img.At(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDecodeConfigNotJBIG2(t *testing.T) {
	_, _, err := image.DecodeConfig(bytes.NewReader([]byte("not an image")))
	assert.True(t, errors.Is(err, image.ErrFormat))
}

func TestRaster(t *testing.T) {
	d, f := openFixture(t, "halftone")
	page, err := d.Page(1)
	require.NoError(t, err)

	native := page.Raster(ReadParam{}, FilterGaussian)
	assert.Equal(t, page.Bounds(), native.Bounds())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			assert.Equal(t, color.GrayModel.Convert(page.At(x, y)), color.GrayModel.Convert(native.At(x, y)))
		}
	}

	half := page.Raster(ReadParam{RenderSize: image.Pt(f.Width/2, f.Height/2)}, FilterBox)
	assert.Equal(t, image.Rect(0, 0, f.Width/2, f.Height/2), half.Bounds())

	sub := page.Raster(ReadParam{XSubsampling: 2, YSubsampling: 2}, FilterBox)
	assert.Equal(t, image.Rect(0, 0, f.Width/2, f.Height/2), sub.Bounds())
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("lanczos")
	require.NoError(t, err)
	assert.Equal(t, FilterLanczos, f)
	_, err = ParseFilter("nearest")
	assert.Error(t, err)
}

func TestResultTypeString(t *testing.T) {
	tests := []struct {
		rt   ResultType
		want string
	}{
		{ResultTypeVoid, "Void"},
		{ResultTypeImage, "Image"},
		{ResultTypeSymbolDict, "SymbolDict"},
		{ResultTypePatternDict, "PatternDict"},
		{ResultTypeHuffmanTable, "HuffmanTable"},
		{ResultType(42), "ResultType(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rt.String())
	}
}
