package jbig2

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// patternDictData encodes patterns as a pattern dictionary segment body
// with arithmetic coding.
func patternDictData(patterns []*bitmap.Bitmap, template int) []byte {
	pw, ph := patterns[0].Width(), patterns[0].Height()
	coll := bitmap.New(pw*len(patterns), ph)
	for i, p := range patterns {
		bitmap.Blit(p, coll, i*pw, 0, bitmap.OR)
	}
	params := PatternDictParams{Template: template, Width: pw, Height: ph, GrayMax: len(patterns) - 1}

	out := []byte{byte(template << 1), byte(pw), byte(ph)}
	out = binary.BigEndian.AppendUint32(out, uint32(len(patterns)-1))
	e := newArithEncoder()
	encodeGeneric(e, newContexts(genericContextSize(template)), coll, template, params.collectiveAT(), false, nil)
	return append(out, e.flush()...)
}

func randomPatterns(rng *rand.Rand, n, w, h int) []*bitmap.Bitmap {
	patterns := make([]*bitmap.Bitmap, n)
	for i := range patterns {
		patterns[i] = randomBitmap(rng, w, h)
	}
	return patterns
}

func TestDecodePatternDict(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	for template := 0; template < 4; template++ {
		want := randomPatterns(rng, 5, 3, 4)
		data := patternDictData(want, template)

		var pd PatternDictionary
		require.NoError(t, pd.Init(&SegmentHeader{Type: TypePatternDictionary}, NewBitStream(data)))
		assert.Equal(t, PatternDictParams{Template: template, Width: 3, Height: 4, GrayMax: 4}, pd.Params())
		assert.Equal(t, 5, pd.NumPatterns())

		got, err := pd.Dictionary()
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := range want {
			assert.True(t, want[i].Equal(got[i]), "template %d pattern %d", template, i)
		}

		again, err := pd.Dictionary()
		require.NoError(t, err)
		assert.Same(t, got[0], again[0], "patterns are decoded once and shared")
	}
}

func TestDecodePatternDictMMR(t *testing.T) {
	// eight white rows of the 10 pixel wide collective bitmap
	p := PatternDictParams{MMR: true, Width: 5, Height: 8, GrayMax: 1}
	patterns, err := DecodePatternDict(p, NewBitStream([]byte{0xFF, 0x00, 0x10, 0x01}))
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	for _, pat := range patterns {
		assert.True(t, bitmap.New(5, 8).Equal(pat))
	}
}

func TestPatternDictInvalid(t *testing.T) {
	tests := []PatternDictParams{
		{Width: 0, Height: 4, GrayMax: 1},
		{Width: 4, Height: 0, GrayMax: 1},
		{Width: 4, Height: 4, GrayMax: -1},
		{Width: 4, Height: 4, GrayMax: maxPatterns},
		{Width: 4, Height: 4, GrayMax: 20000},
	}
	for _, p := range tests {
		_, err := DecodePatternDict(p, NewBitStream(nil))
		assert.ErrorIs(t, err, ErrMalformedHeader, "%+v", p)
	}

	header := []byte{0x00, 0x00, 0x04, 0, 0, 0, 1}
	var pd PatternDictionary
	assert.ErrorIs(t, pd.Init(&SegmentHeader{}, NewBitStream(header)), ErrMalformedHeader)

	header = []byte{0x00, 0x04, 0x04, 0, 0, 0xFF, 0xFF}
	assert.ErrorIs(t, pd.Init(&SegmentHeader{}, NewBitStream(header)), ErrMalformedHeader)

	assert.ErrorIs(t, pd.Init(&SegmentHeader{}, NewBitStream(header[:5])), ErrStreamIO)
}
