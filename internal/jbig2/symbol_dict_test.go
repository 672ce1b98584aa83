package jbig2

import (
	"encoding/binary"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// symbolDictArith encodes height classes of new symbols and the export
// run lengths with template 0 generic coding. gb is updated in place.
func symbolDictArith(classes [][]*bitmap.Bitmap, exportRuns []int, gb []ArithContext) []byte {
	e := newArithEncoder()
	iadh, iadw, iaex := newIntEncoder(), newIntEncoder(), newIntEncoder()
	height := 0
	for _, class := range classes {
		iadh.value(e, class[0].Height()-height)
		height = class[0].Height()
		width := 0
		for _, sym := range class {
			iadw.value(e, sym.Width()-width)
			width = sym.Width()
			encodeGeneric(e, gb, sym, 0, defaultGenericAT(0), false, nil)
		}
		iadw.oob(e)
	}
	for _, n := range exportRuns {
		iaex.value(e, n)
	}
	return e.flush()
}

func symbolDictSegmentData(flags uint16, numEx, numNew uint32, body []byte) []byte {
	out := binary.BigEndian.AppendUint16(nil, flags)
	if flags&0x0001 == 0 {
		out = append(out, atData(defaultGenericAT(0))...)
	}
	out = binary.BigEndian.AppendUint32(out, numEx)
	out = binary.BigEndian.AppendUint32(out, numNew)
	return append(out, body...)
}

func testSymbolClasses(rng *rand.Rand) [][]*bitmap.Bitmap {
	return [][]*bitmap.Bitmap{
		{randomBitmap(rng, 3, 2), randomBitmap(rng, 5, 2)},
		{randomBitmap(rng, 4, 4)},
	}
}

func assertBitmaps(t *testing.T, want, got []*bitmap.Bitmap) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "symbol %d:\n%v\nwant\n%v", i, got[i], want[i])
	}
}

func TestDecodeSymbolDictArith(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	classes := testSymbolClasses(rng)
	syms := slices.Concat(classes...)

	gb := newContexts(genericContextSize(0))
	data := symbolDictArith(classes, []int{0, 3}, gb)

	p := SymbolDictParams{AT: defaultGenericAT(0), NumExported: 3, NumNew: 3}
	res, err := DecodeSymbolDict(p, NewBitStream(data))
	require.NoError(t, err)
	assertBitmaps(t, syms, res.Exported)
	assert.Equal(t, gb, res.GB, "decoder contexts track the encoder's")

	p.NumExported = 2
	_, err = DecodeSymbolDict(p, NewBitStream(data))
	assert.ErrorIs(t, err, ErrMalformedHeader, "export count differs from the header")
}

func TestDecodeSymbolDictExportsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(32))
	input := []*bitmap.Bitmap{randomBitmap(rng, 2, 2), randomBitmap(rng, 6, 3)}
	classes := testSymbolClasses(rng)

	// skip the first input symbol, export the second and the first two new
	data := symbolDictArith(classes, []int{1, 3, 1}, newContexts(genericContextSize(0)))
	p := SymbolDictParams{AT: defaultGenericAT(0), NumExported: 3, NumNew: 3, Input: input}
	res, err := DecodeSymbolDict(p, NewBitStream(data))
	require.NoError(t, err)
	assertBitmaps(t, []*bitmap.Bitmap{input[1], classes[0][0], classes[0][1]}, res.Exported)
	assert.Same(t, input[1], res.Exported[0], "input symbols are shared")
}

func TestDecodeSymbolDictHuffmanCollective(t *testing.T) {
	a := bitmapFromRows("##", "#.")
	b := bitmapFromRows("#.#", ".#.")
	coll := bitmap.New(5, 2)
	bitmap.Blit(a, coll, 0, 0, bitmap.OR)
	bitmap.Blit(b, coll, 2, 0, bitmap.OR)

	p := SymbolDictParams{
		Huffman:      true,
		NumExported:  2,
		NumNew:       2,
		TableDH:      StandardTable(4),
		TableDW:      StandardTable(2),
		TableBMSize:  StandardTable(1),
		TableAggInst: StandardTable(1),
	}
	w := &bitWriter{}
	encodeHuffman(w, p.TableDH, iv(2))
	encodeHuffman(w, p.TableDW, iv(2))
	encodeHuffman(w, p.TableDW, iv(1))
	encodeHuffman(w, p.TableDW, nil)
	encodeHuffman(w, p.TableBMSize, iv(0))
	w.align()
	w.out = append(w.out, coll.Data()...)
	encodeHuffman(w, StandardTable(1), iv(0))
	encodeHuffman(w, StandardTable(1), iv(2))

	res, err := DecodeSymbolDict(p, NewBitStream(w.bytes()))
	require.NoError(t, err)
	assertBitmaps(t, []*bitmap.Bitmap{a, b}, res.Exported)
	assert.Nil(t, res.GB)
}

func TestDecodeSymbolDictRefinement(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	ref := blockBitmap(rng, 12, 10)
	img := perturb(rng, ref, 5)

	e := newArithEncoder()
	iadh, iadw, iaai, iaex := newIntEncoder(), newIntEncoder(), newIntEncoder(), newIntEncoder()
	rdx, rdy := newIntEncoder(), newIntEncoder()
	id := newIaidEncoder(1)
	gr := newContexts(refinementContextSize(1))

	iadh.value(e, 10)
	iadw.value(e, 12)
	iaai.value(e, 1)
	id.encode(e, 0)
	rdx.value(e, 0)
	rdy.value(e, 0)
	encodeRefinement(e, gr, img, RefinementParams{Width: 12, Height: 10, Template: 1, Reference: ref})
	iadw.oob(e)
	iaex.value(e, 1)
	iaex.value(e, 1)

	p := SymbolDictParams{
		RefAgg:      true,
		AT:          defaultGenericAT(0),
		RTemplate:   1,
		NumExported: 1,
		NumNew:      1,
		Input:       []*bitmap.Bitmap{ref},
	}
	res, err := DecodeSymbolDict(p, NewBitStream(e.flush()))
	require.NoError(t, err)
	assertBitmaps(t, []*bitmap.Bitmap{img}, res.Exported)
	assert.Equal(t, gr, res.GR)
}

func TestDecodeSymbolDictInvalid(t *testing.T) {
	_, err := DecodeSymbolDict(SymbolDictParams{NumExported: 2, NumNew: 1}, NewBitStream(nil))
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = DecodeSymbolDict(SymbolDictParams{NumNew: -1}, NewBitStream(nil))
	assert.ErrorIs(t, err, ErrMalformedHeader)

	// first height class delta is OOB
	e := newArithEncoder()
	newIntEncoder().oob(e)
	_, err = DecodeSymbolDict(SymbolDictParams{AT: defaultGenericAT(0), NumNew: 1}, NewBitStream(e.flush()))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestSymbolDictionarySegments(t *testing.T) {
	rng := rand.New(rand.NewSource(34))
	first := testSymbolClasses(rng)
	second := [][]*bitmap.Bitmap{{randomBitmap(rng, 7, 3)}}

	// the second dictionary continues with the first one's contexts
	gb := newContexts(genericContextSize(0))
	data1 := symbolDictArith(first, []int{1, 2}, gb)
	data2 := symbolDictArith(second, []int{0, 3}, gb)

	sd1 := &SegmentHeader{Number: 1, Type: TypeSymbolDictionary, data: symbolDictSegmentData(0x0200, 2, 3, data1)}
	sd2 := &SegmentHeader{
		Number: 2,
		Type:   TypeSymbolDictionary,
		refs:   []*SegmentHeader{sd1},
		data:   symbolDictSegmentData(0x0100, 3, 1, data2),
	}

	pl, err := sd2.Payload()
	require.NoError(t, err)
	d := pl.(*SymbolDictionary)
	assert.Equal(t, 3, d.NumExported())
	assert.Equal(t, 1, d.Params().NumNew)

	got, err := d.Dictionary()
	require.NoError(t, err)
	assertBitmaps(t, []*bitmap.Bitmap{first[0][1], first[1][0], second[0][0]}, got)

	again, err := d.Dictionary()
	require.NoError(t, err)
	assert.Same(t, got[0], again[0])
}

func TestSymbolDictionaryInit(t *testing.T) {
	// Huffman, DH B.5, DW B.3, BMSIZE B.1, AGGINST B.1
	var sd SymbolDictionary
	require.NoError(t, sd.Init(&SegmentHeader{}, NewBitStream(symbolDictSegmentData(0x0001|1<<2|1<<4, 0, 0, nil))))
	p := sd.Params()
	assert.True(t, p.Huffman)
	assert.Same(t, StandardTable(5), p.TableDH)
	assert.Same(t, StandardTable(3), p.TableDW)
	assert.Same(t, StandardTable(1), p.TableBMSize)
	assert.Same(t, StandardTable(1), p.TableAggInst)

	tests := []struct {
		name  string
		flags uint16
		numEx uint32
		err   error
	}{
		{"context reuse without predecessor", 0x0100, 0, ErrMalformedHeader},
		{"huffman context reuse", 0x0101, 0, ErrMalformedHeader},
		{"exports more than it has", 0x0000, 1, ErrMalformedHeader},
		{"reserved DH selector", 0x0001 | 2<<2, 0, ErrMalformedHeader},
		{"missing user table", 0x0001 | 3<<2, 0, ErrMissingReferredSegment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sd SymbolDictionary
			err := sd.Init(&SegmentHeader{}, NewBitStream(symbolDictSegmentData(tt.flags, tt.numEx, 0, nil)))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
