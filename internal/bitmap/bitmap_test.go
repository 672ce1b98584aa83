package bitmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBitmap(rng *rand.Rand, w, h int) *Bitmap {
	bm := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.SetPixel(x, y, rng.Intn(2))
		}
	}
	return bm
}

func TestNewBitmapIsBlank(t *testing.T) {
	for w := 0; w <= 33; w++ {
		for h := 0; h <= 5; h++ {
			bm := New(w, h)
			require.Equal(t, (w+7)/8, bm.Stride(), "w=%d", w)
			require.Len(t, bm.Data(), bm.Stride()*h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					require.Zero(t, bm.Pixel(x, y))
				}
			}
		}
	}
}

func TestBitmapPixelAccess(t *testing.T) {
	bm := New(80, 20)
	bm.SetPixel(0, 0, 1)
	bm.SetPixel(79, 19, 1)
	assert.Equal(t, 1, bm.Pixel(0, 0))
	assert.Equal(t, 1, bm.Pixel(79, 19))
	assert.Equal(t, byte(0x80), bm.Data()[0])
	assert.Equal(t, byte(0x01), bm.Data()[bm.ByteIndex(79, 19)])

	// out of bounds is ignored
	bm.SetPixel(-1, 1, 1)
	bm.SetPixel(80, 20, 1)
	assert.Zero(t, bm.Pixel(-1, -1))
	assert.Zero(t, bm.Pixel(80, 20))

	bm.SetPixel(0, 0, 0)
	assert.Zero(t, bm.Pixel(0, 0))
}

func TestFillKeepsPaddingClear(t *testing.T) {
	bm := New(10, 3)
	bm.Fill(true)
	for y := 0; y < 3; y++ {
		row := bm.Row(y)
		assert.Equal(t, []byte{0xFF, 0xC0}, row)
	}
	bm.Fill(false)
	assert.Equal(t, make([]byte, 6), bm.Data())
}

func TestCopyRow(t *testing.T) {
	bm := New(12, 3)
	bm.SetPixel(3, 0, 1)
	bm.CopyRow(1, 0)
	assert.Equal(t, 1, bm.Pixel(3, 1))
	bm.CopyRow(1, -1)
	assert.Zero(t, bm.Pixel(3, 1))
}

func TestCloneAndEqual(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bm := randomBitmap(rng, 21, 7)
	c := bm.Clone()
	require.True(t, bm.Equal(c))
	c.SetPixel(20, 6, 1-c.Pixel(20, 6))
	assert.False(t, bm.Equal(c))
	assert.NotEqual(t, bm.Checksum(), c.Checksum())
}

func TestFromBytesClearsPadding(t *testing.T) {
	bm := FromBytes(4, 2, []byte{0xFF, 0xAF})
	assert.Equal(t, []byte{0xF0, 0xA0}, bm.Data())
	assert.Equal(t, "####\n#.#.\n", bm.String())
}

func TestCombineBytes(t *testing.T) {
	tests := []struct {
		op   CombinationOperator
		want byte
	}{
		{OR, 0xEE},
		{AND, 0x88},
		{XOR, 0x66},
		{XNOR, 0x99},
		{REPLACE, 0xAA},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CombineBytes(0xCC, 0xAA, tt.op))
		})
	}
}

func TestOperatorFromCode(t *testing.T) {
	op, err := OperatorFromCode(3)
	require.NoError(t, err)
	assert.Equal(t, XNOR, op)
	_, err = OperatorFromCode(5)
	assert.Error(t, err)
}
