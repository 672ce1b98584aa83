// Package bitmap implements the packed bi-level raster used by the JBIG2
// decoder together with its compositing primitives.
package bitmap

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
)

// Bitmap is a packed 1-bit-per-pixel raster. Rows are padded to a whole
// byte and a set bit is a black pixel. Padding bits are always zero.
type Bitmap struct {
	width  int
	height int
	stride int // bytes per row, always ceil(width/8)
	data   []byte
}

// New allocates a zeroed bitmap. Negative dimensions are treated as zero.
func New(width, height int) *Bitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := (width + 7) >> 3
	return &Bitmap{
		width:  width,
		height: height,
		stride: stride,
		data:   make([]byte, stride*height),
	}
}

// FromBytes wraps rows that are already packed with a ceil(width/8) stride.
// The slice is copied and padding bits are cleared.
func FromBytes(width, height int, data []byte) *Bitmap {
	bm := New(width, height)
	copy(bm.data, data)
	bm.clearPadding()
	return bm
}

// Width returns the width in pixels.
func (bm *Bitmap) Width() int { return bm.width }

// Height returns the height in pixels.
func (bm *Bitmap) Height() int { return bm.height }

// Stride returns the number of bytes per row.
func (bm *Bitmap) Stride() int { return bm.stride }

// Data exposes the backing buffer.
func (bm *Bitmap) Data() []byte { return bm.data }

// Bounds returns the pixel rectangle covered by the bitmap.
func (bm *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, bm.width, bm.height) }

// ByteIndex returns the buffer index of the byte holding pixel (x, y).
func (bm *Bitmap) ByteIndex(x, y int) int { return y*bm.stride + (x >> 3) }

// Byte returns the byte at index i, or 0 outside the buffer.
func (bm *Bitmap) Byte(i int) byte {
	if i < 0 || i >= len(bm.data) {
		return 0
	}
	return bm.data[i]
}

// SetByte stores b at index i. Out of range writes are ignored.
func (bm *Bitmap) SetByte(i int, b byte) {
	if i < 0 || i >= len(bm.data) {
		return
	}
	bm.data[i] = b
}

// Row returns the bytes of row y, or nil when y is out of range.
func (bm *Bitmap) Row(y int) []byte {
	if y < 0 || y >= bm.height {
		return nil
	}
	return bm.data[y*bm.stride : (y+1)*bm.stride]
}

// Pixel returns the value at (x, y). Coordinates outside the bitmap read as 0.
func (bm *Bitmap) Pixel(x, y int) int {
	if x < 0 || x >= bm.width || y < 0 || y >= bm.height {
		return 0
	}
	return int(bm.data[y*bm.stride+(x>>3)]>>(7-uint(x&7))) & 1
}

// SetPixel sets (x, y) to v (0 or non-zero). Writes outside the bitmap are ignored.
func (bm *Bitmap) SetPixel(x, y, v int) {
	if x < 0 || x >= bm.width || y < 0 || y >= bm.height {
		return
	}
	mask := byte(0x80 >> uint(x&7))
	if v != 0 {
		bm.data[y*bm.stride+(x>>3)] |= mask
	} else {
		bm.data[y*bm.stride+(x>>3)] &^= mask
	}
}

// CopyRow copies row src into row dst. A source row outside the bitmap
// clears the destination.
func (bm *Bitmap) CopyRow(dst, src int) {
	d := bm.Row(dst)
	if d == nil {
		return
	}
	s := bm.Row(src)
	if s == nil {
		clear(d)
		return
	}
	copy(d, s)
}

// Fill sets every pixel to black (true) or white (false).
func (bm *Bitmap) Fill(black bool) {
	v := byte(0)
	if black {
		v = 0xFF
	}
	for i := range bm.data {
		bm.data[i] = v
	}
	if black {
		bm.clearPadding()
	}
}

// Clone returns a deep copy.
func (bm *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		width:  bm.width,
		height: bm.height,
		stride: bm.stride,
		data:   bytes.Clone(bm.data),
	}
}

// Equal reports whether both bitmaps have the same size and pixels.
func (bm *Bitmap) Equal(other *Bitmap) bool {
	if bm == nil || other == nil {
		return bm == other
	}
	return bm.width == other.width && bm.height == other.height && bytes.Equal(bm.data, other.data)
}

// Checksum returns the hex SHA-256 of the packed rows.
func (bm *Bitmap) Checksum() string {
	sum := sha256.Sum256(bm.data)
	return hex.EncodeToString(sum[:])
}

// String renders the bitmap as rows of '#' and '.', mostly for test failures.
func (bm *Bitmap) String() string {
	var b bytes.Buffer
	for y := 0; y < bm.height; y++ {
		for x := 0; x < bm.width; x++ {
			if bm.Pixel(x, y) != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (bm *Bitmap) clearPadding() {
	pad := bm.padding()
	if pad == 0 || bm.stride == 0 {
		return
	}
	mask := byte(0xFF << uint(pad))
	for y := 0; y < bm.height; y++ {
		bm.data[y*bm.stride+bm.stride-1] &= mask
	}
}

// padding is the number of unused low bits in the last byte of a row.
func (bm *Bitmap) padding() int {
	return (8 - bm.width&7) & 7
}
