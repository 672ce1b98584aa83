package bitmap

import "image"

// Extract copies the pixels of src inside roi into a new bitmap of roi's size.
// Parts of roi outside src read as white.
func Extract(roi image.Rectangle, src *Bitmap) *Bitmap {
	dst := New(roi.Dx(), roi.Dy())
	if src == nil || dst.stride == 0 {
		return dst
	}

	start := roi.Min.X >> 3
	shift := uint(roi.Min.X & 7)
	padding := uint(dst.padding())

	for dy := 0; dy < dst.height; dy++ {
		srcRow := src.Row(roi.Min.Y + dy)
		if srcRow == nil {
			continue
		}
		dstRow := dst.Row(dy)
		if shift == 0 {
			for i := range dstRow {
				dstRow[i] = srcAt(srcRow, start+i)
			}
		} else {
			for i := range dstRow {
				k := start + i
				dstRow[i] = srcAt(srcRow, k)<<shift | srcAt(srcRow, k+1)>>(8-shift)
			}
		}
		last := len(dstRow) - 1
		dstRow[last] = unpad(padding, dstRow[last])
	}
	return dst
}

// unpad clears the low padding bits of the last byte of a row.
func unpad(padding uint, value byte) byte {
	return value >> padding << padding
}
