package bitmap

// Subsample keeps every xStep-th column starting at xOff and every yStep-th
// row starting at yOff.
func Subsample(src *Bitmap, xStep, yStep, xOff, yOff int) *Bitmap {
	xStep, yStep = max(xStep, 1), max(yStep, 1)
	dst := New((src.width-xOff)/xStep, (src.height-yOff)/yStep)
	for dy, sy := 0, yOff; dy < dst.height; dy, sy = dy+1, sy+yStep {
		for dx, sx := 0, xOff; dx < dst.width; dx, sx = dx+1, sx+xStep {
			if src.Pixel(sx, sy) != 0 {
				dst.SetPixel(dx, dy, 1)
			}
		}
	}
	return dst
}

// SubsampleX decimates columns only; the height is unchanged.
func SubsampleX(src *Bitmap, xStep, xOff int) *Bitmap {
	return Subsample(src, xStep, 1, xOff, 0)
}

// SubsampleY decimates rows only; the width is unchanged.
func SubsampleY(src *Bitmap, yStep, yOff int) *Bitmap {
	return Subsample(src, 1, yStep, 0, yOff)
}
