package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Filter selects the resampling kernel used when a raster must be rescaled.
type Filter int

const (
	FilterGaussian Filter = iota
	FilterBox
	FilterBilinear
	FilterCatmullRom
	FilterMitchell
	FilterLanczos
	FilterBessel
)

var filterNames = map[Filter]string{
	FilterGaussian:   "gaussian",
	FilterBox:        "box",
	FilterBilinear:   "bilinear",
	FilterCatmullRom: "catmullrom",
	FilterMitchell:   "mitchell",
	FilterLanczos:    "lanczos",
	FilterBessel:     "bessel",
}

func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// ParseFilter resolves a filter by its lower-case name.
func ParseFilter(name string) (Filter, error) {
	for f, n := range filterNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("bitmap: unknown filter %q", name)
}

// Kernel returns the resampling kernel for f.
func (f Filter) Kernel() *draw.Kernel {
	switch f {
	case FilterBox:
		return boxKernel
	case FilterBilinear:
		return draw.BiLinear
	case FilterCatmullRom:
		return draw.CatmullRom
	case FilterMitchell:
		return mitchellKernel
	case FilterLanczos:
		return lanczosKernel
	case FilterBessel:
		return besselKernel
	default:
		return gaussianKernel
	}
}

var (
	boxKernel = &draw.Kernel{Support: 0.5, At: func(t float64) float64 {
		if t <= 0.5 {
			return 1
		}
		return 0
	}}

	gaussianKernel = &draw.Kernel{Support: 1.25, At: func(t float64) float64 {
		return math.Exp(-2*t*t) * math.Sqrt(2/math.Pi)
	}}

	mitchellKernel = &draw.Kernel{Support: 2, At: func(t float64) float64 {
		const b, c = 1.0 / 3, 1.0 / 3
		switch {
		case t < 1:
			return ((12-9*b-6*c)*t*t*t + (-18+12*b+6*c)*t*t + (6 - 2*b)) / 6
		case t < 2:
			return ((-b-6*c)*t*t*t + (6*b+30*c)*t*t + (-12*b-48*c)*t + (8*b + 24*c)) / 6
		}
		return 0
	}}

	lanczosKernel = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		if t >= 3 {
			return 0
		}
		return sinc(t) * sinc(t/3)
	}}

	besselKernel = &draw.Kernel{Support: 3.2383, At: func(t float64) float64 {
		if t == 0 {
			return math.Pi / 4
		}
		return math.J1(math.Pi*t) / (2 * t)
	}}
)

func sinc(t float64) float64 {
	if t == 0 {
		return 1
	}
	t *= math.Pi
	return math.Sin(t) / t
}

// ReadParam describes which part of a bitmap to render and at what size.
type ReadParam struct {
	// SourceRegion restricts rendering to a sub-rectangle. The zero value
	// renders the whole bitmap.
	SourceRegion image.Rectangle
	// RenderSize is the requested size of the full bitmap. The zero value
	// keeps the native size.
	RenderSize image.Point

	XSubsampling, YSubsampling int
	XOffset, YOffset           int
}

// Raster renders bm according to p. When scaling is required the result is
// an *image.Gray produced by f's kernel; otherwise it is a *Packed raster
// with the bitmap bytes inverted (1 = white).
func Raster(bm *Bitmap, p ReadParam, f Filter) image.Image {
	scaleX, scaleY := 1.0, 1.0
	if p.RenderSize != (image.Point{}) && bm.width > 0 && bm.height > 0 {
		scaleX = float64(p.RenderSize.X) / float64(bm.width)
		scaleY = float64(p.RenderSize.Y) / float64(bm.height)
	}

	if !p.SourceRegion.Empty() && p.SourceRegion != bm.Bounds() {
		bm = Extract(bm.Bounds().Intersect(p.SourceRegion), bm)
	}

	scaling := scaleX != 1 || scaleY != 1
	xStep, yStep := max(p.XSubsampling, 1), max(p.YSubsampling, 1)
	switch {
	case scaling:
		scaleX /= float64(xStep)
		scaleY /= float64(yStep)
	case xStep != 1 && yStep != 1:
		bm = Subsample(bm, xStep, yStep, p.XOffset, p.YOffset)
	case xStep != 1:
		bm = SubsampleX(bm, xStep, p.XOffset)
	case yStep != 1:
		bm = SubsampleY(bm, yStep, p.YOffset)
	}

	if scaleX == 1 && scaleY == 1 {
		return packed(bm)
	}
	dst := image.NewGray(image.Rect(0, 0,
		int(math.Round(float64(bm.width)*scaleX)),
		int(math.Round(float64(bm.height)*scaleY))))
	src := Gray(bm)
	f.Kernel().Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Gray converts bm to 8-bit gray with black pixels at 0 and white at 255.
func Gray(bm *Bitmap) *image.Gray {
	img := image.NewGray(bm.Bounds())
	for y := 0; y < bm.height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+bm.width]
		for x := range row {
			if bm.Pixel(x, y) == 0 {
				row[x] = 0xFF
			}
		}
	}
	return img
}

// Packed is a 1-bit raster in which a set bit is a white pixel.
type Packed struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func packed(bm *Bitmap) *Packed {
	pix := make([]byte, len(bm.data))
	for i, b := range bm.data {
		pix[i] = ^b
	}
	return &Packed{Pix: pix, Stride: bm.stride, Rect: bm.Bounds()}
}

func (p *Packed) ColorModel() color.Model { return color.GrayModel }

func (p *Packed) Bounds() image.Rectangle { return p.Rect }

func (p *Packed) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.Gray{}
	}
	x, y = x-p.Rect.Min.X, y-p.Rect.Min.Y
	if p.Pix[y*p.Stride+x>>3]&(0x80>>uint(x&7)) != 0 {
		return color.Gray{Y: 0xFF}
	}
	return color.Gray{}
}
