package jbig2

import (
	"image"
	"image/color"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// ReadParam selects the part of a page to render and its output size.
type ReadParam = bitmap.ReadParam

// Filter is a resampling kernel used by Image.Raster.
type Filter = bitmap.Filter

// Resampling kernels.
const (
	FilterGaussian   = bitmap.FilterGaussian
	FilterBox        = bitmap.FilterBox
	FilterBilinear   = bitmap.FilterBilinear
	FilterCatmullRom = bitmap.FilterCatmullRom
	FilterMitchell   = bitmap.FilterMitchell
	FilterLanczos    = bitmap.FilterLanczos
	FilterBessel     = bitmap.FilterBessel
)

// ParseFilter resolves a filter by its lower-case name.
func ParseFilter(name string) (Filter, error) { return bitmap.ParseFilter(name) }

// Image represents a decoded JBIG2 bitmap. It implements image.Image with
// black set pixels on a white background.
type Image struct {
	bm *bitmap.Bitmap
}

// Width returns the image width in pixels.
func (img *Image) Width() int {
	if img == nil || img.bm == nil {
		return 0
	}
	return img.bm.Width()
}

// Height returns the image height in pixels.
func (img *Image) Height() int {
	if img == nil || img.bm == nil {
		return 0
	}
	return img.bm.Height()
}

// Stride returns the number of bytes per row of Data.
func (img *Image) Stride() int {
	if img == nil || img.bm == nil {
		return 0
	}
	return img.bm.Stride()
}

// Data returns the packed rows, one bit per pixel with 1 for black. The
// slice is shared and must not be modified.
func (img *Image) Data() []byte {
	if img == nil || img.bm == nil {
		return nil
	}
	return img.bm.Data()
}

// Checksum returns the hex SHA-256 of the packed rows.
func (img *Image) Checksum() string {
	if img == nil || img.bm == nil {
		return ""
	}
	return img.bm.Checksum()
}

// Gray converts the image to 8-bit gray.
func (img *Image) Gray() *image.Gray { return bitmap.Gray(img.bm) }

// Raster renders the image according to p, rescaling with f when needed.
func (img *Image) Raster(p ReadParam, f Filter) image.Image { return bitmap.Raster(img.bm, p, f) }

func (img *Image) ColorModel() color.Model { return color.GrayModel }

func (img *Image) Bounds() image.Rectangle { return img.bm.Bounds() }

func (img *Image) At(x, y int) color.Color {
	if img.bm.Pixel(x, y) != 0 {
		return color.Gray{}
	}
	return color.Gray{Y: 0xFF}
}
