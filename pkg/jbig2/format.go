package jbig2

import (
	"errors"
	"image"
	"image/color"
	"io"

	"github.com/jdeng/jbig2go/internal/jbig2"
)

func init() {
	image.RegisterFormat("jbig2", string(jbig2.FileSignature), Decode, DecodeConfig)
}

// Decode reads a stand-alone JBIG2 file and returns its first page as an
// *image.Gray.
func Decode(r io.Reader) (image.Image, error) {
	d, first, err := openFirstPage(r)
	if err != nil {
		return nil, err
	}
	img, err := d.Page(int(first))
	if err != nil {
		return nil, err
	}
	return img.Gray(), nil
}

// DecodeConfig returns the size of the first page without decoding it,
// unless its height is only known once the page is composed.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d, first, err := openFirstPage(r)
	if err != nil {
		return image.Config{}, err
	}
	p, err := d.doc.Page(first)
	if err != nil {
		return image.Config{}, err
	}
	info, err := p.Info()
	if err != nil {
		return image.Config{}, err
	}
	cfg := image.Config{ColorModel: color.GrayModel, Width: info.Width, Height: info.Height}
	if info.Height < 0 {
		img, err := d.Page(int(first))
		if err != nil {
			return image.Config{}, err
		}
		cfg.Height = img.Height()
	}
	return cfg, nil
}

func openFirstPage(r io.Reader) (*Decoder, uint32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	d, err := New(Options{SrcData: data})
	if err != nil {
		return nil, 0, err
	}
	nums := d.PageNumbers()
	if len(nums) == 0 {
		return nil, 0, errors.New("jbig2: stream has no pages")
	}
	return d, nums[0], nil
}
