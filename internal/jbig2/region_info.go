package jbig2

import (
	"image"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// RegionInfo is the region segment information field shared by every
// region segment.
type RegionInfo struct {
	Width  int
	Height int
	X      int
	Y      int
	Op     bitmap.CombinationOperator
}

// Rect returns the page area covered by the region.
func (ri RegionInfo) Rect() image.Rectangle {
	return image.Rect(ri.X, ri.Y, ri.X+ri.Width, ri.Y+ri.Height)
}

func parseRegionInfo(bs *BitStream) (RegionInfo, error) {
	var ri RegionInfo
	w, err := bs.ReadUint32()
	if err != nil {
		return ri, err
	}
	h, err := bs.ReadUint32()
	if err != nil {
		return ri, err
	}
	x, err := bs.ReadInt32()
	if err != nil {
		return ri, err
	}
	y, err := bs.ReadInt32()
	if err != nil {
		return ri, err
	}
	flags, err := bs.ReadByte()
	if err != nil {
		return ri, err
	}
	// an unknown-length generic region may carry 0xFFFFFFFF as its height
	if w > maxImageSize || (h != unknownLength && h > maxImageSize) {
		return ri, malformed("region size %dx%d", w, h)
	}
	op, err := bitmap.OperatorFromCode(flags & 0x07)
	if err != nil {
		return ri, malformed("region: %v", err)
	}
	ri = RegionInfo{Width: int(w), Height: int(h), X: int(x), Y: int(y), Op: op}
	if h == unknownLength {
		ri.Height = -1
	}
	return ri, nil
}
