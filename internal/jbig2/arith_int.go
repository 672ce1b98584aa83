package jbig2

import (
	"fmt"
	"math"
)

// intRanges lists (value bits, base) for the IAx prefix depths.
var intRanges = [...]struct {
	bits int
	base int64
}{
	{2, 0},
	{4, 4},
	{6, 20},
	{8, 84},
	{12, 340},
	{32, 4436},
}

// ArithIntDecoder implements the IAx integer decoding procedures. Each
// integer kind (IADH, IADW, IAFS, ...) owns one decoder.
type ArithIntDecoder struct {
	cx []ArithContext
}

// NewArithIntDecoder returns a decoder with 512 fresh contexts.
func NewArithIntDecoder() *ArithIntDecoder {
	return &ArithIntDecoder{cx: newContexts(512)}
}

// Decode returns the next integer. ok is false for the out-of-band value.
func (dec *ArithIntDecoder) Decode(d *ArithDecoder) (v int, ok bool, err error) {
	prev := 1
	bit := func() int {
		b := d.DecodeBit(&dec.cx[prev])
		if prev < 256 {
			prev = prev<<1 | b
		} else {
			prev = (prev<<1|b)&0x1FF | 0x100
		}
		return b
	}

	s := bit()
	depth := 0
	for depth < len(intRanges)-1 && bit() == 1 {
		depth++
	}

	var raw int64
	for i := 0; i < intRanges[depth].bits; i++ {
		raw = raw<<1 | int64(bit())
	}
	value := intRanges[depth].base + raw
	if value > math.MaxInt32 {
		return 0, false, fmt.Errorf("%w: IAx value %d", ErrIntegerOverflow, value)
	}

	if s == 1 {
		if value == 0 {
			return 0, false, nil
		}
		value = -value
	}
	return int(value), true, nil
}

// ArithIaidDecoder implements the IAID symbol-ID procedure.
type ArithIaidDecoder struct {
	cx      []ArithContext
	codeLen int
}

// NewArithIaidDecoder returns a decoder for codeLen-bit symbol IDs.
func NewArithIaidDecoder(codeLen int) *ArithIaidDecoder {
	return &ArithIaidDecoder{cx: newContexts(1 << codeLen), codeLen: codeLen}
}

// Decode returns the next symbol ID.
func (dec *ArithIaidDecoder) Decode(d *ArithDecoder) int {
	prev := 1
	for i := 0; i < dec.codeLen; i++ {
		prev = prev<<1 | d.DecodeBit(&dec.cx[prev])
	}
	return prev - 1<<dec.codeLen
}
