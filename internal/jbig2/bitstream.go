package jbig2

import "fmt"

// BitStream reads bits MSB first and bytes big-endian from a fixed buffer.
type BitStream struct {
	buf    []byte
	byteIx int
	bitIx  int
}

// NewBitStream constructs a bit stream over data.
func NewBitStream(data []byte) *BitStream {
	return &BitStream{buf: data}
}

func (bs *BitStream) underflow(what string) error {
	return fmt.Errorf("%w: reading %s at byte %d of %d", ErrStreamIO, what, bs.byteIx, len(bs.buf))
}

// ReadBits reads n bits (n <= 32) as an unsigned value.
func (bs *BitStream) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("jbig2: invalid bit count %d", n)
	}
	if bs.BitPos()+n > len(bs.buf)*8 {
		return 0, bs.underflow(fmt.Sprintf("%d bits", n))
	}
	var v uint32
	for ; n > 0; n-- {
		v = v<<1 | uint32(bs.buf[bs.byteIx]>>(7-bs.bitIx)&1)
		bs.advanceBit()
	}
	return v, nil
}

// ReadBit returns the next bit.
func (bs *BitStream) ReadBit() (int, error) {
	if !bs.InBounds() {
		return 0, bs.underflow("bit")
	}
	v := int(bs.buf[bs.byteIx] >> (7 - bs.bitIx) & 1)
	bs.advanceBit()
	return v, nil
}

// ReadByte returns the next byte. The stream must be byte aligned.
func (bs *BitStream) ReadByte() (byte, error) {
	if !bs.InBounds() {
		return 0, bs.underflow("byte")
	}
	v := bs.buf[bs.byteIx]
	bs.byteIx++
	return v, nil
}

// ReadInt8 reads a signed byte, as used for AT pixel offsets.
func (bs *BitStream) ReadInt8() (int, error) {
	b, err := bs.ReadByte()
	return int(int8(b)), err
}

// ReadUint16 reads a big-endian 16-bit value.
func (bs *BitStream) ReadUint16() (uint16, error) {
	if bs.byteIx+2 > len(bs.buf) {
		return 0, bs.underflow("uint16")
	}
	v := uint16(bs.buf[bs.byteIx])<<8 | uint16(bs.buf[bs.byteIx+1])
	bs.byteIx += 2
	return v, nil
}

// ReadUint32 reads a big-endian 32-bit value.
func (bs *BitStream) ReadUint32() (uint32, error) {
	if bs.byteIx+4 > len(bs.buf) {
		return 0, bs.underflow("uint32")
	}
	b := bs.buf[bs.byteIx:]
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	bs.byteIx += 4
	return v, nil
}

// ReadInt32 reads a big-endian two's complement 32-bit value.
func (bs *BitStream) ReadInt32() (int32, error) {
	v, err := bs.ReadUint32()
	return int32(v), err
}

// AlignByte advances the stream to the next byte boundary.
func (bs *BitStream) AlignByte() {
	if bs.bitIx != 0 {
		bs.byteIx++
		bs.bitIx = 0
	}
}

// Skip advances n bytes from an aligned position.
func (bs *BitStream) Skip(n int) error {
	if n < 0 || bs.byteIx+n > len(bs.buf) {
		return bs.underflow(fmt.Sprintf("%d skipped bytes", n))
	}
	bs.byteIx += n
	return nil
}

// Offset returns the current byte index.
func (bs *BitStream) Offset() int { return bs.byteIx }

// SetOffset moves the stream to a byte offset, clamped to the buffer.
func (bs *BitStream) SetOffset(offset int) {
	bs.byteIx = min(max(offset, 0), len(bs.buf))
	bs.bitIx = 0
}

// BitPos returns the absolute bit position.
func (bs *BitStream) BitPos() int { return bs.byteIx<<3 + bs.bitIx }

// SetBitPos positions the stream at a bit offset.
func (bs *BitStream) SetBitPos(pos int) {
	bs.byteIx = pos >> 3
	bs.bitIx = pos & 7
}

// Buf returns the whole underlying buffer.
func (bs *BitStream) Buf() []byte { return bs.buf }

// Len returns the buffer length in bytes.
func (bs *BitStream) Len() int { return len(bs.buf) }

// Remaining returns the bytes from the current position on.
func (bs *BitStream) Remaining() []byte {
	if bs.byteIx >= len(bs.buf) {
		return nil
	}
	return bs.buf[bs.byteIx:]
}

// BytesLeft returns the number of bytes from the current position on.
func (bs *BitStream) BytesLeft() int { return max(len(bs.buf)-bs.byteIx, 0) }

// InBounds reports whether the current byte index is within the buffer.
func (bs *BitStream) InBounds() bool { return bs.byteIx < len(bs.buf) }

// curByteArith and nextByteArith feed the arithmetic decoder, which treats
// bytes past the end as 0xFF.
func (bs *BitStream) curByteArith() byte {
	if bs.InBounds() {
		return bs.buf[bs.byteIx]
	}
	return 0xFF
}

func (bs *BitStream) nextByteArith() byte {
	if bs.byteIx+1 < len(bs.buf) {
		return bs.buf[bs.byteIx+1]
	}
	return 0xFF
}

func (bs *BitStream) incByte() {
	if bs.byteIx < len(bs.buf) {
		bs.byteIx++
	}
}

func (bs *BitStream) advanceBit() {
	if bs.bitIx == 7 {
		bs.byteIx++
		bs.bitIx = 0
	} else {
		bs.bitIx++
	}
}
