// Package fax decodes CCITT T.6 (Group 4) coded bitmaps as used by JBIG2
// MMR regions.
package fax

import (
	"errors"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

var (
	// ErrTruncated reports coded data that ends before the last row.
	ErrTruncated = errors.New("fax: truncated data")
	// ErrInvalidCode reports a bit pattern that is not a T.6 code, or a
	// code that moves the coding position backwards.
	ErrInvalidCode = errors.New("fax: invalid code")
)

// eofb is the T.6 end-of-facsimile-block code: two consecutive EOL codes.
const (
	eofb     = 0x001001
	eofbBits = 24
)

// reader walks a bit buffer MSB first.
type reader struct {
	src  []byte
	pos  int
	size int
}

func (r *reader) done() bool { return r.pos >= r.size }

func (r *reader) bit() bool {
	p := r.pos
	r.pos++
	return r.src[p>>3]&(1<<(7-p&7)) != 0
}

func (r *reader) peek(n int) (uint32, bool) {
	if r.pos+n > r.size {
		return 0, false
	}
	var v uint32
	for i := 0; i < n; i++ {
		p := r.pos + i
		v = v<<1 | uint32(r.src[p>>3]>>(7-p&7)&1)
	}
	return v, true
}

// DecodeG4 decodes dst.Height() rows of T.6 data starting at bit offset
// bitPos of src into dst, 1 meaning black. It returns the bit offset just
// after the last decoded row. On error the rows decoded so far are kept
// and the offset is where decoding stopped.
func DecodeG4(src []byte, bitPos int, dst *bitmap.Bitmap) (int, error) {
	w := dst.Width()
	pitch := (w + 7) >> 3
	if pitch == 0 {
		return bitPos, nil
	}

	// The coder works in fax polarity where a set bit is white.
	ref := make([]byte, pitch)
	line := make([]byte, pitch)
	for i := range ref {
		ref[i] = 0xFF
	}

	r := &reader{src: src, pos: bitPos, size: len(src) << 3}
	for y := 0; y < dst.Height(); y++ {
		for i := range line {
			line[i] = 0xFF
		}
		err := decodeRow(r, line, ref, w)
		row := dst.Row(y)
		for i := range line {
			row[i] = ^line[i]
		}
		if pad := (8 - w&7) & 7; pad != 0 {
			row[pitch-1] &= 0xFF << pad
		}
		if err != nil {
			return r.pos, err
		}
		ref, line = line, ref
	}
	return r.pos, nil
}

// SkipEOFB consumes an end-of-facsimile-block code at bitPos if one is
// present and returns the next byte-aligned bit offset.
func SkipEOFB(src []byte, bitPos int) int {
	r := &reader{src: src, pos: bitPos, size: len(src) << 3}
	if v, ok := r.peek(eofbBits); ok && v == eofb {
		r.pos += eofbBits
	}
	return (r.pos + 7) &^ 7
}

func decodeRow(r *reader, dst, ref []byte, columns int) error {
	a0 := -1
	a0color := true

	for {
		if r.done() {
			return ErrTruncated
		}

		b1, b2 := findB1B2(ref, columns, a0, a0color)

		var delta int
		if !r.bit() {
			if r.done() {
				return ErrTruncated
			}
			bit1 := r.bit()
			if r.done() {
				return ErrTruncated
			}
			bit2 := r.bit()

			switch {
			case bit1:
				// VR(1), VL(1)
				delta = -1
				if bit2 {
					delta = 1
				}
			case bit2:
				// Horizontal
				run1 := readRuns(r, a0color)
				if run1 < 0 {
					return runError(r)
				}
				if a0 < 0 {
					run1++
				}
				a1 := a0 + run1
				if !a0color {
					fillBlack(dst, columns, a0, a1)
				}

				run2 := readRuns(r, !a0color)
				if run2 < 0 {
					return runError(r)
				}
				a2 := a1 + run2
				if a0color {
					fillBlack(dst, columns, a1, a2)
				}

				a0 = a2
				if a0 < columns {
					continue
				}
				return nil
			default:
				if r.done() {
					return ErrTruncated
				}
				if r.bit() {
					// Pass
					if !a0color {
						fillBlack(dst, columns, a0, b2)
					}
					if b2 >= columns {
						return nil
					}
					a0 = b2
					continue
				}

				if r.done() {
					return ErrTruncated
				}
				n1 := r.bit()
				if r.done() {
					return ErrTruncated
				}
				n2 := r.bit()
				switch {
				case n1:
					// VR(2), VL(2)
					delta = -2
					if n2 {
						delta = 2
					}
				case n2:
					if r.done() {
						return ErrTruncated
					}
					// VR(3), VL(3)
					delta = -3
					if r.bit() {
						delta = 3
					}
				default:
					if r.done() {
						return ErrTruncated
					}
					// Extension
					if r.bit() {
						r.pos += 3
						continue
					}
					// end of line inside a row
					return ErrInvalidCode
				}
			}
		}

		a1 := b1 + delta
		if !a0color {
			fillBlack(dst, columns, a0, a1)
		}
		if a1 >= columns {
			return nil
		}
		// changing elements must move right
		if a0 >= a1 {
			return ErrInvalidCode
		}
		a0 = a1
		a0color = !a0color
	}
}

// runError tells a run cut off by the end of data from an invalid code.
func runError(r *reader) error {
	if r.done() {
		return ErrTruncated
	}
	return ErrInvalidCode
}

// readRuns sums make-up codes until a terminating code. It returns -1 on
// an invalid code.
func readRuns(r *reader, white bool) int {
	table := blackRuns
	if white {
		table = whiteRuns
	}
	total := 0
	for {
		run := readRun(r, table)
		if run < 0 {
			return -1
		}
		total += run
		if run < 64 {
			return total
		}
	}
}

func findB1B2(ref []byte, columns, a0 int, a0color bool) (int, int) {
	first := a0 < 0 || ref[a0>>3]&(1<<(7-a0&7)) != 0
	b1 := findBit(ref, columns, a0+1, !first)
	if b1 >= columns {
		return columns, columns
	}
	if first == !a0color {
		b1 = findBit(ref, columns, b1+1, first)
		first = !first
	}
	if b1 >= columns {
		return columns, columns
	}
	return b1, findBit(ref, columns, b1+1, first)
}

// findBit returns the first position at or after start holding bit, or
// limit.
func findBit(buf []byte, limit, start int, bit bool) int {
	if start >= limit {
		return limit
	}

	var flip byte
	if !bit {
		flip = 0xFF
	}

	if off := start & 7; off != 0 {
		pos := start >> 3
		if v := (buf[pos] ^ flip) & (0xFF >> off); v != 0 {
			return min(pos*8+int(leadingOne[v]), limit)
		}
		start += 7
	}

	last := (limit + 7) >> 3
	for pos := start >> 3; pos < last; pos++ {
		if v := buf[pos] ^ flip; v != 0 {
			return min(pos*8+int(leadingOne[v]), limit)
		}
	}
	return limit
}

// fillBlack clears the fax-white bits in [from, to).
func fillBlack(buf []byte, columns, from, to int) {
	from = max(from, 0)
	to = min(to, columns)
	for x := from; x < to; {
		if x&7 == 0 && x+8 <= to {
			buf[x>>3] = 0
			x += 8
			continue
		}
		buf[x>>3] &^= 1 << (7 - x&7)
		x++
	}
}

// readRun matches one code against a packed run table. Each group in the
// table starts with the count of codes of the current length followed by
// (code, low, high) triples. 0xFF ends the table.
func readRun(r *reader, table []byte) int {
	var code uint32
	off := 0
	for {
		if r.done() {
			return -1
		}
		code <<= 1
		if r.bit() {
			code |= 1
		}

		n := table[off]
		if n == 0xFF {
			return -1
		}
		off++

		end := off + int(n)*3
		for ; off < end; off += 3 {
			if table[off] == byte(code) {
				return int(table[off+1]) | int(table[off+2])<<8
			}
		}
	}
}
