package jbig2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FileSignature starts every stand-alone JBIG2 file.
var FileSignature = []byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0a}

// Organisation is the way segment headers and data are laid out.
type Organisation int

const (
	// OrganisationSequential interleaves each header with its data.
	OrganisationSequential Organisation = iota
	// OrganisationRandomAccess stores all headers before all data.
	OrganisationRandomAccess
	// OrganisationEmbedded is the sequential layout without a file header,
	// as found in PDF streams.
	OrganisationEmbedded
)

func (o Organisation) String() string {
	switch o {
	case OrganisationSequential:
		return "sequential"
	case OrganisationRandomAccess:
		return "random-access"
	case OrganisationEmbedded:
		return "embedded"
	}
	return fmt.Sprintf("Organisation(%d)", int(o))
}

// FileHeader captures the parsed JBIG2 file header fields.
type FileHeader struct {
	Organisation Organisation
	NumPages     uint32
	HasNumPages  bool
}

// HasSignature reports whether data starts with the file signature.
func HasSignature(data []byte) bool {
	return bytes.HasPrefix(data, FileSignature)
}

// stripFileHeader removes the file header if present. The header is the
// 8-byte signature, a flags byte and, unless the flags say the page count
// is unknown, a big-endian page count. Data without the signature is
// returned unchanged with a nil header.
func stripFileHeader(data []byte) ([]byte, *FileHeader, error) {
	if !HasSignature(data) {
		return data, nil, nil
	}
	offset := len(FileSignature)
	if len(data) < offset+1 {
		return nil, nil, fmt.Errorf("%w: file header flags", ErrStreamIO)
	}
	flags := data[offset]
	offset++
	if flags&0xFC != 0 {
		return nil, nil, malformed("file header flags 0x%02x", flags)
	}
	header := &FileHeader{Organisation: OrganisationRandomAccess}
	if flags&0x01 != 0 {
		header.Organisation = OrganisationSequential
	}
	if flags&0x02 == 0 {
		if len(data) < offset+4 {
			return nil, nil, fmt.Errorf("%w: file header page count", ErrStreamIO)
		}
		header.NumPages = binary.BigEndian.Uint32(data[offset : offset+4])
		header.HasNumPages = true
		offset += 4
	}
	return data[offset:], header, nil
}
