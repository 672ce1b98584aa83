package jbig2

// TableSegment is a tables segment (type 53) holding one user-defined
// Huffman table.
type TableSegment struct {
	table *HuffmanTable
}

// Init parses the user Huffman table.
func (ts *TableSegment) Init(_ *SegmentHeader, bs *BitStream) error {
	t, err := ParseHuffmanTable(bs)
	if err != nil {
		return err
	}
	ts.table = t
	return nil
}

// Table returns the decoded table.
func (ts *TableSegment) Table() *HuffmanTable { return ts.table }
