package jbig2

const (
	// maxImageSize bounds every region, symbol and page dimension.
	maxImageSize = 65535
	// maxSymbols bounds new and exported symbols of one dictionary.
	maxSymbols = 65535
	// maxPatterns bounds the pattern count of one dictionary.
	maxPatterns = 65535

	// unknownLength marks a segment data length found by scanning.
	unknownLength = 0xFFFFFFFF
)

func validImageSize(w, h int) bool {
	return w >= 0 && w <= maxImageSize && h >= 0 && h <= maxImageSize
}

// ceilLog2 returns the number of bits needed to index n values.
func ceilLog2(n int) int {
	bits := 0
	for 1<<bits < n {
		bits++
	}
	return bits
}
