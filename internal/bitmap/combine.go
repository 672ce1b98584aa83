package bitmap

import "fmt"

// CombinationOperator merges a source pixel into a destination pixel.
type CombinationOperator uint8

const (
	OR CombinationOperator = iota
	AND
	XOR
	XNOR
	REPLACE
)

// OperatorFromCode maps the 3-bit region operator code to an operator.
func OperatorFromCode(code uint8) (CombinationOperator, error) {
	if code > uint8(REPLACE) {
		return 0, fmt.Errorf("bitmap: invalid combination operator %d", code)
	}
	return CombinationOperator(code), nil
}

func (op CombinationOperator) String() string {
	switch op {
	case OR:
		return "OR"
	case AND:
		return "AND"
	case XOR:
		return "XOR"
	case XNOR:
		return "XNOR"
	case REPLACE:
		return "REPLACE"
	default:
		return fmt.Sprintf("CombinationOperator(%d)", uint8(op))
	}
}

// CombineBytes merges src into dst with op, eight pixels at a time.
func CombineBytes(dst, src byte, op CombinationOperator) byte {
	switch op {
	case OR:
		return dst | src
	case AND:
		return dst & src
	case XOR:
		return dst ^ src
	case XNOR:
		return ^(dst ^ src)
	case REPLACE:
		return src
	default:
		return dst
	}
}

// combineMasked applies op only to the bits selected by mask.
func combineMasked(dst, src, mask byte, op CombinationOperator) byte {
	return dst&^mask | CombineBytes(dst, src, op)&mask
}
