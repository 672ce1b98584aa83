package jbig2

import (
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/jdeng/jbig2go/internal/bitmap"
)

// SymbolDictParams configures one symbol dictionary decode.
type SymbolDictParams struct {
	Huffman     bool
	RefAgg      bool
	Template    int
	AT          []image.Point
	RTemplate   int
	RAT         []image.Point
	NumExported int
	NumNew      int
	// Input holds the symbols exported by the referred dictionaries.
	Input []*bitmap.Bitmap

	TableDH      *HuffmanTable
	TableDW      *HuffmanTable
	TableBMSize  *HuffmanTable
	TableAggInst *HuffmanTable

	// GB and GR are contexts inherited from a previous dictionary. They
	// are copied, never modified.
	GB []ArithContext
	GR []ArithContext
}

// SymbolDictResult is the outcome of a symbol dictionary decode.
type SymbolDictResult struct {
	Exported []*bitmap.Bitmap
	// GB and GR are the contexts after decoding, kept for dictionaries
	// that retain them.
	GB []ArithContext
	GR []ArithContext
}

// symbolDictDecoder carries the state of one dictionary decode.
type symbolDictDecoder struct {
	p       SymbolDictParams
	bs      *BitStream
	hd      *HuffmanDecoder
	d       *ArithDecoder
	iadh    *ArithIntDecoder
	iadw    *ArithIntDecoder
	iaex    *ArithIntDecoder
	iaai    *ArithIntDecoder
	ia      *textIntDecoders
	gb, gr  []ArithContext
	codeLen int
	syms    []*bitmap.Bitmap // input followed by new symbols
}

// DecodeSymbolDict runs the symbol dictionary decoding procedure over bs.
func DecodeSymbolDict(p SymbolDictParams, bs *BitStream) (SymbolDictResult, error) {
	numIn := len(p.Input)
	if p.NumNew < 0 || p.NumNew > maxSymbols || p.NumExported > numIn+p.NumNew {
		return SymbolDictResult{}, malformed("symbol dictionary: %d new, %d exported of %d input", p.NumNew, p.NumExported, numIn)
	}
	sd := &symbolDictDecoder{
		p:       p,
		bs:      bs,
		codeLen: ceilLog2(numIn + p.NumNew),
		syms:    slices.Clip(slices.Clone(p.Input)),
	}
	if p.Huffman {
		sd.hd = NewHuffmanDecoder(bs)
	} else {
		sd.d = NewArithDecoder(bs)
		sd.iadh = NewArithIntDecoder()
		sd.iadw = NewArithIntDecoder()
		sd.iaex = NewArithIntDecoder()
		sd.iaai = NewArithIntDecoder()
		sd.ia = newTextIntDecoders(sd.codeLen)
		sd.gb = inheritContexts(p.GB, genericContextSize(p.Template))
	}
	if p.RefAgg {
		sd.gr = inheritContexts(p.GR, refinementContextSize(p.RTemplate))
	}

	if err := sd.decodeNew(); err != nil {
		return SymbolDictResult{}, err
	}
	exported, err := sd.decodeExports()
	if err != nil {
		return SymbolDictResult{}, err
	}
	return SymbolDictResult{Exported: exported, GB: sd.gb, GR: sd.gr}, nil
}

func inheritContexts(from []ArithContext, n int) []ArithContext {
	if len(from) == n {
		return slices.Clone(from)
	}
	return newContexts(n)
}

func (sd *symbolDictDecoder) decodeInt(ia *ArithIntDecoder, t *HuffmanTable) (int, bool, error) {
	if sd.p.Huffman {
		return sd.hd.Decode(t)
	}
	return ia.Decode(sd.d)
}

func (sd *symbolDictDecoder) decodeNew() error {
	p := sd.p
	numIn := len(p.Input)
	hcHeight := 0
	for len(sd.syms)-numIn < p.NumNew {
		dh, ok, err := sd.decodeInt(sd.iadh, p.TableDH)
		if err != nil {
			return err
		}
		if !ok {
			return malformed("symbol dictionary: OOB height class delta")
		}
		hcHeight += dh
		if hcHeight < 0 || hcHeight > maxImageSize {
			return malformed("symbol dictionary: height class %d", hcHeight)
		}

		symWidth, totWidth := 0, 0
		first := len(sd.syms)
		var widths []int
		for {
			dw, ok, err := sd.decodeInt(sd.iadw, p.TableDW)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if len(sd.syms)-numIn >= p.NumNew {
				return malformed("symbol dictionary: more than %d new symbols", p.NumNew)
			}
			symWidth += dw
			if symWidth < 0 || symWidth > maxImageSize {
				return malformed("symbol dictionary: symbol width %d", symWidth)
			}
			totWidth += symWidth

			var bm *bitmap.Bitmap
			switch {
			case p.Huffman && !p.RefAgg:
				// filled from the collective bitmap below
				widths = append(widths, symWidth)
			case p.RefAgg:
				if bm, err = sd.decodeAggregate(symWidth, hcHeight); err != nil {
					return err
				}
			default:
				bm, err = DecodeGenericArith(GenericParams{
					Width:    symWidth,
					Height:   hcHeight,
					Template: p.Template,
					AT:       p.AT,
				}, sd.d, sd.gb)
				if err != nil {
					return err
				}
			}
			sd.syms = append(sd.syms, bm)
		}

		if p.Huffman && !p.RefAgg {
			if err := sd.decodeCollective(first, widths, totWidth, hcHeight); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeCollective reads the height class collective bitmap and slices it
// into the symbols starting at first.
func (sd *symbolDictDecoder) decodeCollective(first int, widths []int, totWidth, height int) error {
	size, ok, err := sd.hd.Decode(sd.p.TableBMSize)
	if err != nil {
		return err
	}
	if !ok || size < 0 {
		return malformed("symbol dictionary: collective bitmap size")
	}
	if totWidth > maxImageSize {
		return malformed("symbol dictionary: collective width %d", totWidth)
	}
	sd.bs.AlignByte()
	start := sd.bs.Offset()

	var coll *bitmap.Bitmap
	if size == 0 {
		stride := (totWidth + 7) >> 3
		n := stride * height
		if start+n > sd.bs.Len() {
			return fmt.Errorf("%w: uncompressed collective bitmap of %d bytes", ErrStreamIO, n)
		}
		coll = bitmap.FromBytes(totWidth, height, sd.bs.Buf()[start:start+n])
		sd.bs.SetOffset(start + n)
	} else {
		if start+size > sd.bs.Len() {
			return fmt.Errorf("%w: collective bitmap of %d bytes", ErrStreamIO, size)
		}
		coll, err = DecodeGenericMMR(GenericParams{Width: totWidth, Height: height, MMR: true},
			NewBitStream(sd.bs.Buf()[start:start+size]))
		if err != nil {
			return err
		}
		sd.bs.SetOffset(start + size)
	}

	x := 0
	for i, w := range widths {
		sd.syms[first+i] = bitmap.Extract(image.Rect(x, 0, x+w, height), coll)
		x += w
	}
	return nil
}

// decodeAggregate decodes one refinement/aggregate coded symbol.
func (sd *symbolDictDecoder) decodeAggregate(w, h int) (*bitmap.Bitmap, error) {
	p := sd.p
	n, ok, err := sd.decodeInt(sd.iaai, p.TableAggInst)
	if err != nil {
		return nil, err
	}
	if !ok || n < 1 {
		return nil, malformed("symbol dictionary: aggregate instance count")
	}

	if n > 1 {
		tp := TextRegionParams{
			Width:        w,
			Height:       h,
			Huffman:      p.Huffman,
			Refine:       true,
			RefCorner:    CornerTopLeft,
			Op:           bitmap.OR,
			RTemplate:    p.RTemplate,
			RAT:          p.RAT,
			NumInstances: n,
			Symbols:      sd.syms,
			SymCodeLen:   sd.codeLen,
		}
		var c TextCoder
		if p.Huffman {
			tp.Tables = [numTextInts]*HuffmanTable{
				IntFS:    StandardTable(6),
				IntDS:    StandardTable(8),
				IntDT:    StandardTable(11),
				IntRDW:   StandardTable(15),
				IntRDH:   StandardTable(15),
				IntRDX:   StandardTable(15),
				IntRDY:   StandardTable(15),
				IntRSize: StandardTable(1),
			}
			c = &HuffmanTextCoder{bs: sd.bs, hd: sd.hd, params: &tp, gr: sd.gr}
		} else {
			c = &ArithTextCoder{d: sd.d, ia: sd.ia, gr: sd.gr}
		}
		return DecodeTextRegion(tp, c)
	}

	var id, rdx, rdy int
	if p.Huffman {
		v, err := sd.bs.ReadBits(sd.codeLen)
		if err != nil {
			return nil, err
		}
		id = int(v)
		for _, dst := range []*int{&rdx, &rdy} {
			v, ok, err := sd.hd.Decode(StandardTable(15))
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, malformed("symbol dictionary: OOB refinement offset")
			}
			*dst = v
		}
	} else {
		id = sd.ia.id.Decode(sd.d)
		for _, dst := range []struct {
			v    *int
			kind TextInt
		}{{&rdx, IntRDX}, {&rdy, IntRDY}} {
			v, ok, err := sd.ia.ints[dst.kind].Decode(sd.d)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, malformed("symbol dictionary: OOB refinement offset")
			}
			*dst.v = v
		}
	}
	if id < 0 || id >= len(sd.syms) {
		return nil, malformed("symbol dictionary: refinement of symbol %d of %d", id, len(sd.syms))
	}

	rp := RefinementParams{
		Width:     w,
		Height:    h,
		Template:  p.RTemplate,
		Reference: sd.syms[id],
		DX:        rdx,
		DY:        rdy,
		AT:        p.RAT,
	}
	if !p.Huffman {
		return DecodeRefinement(rp, sd.d, sd.gr)
	}

	size, ok, err := sd.hd.Decode(StandardTable(1))
	if err != nil {
		return nil, err
	}
	if !ok || size < 0 {
		return nil, malformed("symbol dictionary: refinement size")
	}
	sd.bs.AlignByte()
	start := sd.bs.Offset()
	if start+size > sd.bs.Len() {
		return nil, fmt.Errorf("%w: refinement data of %d bytes", ErrStreamIO, size)
	}
	bm, err := DecodeRefinement(rp, NewArithDecoder(NewBitStream(sd.bs.Buf()[start:start+size])), sd.gr)
	if err != nil {
		return nil, err
	}
	sd.bs.SetOffset(start + size)
	return bm, nil
}

// decodeExports reads the export flag run lengths.
func (sd *symbolDictDecoder) decodeExports() ([]*bitmap.Bitmap, error) {
	total := len(sd.syms)
	exported := make([]*bitmap.Bitmap, 0, sd.p.NumExported)
	export := false
	for i, runs := 0, 0; i < total; runs++ {
		if runs > 2*total+1 {
			return nil, malformed("symbol dictionary: export flags do not terminate")
		}
		n, ok, err := sd.decodeInt(sd.iaex, StandardTable(1))
		if err != nil {
			return nil, err
		}
		if !ok || n < 0 || i+n > total {
			return nil, malformed("symbol dictionary: export run %d at %d of %d", n, i, total)
		}
		if export {
			exported = append(exported, sd.syms[i:i+n]...)
		}
		i += n
		export = !export
	}
	if len(exported) != sd.p.NumExported {
		return nil, malformed("symbol dictionary: exported %d symbols, header says %d", len(exported), sd.p.NumExported)
	}
	return exported, nil
}

// SymbolDictionary is a symbol dictionary segment (type 0).
type SymbolDictionary struct {
	params      SymbolDictParams
	data        []byte
	inputs      []*SymbolDictionary
	ctxUsed     bool
	ctxRetained bool

	mu     sync.Mutex
	result *SymbolDictResult
}

// Init parses the dictionary header and resolves referred dictionaries and
// tables.
func (sd *SymbolDictionary) Init(h *SegmentHeader, bs *BitStream) error {
	flags, err := bs.ReadUint16()
	if err != nil {
		return err
	}
	p := SymbolDictParams{
		Huffman:   flags&0x0001 != 0,
		RefAgg:    flags&0x0002 != 0,
		Template:  int(flags>>10) & 0x03,
		RTemplate: int(flags>>12) & 0x01,
	}
	sd.ctxUsed = flags&0x0100 != 0
	sd.ctxRetained = flags&0x0200 != 0
	selDH := int(flags>>2) & 0x03
	selDW := int(flags>>4) & 0x03
	selBMSize := int(flags>>6) & 0x01
	selAggInst := int(flags>>7) & 0x01

	if !p.Huffman {
		n := 4
		if p.Template != 0 {
			n = 1
		}
		if p.AT, err = readATPixels(bs, n); err != nil {
			return err
		}
	}
	if p.RefAgg && p.RTemplate == 0 {
		if p.RAT, err = readATPixels(bs, 2); err != nil {
			return err
		}
	}
	numEx, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	numNew, err := bs.ReadUint32()
	if err != nil {
		return err
	}
	if numEx > maxSymbols || numNew > maxSymbols {
		return malformed("symbol dictionary: %d exported, %d new", numEx, numNew)
	}
	p.NumExported, p.NumNew = int(numEx), int(numNew)

	if sd.inputs, err = referredPayloads[*SymbolDictionary](h); err != nil {
		return err
	}
	numIn := lo.SumBy(sd.inputs, func(d *SymbolDictionary) int { return d.NumExported() })
	if p.NumExported > numIn+p.NumNew {
		return malformed("symbol dictionary: exports %d of %d symbols", p.NumExported, numIn+p.NumNew)
	}
	if sd.ctxUsed && (p.Huffman || len(sd.inputs) == 0) {
		return malformed("symbol dictionary: reuses contexts without an arithmetic predecessor")
	}

	if p.Huffman {
		tables, err := referredPayloads[*TableSegment](h)
		if err != nil {
			return err
		}
		user := 0
		pick := func(sel int, std ...int) (*HuffmanTable, error) {
			if sel < len(std) && std[sel] > 0 {
				return StandardTable(std[sel]), nil
			}
			if sel != len(std) {
				return nil, malformed("symbol dictionary: huffman selector %d", sel)
			}
			if user >= len(tables) {
				return nil, fmt.Errorf("%w: symbol dictionary user table %d", ErrMissingReferredSegment, user)
			}
			user++
			return tables[user-1].Table(), nil
		}
		if p.TableDH, err = pick(selDH, 4, 5, 0); err != nil {
			return err
		}
		if p.TableDW, err = pick(selDW, 2, 3, 0); err != nil {
			return err
		}
		if p.TableBMSize, err = pick(selBMSize, 1); err != nil {
			return err
		}
		if p.TableAggInst, err = pick(selAggInst, 1); err != nil {
			return err
		}
	}

	sd.params, sd.data = p, bs.Remaining()
	return nil
}

// NumExported returns the number of symbols the dictionary exports.
func (sd *SymbolDictionary) NumExported() int { return sd.params.NumExported }

// Params returns the decode configuration without input symbols.
func (sd *SymbolDictionary) Params() SymbolDictParams { return sd.params }

// Dictionary returns the exported symbols, decoding them on first call.
// The bitmaps are shared with every caller and must not be modified.
func (sd *SymbolDictionary) Dictionary() ([]*bitmap.Bitmap, error) {
	res, err := sd.decode()
	if err != nil {
		return nil, err
	}
	return res.Exported, nil
}

func (sd *SymbolDictionary) decode() (*SymbolDictResult, error) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if sd.result != nil {
		return sd.result, nil
	}

	p := sd.params
	lists := make([][]*bitmap.Bitmap, 0, len(sd.inputs))
	for _, in := range sd.inputs {
		syms, err := in.Dictionary()
		if err != nil {
			return nil, err
		}
		lists = append(lists, syms)
	}
	p.Input = lo.Flatten(lists)

	if sd.ctxUsed {
		prev, err := sd.inputs[len(sd.inputs)-1].decode()
		if err != nil {
			return nil, err
		}
		p.GB, p.GR = prev.GB, prev.GR
	}

	res, err := DecodeSymbolDict(p, NewBitStream(sd.data))
	if err != nil {
		return nil, err
	}
	if !sd.ctxRetained {
		res.GB, res.GR = nil, nil
	}
	sd.result = &res
	return sd.result, nil
}
