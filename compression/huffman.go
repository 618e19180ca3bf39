package compression

import (
	"container/heap"
	"errors"
	"sort"
)

// ErrHuffmanTruncatedStream is returned when a bitstream ends before the
// requested number of symbols has been decoded.
var ErrHuffmanTruncatedStream = errors.New("compression: truncated huffman stream")

// ErrHuffmanCodeTooLong is returned when a canonical code would need more
// bits than the decoder is willing to track. This only happens for
// pathological frequency tables with an enormous number of distinct symbols.
var ErrHuffmanCodeTooLong = errors.New("compression: huffman code length exceeds limit")

const maxHuffmanCodeBits = 56

// HuffmanCode is the canonical code assigned to one symbol: its bit length
// and the code value itself, left-justified within length bits.
type HuffmanCode struct {
	length int
	code   uint64
}

type huffNode struct {
	freq        uint64
	symbol      int
	isLeaf      bool
	seq         int
	left, right *huffNode
}

type huffHeap []*huffNode

func (h huffHeap) Len() int { return len(h) }
func (h huffHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}
func (h huffHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *huffHeap) Push(x interface{}) {
	*h = append(*h, x.(*huffNode))
}
func (h *huffHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// assignCanonicalCodes walks symbols in (length, symbol) order and hands out
// codes the standard canonical way: the first symbol at a given length is
// one more than the previous code, shifted left to the new length.
func assignCanonicalCodes(lengths []int, codes []HuffmanCode) {
	type symLen struct{ sym, length int }
	var syms []symLen
	for s, l := range lengths {
		if l > 0 {
			syms = append(syms, symLen{s, l})
		}
	}
	if len(syms) == 0 {
		return
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].length != syms[j].length {
			return syms[i].length < syms[j].length
		}
		return syms[i].sym < syms[j].sym
	})

	code := uint64(0)
	prevLen := syms[0].length
	for i, sl := range syms {
		if i > 0 {
			code = (code + 1) << uint(sl.length-prevLen)
		}
		codes[sl.sym] = HuffmanCode{length: sl.length, code: code}
		prevLen = sl.length
	}
}

// HuffmanEncoder builds canonical Huffman codes from a symbol frequency
// table (indexed by symbol value) and packs values into a bitstream.
type HuffmanEncoder struct {
	codes   []HuffmanCode
	lengths []int
}

// NewHuffmanEncoder builds a Huffman tree over the symbols with freqs[i] > 0
// and assigns canonical codes. Symbols with zero frequency get a zero-length
// (unused) code.
func NewHuffmanEncoder(freqs []uint64) *HuffmanEncoder {
	n := len(freqs)
	lengths := make([]int, n)
	codes := make([]HuffmanCode, n)

	var used []int
	for i, f := range freqs {
		if f > 0 {
			used = append(used, i)
		}
	}

	switch len(used) {
	case 0:
		return &HuffmanEncoder{codes: codes, lengths: lengths}
	case 1:
		lengths[used[0]] = 1
		codes[used[0]] = HuffmanCode{length: 1, code: 0}
		return &HuffmanEncoder{codes: codes, lengths: lengths}
	}

	h := &huffHeap{}
	heap.Init(h)
	seq := 0
	for _, s := range used {
		heap.Push(h, &huffNode{freq: freqs[s], symbol: s, isLeaf: true, seq: seq})
		seq++
	}
	for h.Len() > 1 {
		a := heap.Pop(h).(*huffNode)
		b := heap.Pop(h).(*huffNode)
		parent := &huffNode{freq: a.freq + b.freq, left: a, right: b, seq: seq}
		seq++
		heap.Push(h, parent)
	}
	root := heap.Pop(h).(*huffNode)

	var walk func(node *huffNode, depth int)
	walk = func(node *huffNode, depth int) {
		if node.isLeaf {
			if depth == 0 {
				depth = 1
			}
			lengths[node.symbol] = depth
			return
		}
		walk(node.left, depth+1)
		walk(node.right, depth+1)
	}
	walk(root, 0)

	assignCanonicalCodes(lengths, codes)
	return &HuffmanEncoder{codes: codes, lengths: lengths}
}

// Encode packs values into a bitstream using this encoder's canonical codes.
// The final byte is zero-padded if the bitstream doesn't end on a byte
// boundary.
func (e *HuffmanEncoder) Encode(values []uint16) []byte {
	if len(values) == 0 {
		return nil
	}
	var buf []byte
	var cur byte
	var nbits uint
	for _, v := range values {
		c := e.codes[v]
		for i := c.length - 1; i >= 0; i-- {
			bit := byte((c.code >> uint(i)) & 1)
			cur = (cur << 1) | bit
			nbits++
			if nbits == 8 {
				buf = append(buf, cur)
				cur = 0
				nbits = 0
			}
		}
	}
	if nbits > 0 {
		cur <<= 8 - nbits
		buf = append(buf, cur)
	}
	return buf
}

// GetCodes returns the canonical code assigned to each symbol, indexed by
// symbol value. Unused symbols have a zero-length code.
func (e *HuffmanEncoder) GetCodes() []HuffmanCode {
	return e.codes
}

// GetLengths returns the code length assigned to each symbol, indexed by
// symbol value.
func (e *HuffmanEncoder) GetLengths() []int {
	return e.lengths
}

// HuffmanDecoder decodes a bitstream produced by Encode, given only the
// code lengths (the canonical codes themselves are rederived).
type HuffmanDecoder struct {
	lengths []int
	codes   []HuffmanCode
	lookup  map[uint64]uint16
	maxLen  int
}

// NewHuffmanDecoder rebuilds canonical codes from codeLengths, indexed by
// symbol value, the same way NewHuffmanEncoder's GetLengths does.
func NewHuffmanDecoder(codeLengths []int) *HuffmanDecoder {
	lengths := make([]int, len(codeLengths))
	copy(lengths, codeLengths)
	codes := make([]HuffmanCode, len(lengths))
	assignCanonicalCodes(lengths, codes)

	maxLen := 0
	lookup := make(map[uint64]uint16)
	for sym, c := range codes {
		if c.length == 0 {
			continue
		}
		if c.length > maxLen {
			maxLen = c.length
		}
		lookup[huffLookupKey(c.length, c.code)] = uint16(sym)
	}
	return &HuffmanDecoder{lengths: lengths, codes: codes, lookup: lookup, maxLen: maxLen}
}

func huffLookupKey(length int, code uint64) uint64 {
	return uint64(length)<<56 | code
}

// Decode reads n symbols from encoded, one bit at a time, walking the
// canonical code space until each prefix matches a known code.
func (d *HuffmanDecoder) Decode(encoded []byte, n int) ([]uint16, error) {
	if n == 0 {
		return nil, nil
	}
	result := make([]uint16, 0, n)
	var code uint64
	var length int
	bitPos := 0
	totalBits := len(encoded) * 8

	for len(result) < n {
		if bitPos >= totalBits {
			return nil, ErrHuffmanTruncatedStream
		}
		byteIdx := bitPos / 8
		bit := uint64((encoded[byteIdx] >> uint(7-bitPos%8)) & 1)
		code = (code << 1) | bit
		length++
		bitPos++

		if sym, ok := d.lookup[huffLookupKey(length, code)]; ok {
			result = append(result, sym)
			code = 0
			length = 0
			continue
		}
		if length > maxHuffmanCodeBits {
			return nil, ErrHuffmanCodeTooLong
		}
	}
	return result, nil
}

type fastHufEntry struct {
	symbol uint16
	length uint8
	valid  bool
}

// FastHufDecoder is a table-driven decoder: for code lengths within the
// table window it resolves a symbol with a single lookup instead of walking
// bit by bit. Falls back to the generic bit-by-bit decoder when the longest
// code would need an impractically large table.
type FastHufDecoder struct {
	fallback  *HuffmanDecoder
	table     []fastHufEntry
	tableBits int
}

const maxFastHufTableBits = 16

// NewFastHufDecoder builds a FastHufDecoder from the same code lengths
// NewHuffmanDecoder accepts.
func NewFastHufDecoder(codeLengths []int) *FastHufDecoder {
	base := NewHuffmanDecoder(codeLengths)
	if base.maxLen == 0 || base.maxLen > maxFastHufTableBits {
		return &FastHufDecoder{fallback: base}
	}

	tableBits := base.maxLen
	table := make([]fastHufEntry, 1<<uint(tableBits))
	for sym, c := range base.codes {
		if c.length == 0 {
			continue
		}
		shift := tableBits - c.length
		prefix := c.code << uint(shift)
		count := 1 << uint(shift)
		for i := 0; i < count; i++ {
			table[int(prefix)+i] = fastHufEntry{symbol: uint16(sym), length: uint8(c.length), valid: true}
		}
	}
	return &FastHufDecoder{fallback: base, table: table, tableBits: tableBits}
}

// Decode has the same contract as (*HuffmanDecoder).Decode.
func (d *FastHufDecoder) Decode(encoded []byte, n int) ([]uint16, error) {
	if d.table == nil {
		return d.fallback.Decode(encoded, n)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]uint16, 0, n)
	bitPos := 0
	totalBits := len(encoded) * 8

	for len(result) < n {
		var window uint32
		for i := 0; i < d.tableBits; i++ {
			bp := bitPos + i
			var bit uint32
			if bp < totalBits {
				byteIdx := bp / 8
				bit = uint32((encoded[byteIdx] >> uint(7-bp%8)) & 1)
			}
			window = (window << 1) | bit
		}
		entry := d.table[window]
		if !entry.valid {
			return nil, ErrHuffmanTruncatedStream
		}
		result = append(result, entry.symbol)
		bitPos += int(entry.length)
		if bitPos > totalBits && len(result) < n {
			return nil, ErrHuffmanTruncatedStream
		}
	}
	return result, nil
}
