package rarstream

import "fmt"

// huffmanDecoder is a canonical Huffman decoder built from an array of code
// lengths (index = symbol, value = code length in bits, 0 = unused
// symbol). Both the RAR4 and RAR5 LZSS bitstreams use this same
// construction for every one of their code tables (main/length/distance/
// low-distance/repeat), grounded on the teacher pack's huffmanDecoder type
// referenced throughout decode29.go/decode50.go.
type huffmanDecoder struct {
	limits []int  // limits[bits] = exclusive upper bound of valid bits-bit codes
	bases  []int  // bases[bits] = offset added to a bits-bit code to index symbols
	symbols []int
}

func (h *huffmanDecoder) init(codeLengths []byte) error {
	const maxBits = 15
	var count [maxBits + 1]int
	for _, l := range codeLengths {
		if l > maxBits {
			return fmt.Errorf("rarstream: code length %d exceeds max: %w", l, ErrCorruptBitStream)
		}
		if l > 0 {
			count[l]++
		}
	}

	h.limits = make([]int, maxBits+1)
	h.bases = make([]int, maxBits+1)
	h.symbols = make([]int, len(codeLengths))

	// Canonical Huffman: at each bit length, code is the first (lowest)
	// code value of that length; limits[bits] is the exclusive upper bound
	// on valid bits-bit codes, and bases[bits] translates a code directly
	// into an index into the symbols table (symbols are laid out sorted by
	// (length, original symbol value), consistent with the `pos` fill-in
	// below).
	code := 0
	total := 0
	for bits := 1; bits <= maxBits; bits++ {
		h.bases[bits] = total - code
		h.limits[bits] = code + count[bits]
		total += count[bits]
		code = (code + count[bits]) << 1
	}

	next := make([]int, maxBits+1)
	copy(next, h.bases)
	// place symbols in order of (length, symbol value), matching
	// canonical Huffman assignment
	offsets := make([]int, maxBits+1)
	cum := 0
	for bits := 1; bits <= maxBits; bits++ {
		offsets[bits] = cum
		cum += count[bits]
	}
	pos := append([]int(nil), offsets...)
	for sym, l := range codeLengths {
		if l == 0 {
			continue
		}
		h.symbols[pos[l]] = sym
		pos[l]++
	}
	return nil
}

// readSym decodes one symbol from br using this table.
func (h *huffmanDecoder) readSym(br bitReader) (int, error) {
	code := 0
	for bits := 1; bits < len(h.limits); bits++ {
		bit, err := br.readBits(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit
		if code < h.limits[bits] {
			idx := code + h.bases[bits]
			if idx < 0 || idx >= len(h.symbols) {
				return 0, ErrCorruptBitStream
			}
			return h.symbols[idx], nil
		}
	}
	return 0, ErrCorruptBitStream
}

// tableFormat selects which archive format's repeat-count arithmetic
// readCodeLengthTable applies once it has decoded a 16/17/18 repeat symbol
// and its extra bits; the 20-entry pretable framing itself is identical
// between formats (§4.5.4).
type tableFormat int

const (
	formatRAR4 tableFormat = iota
	formatRAR5
)

// repeatCount turns a decoded extra-bits value into a repeat count. RAR4
// adds the raw extra value to the base; RAR5 doubles it first — the one
// place, per §4.5.4, where the two formats' table RLE genuinely diverge.
func repeatCount(format tableFormat, base, extra int) int {
	if format == formatRAR5 {
		return base + 2*extra
	}
	return base + extra
}

// readCodeLengthTable reads an RLE-coded array of code lengths: first a
// 20-entry "pretable" of 4-bit lengths (itself RLE-coded with a 4-symbol
// escape for runs of zero), then the real table decoded through that
// pretable using three repeat codes:
//
//	16: repeat previous length, base 2
//	17: zero run, base 3
//	18: zero run, base 11
//
// This RLE scheme, and its 20-symbol pretable framing, is shared between
// the RAR4 and RAR5 table formats (differing only in alphabet size and the
// repeat-count arithmetic handled by repeatCount), grounded on decode50.go's
// readBlockHeader / decode29's equivalent.
func readCodeLengthTable(br bitReader, n int, format tableFormat) ([]byte, error) {
	var preLen [20]byte
	for i := range preLen {
		v, err := br.readBits(4)
		if err != nil {
			return nil, err
		}
		preLen[i] = byte(v)
	}
	var pre huffmanDecoder
	if err := pre.init(preLen[:]); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	var prev byte
	for i := 0; i < n; {
		sym, err := pre.readSym(br)
		if err != nil {
			return nil, err
		}
		switch {
		case sym < 16:
			out[i] = byte(sym)
			prev = byte(sym)
			i++
		case sym == 16:
			if i == 0 {
				return nil, ErrCorruptBitStream
			}
			extra, err := br.readBits(3)
			if err != nil {
				return nil, err
			}
			count := repeatCount(format, 2, extra)
			for j := 0; j < count && i < n; j++ {
				out[i] = prev
				i++
			}
		case sym == 17:
			extra, err := br.readBits(3)
			if err != nil {
				return nil, err
			}
			count := repeatCount(format, 3, extra)
			for j := 0; j < count && i < n; j++ {
				out[i] = 0
				i++
			}
		default: // 18
			extra, err := br.readBits(7)
			if err != nil {
				return nil, err
			}
			count := repeatCount(format, 11, extra)
			for j := 0; j < count && i < n; j++ {
				out[i] = 0
				i++
			}
		}
	}
	return out, nil
}
