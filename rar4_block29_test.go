package rarstream

import "testing"

func TestNewRar4Block29DecoderSelectsLZSSOnZeroBit(t *testing.T) {
	buf := make([]byte, 8) // selector bit 0, rest irrelevant until fill() is called
	br := newMsbBitReader(&sliceByteSource{buf: buf})

	d, err := newRar4Block29Decoder(br)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.dec.(*rar4LzssDecoder); !ok {
		t.Fatalf("dec = %T, want *rar4LzssDecoder", d.dec)
	}
}

func TestNewRar4Block29DecoderSelectsPPMdOnOneBit(t *testing.T) {
	buf := make([]byte, 32)
	buf[0] = 0x80 // selector bit 1 (PPMd), rest zero padding for the range coder init
	br := newMsbBitReader(&sliceByteSource{buf: buf})

	d, err := newRar4Block29Decoder(br)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.dec.(*rar4Ppmd); !ok {
		t.Fatalf("dec = %T, want *rar4Ppmd", d.dec)
	}

	w := newWindow(16)
	if _, err := d.fill(w); err != nil {
		t.Fatalf("fill() error: %v", err)
	}
	if w.pos != 1 {
		t.Fatalf("window.pos = %d, want 1 byte produced", w.pos)
	}
}
