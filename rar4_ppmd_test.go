package rarstream

import "testing"

func TestPpmContextUpdateTracksFrequencyAndEscape(t *testing.T) {
	ctx := newPpmContext(0, nil)
	if ctx.esc != 1 {
		t.Fatalf("esc = %d, want 1 for a fresh context", ctx.esc)
	}
	ctx.update('a')
	if ctx.total != 4 {
		t.Fatalf("total = %d, want 4 after one update", ctx.total)
	}
	if ctx.esc != 2 {
		t.Fatalf("esc = %d, want 2 after seeing a new symbol", ctx.esc)
	}
	ctx.update('a')
	if ctx.total != 8 {
		t.Fatalf("total = %d, want 8 after a repeat update", ctx.total)
	}
	if ctx.esc != 2 {
		t.Fatalf("esc = %d, want unchanged at 2 for a repeat symbol", ctx.esc)
	}
	idx, ok := ctx.find('a')
	if !ok || ctx.counts[idx].count != 8 {
		t.Fatalf("find('a') = (%d,%v), counts=%v", idx, ok, ctx.counts)
	}
}

func TestNewRar4PpmdClampsOrder(t *testing.T) {
	p := newRar4Ppmd(1)
	if p.order != 2 {
		t.Fatalf("order = %d, want clamped to 2", p.order)
	}
	p = newRar4Ppmd(1000)
	if p.order != ppmMaxOrder {
		t.Fatalf("order = %d, want clamped to %d", p.order, ppmMaxOrder)
	}
}

func TestRar4PpmdFillDecodesFromFreshModel(t *testing.T) {
	buf := make([]byte, 32)
	br := newMsbBitReader(&sliceByteSource{buf: buf})

	p := newRar4Ppmd(16)
	if err := p.init(br, true); err != nil {
		t.Fatal(err)
	}

	w := newWindow(16)
	for i := 0; i < 3; i++ {
		if _, err := p.fill(w); err != nil {
			t.Fatalf("fill() #%d error: %v", i, err)
		}
	}
	if w.pos != 3 {
		t.Fatalf("window.pos = %d, want 3 bytes produced", w.pos)
	}
	// The root context should have learned something from the symbols it
	// just decoded, even though a fresh model starts from order -1 only.
	if len(p.root.counts) == 0 {
		t.Fatal("root context learned no symbols after decoding")
	}
}

func TestRar4PpmdInitResetControlsModelReuse(t *testing.T) {
	buf := make([]byte, 32)
	br := newMsbBitReader(&sliceByteSource{buf: buf})

	p := newRar4Ppmd(16)
	if err := p.init(br, true); err != nil {
		t.Fatal(err)
	}
	w := newWindow(16)
	if _, err := p.fill(w); err != nil {
		t.Fatal(err)
	}
	root := p.root

	buf2 := make([]byte, 32)
	br2 := newMsbBitReader(&sliceByteSource{buf: buf2})
	if err := p.init(br2, false); err != nil {
		t.Fatal(err)
	}
	if p.root != root {
		t.Fatal("init(reset=false) should keep the existing model across a solid-group continuation")
	}

	if err := p.init(br2, true); err != nil {
		t.Fatal(err)
	}
	if p.root == root || len(p.root.counts) != 0 {
		t.Fatal("init(reset=true) should start a fresh, empty model")
	}
}
