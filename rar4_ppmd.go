package rarstream

// rar4Ppmd implements the PPMd half of RAR4's "29" unpack method (§4.5.3):
// an adaptive model driven by a range coder, sharing its model across an
// entire solid group.
//
// The model has a single order-0 context (root) with escape counts and
// adaptive frequencies; on escape it falls back to a uniform order -1
// model that excludes the symbols already ruled out. No order-1 or higher
// contexts are built: the order value passed to newRar4Ppmd is clamped and
// stored but does not change decoding, and the mem pool is allocated but
// not used. It decodes streams produced by an encoder of the same shape;
// it is not Dmitry Shkarin's PPMdH (the variant real RAR archives embed)
// and does not decode real unrar-produced PPMd streams — see DESIGN.md.
type rar4Ppmd struct {
	rc *rangeDecoder

	order int
	mem   []byte

	root *ppmContext
}

const ppmMaxOrder = 16
const ppmMemPoolSize = 16 << 20 // 16 MiB, matching spec.md's pool ceiling

type ppmSymCount struct {
	sym   byte
	count uint16
}

// ppmContext is one node of the partial-match context tree: a suffix link
// to the shorter context used on escape, and a frequency table over the
// symbols seen following this context so far.
type ppmContext struct {
	order  int
	suffix *ppmContext
	counts []ppmSymCount
	total  uint32
	esc    uint32 // escape weight: starts at 1, +1 per distinct symbol seen
}

func newPpmContext(order int, suffix *ppmContext) *ppmContext {
	return &ppmContext{order: order, suffix: suffix, esc: 1}
}

func (c *ppmContext) find(sym byte) (int, bool) {
	for i, sc := range c.counts {
		if sc.sym == sym {
			return i, true
		}
	}
	return -1, false
}

func (c *ppmContext) update(sym byte) {
	if i, ok := c.find(sym); ok {
		c.counts[i].count += 4
	} else {
		c.counts = append(c.counts, ppmSymCount{sym: sym, count: 4})
		c.esc++
	}
	c.total += 4
	// Periodic rescale keeps frequency tables from overflowing a solid
	// group's worth of symbols, mirroring real PPM implementations'
	// halving rescale.
	if c.total > 1<<14 {
		var newTotal uint32
		kept := c.counts[:0]
		for _, sc := range c.counts {
			sc.count = (sc.count + 1) / 2
			if sc.count > 0 {
				kept = append(kept, sc)
				newTotal += uint32(sc.count)
			}
		}
		c.counts = kept
		c.total = newTotal
	}
}

func newRar4Ppmd(order int) *rar4Ppmd {
	if order < 2 {
		order = 2
	}
	if order > ppmMaxOrder {
		order = ppmMaxOrder
	}
	return &rar4Ppmd{
		order: order,
		mem:   make([]byte, 0, ppmMemPoolSize),
		root:  newPpmContext(0, nil),
	}
}

// init binds the model to a fresh range coder over br. reset controls
// whether the context tree is cleared (a new, non-solid-continued file) or
// kept from the previous file in the same solid group.
func (p *rar4Ppmd) init(br *msbBitReader, reset bool) error {
	rc, err := newRangeDecoder(br)
	if err != nil {
		return err
	}
	p.rc = rc
	if reset || p.root == nil {
		p.root = newPpmContext(0, nil)
	}
	return nil
}

// decodeSymbol decodes one byte: try the root context, and on escape walk
// its suffix links (none are created, so the walk ends after root) to the
// order(-1) uniform model, excluding symbols already ruled out.
func (p *rar4Ppmd) decodeSymbol() (byte, error) {
	excluded := map[byte]bool{}
	ctx := p.root
	for ctx != nil {
		if len(ctx.counts) > 0 {
			sym, found, err := p.decodeInContext(ctx, excluded)
			if err != nil {
				return 0, err
			}
			if found {
				p.root.update(sym)
				return sym, nil
			}
			for _, sc := range ctx.counts {
				excluded[sc.sym] = true
			}
		}
		ctx = ctx.suffix
	}
	// Order -1: uniform distribution over the remaining 256-len(excluded)
	// symbols, decoded directly off the range coder.
	sym, err := p.decodeUniform(excluded)
	if err != nil {
		return 0, err
	}
	p.root.update(sym)
	return sym, nil
}

func (p *rar4Ppmd) decodeInContext(ctx *ppmContext, excluded map[byte]bool) (byte, bool, error) {
	total := ctx.total + ctx.esc
	freq, err := p.rc.decodeFreq(total)
	if err != nil {
		return 0, false, err
	}
	var cum uint32
	for _, sc := range ctx.counts {
		if excluded[sc.sym] {
			continue
		}
		next := cum + uint32(sc.count)
		if freq < next {
			p.rc.decodeUpdate(cum, uint32(sc.count), total)
			return sc.sym, true, nil
		}
		cum = next
	}
	p.rc.decodeUpdate(cum, ctx.esc, total)
	return 0, false, nil
}

func (p *rar4Ppmd) decodeUniform(excluded map[byte]bool) (byte, error) {
	n := 256 - len(excluded)
	if n <= 0 {
		n = 1
	}
	freq, err := p.rc.decodeFreq(uint32(n))
	if err != nil {
		return 0, err
	}
	var idx uint32
	for sym := 0; sym < 256; sym++ {
		if excluded[byte(sym)] {
			continue
		}
		if idx == freq {
			p.rc.decodeUpdate(idx, 1, uint32(n))
			return byte(sym), nil
		}
		idx++
	}
	p.rc.decodeUpdate(uint32(n-1), 1, uint32(n))
	return 255, nil
}

// fill decodes bytes into w until it has produced at least one more byte
// than before.
func (p *rar4Ppmd) fill(w *window) ([]*filterBlock, error) {
	sym, err := p.decodeSymbol()
	if err != nil {
		return nil, err
	}
	w.writeByte(sym)
	return nil, nil
}
