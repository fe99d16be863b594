package rarstream

// rangeDecoder is a carryless range decoder in the LZMA/7-zip style: no
// explicit "low" bound is tracked, since the current code value already
// represents the offset within the active range. This backs the PPM
// model's arithmetic coding.
type rangeDecoder struct {
	br   *msbBitReader
	code uint32
	rng  uint32
}

const rcTopValue = 1 << 24

func newRangeDecoder(br *msbBitReader) (*rangeDecoder, error) {
	rc := &rangeDecoder{br: br, rng: 0xFFFFFFFF}
	for i := 0; i < 5; i++ {
		b, err := rc.readByte()
		if err != nil {
			return nil, err
		}
		rc.code = rc.code<<8 | uint32(b)
	}
	return rc, nil
}

func (rc *rangeDecoder) readByte() (byte, error) {
	v, err := rc.br.readBits(8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// decodeFreq returns a value in [0, total) identifying which symbol's
// cumulative-frequency bucket the current coder state falls in; the caller
// (the PPM model) must follow up with decodeUpdate once it knows the
// matched symbol's (cumFreq, freq).
func (rc *rangeDecoder) decodeFreq(total uint32) (uint32, error) {
	if total == 0 {
		return 0, ErrCorruptBitStream
	}
	rc.rng /= total
	v := rc.code / rc.rng
	if v >= total {
		v = total - 1
	}
	return v, nil
}

// decodeUpdate narrows the active range to the matched symbol's bucket
// [cumFreq, cumFreq+freq) and renormalizes, pulling in fresh bytes while
// the range has shrunk below rcTopValue.
func (rc *rangeDecoder) decodeUpdate(cumFreq, freq, total uint32) error {
	rc.code -= cumFreq * rc.rng
	rc.rng *= freq
	for rc.rng < rcTopValue {
		b, err := rc.readByte()
		if err != nil {
			return err
		}
		rc.code = rc.code<<8 | uint32(b)
		rc.rng <<= 8
	}
	return nil
}
