package rarstream

import (
	"bufio"
	"io"
)

// headerCursor wraps a volume's byte stream with an absolute position
// counter, so header parsers can record each block's data offset without
// the scanner having to re-derive it from bytes consumed. Grounded on the
// teacher's bufVolumeReader, generalized to wrap any io.Reader rather than
// only a VolumeSource-backed one (tests construct it over a bytes.Reader).
type headerCursor struct {
	br  *bufio.Reader
	pos int64
}

func newHeaderCursor(r io.Reader) *headerCursor {
	return &headerCursor{br: bufio.NewReaderSize(r, 32*1024)}
}

func (c *headerCursor) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.pos++
	}
	return b, err
}

func (c *headerCursor) Read(p []byte) (int, error) {
	n, err := io.ReadFull(c.br, p)
	c.pos += int64(n)
	return n, err
}

func (c *headerCursor) discard(n int64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<20 {
			chunk = 1 << 20
		}
		k, err := c.br.Discard(int(chunk))
		c.pos += int64(k)
		n -= int64(k)
		if err != nil {
			return err
		}
	}
	return nil
}
