package rarstream

import "io"

// filterBlock describes one pending transform over a byte range of the
// decoded output, queued by a decoder (RAR VM program for RAR4, or one of
// the four built-in RAR5 filters) and applied once that range has been
// fully produced. Grounded on the teacher's filter/filterBlock pair in its
// decode_reader.go.
type filterBlock struct {
	offset int64 // offset within the window's already-written output
	length int64
	apply  func(buf []byte) ([]byte, error)
}

// decoder is the common interface every packed-data algorithm implements:
// it consumes bits from the packed stream (via its own embedded bitReader)
// and produces unpacked bytes into w, queuing any filterBlocks it
// encounters along the way.
type decoder interface {
	// fill decodes one symbol: a literal or match that writes at least one
	// byte to the window, or a filter descriptor that writes none and is
	// returned in the queued filterBlocks. It returns io.EOF when the
	// file's solid group has no more data, or another error on corruption.
	fill(w *window) ([]*filterBlock, error)
}

// fragmentSource supplies a decoder with the packed bytes of the current
// fragment and transparently advances to the next fragment in the same
// solid group when the current one is exhausted, returning io.EOF only
// once every fragment in the group has been consumed.
type fragmentSource struct {
	open    func(idx int) (io.ReadCloser, error)
	idx     int
	count   int
	cur     io.ReadCloser
	curRead io.Reader
}

func newFragmentSource(count int, open func(idx int) (io.ReadCloser, error)) *fragmentSource {
	return &fragmentSource{open: open, count: count, idx: -1}
}

func (s *fragmentSource) advance() error {
	if s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
	s.idx++
	if s.idx >= s.count {
		return io.EOF
	}
	rc, err := s.open(s.idx)
	if err != nil {
		return err
	}
	s.cur = rc
	s.curRead = rc
	return nil
}

func (s *fragmentSource) ReadByte() (byte, error) {
	for {
		if s.curRead == nil {
			if err := s.advance(); err != nil {
				return 0, err
			}
		}
		var b [1]byte
		n, err := s.curRead.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err == nil {
			continue
		}
		// Current fragment exhausted (err is io.EOF or similar); move to
		// the next fragment in the solid group rather than surfacing EOF
		// to the decoder, which must see one continuous bitstream.
		s.curRead = nil
		if err != io.EOF {
			return 0, err
		}
	}
}

func (s *fragmentSource) Close() error {
	if s.cur != nil {
		return s.cur.Close()
	}
	return nil
}
