package rarstream

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// RAR5 ("archive50") block constants, grounded on the vendored
// archive50.go reference (nwaples/rardecode archive50.go).
const (
	headerType5Main    = 1
	headerType5File    = 2
	headerType5Service = 3
	headerType5Crypt   = 4
	headerType5End     = 5

	hflagExtra = 0x0001
	hflagData  = 0x0002

	fflagDirectory  = 0x0001
	fflagUnixTime   = 0x0002
	fflagCRC32      = 0x0004
	fflagUnpUnknown = 0x0008

	extraRecordCrypt   = 0x01
	extraRecordVersion = 0x04
)

type archive50 struct {
	cur *headerCursor
}

func newArchive50(r io.Reader) *archive50 {
	return &archive50{cur: newHeaderCursor(r)}
}

// rar5Reader is the byte source readBlockHeader pulls from: a buffered,
// ReadByte-capable cursor such as archive50's headerCursor.
type rar5Reader interface {
	ReadByte() (byte, error)
	Read([]byte) (int, error)
}

type parsedBlock5 struct {
	htype      uint64
	flags      uint64
	extraSize  int64
	dataSize   int64
	body       []byte
	headerSize int64
}

// readBlockHeader reads and validates the fixed CRC32 + vint-framed block
// header shared by every RAR5 block type, returning the raw header payload
// (everything after HeaderSize's own vint, up to but excluding the extra
// and data areas) plus the declared extra/data area sizes. It returns
// io.EOF when the source ends before a full CRC field can be read.
func (a *archive50) readBlockHeader(r rar5Reader) (*parsedBlock5, error) {
	var crcBuf [4]byte
	if _, err := io.ReadFull(readerOf(r), crcBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, ErrTruncatedHeader
	}
	declaredCRC := uint32(crcBuf[0]) | uint32(crcBuf[1])<<8 | uint32(crcBuf[2])<<16 | uint32(crcBuf[3])<<24

	sizeBuf, err := readVintBytes(r)
	if err != nil {
		return nil, ErrCorruptBlockHeader
	}
	headerSize, n, ok := vint(sizeBuf)
	if !ok {
		return nil, ErrCorruptBlockHeader
	}
	_ = n

	if headerSize == 0 || headerSize > 1<<20 {
		return nil, ErrCorruptBlockHeader
	}

	rest := make([]byte, headerSize)
	if _, err := io.ReadFull(readerOf(r), rest); err != nil {
		return nil, ErrTruncatedHeader
	}

	crcInput := append(append([]byte{}, sizeBuf...), rest...)
	if crc32.ChecksumIEEE(crcInput) != declaredCRC {
		return nil, ErrBadHeaderCRC
	}

	b := readBuf(rest)
	htype := b.uvarint()
	flags := b.uvarint()

	var extraSize, dataSize int64
	if flags&hflagExtra != 0 {
		extraSize = int64(b.uvarint())
	}
	if flags&hflagData != 0 {
		dataSize = int64(b.uvarint())
	}

	return &parsedBlock5{
		htype:      htype,
		flags:      flags,
		extraSize:  extraSize,
		dataSize:   dataSize,
		body:       []byte(b),
		headerSize: int64(len(rest)),
	}, nil
}

// readVintBytes reads one vint's worth of bytes (up to 10) without knowing
// its length ahead of time.
func readVintBytes(r rar5Reader) ([]byte, error) {
	var out []byte
	for i := 0; i < 10; i++ {
		c, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if c&0x80 == 0 {
			return out, nil
		}
	}
	return nil, ErrCorruptBlockHeader
}

// readerOf adapts a rar5Reader (which only guarantees ReadByte/Read) to
// io.Reader for io.ReadFull.
func readerOf(r rar5Reader) io.Reader { return readerAdapter{r} }

type readerAdapter struct{ r rar5Reader }

func (a readerAdapter) Read(p []byte) (int, error) { return a.r.Read(p) }

func (a *archive50) next() (*fileBlockHeader, error) {
	for {
		startPos := a.cur.pos
		pb, err := a.readBlockHeader(a.cur)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("rarstream: RAR5 block at %d: %w", startPos, err)
		}

		switch pb.htype {
		case headerType5End:
			return nil, io.EOF
		case headerType5File, headerType5Service:
			// parseFileHeader consumes the extra area itself (it needs to
			// inspect encryption records), so the cursor is already
			// positioned at the start of the data area once it returns.
			h, err := a.parseFileHeader(pb)
			if err != nil {
				return nil, err
			}
			h.dataOffset = a.cur.pos
			h.dataLength = pb.dataSize
			h.packedSize = pb.dataSize
			if err := a.cur.discard(pb.dataSize); err != nil {
				return nil, fmt.Errorf("rarstream: skipping packed data: %w", ErrTruncatedInput)
			}
			if pb.htype == headerType5Service {
				h.kind = blockService
			}
			return h, nil
		case headerType5Crypt:
			if err := a.cur.discard(pb.extraSize + pb.dataSize); err != nil {
				return nil, fmt.Errorf("rarstream: skipping encryption block: %w", ErrTruncatedInput)
			}
		default:
			if err := a.cur.discard(pb.extraSize + pb.dataSize); err != nil {
				return nil, fmt.Errorf("rarstream: skipping block payload: %w", ErrTruncatedInput)
			}
		}
	}
}

func (a *archive50) parseFileHeader(pb *parsedBlock5) (*fileBlockHeader, error) {
	b := readBuf(pb.body)
	h := &fileBlockHeader{kind: blockFile}

	h.splitBefore = pb.flags&0x0008 != 0
	h.splitAfter = pb.flags&0x0010 != 0

	fflags := b.uvarint()
	h.isDir = fflags&fflagDirectory != 0
	h.unknownSize = fflags&fflagUnpUnknown != 0
	h.unpackedSize = int64(b.uvarint())
	h.attributes = uint32(b.uvarint())
	if fflags&fflagUnixTime != 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("rarstream: truncated mtime: %w", ErrTruncatedHeader)
		}
		h.modTime = time.Unix(int64(b.uint32()), 0).UTC()
	}
	if fflags&fflagCRC32 != 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("rarstream: truncated crc: %w", ErrTruncatedHeader)
		}
		h.crc32 = b.uint32()
	}

	compInfo := b.uvarint()
	version := int(compInfo & 0x3f)
	solid := compInfo&0x40 != 0
	method := (compInfo >> 7) & 0x7
	dictLog := (compInfo >> 10) & 0xf

	h.version = 5
	h.solid = solid
	_ = version
	if method == 0 {
		h.method = methodStore
		h.dictSize = 0
	} else {
		h.method = methodLZSS50
		h.dictSize = uint64(1) << (17 + dictLog)
	}

	h.hostOS = byte(b.uvarint())
	nameLen := int(b.uvarint())
	if len(b) < nameLen {
		return nil, fmt.Errorf("rarstream: truncated file name: %w", ErrTruncatedHeader)
	}
	h.name = string(b.bytes(nameLen))

	// Extra area records (encryption, version) live immediately after the
	// fixed header fields; read them now to pick up encryption parameters
	// before the cursor moves on to the data area.
	if pb.extraSize > 0 {
		extra := make([]byte, pb.extraSize)
		if _, err := a.cur.Read(extra); err != nil {
			return nil, fmt.Errorf("rarstream: reading extra area: %w", ErrTruncatedHeader)
		}
		a.parseExtraRecords(extra, h)
	}
	return h, nil
}

func (a *archive50) parseExtraRecords(extra []byte, h *fileBlockHeader) {
	b := readBuf(extra)
	for len(b) > 0 {
		size := b.uvarint()
		if size == 0 || uint64(len(b)) < size {
			return
		}
		rec := b.bytes(int(size))
		rb := readBuf(rec)
		if len(rb) == 0 {
			continue
		}
		recType := rb.uvarint()
		switch recType {
		case extraRecordCrypt:
			if len(rb) < 1 {
				continue
			}
			kdfLg := int(rb.byte())
			if len(rb) < 1 {
				continue
			}
			flags := rb.byte()
			if len(rb) < 16 {
				continue
			}
			salt := append([]byte(nil), rb.bytes(16)...)
			h.encrypted = true
			h.salt = salt
			h.kdfCount = 1 << kdfLg
			if flags&0x01 != 0 && len(rb) >= 12 {
				h.pswCheck = append([]byte(nil), rb.bytes(12)...)
			}
		default:
			// version/redirection/owner/hash records aren't needed for
			// decoding; skip.
		}
	}
}
