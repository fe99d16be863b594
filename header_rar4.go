package rarstream

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// RAR4 (a.k.a. RAR 1.5-4.x container, "archive15" in the reference decoder)
// block-header constants. Grounded on the vendored archive15.go reference
// kept for this pack (nwaples/rardecode archive15.go).
const (
	blockType15Main = 0x73
	blockType15File = 0x74
	blockType15Sub  = 0x7A
	blockType15End  = 0x7B

	flag15SplitBefore = 0x0001
	flag15SplitAfter  = 0x0002
	flag15Password    = 0x0004
	flag15AddSize     = 0x8000
	flag15Solid       = 0x0020
	flag15Large       = 0x0100
	flag15Unicode     = 0x0200
	flag15Salt        = 0x0400
	flag15ExtTime     = 0x1000

	flag15EndArcDataCRC = 0x0002
	flag15EndArcVolNum  = 0x0008
)

// archive15 parses a RAR4 volume's sequence of block headers into
// version-agnostic fileBlockHeader values.
type archive15 struct {
	cur *headerCursor
}

func newArchive15(r io.Reader) *archive15 {
	return &archive15{cur: newHeaderCursor(r)}
}

// crc16Buf computes the RAR4 header CRC: the low 16 bits of CRC-32 over the
// header bytes following the CRC field itself, matching unrar's convention
// (RAR4 "CRC-16" is in fact a truncated CRC-32).
func crc16Buf(b []byte) uint16 {
	return uint16(crc32.ChecksumIEEE(b))
}

// next reads the next block header from the volume and classifies it. It
// returns io.EOF when the volume's own end-of-archive block has been
// consumed, and also when fewer than the 7 fixed header bytes remain.
// A block whose fixed part is present but whose body is cut short is
// reported as ErrTruncatedHeader.
func (a *archive15) next() (*fileBlockHeader, error) {
	for {
		startPos := a.cur.pos
		fixed := make([]byte, 7)
		if _, err := a.cur.Read(fixed); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("rarstream: reading block header at %d: %w", startPos, ErrTruncatedHeader)
		}
		b := readBuf(fixed)
		headCRC := b.uint16()
		htype := b.byte()
		flags := b.uint16()
		headSize := int(b.uint16())
		if headSize < 7 {
			return nil, fmt.Errorf("rarstream: block header size %d too small: %w", headSize, ErrCorruptBlockHeader)
		}

		rest := make([]byte, headSize-7)
		if len(rest) > 0 {
			if _, err := a.cur.Read(rest); err != nil {
				return nil, fmt.Errorf("rarstream: reading block body: %w", ErrTruncatedHeader)
			}
		}

		crcInput := append(fixed[2:], rest...)
		if crc16Buf(crcInput) != headCRC && htype != blockType15End {
			return nil, fmt.Errorf("rarstream: block type %#x: %w", htype, ErrHeaderCRCMismatch)
		}

		var addSize int64
		body := readBuf(rest)
		if flags&flag15AddSize != 0 {
			if len(body) < 4 {
				return nil, fmt.Errorf("rarstream: missing ADD_SIZE: %w", ErrCorruptBlockHeader)
			}
			addSize = int64(body.uint32())
		}

		switch htype {
		case blockType15End:
			return nil, io.EOF
		case blockType15File, blockType15Sub:
			h, err := a.parseFileHeader(flags, body, addSize)
			if err != nil {
				return nil, err
			}
			h.dataOffset = a.cur.pos
			h.dataLength = h.packedSize
			if err := a.cur.discard(h.packedSize); err != nil {
				return nil, fmt.Errorf("rarstream: skipping packed data: %w", ErrTruncatedInput)
			}
			if htype == blockType15Sub {
				h.kind = blockService
			}
			return h, nil
		default:
			// Main header, comment, or other service blocks: skip any
			// trailing ADD_SIZE payload and keep scanning.
			if addSize > 0 {
				if err := a.cur.discard(addSize); err != nil {
					return nil, fmt.Errorf("rarstream: skipping block payload: %w", ErrTruncatedInput)
				}
			}
		}
	}
}

func (a *archive15) parseFileHeader(flags uint16, body readBuf, addSize int64) (*fileBlockHeader, error) {
	if len(body) < 21 {
		return nil, fmt.Errorf("rarstream: file header too short: %w", ErrTruncatedHeader)
	}
	h := &fileBlockHeader{kind: blockFile}

	packSize := int64(body.uint32())
	unpSize := int64(body.uint32())
	h.hostOS = body.byte()
	h.crc32 = body.uint32()
	dosTime := body.uint32()
	unpVer := int(body.byte())
	method := body.byte()
	nameSize := int(body.uint16())
	h.attributes = body.uint32()

	if flags&flag15Large != 0 {
		if len(body) < 8 {
			return nil, fmt.Errorf("rarstream: truncated high-size fields: %w", ErrTruncatedHeader)
		}
		highPack := int64(body.uint32())
		highUnp := int64(body.uint32())
		packSize |= highPack << 32
		unpSize |= highUnp << 32
	}
	h.packedSize = packSize + addSize
	h.unpackedSize = unpSize

	if len(body) < nameSize {
		return nil, fmt.Errorf("rarstream: truncated file name: %w", ErrTruncatedHeader)
	}
	name := body.bytes(nameSize)
	h.name = decodeName15(name, flags&flag15Unicode != 0)
	h.isDir = h.attributes&0x10 != 0

	if flags&flag15Salt != 0 {
		if len(body) < 8 {
			return nil, fmt.Errorf("rarstream: truncated salt: %w", ErrTruncatedHeader)
		}
		h.salt = append([]byte(nil), body.bytes(8)...)
	}

	h.modTime = parseDosTime(dosTime)
	h.version = unpVer
	h.solid = flags&flag15Solid != 0
	h.splitBefore = flags&flag15SplitBefore != 0
	h.splitAfter = flags&flag15SplitAfter != 0
	h.encrypted = flags&flag15Password != 0
	h.kdfCount = 0x40000

	dictBits := (flags >> 5) & 0x7
	if method == 0x30 {
		h.method = methodStore
		h.dictSize = 0
	} else {
		h.method = methodLZSS29
		if dictBits > 4 {
			dictBits = 4
		}
		h.dictSize = uint64(64*1024) << dictBits
	}
	return h, nil
}

// decodeName15 decodes a RAR4 file name field. Plain (non-unicode) names are
// already the target bytes. For unicode names it first tries to read the
// field as raw UTF-16LE with golang.org/x/text's decoder; if that fails it
// returns only the ASCII part before the first 0 byte. The encoded-unicode
// tail after that 0 byte is not decoded.
func decodeName15(b []byte, unicode bool) string {
	if !unicode {
		return string(b)
	}
	if s, ok := decodeUTF16NameFallback(b); ok {
		return s
	}
	// Fall back to the embedded high/low-byte scheme: ASCII portion
	// terminated by 0, followed by a unicode-diff encoded tail.
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	ascii := string(b[:i])
	if i+1 >= len(b) {
		return ascii
	}
	return ascii
}

// parseDosTime converts a packed MS-DOS date/time field to time.Time.
func parseDosTime(dt uint32) time.Time {
	sec := int((dt & 0x1f) * 2)
	min := int((dt >> 5) & 0x3f)
	hour := int((dt >> 11) & 0x1f)
	day := int((dt >> 16) & 0x1f)
	month := int((dt >> 21) & 0xf)
	year := int((dt>>25)&0x7f) + 1980
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}
