package rarstream

import "time"

// blockKind is the normalized block-type classification both the RAR4 and
// RAR5 header parsers reduce their own version-specific type bytes/vints
// into, so the scanner (§4.3) never has to branch on archive version again
// once a header has been parsed.
type blockKind int

const (
	blockUnknown blockKind = iota
	blockMain
	blockFile
	blockService
	blockEncryption
	blockEnd
)

// compressionMethod enumerates the decoder families this engine wires up.
// Stored files skip decoding entirely (method 0x30 in RAR4, 0 in RAR5).
type compressionMethod int

const (
	methodStore compressionMethod = iota
	methodLZSS29
	methodPPMd
	methodLZSS50
)

// fileBlockHeader is the version-agnostic parsed representation of one
// RAR4 "file" header or RAR5 "file"/"service" header, carrying exactly the
// fields the scanner and decoder layers need. It is the common return type
// of both archive15.next and archive50.next.
type fileBlockHeader struct {
	kind blockKind

	name string
	isDir bool

	packedSize   int64
	unpackedSize int64
	unknownSize  bool

	hostOS     byte
	attributes uint32
	modTime    time.Time

	method    compressionMethod
	version   int // unpack version, RAR4 only; RAR5 always reports 5
	dictSize  uint64
	solid     bool

	splitBefore bool // continues a file started in a previous volume
	splitAfter  bool // file continues into the next volume

	encrypted bool
	salt      []byte
	pswCheck  []byte // RAR5 only
	kdfCount  int    // RAR5: 2^n iterations; RAR4: fixed 0x40000

	// dataOffset/dataLength locate the packed payload for this block
	// within the volume that produced it; filled in by the scanner once
	// the header parser returns, since only the scanner tracks the
	// running read cursor.
	dataOffset int64
	dataLength int64

	crc32 uint32
}
