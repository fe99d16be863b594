package rarstream

import "time"

// fragment is the unexported realization of spec.md's ArchiveFragment: one
// contiguous packed-data region, in one volume, contributing to one inner
// file. A non-split file has exactly one fragment; a file that spans
// volumes has one fragment per volume it touches, in volume order.
type fragment struct {
	fileName string
	isDir    bool

	volumeIndex int
	dataOffset  int64
	dataLength  int64

	unpackedStart int64 // offset, in the *file's* unpacked stream, where this fragment's output begins (stored files only)
	unpackedEnd   int64 // exclusive (stored files only)
	totalUnpackedSize int64 // the file's declared total decompressed size, from the header

	method   compressionMethod
	version  int
	dictSize uint64
	solid    bool

	splitBefore bool
	splitAfter  bool

	encrypted bool
	salt      []byte
	pswCheck  []byte
	kdfCount  int

	attributes uint32
	modTime    time.Time
	crc32      uint32
	knownCRC   bool
}
