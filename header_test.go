package rarstream

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"
)

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

// encodeVint encodes v as a RAR5-style 7-bit continuation vint.
func encodeVint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func buildRar4FileBlock(t *testing.T, name string, data []byte, flags uint16) []byte {
	t.Helper()
	body := append([]byte{}, le32(uint32(len(data)))...) // packSize
	body = append(body, le32(uint32(len(data)))...)      // unpSize
	body = append(body, 0)                               // hostOS
	body = append(body, le32(0)...)                       // crc32 (unchecked by parser)
	body = append(body, le32(0)...)                       // dosTime
	body = append(body, 20)                               // unpVer
	body = append(body, 0x30)                             // method: store
	body = append(body, le16(uint16(len(name)))...)       // nameSize
	body = append(body, le32(0)...)                       // attributes
	body = append(body, []byte(name)...)

	headSize := 7 + len(body)
	rest := append(append([]byte{byte(0x74)}, le16(flags)...), le16(uint16(headSize))...)
	rest = append(rest, body...)
	crc := crc16Buf(rest)

	out := append([]byte{}, le16(crc)...)
	out = append(out, rest...)
	out = append(out, data...)
	return out
}

func buildRar4EndBlock() []byte {
	rest := append([]byte{byte(0x7B)}, le16(0)...)
	rest = append(rest, le16(7)...)
	out := append([]byte{0, 0}, rest...)
	return out
}

func TestArchive15ParsesStoredFile(t *testing.T) {
	data := []byte("world")
	raw := buildRar4FileBlock(t, "hello.txt", data, 0)
	raw = append(raw, buildRar4EndBlock()...)

	a := newArchive15(bytes.NewReader(raw))
	h, err := a.next()
	if err != nil {
		t.Fatalf("next() error: %v", err)
	}
	if h.name != "hello.txt" {
		t.Fatalf("name = %q", h.name)
	}
	if h.method != methodStore {
		t.Fatalf("method = %v, want methodStore", h.method)
	}
	if h.packedSize != int64(len(data)) || h.unpackedSize != int64(len(data)) {
		t.Fatalf("sizes = %d/%d, want %d/%d", h.packedSize, h.unpackedSize, len(data), len(data))
	}
	if h.isDir {
		t.Fatal("isDir = true, want false")
	}

	_, err = a.next()
	if err != io.EOF {
		t.Fatalf("second next() = %v, want io.EOF", err)
	}
}

func TestArchive15RejectsBadCRC(t *testing.T) {
	raw := buildRar4FileBlock(t, "x.txt", []byte("y"), 0)
	raw[0] ^= 0xFF // corrupt the CRC field
	raw = append(raw, buildRar4EndBlock()...)

	a := newArchive15(bytes.NewReader(raw))
	_, err := a.next()
	if err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestDetectSignatureRar4AndRar5(t *testing.T) {
	rar5, skip, err := detectSignature(bytes.NewReader(sig50))
	if err != nil || !rar5 || skip != len(sig50) {
		t.Fatalf("rar5=%v skip=%d err=%v", rar5, skip, err)
	}
	rar5, skip, err = detectSignature(bytes.NewReader(sig15))
	if err != nil || rar5 || skip != len(sig15) {
		t.Fatalf("rar5=%v skip=%d err=%v", rar5, skip, err)
	}
	_, _, err = detectSignature(bytes.NewReader([]byte("not a rar file!!")))
	if err != ErrNotARarArchive {
		t.Fatalf("err = %v, want ErrNotARarArchive", err)
	}
}

// buildRar5FileBlock builds one RAR5 file header block (store method, no
// extra area) followed immediately by its data bytes.
func buildRar5FileBlock(name string, data []byte) []byte {
	return buildRar5FileBlockFlags(name, data, hflagData)
}

// buildRar5FileBlockFlags is buildRar5FileBlock with caller-chosen block
// header flags (e.g. to set HFL_SPLIT_BEFORE/HFL_SPLIT_AFTER, 0x0008/0x0010,
// on top of hflagData).
func buildRar5FileBlockFlags(name string, data []byte, hflags uint64) []byte {
	fileFields := append([]byte{}, encodeVint(0)...)             // fflags
	fileFields = append(fileFields, encodeVint(uint64(len(data)))...) // unpackedSize
	fileFields = append(fileFields, encodeVint(0)...)             // attributes
	fileFields = append(fileFields, encodeVint(0)...)             // compInfo (store, version 0)
	fileFields = append(fileFields, encodeVint(0)...)             // hostOS
	fileFields = append(fileFields, encodeVint(uint64(len(name)))...)
	fileFields = append(fileFields, []byte(name)...)

	rest := append([]byte{}, encodeVint(headerType5File)...)
	rest = append(rest, encodeVint(hflags)...)
	rest = append(rest, encodeVint(uint64(len(data)))...) // dataSize
	rest = append(rest, fileFields...)

	sizeBuf := encodeVint(uint64(len(rest)))
	crcInput := append(append([]byte{}, sizeBuf...), rest...)
	crc := crc32.ChecksumIEEE(crcInput)

	out := append([]byte{}, le32(crc)...)
	out = append(out, sizeBuf...)
	out = append(out, rest...)
	out = append(out, data...)
	return out
}

func buildRar5EndBlock() []byte {
	rest := append([]byte{}, encodeVint(headerType5End)...)
	rest = append(rest, encodeVint(0)...) // flags
	sizeBuf := encodeVint(uint64(len(rest)))
	crcInput := append(append([]byte{}, sizeBuf...), rest...)
	crc := crc32.ChecksumIEEE(crcInput)
	out := append([]byte{}, le32(crc)...)
	out = append(out, sizeBuf...)
	out = append(out, rest...)
	return out
}

func TestArchive50ParsesStoredFile(t *testing.T) {
	data := []byte("xyz")
	raw := buildRar5FileBlock("hi.txt", data)
	raw = append(raw, buildRar5EndBlock()...)

	a := newArchive50(bytes.NewReader(raw))
	h, err := a.next()
	if err != nil {
		t.Fatalf("next() error: %v", err)
	}
	if h.name != "hi.txt" {
		t.Fatalf("name = %q", h.name)
	}
	if h.method != methodStore {
		t.Fatalf("method = %v, want methodStore", h.method)
	}
	if h.unpackedSize != int64(len(data)) || h.dataLength != int64(len(data)) {
		t.Fatalf("sizes = %d/%d", h.unpackedSize, h.dataLength)
	}

	_, err = a.next()
	if err != io.EOF {
		t.Fatalf("second next() = %v, want io.EOF", err)
	}
}

func TestArchive50RejectsBadCRC(t *testing.T) {
	raw := buildRar5FileBlock("x.txt", []byte("y"))
	raw[0] ^= 0xFF
	raw = append(raw, buildRar5EndBlock()...)

	a := newArchive50(bytes.NewReader(raw))
	_, err := a.next()
	if err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestScannerEndToEndRar5SingleVolume(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(sig50)
	buf.Write(buildRar5FileBlock("a.txt", []byte("hello")))
	buf.Write(buildRar5EndBlock())

	vol := &memVolume{name: "archive.rar", data: buf.Bytes()}
	vs, err := newVolumeSet([]VolumeSource{vol})
	if err != nil {
		t.Fatal(err)
	}
	sc := newScanner(vs)
	frags, err := sc.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].fileName != "a.txt" {
		t.Fatalf("frags = %+v", frags)
	}
	if frags[0].unpackedEnd-frags[0].unpackedStart != 5 {
		t.Fatalf("unpacked range = [%d,%d)", frags[0].unpackedStart, frags[0].unpackedEnd)
	}
}
