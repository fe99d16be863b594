package rarstream

import (
	"golang.org/x/text/encoding/unicode"
)

// decodeUTF16NameFallback attempts to treat b as raw UTF-16LE, which some
// non-Latin-locale RAR4 writers emit instead of the spec's RLE-diff unicode
// name encoding. It reports ok=false (not an error) when the bytes don't
// look like valid UTF-16LE, so callers can fall through to the primary
// decoding scheme.
func decodeUTF16NameFallback(b []byte) (string, bool) {
	if len(b)%2 != 0 || len(b) == 0 {
		return "", false
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", false
	}
	for _, r := range string(out) {
		if r == 0xFFFD {
			return "", false
		}
	}
	return string(out), true
}
