package rarstream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/pbkdf2"
)

// derivedKeys holds the AES key/IV pair (and, for RAR5, the password-check
// value) produced from a password and a fragment's salt.
type derivedKeys struct {
	key      []byte
	iv       []byte
	pswCheck []byte
}

// keyCache memoizes key derivation per (password, salt, kdfCount) tuple —
// PBKDF2 at RAR5's default 2^18 rounds is deliberately expensive, and a
// solid group's many fragments usually share one salt, so recomputing per
// fragment would multiply that cost by the fragment count for no benefit.
// Replaces the teacher's own small hand-rolled ring-buffer cache with a
// bounded LRU, per SPEC_FULL.md's DOMAIN STACK decision.
type keyCache struct {
	cache *lru.Cache[string, derivedKeys]
}

func newKeyCache(size int) *keyCache {
	c, _ := lru.New[string, derivedKeys](size)
	return &keyCache{cache: c}
}

func cacheKeyFor(password string, salt []byte, kdfCount int) string {
	return fmt.Sprintf("%s:%x:%d", password, salt, kdfCount)
}

// deriveKeys50 implements RAR5 key derivation exactly as §4.6 specifies it:
// a single PBKDF2-HMAC-SHA256 call over (password, salt) with 2^kdfCount
// iterations, producing one 56-byte output sliced into a 32-byte AES key,
// a 16-byte IV, and an 8-byte password-check value (in that order) — not
// three independent derivations, grounded on archive50.go's calcKeys50 but
// using golang.org/x/crypto/pbkdf2 rather than its hand-rolled iteration
// loop.
func (kc *keyCache) deriveKeys50(password string, salt []byte, lg2Count int) (derivedKeys, error) {
	if lg2Count < 0 || lg2Count > 24 {
		return derivedKeys{}, fmt.Errorf("rarstream: kdf count exponent %d out of range: %w", lg2Count, ErrCryptoUnavailable)
	}
	iterations := 1 << uint(lg2Count)
	k := cacheKeyFor(password, salt, iterations)
	if kc.cache != nil {
		if v, ok := kc.cache.Get(k); ok {
			return v, nil
		}
	}

	const keyLen, ivLen, checkLen = 32, 16, 8
	out := pbkdf2.Key([]byte(password), salt, iterations, keyLen+ivLen+checkLen, sha256.New)

	dk := derivedKeys{
		key:      out[:keyLen],
		iv:       out[keyLen : keyLen+ivLen],
		pswCheck: out[keyLen+ivLen:],
	}
	if kc.cache != nil {
		kc.cache.Add(k, dk)
	}
	return dk, nil
}

// deriveKeys30 implements the legacy RAR 3.0+ key derivation used by RAR4
// archives: SHA-1 over (password || salt) repeated 0x40000 times, folding
// in a running byte counter and periodically sampling key/IV bytes out of
// the digest state, grounded on archive15.go's calcAes30Params.
func (kc *keyCache) deriveKeys30(password string, salt []byte) (derivedKeys, error) {
	k := cacheKeyFor(password, salt, 0x40000)
	if kc.cache != nil {
		if v, ok := kc.cache.Get(k); ok {
			return v, nil
		}
	}

	pw := []byte(password)
	input := make([]byte, 0, len(pw)+len(salt))
	input = append(input, pw...)
	input = append(input, salt...)

	h := sha1.New()
	var iv [16]byte
	var rawKey [20]byte
	for i := 0; i < 0x40000; i++ {
		h.Write(input)
		var cnt [3]byte
		cnt[0] = byte(i)
		cnt[1] = byte(i >> 8)
		cnt[2] = byte(i >> 16)
		h.Write(cnt[:1])
		if i%(0x40000/16) == 0 {
			digest := h.Sum(nil)
			iv[i/(0x40000/16)] = digest[len(digest)-1]
		}
	}
	copy(rawKey[:], h.Sum(nil))

	// RAR3 derives the AES key by byte-swapping the SHA-1 digest into
	// little-endian 32-bit words.
	var key [16]byte
	for i := 0; i < 4; i++ {
		key[i*4+0] = rawKey[i*4+3]
		key[i*4+1] = rawKey[i*4+2]
		key[i*4+2] = rawKey[i*4+1]
		key[i*4+3] = rawKey[i*4+0]
	}

	dk := derivedKeys{key: key[:], iv: iv[:]}
	if kc.cache != nil {
		kc.cache.Add(k, dk)
	}
	return dk, nil
}

// cbcReader decrypts AES-256-CBC (or AES-128 for RAR4) ciphertext read from
// an underlying io.Reader, carrying the chain value (the previous
// ciphertext block) across Read calls so a fragment boundary mid-file does
// not reset the CBC chain — grounded on the teacher's cipherBlockReader,
// generalized to accept a fresh underlying io.Reader per fragment while
// keeping the running IV.
type cbcReader struct {
	block   cipher.Block
	iv      []byte
	r       io.Reader
	buf     []byte // decrypted, not-yet-returned bytes
	scratch []byte
}

func newCBCReader(key, iv []byte, r io.Reader) (*cbcReader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rarstream: %w", ErrCryptoUnavailable)
	}
	return &cbcReader{block: block, iv: append([]byte(nil), iv...), r: r, scratch: make([]byte, block.BlockSize())}, nil
}

// continueWith swaps in a new ciphertext source for the next fragment of
// the same file, keeping the running IV so the CBC chain is unbroken
// across the volume boundary.
func (c *cbcReader) continueWith(r io.Reader) { c.r = r }

func (c *cbcReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		bs := c.block.BlockSize()
		ct := make([]byte, bs)
		if _, err := io.ReadFull(c.r, ct); err != nil {
			return 0, err
		}
		pt := make([]byte, bs)
		c.block.Decrypt(pt, ct)
		for i := range pt {
			pt[i] ^= c.iv[i]
		}
		c.iv = ct
		c.buf = pt
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}
