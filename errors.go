package rarstream

import "errors"

// Sentinel errors returned by this package. Callers should use errors.Is,
// since internal helpers wrap these with additional context via fmt.Errorf's
// %w verb.
var (
	ErrNotARarArchive          = errors.New("rarstream: not a RAR archive")
	ErrUnsupportedRarVersion   = errors.New("rarstream: unsupported RAR version")
	ErrTruncatedHeader         = errors.New("rarstream: truncated header")
	ErrHeaderCRCMismatch       = errors.New("rarstream: header CRC mismatch")
	ErrUnknownCompressionMethod = errors.New("rarstream: unknown compression method")
	ErrDictionaryTooLarge      = errors.New("rarstream: dictionary size too large")
	ErrTruncatedInput          = errors.New("rarstream: truncated input")
	ErrCorruptBitStream        = errors.New("rarstream: corrupt bit stream")
	ErrBackreferenceOutOfRange = errors.New("rarstream: backreference out of range")
	ErrFilterBytecodeInvalid   = errors.New("rarstream: invalid filter bytecode")
	ErrVolumeDiscontinuity     = errors.New("rarstream: volume discontinuity")
	ErrVolumeMissing           = errors.New("rarstream: volume missing")
	ErrRangeOutOfBounds        = errors.New("rarstream: range out of bounds")
	ErrWrongPassword           = errors.New("rarstream: wrong password")
	ErrCryptoUnavailable       = errors.New("rarstream: archive is encrypted but no password was supplied")

	// ErrCorruptBlockHeader reports a malformed block header; the RAR4 and
	// RAR5 header readers return it. ErrBadHeaderCRC is an alias of
	// ErrHeaderCRCMismatch, returned by the RAR5 header reader.
	ErrCorruptBlockHeader = errors.New("rarstream: corrupt block header")
	ErrBadHeaderCRC       = ErrHeaderCRCMismatch

	ErrSolidOpenOutOfOrder = errors.New("rarstream: solid file requires earlier files in the group to be materialized first")
	ErrNoSig               = ErrNotARarArchive
)
