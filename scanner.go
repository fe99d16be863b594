package rarstream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

var (
	sig15 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}
	sig50 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}
)

// scanner walks a VolumeSet in order and produces the full fragment list
// for every inner file (§4.3). It never decodes packed data itself — it
// only locates block headers and their byte ranges.
type scanner struct {
	vs *VolumeSet
}

func newScanner(vs *VolumeSet) *scanner { return &scanner{vs: vs} }

// detectSignature reads the first few bytes of a volume and reports which
// archive version it is, or ErrNotARarArchive if neither signature matches.
func detectSignature(r io.Reader) (rar5 bool, skip int, err error) {
	buf := make([]byte, 8)
	n, _ := io.ReadFull(r, buf)
	buf = buf[:n]
	if bytes.HasPrefix(buf, sig50) {
		return true, len(sig50), nil
	}
	if bytes.HasPrefix(buf, sig15) {
		return false, len(sig15), nil
	}
	return false, 0, ErrNotARarArchive
}

// Scan produces the ordered fragment list for every inner file across every
// volume of vs. Per §4.3 step 5, entering a volume while a fragment from the
// previous volume is still open (its block had continuesInNext set) requires
// that volume's first file block to carry continuesFromPrev and the same
// name; a mismatch fails with ErrVolumeDiscontinuity.
func (s *scanner) Scan() ([]fragment, error) {
	var frags []fragment
	unpackedCursor := map[string]int64{}
	pending := ""

	for vi := 0; vi < s.vs.len(); vi++ {
		src := s.vs.at(vi)
		rc, err := src.ReadRange(0, src.Length()-1)
		if err != nil {
			return nil, fmt.Errorf("rarstream: opening volume %q: %w", src.Name(), err)
		}
		volFrags, err := s.scanVolume(vi, src, rc, unpackedCursor)
		rc.Close()
		if err != nil {
			return nil, err
		}
		if err := checkContinuity(pending, volFrags, src.Name()); err != nil {
			return nil, err
		}
		pending = nextPending(volFrags)
		frags = append(frags, volFrags...)
	}
	return frags, nil
}

// checkContinuity verifies that volFrags (one volume's fragments, in block
// order) correctly resumes a fragment left open by the previous volume.
func checkContinuity(pending string, volFrags []fragment, volName string) error {
	if pending == "" {
		return nil
	}
	if len(volFrags) == 0 || !volFrags[0].splitBefore || volFrags[0].fileName != pending {
		return fmt.Errorf("rarstream: volume %q: expected continuation of %q: %w", volName, pending, ErrVolumeDiscontinuity)
	}
	return nil
}

// nextPending reports the file name that must continue into the next
// volume, if the last block of this volume left one open.
func nextPending(volFrags []fragment) string {
	if len(volFrags) == 0 {
		return ""
	}
	last := volFrags[len(volFrags)-1]
	if last.splitAfter {
		return last.fileName
	}
	return ""
}

// scanVolume returns the fragments found in a single volume, in block order.
func (s *scanner) scanVolume(vi int, src VolumeSource, r io.Reader, cursor map[string]int64) ([]fragment, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(sig50))
	rar5, skip, err := detectSignature(bytes.NewReader(head))
	if err != nil {
		return nil, fmt.Errorf("rarstream: volume %q: %w", src.Name(), err)
	}
	br.Discard(skip)

	// Header cursors count from the end of the signature, so their data
	// offsets are absolute positions within the volume.
	var next func() (*fileBlockHeader, error)
	if rar5 {
		a := newArchive50(br)
		a.cur.pos = int64(skip)
		next = a.next
	} else {
		a := newArchive15(br)
		a.cur.pos = int64(skip)
		next = a.next
	}

	var volFrags []fragment
	for {
		h, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if h.kind != blockFile && h.kind != blockService {
			continue
		}
		if h.kind == blockService {
			// Service blocks (e.g. recovery records, NTFS stream data)
			// carry no user-visible inner file; skip them, matching
			// spec.md's non-goal on recovery records.
			continue
		}

		f := fragment{
			fileName:    h.name,
			isDir:       h.isDir,
			volumeIndex: vi,
			dataOffset:  h.dataOffset,
			dataLength:  h.dataLength,
			method:      h.method,
			version:     h.version,
			dictSize:    h.dictSize,
			solid:       h.solid,
			splitBefore: h.splitBefore,
			splitAfter:  h.splitAfter,
			encrypted:   h.encrypted,
			salt:        h.salt,
			pswCheck:    h.pswCheck,
			kdfCount:    h.kdfCount,
			attributes:  h.attributes,
			modTime:     h.modTime,
			crc32:       h.crc32,
			knownCRC:    !h.unknownSize,
			totalUnpackedSize: h.unpackedSize,
		}

		if h.method == methodStore {
			start := cursor[h.name]
			f.unpackedStart = start
			f.unpackedEnd = start + h.dataLength
			cursor[h.name] = f.unpackedEnd
		}

		volFrags = append(volFrags, f)
	}
	return volFrags, nil
}

// ScanParallel mirrors Scan but fetches each volume's header
// region concurrently, bounded by concurrency. Volumes are still assembled
// back into archive order afterward, since fragment ordering is part of the
// decoder's correctness contract even though discovery itself can race.
func (s *scanner) ScanParallel(ctx context.Context, concurrency int) ([]fragment, error) {
	if concurrency <= 1 {
		return s.Scan()
	}

	type volResult struct {
		frags []fragment
		err   error
	}
	results := make([]volResult, s.vs.len())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for vi := 0; vi < s.vs.len(); vi++ {
		vi := vi
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			src := s.vs.at(vi)
			rc, err := src.ReadRange(0, src.Length()-1)
			if err != nil {
				err = fmt.Errorf("rarstream: opening volume %q: %w", src.Name(), err)
				results[vi] = volResult{err: err}
				return err
			}
			defer rc.Close()
			frags, err := s.scanVolume(vi, src, rc, map[string]int64{})
			results[vi] = volResult{frags: frags, err: err}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Recompute unpacked cursors for stored files, and re-check cross-volume
	// continuity, sequentially now that every volume's raw fragment list is
	// known — both depend on volume order even though discovery itself raced.
	var all []fragment
	cursor := map[string]int64{}
	pending := ""
	for vi := 0; vi < len(results); vi++ {
		volFrags := results[vi].frags
		if err := checkContinuity(pending, volFrags, s.vs.at(vi).Name()); err != nil {
			return nil, err
		}
		pending = nextPending(volFrags)
		for _, f := range volFrags {
			if f.method == methodStore {
				start := cursor[f.fileName]
				f.unpackedStart = start
				f.unpackedEnd = start + f.dataLength
				cursor[f.fileName] = f.unpackedEnd
			}
			all = append(all, f)
		}
	}
	return all, nil
}
