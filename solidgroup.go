package rarstream

import (
	"fmt"
	"io"
	"sync"
)

// solidRun is a maximal run of InnerFiles sharing one compression
// bitstream: RAR treats every file in a solid block as one continuous
// packed stream, so decoding file k requires having already decoded
// (or at least walked) files 0..k-1 of the same run. A non-solid file
// starts its own run of length 1.
//
// This realizes spec.md §9's chosen option for solid random access:
// materialize prior files in the group into a scratch buffer on first
// random access, rather than reporting SolidRandomAccessUnsupported.
type solidRun struct {
	vs       *VolumeSet
	opts     *openOptions
	files    []*InnerFile
	method   compressionMethod
	dictSize uint64

	mu           sync.Mutex
	materialized [][]byte // materialized[i] is file i's full unpacked bytes, once decoded
	doneThrough  int       // highest index fully materialized, -1 if none
}

func newSolidRun(vs *VolumeSet, opts *openOptions, files []*InnerFile, method compressionMethod, dictSize uint64) *solidRun {
	return &solidRun{vs: vs, opts: opts, files: files, method: method, dictSize: dictSize, materialized: make([][]byte, len(files)), doneThrough: -1}
}

// materializeThrough decodes (if not already done) every file up to and
// including index k, in declaration order, sharing one window/decoder
// across the whole run.
func (run *solidRun) materializeThrough(k int) error {
	run.mu.Lock()
	defer run.mu.Unlock()

	if k <= run.doneThrough {
		return nil
	}

	if run.method == methodStore {
		// Stored solid members still share fragment ordering but each
		// byte maps 1:1, so materialize by straight copy with no decoder
		// involved at all.
		for fi := 0; fi <= k; fi++ {
			f := run.files[fi]
			out := make([]byte, 0, f.unpackedLength)
			for _, fr := range f.fragments {
				rcv, err := run.vs.at(fr.volumeIndex).ReadRange(fr.dataOffset, fr.dataOffset+fr.dataLength-1)
				if err != nil {
					return err
				}
				data := make([]byte, fr.dataLength)
				_, err = io.ReadFull(rcv, data)
				rcv.Close()
				if err != nil {
					return fmt.Errorf("rarstream: reading %q: %w", f.name, err)
				}
				out = append(out, data...)
			}
			run.materialized[fi] = out
		}
		run.doneThrough = k
		return nil
	}

	var allFrags []fragment
	fragFile := []int{} // allFrags[i] belongs to file fragFile[i]
	for fi, f := range run.files {
		for _, fr := range f.fragments {
			allFrags = append(allFrags, fr)
			fragFile = append(fragFile, fi)
		}
	}

	dictLog := dictLog2(run.dictSize)
	w := newWindow(dictLog)

	var pendingFilters []*filterBlock

	open := func(idx int) (io.ReadCloser, error) {
		fr := allFrags[idx]
		src := run.vs.at(fr.volumeIndex)
		rc, err := src.ReadRange(fr.dataOffset, fr.dataOffset+fr.dataLength-1)
		if err != nil {
			return nil, fmt.Errorf("rarstream: reading fragment of %q: %w", run.files[fragFile[idx]].name, err)
		}
		if !fr.encrypted {
			return rc, nil
		}
		if run.opts == nil || run.opts.password == "" {
			rc.Close()
			return nil, fmt.Errorf("rarstream: %q: %w", run.files[fragFile[idx]].name, ErrCryptoUnavailable)
		}
		var dk derivedKeys
		var derr error
		if fr.version == 5 {
			dk, derr = run.opts.keys.deriveKeys50(run.opts.password, fr.salt, log2OfKdfCount(fr.kdfCount))
		} else {
			dk, derr = run.opts.keys.deriveKeys30(run.opts.password, fr.salt)
		}
		if derr != nil {
			rc.Close()
			return nil, derr
		}
		cr, err := newCBCReader(dk.key, dk.iv, rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &cbcReadCloser{cbcReader: cr, underlying: rc}, nil
	}

	src := newFragmentSource(len(allFrags), open)
	defer src.Close()

	var dec decoder
	switch run.method {
	case methodLZSS29:
		mbr := newMsbBitReader(src)
		d29, err := newRar4Block29Decoder(mbr)
		if err != nil {
			return err
		}
		dec = d29
	case methodLZSS50:
		// A solid run is one continuous logical stream across many
		// blocks, so RAR5 decodes through the same unbounded
		// byte-at-a-time reader RAR4 uses; no per-block bit limit is
		// applied.
		mbr := newMsbBitReader(src)
		dec = newRar5LzssDecoder(mbr)
	}

	produced := int64(0)
	targetFile := 0
	fileStart := int64(0)

	flushFile := func(upTo int64) {
		for targetFile <= k && fileStart+run.files[targetFile].unpackedLength <= upTo {
			length := run.files[targetFile].unpackedLength
			out := make([]byte, length)
			for i := int64(0); i < length; i++ {
				out[i] = w.readAt(fileStart + i)
			}
			run.materialized[targetFile] = out
			fileStart += length
			targetFile++
		}
	}

	for fileStart+run.files[k].unpackedLength > produced {
		fbs, err := dec.fill(w)
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("rarstream: decoding %q: %w", run.files[targetFile].name, err)
		}
		pendingFilters = append(pendingFilters, fbs...)
		produced = w.pos
		pendingFilters = applyDueFilters(w, pendingFilters)
		flushFile(produced)
		if targetFile > k {
			break
		}
	}
	flushFile(produced)
	run.doneThrough = k
	return nil
}

// applyDueFilters applies (and drops) any queued filterBlocks whose byte
// range has been fully produced by the window so far.
func applyDueFilters(w *window, pending []*filterBlock) []*filterBlock {
	var remaining []*filterBlock
	for _, fb := range pending {
		if fb.offset+fb.length > w.pos {
			remaining = append(remaining, fb)
			continue
		}
		raw := make([]byte, fb.length)
		for i := int64(0); i < fb.length; i++ {
			raw[i] = w.readAt(fb.offset + i)
		}
		out, err := fb.apply(raw)
		if err != nil {
			continue
		}
		for i := 0; i < len(out) && int64(i) < fb.length; i++ {
			w.buf[(fb.offset+int64(i))&w.mask] = out[i]
		}
	}
	return remaining
}

func dictLog2(size uint64) uint {
	if size == 0 {
		return 17
	}
	var log uint
	for (uint64(1) << log) < size {
		log++
	}
	if log < 16 {
		log = 16
	}
	if log > 40 {
		log = 40
	}
	return log
}

func log2OfKdfCount(count int) int {
	if count <= 0 {
		return 15
	}
	n := 0
	for (1 << n) < count {
		n++
	}
	return n
}

type cbcReadCloser struct {
	*cbcReader
	underlying io.ReadCloser
}

func (c *cbcReadCloser) Close() error { return c.underlying.Close() }
