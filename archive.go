package rarstream

import (
	"fmt"

	"github.com/google/uuid"
)

// openOptions holds every Option's effect, grounded on the teacher's own
// options/Option pair (volume.go in the pack).
type openOptions struct {
	password    string
	concurrency int
	keys        *keyCache
}

// Option configures OpenArchive.
type Option func(*openOptions)

// WithPassword supplies the password used to derive keys for any encrypted
// fragment encountered while decoding.
func WithPassword(pw string) Option {
	return func(o *openOptions) { o.password = pw }
}

// WithConcurrency bounds how many volumes ScanParallel (exposed indirectly
// through ListArchiveInfoParallel) opens at once. The default is 4.
func WithConcurrency(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func defaultOptions() *openOptions {
	return &openOptions{concurrency: 4, keys: newKeyCache(32)}
}

// Archive is an opened, fully scanned RAR container (single- or
// multi-volume). Build one with OpenArchive.
type Archive struct {
	SessionID string // opaque per-open identifier for correlating logs across a long-lived caller

	vs      *VolumeSet
	opts    *openOptions
	files   []*InnerFile
	byName  map[string]*InnerFile
}

// OpenArchive scans every volume in vols, in whatever order VolumeSet
// determines from their names, and returns the resulting Archive. No
// packed data is decoded at this point — only headers are parsed.
func OpenArchive(vols []VolumeSource, opts ...Option) (*Archive, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	vs, err := newVolumeSet(vols)
	if err != nil {
		return nil, err
	}

	sc := newScanner(vs)
	frags, err := sc.Scan()
	if err != nil {
		return nil, err
	}

	m := newManifest(frags)

	a := &Archive{
		SessionID: uuid.NewString(),
		vs:        vs,
		opts:      o,
		files:     m.files,
		byName:    m.byName,
	}
	a.wireSolidRuns()
	return a, nil
}

// wireSolidRuns groups files into maximal solid runs (files 0, then every
// following file whose first fragment is marked solid, belong to the same
// run) and gives every InnerFile a pointer to its run plus its index
// within it, so InnerFile.Read can materialize on demand.
func (a *Archive) wireSolidRuns() {
	var run *solidRun
	var runFiles []*InnerFile

	flush := func() {
		if len(runFiles) == 0 {
			return
		}
		method, dict := methodStore, uint64(0)
		for _, f := range runFiles {
			if len(f.fragments) > 0 && f.fragments[0].method != methodStore {
				method = f.fragments[0].method
				dict = f.fragments[0].dictSize
				break
			}
		}
		run = newSolidRun(a.vs, a.opts, runFiles, method, dict)
		for i, f := range runFiles {
			f.vs = a.vs
			f.run = run
			f.runIndex = i
		}
		runFiles = nil
	}

	for _, f := range a.files {
		solid := len(f.fragments) > 0 && f.fragments[0].solid
		if !solid && len(runFiles) > 0 {
			flush()
		}
		runFiles = append(runFiles, f)
	}
	flush()
}

// Files returns every discovered InnerFile in declaration order.
func (a *Archive) Files() []*InnerFile { return a.files }

// File looks up one InnerFile by its recorded path.
func (a *Archive) File(name string) (*InnerFile, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("rarstream: %q: %w", name, ErrRangeOutOfBounds)
	}
	return f, nil
}
