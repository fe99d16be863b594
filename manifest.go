package rarstream

import "sort"

// Manifest groups the flat fragment list produced by the scanner into one
// InnerFile per distinct name, preserving first-seen (declaration) order —
// required by §4.5.5's solid-archive decode rule that files are read in
// declaration order.
type Manifest struct {
	files []*InnerFile
	byName map[string]*InnerFile
}

func newManifest(frags []fragment) *Manifest {
	m := &Manifest{byName: map[string]*InnerFile{}}
	for _, f := range frags {
		if f.isDir {
			continue
		}
		inf, ok := m.byName[f.fileName]
		if !ok {
			inf = &InnerFile{name: f.fileName}
			m.byName[f.fileName] = inf
			m.files = append(m.files, inf)
		}
		inf.fragments = append(inf.fragments, f)
	}
	for i, inf := range m.files {
		inf.declOrder = i
		inf.finalize()
	}
	return m
}

// chunkEntry is one precomputed (fragmentIndex, unpackedStart, unpackedEnd)
// triple, searched with sort.Search for O(log n) offset lookups (§4.4).
// Only meaningful for stored files or the stored-fragment prefix of a
// partially-stored file; compressed fragments cannot be bisected this way
// because their contribution to the unpacked stream is only known by
// actually running the decoder, so they fall back to sequential decode from
// the start of the solid group (see InnerFile.Read).
type chunkEntry struct {
	fragmentIndex int
	unpackedStart int64
	unpackedEnd   int64
}

func buildChunkMap(frags []fragment) []chunkEntry {
	var chunks []chunkEntry
	for i, f := range frags {
		if f.method != methodStore {
			break
		}
		chunks = append(chunks, chunkEntry{fragmentIndex: i, unpackedStart: f.unpackedStart, unpackedEnd: f.unpackedEnd})
	}
	return chunks
}

// findChunk returns the index into chunks whose range contains offset, or
// -1 if offset falls outside every stored chunk (requiring sequential
// decode).
func findChunk(chunks []chunkEntry, offset int64) int {
	i := sort.Search(len(chunks), func(i int) bool { return chunks[i].unpackedEnd > offset })
	if i < len(chunks) && chunks[i].unpackedStart <= offset {
		return i
	}
	return -1
}
