package rarstream

import "context"

// FilePartInfo describes one volume-local fragment of a file, adapted from
// the teacher's FilePartInfo to report a fragment directly rather than a
// bespoke snapshot struct.
type FilePartInfo struct {
	Path         string `json:"path"`
	DataOffset   int64  `json:"dataOffset"`
	PackedSize   int64  `json:"packedSize"`
	UnpackedSize int64  `json:"unpackedSize"`
	Stored       bool   `json:"stored"`
	Encrypted    bool   `json:"encrypted"`
}

// ArchiveFileInfo describes one complete file and its volume parts,
// without decoding anything — useful for planning reads (e.g. altmount's
// FUSE layer deciding which volumes a byte range touches) before opening a
// decoder.
type ArchiveFileInfo struct {
	Name              string         `json:"name"`
	TotalPackedSize   int64          `json:"totalPackedSize"`
	TotalUnpackedSize int64          `json:"totalUnpackedSize"`
	Parts             []FilePartInfo `json:"parts"`
	AnyEncrypted      bool           `json:"anyEncrypted"`
	AllStored         bool           `json:"allStored"`
}

func infoFromFiles(files []*InnerFile) []ArchiveFileInfo {
	out := make([]ArchiveFileInfo, 0, len(files))
	for _, f := range files {
		if f.isDir || len(f.fragments) == 0 {
			continue
		}
		info := ArchiveFileInfo{
			Name:              f.name,
			TotalUnpackedSize: f.unpackedLength,
			AllStored:         true,
			Parts:             make([]FilePartInfo, 0, len(f.fragments)),
		}
		for i, fr := range f.fragments {
			path := ""
			if f.vs != nil {
				path = f.vs.GetVolumePath(fr.volumeIndex)
			}
			stored := fr.method == methodStore
			info.Parts = append(info.Parts, FilePartInfo{
				Path:         path,
				DataOffset:   fr.dataOffset,
				PackedSize:   fr.dataLength,
				UnpackedSize: fr.totalUnpackedSize,
				Stored:       stored,
				Encrypted:    fr.encrypted,
			})
			info.TotalPackedSize += fr.dataLength
			if !stored {
				info.AllStored = false
			}
			if fr.encrypted {
				info.AnyEncrypted = true
			}
			_ = i
		}
		out = append(out, info)
	}
	return out
}

// ListArchiveInfo opens vols, scans their headers, and reports each file's
// volume layout without decoding any packed data.
func ListArchiveInfo(vols []VolumeSource, opts ...Option) ([]ArchiveFileInfo, error) {
	a, err := OpenArchive(vols, opts...)
	if err != nil {
		return nil, err
	}
	return infoFromFiles(a.Files()), nil
}

// ListArchiveInfoParallel mirrors ListArchiveInfo but fetches volume
// headers concurrently, bounded by WithConcurrency (default 4). The result
// is identical to ListArchiveInfo once assembled, since fragment order is
// always restored from volume order regardless of the scan's concurrency.
func ListArchiveInfoParallel(ctx context.Context, vols []VolumeSource, opts ...Option) ([]ArchiveFileInfo, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	vs, err := newVolumeSet(vols)
	if err != nil {
		return nil, err
	}

	sc := newScanner(vs)
	frags, err := sc.ScanParallel(ctx, o.concurrency)
	if err != nil {
		return nil, err
	}

	m := newManifest(frags)
	a := &Archive{vs: vs, opts: o, files: m.files, byName: m.byName}
	a.wireSolidRuns()
	return infoFromFiles(a.Files()), nil
}
