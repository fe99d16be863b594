package rarstream

import (
	"io"
	"os"
)

// fileVolumeSource is the reference VolumeSource implementation backing
// cmd/rarcat: one volume per local file, range reads served via
// io.NewSectionReader. Library callers with a different transport (HTTP
// range requests, usenet article sets) implement VolumeSource directly
// instead of using this type.
type fileVolumeSource struct {
	path string
	f    *os.File
	size int64
}

// OpenFileVolume opens path and returns a VolumeSource over it. The caller
// is responsible for closing the returned source's underlying file once the
// archive is no longer needed, by calling its Close method.
func OpenFileVolume(path string) (*fileVolumeSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileVolumeSource{path: path, f: f, size: st.Size()}, nil
}

func (v *fileVolumeSource) Name() string   { return v.path }
func (v *fileVolumeSource) Length() int64  { return v.size }
func (v *fileVolumeSource) Close() error   { return v.f.Close() }

func (v *fileVolumeSource) ReadRange(start, endInclusive int64) (io.ReadCloser, error) {
	if start < 0 || endInclusive < start-1 || endInclusive >= v.size {
		return nil, ErrRangeOutOfBounds
	}
	length := endInclusive - start + 1
	return io.NopCloser(io.NewSectionReader(v.f, start, length)), nil
}
