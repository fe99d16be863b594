package rarstream

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// RarFS adapts an *Archive to io/fs.FS, grounded on the teacher's own
// fs.go, so an opened archive can be mounted wherever Go code expects a
// standard filesystem (altmount's FUSE layer is exactly such a consumer).
type RarFS struct {
	a     *Archive
	byDir map[string][]string // directory path -> child names, built once
}

// NewRarFS wraps an already-opened Archive.
func NewRarFS(a *Archive) *RarFS {
	rfs := &RarFS{a: a, byDir: map[string][]string{}}
	seen := map[string]bool{}
	addDir := func(dir string) {
		for {
			if dir == "." || seen[dir] {
				if dir != "." {
					return
				}
			}
			parent := path.Dir(dir)
			name := path.Base(dir)
			if !seen[dir] {
				rfs.byDir[parent] = append(rfs.byDir[parent], name)
				seen[dir] = true
			}
			if dir == "." {
				return
			}
			dir = parent
		}
	}
	for _, f := range a.Files() {
		clean := path.Clean(strings.ReplaceAll(f.Name(), "\\", "/"))
		dir := path.Dir(clean)
		base := path.Base(clean)
		addDir(dir)
		key := dir
		rfs.byDir[key] = append(rfs.byDir[key], base)
	}
	for k := range rfs.byDir {
		sort.Strings(rfs.byDir[k])
	}
	return rfs
}

type fsFileInfo struct {
	name  string
	size  int64
	dir   bool
	mtime time.Time
}

func (fi fsFileInfo) Name() string       { return fi.name }
func (fi fsFileInfo) Size() int64        { return fi.size }
func (fi fsFileInfo) Mode() fs.FileMode  {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (fi fsFileInfo) ModTime() time.Time { return fi.mtime }
func (fi fsFileInfo) IsDir() bool        { return fi.dir }
func (fi fsFileInfo) Sys() any           { return nil }

type fsDirEntry struct{ fsFileInfo }

func (d fsDirEntry) Type() fs.FileMode          { return d.fsFileInfo.Mode().Type() }
func (d fsDirEntry) Info() (fs.FileInfo, error) { return d.fsFileInfo, nil }

type openRarFile struct {
	info fsFileInfo
	r    io.Reader
	rc   io.Closer
}

func (o *openRarFile) Stat() (fs.FileInfo, error) { return o.info, nil }
func (o *openRarFile) Read(p []byte) (int, error) {
	if o.r == nil {
		return 0, io.EOF
	}
	return o.r.Read(p)
}
func (o *openRarFile) Close() error {
	if o.rc != nil {
		return o.rc.Close()
	}
	return nil
}

func (r *RarFS) clean(name string) string {
	if name == "" {
		return "."
	}
	return path.Clean(name)
}

// Open implements fs.FS.
func (r *RarFS) Open(name string) (fs.File, error) {
	name = r.clean(name)
	if _, ok := r.byDir[name]; ok {
		return &openRarFile{info: fsFileInfo{name: path.Base(name), dir: true}}, nil
	}

	f, ok := r.a.byName[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if f.IsDir() {
		return &openRarFile{info: fsFileInfo{name: path.Base(name), dir: true, mtime: f.ModTime()}}, nil
	}
	rr, err := f.Read(0, f.UnpackedLength()-1)
	if err != nil {
		if f.UnpackedLength() == 0 {
			return &openRarFile{info: fsFileInfo{name: path.Base(name), size: 0, mtime: f.ModTime()}, r: bytes.NewReader(nil)}, nil
		}
		return nil, err
	}
	return &openRarFile{info: fsFileInfo{name: path.Base(name), size: f.UnpackedLength(), mtime: f.ModTime()}, r: rr, rc: rr}, nil
}

// ReadDir implements fs.ReadDirFS.
func (r *RarFS) ReadDir(name string) ([]fs.DirEntry, error) {
	name = r.clean(name)
	children, ok := r.byDir[name]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]fs.DirEntry, 0, len(children))
	for _, c := range children {
		full := path.Join(name, c)
		if _, isDir := r.byDir[full]; isDir {
			out = append(out, fsDirEntry{fsFileInfo{name: c, dir: true}})
			continue
		}
		if f, ok := r.a.byName[full]; ok {
			out = append(out, fsDirEntry{fsFileInfo{name: c, size: f.UnpackedLength(), mtime: f.ModTime()}})
		}
	}
	return out, nil
}

// ReadFile implements fs.ReadFileFS.
func (r *RarFS) ReadFile(name string) ([]byte, error) {
	f, ok := r.a.byName[r.clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	if f.UnpackedLength() == 0 {
		return nil, nil
	}
	rr, err := f.Read(0, f.UnpackedLength()-1)
	if err != nil {
		return nil, err
	}
	defer rr.Close()
	return io.ReadAll(rr)
}

// Stat implements fs.StatFS.
func (r *RarFS) Stat(name string) (fs.FileInfo, error) {
	name = r.clean(name)
	if _, ok := r.byDir[name]; ok {
		return fsFileInfo{name: path.Base(name), dir: true}, nil
	}
	f, ok := r.a.byName[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return fsFileInfo{name: path.Base(name), size: f.UnpackedLength(), dir: f.IsDir(), mtime: f.ModTime()}, nil
}
