package rarstream

import (
	"errors"
	"io"
	"io/fs"
	"testing"
)

func openTestArchive(t *testing.T, files map[string][]byte, order []string) *Archive {
	t.Helper()
	raw := buildSyntheticRar5Archive(files, order)
	vol := &memVolume{name: "single.rar", data: raw}
	a, err := OpenArchive([]VolumeSource{vol})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRarFSReadFile(t *testing.T) {
	a := openTestArchive(t, map[string][]byte{
		"dir/sub/file.txt": []byte("nested content"),
	}, []string{"dir/sub/file.txt"})
	rfs := NewRarFS(a)

	got, err := rfs.ReadFile("dir/sub/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "nested content" {
		t.Fatalf("got %q", got)
	}
}

func TestRarFSReadDirListsChildren(t *testing.T) {
	a := openTestArchive(t, map[string][]byte{
		"dir/a.txt": []byte("a"),
		"dir/b.txt": []byte("b"),
	}, []string{"dir/a.txt", "dir/b.txt"})
	rfs := NewRarFS(a)

	entries, err := rfs.ReadDir("dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name() != "a.txt" || entries[1].Name() != "b.txt" {
		t.Fatalf("entries = %q, %q", entries[0].Name(), entries[1].Name())
	}
}

func TestRarFSOpenAndRead(t *testing.T) {
	a := openTestArchive(t, map[string][]byte{
		"top.txt": []byte("top level"),
	}, []string{"top.txt"})
	rfs := NewRarFS(a)

	f, err := rfs.Open("top.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "top level" {
		t.Fatalf("got %q", got)
	}
}

func TestRarFSOpenMissingReturnsNotExist(t *testing.T) {
	a := openTestArchive(t, map[string][]byte{
		"a.txt": []byte("x"),
	}, []string{"a.txt"})
	rfs := NewRarFS(a)

	_, err := rfs.Open("missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestRarFSStatDirectory(t *testing.T) {
	a := openTestArchive(t, map[string][]byte{
		"dir/a.txt": []byte("a"),
	}, []string{"dir/a.txt"})
	rfs := NewRarFS(a)

	info, err := rfs.Stat("dir")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("Stat(\"dir\").IsDir() = false, want true")
	}
}
