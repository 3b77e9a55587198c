package fsutil

import (
	"io"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateAndOpen(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "plots", "r1")

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "align.png")
	w, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("png")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("expected %q, got %q", "png", data)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/read.html")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("<html>"))

	data, err := mfs.ReadFile("/out/read.html")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, _ = mfs.ReadFile("/out/read.html")
	if string(data) != "<html>" {
		t.Errorf("expected %q, got %q", "<html>", data)
	}

	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("expected error writing after Close")
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("reads.tsv", []byte("r1\t1,2,3\n"))

	r, err := mfs.Open("./reads.tsv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "r1\t1,2,3\n" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := mfs.Open("missing.tsv"); err == nil {
		t.Error("expected error opening missing file")
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
	if mfs.Exists("/a/b/d") {
		t.Error("expected /a/b/d to not exist")
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("abc")
	mfs.WriteFile("f", src)
	src[0] = 'x'

	data, _ := mfs.ReadFile("f")
	if string(data) != "abc" {
		t.Errorf("stored data changed with caller slice: %q", data)
	}
	data[1] = 'y'
	again, _ := mfs.ReadFile("f")
	if string(again) != "abc" {
		t.Errorf("stored data changed with returned slice: %q", again)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("b.png", nil)
	mfs.WriteFile("a.png", nil)

	got := mfs.Files()
	if len(got) != 2 || got[0] != "a.png" || got[1] != "b.png" {
		t.Errorf("unexpected files %v", got)
	}
}
