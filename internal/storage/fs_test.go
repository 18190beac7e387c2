package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

var pngBytes = []byte("\x89PNG\r\n\x1a\nrest")

func readAll(t *testing.T, s *FS, key string) []byte {
	t.Helper()
	b, err := s.Open(key)
	if err != nil {
		t.Fatalf("Open(%s): %v", key, err)
	}
	defer b.Close()
	data, err := io.ReadAll(b)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestWriteAndOpen(t *testing.T) {
	s := tempStore(t)
	if err := s.Write(Key("s1", "shot.png"), pngBytes); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := readAll(t, s, "s1/shot.png"); string(got) != string(pngBytes) {
		t.Errorf("content mismatch: got %q", got)
	}

	b, err := s.Open("s1/shot.png")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Info.Size != int64(len(pngBytes)) || b.Info.Path != "s1/shot.png" || b.Info.UpdatedAt.IsZero() {
		t.Errorf("info = %+v", b.Info)
	}
}

func TestOpen_Missing(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Open("s1/none.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
	_ = s.Write("s1/a.png", pngBytes)
	if _, err := s.Open("s1"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("opening a dir: err = %v, want ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("s1/del.png", pngBytes)
	if err := s.Delete("s1/del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open("s1/del.png"); err == nil {
		t.Error("expected error opening deleted blob")
	}
}

func TestDeleteDir(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("s1/a.png", pngBytes)
	_ = s.Write("s1/b.png", pngBytes)
	_ = s.Write("s2/c.png", pngBytes)

	if err := s.DeleteDir("s1"); err != nil {
		t.Fatalf("DeleteDir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "s1")); !os.IsNotExist(err) {
		t.Errorf("s1 still present: %v", err)
	}
	readAll(t, s, "s2/c.png")

	if err := s.DeleteDir("missing"); err != nil {
		t.Errorf("DeleteDir on missing dir: %v", err)
	}
	for _, root := range []string{"", "."} {
		if err := s.DeleteDir(root); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("DeleteDir(%q) = %v, want ErrInvalidKey", root, err)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"s1/../../outside.png",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Open(p); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Open(%q) = %v, want ErrInvalidKey", p, err)
		}
		if err := s.Write(p, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Write(%q) = %v, want ErrInvalidKey", p, err)
		}
		if err := s.DeleteDir(p); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("DeleteDir(%q) = %v, want ErrInvalidKey", p, err)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("s1/atomic.png", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("s1/atomic.png", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := readAll(t, s, "s1/atomic.png"); string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, "s1", tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "blobs")
	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "glean-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
