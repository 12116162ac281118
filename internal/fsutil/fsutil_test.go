package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMapReadsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.dba")
	want := "print \"hello\"\n"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Map(path)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if got := string(m.Bytes()); got != want {
		t.Fatalf("contents wrong. expected=%q, got=%q", want, got)
	}
	if m.Path() != path {
		t.Fatalf("path wrong. expected=%q, got=%q", path, m.Path())
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMapEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dba")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty contents, got %q", data)
	}
}

func TestMapErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Map(filepath.Join(dir, "missing.dba")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if _, err := Map(dir); err == nil {
		t.Fatalf("expected an error for a directory")
	}
}
