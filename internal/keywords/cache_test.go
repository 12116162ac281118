package keywords

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCache_RoundTripAndInvalidation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cmds.ini")
	if err := os.WriteFile(src, []byte("PRINT=print.htm=text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}

	c, err := OpenCache(filepath.Join(dir, "keywords.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()

	if _, err := c.Get(src, info); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected a miss on an empty cache, got %v", err)
	}

	kws := []*Keyword{{
		Name:     "PRINT",
		HelpFile: "print.htm",
		Overloads: []Overload{{
			Plugin: "DBProTextDebug.dll",
			Symbol: "?Print@@YAXK@Z",
			Args:   []Arg{{TypeString, "text"}},
		}},
	}}
	if err := c.Put(src, info, kws); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(src, info)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(kws, got); diff != "" {
		t.Fatalf("cached keywords mismatch (-want +got):\n%s", diff)
	}
	if n, err := c.Len(); err != nil || n != 1 {
		t.Fatalf("expected 1 cached file, got (%d, %v)", n, err)
	}

	later := info.ModTime().Add(time.Minute)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}
	info, _ = os.Stat(src)
	if _, err := c.Get(src, info); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected a miss after modification, got %v", err)
	}
}

func TestLoader_UsesCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cmds.ini")
	if err := os.WriteFile(src, []byte("CLS=cls.htm=*no parameters*\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := OpenCache(filepath.Join(dir, "keywords.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	first := NewLoader(NewIndex(), nil)
	first.Cache = c
	if err := first.LoadFile(src); err != nil {
		t.Fatalf("first load: %v", err)
	}

	second := NewLoader(NewIndex(), nil)
	second.Cache = c
	if err := second.LoadFile(src); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if _, ok := second.Index.Lookup("cls"); !ok {
		t.Fatalf("expected cls to be loaded from the cache")
	}
}

func TestLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "extra")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.ini"):   "CLS=cls.htm=*no parameters*\n",
		filepath.Join(dir, "notes.md"): "not a keyword file",
		filepath.Join(sub, "b.txt"):   "SYNC=sync.htm=*no parameters*\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	flat := NewLoader(NewIndex(), nil)
	if err := flat.LoadDir(dir, false); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if diff := cmp.Diff([]string{"CLS"}, flat.Index.Names()); diff != "" {
		t.Fatalf("non-recursive names mismatch (-want +got):\n%s", diff)
	}

	deep := NewLoader(NewIndex(), nil)
	if err := deep.LoadPaths([]string{dir}, true); err != nil {
		t.Fatalf("LoadPaths: %v", err)
	}
	if diff := cmp.Diff([]string{"CLS", "SYNC"}, deep.Index.Names()); diff != "" {
		t.Fatalf("recursive names mismatch (-want +got):\n%s", diff)
	}
}
