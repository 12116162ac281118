package keywords

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/fsutil"
)

// Loader fills an Index from keyword spec files and plugin libraries.
type Loader struct {
	Index  *Index
	Cache  *Cache // optional
	Logger *slog.Logger
}

// NewLoader returns a loader targeting ix.
func NewLoader(ix *Index, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{Index: ix, Logger: logger}
}

// IsKeywordFile reports whether path looks like something LoadFile accepts.
func IsKeywordFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".txt", ".kw", ".dll":
		return true
	}
	return false
}

// LoadFile loads one spec file (.ini/.txt/.kw) or plugin (.dll).
func (l *Loader) LoadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if l.Cache != nil {
		kws, err := l.Cache.Get(path, info)
		switch {
		case err == nil:
			l.Logger.Debug("keyword cache hit", slog.String("path", path), slog.Int("keywords", len(kws)))
			return l.Index.AddAll(kws)
		case !errors.Is(err, ErrCacheMiss):
			l.Logger.Warn("keyword cache read failed", slog.String("path", path), slog.Any("error", err))
		default:
			l.Logger.Debug("keyword cache miss", slog.String("path", path))
		}
	}

	kws, err := l.parseFile(path)
	if err != nil {
		return err
	}

	if l.Cache != nil {
		if err := l.Cache.Put(path, info, kws); err != nil {
			l.Logger.Warn("keyword cache write failed", slog.String("path", path), slog.Any("error", err))
		}
	}
	l.Logger.Debug("loaded keyword file", slog.String("path", path), slog.Int("keywords", len(kws)))
	return l.Index.AddAll(kws)
}

func (l *Loader) parseFile(path string) ([]*Keyword, error) {
	if strings.EqualFold(filepath.Ext(path), ".dll") {
		entries, err := ReadPluginStrings(path)
		if err != nil {
			return nil, err
		}
		return ParseStringTable(filepath.Base(path), entries, l.Logger)
	}

	m, err := fsutil.Map(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return ParseSpecBytes(m.Bytes(), path)
}

// LoadDir loads every keyword file in dir, descending into subdirectories
// when recursive is set.
func (l *Loader) LoadDir(dir string, recursive bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsKeywordFile(path) {
			return nil
		}
		if err := l.LoadFile(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		return nil
	})
}

// LoadPaths dispatches each path to LoadFile or LoadDir.
func (l *Loader) LoadPaths(paths []string, recursive bool) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = l.LoadDir(p, recursive)
		} else {
			err = l.LoadFile(p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
