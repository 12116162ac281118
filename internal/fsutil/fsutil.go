// Package fsutil maps source files and plugin libraries into memory.
package fsutil

import (
	"fmt"
	"os"
)

// MappedFile is a read-only view of a file's contents. The slice returned by
// Bytes is only valid until Close.
type MappedFile struct {
	path  string
	data  []byte
	unmap func([]byte) error
}

// Bytes returns the file contents.
func (m *MappedFile) Bytes() []byte {
	return m.data
}

// Path returns the path the file was opened from.
func (m *MappedFile) Path() string {
	return m.path
}

// Close releases the mapping. It is safe to call more than once.
func (m *MappedFile) Close() error {
	if m.unmap == nil {
		m.data = nil
		return nil
	}
	data, unmap := m.data, m.unmap
	m.data, m.unmap = nil, nil
	return unmap(data)
}

// Map opens path and maps it read-only.
func Map(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if info.Size() == 0 {
		return &MappedFile{path: path}, nil
	}

	data, unmap, err := mapFile(f, int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return &MappedFile{path: path, data: data, unmap: unmap}, nil
}

// ReadFile maps path, copies the contents out, and releases the mapping.
func ReadFile(path string) ([]byte, error) {
	m, err := Map(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return append([]byte(nil), m.Bytes()...), nil
}
