package keywords

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/odb-lang/odb-compiler/internal/fsutil"
)

const (
	rtString        = 6
	stringsPerBlock = 16
	resDirHeaderLen = 16
	resDirEntryLen  = 8
	resSubdirFlag   = 0x80000000
)

var errNoResources = errors.New("no .rsrc section")

// ReadPluginStrings maps a plugin DLL and returns its string table entries
// ordered by id, stopping at the first missing id the way LoadString
// enumeration does.
func ReadPluginStrings(path string) ([]string, error) {
	m, err := fsutil.Map(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	f, err := pe.NewFile(bytes.NewReader(m.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()

	strs, err := stringTableFromPE(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return orderedStrings(strs), nil
}

func stringTableFromPE(f *pe.File) (map[uint32]string, error) {
	sec := f.Section(".rsrc")
	if sec == nil {
		return nil, errNoResources
	}
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return parseStringResources(data, sec.VirtualAddress)
}

// orderedStrings returns ids 1, 2, … until the first absent or empty one.
func orderedStrings(strs map[uint32]string) []string {
	var out []string
	for id := uint32(1); ; id++ {
		s, ok := strs[id]
		if !ok || s == "" {
			return out
		}
		out = append(out, s)
	}
}

type resEntry struct {
	id     uint32
	offset uint32
	subdir bool
}

func readResDir(rsrc []byte, off uint32) ([]resEntry, error) {
	if int(off)+resDirHeaderLen > len(rsrc) {
		return nil, fmt.Errorf("resource directory at %#x out of range", off)
	}
	named := binary.LittleEndian.Uint16(rsrc[off+12:])
	ids := binary.LittleEndian.Uint16(rsrc[off+14:])
	n := int(named) + int(ids)

	entries := make([]resEntry, 0, n)
	base := int(off) + resDirHeaderLen
	for i := 0; i < n; i++ {
		p := base + i*resDirEntryLen
		if p+resDirEntryLen > len(rsrc) {
			return nil, fmt.Errorf("resource entry %d out of range", i)
		}
		name := binary.LittleEndian.Uint32(rsrc[p:])
		target := binary.LittleEndian.Uint32(rsrc[p+4:])
		entries = append(entries, resEntry{
			id:     name,
			offset: target &^ resSubdirFlag,
			subdir: target&resSubdirFlag != 0,
		})
	}
	return entries, nil
}

// parseStringResources walks type -> name -> language and decodes every
// RT_STRING block. Block N holds string ids (N-1)*16 .. (N-1)*16+15, each a
// uint16 length followed by that many UTF-16 code units.
func parseStringResources(rsrc []byte, sectionRVA uint32) (map[uint32]string, error) {
	types, err := readResDir(rsrc, 0)
	if err != nil {
		return nil, err
	}

	out := make(map[uint32]string)
	for _, t := range types {
		if t.id != rtString || !t.subdir {
			continue
		}
		blocks, err := readResDir(rsrc, t.offset)
		if err != nil {
			return nil, err
		}
		sort.Slice(blocks, func(i, j int) bool { return blocks[i].id < blocks[j].id })

		for _, b := range blocks {
			if !b.subdir {
				continue
			}
			langs, err := readResDir(rsrc, b.offset)
			if err != nil {
				return nil, err
			}
			if len(langs) == 0 || langs[0].subdir {
				continue
			}
			payload, err := resourceData(rsrc, langs[0].offset, sectionRVA)
			if err != nil {
				return nil, err
			}
			if err := decodeStringBlock(payload, (b.id-1)*stringsPerBlock, out); err != nil {
				return nil, fmt.Errorf("string block %d: %w", b.id, err)
			}
		}
	}
	return out, nil
}

func resourceData(rsrc []byte, entryOff, sectionRVA uint32) ([]byte, error) {
	if int(entryOff)+16 > len(rsrc) {
		return nil, fmt.Errorf("resource data entry at %#x out of range", entryOff)
	}
	rva := binary.LittleEndian.Uint32(rsrc[entryOff:])
	size := binary.LittleEndian.Uint32(rsrc[entryOff+4:])
	if rva < sectionRVA {
		return nil, fmt.Errorf("resource data rva %#x below section start %#x", rva, sectionRVA)
	}
	start := rva - sectionRVA
	if uint64(start)+uint64(size) > uint64(len(rsrc)) {
		return nil, fmt.Errorf("resource data [%#x, +%d) out of range", start, size)
	}
	return rsrc[start : start+size], nil
}

func decodeStringBlock(payload []byte, firstID uint32, out map[uint32]string) error {
	p := 0
	for i := uint32(0); i < stringsPerBlock && p+2 <= len(payload); i++ {
		n := int(binary.LittleEndian.Uint16(payload[p:]))
		p += 2
		if p+2*n > len(payload) {
			return fmt.Errorf("string %d overruns block", firstID+i)
		}
		units := make([]uint16, n)
		for j := range units {
			units[j] = binary.LittleEndian.Uint16(payload[p+2*j:])
		}
		p += 2 * n
		if n > 0 {
			out[firstID+i] = string(utf16.Decode(units))
		}
	}
	return nil
}
