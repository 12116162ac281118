package keywords

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/google/go-cmp/cmp"
)

type rsrcBuilder struct {
	buf []byte
}

func (b *rsrcBuilder) u16(v uint16) {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
}

func (b *rsrcBuilder) u32(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

// dir writes a directory header holding a single id entry.
func (b *rsrcBuilder) dir(id, target uint32) {
	b.u32(0) // characteristics
	b.u32(0) // timestamp
	b.u16(0) // major
	b.u16(0) // minor
	b.u16(0) // named entries
	b.u16(1) // id entries
	b.u32(id)
	b.u32(target)
}

func stringBlock(strs map[int]string) []byte {
	var b rsrcBuilder
	for i := 0; i < stringsPerBlock; i++ {
		units := utf16.Encode([]rune(strs[i]))
		b.u16(uint16(len(units)))
		for _, u := range units {
			b.u16(u)
		}
	}
	return b.buf
}

func buildStringRsrc(rva uint32, payload []byte) []byte {
	var b rsrcBuilder
	b.dir(rtString, resSubdirFlag|24)
	b.dir(1, resSubdirFlag|48)
	b.dir(0x409, 72)
	b.u32(rva + 88)
	b.u32(uint32(len(payload)))
	b.u32(0)
	b.u32(0)
	b.buf = append(b.buf, payload...)
	return b.buf
}

func TestParseStringResources(t *testing.T) {
	const rva = 0x5000
	payload := stringBlock(map[int]string{
		1: "PRINT%S%?Print@@YAXK@Z%Text",
		2: "CLS%0%?Cls@@YAXXZ",
		4: "UNREACHABLE%0%?X@@YAXXZ",
	})

	strs, err := parseStringResources(buildStringRsrc(rva, payload), rva)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"PRINT%S%?Print@@YAXK@Z%Text",
		"CLS%0%?Cls@@YAXXZ",
	}
	if diff := cmp.Diff(want, orderedStrings(strs)); diff != "" {
		t.Fatalf("strings mismatch (-want +got):\n%s", diff)
	}
	if strs[4] != "UNREACHABLE%0%?X@@YAXXZ" {
		t.Fatalf("expected id 4 to be decoded, got %q", strs[4])
	}
}

func TestParseStringResources_Truncated(t *testing.T) {
	const rva = 0x5000
	data := buildStringRsrc(rva, stringBlock(map[int]string{1: "PRINT%S%p"}))
	if _, err := parseStringResources(data[:80], rva); err == nil {
		t.Fatalf("expected an error for a truncated section")
	}
}
