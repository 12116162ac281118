package keywords

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func dumpFixture(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	kws := []*Keyword{
		{
			Name:     "rnd",
			HelpFile: "rnd.htm",
			Overloads: []Overload{{
				Plugin: "DBProCore.dll", Symbol: "?Rnd@@YAHH@Z",
				Args: []Arg{{TypeInteger, "range"}}, HasReturn: true, ReturnType: TypeInteger,
			}},
		},
		{Name: "cls", Overloads: []Overload{{}}},
	}
	if err := ix.AddAll(kws); err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestDump_Names(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(&buf, dumpFixture(t), DumpNames); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "cls\nrnd\n"; got != want {
		t.Fatalf("names dump wrong. expected=%q, got=%q", want, got)
	}
}

func TestDump_INI(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(&buf, dumpFixture(t), DumpINI); err != nil {
		t.Fatal(err)
	}
	want := "[cls]\n" +
		"overload0=\n" +
		"\n" +
		"[rnd]\n" +
		"help=rnd.htm\n" +
		"overload0=(range as integer) as integer -> DBProCore.dll!?Rnd@@YAHH@Z\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("ini dump mismatch (-want +got):\n%s", diff)
	}
}

func TestDump_StructuredFormatsDecodeBack(t *testing.T) {
	ix := dumpFixture(t)

	var jbuf bytes.Buffer
	if err := Dump(&jbuf, ix, DumpJSON); err != nil {
		t.Fatal(err)
	}
	var fromJSON []*Keyword
	if err := json.Unmarshal(jbuf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(ix.Keywords(), fromJSON); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}

	var ybuf bytes.Buffer
	if err := Dump(&ybuf, ix, DumpYAML); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ybuf.String(), "return_type: integer") {
		t.Fatalf("expected type names in yaml output, got:\n%s", ybuf.String())
	}
	var fromYAML []*Keyword
	if err := yaml.Unmarshal(ybuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(fromYAML) != 2 || fromYAML[1].Overloads[0].ReturnType != TypeInteger {
		t.Fatalf("yaml did not decode back, got %+v", fromYAML)
	}
}

func TestDump_UnknownFormat(t *testing.T) {
	if err := Dump(&bytes.Buffer{}, NewIndex(), DumpFormat("xml")); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}
