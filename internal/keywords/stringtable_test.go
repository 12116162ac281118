package keywords

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseStringTable(t *testing.T) {
	entries := []string{
		"MAKE OBJECT CUBE%LF%?MakeCube@@YAXHM@Z%Object Number,Size",
		"OBJECT POSITION X[%FL%?GetXPosition@@YAKH@Z%Object Number",
		"SYNC%0%?Sync@@YAXXZ",
		"SYNC%L%?SyncMode@@YAXH@Z%Mode",
		"TIMER[%L%?Timer@@YAHXZ",
		"garbage",
	}

	kws, err := ParseStringTable("DBProBasic3DDebug.dll", entries, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []*Keyword{
		{
			Name: "make object cube",
			Overloads: []Overload{{
				Symbol: "?MakeCube@@YAXHM@Z",
				Plugin: "DBProBasic3DDebug.dll",
				Args:   []Arg{{TypeInteger, "Object Number"}, {TypeFloat, "Size"}},
			}},
		},
		{
			Name: "object position x",
			Overloads: []Overload{{
				Symbol:     "?GetXPosition@@YAKH@Z",
				Plugin:     "DBProBasic3DDebug.dll",
				Args:       []Arg{{TypeInteger, "Object Number"}},
				HasReturn:  true,
				ReturnType: TypeFloat,
			}},
		},
		{
			Name: "sync",
			Overloads: []Overload{
				{Symbol: "?Sync@@YAXXZ", Plugin: "DBProBasic3DDebug.dll"},
				{Symbol: "?SyncMode@@YAXH@Z", Plugin: "DBProBasic3DDebug.dll", Args: []Arg{{TypeInteger, "Mode"}}},
			},
		},
		{
			Name: "timer",
			Overloads: []Overload{{
				Symbol:     "?Timer@@YAHXZ",
				Plugin:     "DBProBasic3DDebug.dll",
				HasReturn:  true,
				ReturnType: TypeInteger,
			}},
		},
	}

	if diff := cmp.Diff(want, kws); diff != "" {
		t.Fatalf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStringTable_UnknownType(t *testing.T) {
	if _, err := ParseStringTable("x.dll", []string{"BAD%Z%?Bad@@YAXXZ"}, nil); err == nil {
		t.Fatalf("expected an error for unknown type char")
	}
	if _, err := ParseStringTable("x.dll", []string{"BAD[%%?Bad@@YAXXZ"}, nil); err == nil {
		t.Fatalf("expected an error for return marker without types")
	}
}

func TestIndex_BindsSpecOverloadToPlugin(t *testing.T) {
	spec, err := ParseSpecString("MAKE OBJECT CUBE=cube.htm=Object Number, Size")
	if err != nil {
		t.Fatal(err)
	}
	plugin, err := ParseStringTable("DBProBasic3DDebug.dll",
		[]string{"MAKE OBJECT CUBE%LF%?MakeCube@@YAXHM@Z"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ix := NewIndex()
	if err := ix.AddAll(spec); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddAll(plugin); err != nil {
		t.Fatal(err)
	}

	kw, ok := ix.Lookup("Make Object Cube")
	if !ok {
		t.Fatalf("keyword not found")
	}
	if len(kw.Overloads) != 1 {
		t.Fatalf("expected the plugin export to bind the spec overload, got %d overloads", len(kw.Overloads))
	}
	want := Overload{
		Symbol: "?MakeCube@@YAXHM@Z",
		Plugin: "DBProBasic3DDebug.dll",
		Args:   []Arg{{TypeInteger, "Object Number"}, {TypeFloat, "Size"}},
	}
	if diff := cmp.Diff(want, kw.Overloads[0]); diff != "" {
		t.Fatalf("overload mismatch (-want +got):\n%s", diff)
	}
	if kw.HelpFile != "cube.htm" {
		t.Fatalf("help file lost. got=%q", kw.HelpFile)
	}

	o, ok := kw.OverloadForArity(2)
	if !ok || !o.Bound() {
		t.Fatalf("expected a bound overload for arity 2")
	}
	if _, ok := kw.OverloadForArity(3); ok {
		t.Fatalf("expected no overload for arity 3")
	}
}

func TestIndex_ReturnMismatchOnMerge(t *testing.T) {
	ix := NewIndex()
	if err := ix.Add(&Keyword{Name: "rnd", Overloads: []Overload{{HasReturn: true}}}); err != nil {
		t.Fatal(err)
	}
	err := ix.Add(&Keyword{Name: "RND", Overloads: []Overload{{Args: []Arg{{Name: "x"}}}}})
	if err == nil {
		t.Fatalf("expected ErrReturnMismatch")
	}
}

func TestIndex_NamesAndPlugins(t *testing.T) {
	ix := NewIndex()
	for _, kw := range []*Keyword{
		{Name: "print", Overloads: []Overload{{Plugin: "DBProTextDebug.dll", Symbol: "p"}}},
		{Name: "Make Object", Overloads: []Overload{{Plugin: "DBProBasic3DDebug.dll", Symbol: "m"}}},
		{Name: "cls"},
	} {
		if err := ix.Add(kw); err != nil {
			t.Fatal(err)
		}
	}

	if diff := cmp.Diff([]string{"cls", "Make Object", "print"}, ix.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"DBProBasic3DDebug.dll", "DBProTextDebug.dll"}, ix.Plugins()); diff != "" {
		t.Fatalf("plugins mismatch (-want +got):\n%s", diff)
	}
	if n, ok := ix.LongestMatch("make object 1"); !ok || n != len("make object") {
		t.Fatalf("expected match of %d, got (%d, %v)", len("make object"), n, ok)
	}
}
