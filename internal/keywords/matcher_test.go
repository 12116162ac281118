package keywords

import "testing"

var randomizeDB = []string{
	"projection matrix4",
	"randomize",
	"randomize matrix",
	"randomize mesh",
	"read",
}

func TestMatcher_LongestMatch(t *testing.T) {
	tests := []struct {
		name      string
		keywords  []string
		input     string
		wantLen   int
		wantFound bool
	}{
		{"empty db", nil, "randomize", 0, false},
		{"exact string", randomizeDB, "randomize", 9, true},
		{"trailing space", randomizeDB, "randomize ", 9, true},
		{"longer symbol", randomizeDB, "randomized", 9, false},
		{"longer string to shorter command", randomizeDB, "randomize timer", 9, true},
		{"multi-word exact", randomizeDB, "randomize matrix", 16, true},
		{"case insensitive", randomizeDB, "RaNdOmIzE MeSh 1", 14, true},
		{"shorter string to longer command", []string{"dec"}, "decalmax", 3, false},
		{
			"spaces and non-spaces",
			[]string{"DELETE OBJECT COLLISION BOX", "DELETE OBJECT", "DELETE OBJECTS"},
			"delete object 100",
			len("delete object"),
			true,
		},
		{
			"plural wins when complete",
			[]string{"DELETE OBJECT COLLISION BOX", "DELETE OBJECT", "DELETE OBJECTS"},
			"delete objects 1, 5",
			len("delete objects"),
			true,
		},
		{"suffix stops at boundary", []string{"str$", "str"}, "str$(5)", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.keywords)
			gotLen, gotFound := m.LongestMatch(tt.input)
			if gotFound != tt.wantFound {
				t.Fatalf("found wrong. expected=%v, got=%v", tt.wantFound, gotFound)
			}
			if gotLen != tt.wantLen {
				t.Fatalf("length wrong. expected=%d, got=%d", tt.wantLen, gotLen)
			}
		})
	}
}

func TestMatcher_LongestStatistics(t *testing.T) {
	m := NewMatcher(randomizeDB)
	if got := m.LongestKeywordLength(); got != len("projection matrix4") {
		t.Fatalf("longest length wrong. expected=%d, got=%d", len("projection matrix4"), got)
	}
	if got := m.LongestKeywordWordCount(); got != 2 {
		t.Fatalf("longest word count wrong. expected=2, got=%d", got)
	}
}

func TestMatcher_EveryKeywordMatchesItself(t *testing.T) {
	names := append([]string{"make object cube", "make object", "make"}, randomizeDB...)
	m := NewMatcher(names)
	for _, n := range names {
		got, ok := m.LongestMatch(n)
		if !ok || got != len(n) {
			t.Fatalf("%q: expected=(%d, true), got=(%d, %v)", n, len(n), got, ok)
		}
	}
}
