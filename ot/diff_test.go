package ot

import (
	"math/rand"
	"testing"
)

func TestDiffIdentity(t *testing.T) {
	seq := Diff("hello", "hello")
	if len(seq) != 1 || seq[0] != Retain(5) {
		t.Errorf("Diff(a, a) = %v, want [retain(5)]", seq)
	}

	if seq := Diff("", ""); len(seq) != 0 {
		t.Errorf("Diff(\"\", \"\") = %v, want empty", seq)
	}
}

func TestDiffEmission(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     Sequence
	}{
		{
			"append",
			"add 1", "add 1\nadd 2",
			Sequence{Retain(5), Insert("\nadd 2")},
		},
		{
			"prepend",
			"world", "hello world",
			Sequence{Insert("hello "), Retain(5)},
		},
		{
			"replace middle",
			"Hello World", "Hello Universe",
			Sequence{Retain(6), Delete(5), Insert("Universe")},
		},
		{
			"delete middle",
			"abcdef", "abef",
			Sequence{Retain(2), Delete(2), Retain(2)},
		},
		{
			"everything changes",
			"abc", "xyz",
			Sequence{Delete(3), Insert("xyz")},
		},
		{
			"from empty",
			"", "abc",
			Sequence{Insert("abc")},
		},
		{
			"to empty",
			"abc", "",
			Sequence{Delete(3)},
		},
		{
			"repeated run keeps prefix anchor",
			"aa", "aaa",
			Sequence{Retain(2), Insert("a")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if len(got) != len(tt.want) {
				t.Fatalf("Diff() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Diff()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiffSuffixNeverOverlapsPrefix(t *testing.T) {
	// "aaa" -> "aa": prefix consumes both bytes of the new text, so the
	// suffix window must be empty even though the texts share a suffix.
	got := Diff("aaa", "aa")
	want := Sequence{Retain(2), Delete(1)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Diff(aaa, aa) = %v, want %v", got, want)
	}
}

func verifyRoundTrip(t *testing.T, old, new string) {
	t.Helper()
	seq := Diff(old, new)
	got, err := seq.Apply(old)
	if err != nil {
		t.Fatalf("Diff(%q, %q).Apply failed: %v (seq=%v)", old, new, err, seq)
	}
	if got != new {
		t.Errorf("Diff(%q, %q).Apply = %q, want %q (seq=%v)", old, new, got, new, seq)
	}
}

func TestDiffRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"", "a"},
		{"a", ""},
		{"hello", "hello"},
		{"hello world", "hello brave world"},
		{"the quick brown fox", "the slow brown fox"},
		{"aaaa", "aa"},
		{"héllo wörld", "héllo world"},
		{"日本語のテキスト", "日本語の長いテキスト"},
		{"line1\nline2", "line1\nline1.5\nline2"},
		{"\r\nmixed\rendings", "\nmixed\nendings\n"},
	}
	for _, p := range pairs {
		verifyRoundTrip(t, p[0], p[1])
	}
}

func TestDiffRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []rune("abc \nxé日")

	randomText := func(maxLen int) string {
		n := r.Intn(maxLen)
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(runes)
	}

	for i := 0; i < 500; i++ {
		old := randomText(40)
		new := randomText(40)
		verifyRoundTrip(t, old, new)
	}
}

func TestDiffAtCursor(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		cursor   int
		want     Sequence
	}{
		{
			// Plain Diff would emit retain(2) insert("a"); the cursor says
			// the new character was typed at offset 1.
			"insert in repeated run",
			"aa", "aaa", 2,
			Sequence{Retain(1), Insert("a"), Retain(1)},
		},
		{
			"backspace in repeated run",
			"aaa", "aa", 1,
			Sequence{Retain(1), Delete(1), Retain(1)},
		},
		{
			"typing at end",
			"hell", "hello", 5,
			Sequence{Retain(4), Insert("o")},
		},
		{
			"cursor does not explain edit, falls back",
			"abc", "xyz", 1,
			Sequence{Delete(3), Insert("xyz")},
		},
		{
			"cursor out of range, falls back",
			"aa", "aaa", 99,
			Sequence{Retain(2), Insert("a")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffAtCursor(tt.old, tt.new, tt.cursor)
			if len(got) != len(tt.want) {
				t.Fatalf("DiffAtCursor() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DiffAtCursor()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
			// The hint may change the decomposition, never the result.
			applied, err := got.Apply(tt.old)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if applied != tt.new {
				t.Errorf("apply = %q, want %q", applied, tt.new)
			}
		})
	}
}
