package ot

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOpValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      Op
		wantErr bool
	}{
		{"valid retain", Retain(5), false},
		{"valid delete", Delete(1), false},
		{"valid insert", Insert("x"), false},
		{"zero retain", Retain(0), true},
		{"negative delete", Delete(-2), true},
		{"empty insert", Insert(""), true},
		{"unknown kind", Op{Kind: "replace", Length: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseLen(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
		want int
	}{
		{"retain only", Sequence{Retain(5)}, 5},
		{"insert only", Sequence{Insert("hi")}, 0},
		{"delete only", Sequence{Delete(3)}, 3},
		{"mixed", Sequence{Retain(2), Insert("x"), Delete(1), Retain(3)}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seq.BaseLen(); got != tt.want {
				t.Errorf("BaseLen() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTargetLen(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
		want int
	}{
		{"retain only", Sequence{Retain(5)}, 5},
		{"insert only", Sequence{Insert("hi")}, 2},
		{"delete only", Sequence{Delete(3)}, 0},
		{"mixed", Sequence{Retain(2), Insert("x"), Delete(1), Retain(3)}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seq.TargetLen(); got != tt.want {
				t.Errorf("TargetLen() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsNoop(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
		want bool
	}{
		{"empty", Sequence{}, true},
		{"retain only", Sequence{Retain(5)}, true},
		{"has insert", Sequence{Retain(2), Insert("x")}, false},
		{"has delete", Sequence{Delete(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seq.IsNoop(); got != tt.want {
				t.Errorf("IsNoop() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		seq     Sequence
		want    string
		wantErr bool
	}{
		{
			"hello universe",
			"Hello World",
			Sequence{Retain(5), Delete(6), Insert(" Universe")},
			"Hello Universe",
			false,
		},
		{
			"insert into empty",
			"",
			Sequence{Insert("hi")},
			"hi",
			false,
		},
		{
			"implicit trailing retain",
			"abcdef",
			Sequence{Retain(1), Insert("X")},
			"aXbcdef",
			false,
		},
		{
			"delete everything",
			"abc",
			Sequence{Delete(3)},
			"",
			false,
		},
		{
			"empty sequence keeps source",
			"hello",
			Sequence{},
			"hello",
			false,
		},
		{
			"retain past end",
			"Hi",
			Sequence{Retain(10)},
			"",
			true,
		},
		{
			"delete past end",
			"Hi",
			Sequence{Retain(1), Delete(5)},
			"",
			true,
		},
		{
			"multi-byte content",
			"héllo",
			Sequence{Retain(1), Delete(2), Insert("e")},
			"hello",
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.seq.Apply(tt.source)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var oor *OutOfRangeError
				if !errors.As(err, &oor) {
					t.Fatalf("error %v is not *OutOfRangeError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyErrorsBeforePartialOutput(t *testing.T) {
	// The overrun is detected before the offending operation produces
	// output, and the error names the cursor state.
	_, err := Sequence{Retain(2), Retain(10)}.Apply("abcd")
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected *OutOfRangeError, got %v", err)
	}
	if oor.Cursor != 2 || oor.SourceLen != 4 {
		t.Errorf("cursor=%d sourceLen=%d, want 2 and 4", oor.Cursor, oor.SourceLen)
	}
}

func TestOpJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		wire string
	}{
		{"retain", Retain(7), `{"operation":"retain","length":7}`},
		{"delete", Delete(2), `{"operation":"delete","length":2}`},
		{"insert", Insert("abc\ndef"), `{"operation":"insert","content":"abc\ndef"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.op)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.wire {
				t.Errorf("wire = %s, want %s", data, tt.wire)
			}
			var back Op
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.op {
				t.Errorf("round trip = %+v, want %+v", back, tt.op)
			}
		})
	}
}

func TestOpJSONRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"unknown operation", `{"operation":"replace","length":1}`},
		{"retain without length", `{"operation":"retain"}`},
		{"negative delete", `{"operation":"delete","length":-1}`},
		{"insert without content", `{"operation":"insert"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var op Op
			if err := json.Unmarshal([]byte(tt.wire), &op); err == nil {
				t.Errorf("expected error for %s", tt.wire)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
		want Sequence
	}{
		{"empty", Sequence{}, nil},
		{
			"adjacent retains",
			Sequence{Retain(2), Retain(3)},
			Sequence{Retain(5)},
		},
		{
			"adjacent inserts and deletes",
			Sequence{Insert("ab"), Insert("c"), Delete(1), Delete(2)},
			Sequence{Insert("abc"), Delete(3)},
		},
		{
			"mixed kinds stay put",
			Sequence{Retain(1), Insert("x"), Retain(2)},
			Sequence{Retain(1), Insert("x"), Retain(2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.seq.Merge()
			if len(got) != len(tt.want) {
				t.Fatalf("Merge() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Merge()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	seq := Sequence{Insert("a"), Insert("b")}
	seq.Merge()
	if seq[0].Content != "a" || seq[1].Content != "b" {
		t.Errorf("input mutated: %v", seq)
	}
}

func TestMergePreservesApplyResult(t *testing.T) {
	source := "hello world"
	seq := Sequence{Retain(2), Retain(3), Delete(1), Insert("-"), Insert("-"), Retain(5)}
	want, err := seq.Apply(source)
	if err != nil {
		t.Fatal(err)
	}
	got, err := seq.Merge().Apply(source)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("merged apply = %q, want %q", got, want)
	}
}
