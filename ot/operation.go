package ot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies an operation type.
type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Op is a single sequential edit instruction. It carries no position:
// application walks a cursor through the source text, so an Op only makes
// sense as part of a Sequence. Retain and Delete consume Length source
// bytes; Insert emits Content without consuming anything.
type Op struct {
	Kind    Kind
	Length  int    // retain/delete
	Content string // insert
}

// Retain keeps n bytes of the source text.
func Retain(n int) Op { return Op{Kind: KindRetain, Length: n} }

// Delete drops n bytes of the source text.
func Delete(n int) Op { return Op{Kind: KindDelete, Length: n} }

// Insert adds text at the cursor.
func Insert(s string) Op { return Op{Kind: KindInsert, Content: s} }

// Validate reports whether the operation is well formed: a known kind,
// positive length for retain/delete, non-empty content for insert.
func (o Op) Validate() error {
	switch o.Kind {
	case KindRetain:
		if o.Length <= 0 {
			return fmt.Errorf("retain requires positive length, got %d", o.Length)
		}
	case KindDelete:
		if o.Length <= 0 {
			return fmt.Errorf("delete requires positive length, got %d", o.Length)
		}
	case KindInsert:
		if o.Content == "" {
			return fmt.Errorf("insert requires non-empty content")
		}
	default:
		return fmt.Errorf("unsupported operation %q", string(o.Kind))
	}
	return nil
}

// wireOp is the transport record for an Op.
type wireOp struct {
	Operation string `json:"operation"`
	Length    int    `json:"length,omitempty"`
	Content   string `json:"content,omitempty"`
}

// MarshalJSON encodes the operation as its transport record:
// {"operation": "retain"|"insert"|"delete", "length"?, "content"?}.
func (o Op) MarshalJSON() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	w := wireOp{Operation: string(o.Kind)}
	if o.Kind == KindInsert {
		w.Content = o.Content
	} else {
		w.Length = o.Length
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates a transport record. Malformed records
// fail here, so a decoded Op is always well formed.
func (o *Op) UnmarshalJSON(data []byte) error {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	dec := Op{Kind: Kind(w.Operation), Length: w.Length, Content: w.Content}
	if err := dec.Validate(); err != nil {
		return err
	}
	// Retain/delete never carry content, insert never a length.
	if dec.Kind == KindInsert {
		dec.Length = 0
	} else {
		dec.Content = ""
	}
	*o = dec
	return nil
}

func (o Op) String() string {
	if o.Kind == KindInsert {
		return fmt.Sprintf("insert(%q)", o.Content)
	}
	return fmt.Sprintf("%s(%d)", string(o.Kind), o.Length)
}

// Sequence is an ordered list of operations describing a complete transform
// of one text into another. Operations are applied left to right, advancing
// a cursor through the source text.
type Sequence []Op

// BaseLen returns the number of source bytes the sequence consumes. The
// source may be longer: anything past BaseLen is implicitly retained.
func (s Sequence) BaseLen() int {
	n := 0
	for _, o := range s {
		if o.Kind == KindRetain || o.Kind == KindDelete {
			n += o.Length
		}
	}
	return n
}

// TargetLen returns the length of the consumed portion after application.
func (s Sequence) TargetLen() int {
	n := 0
	for _, o := range s {
		switch o.Kind {
		case KindRetain:
			n += o.Length
		case KindInsert:
			n += len(o.Content)
		}
	}
	return n
}

// IsNoop returns true if the sequence makes no changes.
func (s Sequence) IsNoop() bool {
	for _, o := range s {
		if o.Kind == KindInsert || o.Kind == KindDelete {
			return false
		}
	}
	return true
}

// Apply runs the sequence against source and returns the resulting text.
// Any source text left after the last operation is appended unchanged, so
// every source byte is always accounted for. Returns *OutOfRangeError the
// moment a retain or delete would advance the cursor past the end of source.
func (s Sequence) Apply(source string) (string, error) {
	var b strings.Builder
	cursor := 0
	for _, o := range s {
		switch o.Kind {
		case KindRetain:
			if cursor+o.Length > len(source) {
				return "", &OutOfRangeError{Op: o, Cursor: cursor, SourceLen: len(source)}
			}
			b.WriteString(source[cursor : cursor+o.Length])
			cursor += o.Length
		case KindDelete:
			if cursor+o.Length > len(source) {
				return "", &OutOfRangeError{Op: o, Cursor: cursor, SourceLen: len(source)}
			}
			cursor += o.Length
		case KindInsert:
			b.WriteString(o.Content)
		}
	}
	b.WriteString(source[cursor:])
	return b.String(), nil
}

// Merge returns a copy of the sequence with adjacent operations of the same
// kind folded together. The receiver is never modified.
func (s Sequence) Merge() Sequence {
	if len(s) == 0 {
		return nil
	}
	result := make(Sequence, 0, len(s))
	for _, o := range s {
		if len(result) == 0 {
			result = append(result, o)
			continue
		}
		last := &result[len(result)-1]
		switch {
		case o.Kind == KindRetain && last.Kind == KindRetain:
			last.Length += o.Length
		case o.Kind == KindDelete && last.Kind == KindDelete:
			last.Length += o.Length
		case o.Kind == KindInsert && last.Kind == KindInsert:
			last.Content += o.Content
		default:
			result = append(result, o)
		}
	}
	return result
}
