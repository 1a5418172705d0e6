package ot

// PositionedOp is an operation anchored at an absolute byte offset in the
// text both sides started from. It exists only for pairwise rebasing of
// concurrent edits; it is never serialized, and the sequential applier
// never reads positions. Convert with Positioned and PositionedOp.Sequence.
type PositionedOp struct {
	Kind    Kind
	Pos     int
	Length  int    // retain/delete
	Content string // insert
}

// Priority breaks the tie when two inserts land at the same position.
type Priority int

const (
	// PriorityFirst orders the first operation's insert before the second's.
	PriorityFirst Priority = iota
	// PrioritySecond orders the second operation's insert first.
	PrioritySecond
)

// Transform rebases two operations authored concurrently against the same
// text, returning (a', b') such that applying a' after b and b' after a
// converge to the same result. Retain never conflicts, so any pair
// involving a retain is returned unchanged.
func Transform(a, b PositionedOp, priority Priority) (PositionedOp, PositionedOp) {
	switch {
	case a.Kind == KindInsert && b.Kind == KindInsert:
		return transformInsertInsert(a, b, priority)
	case a.Kind == KindInsert && b.Kind == KindDelete:
		return transformInsertDelete(a, b)
	case a.Kind == KindDelete && b.Kind == KindInsert:
		bPrime, aPrime := transformInsertDelete(b, a)
		return aPrime, bPrime
	case a.Kind == KindDelete && b.Kind == KindDelete:
		return transformDeleteDelete(a, b)
	default:
		return a, b
	}
}

func transformInsertInsert(a, b PositionedOp, priority Priority) (PositionedOp, PositionedOp) {
	switch {
	case a.Pos < b.Pos:
		b.Pos += len(a.Content)
	case a.Pos > b.Pos:
		a.Pos += len(b.Content)
	case priority == PriorityFirst:
		b.Pos += len(a.Content)
	default:
		a.Pos += len(b.Content)
	}
	return a, b
}

func transformInsertDelete(ins, del PositionedOp) (PositionedOp, PositionedOp) {
	switch {
	case ins.Pos <= del.Pos:
		// Insert at or before the deleted range: the range shifts right.
		del.Pos += len(ins.Content)
	case ins.Pos >= del.Pos+del.Length:
		// Insert at or after the deleted range: the insert shifts left.
		ins.Pos -= del.Length
	default:
		// Insert strictly inside the deleted range: relocate it to the
		// start of the range, and the delete swallows the inserted text.
		ins.Pos = del.Pos
		del.Length += len(ins.Content)
	}
	return ins, del
}

func transformDeleteDelete(a, b PositionedOp) (PositionedOp, PositionedOp) {
	aEnd := a.Pos + a.Length
	bEnd := b.Pos + b.Length

	switch {
	case aEnd <= b.Pos:
		b.Pos -= a.Length
	case bEnd <= a.Pos:
		a.Pos -= b.Length
	default:
		// Overlapping ranges: each side shrinks by the shared span so the
		// shared bytes are only deleted once, and the later-starting range
		// re-anchors to the other's start.
		overlap := min(aEnd, bEnd) - max(a.Pos, b.Pos)
		aPos, bPos := a.Pos, b.Pos
		a.Length -= overlap
		b.Length -= overlap
		if aPos >= bPos {
			a.Pos = bPos
		}
		if bPos >= aPos {
			b.Pos = aPos
		}
	}
	return a, b
}

// TransformAll rebases every operation of a against every operation of b in
// turn, carrying the progressively adjusted b operations forward. This is
// pairwise composition, best-effort conflict resolution for ad hoc use; the
// persisted-mutation path relies on version gating instead and never calls
// it.
func TransformAll(a, b []PositionedOp, priority Priority) ([]PositionedOp, []PositionedOp) {
	bPrime := make([]PositionedOp, len(b))
	copy(bPrime, b)

	aPrime := make([]PositionedOp, 0, len(a))
	for _, op := range a {
		current := op
		for i := range bPrime {
			current, bPrime[i] = Transform(current, bPrime[i], priority)
		}
		aPrime = append(aPrime, current)
	}
	return aPrime, bPrime
}

// Positioned converts a sequential sequence into absolute-position
// operations. Positions are byte offsets into the sequence's source text:
// retains and deletes advance the source cursor, inserts do not.
func Positioned(seq Sequence) []PositionedOp {
	out := make([]PositionedOp, 0, len(seq))
	cursor := 0
	for _, o := range seq {
		p := PositionedOp{Kind: o.Kind, Pos: cursor, Length: o.Length, Content: o.Content}
		out = append(out, p)
		if o.Kind == KindRetain || o.Kind == KindDelete {
			cursor += o.Length
		}
	}
	return out
}

// Sequence converts a single positioned operation back into a sequential
// sequence against a document of docLen bytes, retaining everything around
// the edit.
func (p PositionedOp) Sequence(docLen int) Sequence {
	var seq Sequence
	if p.Pos > 0 {
		seq = append(seq, Retain(p.Pos))
	}
	switch p.Kind {
	case KindInsert:
		seq = append(seq, Insert(p.Content))
		if rest := docLen - p.Pos; rest > 0 {
			seq = append(seq, Retain(rest))
		}
	case KindDelete:
		seq = append(seq, Delete(p.Length))
		if rest := docLen - p.Pos - p.Length; rest > 0 {
			seq = append(seq, Retain(rest))
		}
	case KindRetain:
		if rest := docLen - p.Pos; rest > 0 {
			seq = append(seq, Retain(rest))
		}
	}
	return seq
}
