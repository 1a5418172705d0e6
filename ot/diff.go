package ot

// Diff produces a sequence that transforms oldText into newText, built from
// the longest common prefix and suffix. The emission order is fixed and is
// relied on by callers and tests: Retain(prefix), Delete(old middle),
// Insert(new middle), Retain(suffix), with zero-size parts omitted.
//
// For all inputs, Diff(a, b).Apply(a) == b.
func Diff(oldText, newText string) Sequence {
	if oldText == newText {
		if oldText == "" {
			return nil
		}
		return Sequence{Retain(len(oldText))}
	}

	oldLen, newLen := len(oldText), len(newText)

	prefix := 0
	for prefix < oldLen && prefix < newLen && oldText[prefix] == newText[prefix] {
		prefix++
	}

	// The suffix window must not overlap the prefix window.
	suffix := 0
	for suffix < oldLen-prefix && suffix < newLen-prefix &&
		oldText[oldLen-1-suffix] == newText[newLen-1-suffix] {
		suffix++
	}

	var seq Sequence
	if prefix > 0 {
		seq = append(seq, Retain(prefix))
	}
	if middle := oldLen - prefix - suffix; middle > 0 {
		seq = append(seq, Delete(middle))
	}
	if middle := newText[prefix : newLen-suffix]; middle != "" {
		seq = append(seq, Insert(middle))
	}
	if suffix > 0 {
		seq = append(seq, Retain(suffix))
	}
	return seq
}

// DiffAtCursor is a typing-biased variant of Diff. The cursor is the byte
// offset in newText where the caret sat after the edit; for a run of
// repeated characters the plain prefix scan can anchor the change
// arbitrarily, and the hint pins a pure insertion or deletion to the caret
// instead. The hint is advisory: whenever it does not cleanly explain the
// edit, this falls back to Diff, and the round-trip contract always holds.
func DiffAtCursor(oldText, newText string, cursor int) Sequence {
	if oldText == newText || cursor < 0 || cursor > len(newText) {
		return Diff(oldText, newText)
	}

	delta := len(newText) - len(oldText)
	if delta > 0 {
		// Pure insertion ending at the cursor.
		start := cursor - delta
		if start >= 0 && newText[:start] == oldText[:start] && newText[cursor:] == oldText[start:] {
			var seq Sequence
			if start > 0 {
				seq = append(seq, Retain(start))
			}
			seq = append(seq, Insert(newText[start:cursor]))
			if rest := len(oldText) - start; rest > 0 {
				seq = append(seq, Retain(rest))
			}
			return seq
		}
	} else if delta < 0 {
		// Pure deletion at the cursor (backspace leaves the caret at the
		// deletion point).
		if cursor-delta <= len(oldText) &&
			oldText[:cursor] == newText[:cursor] && oldText[cursor-delta:] == newText[cursor:] {
			var seq Sequence
			if cursor > 0 {
				seq = append(seq, Retain(cursor))
			}
			seq = append(seq, Delete(-delta))
			if rest := len(oldText) - cursor + delta; rest > 0 {
				seq = append(seq, Retain(rest))
			}
			return seq
		}
	}
	return Diff(oldText, newText)
}
