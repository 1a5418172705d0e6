package ot

import "fmt"

// OutOfRangeError reports a retain or delete that would advance the apply
// cursor past the end of the source text.
type OutOfRangeError struct {
	Op        Op
	Cursor    int
	SourceLen int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s at cursor %d exceeds source length %d",
		e.Op, e.Cursor, e.SourceLen)
}
