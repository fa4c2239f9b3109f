package status

import "slices"

// ClosingPolicy is a set of codes after which the connection is never reused, regardless
// of what the Connection header says.
type ClosingPolicy []Code

func (c ClosingPolicy) Closes(code Code) bool {
	return slices.Contains(c, code)
}
