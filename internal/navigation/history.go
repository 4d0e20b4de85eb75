package navigation

import "slices"

// BackKind tells the caller what a back step resolved to.
type BackKind int

const (
	// BackExit means there is nothing left to go back to.
	BackExit BackKind = iota
	// BackNavigate means Name must be opened without pushing history.
	BackNavigate
)

// BackOutcome is the result of GoBack.
type BackOutcome struct {
	Kind BackKind
	Name string
}

// PushHistory appends name unless it is already on top, so reloading the
// same note never creates a back step.
func (s *State) PushHistory(name string) {
	if n := len(s.history); n > 0 && s.history[n-1] == name {
		return
	}
	s.history = append(s.history, name)
}

// GoBack pops the displayed note off the top of the stack and returns the
// entry below it. The returned note stays on the stack.
func (s *State) GoBack() BackOutcome {
	if len(s.history) == 0 {
		return BackOutcome{Kind: BackExit}
	}
	if s.history[len(s.history)-1] == s.fileName {
		s.history = s.history[:len(s.history)-1]
		if len(s.history) == 0 {
			return BackOutcome{Kind: BackExit}
		}
	}
	return BackOutcome{Kind: BackNavigate, Name: s.history[len(s.history)-1]}
}

// History returns a copy of the back stack, oldest first.
func (s *State) History() []string {
	return slices.Clone(s.history)
}

// ClearHistory empties the back stack.
func (s *State) ClearHistory() {
	s.history = nil
}
