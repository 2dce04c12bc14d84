package domain

// History is an ordered sequence of conversation turns. Insertion order
// defines the turn order fed to model calls.
//
// A History value handed to the workflow is a read snapshot: derive new
// sequences with With, never append to it in place.
type History []Message

// Clone returns an independent copy of the history.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// With returns a new history made of h followed by msg. The receiver's
// backing array is never shared with the result.
func (h History) With(msg Message) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, msg)
}

// Alternates reports whether the history strictly alternates user and
// assistant turns, starting with a user turn and ending with an assistant turn.
func (h History) Alternates() bool {
	if len(h)%2 != 0 {
		return false
	}
	for i, msg := range h {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if msg.Role != want {
			return false
		}
	}
	return true
}
