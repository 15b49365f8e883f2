package runtime

import "support-relay/errors"

// Matcher assigns seekers to responders under a least-loaded rule.
// It is the only component allowed to create pairings, which is what keeps
// the one-conversation-per-seeker invariant enforceable in a single place.
type Matcher struct {
	table *AssignmentTable
}

func NewMatcher(table *AssignmentTable) *Matcher {
	return &Matcher{table: table}
}

// RequestPairing picks the responder with the strictly minimal current load
// and assigns the seeker to it.
//
// The tie-break is registration order: the first responder reaching the
// minimum wins, so repeated identical scenarios always select the same one.
// ErrAlreadyPaired and ErrNoResponderAvailable leave the table untouched.
func (m *Matcher) RequestPairing(seekerID string) (string, error) {
	if _, held := m.table.HolderOf(seekerID); held {
		return "", errors.ErrAlreadyPaired
	}

	selected := ""
	minLoad := -1
	for _, responderID := range m.table.Responders() {
		load := m.table.Load(responderID)
		if minLoad == -1 || load < minLoad {
			minLoad = load
			selected = responderID
		}
	}
	if selected == "" {
		return "", errors.ErrNoResponderAvailable
	}

	m.table.Assign(selected, seekerID)
	return selected, nil
}

// EndPairing removes the seeker from whichever responder holds it.
// Absent seekers are a no-op, not an error: end-chat, seeker disconnect and
// redundant cleanup all funnel through here safely.
func (m *Matcher) EndPairing(seekerID string) (string, bool) {
	return m.table.Release(seekerID)
}
