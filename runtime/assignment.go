package runtime

import "sort"

// Set holds seeker ids with set semantics: a seeker appears at most once
// under a given responder.
type Set map[string]struct{}

// AssignmentTable is the authoritative structure recording all current
// pairings, keyed by responder. Entries only exist for responders with a
// live, identified connection. Like the Registry it is owned by the
// Lifecycle manager and carries no lock of its own.
//
// Responder registration order is remembered so that iteration is
// deterministic given a fixed history: the matching tie-break depends on it.
type AssignmentTable struct {
	seekers map[string]Set
	order   []string
}

func NewAssignmentTable() *AssignmentTable {
	return &AssignmentTable{seekers: make(map[string]Set)}
}

// AddResponder creates an empty entry for a responder. Re-adding an already
// known responder keeps its current seekers and its original position.
func (t *AssignmentTable) AddResponder(responderID string) {
	if _, ok := t.seekers[responderID]; ok {
		return
	}
	t.seekers[responderID] = make(Set)
	t.order = append(t.order, responderID)
}

// RemoveResponder deletes the responder's entry in full and returns the
// seekers it held, sorted for deterministic notification fan-out.
func (t *AssignmentTable) RemoveResponder(responderID string) []string {
	set, ok := t.seekers[responderID]
	if !ok {
		return nil
	}
	delete(t.seekers, responderID)
	for i, id := range t.order {
		if id == responderID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}

	orphans := make([]string, 0, len(set))
	for seekerID := range set {
		orphans = append(orphans, seekerID)
	}
	sort.Strings(orphans)
	return orphans
}

// Assign inserts a seeker into a responder's set. The caller guarantees the
// seeker is not held elsewhere; the matcher enforces that invariant.
func (t *AssignmentTable) Assign(responderID, seekerID string) {
	if set, ok := t.seekers[responderID]; ok {
		set[seekerID] = struct{}{}
	}
}

// Release removes the seeker from whichever responder currently holds it and
// returns that responder. ok=false when the seeker was not assigned, which is
// a no-op rather than an error.
func (t *AssignmentTable) Release(seekerID string) (string, bool) {
	for _, responderID := range t.order {
		if _, held := t.seekers[responderID][seekerID]; held {
			delete(t.seekers[responderID], seekerID)
			return responderID, true
		}
	}
	return "", false
}

// HolderOf returns the responder the seeker is assigned to, if any.
// Linear scan over the small online set, matching expected process-local scale.
func (t *AssignmentTable) HolderOf(seekerID string) (string, bool) {
	for _, responderID := range t.order {
		if _, held := t.seekers[responderID][seekerID]; held {
			return responderID, true
		}
	}
	return "", false
}

// Responders returns responder ids in registration order.
func (t *AssignmentTable) Responders() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Load returns the number of seekers currently assigned to a responder.
func (t *AssignmentTable) Load(responderID string) int {
	return len(t.seekers[responderID])
}

// Len returns the number of responder entries.
func (t *AssignmentTable) Len() int {
	return len(t.seekers)
}

// Pairings returns the total number of active conversations.
func (t *AssignmentTable) Pairings() int {
	total := 0
	for _, set := range t.seekers {
		total += len(set)
	}
	return total
}

// Snapshot returns a copy of the table for observability, seekers sorted.
func (t *AssignmentTable) Snapshot() map[string][]string {
	out := make(map[string][]string, len(t.seekers))
	for responderID, set := range t.seekers {
		seekers := make([]string, 0, len(set))
		for seekerID := range set {
			seekers = append(seekers, seekerID)
		}
		sort.Strings(seekers)
		out[responderID] = seekers
	}
	return out
}
