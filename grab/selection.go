package grab

// Selection is the set of vertices picked by the user plus a list of pick
// candidates ranked by the host, typically by screen distance to the cursor.
// A cursor points at the current candidate, which is part of the selection
// returned by Get without being committed to it. The zero value is an empty
// selection ready to use.
type Selection struct {
	ids        []int
	in         map[int]bool
	candidates []int
	cursor     int
}

// SetCandidates replaces the candidate list and resets the cursor to the
// best ranked candidate.
func (s *Selection) SetCandidates(ranked []int) {
	s.candidates = append(s.candidates[:0], ranked...)
	s.cursor = 0
}

// Current returns the candidate under the cursor.
func (s *Selection) Current() (id int, ok bool) {
	if len(s.candidates) == 0 {
		return -1, false
	}
	return s.candidates[s.cursor], true
}

// Cycle moves the cursor delta positions along the candidate list, wrapping
// around at both ends.
func (s *Selection) Cycle(delta int) {
	n := len(s.candidates)
	if n == 0 {
		return
	}
	s.cursor = ((s.cursor+delta)%n + n) % n
}

// Extend commits the current candidate to the selection.
func (s *Selection) Extend() {
	id, ok := s.Current()
	if !ok || s.in[id] {
		return
	}
	if s.in == nil {
		s.in = make(map[int]bool)
	}
	s.in[id] = true
	s.ids = append(s.ids, id)
}

// Clear empties the committed selection. Candidates are kept.
func (s *Selection) Clear() {
	s.ids = s.ids[:0]
	s.in = nil
}

// Get returns the committed selection in insertion order followed by the
// current candidate if it is not already selected.
func (s *Selection) Get() []int {
	out := make([]int, len(s.ids), len(s.ids)+1)
	copy(out, s.ids)
	if id, ok := s.Current(); ok && !s.in[id] {
		out = append(out, id)
	}
	return out
}
