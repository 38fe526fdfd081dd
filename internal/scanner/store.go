package scanner

// Store is the insertion-ordered, deduplicated log of detections for one run.
// Two detections are duplicates when both Data and Coordinates match; Method
// and Time are ignored, so the first sighting wins.
//
// Store is not safe for concurrent use.
type Store struct {
	entries []Detection
	index   map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]struct{})}
}

func storeKey(d Detection) string {
	return d.Data + "\x00" + d.Coordinates.Key()
}

// Insert appends d unless an equal entry exists. It reports whether d was added.
func (s *Store) Insert(d Detection) bool {
	k := storeKey(d)
	if _, dup := s.index[k]; dup {
		return false
	}
	d.Coordinates = d.Coordinates.Clone()
	s.index[k] = struct{}{}
	s.entries = append(s.entries, d)
	return true
}

// Report returns a copy of all entries in insertion order.
func (s *Store) Report() []Detection {
	out := make([]Detection, len(s.entries))
	for i, d := range s.entries {
		d.Coordinates = d.Coordinates.Clone()
		out[i] = d
	}
	return out
}

// Len returns the number of distinct detections.
func (s *Store) Len() int { return len(s.entries) }
