package data

// Tags is the list of labels on a test file.
type Tags []string

// Has returns true if the specified string appears in the list.
func (ts Tags) Has(name string) bool {
	for _, t := range ts {
		if t == name {
			return true
		}
	}
	return false
}

// HasAny returns true if at least one of the names appears in the list.
func (ts Tags) HasAny(names ...string) bool {
	for _, n := range names {
		if ts.Has(n) {
			return true
		}
	}
	return false
}
