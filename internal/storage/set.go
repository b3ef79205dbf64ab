package storage

// Set holds unique string members. Iteration order is irrelevant.
type Set struct {
	Members map[string]struct{}
}

func NewSet() *Set {
	return &Set{
		Members: make(map[string]struct{}),
	}
}

// Add inserts a member, returns true when it is new.
func (s *Set) Add(member string) bool {
	if _, exists := s.Members[member]; exists {
		return false
	}
	s.Members[member] = struct{}{}
	return true
}

// Remove deletes a member, returns true when it existed.
func (s *Set) Remove(member string) bool {
	if _, exists := s.Members[member]; !exists {
		return false
	}
	delete(s.Members, member)
	return true
}

// IsMember reports membership.
func (s *Set) IsMember(member string) bool {
	_, exists := s.Members[member]
	return exists
}

// Len returns the cardinality.
func (s *Set) Len() int {
	return len(s.Members)
}

// GetMembers returns all members as a slice.
func (s *Set) GetMembers() []string {
	members := make([]string, 0, len(s.Members))
	for m := range s.Members {
		members = append(members, m)
	}
	return members
}

// Union returns a new set with members of both sets.
func (s *Set) Union(other *Set) *Set {
	result := NewSet()
	for m := range s.Members {
		result.Add(m)
	}
	if other != nil {
		for m := range other.Members {
			result.Add(m)
		}
	}
	return result
}

// Intersect returns a new set with members common to both sets.
func (s *Set) Intersect(other *Set) *Set {
	result := NewSet()
	if other == nil {
		return result
	}

	// Iterate over the smaller side.
	smaller, larger := s, other
	if len(s.Members) > len(other.Members) {
		smaller, larger = other, s
	}

	for m := range smaller.Members {
		if larger.IsMember(m) {
			result.Add(m)
		}
	}
	return result
}

// Diff returns a new set with members in s but not in other.
func (s *Set) Diff(other *Set) *Set {
	result := NewSet()
	for m := range s.Members {
		if other == nil || !other.IsMember(m) {
			result.Add(m)
		}
	}
	return result
}
