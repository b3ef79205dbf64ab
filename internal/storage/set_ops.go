package storage

// getOrCreateSet returns the set at key, a fresh set when absent, or
// ErrWrongType when the key holds another kind.
func (s *Store) getOrCreateSet(key string) (*Set, error) {
	if !s.isKeyValid(key) {
		return NewSet(), nil
	}

	val := s.data[key]
	if val.Type != SetType {
		return nil, ErrWrongType
	}
	return val.Data.(*Set), nil
}

// getExistingSet returns the set at key, nil when absent.
func (s *Store) getExistingSet(key string) (*Set, error) {
	if !s.isKeyValid(key) {
		return nil, nil
	}

	val := s.data[key]
	if val.Type != SetType {
		return nil, ErrWrongType
	}
	return val.Data.(*Set), nil
}

// SAdd inserts members, returns how many were new.
func (s *Store) SAdd(key string, members ...string) (int, error) {
	set, err := s.getOrCreateSet(key)
	if err != nil {
		return 0, err
	}

	fresh := s.data[key] == nil
	if !fresh {
		s.beginUpdate(key)
	}
	added := 0
	for _, member := range members {
		if set.Add(member) {
			added++
		}
	}
	if fresh {
		if set.Len() > 0 {
			s.putEntry(key, &Value{Data: set, Type: SetType})
		}
	} else {
		s.endUpdate(key, set.Len())
	}
	return added, nil
}

// SRem removes members, returns how many existed. The key is dropped when
// the set empties.
func (s *Store) SRem(key string, members ...string) (int, error) {
	set, err := s.getExistingSet(key)
	if err != nil {
		return 0, err
	}
	if set == nil {
		return 0, nil
	}

	s.beginUpdate(key)
	removed := 0
	for _, member := range members {
		if set.Remove(member) {
			removed++
		}
	}
	s.endUpdate(key, set.Len())
	return removed, nil
}

// SIsMember reports membership on a live key.
func (s *Store) SIsMember(key, member string) (bool, error) {
	set, err := s.getExistingSet(key)
	if err != nil {
		return false, err
	}
	if set == nil {
		return false, nil
	}
	return set.IsMember(member), nil
}

// SMembers returns all members, empty for a missing key.
func (s *Store) SMembers(key string) ([]string, error) {
	set, err := s.getExistingSet(key)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []string{}, nil
	}
	return set.GetMembers(), nil
}

// SCard returns the cardinality, 0 for a missing key.
func (s *Store) SCard(key string) (int, error) {
	set, err := s.getExistingSet(key)
	if err != nil {
		return 0, err
	}
	if set == nil {
		return 0, nil
	}
	return set.Len(), nil
}

// SInter intersects the named sets. Any missing key yields an empty
// result.
func (s *Store) SInter(keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}

	result, err := s.getExistingSet(keys[0])
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []string{}, nil
	}

	for _, key := range keys[1:] {
		other, err := s.getExistingSet(key)
		if err != nil {
			return nil, err
		}
		if other == nil {
			return []string{}, nil
		}
		result = result.Intersect(other)
		if result.Len() == 0 {
			return []string{}, nil
		}
	}
	return result.GetMembers(), nil
}

// SUnion unions the named sets; missing keys are treated as empty.
func (s *Store) SUnion(keys ...string) ([]string, error) {
	result := NewSet()
	for _, key := range keys {
		set, err := s.getExistingSet(key)
		if err != nil {
			return nil, err
		}
		if set != nil {
			result = result.Union(set)
		}
	}
	return result.GetMembers(), nil
}

// SDiff subtracts subsequent sets from the first; missing keys are treated
// as empty.
func (s *Store) SDiff(keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}

	result, err := s.getExistingSet(keys[0])
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []string{}, nil
	}

	out := result
	for _, key := range keys[1:] {
		other, err := s.getExistingSet(key)
		if err != nil {
			return nil, err
		}
		if other != nil {
			out = out.Diff(other)
		}
	}
	return out.GetMembers(), nil
}

// SInterStore writes the intersection into dest, overwriting it, or
// deletes dest when the result is empty. Returns the stored cardinality.
func (s *Store) SInterStore(dest string, keys ...string) (int, error) {
	members, err := s.SInter(keys...)
	if err != nil {
		return 0, err
	}

	if len(members) == 0 {
		s.Delete(dest)
		return 0, nil
	}

	result := NewSet()
	for _, member := range members {
		result.Add(member)
	}
	s.putEntry(dest, &Value{Data: result, Type: SetType})
	return len(members), nil
}
