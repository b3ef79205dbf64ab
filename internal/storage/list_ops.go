package storage

// getOrCreateList returns the list at key, a fresh list when the key is
// absent, or ErrWrongType when the key holds another kind. A fresh list is
// not stored here; the pushing caller stores it with putEntry.
func (s *Store) getOrCreateList(key string) (*List, error) {
	if !s.isKeyValid(key) {
		return NewList(), nil
	}

	val := s.data[key]
	if val.Type != ListType {
		return nil, ErrWrongType
	}
	return val.Data.(*List), nil
}

// getExistingList returns the list at key, nil when absent.
func (s *Store) getExistingList(key string) (*List, error) {
	if !s.isKeyValid(key) {
		return nil, nil
	}

	val := s.data[key]
	if val.Type != ListType {
		return nil, ErrWrongType
	}
	return val.Data.(*List), nil
}

// LPush prepends values, returns the new length.
func (s *Store) LPush(key string, values ...string) (int, error) {
	list, err := s.getOrCreateList(key)
	if err != nil {
		return 0, err
	}

	fresh := s.data[key] == nil
	if !fresh {
		s.beginUpdate(key)
	}
	for _, v := range values {
		list.PushFront(v)
	}
	if fresh {
		s.putEntry(key, &Value{Data: list, Type: ListType})
	} else {
		s.endUpdate(key, list.Length)
	}
	return list.Length, nil
}

// RPush appends values, returns the new length.
func (s *Store) RPush(key string, values ...string) (int, error) {
	list, err := s.getOrCreateList(key)
	if err != nil {
		return 0, err
	}

	fresh := s.data[key] == nil
	if !fresh {
		s.beginUpdate(key)
	}
	for _, v := range values {
		list.PushBack(v)
	}
	if fresh {
		s.putEntry(key, &Value{Data: list, Type: ListType})
	} else {
		s.endUpdate(key, list.Length)
	}
	return list.Length, nil
}

// LPop removes and returns the head element. The key is deleted when the
// pop empties the list.
func (s *Store) LPop(key string) (string, bool, error) {
	list, err := s.getExistingList(key)
	if err != nil {
		return "", false, err
	}
	if list == nil {
		return "", false, nil
	}

	s.beginUpdate(key)
	val, ok := list.PopFront()
	s.endUpdate(key, list.Length)
	return val, ok, nil
}

// RPop removes and returns the tail element.
func (s *Store) RPop(key string) (string, bool, error) {
	list, err := s.getExistingList(key)
	if err != nil {
		return "", false, err
	}
	if list == nil {
		return "", false, nil
	}

	s.beginUpdate(key)
	val, ok := list.PopBack()
	s.endUpdate(key, list.Length)
	return val, ok, nil
}

// LLen returns the list length, 0 for a missing key.
func (s *Store) LLen(key string) (int, error) {
	list, err := s.getExistingList(key)
	if err != nil {
		return 0, err
	}
	if list == nil {
		return 0, nil
	}
	return list.Length, nil
}

// LRange returns the inclusive range, empty for a missing key.
func (s *Store) LRange(key string, start, stop int) ([]string, error) {
	list, err := s.getExistingList(key)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return []string{}, nil
	}
	return list.Range(start, stop), nil
}

// LIndex returns the element at index, reporting absence for out-of-range.
func (s *Store) LIndex(key string, index int) (string, bool, error) {
	list, err := s.getExistingList(key)
	if err != nil {
		return "", false, err
	}
	if list == nil {
		return "", false, nil
	}
	val, ok := list.GetAt(index)
	return val, ok, nil
}

// LSet replaces the element at index. Missing key is ErrNoSuchKey, a bad
// index is ErrIndexOutOfRange.
func (s *Store) LSet(key string, index int, value string) error {
	list, err := s.getExistingList(key)
	if err != nil {
		return err
	}
	if list == nil {
		return ErrNoSuchKey
	}

	s.beginUpdate(key)
	ok := list.SetAt(index, value)
	s.endUpdate(key, list.Length)
	if !ok {
		return ErrIndexOutOfRange
	}
	return nil
}
