package storage

// getOrCreateHash returns the hash at key, a fresh hash when absent, or
// ErrWrongType when the key holds another kind.
func (s *Store) getOrCreateHash(key string) (*Hash, error) {
	if !s.isKeyValid(key) {
		return NewHash(), nil
	}

	val := s.data[key]
	if val.Type != HashType {
		return nil, ErrWrongType
	}
	return val.Data.(*Hash), nil
}

// getExistingHash returns the hash at key, nil when absent.
func (s *Store) getExistingHash(key string) (*Hash, error) {
	if !s.isKeyValid(key) {
		return nil, nil
	}

	val := s.data[key]
	if val.Type != HashType {
		return nil, ErrWrongType
	}
	return val.Data.(*Hash), nil
}

// HSet stores field/value pairs, returns the number of newly created
// fields. fieldValues must have even arity.
func (s *Store) HSet(key string, fieldValues ...string) (int, error) {
	if len(fieldValues)%2 != 0 {
		return 0, ErrWrongNumArgs
	}

	hash, err := s.getOrCreateHash(key)
	if err != nil {
		return 0, err
	}

	fresh := s.data[key] == nil
	if !fresh {
		s.beginUpdate(key)
	}
	newFields := 0
	for i := 0; i < len(fieldValues); i += 2 {
		if hash.Set(fieldValues[i], fieldValues[i+1]) {
			newFields++
		}
	}
	if fresh {
		s.putEntry(key, &Value{Data: hash, Type: HashType})
	} else {
		s.endUpdate(key, hash.Len())
	}
	return newFields, nil
}

// HGet returns a single field value.
func (s *Store) HGet(key, field string) (string, bool, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return "", false, err
	}
	if hash == nil {
		return "", false, nil
	}
	val, exists := hash.Get(field)
	return val, exists, nil
}

// HMGet returns values for multiple fields; missing fields are nil holes.
func (s *Store) HMGet(key string, fields ...string) ([]interface{}, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, len(fields))
	for i, field := range fields {
		if hash == nil {
			continue
		}
		if val, exists := hash.Get(field); exists {
			result[i] = val
		}
	}
	return result, nil
}

// HGetAll returns alternating field, value pairs.
func (s *Store) HGetAll(key string) ([]string, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return nil, err
	}
	if hash == nil {
		return []string{}, nil
	}
	return hash.GetAll(), nil
}

// HDel removes fields, returns the number deleted. The key is dropped when
// the hash empties.
func (s *Store) HDel(key string, fields ...string) (int, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return 0, err
	}
	if hash == nil {
		return 0, nil
	}

	s.beginUpdate(key)
	deleted := 0
	for _, field := range fields {
		if hash.Delete(field) {
			deleted++
		}
	}
	s.endUpdate(key, hash.Len())
	return deleted, nil
}

// HExists reports whether a field exists.
func (s *Store) HExists(key, field string) (bool, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return false, err
	}
	if hash == nil {
		return false, nil
	}
	return hash.Exists(field), nil
}

// HLen returns the field count, 0 for a missing key.
func (s *Store) HLen(key string) (int, error) {
	hash, err := s.getExistingHash(key)
	if err != nil {
		return 0, err
	}
	if hash == nil {
		return 0, nil
	}
	return hash.Len(), nil
}
