package storage

import (
	"time"
)

// Set stores a string value, replacing any prior entry of any kind.
func (s *Store) Set(key, value string, expiry *time.Time) {
	s.putEntry(key, &Value{
		Data:      value,
		ExpiresAt: expiry,
		Type:      StringType,
	})
}

// Get retrieves a string value. A key holding another kind fails with
// ErrWrongType instead of reading through it.
func (s *Store) Get(key string) (string, bool, error) {
	if !s.isKeyValid(key) {
		return "", false, nil
	}

	val := s.data[key]
	if val.Type != StringType {
		return "", false, ErrWrongType
	}
	str, _ := val.Data.(string)
	return str, true, nil
}

// Delete removes keys and returns how many existed.
func (s *Store) Delete(keys ...string) int {
	count := 0
	for _, key := range keys {
		if _, exists := s.data[key]; exists {
			s.deleteKey(key)
			count++
		}
	}
	return count
}

// Exists counts live keys with multiplicity: a key passed twice counts
// twice.
func (s *Store) Exists(keys ...string) int {
	count := 0
	for _, key := range keys {
		if s.isKeyValid(key) {
			count++
		}
	}
	return count
}

// Keys returns all live keys matching the glob pattern.
func (s *Store) Keys(pattern string) []string {
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if !s.isKeyValid(key) {
			continue
		}
		if pattern == "*" || MatchGlob(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Flush empties the store and resets all counters.
func (s *Store) Flush() {
	s.data = make(map[string]*Value)
	s.dataWithExpiry = make(map[string]time.Time)
	s.memoryUsage = 0
	s.typeStats = make(map[ValueType]int)
}

// Expire sets an absolute expiry on a live key. Returns false when the key
// is missing or already expired.
func (s *Store) Expire(key string, expiry time.Time) bool {
	if !s.isKeyValid(key) {
		return false
	}

	val := s.data[key]
	val.ExpiresAt = &expiry
	s.dataWithExpiry[key] = expiry
	return true
}

// TTL returns remaining seconds, -1 when no expiry is set, -2 when the key
// does not exist.
func (s *Store) TTL(key string) int64 {
	if !s.isKeyValid(key) {
		return -2
	}

	val := s.data[key]
	if val.ExpiresAt == nil {
		return -1
	}
	return int64(time.Until(*val.ExpiresAt).Seconds())
}

// PTTL is TTL in milliseconds.
func (s *Store) PTTL(key string) int64 {
	if !s.isKeyValid(key) {
		return -2
	}

	val := s.data[key]
	if val.ExpiresAt == nil {
		return -1
	}
	return time.Until(*val.ExpiresAt).Milliseconds()
}

// Persist clears a key's expiry. Returns true when an expiry existed.
func (s *Store) Persist(key string) bool {
	if !s.isKeyValid(key) {
		return false
	}

	val := s.data[key]
	had := val.ExpiresAt != nil
	val.ExpiresAt = nil
	delete(s.dataWithExpiry, key)
	return had
}

// Type returns the kind name of a live key, or "none".
func (s *Store) Type(key string) string {
	if !s.isKeyValid(key) {
		return "none"
	}
	return s.data[key].Type.Name()
}

// CleanupExpiredKeys samples up to 20 keys from the expiry index and
// removes the ones whose expiry has passed. This is the only form of
// active eviction; everything else is reclaimed lazily on access.
func (s *Store) CleanupExpiredKeys() int {
	const keysPerSample = 20

	sampled := make([]string, 0, keysPerSample)
	for key := range s.dataWithExpiry {
		sampled = append(sampled, key)
		if len(sampled) >= keysPerSample {
			break
		}
	}

	now := time.Now()
	expired := 0
	for _, key := range sampled {
		val, exists := s.data[key]
		if !exists {
			delete(s.dataWithExpiry, key)
			continue
		}
		if val.ExpiresAt != nil && !now.Before(*val.ExpiresAt) {
			s.deleteKey(key)
			expired++
		}
	}
	return expired
}
