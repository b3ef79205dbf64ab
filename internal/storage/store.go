package storage

import (
	"time"
)

// entryOverhead is the fixed per-entry accounting cost added on top of key
// and value bytes.
const entryOverhead = 64

type Store struct {
	data           map[string]*Value
	dataWithExpiry map[string]time.Time
	memoryUsage    int64
	typeStats      map[ValueType]int
	PubSub         *PubSub
}

type Value struct {
	Data      interface{}
	ExpiresAt *time.Time
	Type      ValueType
}

type ValueType int

const (
	StringType ValueType = iota
	ListType
	SetType
	HashType
)

// Name returns the type name used by TYPE and INFO.
func (t ValueType) Name() string {
	switch t {
	case StringType:
		return "string"
	case ListType:
		return "list"
	case SetType:
		return "set"
	case HashType:
		return "hash"
	}
	return "none"
}

func NewStore() *Store {
	return &Store{
		data:           make(map[string]*Value),
		dataWithExpiry: make(map[string]time.Time),
		typeStats:      make(map[ValueType]int),
		PubSub:         NewPubSub(),
	}
}

// putEntry inserts or replaces an entry, keeping the memory counter, the
// per-type stats and the expiry index consistent.
func (s *Store) putEntry(key string, val *Value) {
	if old, exists := s.data[key]; exists {
		s.memoryUsage -= memorySize(key, old)
		s.typeStats[old.Type]--
	}

	s.data[key] = val
	s.memoryUsage += memorySize(key, val)
	s.typeStats[val.Type]++

	if val.ExpiresAt != nil {
		s.dataWithExpiry[key] = *val.ExpiresAt
	} else {
		delete(s.dataWithExpiry, key)
	}
}

// deleteKey removes an entry from both maps and rolls back its accounting.
func (s *Store) deleteKey(key string) {
	val, exists := s.data[key]
	if !exists {
		return
	}
	s.memoryUsage -= memorySize(key, val)
	s.typeStats[val.Type]--
	delete(s.data, key)
	delete(s.dataWithExpiry, key)
}

// isKeyValid reports whether key exists and has not expired. Expired keys
// are removed on the access path (lazy expiration).
func (s *Store) isKeyValid(key string) bool {
	val, exists := s.data[key]
	if !exists {
		return false
	}
	if val.ExpiresAt != nil && !time.Now().Before(*val.ExpiresAt) {
		s.deleteKey(key)
		return false
	}
	return true
}

// beginUpdate removes the entry's current footprint from the memory counter
// before an in-place aggregate mutation. Must be paired with endUpdate.
func (s *Store) beginUpdate(key string) {
	if val, exists := s.data[key]; exists {
		s.memoryUsage -= memorySize(key, val)
	}
}

// endUpdate re-adds the mutated entry's footprint, or deletes the key when
// the aggregate emptied (empty aggregates are never stored).
func (s *Store) endUpdate(key string, length int) {
	val, exists := s.data[key]
	if !exists {
		return
	}
	if length == 0 {
		s.typeStats[val.Type]--
		delete(s.data, key)
		delete(s.dataWithExpiry, key)
		return
	}
	s.memoryUsage += memorySize(key, val)
}

// MemoryUsage returns the tracked byte count over live entries.
func (s *Store) MemoryUsage() int64 {
	return s.memoryUsage
}

// KeyCount returns the number of stored entries, expired or not.
func (s *Store) KeyCount() int {
	return len(s.data)
}

// TypeStats returns a copy of the per-kind live entry counts.
func (s *Store) TypeStats() map[string]int {
	stats := make(map[string]int, len(s.typeStats))
	for t, n := range s.typeStats {
		if n != 0 {
			stats[t.Name()] = n
		}
	}
	for _, t := range []ValueType{StringType, ListType, SetType, HashType} {
		if _, ok := stats[t.Name()]; !ok {
			stats[t.Name()] = 0
		}
	}
	return stats
}

// memorySize approximates the footprint of one entry:
// len(key) + payload bytes + fixed overhead.
func memorySize(key string, val *Value) int64 {
	size := int64(len(key)) + entryOverhead

	switch v := val.Data.(type) {
	case string:
		size += int64(len(v))
	case *List:
		for node := v.Head; node != nil; node = node.Next {
			size += int64(len(node.Value))
		}
	case *Hash:
		for field, value := range v.Fields {
			size += int64(len(field) + len(value))
		}
	case *Set:
		for member := range v.Members {
			size += int64(len(member))
		}
	}
	return size
}
