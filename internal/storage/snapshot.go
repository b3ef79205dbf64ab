package storage

import (
	"strconv"
	"time"
)

// SnapshotEntry is a point-in-time deep copy of one live entry. Exactly
// one of String, Items, Fields, Members is populated, matching Type.
type SnapshotEntry struct {
	Type      ValueType
	String    string
	Items     []string
	Fields    map[string]string
	Members   []string
	ExpiresAt *time.Time
}

// Snapshot materializes a consistent deep copy of all live entries. The
// caller may hand the result to a background worker; the copy shares no
// state with the store.
func (s *Store) Snapshot() map[string]SnapshotEntry {
	now := time.Now()
	snapshot := make(map[string]SnapshotEntry, len(s.data))

	for key, val := range s.data {
		if val.ExpiresAt != nil && !now.Before(*val.ExpiresAt) {
			continue
		}

		entry := SnapshotEntry{Type: val.Type}
		if val.ExpiresAt != nil {
			expiry := *val.ExpiresAt
			entry.ExpiresAt = &expiry
		}

		switch v := val.Data.(type) {
		case string:
			entry.String = v
		case *List:
			entry.Items = v.ToSlice()
		case *Hash:
			entry.Fields = make(map[string]string, len(v.Fields))
			for f, fv := range v.Fields {
				entry.Fields[f] = fv
			}
		case *Set:
			entry.Members = v.GetMembers()
		}
		snapshot[key] = entry
	}
	return snapshot
}

// LoadSnapshotEntry inserts one snapshot entry, rebuilding the concrete
// value shape. Expired entries are the caller's problem to skip.
func (s *Store) LoadSnapshotEntry(key string, entry SnapshotEntry) {
	var expiry *time.Time
	if entry.ExpiresAt != nil {
		e := *entry.ExpiresAt
		expiry = &e
	}

	switch entry.Type {
	case StringType:
		s.putEntry(key, &Value{Data: entry.String, ExpiresAt: expiry, Type: StringType})
	case ListType:
		if len(entry.Items) == 0 {
			return
		}
		list := NewList()
		for _, item := range entry.Items {
			list.PushBack(item)
		}
		s.putEntry(key, &Value{Data: list, ExpiresAt: expiry, Type: ListType})
	case HashType:
		if len(entry.Fields) == 0 {
			return
		}
		hash := NewHash()
		for f, v := range entry.Fields {
			hash.Set(f, v)
		}
		s.putEntry(key, &Value{Data: hash, ExpiresAt: expiry, Type: HashType})
	case SetType:
		if len(entry.Members) == 0 {
			return
		}
		set := NewSet()
		for _, m := range entry.Members {
			set.Add(m)
		}
		s.putEntry(key, &Value{Data: set, ExpiresAt: expiry, Type: SetType})
	}
}

// RebuildCommands renders the snapshot as the minimal command sequence that
// reproduces it: one build command per key plus one EXPIRE for keys with a
// TTL. Used by the AOF rewrite.
func RebuildCommands(snapshot map[string]SnapshotEntry) [][]string {
	now := time.Now()
	commands := make([][]string, 0, len(snapshot))

	for key, entry := range snapshot {
		switch entry.Type {
		case StringType:
			commands = append(commands, []string{"SET", key, entry.String})
		case ListType:
			cmd := append([]string{"RPUSH", key}, entry.Items...)
			commands = append(commands, cmd)
		case HashType:
			cmd := []string{"HSET", key}
			for f, v := range entry.Fields {
				cmd = append(cmd, f, v)
			}
			commands = append(commands, cmd)
		case SetType:
			cmd := append([]string{"SADD", key}, entry.Members...)
			commands = append(commands, cmd)
		}

		if entry.ExpiresAt != nil {
			// A sub-second remainder rounds up so the key still expires.
			ttl := int64(entry.ExpiresAt.Sub(now).Seconds())
			if ttl < 1 {
				ttl = 1
			}
			commands = append(commands, []string{"EXPIRE", key, strconv.FormatInt(ttl, 10)})
		}
	}
	return commands
}
