package handler

import (
	"time"

	"github.com/rs/zerolog/log"
)

// SlowLogEntry is one recorded slow command.
type SlowLogEntry struct {
	ID        int64
	Timestamp time.Time
	Duration  time.Duration
	ClientID  int64
	Command   string
	Args      []string
}

// SlowLog keeps the most recent commands that exceeded the threshold,
// newest first. Access is serialized by the dispatch path.
type SlowLog struct {
	entries   []SlowLogEntry
	maxLen    int
	threshold time.Duration
	idCounter int64
}

func NewSlowLog(maxLen int, threshold time.Duration) *SlowLog {
	return &SlowLog{
		entries:   make([]SlowLogEntry, 0, maxLen),
		maxLen:    maxLen,
		threshold: threshold,
	}
}

// LogIfSlow records the command if it exceeded the threshold.
func (s *SlowLog) LogIfSlow(clientID int64, command string, args []string, duration time.Duration) bool {
	if s.threshold <= 0 || duration < s.threshold {
		return false
	}

	s.idCounter++
	entry := SlowLogEntry{
		ID:        s.idCounter,
		Timestamp: time.Now(),
		Duration:  duration,
		ClientID:  clientID,
		Command:   command,
		Args:      args,
	}

	s.entries = append([]SlowLogEntry{entry}, s.entries...)
	if len(s.entries) > s.maxLen {
		s.entries = s.entries[:s.maxLen]
	}

	log.Warn().Int64("client", clientID).Str("command", command).Dur("took", duration).Msg("slow command")
	return true
}

// Get returns up to count newest entries.
func (s *SlowLog) Get(count int) []SlowLogEntry {
	if count <= 0 || count > len(s.entries) {
		count = len(s.entries)
	}
	result := make([]SlowLogEntry, count)
	copy(result, s.entries[:count])
	return result
}

// Len returns the entry count.
func (s *SlowLog) Len() int {
	return len(s.entries)
}

// Reset clears all entries.
func (s *SlowLog) Reset() {
	s.entries = s.entries[:0]
}
