package persistence

import (
	"os"

	"github.com/rs/zerolog/log"

	"minired/internal/aof"
	"minired/internal/storage"
)

// ReplayFunc applies one recovered write command to the keyspace without
// re-logging it.
type ReplayFunc func(command string, args []string) error

// Recover populates the store from persistence files. Priority: AOF when
// present and enabled, else snapshot, else empty. Per-line failures are
// logged and skipped; a catastrophic read error leaves the store empty
// with a warning.
func (m *Manager) Recover(store *storage.Store, replay ReplayFunc) bool {
	if !m.cfg.PersistenceEnabled || !m.cfg.RecoveryOnStartup {
		return true
	}

	aofExists := false
	if m.cfg.AOFEnabled {
		if _, err := os.Stat(m.cfg.AOFPath()); err == nil {
			aofExists = true
		}
	}

	if aofExists {
		return m.replayAOF(replay)
	}
	if m.rdbHandler != nil && m.rdbHandler.FileExists() {
		return m.loadRDB(store)
	}

	log.Info().Msg("no persistence files found, starting with empty database")
	return true
}

func (m *Manager) replayAOF(replay ReplayFunc) bool {
	reader, err := aof.NewReader(m.cfg.AOFPath())
	if err != nil {
		log.Warn().Err(err).Msg("failed to open AOF for recovery, starting with empty database")
		return false
	}
	if reader == nil {
		return true
	}
	defer reader.Close()

	records, skipped, err := reader.LoadAll()
	if err != nil {
		log.Warn().Err(err).Msg("AOF read error, starting with empty database")
		return false
	}

	replayed := 0
	failed := 0
	for _, record := range records {
		if err := replay(record.Command, record.Args); err != nil {
			failed++
			log.Warn().Err(err).Str("command", record.Command).Msg("AOF replay error, skipping record")
			continue
		}
		replayed++
	}

	log.Info().Int("replayed", replayed).Int("failed", failed).Int("skipped_lines", skipped).
		Msg("AOF recovery complete")
	return true
}

func (m *Manager) loadRDB(store *storage.Store) bool {
	entries, err := m.rdbHandler.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load RDB file, starting with empty database")
		return false
	}

	store.Flush()
	for _, loaded := range entries {
		store.LoadSnapshotEntry(loaded.Key, loaded.Entry)
	}

	log.Info().Int("keys", len(entries)).Msg("RDB recovery complete")
	return true
}
