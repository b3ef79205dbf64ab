package persistence

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"minired/internal/aof"
	"minired/internal/config"
	"minired/internal/rdb"
	"minired/internal/storage"
)

// Manager coordinates the AOF writer, the snapshot handler and startup
// recovery. All entry points except background save completion run on the
// command path and are serialized by the server.
type Manager struct {
	cfg *config.Config

	aofWriter  *aof.Writer
	rdbHandler *rdb.Handler

	changesSinceSave atomic.Int64
	lastSaveTime     time.Time

	bgMu          sync.Mutex
	bgSaveRunning bool
	lastBgError   error
}

// NewManager builds the persistence stack from config. With persistence
// disabled it returns a manager whose operations are no-ops.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:          cfg,
		lastSaveTime: time.Now(),
	}

	if !cfg.PersistenceEnabled {
		return m, nil
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, errors.Wrap(err, "failed to create data directories")
	}

	if cfg.RDBEnabled {
		m.rdbHandler = rdb.NewHandler(cfg.RDBPath(), cfg.RDBCompression, cfg.RDBChecksum)
	}

	if cfg.AOFEnabled {
		writer, err := aof.NewWriter(cfg.AOFPath(), aof.ParsePolicy(cfg.AOFSyncPolicy))
		if err != nil {
			return nil, err
		}
		m.aofWriter = writer
		log.Info().Str("path", cfg.AOFPath()).Str("sync", cfg.AOFSyncPolicy).Msg("AOF enabled")
	}

	return m, nil
}

// Enabled reports whether any persistence is active.
func (m *Manager) Enabled() bool {
	return m.cfg.PersistenceEnabled && (m.aofWriter != nil || m.rdbHandler != nil)
}

// AOFEnabled reports whether the append log is active.
func (m *Manager) AOFEnabled() bool {
	return m.aofWriter != nil
}

// LogWriteCommand appends a successfully executed write command to the
// AOF and counts it toward the auto-save trigger.
func (m *Manager) LogWriteCommand(command string, args ...string) error {
	m.changesSinceSave.Add(1)

	if m.aofWriter == nil {
		return nil
	}
	return m.aofWriter.LogCommand(command, args...)
}

// PeriodicTasks runs one persistence tick: evaluate the AOF sync policy
// and the snapshot auto-save conditions. snapshotFn materializes a
// consistent view and is called on the command path.
func (m *Manager) PeriodicTasks(snapshotFn func() map[string]storage.SnapshotEntry) {
	if m.aofWriter != nil {
		m.aofWriter.MaybeSync()
	}

	if m.rdbHandler == nil {
		return
	}
	changes := m.changesSinceSave.Load()
	if !m.cfg.ShouldAutoSave(changes, m.lastSaveTime) {
		return
	}

	log.Info().Int64("changes", changes).Msg("auto-save conditions met, starting background save")
	if m.BackgroundSave(snapshotFn()) {
		m.lastSaveTime = time.Now()
	}
}

// SaveSnapshot writes the snapshot synchronously.
func (m *Manager) SaveSnapshot(snapshot map[string]storage.SnapshotEntry) error {
	if m.rdbHandler == nil {
		return errors.New("persistence not enabled")
	}
	if err := m.rdbHandler.Save(snapshot); err != nil {
		return err
	}
	m.changesSinceSave.Store(0)
	m.lastSaveTime = time.Now()
	return nil
}

// BackgroundSave writes an already materialized snapshot on a worker
// goroutine. The worker touches only its own view and the filesystem.
// Returns false when a save is already running.
func (m *Manager) BackgroundSave(snapshot map[string]storage.SnapshotEntry) bool {
	if m.rdbHandler == nil {
		return false
	}

	m.bgMu.Lock()
	if m.bgSaveRunning {
		m.bgMu.Unlock()
		return false
	}
	m.bgSaveRunning = true
	m.bgMu.Unlock()

	tempPath := m.cfg.RDBTempPath()
	go func() {
		err := m.rdbHandler.SaveTo(tempPath, snapshot)

		m.bgMu.Lock()
		m.bgSaveRunning = false
		m.lastBgError = err
		m.bgMu.Unlock()

		if err != nil {
			log.Error().Err(err).Msg("background save failed")
			return
		}
		m.changesSinceSave.Store(0)
		log.Info().Int("keys", len(snapshot)).Msg("background save completed")
	}()
	return true
}

// RewriteAOF compacts the log from a materialized snapshot. Runs inline on
// the command path; writes are quiesced for the swap by construction.
func (m *Manager) RewriteAOF(snapshot map[string]storage.SnapshotEntry) error {
	if m.aofWriter == nil {
		return errors.New("persistence not enabled")
	}
	return m.aofWriter.Rewrite(storage.RebuildCommands(snapshot))
}

// SyncAOF forces an fsync, used during shutdown.
func (m *Manager) SyncAOF() error {
	if m.aofWriter == nil {
		return nil
	}
	return m.aofWriter.Sync()
}

// TakeAOFError surfaces a pending background write/fsync failure at a
// command boundary.
func (m *Manager) TakeAOFError() error {
	if m.aofWriter == nil {
		return nil
	}
	return m.aofWriter.TakeError()
}

// LastSaveTime returns the time of the last successful snapshot. Before
// any snapshot has succeeded it is the time the manager was created or an
// automatic background save was last started.
func (m *Manager) LastSaveTime() time.Time {
	if m.rdbHandler != nil {
		if t := m.rdbHandler.LastSaveTime(); !t.IsZero() {
			return t
		}
	}
	return m.lastSaveTime
}

// LastBackgroundError reports the outcome of the most recent background
// save.
func (m *Manager) LastBackgroundError() error {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()
	return m.lastBgError
}

// ChangesSinceSave returns the write count since the last snapshot.
func (m *Manager) ChangesSinceSave() int64 {
	return m.changesSinceSave.Load()
}

// Stats summarizes persistence state for INFO.
type Stats struct {
	AOFEnabled       bool
	RDBEnabled       bool
	ChangesSinceSave int64
	LastSaveTime     int64
	AOF              aof.Stats
	RDBFileSize      int64
}

// GetStats returns the current persistence statistics.
func (m *Manager) GetStats() Stats {
	stats := Stats{
		AOFEnabled:       m.aofWriter != nil,
		RDBEnabled:       m.rdbHandler != nil,
		ChangesSinceSave: m.changesSinceSave.Load(),
		LastSaveTime:     m.LastSaveTime().Unix(),
	}
	if m.aofWriter != nil {
		stats.AOF = m.aofWriter.GetStats()
	}
	if m.rdbHandler != nil {
		stats.RDBFileSize = m.rdbHandler.FileSize()
	}
	return stats
}

// Close flushes and closes the AOF.
func (m *Manager) Close() error {
	if m.aofWriter == nil {
		return nil
	}
	return m.aofWriter.Close()
}
