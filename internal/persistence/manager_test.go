package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minired/internal/config"
	"minired/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.TempDir = filepath.Join(dir, "temp")
	cfg.AOFSyncPolicy = "always"
	return cfg
}

func TestDisabledManagerIsNoOp(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersistenceEnabled = false

	m, err := NewManager(cfg)
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	assert.False(t, m.AOFEnabled())
	require.NoError(t, m.LogWriteCommand("SET", "k", "v"))
	require.NoError(t, m.SyncAOF())
	require.NoError(t, m.Close())
	assert.Error(t, m.SaveSnapshot(nil))
}

func TestLogWriteCommandAppends(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.LogWriteCommand("SET", "foo", "bar"))
	assert.Equal(t, int64(1), m.ChangesSinceSave())

	data, err := os.ReadFile(cfg.AOFPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), " SET foo bar\n")
}

func TestSaveSnapshotResetsChanges(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	store := storage.NewStore()
	store.Set("k", "v", nil)

	require.NoError(t, m.LogWriteCommand("SET", "k", "v"))
	require.NoError(t, m.SaveSnapshot(store.Snapshot()))
	assert.Zero(t, m.ChangesSinceSave())

	_, err = os.Stat(cfg.RDBPath())
	require.NoError(t, err)
}

func TestBackgroundSave(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	store := storage.NewStore()
	store.Set("k", "v", nil)

	require.True(t, m.BackgroundSave(store.Snapshot()))

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.RDBPath())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, m.LastBackgroundError())
}

func TestRecoverPrefersAOF(t *testing.T) {
	cfg := testConfig(t)

	// First life: write both an AOF and a snapshot with diverging content.
	m, err := NewManager(cfg)
	require.NoError(t, err)

	store := storage.NewStore()
	store.Set("from-rdb", "v", nil)
	require.NoError(t, m.SaveSnapshot(store.Snapshot()))
	require.NoError(t, m.LogWriteCommand("SET", "from-aof", "v"))
	require.NoError(t, m.Close())

	// Second life: AOF wins.
	m2, err := NewManager(cfg)
	require.NoError(t, err)
	defer m2.Close()

	replayed := [][]string{}
	ok := m2.Recover(storage.NewStore(), func(command string, args []string) error {
		replayed = append(replayed, append([]string{command}, args...))
		return nil
	})
	assert.True(t, ok)
	require.Len(t, replayed, 1)
	assert.Equal(t, []string{"SET", "from-aof", "v"}, replayed[0])
}

func TestRecoverFallsBackToRDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.AOFEnabled = false

	m, err := NewManager(cfg)
	require.NoError(t, err)

	store := storage.NewStore()
	store.Set("k", "v", nil)
	require.NoError(t, m.SaveSnapshot(store.Snapshot()))

	fresh := storage.NewStore()
	ok := m.Recover(fresh, func(string, []string) error { return nil })
	assert.True(t, ok)

	val, exists, err := fresh.Get("k")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "v", val)
}

func TestRecoverEmptyStart(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	called := false
	ok := m.Recover(storage.NewStore(), func(string, []string) error {
		called = true
		return nil
	})
	assert.True(t, ok)
	assert.False(t, called)
}

func TestRecoverSkipsFailingRecords(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.EnsureDirectories())
	content := "1700000000 SET good v\n1700000001 BROKEN x\n1700000002 SET also v\n"
	require.NoError(t, os.WriteFile(cfg.AOFPath(), []byte(content), 0o644))

	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	var commands []string
	ok := m.Recover(storage.NewStore(), func(command string, args []string) error {
		commands = append(commands, command)
		if command == "BROKEN" {
			return assert.AnError
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, []string{"SET", "BROKEN", "SET"}, commands)
}

func TestPeriodicTasksTriggersAutoSave(t *testing.T) {
	cfg := testConfig(t)
	cfg.AOFEnabled = false
	cfg.SaveConditions = []config.SaveCondition{{Seconds: 0, Changes: 1}}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	store := storage.NewStore()
	store.Set("k", "v", nil)
	require.NoError(t, m.LogWriteCommand("SET", "k", "v"))

	m.PeriodicTasks(store.Snapshot)

	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.RDBPath())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
