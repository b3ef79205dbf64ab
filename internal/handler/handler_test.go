package handler

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minired/internal/config"
	"minired/internal/metrics"
	"minired/internal/persistence"
	"minired/internal/protocol"
	"minired/internal/storage"
)

func newTestHandler(t *testing.T) *CommandHandler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PersistenceEnabled = false
	return newTestHandlerWithConfig(t, cfg)
}

func newTestHandlerWithConfig(t *testing.T, cfg *config.Config) *CommandHandler {
	t.Helper()
	persist, err := persistence.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { persist.Close() })
	return NewCommandHandler(storage.NewStore(), persist, cfg, metrics.New())
}

func run(h *CommandHandler, line string) string {
	cmd, err := protocol.ParseLine(line)
	if err != nil {
		return "parse error: " + err.Error()
	}
	return string(h.Execute(nil, cmd))
}

func TestPingAndEcho(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "+PONG\r\n", run(h, "PING"))

	// ECHO joins multiple arguments with a space.
	assert.Equal(t, "+hello world\r\n", run(h, "ECHO hello world"))
	assert.Equal(t, "+\r\n", run(h, "ECHO"))
}

func TestSetGet(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "+OK\r\n", run(h, "SET foo bar"))
	assert.Equal(t, "$3\r\nbar\r\n", run(h, "GET foo"))
	assert.Equal(t, "$-1\r\n", run(h, "GET missing"))

	// Multi-token values are joined with spaces.
	assert.Equal(t, "+OK\r\n", run(h, "SET msg hello there"))
	assert.Equal(t, "$11\r\nhello there\r\n", run(h, "GET msg"))
}

func TestSetWithExpiry(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "+OK\r\n", run(h, "SET foo bar EX 100"))
	assert.Equal(t, "$3\r\nbar\r\n", run(h, "GET foo"))

	ttl := run(h, "TTL foo")
	assert.True(t, strings.HasPrefix(ttl, ":9") || strings.HasPrefix(ttl, ":100"), "ttl=%q", ttl)

	// EX is only recognized after at least one value token; here it is
	// part of the value.
	assert.Equal(t, "+OK\r\n", run(h, "SET k EX 5"))
	assert.Equal(t, "$4\r\nEX 5\r\n", run(h, "GET k"))
	assert.Equal(t, ":-1\r\n", run(h, "TTL k"))

	assert.Equal(t, "-ERR invalid expire time in 'set' command\r\n", run(h, "SET k v EX abc"))
}

func TestSetGetExpiryLapse(t *testing.T) {
	h := newTestHandler(t)
	// Plant an already-expired key directly; the wire path only speaks
	// whole seconds.
	past := time.Now().Add(-time.Millisecond)
	h.store.Set("foo", "bar", &past)

	assert.Equal(t, "$-1\r\n", run(h, "GET foo"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE foo"))
	assert.Equal(t, ":-2\r\n", run(h, "TTL foo"))
}

func TestDelExistsKeys(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SET a 1")
	run(h, "SET b 2")

	assert.Equal(t, ":3\r\n", run(h, "EXISTS a a b"))
	assert.Equal(t, ":1\r\n", run(h, "DEL a missing"))
	assert.Equal(t, ":0\r\n", run(h, "EXISTS a"))

	keys := run(h, "KEYS *")
	assert.Contains(t, keys, "$1\r\nb\r\n")

	assert.Equal(t, "+OK\r\n", run(h, "FLUSHALL"))
	assert.Equal(t, "*0\r\n", run(h, "KEYS *"))
}

func TestExpireSemantics(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SET k v")

	// Non-positive TTL is not applied and does not delete.
	assert.Equal(t, ":0\r\n", run(h, "EXPIRE k 0"))
	assert.Equal(t, ":0\r\n", run(h, "EXPIRE k -5"))
	assert.Equal(t, "$1\r\nv\r\n", run(h, "GET k"))

	assert.Equal(t, ":1\r\n", run(h, "EXPIRE k 100"))
	assert.Equal(t, ":1\r\n", run(h, "PERSIST k"))
	assert.Equal(t, ":0\r\n", run(h, "PERSIST k"))
	assert.Equal(t, ":0\r\n", run(h, "EXPIRE missing 10"))

	// Past timestamps are not applied.
	assert.Equal(t, ":0\r\n", run(h, "EXPIREAT k 1000"))
	assert.Equal(t, "-ERR invalid expire time\r\n", run(h, "EXPIRE k abc"))
}

func TestTypeCommand(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SET s v")
	run(h, "RPUSH l a")
	run(h, "HSET h f v")
	run(h, "SADD st m")

	assert.Equal(t, "+string\r\n", run(h, "TYPE s"))
	assert.Equal(t, "+list\r\n", run(h, "TYPE l"))
	assert.Equal(t, "+hash\r\n", run(h, "TYPE h"))
	assert.Equal(t, "+set\r\n", run(h, "TYPE st"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE missing"))
}

func TestListScenario(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, ":3\r\n", run(h, "RPUSH l a b c"))
	assert.Equal(t, "*3\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n", run(h, "LRANGE l 0 -1"))
	assert.Equal(t, "$1\r\na\r\n", run(h, "LPOP l"))
	assert.Equal(t, "$1\r\nb\r\n", run(h, "LPOP l"))
	assert.Equal(t, "$1\r\nc\r\n", run(h, "LPOP l"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE l"))
	assert.Equal(t, "$-1\r\n", run(h, "LPOP l"))
}

func TestListCommands(t *testing.T) {
	h := newTestHandler(t)
	run(h, "RPUSH l a b c")

	assert.Equal(t, ":3\r\n", run(h, "LLEN l"))
	assert.Equal(t, ":0\r\n", run(h, "LLEN missing"))
	assert.Equal(t, "$1\r\nc\r\n", run(h, "LINDEX l -1"))
	assert.Equal(t, "$-1\r\n", run(h, "LINDEX l 10"))

	assert.Equal(t, "+OK\r\n", run(h, "LSET l 1 B"))
	assert.Equal(t, "-ERR index out of range\r\n", run(h, "LSET l 10 x"))
	assert.Equal(t, "-ERR no such key\r\n", run(h, "LSET missing 0 x"))

	assert.Equal(t, "$1\r\nc\r\n", run(h, "RPOP l"))
}

func TestHashScenario(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, ":2\r\n", run(h, "HSET h f1 v1 f2 v2"))
	assert.Equal(t, ":1\r\n", run(h, "HSET h f1 V1 f3 v3"))

	all := run(h, "HGETALL h")
	assert.True(t, strings.HasPrefix(all, "*6\r\n"))
	assert.Contains(t, all, "$2\r\nV1\r\n")
	assert.Contains(t, all, "$2\r\nv2\r\n")
	assert.Contains(t, all, "$2\r\nv3\r\n")

	assert.Equal(t, "$2\r\nV1\r\n", run(h, "HGET h f1"))
	assert.Equal(t, "$-1\r\n", run(h, "HGET h nope"))
	assert.Equal(t, ":1\r\n", run(h, "HEXISTS h f2"))
	assert.Equal(t, ":0\r\n", run(h, "HEXISTS h nope"))
	assert.Equal(t, ":3\r\n", run(h, "HLEN h"))

	assert.Equal(t, "*2\r\n$2\r\nV1\r\n$-1\r\n", run(h, "HMGET h f1 nope"))
	assert.Equal(t, "+OK\r\n", run(h, "HMSET h f4 v4 f5 v5"))
	assert.Equal(t, ":5\r\n", run(h, "HLEN h"))

	assert.Equal(t, ":5\r\n", run(h, "HDEL h f1 f2 f3 f4 f5"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE h"))
}

func TestHashArity(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "-ERR wrong number of arguments for 'hset' command\r\n", run(h, "HSET h f1"))
	assert.Equal(t, "-ERR wrong number of arguments for 'hset' command\r\n", run(h, "HSET h f1 v1 f2"))
}

func TestSetScenario(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, ":3\r\n", run(h, "SADD a 1 2 3"))
	assert.Equal(t, ":3\r\n", run(h, "SADD b 2 3 4"))

	assert.Equal(t, ":2\r\n", run(h, "SINTERSTORE dst a b"))
	members := run(h, "SMEMBERS dst")
	assert.True(t, strings.HasPrefix(members, "*2\r\n"))
	assert.Contains(t, members, "$1\r\n2\r\n")
	assert.Contains(t, members, "$1\r\n3\r\n")

	assert.Equal(t, ":0\r\n", run(h, "SINTERSTORE dst a missing"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE dst"))
}

func TestSetCommands(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SADD s a b c")

	assert.Equal(t, ":1\r\n", run(h, "SISMEMBER s a"))
	assert.Equal(t, ":0\r\n", run(h, "SISMEMBER s z"))
	assert.Equal(t, ":3\r\n", run(h, "SCARD s"))
	assert.Equal(t, ":0\r\n", run(h, "SCARD missing"))

	assert.Equal(t, ":2\r\n", run(h, "SREM s a b"))
	assert.Equal(t, ":1\r\n", run(h, "SREM s c"))
	assert.Equal(t, "+none\r\n", run(h, "TYPE s"))

	run(h, "SADD x 1 2")
	run(h, "SADD y 2 3")
	union := run(h, "SUNION x y")
	assert.True(t, strings.HasPrefix(union, "*3\r\n"))
	diff := run(h, "SDIFF x y")
	assert.Equal(t, "*1\r\n$1\r\n1\r\n", diff)
}

func TestWrongTypeErrors(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SET k v")

	wrongtype := "-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"
	assert.Equal(t, wrongtype, run(h, "LPUSH k a"))
	assert.Equal(t, wrongtype, run(h, "HSET k f v"))
	assert.Equal(t, wrongtype, run(h, "SADD k m"))

	run(h, "RPUSH l a")
	assert.Equal(t, wrongtype, run(h, "GET l"))
}

func TestUnknownAndEmptyCommands(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "-ERR unknown command 'BOGUS'\r\n", run(h, "BOGUS arg"))
	assert.Equal(t, "-ERR empty command\r\n", string(h.Execute(nil, &protocol.Command{})))
	assert.Equal(t, "-ERR empty command\r\n", string(h.Execute(nil, nil)))
}

func TestArityErrors(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "-ERR wrong number of arguments for 'set' command\r\n", run(h, "SET k"))
	assert.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n", run(h, "GET"))
	assert.Equal(t, "-ERR wrong number of arguments for 'lrange' command\r\n", run(h, "LRANGE l 0"))
	assert.Equal(t, "-ERR value is not an integer or out of range\r\n", run(h, "LRANGE l a b"))
}

type fakeSubscriber struct {
	messages [][2]string
	fail     bool
}

func (f *fakeSubscriber) SendMessage(channel, payload string) error {
	if f.fail {
		return errors.New("gone")
	}
	f.messages = append(f.messages, [2]string{channel, payload})
	return nil
}

func TestPublishQuirks(t *testing.T) {
	h := newTestHandler(t)
	sub := &fakeSubscriber{}
	h.store.PubSub.Subscribe(7, sub, "ch")

	assert.Equal(t, ":1\r\n", run(h, "PUBLISH ch hello world"))
	require.Len(t, sub.messages, 1)
	assert.Equal(t, [2]string{"ch", "hello world"}, sub.messages[0])

	// Surrounding quotes are stripped from the joined message.
	run(h, `PUBLISH ch "quoted message"`)
	assert.Equal(t, [2]string{"ch", "quoted message"}, sub.messages[1])

	assert.Equal(t, ":0\r\n", run(h, "PUBLISH silent msg"))
}

func TestPubSubIntrospection(t *testing.T) {
	h := newTestHandler(t)
	h.store.PubSub.Subscribe(1, &fakeSubscriber{}, "b-chan", "a-chan")

	assert.Equal(t, "*2\r\n$6\r\na-chan\r\n$6\r\nb-chan\r\n", run(h, "PUBSUB CHANNELS"))
	assert.Equal(t, "*1\r\n$6\r\na-chan\r\n", run(h, "PUBSUB CHANNELS a-*"))
	assert.Equal(t, "*4\r\n$6\r\na-chan\r\n:1\r\n$4\r\nnone\r\n:0\r\n", run(h, "PUBSUB NUMSUB a-chan none"))
	assert.Equal(t, ":0\r\n", run(h, "PUBSUB NUMPAT"))
	assert.Contains(t, run(h, "PUBSUB BOGUS"), "-ERR unknown PUBSUB subcommand")
}

func TestConfigGetSet(t *testing.T) {
	h := newTestHandler(t)

	assert.Equal(t, "*2\r\n$11\r\naof_enabled\r\n$4\r\ntrue\r\n", run(h, "CONFIG GET aof_enabled"))
	assert.Equal(t, "*0\r\n", run(h, "CONFIG GET nonsense"))

	assert.Equal(t, "+OK\r\n", run(h, "CONFIG SET rdb_compression false"))
	assert.Equal(t, "*2\r\n$15\r\nrdb_compression\r\n$5\r\nfalse\r\n", run(h, "CONFIG GET rdb_compression"))

	// Non-mutable and unknown parameters are rejected.
	assert.Contains(t, run(h, "CONFIG SET aof_filename other.aof"), "cannot be set at runtime")
	assert.Contains(t, run(h, "CONFIG SET nonsense 1"), "unknown parameter")
}

func TestPersistenceCommandsDisabled(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, "-ERR persistence not enabled\r\n", run(h, "SAVE"))
	assert.Equal(t, "-ERR persistence not enabled\r\n", run(h, "BGSAVE"))
	assert.Equal(t, "-ERR persistence not enabled\r\n", run(h, "BGREWRITEAOF"))
	assert.Equal(t, ":0\r\n", run(h, "LASTSAVE"))
	assert.Equal(t, "-ERR persistence not enabled\r\n", run(h, "DEBUG RELOAD"))
}

func persistentConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.TempDir = filepath.Join(dir, "temp")
	cfg.AOFSyncPolicy = "always"
	return cfg
}

func TestSaveFlushReload(t *testing.T) {
	cfg := persistentConfig(t)
	cfg.AOFEnabled = false // snapshot-only so RELOAD restores from the RDB
	h := newTestHandlerWithConfig(t, cfg)

	run(h, "SET k1 v1")
	run(h, "RPUSH l a b")
	run(h, "HSET h f v")
	run(h, "SADD s m1 m2")

	assert.Equal(t, "+OK\r\n", run(h, "SAVE"))
	assert.Equal(t, "+OK\r\n", run(h, "FLUSHALL"))
	assert.Equal(t, "*0\r\n", run(h, "KEYS *"))

	assert.Equal(t, "+OK\r\n", run(h, "DEBUG RELOAD"))
	assert.Equal(t, "$2\r\nv1\r\n", run(h, "GET k1"))
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", run(h, "LRANGE l 0 -1"))
	assert.Equal(t, "$1\r\nv\r\n", run(h, "HGET h f"))
	assert.Equal(t, ":2\r\n", run(h, "SCARD s"))

	lastSave := run(h, "LASTSAVE")
	assert.True(t, strings.HasPrefix(lastSave, ":1"), "lastsave=%q", lastSave)
}

func TestAOFReplayRoundTrip(t *testing.T) {
	cfg := persistentConfig(t)
	h := newTestHandlerWithConfig(t, cfg)

	run(h, "SET k v1")
	run(h, "SET k v2")
	run(h, "RPUSH l a b c")
	run(h, "LPOP l")
	run(h, "HSET h f v")
	run(h, "SADD s m")
	run(h, "DEL s")

	// Fresh store, same files: replay must reproduce the observable state.
	h2 := newTestHandlerWithConfig(t, cfg)
	ok := h2.persist.Recover(h2.store, h2.Replay)
	require.True(t, ok)

	assert.Equal(t, "$2\r\nv2\r\n", run(h2, "GET k"))
	assert.Equal(t, "*2\r\n$1\r\nb\r\n$1\r\nc\r\n", run(h2, "LRANGE l 0 -1"))
	assert.Equal(t, "$1\r\nv\r\n", run(h2, "HGET h f"))
	assert.Equal(t, "+none\r\n", run(h2, "TYPE s"))
}

func TestReplayIgnoresUnknownCommands(t *testing.T) {
	h := newTestHandler(t)
	assert.NoError(t, h.Replay("WIBBLE", []string{"x"}))
	assert.NoError(t, h.Replay("SET", []string{"k", "v"}))
	assert.Equal(t, "$1\r\nv\r\n", run(h, "GET k"))
}

func TestBGRewriteCompactsLog(t *testing.T) {
	cfg := persistentConfig(t)
	h := newTestHandlerWithConfig(t, cfg)

	for i := 0; i < 5; i++ {
		run(h, "SET k v")
	}
	run(h, "EXPIRE k 1000")
	assert.Equal(t, "+Background AOF rewrite started\r\n", run(h, "BGREWRITEAOF"))

	h2 := newTestHandlerWithConfig(t, cfg)
	require.True(t, h2.persist.Recover(h2.store, h2.Replay))
	assert.Equal(t, "$1\r\nv\r\n", run(h2, "GET k"))
	ttl := run(h2, "TTL k")
	assert.True(t, strings.HasPrefix(ttl, ":9"), "ttl=%q", ttl)
}

func TestInfoSections(t *testing.T) {
	h := newTestHandler(t)
	run(h, "SET a 1")
	run(h, "RPUSH l x")

	info := run(h, "INFO")
	assert.Contains(t, info, "# server")
	assert.Contains(t, info, "# stats")
	assert.Contains(t, info, "# memory")
	assert.Contains(t, info, "# keyspace")
	assert.Contains(t, info, "# types")
	assert.Contains(t, info, "strings:1")
	assert.Contains(t, info, "lists:1")
	assert.Contains(t, info, "db0:keys=2")
}

func TestSlowLogCommands(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, ":0\r\n", run(h, "SLOWLOG LEN"))
	assert.Equal(t, "*0\r\n", run(h, "SLOWLOG GET"))
	assert.Equal(t, "+OK\r\n", run(h, "SLOWLOG RESET"))

	h.slowLog.LogIfSlow(1, "KEYS", []string{"*"}, time.Second)
	assert.Equal(t, ":1\r\n", run(h, "SLOWLOG LEN"))
	entries := run(h, "SLOWLOG GET 5")
	assert.Contains(t, entries, "KEYS *")
}

func TestWriteSetTagging(t *testing.T) {
	assert.True(t, IsWriteCommand("SET"))
	assert.True(t, IsWriteCommand("set"))
	assert.True(t, IsWriteCommand("PUBLISH"))
	assert.True(t, IsWriteCommand("SINTERSTORE"))
	assert.False(t, IsWriteCommand("GET"))
	assert.False(t, IsWriteCommand("SMEMBERS"))
	assert.False(t, IsWriteCommand("SUBSCRIBE"))
}

func TestFailedWriteCommandsAreNotLogged(t *testing.T) {
	cfg := persistentConfig(t)
	h := newTestHandlerWithConfig(t, cfg)

	run(h, "SET k v")
	// WRONGTYPE failure must not append to the log.
	assert.Contains(t, run(h, "LPUSH k x"), "WRONGTYPE")

	h2 := newTestHandlerWithConfig(t, cfg)
	require.True(t, h2.persist.Recover(h2.store, h2.Replay))
	assert.Equal(t, "+string\r\n", run(h2, "TYPE k"))
}
