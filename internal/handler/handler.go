package handler

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"minired/internal/config"
	"minired/internal/metrics"
	"minired/internal/persistence"
	"minired/internal/protocol"
	"minired/internal/storage"
)

// CommandFunc executes one command for a client and returns the encoded
// reply.
type CommandFunc func(client *Client, cmd *protocol.Command) []byte

// Client is one connected peer. The ID is the pub/sub subscriber identity;
// writes are serialized so replies and published messages do not
// interleave on the wire.
type Client struct {
	ID   int64
	Conn net.Conn

	writeMu sync.Mutex
}

// Write sends raw bytes to the client.
func (c *Client) Write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.Conn.Write(b)
	return err
}

// SendMessage implements storage.MessageWriter: one published message as
// ["message", channel, payload].
func (c *Client) SendMessage(channel, payload string) error {
	return c.Write(protocol.EncodeArray([]string{"message", channel, payload}))
}

// writeCommands is the AOF write set: commands whose successful execution
// is appended to the log.
var writeCommands = map[string]bool{
	"SET": true, "DEL": true, "EXPIRE": true, "EXPIREAT": true,
	"PERSIST": true, "FLUSHALL": true,
	"LPUSH": true, "RPUSH": true, "LPOP": true, "RPOP": true, "LSET": true,
	"HSET": true, "HMSET": true, "HDEL": true,
	"SADD": true, "SREM": true, "SINTERSTORE": true,
	"PUBLISH": true,
}

// IsWriteCommand reports whether a verb mutates state and belongs in the
// AOF.
func IsWriteCommand(command string) bool {
	return writeCommands[strings.ToUpper(command)]
}

// CommandHandler dispatches parsed commands against the keyspace, tags
// write commands for the AOF and tracks runtime statistics.
type CommandHandler struct {
	store    *storage.Store
	persist  *persistence.Manager
	cfg      *config.Config
	metrics  *metrics.Metrics
	slowLog  *SlowLog
	commands map[string]CommandFunc

	startTime    time.Time
	commandCount int64

	// replaying suppresses AOF logging while recovery re-applies records.
	replaying bool
}

// NewCommandHandler wires the dispatcher to its collaborators.
func NewCommandHandler(store *storage.Store, persist *persistence.Manager, cfg *config.Config, m *metrics.Metrics) *CommandHandler {
	h := &CommandHandler{
		store:     store,
		persist:   persist,
		cfg:       cfg,
		metrics:   m,
		slowLog:   NewSlowLog(128, cfg.SlowLogThreshold),
		startTime: time.Now(),
	}
	h.registerCommands()
	return h
}

func (h *CommandHandler) registerCommands() {
	h.commands = make(map[string]CommandFunc)

	// Basic / key commands
	h.commands["PING"] = h.handlePing
	h.commands["ECHO"] = h.handleEcho
	h.commands["SET"] = h.handleSet
	h.commands["GET"] = h.handleGet
	h.commands["DEL"] = h.handleDel
	h.commands["EXISTS"] = h.handleExists
	h.commands["KEYS"] = h.handleKeys
	h.commands["FLUSHALL"] = h.handleFlushAll
	h.commands["INFO"] = h.handleInfo
	h.commands["EXPIRE"] = h.handleExpire
	h.commands["EXPIREAT"] = h.handleExpireAt
	h.commands["TTL"] = h.handleTTL
	h.commands["PTTL"] = h.handlePTTL
	h.commands["PERSIST"] = h.handlePersist
	h.commands["TYPE"] = h.handleType

	// List commands
	h.commands["LPUSH"] = h.handleLPush
	h.commands["RPUSH"] = h.handleRPush
	h.commands["LPOP"] = h.handleLPop
	h.commands["RPOP"] = h.handleRPop
	h.commands["LRANGE"] = h.handleLRange
	h.commands["LLEN"] = h.handleLLen
	h.commands["LINDEX"] = h.handleLIndex
	h.commands["LSET"] = h.handleLSet

	// Hash commands
	h.commands["HSET"] = h.handleHSet
	h.commands["HGET"] = h.handleHGet
	h.commands["HMSET"] = h.handleHMSet
	h.commands["HMGET"] = h.handleHMGet
	h.commands["HGETALL"] = h.handleHGetAll
	h.commands["HDEL"] = h.handleHDel
	h.commands["HEXISTS"] = h.handleHExists
	h.commands["HLEN"] = h.handleHLen

	// Set commands
	h.commands["SADD"] = h.handleSAdd
	h.commands["SREM"] = h.handleSRem
	h.commands["SMEMBERS"] = h.handleSMembers
	h.commands["SISMEMBER"] = h.handleSIsMember
	h.commands["SCARD"] = h.handleSCard
	h.commands["SINTER"] = h.handleSInter
	h.commands["SUNION"] = h.handleSUnion
	h.commands["SDIFF"] = h.handleSDiff
	h.commands["SINTERSTORE"] = h.handleSInterStore

	// Pub/Sub commands
	h.commands["SUBSCRIBE"] = h.handleSubscribe
	h.commands["UNSUBSCRIBE"] = h.handleUnsubscribe
	h.commands["PUBLISH"] = h.handlePublish
	h.commands["PUBSUB"] = h.handlePubSub

	// Persistence / admin commands
	h.commands["SAVE"] = h.handleSave
	h.commands["BGSAVE"] = h.handleBGSave
	h.commands["BGREWRITEAOF"] = h.handleBGRewriteAOF
	h.commands["LASTSAVE"] = h.handleLastSave
	h.commands["CONFIG"] = h.handleConfig
	h.commands["DEBUG"] = h.handleDebug
	h.commands["SLOWLOG"] = h.handleSlowLog
}

// Execute dispatches one command and returns the encoded reply. Write
// commands are logged to the AOF after successful execution; a pending
// AOF failure turns the reply into an error at this boundary.
func (h *CommandHandler) Execute(client *Client, cmd *protocol.Command) []byte {
	if cmd == nil || len(cmd.Args) == 0 {
		return protocol.EncodeError("ERR empty command")
	}

	command := strings.ToUpper(cmd.Args[0])
	fn, exists := h.commands[command]
	if !exists {
		return protocol.EncodeError(fmt.Sprintf("ERR unknown command '%s'", cmd.Args[0]))
	}

	h.commandCount++
	if h.metrics != nil {
		h.metrics.CommandsProcessed.Inc()
	}

	start := time.Now()
	response := h.dispatch(fn, client, cmd, command)
	if client != nil {
		h.slowLog.LogIfSlow(client.ID, command, cmd.Args[1:], time.Since(start))
	}
	return response
}

func (h *CommandHandler) dispatch(fn CommandFunc, client *Client, cmd *protocol.Command, command string) []byte {
	response := fn(client, cmd)

	if !IsWriteCommand(command) || h.replaying || h.persist == nil {
		return response
	}
	if len(response) > 0 && response[0] == '-' {
		// Failed commands are not logged.
		return response
	}

	if err := h.persist.LogWriteCommand(command, cmd.Args[1:]...); err != nil {
		log.Error().Err(err).Str("command", command).Msg("AOF logging failed")
		return protocol.EncodeError(fmt.Sprintf("ERR %v", err))
	}
	return response
}

// Replay applies one recovered record through the regular dispatch table
// with logging suspended, so argument parsing quirks replay identically.
// Unknown commands are ignored.
func (h *CommandHandler) Replay(command string, args []string) error {
	if _, known := h.commands[strings.ToUpper(command)]; !known {
		return nil
	}

	h.replaying = true
	defer func() { h.replaying = false }()

	cmd := &protocol.Command{Args: append([]string{command}, args...)}
	response := h.Execute(nil, cmd)
	if len(response) > 0 && response[0] == '-' {
		return fmt.Errorf("replay failed: %s", strings.TrimSpace(string(response[1:])))
	}
	return nil
}

// Disconnect drops a client's pub/sub state when its connection goes away.
func (h *CommandHandler) Disconnect(client *Client) {
	h.store.PubSub.RemoveClient(client.ID)
}

// Store exposes the keyspace for the server loop's background ticks.
func (h *CommandHandler) Store() *storage.Store {
	return h.store
}

// SlowLogRef exposes the slow log, for tests.
func (h *CommandHandler) SlowLogRef() *SlowLog {
	return h.slowLog
}

func errorReply(err error) []byte {
	msg := err.Error()
	if strings.HasPrefix(msg, "WRONGTYPE") || strings.HasPrefix(msg, "ERR ") {
		return protocol.EncodeError(msg)
	}
	return protocol.EncodeError("ERR " + msg)
}

func wrongArity(command string) []byte {
	return protocol.EncodeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(command)))
}
