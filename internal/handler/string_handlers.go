package handler

import (
	"strconv"
	"strings"
	"time"

	"minired/internal/protocol"
)

func (h *CommandHandler) handlePing(client *Client, cmd *protocol.Command) []byte {
	return protocol.EncodeSimpleString("PONG")
}

// ECHO joins its arguments with a single space. The canonical server takes
// one bulk argument; the line framing here makes the joined form the
// round-trippable one.
func (h *CommandHandler) handleEcho(client *Client, cmd *protocol.Command) []byte {
	return protocol.EncodeSimpleString(strings.Join(cmd.Args[1:], " "))
}

// SET key value... [EX seconds]. The EX suffix is recognized only when the
// second-to-last token is literally EX and at least one value token
// precedes it; otherwise every token after the key is part of the value.
func (h *CommandHandler) handleSet(client *Client, cmd *protocol.Command) []byte {
	args := cmd.Args[1:]
	if len(args) < 2 {
		return wrongArity("set")
	}

	key := args[0]
	valueTokens := args[1:]

	var expiry *time.Time
	if len(args) >= 4 && strings.ToUpper(args[len(args)-2]) == "EX" {
		seconds, err := strconv.ParseInt(args[len(args)-1], 10, 64)
		if err != nil {
			return protocol.EncodeError("ERR invalid expire time in 'set' command")
		}
		t := time.Now().Add(time.Duration(seconds) * time.Second)
		expiry = &t
		valueTokens = args[1 : len(args)-2]
	}

	h.store.Set(key, strings.Join(valueTokens, " "), expiry)
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleGet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("get")
	}

	value, exists, err := h.store.Get(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	if !exists {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(value)
}

func (h *CommandHandler) handleDel(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("del")
	}
	return protocol.EncodeInteger(h.store.Delete(cmd.Args[1:]...))
}

func (h *CommandHandler) handleExists(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("exists")
	}
	return protocol.EncodeInteger(h.store.Exists(cmd.Args[1:]...))
}

func (h *CommandHandler) handleKeys(client *Client, cmd *protocol.Command) []byte {
	pattern := "*"
	if len(cmd.Args) > 1 {
		pattern = cmd.Args[1]
	}
	return protocol.EncodeArray(h.store.Keys(pattern))
}

func (h *CommandHandler) handleFlushAll(client *Client, cmd *protocol.Command) []byte {
	h.store.Flush()
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleExpire(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("expire")
	}

	seconds, err := strconv.ParseInt(cmd.Args[2], 10, 64)
	if err != nil {
		return protocol.EncodeError("ERR invalid expire time")
	}
	// Non-positive TTLs are not applied; the key stays as-is.
	if seconds <= 0 {
		return protocol.EncodeInteger(0)
	}

	applied := h.store.Expire(cmd.Args[1], time.Now().Add(time.Duration(seconds)*time.Second))
	if applied {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleExpireAt(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("expireat")
	}

	timestamp, err := strconv.ParseInt(cmd.Args[2], 10, 64)
	if err != nil {
		return protocol.EncodeError("ERR invalid timestamp")
	}
	// Past timestamps are not applied; the key stays as-is.
	if timestamp <= time.Now().Unix() {
		return protocol.EncodeInteger(0)
	}

	applied := h.store.Expire(cmd.Args[1], time.Unix(timestamp, 0))
	if applied {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleTTL(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("ttl")
	}
	return protocol.EncodeInteger64(h.store.TTL(cmd.Args[1]))
}

func (h *CommandHandler) handlePTTL(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("pttl")
	}
	return protocol.EncodeInteger64(h.store.PTTL(cmd.Args[1]))
}

func (h *CommandHandler) handlePersist(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("persist")
	}
	if h.store.Persist(cmd.Args[1]) {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleType(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("type")
	}
	return protocol.EncodeSimpleString(h.store.Type(cmd.Args[1]))
}
