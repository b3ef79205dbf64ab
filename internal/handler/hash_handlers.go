package handler

import (
	"minired/internal/protocol"
)

func (h *CommandHandler) handleHSet(client *Client, cmd *protocol.Command) []byte {
	// key plus one or more field/value pairs
	if len(cmd.Args) < 4 || len(cmd.Args)%2 != 0 {
		return wrongArity("hset")
	}

	newFields, err := h.store.HSet(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(newFields)
}

func (h *CommandHandler) handleHGet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("hget")
	}

	value, exists, err := h.store.HGet(cmd.Args[1], cmd.Args[2])
	if err != nil {
		return errorReply(err)
	}
	if !exists {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(value)
}

func (h *CommandHandler) handleHMSet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 4 || len(cmd.Args)%2 != 0 {
		return wrongArity("hmset")
	}

	if _, err := h.store.HSet(cmd.Args[1], cmd.Args[2:]...); err != nil {
		return errorReply(err)
	}
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleHMGet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("hmget")
	}

	values, err := h.store.HMGet(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInterfaceArray(values)
}

func (h *CommandHandler) handleHGetAll(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("hgetall")
	}

	pairs, err := h.store.HGetAll(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(pairs)
}

func (h *CommandHandler) handleHDel(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("hdel")
	}

	deleted, err := h.store.HDel(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(deleted)
}

func (h *CommandHandler) handleHExists(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("hexists")
	}

	exists, err := h.store.HExists(cmd.Args[1], cmd.Args[2])
	if err != nil {
		return errorReply(err)
	}
	if exists {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleHLen(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("hlen")
	}

	length, err := h.store.HLen(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(length)
}
