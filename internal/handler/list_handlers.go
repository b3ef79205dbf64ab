package handler

import (
	"strconv"

	"minired/internal/protocol"
)

func (h *CommandHandler) handleLPush(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("lpush")
	}

	length, err := h.store.LPush(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(length)
}

func (h *CommandHandler) handleRPush(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("rpush")
	}

	length, err := h.store.RPush(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(length)
}

func (h *CommandHandler) handleLPop(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("lpop")
	}

	value, ok, err := h.store.LPop(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(value)
}

func (h *CommandHandler) handleRPop(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("rpop")
	}

	value, ok, err := h.store.RPop(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(value)
}

func (h *CommandHandler) handleLRange(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 4 {
		return wrongArity("lrange")
	}

	start, err1 := strconv.Atoi(cmd.Args[2])
	stop, err2 := strconv.Atoi(cmd.Args[3])
	if err1 != nil || err2 != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	items, err := h.store.LRange(cmd.Args[1], start, stop)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(items)
}

func (h *CommandHandler) handleLLen(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("llen")
	}

	length, err := h.store.LLen(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(length)
}

func (h *CommandHandler) handleLIndex(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("lindex")
	}

	index, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	value, ok, err := h.store.LIndex(cmd.Args[1], index)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return protocol.EncodeNullBulkString()
	}
	return protocol.EncodeBulkString(value)
}

func (h *CommandHandler) handleLSet(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 4 {
		return wrongArity("lset")
	}

	index, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		return protocol.EncodeError("ERR value is not an integer or out of range")
	}

	if err := h.store.LSet(cmd.Args[1], index, cmd.Args[3]); err != nil {
		return errorReply(err)
	}
	return protocol.EncodeSimpleString("OK")
}
