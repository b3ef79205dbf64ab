package handler

import (
	"minired/internal/protocol"
)

func (h *CommandHandler) handleSAdd(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("sadd")
	}

	added, err := h.store.SAdd(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(added)
}

func (h *CommandHandler) handleSRem(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("srem")
	}

	removed, err := h.store.SRem(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(removed)
}

func (h *CommandHandler) handleSMembers(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("smembers")
	}

	members, err := h.store.SMembers(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(members)
}

func (h *CommandHandler) handleSIsMember(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 3 {
		return wrongArity("sismember")
	}

	isMember, err := h.store.SIsMember(cmd.Args[1], cmd.Args[2])
	if err != nil {
		return errorReply(err)
	}
	if isMember {
		return protocol.EncodeInteger(1)
	}
	return protocol.EncodeInteger(0)
}

func (h *CommandHandler) handleSCard(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) != 2 {
		return wrongArity("scard")
	}

	card, err := h.store.SCard(cmd.Args[1])
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(card)
}

func (h *CommandHandler) handleSInter(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("sinter")
	}

	members, err := h.store.SInter(cmd.Args[1:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(members)
}

func (h *CommandHandler) handleSUnion(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("sunion")
	}

	members, err := h.store.SUnion(cmd.Args[1:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(members)
}

func (h *CommandHandler) handleSDiff(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("sdiff")
	}

	members, err := h.store.SDiff(cmd.Args[1:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeArray(members)
}

func (h *CommandHandler) handleSInterStore(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("sinterstore")
	}

	card, err := h.store.SInterStore(cmd.Args[1], cmd.Args[2:]...)
	if err != nil {
		return errorReply(err)
	}
	return protocol.EncodeInteger(card)
}
