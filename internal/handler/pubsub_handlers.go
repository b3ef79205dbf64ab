package handler

import (
	"fmt"
	"strings"

	"minired/internal/protocol"
)

func (h *CommandHandler) handleSubscribe(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("subscribe")
	}
	if client == nil {
		return protocol.EncodeError("ERR no client context available")
	}

	results := h.store.PubSub.Subscribe(client.ID, client, cmd.Args[1:]...)

	// One confirmation array per channel, concatenated.
	confirmations := make([]byte, 0, len(results)*32)
	for _, res := range results {
		confirmation := protocol.EncodeRawArray([][]byte{
			protocol.EncodeBulkString("subscribe"),
			protocol.EncodeBulkString(res.Channel),
			protocol.EncodeInteger(res.Count),
		})
		confirmations = append(confirmations, confirmation...)
	}
	return confirmations
}

func (h *CommandHandler) handleUnsubscribe(client *Client, cmd *protocol.Command) []byte {
	if client == nil {
		return protocol.EncodeError("ERR no client context available")
	}

	results := h.store.PubSub.Unsubscribe(client.ID, cmd.Args[1:]...)
	if len(results) == 0 {
		return protocol.EncodeRawArray([][]byte{
			protocol.EncodeBulkString("unsubscribe"),
			protocol.EncodeNullBulkString(),
			protocol.EncodeInteger(0),
		})
	}

	confirmations := make([]byte, 0, len(results)*32)
	for _, res := range results {
		confirmation := protocol.EncodeRawArray([][]byte{
			protocol.EncodeBulkString("unsubscribe"),
			protocol.EncodeBulkString(res.Channel),
			protocol.EncodeInteger(res.Count),
		})
		confirmations = append(confirmations, confirmation...)
	}
	return confirmations
}

// PUBLISH joins the message tokens with spaces and strips one layer of
// surrounding quotes, a leftover of the line framing kept for client
// parity.
func (h *CommandHandler) handlePublish(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 3 {
		return wrongArity("publish")
	}

	channel := cmd.Args[1]
	message := strings.Join(cmd.Args[2:], " ")

	if len(message) >= 2 {
		if (strings.HasPrefix(message, `"`) && strings.HasSuffix(message, `"`)) ||
			(strings.HasPrefix(message, "'") && strings.HasSuffix(message, "'")) {
			message = message[1 : len(message)-1]
		}
	}

	delivered := h.store.PubSub.Publish(channel, message)
	if h.metrics != nil {
		h.metrics.MessagesPublished.Inc()
	}
	return protocol.EncodeInteger(delivered)
}

func (h *CommandHandler) handlePubSub(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("pubsub")
	}

	switch strings.ToUpper(cmd.Args[1]) {
	case "CHANNELS":
		pattern := ""
		if len(cmd.Args) > 2 {
			pattern = cmd.Args[2]
		}
		return protocol.EncodeArray(h.store.PubSub.Channels(pattern))

	case "NUMSUB":
		items := make([]interface{}, 0, (len(cmd.Args)-2)*2)
		for _, channel := range cmd.Args[2:] {
			items = append(items, channel, h.store.PubSub.NumSub(channel))
		}
		return protocol.EncodeInterfaceArray(items)

	case "NUMPAT":
		// Pattern subscriptions are not supported.
		return protocol.EncodeInteger(0)

	default:
		return protocol.EncodeError(fmt.Sprintf("ERR unknown PUBSUB subcommand '%s'", cmd.Args[1]))
	}
}
