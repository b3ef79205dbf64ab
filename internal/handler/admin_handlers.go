package handler

import (
	"fmt"
	"strconv"
	"strings"

	"minired/internal/protocol"
)

func (h *CommandHandler) handleSave(client *Client, cmd *protocol.Command) []byte {
	if h.persist == nil || !h.persist.Enabled() {
		return protocol.EncodeError("ERR persistence not enabled")
	}

	if err := h.persist.SaveSnapshot(h.store.Snapshot()); err != nil {
		return protocol.EncodeError(fmt.Sprintf("ERR save failed: %v", err))
	}
	return protocol.EncodeSimpleString("OK")
}

func (h *CommandHandler) handleBGSave(client *Client, cmd *protocol.Command) []byte {
	if h.persist == nil || !h.persist.Enabled() {
		return protocol.EncodeError("ERR persistence not enabled")
	}

	if !h.persist.BackgroundSave(h.store.Snapshot()) {
		return protocol.EncodeError("ERR background save failed to start")
	}
	return protocol.EncodeSimpleString("Background saving started")
}

func (h *CommandHandler) handleBGRewriteAOF(client *Client, cmd *protocol.Command) []byte {
	if h.persist == nil || !h.persist.AOFEnabled() {
		return protocol.EncodeError("ERR persistence not enabled")
	}

	if err := h.persist.RewriteAOF(h.store.Snapshot()); err != nil {
		return protocol.EncodeError(fmt.Sprintf("ERR aof rewrite failed: %v", err))
	}
	return protocol.EncodeSimpleString("Background AOF rewrite started")
}

func (h *CommandHandler) handleLastSave(client *Client, cmd *protocol.Command) []byte {
	if h.persist == nil || !h.persist.Enabled() {
		return protocol.EncodeInteger(0)
	}
	return protocol.EncodeInteger64(h.persist.LastSaveTime().Unix())
}

func (h *CommandHandler) handleConfig(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("config")
	}

	switch strings.ToUpper(cmd.Args[1]) {
	case "GET":
		if len(cmd.Args) != 3 {
			return protocol.EncodeError("ERR wrong number of arguments for 'config get' command")
		}
		param := strings.ToLower(cmd.Args[2])
		if value, ok := h.cfg.GetParam(param); ok {
			return protocol.EncodeArray([]string{param, value})
		}
		return protocol.EncodeArray([]string{})

	case "SET":
		if len(cmd.Args) != 4 {
			return protocol.EncodeError("ERR wrong number of arguments for 'config set' command")
		}
		if err := h.cfg.SetParam(cmd.Args[2], cmd.Args[3]); err != nil {
			return protocol.EncodeError(fmt.Sprintf("ERR %v", err))
		}
		return protocol.EncodeSimpleString("OK")

	default:
		return protocol.EncodeError(fmt.Sprintf("ERR unknown CONFIG subcommand '%s'", cmd.Args[1]))
	}
}

func (h *CommandHandler) handleDebug(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("debug")
	}

	switch strings.ToUpper(cmd.Args[1]) {
	case "RELOAD":
		if h.persist == nil || !h.persist.Enabled() {
			return protocol.EncodeError("ERR persistence not enabled")
		}
		h.store.Flush()
		if !h.persist.Recover(h.store, h.Replay) {
			return protocol.EncodeError("ERR reload failed")
		}
		return protocol.EncodeSimpleString("OK")

	default:
		return protocol.EncodeError(fmt.Sprintf("ERR unknown DEBUG subcommand '%s'", cmd.Args[1]))
	}
}

func (h *CommandHandler) handleSlowLog(client *Client, cmd *protocol.Command) []byte {
	if len(cmd.Args) < 2 {
		return wrongArity("slowlog")
	}

	switch strings.ToUpper(cmd.Args[1]) {
	case "GET":
		count := 10
		if len(cmd.Args) >= 3 {
			n, err := strconv.Atoi(cmd.Args[2])
			if err != nil {
				return protocol.EncodeError("ERR value is not an integer or out of range")
			}
			count = n
		}
		entries := h.slowLog.Get(count)
		items := make([][]byte, len(entries))
		for i, entry := range entries {
			cmdLine := entry.Command
			if len(entry.Args) > 0 {
				cmdLine += " " + strings.Join(entry.Args, " ")
			}
			items[i] = protocol.EncodeRawArray([][]byte{
				protocol.EncodeInteger64(entry.ID),
				protocol.EncodeInteger64(entry.Timestamp.Unix()),
				protocol.EncodeInteger64(entry.Duration.Microseconds()),
				protocol.EncodeBulkString(cmdLine),
			})
		}
		return protocol.EncodeRawArray(items)

	case "LEN":
		return protocol.EncodeInteger(h.slowLog.Len())

	case "RESET":
		h.slowLog.Reset()
		return protocol.EncodeSimpleString("OK")

	default:
		return protocol.EncodeError(fmt.Sprintf("ERR unknown SLOWLOG subcommand '%s'", cmd.Args[1]))
	}
}
