package handler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"minired/internal/protocol"
)

const serverVersion = "1.0.0"

// handleInfo composes a human-readable report from live counters and
// persistence statistics.
func (h *CommandHandler) handleInfo(client *Client, cmd *protocol.Command) []byte {
	var b strings.Builder

	b.WriteString("# server\r\n")
	fmt.Fprintf(&b, "server_version:%s\r\n", serverVersion)
	fmt.Fprintf(&b, "mode:standalone\r\n")
	fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", int64(time.Since(h.startTime).Seconds()))
	b.WriteString("\r\n")

	b.WriteString("# stats\r\n")
	fmt.Fprintf(&b, "total_commands_processed:%d\r\n", h.commandCount)
	fmt.Fprintf(&b, "pubsub_channels:%d\r\n", h.store.PubSub.ActiveChannels())
	fmt.Fprintf(&b, "pubsub_messages_published:%d\r\n", h.store.PubSub.TotalPublished())
	b.WriteString("\r\n")

	b.WriteString("# memory\r\n")
	fmt.Fprintf(&b, "used_memory:%d\r\n", h.store.MemoryUsage())
	fmt.Fprintf(&b, "used_memory_human:%s\r\n", formatBytes(h.store.MemoryUsage()))
	fmt.Fprintf(&b, "max_memory_usage:%d\r\n", h.cfg.MaxMemoryUsage)
	if rss, ok := processRSS(); ok {
		fmt.Fprintf(&b, "process_rss:%d\r\n", rss)
	}
	b.WriteString("\r\n")

	b.WriteString("# keyspace\r\n")
	fmt.Fprintf(&b, "db0:keys=%d,expires=0,avg_ttl=0\r\n", len(h.store.Keys("*")))
	b.WriteString("\r\n")

	if h.persist != nil {
		stats := h.persist.GetStats()
		b.WriteString("# persistence\r\n")
		fmt.Fprintf(&b, "aof_enabled:%d\r\n", boolToInt(stats.AOFEnabled))
		fmt.Fprintf(&b, "rdb_enabled:%d\r\n", boolToInt(stats.RDBEnabled))
		fmt.Fprintf(&b, "rdb_changes_since_last_save:%d\r\n", stats.ChangesSinceSave)
		fmt.Fprintf(&b, "rdb_last_save_time:%d\r\n", stats.LastSaveTime)
		if stats.AOFEnabled {
			fmt.Fprintf(&b, "aof_filename:%s\r\n", stats.AOF.FilePath)
			fmt.Fprintf(&b, "aof_sync_policy:%s\r\n", stats.AOF.SyncPolicy)
			fmt.Fprintf(&b, "aof_total_writes:%d\r\n", stats.AOF.TotalWrites)
			fmt.Fprintf(&b, "aof_last_sync_time:%d\r\n", stats.AOF.LastSync.Unix())
		}
		if err := h.persist.LastBackgroundError(); err != nil {
			fmt.Fprintf(&b, "last_bgsave_status:err\r\n")
		} else {
			fmt.Fprintf(&b, "last_bgsave_status:ok\r\n")
		}
		b.WriteString("\r\n")
	}

	typeStats := h.store.TypeStats()
	b.WriteString("# types\r\n")
	fmt.Fprintf(&b, "strings:%d\r\n", typeStats["string"])
	fmt.Fprintf(&b, "lists:%d\r\n", typeStats["list"])
	fmt.Fprintf(&b, "sets:%d\r\n", typeStats["set"])
	fmt.Fprintf(&b, "hashes:%d\r\n", typeStats["hash"])

	return protocol.EncodeBulkString(b.String())
}

func processRSS() (uint64, bool) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, false
	}
	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		return 0, false
	}
	return mem.RSS, true
}

func formatBytes(n int64) string {
	value := float64(n)
	for _, unit := range []string{"B", "K", "M", "G"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f%s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1fT", value)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
