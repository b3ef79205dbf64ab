package aof

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SyncPolicy determines when appended records are forced to disk.
type SyncPolicy int

const (
	// SyncAlways fsyncs after every write. Strongest durability, lowest
	// throughput.
	SyncAlways SyncPolicy = iota

	// SyncEverySecond lets writes buffer; the persistence tick fsyncs when
	// at least a second has passed since the last sync.
	SyncEverySecond

	// SyncNo relies on the OS page cache; data is synced only on graceful
	// shutdown.
	SyncNo
)

// ParsePolicy maps a config string to its policy.
func ParsePolicy(name string) SyncPolicy {
	switch name {
	case "always":
		return SyncAlways
	case "no":
		return SyncNo
	default:
		return SyncEverySecond
	}
}

// Name returns the config string for a policy.
func (p SyncPolicy) Name() string {
	switch p {
	case SyncAlways:
		return "always"
	case SyncEverySecond:
		return "everysec"
	case SyncNo:
		return "no"
	}
	return "unknown"
}

// Writer appends write commands to a text log. Each record is one line:
// "<unix_ts> <CMD_UPPER> <arg1> <arg2> ...\n". Arguments are space joined,
// which is lossless because the ingress framing is line based.
type Writer struct {
	filepath string
	policy   SyncPolicy
	file     *os.File
	writer   *bufio.Writer

	lastSync    time.Time
	totalWrites int64
	totalBytes  int64

	// lastErr holds a failed write or fsync until the next command boundary
	// reports it.
	lastErr error
}

// NewWriter opens (or creates) the log in append mode.
func NewWriter(filepath string, policy SyncPolicy) (*Writer, error) {
	file, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open AOF file")
	}

	return &Writer{
		filepath: filepath,
		policy:   policy,
		file:     file,
		writer:   bufio.NewWriterSize(file, 4096),
		lastSync: time.Now(),
	}, nil
}

// LogCommand appends one record. Under SyncAlways the record is flushed
// and fsynced before returning.
func (w *Writer) LogCommand(command string, args ...string) error {
	if err := w.TakeError(); err != nil {
		return err
	}

	record := FormatRecord(time.Now().Unix(), command, args)
	n, err := w.writer.WriteString(record)
	if err != nil {
		w.lastErr = errors.Wrap(err, "aof write failed")
		return w.TakeError()
	}
	w.totalWrites++
	w.totalBytes += int64(n)

	if w.policy == SyncAlways {
		if err := w.syncNow(); err != nil {
			return w.TakeError()
		}
	}
	return nil
}

// FormatRecord renders one log line.
func FormatRecord(ts int64, command string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("%d %s\n", ts, strings.ToUpper(command))
	}
	return fmt.Sprintf("%d %s %s\n", ts, strings.ToUpper(command), strings.Join(args, " "))
}

// MaybeSync is driven by the persistence tick: under everysec it flushes
// and fsyncs when a second has elapsed since the last sync.
func (w *Writer) MaybeSync() {
	if w.policy != SyncEverySecond {
		return
	}
	if time.Since(w.lastSync) < time.Second {
		return
	}
	if err := w.syncNow(); err != nil {
		log.Error().Err(err).Msg("aof periodic sync failed")
	}
}

// Sync forces a flush and fsync, used on shutdown.
func (w *Writer) Sync() error {
	return w.syncNow()
}

func (w *Writer) syncNow() error {
	if err := w.writer.Flush(); err != nil {
		w.lastErr = errors.Wrap(err, "aof flush failed")
		return w.lastErr
	}
	if err := w.file.Sync(); err != nil {
		w.lastErr = errors.Wrap(err, "aof fsync failed")
		return w.lastErr
	}
	w.lastSync = time.Now()
	return nil
}

// TakeError returns and clears the pending I/O error, so a background
// failure surfaces on the next command.
func (w *Writer) TakeError() error {
	err := w.lastErr
	w.lastErr = nil
	return err
}

// Close flushes, syncs and closes the log.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return errors.Wrap(err, "aof flush on close failed")
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "aof sync on close failed")
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, "aof close failed")
	}
	w.file = nil
	return nil
}

// Rewrite compacts the log: the snapshot commands are written to a
// temporary sibling which then atomically replaces the live log, and the
// writer reopens on the new file. The caller serializes Rewrite against
// LogCommand, so no live writes are lost.
func (w *Writer) Rewrite(commands [][]string) error {
	tempPath := w.filepath + ".rewrite.tmp"
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to create temp AOF file")
	}

	tempWriter := bufio.NewWriterSize(tempFile, 4096)
	now := time.Now().Unix()
	for _, cmd := range commands {
		record := FormatRecord(now, cmd[0], cmd[1:])
		if _, err := tempWriter.WriteString(record); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return errors.Wrap(err, "failed to write temp AOF")
		}
	}

	if err := tempWriter.Flush(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to flush temp AOF")
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to sync temp AOF")
	}
	tempFile.Close()

	// Quiesce the live writer, swap files, reopen.
	if err := w.writer.Flush(); err != nil {
		log.Warn().Err(err).Msg("flush before aof rewrite swap failed")
	}
	w.file.Close()

	if err := os.Rename(tempPath, w.filepath); err != nil {
		return errors.Wrap(err, "failed to replace AOF file")
	}

	file, err := os.OpenFile(w.filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to reopen AOF file")
	}
	w.file = file
	w.writer = bufio.NewWriterSize(file, 4096)
	w.totalBytes = 0
	return nil
}

// Stats is a read-only view of writer counters for INFO.
type Stats struct {
	TotalWrites int64
	TotalBytes  int64
	LastSync    time.Time
	FilePath    string
	SyncPolicy  string
}

// GetStats returns current writer statistics.
func (w *Writer) GetStats() Stats {
	return Stats{
		TotalWrites: w.totalWrites,
		TotalBytes:  w.totalBytes,
		LastSync:    w.lastSync,
		FilePath:    w.filepath,
		SyncPolicy:  w.policy.Name(),
	}
}
