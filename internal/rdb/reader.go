package rdb

import (
	"bytes"
	"crypto/md5"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"minired/internal/storage"
)

// LoadedEntry is one deserialized key with its reconstructed shape.
type LoadedEntry struct {
	Key   string
	Entry storage.SnapshotEntry
}

// Load reads, verifies and deserializes the snapshot file. Keys whose
// expiry already passed are dropped. A missing file returns (nil, nil).
func (h *Handler) Load() ([]LoadedEntry, error) {
	data, err := os.ReadFile(h.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read RDB file")
	}
	return h.Deserialize(data)
}

// Deserialize parses a full file image.
func (h *Handler) Deserialize(data []byte) ([]LoadedEntry, error) {
	header := MagicString + Version
	if !bytes.HasPrefix(data, []byte(header)) {
		return nil, errors.New("invalid RDB file format")
	}
	payload := data[len(header):]

	if h.checksum {
		if len(payload) < checksumSize {
			return nil, errors.New("RDB file truncated before checksum")
		}
		digest := payload[:checksumSize]
		payload = payload[checksumSize:]

		expected := md5.Sum(payload)
		if !bytes.Equal(digest, expected[:]) {
			return nil, errors.New("RDB checksum verification failed")
		}
	}

	if h.compression {
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err == nil {
			decompressed, err := io.ReadAll(gz)
			gz.Close()
			if err != nil {
				return nil, errors.Wrap(err, "failed to decompress RDB payload")
			}
			payload = decompressed
		}
		// A plain payload under a compression-enabled config is accepted
		// for files written before compression was turned on.
	}

	var state fileState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize RDB payload")
	}

	now := time.Now()
	entries := make([]LoadedEntry, 0, len(state.Keys))
	for key, saved := range state.Keys {
		entry := storage.SnapshotEntry{}
		switch saved.Type {
		case "string":
			entry.Type = storage.StringType
			entry.String = saved.String
		case "list":
			entry.Type = storage.ListType
			entry.Items = saved.Items
		case "hash":
			entry.Type = storage.HashType
			entry.Fields = saved.Fields
		case "set":
			entry.Type = storage.SetType
			entry.Members = saved.Members
		default:
			continue
		}

		if saved.ExpiresAt != nil {
			expiry := time.UnixMilli(*saved.ExpiresAt)
			if !now.Before(expiry) {
				continue
			}
			entry.ExpiresAt = &expiry
		}
		entries = append(entries, LoadedEntry{Key: key, Entry: entry})
	}
	return entries, nil
}
