package rdb

import (
	"bytes"
	"crypto/md5"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"minired/internal/storage"
)

// File format: magic "REDIS", 4-byte version, optional 16-byte MD5 over
// the payload, payload. The payload is a JSON document, gzipped when
// compression is on; the digest covers the bytes as written (post
// compression).
const (
	MagicString = "REDIS"
	Version     = "0001"

	checksumSize = md5.Size
)

// SavedEntry is the serialized form of one key.
type SavedEntry struct {
	Type      string            `json:"type"`
	String    string            `json:"string,omitempty"`
	Items     []string          `json:"items,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Members   []string          `json:"members,omitempty"`
	ExpiresAt *int64            `json:"expires_at_ms,omitempty"`
}

// Metadata describes the snapshot as a whole.
type Metadata struct {
	CreatedAt int64 `json:"created_at"`
	KeyCount  int   `json:"key_count"`
}

type fileState struct {
	Keys     map[string]SavedEntry `json:"keys"`
	Metadata Metadata              `json:"metadata"`
}

// Handler reads and writes snapshot files.
type Handler struct {
	filepath    string
	compression bool
	checksum    bool

	lastSaveTime time.Time
}

// NewHandler creates a handler for the given snapshot path.
func NewHandler(filepath string, compression, checksum bool) *Handler {
	return &Handler{
		filepath:    filepath,
		compression: compression,
		checksum:    checksum,
	}
}

// Save serializes the materialized view to a temporary sibling and
// atomically renames it over the live file.
func (h *Handler) Save(snapshot map[string]storage.SnapshotEntry) error {
	data, err := h.Serialize(snapshot)
	if err != nil {
		return err
	}

	tempPath := h.filepath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write RDB temp file")
	}
	if err := os.Rename(tempPath, h.filepath); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace RDB file")
	}

	h.lastSaveTime = time.Now()
	return nil
}

// SaveTo writes the snapshot to an explicit staging path before renaming
// it over the live file. Background saves stage under the temp directory.
func (h *Handler) SaveTo(tempPath string, snapshot map[string]storage.SnapshotEntry) error {
	data, err := h.Serialize(snapshot)
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write RDB temp file")
	}
	if err := os.Rename(tempPath, h.filepath); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace RDB file")
	}

	h.lastSaveTime = time.Now()
	return nil
}

// Serialize renders the full file image for a snapshot.
func (h *Handler) Serialize(snapshot map[string]storage.SnapshotEntry) ([]byte, error) {
	state := fileState{
		Keys: make(map[string]SavedEntry, len(snapshot)),
		Metadata: Metadata{
			CreatedAt: time.Now().Unix(),
			KeyCount:  len(snapshot),
		},
	}

	for key, entry := range snapshot {
		saved := SavedEntry{Type: entry.Type.Name()}
		switch entry.Type {
		case storage.StringType:
			saved.String = entry.String
		case storage.ListType:
			saved.Items = entry.Items
		case storage.HashType:
			saved.Fields = entry.Fields
		case storage.SetType:
			saved.Members = entry.Members
		}
		if entry.ExpiresAt != nil {
			ms := entry.ExpiresAt.UnixMilli()
			saved.ExpiresAt = &ms
		}
		state.Keys[key] = saved
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize RDB payload")
	}

	if h.compression {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(payload); err != nil {
			return nil, errors.Wrap(err, "failed to compress RDB payload")
		}
		if err := gz.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to compress RDB payload")
		}
		payload = buf.Bytes()
	}

	out := make([]byte, 0, len(MagicString)+len(Version)+checksumSize+len(payload))
	out = append(out, MagicString...)
	out = append(out, Version...)
	if h.checksum {
		digest := md5.Sum(payload)
		out = append(out, digest[:]...)
	}
	out = append(out, payload...)
	return out, nil
}

// LastSaveTime returns the time of the last successful save.
func (h *Handler) LastSaveTime() time.Time {
	return h.lastSaveTime
}

// FileExists reports whether a snapshot file is present.
func (h *Handler) FileExists() bool {
	_, err := os.Stat(h.filepath)
	return err == nil
}

// FileSize returns the snapshot file size, 0 when absent.
func (h *Handler) FileSize() int64 {
	info, err := os.Stat(h.filepath)
	if err != nil {
		return 0
	}
	return info.Size()
}
