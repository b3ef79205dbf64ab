package aof

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record is one parsed log line.
type Record struct {
	Timestamp int64
	Command   string
	Args      []string
}

// Reader iterates the text log line by line.
type Reader struct {
	filepath string
	file     *os.File
	scanner  *bufio.Scanner
}

// NewReader opens the log for replay. A missing file returns (nil, nil):
// first startup.
func NewReader(filepath string) (*Reader, error) {
	file, err := os.Open(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to open AOF file")
	}

	return &Reader{
		filepath: filepath,
		file:     file,
		scanner:  bufio.NewScanner(file),
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ParseRecord parses one "<ts> <CMD> <args...>" line. Blank lines parse to
// nil without error; malformed lines return an error so replay can skip
// them.
func ParseRecord(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, errors.Errorf("truncated record: %q", line)
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, errors.Errorf("invalid timestamp in record: %q", line)
	}

	return &Record{
		Timestamp: ts,
		Command:   strings.ToUpper(fields[1]),
		Args:      fields[2:],
	}, nil
}

// LoadAll reads every parseable record, skipping malformed lines. The
// number of skipped lines comes back with the records.
func (r *Reader) LoadAll() ([]*Record, int, error) {
	if r == nil {
		return nil, 0, nil
	}

	records := make([]*Record, 0, 256)
	skipped := 0
	for r.scanner.Scan() {
		record, err := ParseRecord(r.scanner.Text())
		if err != nil {
			skipped++
			continue
		}
		if record == nil {
			continue
		}
		records = append(records, record)
	}
	if err := r.scanner.Err(); err != nil {
		return records, skipped, errors.Wrap(err, "error reading AOF file")
	}
	return records, skipped, nil
}
