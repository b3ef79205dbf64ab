package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one parsed client request: Args[0] is the verb, the rest are
// its arguments.
type Command struct {
	Args []string
}

// ParseLine parses one inline command line. The wire framing is line based:
// whitespace-split tokens, no embedded binary.
func ParseLine(line string) (*Command, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return &Command{Args: args}, nil
}

func EncodeSimpleString(s string) []byte {
	return []byte(fmt.Sprintf("+%s\r\n", s))
}

func EncodeError(s string) []byte {
	return []byte(fmt.Sprintf("-%s\r\n", s))
}

func EncodeInteger(i int) []byte {
	return []byte(fmt.Sprintf(":%d\r\n", i))
}

func EncodeInteger64(i int64) []byte {
	return []byte(fmt.Sprintf(":%d\r\n", i))
}

func EncodeBulkString(s string) []byte {
	return []byte(fmt.Sprintf("$%d\r\n%s\r\n", len(s), s))
}

func EncodeNullBulkString() []byte {
	return []byte("$-1\r\n")
}

func EncodeArray(items []string) []byte {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(strconv.Itoa(len(items)))
	b.WriteString("\r\n")
	for _, item := range items {
		b.WriteString("$")
		b.WriteString(strconv.Itoa(len(item)))
		b.WriteString("\r\n")
		b.WriteString(item)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

// EncodeInterfaceArray encodes a mixed array: nil becomes a null bulk,
// strings become bulk strings, ints become integers. Used by HMGET (null
// holes) and PUBSUB NUMSUB (channel/count pairs).
func EncodeInterfaceArray(items []interface{}) []byte {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(strconv.Itoa(len(items)))
	b.WriteString("\r\n")
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			b.WriteString("$-1\r\n")
		case string:
			b.WriteString("$")
			b.WriteString(strconv.Itoa(len(v)))
			b.WriteString("\r\n")
			b.WriteString(v)
			b.WriteString("\r\n")
		case int:
			b.WriteString(":")
			b.WriteString(strconv.Itoa(v))
			b.WriteString("\r\n")
		case int64:
			b.WriteString(":")
			b.WriteString(strconv.FormatInt(v, 10))
			b.WriteString("\r\n")
		default:
			s := fmt.Sprintf("%v", v)
			b.WriteString("$")
			b.WriteString(strconv.Itoa(len(s)))
			b.WriteString("\r\n")
			b.WriteString(s)
			b.WriteString("\r\n")
		}
	}
	return []byte(b.String())
}

// EncodeRawArray concatenates already-encoded replies under one array
// header. Subscribe confirmations are built this way.
func EncodeRawArray(items [][]byte) []byte {
	totalSize := len(fmt.Sprintf("*%d\r\n", len(items)))
	for _, item := range items {
		totalSize += len(item)
	}

	result := make([]byte, 0, totalSize)
	result = append(result, []byte(fmt.Sprintf("*%d\r\n", len(items)))...)
	for _, item := range items {
		result = append(result, item...)
	}
	return result
}
