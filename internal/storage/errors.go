package storage

import "errors"

var (
	ErrWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNoSuchKey       = errors.New("ERR no such key")
	ErrIndexOutOfRange = errors.New("ERR index out of range")
	ErrWrongNumArgs    = errors.New("ERR wrong number of arguments for 'hset' command")
)
