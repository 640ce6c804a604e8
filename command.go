// command.go: command dispatch — name lookup, argument shaping, replies
//
// A request is an array of bulk strings: the command name followed by its
// arguments. Lookup is case-insensitive. Each handler validates its own
// argument count and writes exactly one reply frame.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"fmt"
	"strings"
)

// Fixed wire-level error strings.
const (
	replyWrongType      = "WRONGTYPE Operation against a key holding the wrong kind of value"
	replyNotInteger     = "ERR value is not an integer or out of range"
	replyInvalidCommand = "ERR invalid command format"
	replySaveFailed     = "ERR failed to save database"
)

type commandFunc func(s *Server, args []string, reply []byte) []byte

var commandTable = map[string]commandFunc{
	"PING":     (*Server).cmdPing,
	"SET":      (*Server).cmdSet,
	"GET":      (*Server).cmdGet,
	"DEL":      (*Server).cmdDel,
	"EXISTS":   (*Server).cmdExists,
	"INCR":     (*Server).cmdIncr,
	"DECR":     (*Server).cmdDecr,
	"MSET":     (*Server).cmdMSet,
	"MGET":     (*Server).cmdMGet,
	"LPUSH":    (*Server).cmdLPush,
	"RPUSH":    (*Server).cmdRPush,
	"LPOP":     (*Server).cmdLPop,
	"RPOP":     (*Server).cmdRPop,
	"LLEN":     (*Server).cmdLLen,
	"LRANGE":   (*Server).cmdLRange,
	"EXPIRE":   (*Server).cmdExpire,
	"TTL":      (*Server).cmdTTL,
	"PERSIST":  (*Server).cmdPersist,
	"DBSIZE":   (*Server).cmdDBSize,
	"FLUSHDB":  (*Server).cmdFlushDB,
	"INFO":     (*Server).cmdInfo,
	"SAVE":     (*Server).cmdSave,
	"SHUTDOWN": (*Server).cmdShutdown,
}

func appendWrongArgCount(reply []byte, name string) []byte {
	return AppendError(reply, fmt.Sprintf("ERR wrong number of arguments for '%s' command", name))
}

// execute dispatches one parsed request and appends its reply.
func (s *Server) execute(req *Value, reply []byte) []byte {
	if req == nil || req.Type != TypeArray || len(req.Items) == 0 {
		return AppendError(reply, replyInvalidCommand)
	}

	args := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Type != TypeBulkString && item.Type != TypeSimpleString {
			return AppendError(reply, replyInvalidCommand)
		}
		args[i] = item.Str
	}

	fn, ok := commandTable[strings.ToUpper(args[0])]
	if !ok {
		return AppendError(reply, fmt.Sprintf("ERR unknown command '%s'", args[0]))
	}

	s.commands.Add(1)
	return fn(s, args, reply)
}

func (s *Server) cmdPing(args []string, reply []byte) []byte {
	if len(args) > 1 {
		return AppendBulkString(reply, args[1])
	}
	return AppendSimpleString(reply, "PONG")
}

func (s *Server) cmdSet(args []string, reply []byte) []byte {
	if len(args) < 3 {
		return appendWrongArgCount(reply, "SET")
	}
	s.db.Set(args[1], args[2])

	// Trailing option pairs: only EX <seconds> is recognized.
	for i := 3; i+1 < len(args); i += 2 {
		if strings.EqualFold(args[i], "EX") {
			if secs := parseIntPrefix([]byte(args[i+1])); secs > 0 {
				s.db.Expire(args[1], secs)
			}
		}
	}
	return AppendSimpleString(reply, "OK")
}

func (s *Server) cmdGet(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "GET")
	}
	val, ok, err := s.db.Get(args[1])
	if err != nil {
		return AppendError(reply, replyWrongType)
	}
	if !ok {
		return AppendNil(reply)
	}
	return AppendBulkString(reply, val)
}

func (s *Server) cmdDel(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "DEL")
	}
	var deleted int64
	for _, key := range args[1:] {
		if s.db.Del(key) {
			deleted++
		}
	}
	return AppendInteger(reply, deleted)
}

func (s *Server) cmdExists(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "EXISTS")
	}
	if s.db.Exists(args[1]) {
		return AppendInteger(reply, 1)
	}
	return AppendInteger(reply, 0)
}

func (s *Server) cmdIncr(args []string, reply []byte) []byte {
	return s.incrBy(args, reply, "INCR", 1)
}

func (s *Server) cmdDecr(args []string, reply []byte) []byte {
	return s.incrBy(args, reply, "DECR", -1)
}

func (s *Server) incrBy(args []string, reply []byte, name string, delta int64) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, name)
	}
	val, err := s.db.IncrBy(args[1], delta)
	if err != nil {
		return AppendError(reply, replyNotInteger)
	}
	return AppendInteger(reply, val)
}

func (s *Server) cmdMSet(args []string, reply []byte) []byte {
	if len(args) < 3 || (len(args)-1)%2 != 0 {
		return appendWrongArgCount(reply, "MSET")
	}
	for i := 1; i+1 < len(args); i += 2 {
		s.db.Set(args[i], args[i+1])
	}
	return AppendSimpleString(reply, "OK")
}

func (s *Server) cmdMGet(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "MGET")
	}
	reply = AppendArrayHeader(reply, len(args)-1)
	for _, key := range args[1:] {
		val, ok, err := s.db.Get(key)
		if err != nil || !ok {
			reply = AppendNil(reply)
			continue
		}
		reply = AppendBulkString(reply, val)
	}
	return reply
}

func (s *Server) cmdLPush(args []string, reply []byte) []byte {
	if len(args) < 3 {
		return appendWrongArgCount(reply, "LPUSH")
	}
	length, err := s.db.LPush(args[1], args[2:]...)
	if err != nil {
		return AppendError(reply, replyWrongType)
	}
	return AppendInteger(reply, int64(length))
}

func (s *Server) cmdRPush(args []string, reply []byte) []byte {
	if len(args) < 3 {
		return appendWrongArgCount(reply, "RPUSH")
	}
	length, err := s.db.RPush(args[1], args[2:]...)
	if err != nil {
		return AppendError(reply, replyWrongType)
	}
	return AppendInteger(reply, int64(length))
}

func (s *Server) cmdLPop(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "LPOP")
	}
	val, ok := s.db.LPop(args[1])
	if !ok {
		return AppendNil(reply)
	}
	return AppendBulkString(reply, val)
}

func (s *Server) cmdRPop(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "RPOP")
	}
	val, ok := s.db.RPop(args[1])
	if !ok {
		return AppendNil(reply)
	}
	return AppendBulkString(reply, val)
}

func (s *Server) cmdLLen(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "LLEN")
	}
	length, err := s.db.LLen(args[1])
	if err != nil {
		return AppendError(reply, replyWrongType)
	}
	return AppendInteger(reply, length)
}

func (s *Server) cmdLRange(args []string, reply []byte) []byte {
	if len(args) < 4 {
		return appendWrongArgCount(reply, "LRANGE")
	}
	start := int(parseIntPrefix([]byte(args[2])))
	stop := int(parseIntPrefix([]byte(args[3])))
	items := s.db.LRange(args[1], start, stop)

	reply = AppendArrayHeader(reply, len(items))
	for _, item := range items {
		reply = AppendBulkString(reply, item)
	}
	return reply
}

func (s *Server) cmdExpire(args []string, reply []byte) []byte {
	if len(args) < 3 {
		return appendWrongArgCount(reply, "EXPIRE")
	}
	secs := parseIntPrefix([]byte(args[2]))
	if s.db.Expire(args[1], secs) {
		return AppendInteger(reply, 1)
	}
	return AppendInteger(reply, 0)
}

func (s *Server) cmdTTL(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "TTL")
	}
	return AppendInteger(reply, s.db.TTL(args[1]))
}

func (s *Server) cmdPersist(args []string, reply []byte) []byte {
	if len(args) < 2 {
		return appendWrongArgCount(reply, "PERSIST")
	}
	if s.db.Persist(args[1]) {
		return AppendInteger(reply, 1)
	}
	return AppendInteger(reply, 0)
}

func (s *Server) cmdDBSize(args []string, reply []byte) []byte {
	return AppendInteger(reply, int64(s.db.Len()))
}

func (s *Server) cmdFlushDB(args []string, reply []byte) []byte {
	s.db.Flush()
	return AppendSimpleString(reply, "OK")
}

func (s *Server) cmdInfo(args []string, reply []byte) []byte {
	info := fmt.Sprintf(
		"# Server\r\ninmemdb_version:%s\r\n# Keyspace\r\ndb0:keys=%d\r\n",
		Version, s.db.Len())
	return AppendBulkString(reply, info)
}

func (s *Server) cmdSave(args []string, reply []byte) []byte {
	if err := s.db.SaveSnapshot(s.SnapshotPath()); err != nil {
		s.log.Error("snapshot save failed", "error", err)
		return AppendError(reply, replySaveFailed)
	}
	return AppendSimpleString(reply, "OK")
}

func (s *Server) cmdShutdown(args []string, reply []byte) []byte {
	if err := s.db.SaveSnapshot(s.SnapshotPath()); err != nil {
		s.log.Error("snapshot save failed during shutdown", "error", err)
	}
	s.stopping.Store(true)
	return AppendSimpleString(reply, "OK")
}
