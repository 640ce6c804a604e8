// server.go: TCP server — accept loop, per-connection framing, shutdown
//
// One goroutine serves each connection: it reads into a fixed buffer,
// parses complete frames, executes them against the keyspace and writes
// the replies in request order. A background ticker drives the expiry
// sweep; the sweep itself rate-limits.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// sweepTick is how often the background sweep is offered a chance to run.
const sweepTick = 50 * time.Millisecond

// ServerStats provides counters about server activity.
type ServerStats struct {
	// ConnectionsAccepted counts clients admitted past the cap check.
	ConnectionsAccepted uint64

	// ConnectionsRejected counts clients closed for exceeding MaxClients.
	ConnectionsRejected uint64

	// CommandsProcessed counts dispatched commands, valid or not.
	CommandsProcessed uint64

	// ActiveClients is the current number of open connections.
	ActiveClients int
}

// Server accepts connections and serves the command protocol over them.
type Server struct {
	cfg Config
	log Logger
	db  *DB

	mu           sync.Mutex
	ln           net.Listener
	conns        map[net.Conn]struct{}
	snapshotPath string

	quit     chan struct{}
	stopOnce sync.Once
	stopping atomic.Bool
	wg       sync.WaitGroup

	accepted atomic.Uint64
	rejected atomic.Uint64
	commands atomic.Uint64
}

// NewServer creates a server with its own empty keyspace. The config is
// validated and normalized; see Config.Validate.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db := NewDB(cfg.TimeProvider)
	db.SetSweepPolicy(cfg.SweepInterval, cfg.SweepSamples)
	return &Server{
		cfg:          cfg,
		log:          cfg.Logger,
		db:           db,
		conns:        make(map[net.Conn]struct{}),
		snapshotPath: cfg.SnapshotPath,
		quit:         make(chan struct{}),
	}, nil
}

// DB exposes the server's keyspace, mainly for snapshot load on startup
// and for tests.
func (s *Server) DB() *DB {
	return s.db
}

// SnapshotPath returns the current snapshot target path.
func (s *Server) SnapshotPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotPath
}

// SetSnapshotPath changes where SAVE and SHUTDOWN write the snapshot.
func (s *Server) SetSnapshotPath(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotPath = path
}

// Addr returns the listener address, or nil before ListenAndServe binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats returns a snapshot of the activity counters.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	active := len(s.conns)
	s.mu.Unlock()
	return ServerStats{
		ConnectionsAccepted: s.accepted.Load(),
		ConnectionsRejected: s.rejected.Load(),
		CommandsProcessed:   s.commands.Load(),
		ActiveClients:       active,
	}
}

// ListenAndServe binds the configured port on all interfaces and serves
// until Stop is called or a SHUTDOWN command arrives. It returns nil on a
// clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return NewErrListenFailed(s.cfg.Port, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.sweepLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.wg.Wait()
				s.log.Info("server stopped")
				return nil
			default:
				s.log.Error("accept failed", "error", err)
				s.Stop()
				s.wg.Wait()
				return err
			}
		}

		if !s.addConn(conn) {
			s.rejected.Add(1)
			conn.Close()
			continue
		}
		s.accepted.Add(1)

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Stop shuts the server down: the listener and every connection are
// closed and ListenAndServe returns. Safe to call more than once and
// from command handlers.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.quit)

		s.mu.Lock()
		if s.ln != nil {
			s.ln.Close()
		}
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
}

func (s *Server) addConn(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	if len(s.conns) >= s.cfg.MaxClients {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) removeConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
}

// serveConn runs the per-connection read/parse/execute/write loop.
func (s *Server) serveConn(c net.Conn) {
	defer s.wg.Done()
	defer s.removeConn(c)

	buf := make([]byte, s.cfg.ReadBufferSize)
	used := 0
	var reply []byte

	for {
		n, err := c.Read(buf[used:])
		if n > 0 {
			used += n
			reply = reply[:0]

			for {
				consumed, req := Parse(buf[:used])
				if consumed == 0 {
					break
				}
				if consumed < 0 {
					s.log.Warn("malformed request, dropping client",
						"remote", c.RemoteAddr().String())
					return
				}
				reply = s.execute(req, reply)
				copy(buf, buf[consumed:used])
				used -= consumed
			}

			if len(reply) > 0 {
				if _, werr := c.Write(reply); werr != nil {
					return
				}
			}

			if s.stopping.Load() {
				s.Stop()
				return
			}

			if used == len(buf) {
				// A single frame larger than the read buffer can never
				// complete; cut the client loose.
				s.log.Warn("request exceeds read buffer, dropping client",
					"remote", c.RemoteAddr().String(), "limit", len(buf))
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// sweepLoop ticks the expiry sweep until shutdown. The sweep enforces its
// own interval, so the tick just bounds sweep latency.
func (s *Server) sweepLoop() {
	defer s.wg.Done()
	t := time.NewTicker(sweepTick)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.db.ExpireSweep()
		}
	}
}
