// server_test.go: integration tests over real TCP connections
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startServer runs a server on an ephemeral port and returns its address
// plus a channel carrying ListenAndServe's result.
func startServer(t *testing.T, cfg Config) (*Server, string, chan error) {
	t.Helper()
	if cfg.SnapshotPath == "" || cfg.SnapshotPath == DefaultSnapshotPath {
		cfg.SnapshotPath = filepath.Join(t.TempDir(), "dump.rdb")
	}
	cfg.Port = 0

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(time.Millisecond)
	}
	t.Cleanup(srv.Stop)
	return srv, srv.Addr().String(), errCh
}

func dialServer(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendCommand frames args as an array of bulk strings and writes it.
func sendCommand(t *testing.T, conn net.Conn, args ...string) {
	t.Helper()
	req := AppendArrayHeader(nil, len(args))
	for _, a := range args {
		req = AppendBulkString(req, a)
	}
	if _, err := conn.Write(req); err != nil {
		t.Fatal(err)
	}
}

// readFrame accumulates bytes from conn until one frame parses.
func readFrame(t *testing.T, conn net.Conn, buf *[]byte) *Value {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	chunk := make([]byte, 4096)
	for {
		if len(*buf) > 0 {
			n, v := Parse(*buf)
			if n < 0 {
				t.Fatalf("malformed frame from server: %q", *buf)
			}
			if n > 0 {
				*buf = append((*buf)[:0], (*buf)[n:]...)
				return v
			}
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			*buf = append(*buf, chunk[:n]...)
			continue
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}
}

func TestServer_SetGetOverTCP(t *testing.T) {
	_, addr, _ := startServer(t, DefaultConfig())
	conn := dialServer(t, addr)
	var buf []byte

	sendCommand(t, conn, "SET", "hello", "world")
	if v := readFrame(t, conn, &buf); v.Type != TypeSimpleString || v.Str != "OK" {
		t.Errorf("SET reply: %+v", v)
	}

	sendCommand(t, conn, "GET", "hello")
	if v := readFrame(t, conn, &buf); v.Type != TypeBulkString || v.Str != "world" {
		t.Errorf("GET reply: %+v", v)
	}
}

func TestServer_Pipelining(t *testing.T) {
	_, addr, _ := startServer(t, DefaultConfig())
	conn := dialServer(t, addr)

	// Two concatenated requests in one write; replies arrive in order as
	// one stream.
	req := AppendArrayHeader(nil, 3)
	req = AppendBulkString(req, "SET")
	req = AppendBulkString(req, "a")
	req = AppendBulkString(req, "1")
	req = AppendArrayHeader(req, 2)
	req = AppendBulkString(req, "GET")
	req = AppendBulkString(req, "a")
	if _, err := conn.Write(req); err != nil {
		t.Fatal(err)
	}

	want := "+OK\r\n$1\r\n1\r\n"
	got := make([]byte, 0, len(want))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	chunk := make([]byte, 256)
	for len(got) < len(want) {
		n, err := conn.Read(chunk)
		if n > 0 {
			got = append(got, chunk[:n]...)
		}
		if err != nil {
			t.Fatalf("read failed after %q: %v", got, err)
		}
	}
	if string(got) != want {
		t.Errorf("pipelined stream: %q, expected %q", got, want)
	}
}

func TestServer_SplitFrameAcrossWrites(t *testing.T) {
	_, addr, _ := startServer(t, DefaultConfig())
	conn := dialServer(t, addr)
	var buf []byte

	frame := AppendArrayHeader(nil, 1)
	frame = AppendBulkString(frame, "PING")

	if _, err := conn.Write(frame[:5]); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := conn.Write(frame[5:]); err != nil {
		t.Fatal(err)
	}

	if v := readFrame(t, conn, &buf); v.Type != TypeSimpleString || v.Str != "PONG" {
		t.Errorf("split-frame reply: %+v", v)
	}
}

func TestServer_MalformedInputDisconnects(t *testing.T) {
	_, addr, _ := startServer(t, DefaultConfig())
	conn := dialServer(t, addr)

	if _, err := conn.Write([]byte("!garbage\r\n")); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestServer_OversizedFrameDisconnects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadBufferSize = 64
	_, addr, _ := startServer(t, cfg)
	conn := dialServer(t, addr)

	// A bulk string that can never fit the 64-byte read buffer.
	frame := []byte("*1\r\n$512\r\n")
	frame = append(frame, make([]byte, 100)...)
	if _, err := conn.Write(frame); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestServer_ClientCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	srv, addr, _ := startServer(t, cfg)

	first := dialServer(t, addr)
	var buf []byte
	sendCommand(t, first, "PING")
	if v := readFrame(t, first, &buf); v.Str != "PONG" {
		t.Fatalf("first client PING: %+v", v)
	}

	// The second client is admitted by the OS but closed by the server.
	second := dialServer(t, addr)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadAll(second); err != nil {
		t.Fatalf("expected server-side close, got %v", err)
	}

	if got := srv.Stats().ConnectionsRejected; got != 1 {
		t.Errorf("expected 1 rejected connection, got %d", got)
	}
}

func TestServer_ShutdownCommand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "dump.rdb")
	srv, addr, errCh := startServer(t, cfg)

	conn := dialServer(t, addr)
	var buf []byte
	sendCommand(t, conn, "SET", "k", "v")
	readFrame(t, conn, &buf)

	sendCommand(t, conn, "SHUTDOWN")
	if v := readFrame(t, conn, &buf); v.Type != TypeSimpleString || v.Str != "OK" {
		t.Fatalf("SHUTDOWN reply: %+v", v)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after SHUTDOWN")
	}

	if _, err := os.Stat(srv.SnapshotPath()); err != nil {
		t.Errorf("snapshot missing after SHUTDOWN: %v", err)
	}

	// New connections must be refused once the listener is gone.
	if c, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		c.Close()
		t.Error("listener still accepting after shutdown")
	}
}

func TestServer_StopUnblocksListenAndServe(t *testing.T) {
	srv, _, errCh := startServer(t, DefaultConfig())

	srv.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected nil from ListenAndServe after Stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Stop")
	}
}

func TestServer_BackgroundSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 20 * time.Millisecond
	srv, addr, _ := startServer(t, cfg)

	conn := dialServer(t, addr)
	var buf []byte
	sendCommand(t, conn, "SET", "k", "v", "EX", "1")
	readFrame(t, conn, &buf)

	// Give the deadline time to pass and the ticker time to collect the
	// entry without any client touching the key.
	deadline := time.Now().Add(3 * time.Second)
	for srv.DB().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired entry never swept")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	srv, addr, _ := startServer(t, DefaultConfig())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Error(err)
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			req := AppendArrayHeader(nil, 2)
			req = AppendBulkString(req, "INCR")
			req = AppendBulkString(req, "shared")
			var buf []byte
			chunk := make([]byte, 256)
			for j := 0; j < 50; j++ {
				if _, err := conn.Write(req); err != nil {
					t.Error(err)
					return
				}
				for {
					if n, v := Parse(buf); n > 0 && v != nil {
						buf = buf[n:]
						break
					}
					n, err := conn.Read(chunk)
					if err != nil {
						t.Error(err)
						return
					}
					buf = append(buf, chunk[:n]...)
				}
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	val, ok, err := srv.DB().Get("shared")
	if err != nil || !ok || val != "400" {
		t.Errorf("expected shared counter 400, got %q (ok=%v, err=%v)", val, ok, err)
	}
}
