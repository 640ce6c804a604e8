// main.go: interactive inmemdb client
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Command inmemdb-cli is a line-oriented REPL client for inmemdb.
//
// Lines are tokenized on whitespace with double-quote grouping, framed as
// an array of bulk strings, and the parsed reply is pretty-printed.
// 'exit' and 'quit' leave the REPL.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/inmemdb"
	"github.com/buildkite/shellwords"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
)

const historyFile = ".inmemdb_cli_history"

func main() {
	host := pflag.StringP("host", "h", "127.0.0.1", "server host")
	port := pflag.IntP("port", "p", inmemdb.DefaultPort, "server port")
	pflag.Parse()

	addr := fmt.Sprintf("%s:%d", *host, *port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := filepath.Join(os.Getenv("HOME"), historyFile)
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	readBuf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 4096)

	for {
		input, err := line.Prompt(addr + "> ")
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil { // io.EOF on ctrl-D
			fmt.Println()
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return
		}

		parts, err := shellwords.SplitPosix(input)
		if err != nil || len(parts) == 0 {
			fmt.Println("(error) unbalanced quotes in input")
			continue
		}

		req := inmemdb.AppendArrayHeader(nil, len(parts))
		for _, p := range parts {
			req = inmemdb.AppendBulkString(req, p)
		}
		if _, err := conn.Write(req); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write failed: %v\n", err)
			return
		}

		reply, err := readReply(conn, &readBuf, chunk)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		printReply(reply, "")

		if strings.EqualFold(parts[0], "SHUTDOWN") {
			return
		}
	}
}

// readReply accumulates bytes until one complete frame parses.
func readReply(conn net.Conn, buf *[]byte, chunk []byte) (*inmemdb.Value, error) {
	for {
		if len(*buf) > 0 {
			n, v := inmemdb.Parse(*buf)
			if n < 0 {
				return nil, fmt.Errorf("malformed reply from server")
			}
			if n > 0 {
				*buf = append((*buf)[:0], (*buf)[n:]...)
				return v, nil
			}
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			*buf = append(*buf, chunk[:n]...)
			continue
		}
		if err == io.EOF {
			return nil, fmt.Errorf("connection closed by server")
		}
		if err != nil {
			return nil, err
		}
	}
}

func printReply(v *inmemdb.Value, prefix string) {
	switch v.Type {
	case inmemdb.TypeSimpleString:
		fmt.Printf("%s%s\n", prefix, v.Str)
	case inmemdb.TypeError:
		fmt.Printf("%s(error) %s\n", prefix, v.Str)
	case inmemdb.TypeInteger:
		fmt.Printf("%s(integer) %d\n", prefix, v.Num)
	case inmemdb.TypeBulkString:
		fmt.Printf("%s%q\n", prefix, v.Str)
	case inmemdb.TypeNil:
		fmt.Printf("%s(nil)\n", prefix)
	case inmemdb.TypeArray:
		if len(v.Items) == 0 {
			fmt.Printf("%s(empty array)\n", prefix)
			return
		}
		for i, item := range v.Items {
			printReply(item, fmt.Sprintf("%s%d) ", prefix, i+1))
		}
	}
}
