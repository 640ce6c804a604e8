// snapshot_test.go: unit tests for the snapshot codec
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func snapshotPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "dump.rdb")
}

func TestSnapshot_RoundTrip(t *testing.T) {
	db, mock := newTestDB()
	path := snapshotPath(t)

	db.Set("greeting", "hello world")
	db.Set("answer", "42")
	db.RPush("queue", "a", "b", "c")
	db.Set("volatile", "v")
	db.Expire("volatile", 3600)

	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	restored := NewDB(mock)
	loaded, err := restored.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != 4 {
		t.Errorf("expected 4 loaded entries, got %d", loaded)
	}

	if val, _, _ := restored.Get("greeting"); val != "hello world" {
		t.Errorf("string value: %q", val)
	}
	if val, _, _ := restored.Get("answer"); val != "42" {
		t.Errorf("integer value: %q", val)
	}
	if got, _ := restored.IncrBy("answer", 1); got != 43 {
		t.Errorf("integer kind lost across snapshot: INCR gave %d", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, restored.LRange("queue", 0, -1)); diff != "" {
		t.Errorf("list value (-want +got):\n%s", diff)
	}
	if ttl := restored.TTL("volatile"); ttl <= 0 || ttl > 3600 {
		t.Errorf("deadline lost across snapshot: TTL %d", ttl)
	}
	if ttl := restored.TTL("greeting"); ttl != -1 {
		t.Errorf("spurious deadline appeared: TTL %d", ttl)
	}
}

func TestSnapshot_SkipsExpiredOnLoad(t *testing.T) {
	db, mock := newTestDB()
	path := snapshotPath(t)

	db.Set("stay", "v")
	db.Set("go", "v")
	db.Expire("go", 10)
	db.RPush("golist", "x", "y")
	// Lists cannot carry deadlines through the public surface once
	// created, so stamp one directly for coverage.
	db.mu.Lock()
	if v, ok := db.ht.get("golist"); ok {
		v.(*dbEntry).expireAt = mock.Now() + 10_000
	}
	db.mu.Unlock()

	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	mock.Advance(time.Hour)
	restored := NewDB(mock)
	loaded, err := restored.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded != 1 {
		t.Errorf("expected only 1 live entry loaded, got %d", loaded)
	}
	if !restored.Exists("stay") {
		t.Error("undated entry lost on load")
	}
	if restored.Exists("go") || restored.Exists("golist") {
		t.Error("expired records must be discarded on load")
	}
	if restored.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", restored.Len())
	}
}

func TestSnapshot_LoadReplacesKeyByKey(t *testing.T) {
	db, mock := newTestDB()
	path := snapshotPath(t)

	db.Set("a", "from-snapshot")
	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	target := NewDB(mock)
	target.Set("a", "pre-existing")
	target.Set("b", "kept")
	if _, err := target.LoadSnapshot(path); err != nil {
		t.Fatal(err)
	}

	if val, _, _ := target.Get("a"); val != "from-snapshot" {
		t.Errorf("loaded entry should replace same key: %q", val)
	}
	if val, _, _ := target.Get("b"); val != "kept" {
		t.Errorf("unrelated entry disturbed by load: %q", val)
	}
}

func TestSnapshot_BadMagic(t *testing.T) {
	path := snapshotPath(t)
	if err := os.WriteFile(path, []byte("NOTMAGIC rest"), 0o644); err != nil {
		t.Fatal(err)
	}

	db, _ := newTestDB()
	if _, err := db.LoadSnapshot(path); !IsSnapshotCorrupt(err) {
		t.Errorf("expected corrupt-snapshot error, got %v", err)
	}
}

func TestSnapshot_MissingFile(t *testing.T) {
	db, _ := newTestDB()
	if _, err := db.LoadSnapshot(snapshotPath(t)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshot_TruncatedRecordStopsQuietly(t *testing.T) {
	db, mock := newTestDB()
	path := snapshotPath(t)

	db.Set("a", "1")
	db.Set("b", "2")
	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Chop inside the second record (and the trailer with it).
	if err := os.WriteFile(path, raw[:len(raw)-5], 0o644); err != nil {
		t.Fatal(err)
	}

	restored := NewDB(mock)
	loaded, err := restored.LoadSnapshot(path)
	if err != nil {
		t.Fatalf("truncation should not fail the load: %v", err)
	}
	if loaded != 1 {
		t.Errorf("expected the intact leading record only, got %d", loaded)
	}
}

func TestSnapshot_FileLayout(t *testing.T) {
	db, _ := newTestDB()
	path := snapshotPath(t)

	db.Set("k", "v")
	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw[:8]) != SnapshotMagic {
		t.Errorf("magic: %q", raw[:8])
	}
	if raw[len(raw)-1] != snapshotTrailer {
		t.Errorf("trailer byte: %#x", raw[len(raw)-1])
	}
	// tag(1) + deadline(8) + keylen(4) + "k" + vallen(4) + "v"
	if want := 8 + 1 + 8 + 4 + 1 + 4 + 1 + 1; len(raw) != want {
		t.Errorf("file length %d, expected %d", len(raw), want)
	}

	// No stray temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot in the directory, found %d entries", len(entries))
	}
}

func TestSnapshot_EmptyKeyspace(t *testing.T) {
	db, mock := newTestDB()
	path := snapshotPath(t)

	if err := db.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}
	restored := NewDB(mock)
	loaded, err := restored.LoadSnapshot(path)
	if err != nil || loaded != 0 {
		t.Errorf("empty snapshot: loaded=%d err=%v", loaded, err)
	}
}
