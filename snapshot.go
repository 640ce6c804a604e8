// snapshot.go: binary snapshot codec — whole-keyspace save and load
//
// Layout: 8-byte magic, a sequence of records, one 0xFF trailer byte.
// Record: type tag (1), deadline (8, -1 for none), key length (4), key
// bytes, then a type-specific payload. All integers are little-endian;
// the magic is IMDB0002 to distinguish this from the host-byte-order
// IMDB0001 lineage.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

const (
	// SnapshotMagic identifies the little-endian snapshot format.
	SnapshotMagic = "IMDB0002"

	snapshotTrailer byte = 0xFF

	recordString byte = 0
	recordInt    byte = 1
	recordList   byte = 2
)

func putUint32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func putInt64(b *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.Write(tmp[:])
}

func putString(b *bytes.Buffer, s string) {
	putUint32(b, uint32(len(s)))
	b.WriteString(s)
}

// SaveSnapshot writes a point-in-time image of the keyspace to path. The
// image is staged in memory and the file replaced atomically, so a crash
// mid-save never leaves a truncated snapshot behind. The keyspace is
// locked for the duration; the server does not respond while saving.
func (db *DB) SaveSnapshot(path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(SnapshotMagic)

	it := db.ht.iterator()
	for s := it.next(); s != nil; s = it.next() {
		e := s.value.(*dbEntry)

		switch e.obj.kind {
		case objString:
			buf.WriteByte(recordString)
		case objInt:
			buf.WriteByte(recordInt)
		case objList:
			buf.WriteByte(recordList)
		default:
			continue
		}

		putInt64(&buf, e.expireAt)
		putString(&buf, s.key)

		switch e.obj.kind {
		case objString:
			putString(&buf, e.obj.str)
		case objInt:
			putInt64(&buf, e.obj.num)
		case objList:
			putUint32(&buf, uint32(e.obj.list.len()))
			for n := e.obj.list.head; n != nil; n = n.next {
				putString(&buf, n.value)
			}
		}
	}
	buf.WriteByte(snapshotTrailer)

	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return NewErrSnapshotSave(path, err)
	}
	return nil
}

func readUint32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(tmp[:])), nil
}

func readString(r io.Reader) (string, error) {
	length, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadSnapshot reads records from path into the keyspace, replacing
// entries key by key. Records whose stored deadline has already passed
// are consumed but discarded. Reading stops at the trailer, at EOF, or
// at the first truncated record; loading what came before is not rolled
// back. Returns the number of entries loaded.
func (db *DB) LoadSnapshot(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, NewErrSnapshotLoad(path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	magic := make([]byte, len(SnapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != SnapshotMagic {
		return 0, NewErrSnapshotCorrupt(path, "bad magic")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	loaded := 0
	for {
		tag, err := r.ReadByte()
		if err != nil || tag == snapshotTrailer {
			break
		}

		expireAt, err := readInt64(r)
		if err != nil {
			break
		}
		key, err := readString(r)
		if err != nil {
			break
		}

		expired := expireAt != noExpiry && db.clock.Now() > expireAt

		var obj *object
		switch tag {
		case recordString:
			val, err := readString(r)
			if err != nil {
				return loaded, nil
			}
			obj = newStringObject(val)
		case recordInt:
			num, err := readInt64(r)
			if err != nil {
				return loaded, nil
			}
			obj = newIntObject(num)
		case recordList:
			count, err := readUint32(r)
			if err != nil {
				return loaded, nil
			}
			obj = newListObject()
			for i := uint32(0); i < count; i++ {
				val, err := readString(r)
				if err != nil {
					return loaded, nil
				}
				obj.list.pushRight(val)
			}
		default:
			return loaded, NewErrSnapshotCorrupt(path, "unknown record tag")
		}

		if expired {
			continue
		}
		db.ht.set(key, &dbEntry{obj: obj, expireAt: expireAt})
		loaded++
	}
	return loaded, nil
}
