// db.go: the keyspace — typed operations with per-entry expiry
//
// Every read path runs a lazy expiry check first: an entry whose deadline
// has passed is deleted and treated as missing. A rate-limited sampled
// sweep (ExpireSweep) bounds how many expired entries accumulate between
// accesses.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package inmemdb

import (
	"sync"
	"time"
)

// noExpiry marks an entry without a deadline.
const noExpiry int64 = -1

// dbEntry pairs a value object with an absolute millisecond deadline.
type dbEntry struct {
	obj      *object
	expireAt int64
}

// DB is the in-memory keyspace. All exported methods are safe for
// concurrent use; a single mutex serializes every mutation, so the
// keyspace behaves as if driven by one writer.
type DB struct {
	mu    sync.Mutex
	ht    *hashTable
	clock TimeProvider

	lastSweep     int64
	sweepInterval int64 // milliseconds
	sweepSamples  int
}

// NewDB creates an empty keyspace. A nil clock selects the system time
// provider.
func NewDB(clock TimeProvider) *DB {
	if clock == nil {
		clock = &systemTimeProvider{}
	}
	return &DB{
		ht:            newHashTable(htMinCapacity),
		clock:         clock,
		lastSweep:     clock.Now(),
		sweepInterval: DefaultSweepInterval,
		sweepSamples:  DefaultSweepSamples,
	}
}

// SetSweepPolicy adjusts the expiry sweep cadence and sample size.
func (db *DB) SetSweepPolicy(interval time.Duration, samples int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if interval > 0 {
		db.sweepInterval = interval.Milliseconds()
	}
	if samples > 0 {
		db.sweepSamples = samples
	}
}

// checkExpired removes key if its deadline has passed. Caller holds mu.
func (db *DB) checkExpired(key string) bool {
	v, ok := db.ht.get(key)
	if !ok {
		return false
	}
	e := v.(*dbEntry)
	if e.expireAt != noExpiry && db.clock.Now() > e.expireAt {
		db.ht.delete(key)
		return true
	}
	return false
}

// getEntry returns the live entry for key, nil if missing or expired.
// Caller holds mu.
func (db *DB) getEntry(key string) *dbEntry {
	if db.checkExpired(key) {
		return nil
	}
	v, ok := db.ht.get(key)
	if !ok {
		return nil
	}
	return v.(*dbEntry)
}

// Set stores value under key, replacing any existing entry and clearing
// its expiry. Values that parse exactly as a signed 64-bit decimal are
// stored as integers.
func (db *DB) Set(key, value string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.setLocked(key, value)
}

func (db *DB) setLocked(key, value string) {
	e := &dbEntry{expireAt: noExpiry}
	if n, ok := tryParseInt(value); ok {
		e.obj = newIntObject(n)
	} else {
		e.obj = newStringObject(value)
	}
	db.ht.set(key, e)
}

// Get returns the string form of key's value. Integers are rendered in
// canonical decimal. A list-typed key yields a wrong-type error.
func (db *DB) Get(key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getEntry(key)
	if e == nil {
		return "", false, nil
	}
	switch e.obj.kind {
	case objString:
		return e.obj.str, true, nil
	case objInt:
		return formatInt(e.obj.num), true, nil
	default:
		return "", false, NewErrWrongType(key)
	}
}

// Del removes key. Returns true when a live entry was removed.
func (db *DB) Del(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.checkExpired(key)
	return db.ht.delete(key)
}

// Exists reports whether key holds a live entry.
func (db *DB) Exists(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.checkExpired(key) {
		return false
	}
	return db.ht.exists(key)
}

// IncrBy adds delta to the integer value at key. A missing key starts
// from zero. A string value that parses as an integer is promoted in
// place; anything else fails with a not-integer error.
func (db *DB) IncrBy(key string, delta int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.checkExpired(key)
	v, ok := db.ht.get(key)
	if !ok {
		db.ht.set(key, &dbEntry{obj: newIntObject(delta), expireAt: noExpiry})
		return delta, nil
	}

	e := v.(*dbEntry)
	switch e.obj.kind {
	case objInt:
		e.obj.num += delta
		return e.obj.num, nil
	case objString:
		if n, ok := tryParseInt(e.obj.str); ok {
			e.obj = newIntObject(n + delta)
			return n + delta, nil
		}
	}
	return 0, NewErrNotInteger(key)
}

// getOrCreateList returns key's entry, creating an empty list entry if
// the key is missing. Caller holds mu.
func (db *DB) getOrCreateList(key string) *dbEntry {
	db.checkExpired(key)
	v, ok := db.ht.get(key)
	if ok {
		return v.(*dbEntry)
	}
	e := &dbEntry{obj: newListObject(), expireAt: noExpiry}
	db.ht.set(key, e)
	return e
}

// LPush prepends values to the list at key, autocreating it. Returns the
// new length.
func (db *DB) LPush(key string, values ...string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getOrCreateList(key)
	if e.obj.kind != objList {
		return 0, NewErrWrongType(key)
	}
	for _, v := range values {
		e.obj.list.pushLeft(v)
	}
	return e.obj.list.len(), nil
}

// RPush appends values to the list at key, autocreating it. Returns the
// new length.
func (db *DB) RPush(key string, values ...string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getOrCreateList(key)
	if e.obj.kind != objList {
		return 0, NewErrWrongType(key)
	}
	for _, v := range values {
		e.obj.list.pushRight(v)
	}
	return e.obj.list.len(), nil
}

// LPop removes and returns the head of the list at key. A key that is
// missing, expired, or not a list yields no value. The key is removed
// when the pop empties the list.
func (db *DB) LPop(key string) (string, bool) {
	return db.pop(key, (*linkedList).popLeft)
}

// RPop removes and returns the tail of the list at key, with the same
// missing-key and empty-list behavior as LPop.
func (db *DB) RPop(key string) (string, bool) {
	return db.pop(key, (*linkedList).popRight)
}

func (db *DB) pop(key string, popEnd func(*linkedList) (string, bool)) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.checkExpired(key) {
		return "", false
	}
	v, ok := db.ht.get(key)
	if !ok {
		return "", false
	}
	e := v.(*dbEntry)
	if e.obj.kind != objList {
		return "", false
	}
	val, ok := popEnd(e.obj.list)
	if e.obj.list.len() == 0 {
		db.ht.delete(key)
	}
	return val, ok
}

// LLen returns the length of the list at key; zero when missing.
func (db *DB) LLen(key string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.checkExpired(key) {
		return 0, nil
	}
	v, ok := db.ht.get(key)
	if !ok {
		return 0, nil
	}
	e := v.(*dbEntry)
	if e.obj.kind != objList {
		return 0, NewErrWrongType(key)
	}
	return int64(e.obj.list.len()), nil
}

// LRange returns the list elements between start and stop inclusive,
// resolving negative indices from the end. Missing and non-list keys
// yield an empty result.
func (db *DB) LRange(key string, start, stop int) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.checkExpired(key) {
		return nil
	}
	v, ok := db.ht.get(key)
	if !ok {
		return nil
	}
	e := v.(*dbEntry)
	if e.obj.kind != objList {
		return nil
	}
	return e.obj.list.rng(start, stop)
}

// Expire sets key's deadline to now + seconds. Returns true when the key
// exists. Non-positive seconds are permitted; the entry is then seen as
// expired on its next access.
func (db *DB) Expire(key string, seconds int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getEntry(key)
	if e == nil {
		return false
	}
	e.expireAt = db.clock.Now() + seconds*1000
	return true
}

// TTL returns -2 when key is missing, -1 when it has no deadline, and
// otherwise the whole seconds remaining, floored at zero.
func (db *DB) TTL(key string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getEntry(key)
	if e == nil {
		return -2
	}
	if e.expireAt == noExpiry {
		return -1
	}
	remaining := (e.expireAt - db.clock.Now()) / 1000
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Persist clears key's deadline. Returns true when a deadline existed.
func (db *DB) Persist(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	e := db.getEntry(key)
	if e == nil || e.expireAt == noExpiry {
		return false
	}
	e.expireAt = noExpiry
	return true
}

// Len returns the number of live entries. Expired entries not yet swept
// or touched still count.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.ht.len()
}

// Flush drops every entry.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ht = newHashTable(htMinCapacity)
}

// ExpireSweep samples live entries and deletes those past their deadline.
// It rate-limits itself: calls within the sweep interval of the previous
// run are no-ops, so it can be invoked from a fast tick. Sampling restarts
// from the front of the table after each deletion, trading uniformity for
// simplicity; the sweep bounds expired-entry buildup rather than
// guaranteeing collection.
func (db *DB) ExpireSweep() {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.clock.Now()
	if now-db.lastSweep < db.sweepInterval {
		return
	}
	db.lastSweep = now

	if db.ht.len() == 0 {
		return
	}

	checked := 0
	it := db.ht.iterator()
	for checked < db.sweepSamples {
		s := it.next()
		if s == nil {
			break
		}
		e := s.value.(*dbEntry)
		if e.expireAt != noExpiry && now > e.expireAt {
			db.ht.delete(s.key)
			// Deletion can shrink the table; the iterator is stale.
			it = db.ht.iterator()
		}
		checked++
	}
}
