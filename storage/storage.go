// Package storage provides the native objects exposed to the client through
// handles: an in-memory database, snapshot and fork views of it, and list
// index proxies bound to a view.
//
// Snapshots are read-only copies taken at creation time. Forks are writable
// copies whose changes reach the database only through MemoryDB.Merge, which
// consumes the fork. Every object is released by Close; operations on a
// released object fail with a closed error.
package storage

import (
	"slices"
	"sync"

	"github.com/wippyai/ejb-bridge/errors"
)

// MemoryDB is an in-memory database of named lists.
type MemoryDB struct {
	lists  map[string][][]byte
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDB creates an empty database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{lists: make(map[string][][]byte)}
}

// Snapshot returns a read-only view of the current state.
func (db *MemoryDB) Snapshot() (*Snapshot, error) {
	lists, err := db.copyLists()
	if err != nil {
		return nil, err
	}
	return &Snapshot{view: view{lists: lists}}, nil
}

// Fork returns a writable view of the current state.
func (db *MemoryDB) Fork() (*Fork, error) {
	lists, err := db.copyLists()
	if err != nil {
		return nil, err
	}
	return &Fork{view: view{lists: lists}}, nil
}

// Merge applies the fork's lists to the database and closes the fork.
// A failed merge leaves the fork untouched.
func (db *MemoryDB) Merge(f *Fork) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return errors.Closed(errors.PhaseEntry, "database")
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.Closed(errors.PhaseEntry, "fork")
	}
	changes := f.lists
	f.lists = nil
	f.closed = true
	f.mu.Unlock()

	for name, items := range changes {
		if len(items) == 0 {
			delete(db.lists, name)
			continue
		}
		db.lists[name] = items
	}
	return nil
}

// Close releases the database. Existing views stay usable.
func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	db.lists = nil
	return nil
}

func (db *MemoryDB) copyLists() (map[string][][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, errors.Closed(errors.PhaseEntry, "database")
	}
	out := make(map[string][][]byte, len(db.lists))
	for name, items := range db.lists {
		out[name] = slices.Clone(items)
	}
	return out, nil
}

// View is a database view that list indexes read and write through.
type View interface {
	ReadOnly() bool
	Close() error
	load(name string) ([][]byte, error)
	update(name string, fn func([][]byte) [][]byte) error
}

type view struct {
	lists  map[string][][]byte
	mu     sync.RWMutex
	closed bool
}

func (v *view) load(name string) ([][]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, errors.Closed(errors.PhaseEntry, "view")
	}
	return v.lists[name], nil
}

func (v *view) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.lists = nil
	return nil
}

// Snapshot is an immutable view.
type Snapshot struct {
	view
}

// ReadOnly reports true.
func (s *Snapshot) ReadOnly() bool { return true }

func (s *Snapshot) update(string, func([][]byte) [][]byte) error {
	return errors.ReadOnly("snapshot")
}

// Fork is a writable view.
type Fork struct {
	view
}

// ReadOnly reports false.
func (f *Fork) ReadOnly() bool { return false }

func (f *Fork) update(name string, fn func([][]byte) [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.Closed(errors.PhaseEntry, "fork")
	}
	f.lists[name] = fn(f.lists[name])
	return nil
}
