package storage

import (
	"go.etcd.io/bbolt"

	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/wal"
)

// DB is the storage adapter every collection, index, and the WAL tailer
// share within one open database file.
type DB struct {
	path             string
	eng              engine
	opts             Options
	journal          *wal.Journal
	lastJournaledSeq uint64
}

// Open opens (creating if necessary) the database file at path.
func Open(path string, opts Options) (*DB, error) {
	bopts := &bbolt.Options{
		ReadOnly:        opts.ReadOnly,
		Timeout:         opts.OpenTimeout,
		NoSync:          opts.NoSync,
		InitialMmapSize: opts.InitialMmapSize,
	}
	bdb, err := bbolt.Open(path, 0o644, bopts)
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "storage error").WithKeyspace(path)
	}
	db := &DB{path: path, eng: newBoltEngine(bdb), opts: opts}
	if opts.JournalPath != "" {
		j, err := wal.Open(opts.JournalPath)
		if err != nil {
			bdb.Close()
			return nil, status.Wrap(status.IoError, err, "storage error")
		}
		db.journal = j
	}
	return db, nil
}

// Close releases the database file and change journal.
func (db *DB) Close() error {
	if db.journal != nil {
		if err := db.journal.Close(); err != nil {
			return status.Wrap(status.IoError, err, "storage error")
		}
	}
	if err := db.eng.close(); err != nil {
		return status.Wrap(status.IoError, err, "storage error")
	}
	return nil
}

// JournalPosition returns the sequence number of the last change record
// this DB appended since Open, the resume point a wal.Tailer should start
// after. It is 0 until the first append; records already in the journal
// when it was opened are not counted.
func (db *DB) JournalPosition() uint64 {
	return db.lastJournaledSeq
}

// KeyspaceExists reports whether a keyspace currently exists.
func (db *DB) KeyspaceExists(name string) (bool, error) {
	var exists bool
	err := db.view(func(t tx) error {
		exists = t.keyspace(name) != nil
		return nil
	})
	return exists, err
}

// ListKeyspaces returns every keyspace currently in the database.
func (db *DB) ListKeyspaces() ([]string, error) {
	var names []string
	err := db.view(func(t tx) error {
		var err error
		names, err = t.keyspaceNames()
		return err
	})
	if err != nil {
		return nil, status.Wrap(status.IoError, err, "storage error")
	}
	return names, nil
}

// CreateKeyspace creates a keyspace if it doesn't already exist and
// records the creation in the change journal.
func (db *DB) CreateKeyspace(name string) error {
	return db.Batch([]Mutation{{Op: OpCreateKeyspace, Keyspace: name}})
}

// DropKeyspace deletes a keyspace and records the drop in the change
// journal.
func (db *DB) DropKeyspace(name string) error {
	return db.Batch([]Mutation{{Op: OpDropKeyspace, Keyspace: name}})
}

// Get retrieves a value by key. ok is false if the key or keyspace
// doesn't exist.
func (db *DB) Get(keyspaceName, key string) (value []byte, ok bool, err error) {
	err = db.view(func(t tx) error {
		ks := t.keyspace(keyspaceName)
		if ks == nil {
			return nil
		}
		raw := ks.get([]byte(key))
		if raw == nil {
			return nil
		}
		ok = true
		value = append([]byte(nil), raw...)
		if db.opts.compresses(keyspaceName) {
			value, err = decompress(value)
		}
		return err
	})
	if err != nil {
		return nil, false, status.Wrap(status.IoError, err, "storage error").WithKeyspace(keyspaceName).WithKey(key)
	}
	return value, ok, nil
}

// Put stores a single key-value pair; a convenience wrapper around Batch.
func (db *DB) Put(keyspace, key string, value []byte) error {
	return db.Batch([]Mutation{{Op: OpPut, Keyspace: keyspace, Key: key, Value: value}})
}

// Delete removes a single key; a convenience wrapper around Batch.
func (db *DB) Delete(keyspace, key string) error {
	return db.Batch([]Mutation{{Op: OpDelete, Keyspace: keyspace, Key: key}})
}

// KeyCount returns the number of keys currently stored in a keyspace, or
// 0 if the keyspace doesn't exist.
func (db *DB) KeyCount(keyspaceName string) (int, error) {
	var n int
	err := db.view(func(t tx) error {
		ks := t.keyspace(keyspaceName)
		if ks == nil {
			return nil
		}
		n = ks.keyCount()
		return nil
	})
	if err != nil {
		return 0, status.Wrap(status.IoError, err, "storage error").WithKeyspace(keyspaceName)
	}
	return n, nil
}

// IterFunc is called for each key-value pair a scan visits. Returning
// false stops the scan early.
type IterFunc func(key, value []byte) bool

// Iter scans a keyspace in ascending key order from the beginning.
func (db *DB) Iter(keyspaceName string, fn IterFunc) error {
	return db.IterFrom(keyspaceName, nil, fn)
}

// IterFrom scans a keyspace in ascending key order starting at the first
// key >= start (or the beginning, if start is nil).
func (db *DB) IterFrom(keyspaceName string, start []byte, fn IterFunc) error {
	return db.view(func(t tx) error {
		ks := t.keyspace(keyspaceName)
		if ks == nil {
			return nil
		}
		c := ks.cursor()
		var k, v []byte
		if start == nil {
			k, v = c.first()
		} else {
			k, v = c.seek(start)
		}
		for k != nil {
			decoded, err := db.maybeDecompress(keyspaceName, v)
			if err != nil {
				return err
			}
			if !fn(k, decoded) {
				return nil
			}
			k, v = c.next()
		}
		return nil
	})
}

// IterReverseFrom scans a keyspace in descending key order starting at
// the last key <= start (or the end, if start is nil).
func (db *DB) IterReverseFrom(keyspaceName string, start []byte, fn IterFunc) error {
	return db.view(func(t tx) error {
		ks := t.keyspace(keyspaceName)
		if ks == nil {
			return nil
		}
		c := ks.cursor()
		var k, v []byte
		if start == nil {
			k, v = c.last()
		} else {
			k, v = c.seek(start)
			if k == nil {
				k, v = c.last()
			} else if string(k) != string(start) {
				k, v = c.prev()
			}
		}
		for k != nil {
			decoded, err := db.maybeDecompress(keyspaceName, v)
			if err != nil {
				return err
			}
			if !fn(k, decoded) {
				return nil
			}
			k, v = c.prev()
		}
		return nil
	})
}

func (db *DB) maybeDecompress(keyspaceName string, v []byte) ([]byte, error) {
	if !db.opts.compresses(keyspaceName) || v == nil {
		return v, nil
	}
	return decompress(v)
}

func (db *DB) view(fn func(t tx) error) error {
	t, err := db.eng.beginTx(false)
	if err != nil {
		return err
	}
	defer t.rollback()
	if err := fn(t); err != nil {
		return err
	}
	return nil
}
