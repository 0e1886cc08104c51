package storage

import (
	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/wal"
)

// Op identifies the kind of mutation within a Batch.
type Op byte

const (
	OpPut Op = iota + 1
	OpDelete
	OpCreateKeyspace
	OpDropKeyspace
)

// Mutation is one write within a Batch. Value is ignored for OpDelete,
// OpCreateKeyspace, and OpDropKeyspace.
type Mutation struct {
	Op       Op
	Keyspace string
	Key      string
	Value    []byte
}

// Batch applies every mutation in a single atomic transaction spanning
// any number of keyspaces — the contract spec.md §5 requires for a
// document write plus its index maintenance to be all-or-nothing — and,
// if a change journal is configured, appends one journal entry per
// mutation after the transaction commits.
func (db *DB) Batch(muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	t, err := db.eng.beginTx(true)
	if err != nil {
		return status.Wrap(status.IoError, err, "storage error")
	}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
	}()

	journalEntries := make([]wal.Entry, 0, len(muts))
	for _, m := range muts {
		stored := m.Value
		if m.Op == OpPut && db.opts.compresses(m.Keyspace) {
			stored, err = compress(stored)
			if err != nil {
				return status.Wrap(status.InternalError, err, "storage error").WithKeyspace(m.Keyspace).WithKey(m.Key)
			}
		}
		switch m.Op {
		case OpPut:
			ks := t.keyspace(m.Keyspace)
			if ks == nil {
				ks, err = t.createKeyspace(m.Keyspace)
				if err != nil {
					return status.Wrap(status.IoError, err, "storage error").WithKeyspace(m.Keyspace)
				}
			}
			if err := ks.put([]byte(m.Key), stored); err != nil {
				return status.Wrap(status.IoError, err, "storage error").WithKeyspace(m.Keyspace).WithKey(m.Key)
			}
			// The journal always carries the uncompressed value: a
			// wal.Tailer has no access to the compression predicate that
			// produced stored, and re-deriving it there would leak a
			// storage-layer concern into wal.
			journalEntries = append(journalEntries, wal.Entry{Op: wal.Put, Keyspace: m.Keyspace, Key: m.Key, Value: m.Value})
		case OpDelete:
			ks := t.keyspace(m.Keyspace)
			if ks == nil {
				continue
			}
			if err := ks.delete([]byte(m.Key)); err != nil {
				return status.Wrap(status.IoError, err, "storage error").WithKeyspace(m.Keyspace).WithKey(m.Key)
			}
			journalEntries = append(journalEntries, wal.Entry{Op: wal.Delete, Keyspace: m.Keyspace, Key: m.Key})
		case OpCreateKeyspace:
			if _, err := t.createKeyspace(m.Keyspace); err != nil {
				return status.Wrap(status.IoError, err, "storage error").WithKeyspace(m.Keyspace)
			}
			journalEntries = append(journalEntries, wal.Entry{Op: wal.CreateKeyspace, Keyspace: m.Keyspace})
		case OpDropKeyspace:
			if err := t.dropKeyspace(m.Keyspace); err != nil && err != ErrKeyspaceNotFound {
				return status.Wrap(status.IoError, err, "storage error").WithKeyspace(m.Keyspace)
			}
			journalEntries = append(journalEntries, wal.Entry{Op: wal.DropKeyspace, Keyspace: m.Keyspace})
		default:
			return status.New(status.InvalidArgument, "storage: unknown mutation op")
		}
	}

	if err := t.commit(); err != nil {
		return status.Wrap(status.IoError, err, "storage error")
	}
	committed = true

	if db.journal != nil && len(journalEntries) > 0 {
		seq, err := db.journal.Append(journalEntries)
		if err != nil {
			// The document/index write already committed; the change
			// journal is a best-effort CDC feed, not the source of
			// truth, so a journal failure is reported but not rolled
			// back (matching how a tailing reader of a real engine's
			// WAL can fall behind without corrupting the engine).
			return status.Wrap(status.IoError, err, "storage error")
		}
		db.lastJournaledSeq = seq
	}
	return nil
}
