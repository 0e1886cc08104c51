package storage

import (
	"strings"
	"time"
)

// Options tunes the embedded engine. spec.md's storage-adapter contract is
// written against an LSM substrate (block cache, write buffer, compaction);
// bbolt is a single-file B+-tree with none of those knobs, so most fields
// here degrade to the nearest bbolt equivalent or a documented no-op —
// see SPEC_FULL.md §4.3 for the full mapping table.
type Options struct {
	// ReadOnly opens the engine without acquiring the write lock.
	ReadOnly bool

	// NoSync skips fsync on every commit, trading durability for
	// throughput. bbolt's analogue of an LSM engine's WAL-only-fsync
	// mode; there's no separate WAL to sync selectively, so this is
	// all-or-nothing.
	NoSync bool

	// OpenTimeout bounds how long Open waits to acquire the file lock.
	OpenTimeout time.Duration

	// InitialMmapSize pre-sizes the memory map to avoid remapping churn
	// during initial bulk imports (spec.md §4.7's ImportFromJSONFile).
	// The nearest bbolt equivalent of an LSM engine's write-buffer size;
	// unlike a write buffer it doesn't bound memory, only avoids remaps.
	InitialMmapSize int

	// CompressKeyspace decides whether values written to a keyspace are
	// lz4-compressed at rest. Left nil, no keyspace is compressed. The
	// storage adapter never compresses index keyspaces regardless of
	// this predicate — index values are a few bytes of document id and
	// compression would only add overhead (SPEC_FULL.md §4.3).
	CompressKeyspace func(keyspace string) bool

	// JournalPath, if non-empty, durably writes every committed Batch to a change
	// journal at this path for wal.Tailer to consume. Left empty, Batch
	// still commits but no change record is written (spec.md's
	// WAL-tailing subsystem is opt-in per SPEC_FULL.md §4.8).
	JournalPath string
}

func (o Options) compresses(keyspace string) bool {
	return o.CompressKeyspace != nil && !strings.Contains(keyspace, "__index__") && o.CompressKeyspace(keyspace)
}
