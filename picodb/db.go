// Package picodb is the embedded, schema-free document database façade:
// collections of JSON-shaped documents, secondary indexes, a filter-tree
// query planner, and a change journal a wal.Tailer can subscribe to.
package picodb

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/storage"
	"github.com/edgestore-io/picodb/wal"
)

// Options configures Open, following the teacher's Options{Logf, Verbose,
// IsTesting, MmapSize} shape.
type Options struct {
	Logger *slog.Logger

	// ReadOnly opens the database without acquiring the write lock.
	ReadOnly bool

	// Compression enables lz4 document-body compression for every
	// collection (spec.md §4.3's "configurable to a fast codec").
	Compression bool

	// InitialMmapSize pre-sizes bbolt's memory map (SPEC_FULL.md §4.3).
	InitialMmapSize int

	// JournalPath is the change journal file a wal.Tailer can subscribe
	// to. Left empty, no change journal is written.
	JournalPath string
}

// DB owns the storage adapter and every open Collection.
type DB struct {
	path        string
	store       *storage.DB
	journalPath string
	logger      *slog.Logger

	mu          sync.Mutex
	collections map[string]*Collection

	metrics *Metrics

	group   *errgroup.Group
	groupCx context.Context
	cancel  context.CancelFunc
}

// Open opens (creating if necessary) the database file at path.
func Open(path string, opt Options) (*DB, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storageOpts := storage.Options{
		ReadOnly:        opt.ReadOnly,
		InitialMmapSize: opt.InitialMmapSize,
		JournalPath:     opt.JournalPath,
	}
	if opt.Compression {
		storageOpts.CompressKeyspace = func(ks string) bool {
			return !strings.Contains(ks, indexKeyspaceMarker)
		}
	}

	store, err := storage.Open(path, storageOpts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCx := errgroup.WithContext(ctx)

	db := &DB{
		path:        path,
		store:       store,
		journalPath: opt.JournalPath,
		logger:      logger,
		collections: make(map[string]*Collection),
		metrics:     newMetrics(),
		group:       group,
		groupCx:     groupCx,
		cancel:      cancel,
	}
	logger.Info("picodb: opened", "path", path)
	return db, nil
}

const indexKeyspaceMarker = "__index__"

// Collection returns a handle to a collection, creating its document
// keyspace on first use.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	exists, err := db.store.KeyspaceExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := db.store.CreateKeyspace(name); err != nil {
			return nil, err
		}
	}
	c := newCollection(db, name)
	db.collections[name] = c
	return c, nil
}

// DropCollection deletes every index on the collection and then its
// document keyspace.
func (db *DB) DropCollection(name string) error {
	db.mu.Lock()
	c, ok := db.collections[name]
	delete(db.collections, name)
	db.mu.Unlock()
	if !ok {
		c = newCollection(db, name)
	}

	infos, err := c.indexes.List(name)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := c.indexes.Delete(name, info.Field); err != nil {
			return err
		}
	}
	return db.store.DropKeyspace(name)
}

// ListCollections returns every collection stored in the database, by scanning
// keyspace names and filtering out index and registry keyspaces.
func (db *DB) ListCollections() ([]string, error) {
	names, err := db.store.ListKeyspaces()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if n == "__indexes__" {
			continue
		}
		if strings.Contains(n, indexKeyspaceMarker) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Tail starts a background WAL tailer over the database's change journal
// (spec.md §4.8), dispatching every PUT/DELETE against a document keyspace
// and every CREATE_CF/DROP_CF entry (index keyspaces included) to cb,
// starting after the given sequence number. It requires
// Options.JournalPath to have been set at Open. The tailer runs on the
// DB's shared background group until Close.
func (db *DB) Tail(after uint64, interval time.Duration, cb wal.Callback) error {
	if db.journalPath == "" {
		return status.New(status.NotSupported, "picodb: no journal configured, cannot tail")
	}
	tailer := wal.NewTailer(db.journalPath, after, interval, cb)
	db.runBackground(tailer.Run)
	return nil
}

// Metrics returns the database's prometheus registry.
func (db *DB) Metrics() *Metrics {
	return db.metrics
}

// Close stops background work (the WAL tailer, any in-flight export),
// clears the collection map, and releases the storage adapter.
func (db *DB) Close() error {
	db.cancel()
	_ = db.group.Wait()
	db.mu.Lock()
	db.collections = make(map[string]*Collection)
	db.mu.Unlock()
	return db.store.Close()
}

// runBackground supervises a long-lived background task (export worker,
// WAL tailer) through the DB's shared errgroup, matching spec.md §5's "at
// most two long-lived background goroutines" contract.
func (db *DB) runBackground(fn func(ctx context.Context) error) {
	db.group.Go(func() error {
		return fn(db.groupCx)
	})
}
