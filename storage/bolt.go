package storage

import (
	"unsafe"

	"go.etcd.io/bbolt"
)

type boltEngine struct {
	bdb *bbolt.DB
}

func newBoltEngine(bdb *bbolt.DB) engine {
	return &boltEngine{bdb: bdb}
}

func (e *boltEngine) beginTx(writable bool) (tx, error) {
	btx, err := e.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTx{btx: btx}, nil
}

func (e *boltEngine) close() error { return e.bdb.Close() }

type boltTx struct {
	btx *bbolt.Tx
}

func (t *boltTx) writable() bool { return t.btx.Writable() }

func (t *boltTx) keyspace(name string) keyspace {
	b := t.btx.Bucket(unsafeBytesFromString(name))
	if b == nil {
		return nil
	}
	return boltKeyspace{b: b}
}

func (t *boltTx) createKeyspace(name string) (keyspace, error) {
	b, err := t.btx.CreateBucketIfNotExists(unsafeBytesFromString(name))
	if err != nil {
		return nil, err
	}
	return boltKeyspace{b: b}, nil
}

func (t *boltTx) dropKeyspace(name string) error {
	err := t.btx.DeleteBucket(unsafeBytesFromString(name))
	if err == bbolt.ErrBucketNotFound {
		return ErrKeyspaceNotFound
	}
	return err
}

func (t *boltTx) keyspaceNames() ([]string, error) {
	var names []string
	err := t.btx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		names = append(names, string(name))
		return nil
	})
	return names, err
}

func (t *boltTx) commit() error { return t.btx.Commit() }

func (t *boltTx) rollback() error {
	err := t.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltKeyspace struct {
	b *bbolt.Bucket
}

func (k boltKeyspace) get(key []byte) []byte { return k.b.Get(key) }

func (k boltKeyspace) put(key, value []byte) error { return k.b.Put(key, value) }

func (k boltKeyspace) delete(key []byte) error { return k.b.Delete(key) }

func (k boltKeyspace) cursor() cursor { return boltCursor{c: k.b.Cursor()} }

func (k boltKeyspace) keyCount() int { return k.b.Stats().KeyN }

type boltCursor struct {
	c *bbolt.Cursor
}

func (c boltCursor) first() ([]byte, []byte) { return c.c.First() }

func (c boltCursor) last() ([]byte, []byte) { return c.c.Last() }

func (c boltCursor) seek(seek []byte) ([]byte, []byte) { return c.c.Seek(seek) }

func (c boltCursor) next() ([]byte, []byte) { return c.c.Next() }

func (c boltCursor) prev() ([]byte, []byte) { return c.c.Prev() }

// unsafeBytesFromString avoids an allocation on the hot bucket-name-lookup
// path; bbolt never retains the slice past the call.
func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
