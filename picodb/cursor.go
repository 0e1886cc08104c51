package picodb

import (
	"github.com/edgestore-io/picodb/document"
	"github.com/edgestore-io/picodb/status"
)

// Cursor iterates every document in a collection in storage order. It holds
// no snapshot isolation beyond what the underlying storage iterator gives
// it (spec.md §4.6's "cursor over all documents").
type Cursor struct {
	col *Collection
	err error
	buf []document.Envelope
	pos int
	end bool
}

// Cursor opens a cursor over every document currently stored in c.
func (c *Collection) Cursor() (*Cursor, error) {
	return &Cursor{col: c}, nil
}

// Next advances the cursor and reports whether a document is available.
// Callers must check Err after Next returns false.
func (cur *Cursor) Next() bool {
	if cur.pos < len(cur.buf) {
		cur.pos++
		return true
	}
	if cur.end || cur.err != nil {
		return false
	}
	// The whole collection is materialized on first advance: bbolt cursors
	// are only valid for the lifetime of their transaction, and picodb's
	// storage.Iter already closes its transaction before returning.
	err := cur.col.db.store.Iter(cur.col.name, func(k, v []byte) bool {
		env, decErr := document.UnmarshalEnvelope(v)
		if decErr != nil {
			cur.err = status.Wrap(status.Corruption, decErr, "picodb: decode document").WithCollection(cur.col.name).WithKey(string(k))
			return false
		}
		cur.buf = append(cur.buf, env)
		return true
	})
	cur.end = true
	if err != nil {
		cur.err = err
		return false
	}
	if cur.pos < len(cur.buf) {
		cur.pos++
		return true
	}
	return false
}

// Document returns the envelope Next just advanced to.
func (cur *Cursor) Document() document.Envelope {
	return cur.buf[cur.pos-1]
}

// Err returns the first error encountered while iterating, if any.
func (cur *Cursor) Err() error {
	return cur.err
}

// Take collects up to n documents from the cursor, the supplemented
// AnuDB-style readAllDocuments(docs, limit) convenience. n <= 0 collects
// every remaining document.
func (cur *Cursor) Take(n int) ([]document.Envelope, error) {
	var out []document.Envelope
	for cur.Next() {
		out = append(out, cur.Document())
		if n > 0 && len(out) >= n {
			break
		}
	}
	if cur.err != nil {
		return nil, cur.err
	}
	return out, nil
}
