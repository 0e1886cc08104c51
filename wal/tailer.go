package wal

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgestore-io/picodb/document"
)

// IndexKeyspaceMarker infixes keyspaces that back a secondary index rather
// than a collection's documents (spec.md §3's "__index__" convention).
// PUT/DELETE entries against such keyspaces are index-maintenance churn
// and Tailer suppresses them (spec.md §4.8); CREATE_CF/DROP_CF entries are
// keyspace-lifecycle notices and are always surfaced, index keyspace or
// not.
const IndexKeyspaceMarker = "__index__"

// Callback receives one tailed change. Value is the document body encoded
// as JSON for Put entries against a document keyspace, and empty
// otherwise (Delete carries no value; CreateKeyspace/DropKeyspace are
// keyspace-lifecycle notices with no associated document).
type Callback func(entry Entry, value string)

// Tailer polls a Journal from a stored sequence number and dispatches new
// entries to a Callback, the Go-native stand-in for subscribing to a
// RocksDB-style tailable WAL iterator (SPEC_FULL.md §4.8).
type Tailer struct {
	path     string
	interval time.Duration
	lastSeq  uint64
	cb       Callback
}

// NewTailer creates a Tailer over the journal file at path, starting after
// the given sequence number (0 to replay from the beginning).
func NewTailer(path string, after uint64, interval time.Duration, cb Callback) *Tailer {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Tailer{path: path, interval: interval, lastSeq: after, cb: cb}
}

// Run polls until ctx is cancelled or a poll fails, via an errgroup so an
// error in one poll ends the loop and is returned to the caller. A panic
// in a poll is not recovered. It returns ctx.Err() on cancellation.
func (t *Tailer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := t.poll(); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func (t *Tailer) poll() error {
	entries, err := entriesSince(t.path, t.lastSeq)
	if err != nil {
		return err
	}
	for _, e := range entries {
		t.lastSeq = e.Seq
		if (e.Op == Put || e.Op == Delete) && strings.Contains(e.Keyspace, IndexKeyspaceMarker) {
			continue
		}
		value := ""
		if e.Op == Put && len(e.Value) > 0 {
			if env, err := document.UnmarshalEnvelope(e.Value); err == nil {
				if data, err := env.Data.MarshalJSON(); err == nil {
					value = string(data)
				}
			}
		}
		t.cb(e, value)
	}
	return nil
}

// LastSeq returns the highest sequence number observed so far, usable as
// the resume point for a later Tailer.
func (t *Tailer) LastSeq() uint64 {
	return t.lastSeq
}
