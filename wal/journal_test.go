package wal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAssignsIncreasingSeq(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	seq1, err := j.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p1"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	seq2, err := j.Append([]Entry{{Op: Delete, Keyspace: "products", Key: "p1"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("expected increasing sequence numbers, got %d then %d", seq1, seq2)
	}
}

func TestReopenRecoversSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lastSeq, err := j.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p1"}})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	nextSeq, err := reopened.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p2"}})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if nextSeq <= lastSeq {
		t.Fatalf("expected sequence to continue past %d, got %d", lastSeq, nextSeq)
	}
}

func TestEntriesSinceFiltersBySeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	seq1, _ := j.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p1"}})
	_, _ = j.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p2"}})

	entries, err := entriesSince(path, seq1)
	if err != nil {
		t.Fatalf("entriesSince: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "p2" {
		t.Fatalf("expected only p2 after seq %d, got %+v", seq1, entries)
	}
}

func TestTailerDispatchesPutAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Append([]Entry{{Op: Put, Keyspace: "products", Key: "p1", Value: []byte{0x80}}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.Append([]Entry{{Op: Delete, Keyspace: "products", Key: "p1"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var seen []Op
	tailer := NewTailer(path, 0, 5*time.Millisecond, func(entry Entry, value string) {
		seen = append(seen, entry.Op)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tailer.Run(ctx)

	if len(seen) != 2 || seen[0] != Put || seen[1] != Delete {
		t.Fatalf("expected [Put Delete], got %+v", seen)
	}
}

func TestTailerSuppressesIndexKeyspaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Append([]Entry{
		{Op: Put, Keyspace: "products", Key: "p1"},
		{Op: Put, Keyspace: "products" + IndexKeyspaceMarker + "category", Key: "Electronics#p1"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var seen int
	tailer := NewTailer(path, 0, 5*time.Millisecond, func(entry Entry, value string) {
		seen++
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tailer.Run(ctx)

	if seen != 1 {
		t.Fatalf("expected only the document-keyspace entry to be dispatched, got %d", seen)
	}
}

func TestTailerSurfacesKeyspaceLifecycleEventsForIndexKeyspaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	indexKeyspace := "products" + IndexKeyspaceMarker + "category"
	if _, err := j.Append([]Entry{
		{Op: CreateKeyspace, Keyspace: indexKeyspace},
		{Op: Put, Keyspace: indexKeyspace, Key: "Electronics#p1"},
		{Op: DropKeyspace, Keyspace: indexKeyspace},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var ops []Op
	tailer := NewTailer(path, 0, 5*time.Millisecond, func(entry Entry, value string) {
		ops = append(ops, entry.Op)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tailer.Run(ctx)

	if len(ops) != 2 || ops[0] != CreateKeyspace || ops[1] != DropKeyspace {
		t.Fatalf("expected [CreateKeyspace DropKeyspace] with the PUT suppressed, got %+v", ops)
	}
}
