// Package wal implements the change journal that stands in for the ordered
// KV substrate's own write-ahead log (spec.md §1 treats that log as an
// external collaborator; bbolt, the substrate this module actually embeds,
// doesn't expose one for external tailing — see SPEC_FULL.md §4.8). The
// storage package appends one journal entry per committed mutation; Tailer
// polls the journal from a stored sequence number and dispatches decoded
// records to a subscriber, exactly the shape spec.md §4.8 describes.
package wal

import "github.com/vmihailenco/msgpack/v5"

// Op identifies the kind of mutation a journal Entry records.
type Op byte

const (
	Put Op = iota + 1
	Delete
	CreateKeyspace
	DropKeyspace
)

func (op Op) String() string {
	switch op {
	case Put:
		return "PUT"
	case Delete:
		return "DELETE"
	case CreateKeyspace:
		return "CREATE_CF"
	case DropKeyspace:
		return "DROP_CF"
	default:
		return "UNKNOWN"
	}
}

// Entry is one committed mutation. Value holds the raw bytes stored at Key
// (the msgpack document envelope for document-keyspace PUTs, the raw
// doc-id bytes for index-keyspace PUTs, or nil for DELETE/CREATE_CF/
// DROP_CF).
type Entry struct {
	Seq      uint64
	Op       Op
	Keyspace string
	Key      string
	Value    []byte
}

type entryWire struct {
	Seq      uint64 `msgpack:"s"`
	Op       byte   `msgpack:"o"`
	Keyspace string `msgpack:"k"`
	Key      string `msgpack:"d"`
	Value    []byte `msgpack:"v"`
}

func encodeBatch(entries []Entry) ([]byte, error) {
	wire := make([]entryWire, len(entries))
	for i, e := range entries {
		wire[i] = entryWire{Seq: e.Seq, Op: byte(e.Op), Keyspace: e.Keyspace, Key: e.Key, Value: e.Value}
	}
	return msgpack.Marshal(wire)
}

func decodeBatch(data []byte) ([]Entry, error) {
	var wire []entryWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	entries := make([]Entry, len(wire))
	for i, w := range wire {
		entries[i] = Entry{Seq: w.Seq, Op: Op(w.Op), Keyspace: w.Keyspace, Key: w.Key, Value: w.Value}
	}
	return entries, nil
}
