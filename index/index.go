// Package index maintains secondary indexes over collection documents: one
// sorted keyspace per (collection, field), synchronously kept in step with
// every document write (spec.md §4.1). Index keys are built from
// keycodec's order-preserving scalar encodings so the query package can
// range-scan them directly; values are indexable only if they are Bool,
// Int, Double, or String (spec.md §4.1's "Null / nested values: not
// indexable").
package index

import (
	"fmt"
	"strings"

	"github.com/edgestore-io/picodb/document"
	"github.com/edgestore-io/picodb/keycodec"
	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/storage"
)

// Marker infixes a collection's index keyspaces, so an index keyspace name
// always contains it as a substring (spec.md §3: "Collection enumeration
// filters names containing __index__"). wal.Tailer matches on this same
// literal to suppress index churn from CDC output.
const Marker = "__index__"

// Keyspace returns the storage keyspace name backing the (collection,
// field) index: <collection>__index__<field> (spec.md §3).
func Keyspace(collection, field string) string {
	return collection + Marker + field
}

// Info describes one declared index, the supplemented IndexInfo{Field}
// metadata AnuDB's listIndexes exposes and spec.md's distillation dropped.
type Info struct {
	Collection string
	Field      string
}

const registryKeyspace = "__indexes__"

func registryKey(collection, field string) string {
	return collection + "\x00" + field
}

// Manager owns index lifecycle (create/drop/list) and computes the index
// mutations a document write must fold into its storage.Batch.
type Manager struct {
	db *storage.DB
}

// NewManager wraps db for index bookkeeping.
func NewManager(db *storage.DB) *Manager {
	return &Manager{db: db}
}

// Create declares a new index on collection.field, backfilling it from
// every document currently in the collection. docs is called once per
// existing document (id, body) so the caller — which already knows how to
// decode the collection's envelopes — can supply the scan without index
// importing document decoding logic here.
func (m *Manager) Create(collection, field string, docs func(yield func(id string, body document.Value) bool) error) error {
	exists, err := m.db.KeyspaceExists(Keyspace(collection, field))
	if err != nil {
		return err
	}
	if exists {
		return status.New(status.InvalidArgument, "index already exists on %s.%s", collection, field).WithCollection(collection)
	}

	var muts []storage.Mutation
	muts = append(muts, storage.Mutation{Op: storage.OpCreateKeyspace, Keyspace: Keyspace(collection, field)})
	muts = append(muts, storage.Mutation{
		Op:       storage.OpPut,
		Keyspace: registryKeyspace,
		Key:      registryKey(collection, field),
		Value:    []byte{1},
	})

	err = docs(func(id string, body document.Value) bool {
		if fv, ok := body.Field(field); ok && fv.IsScalar() {
			key, kerr := encodeEntryKey(fv, id)
			if kerr != nil {
				err = kerr
				return false
			}
			muts = append(muts, storage.Mutation{Op: storage.OpPut, Keyspace: Keyspace(collection, field), Key: string(key), Value: []byte(id)})
		}
		return true
	})
	if err != nil {
		return err
	}
	return m.db.Batch(muts)
}

// Delete drops an index and its registry entry.
func (m *Manager) Delete(collection, field string) error {
	exists, err := m.db.KeyspaceExists(Keyspace(collection, field))
	if err != nil {
		return err
	}
	if !exists {
		return status.New(status.NotFound, "no index on %s.%s", collection, field).WithCollection(collection)
	}
	return m.db.Batch([]storage.Mutation{
		{Op: storage.OpDropKeyspace, Keyspace: Keyspace(collection, field)},
		{Op: storage.OpDelete, Keyspace: registryKeyspace, Key: registryKey(collection, field)},
	})
}

// List returns every index declared on collection.
func (m *Manager) List(collection string) ([]Info, error) {
	var infos []Info
	prefix := collection + "\x00"
	err := m.db.Iter(registryKeyspace, func(k, _ []byte) bool {
		key := string(k)
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, Info{Collection: collection, Field: strings.TrimPrefix(key, prefix)})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Fields returns the set of indexed field names for collection, used by
// the write path to decide which index keyspaces a document mutation must
// touch.
func (m *Manager) Fields(collection string) ([]string, error) {
	infos, err := m.List(collection)
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(infos))
	for i, info := range infos {
		fields[i] = info.Field
	}
	return fields, nil
}

// Mutations computes the storage.Mutation set that keeps every declared
// index for collection consistent with a document write: entries present
// in oldBody but not newBody are removed, entries present in newBody but
// not oldBody are inserted, matching AnuDB's
// insertIfIndexFieldExists/deleteIfIndexFieldExists symmetry. Pass a zero
// document.Value for oldBody on insert, and a zero newBody on delete.
func (m *Manager) Mutations(collection, id string, oldBody, newBody document.Value, fields []string) ([]storage.Mutation, error) {
	var muts []storage.Mutation
	for _, field := range fields {
		oldVal, oldOK := fieldIfScalar(oldBody, field)
		newVal, newOK := fieldIfScalar(newBody, field)
		if oldOK && (!newOK || !document.Equal(oldVal, newVal)) {
			key, err := encodeEntryKey(oldVal, id)
			if err != nil {
				return nil, err
			}
			muts = append(muts, storage.Mutation{Op: storage.OpDelete, Keyspace: Keyspace(collection, field), Key: string(key)})
		}
		if newOK && (!oldOK || !document.Equal(oldVal, newVal)) {
			key, err := encodeEntryKey(newVal, id)
			if err != nil {
				return nil, err
			}
			muts = append(muts, storage.Mutation{Op: storage.OpPut, Keyspace: Keyspace(collection, field), Key: string(key), Value: []byte(id)})
		}
	}
	return muts, nil
}

func fieldIfScalar(body document.Value, field string) (document.Value, bool) {
	if body.Kind() != document.Map {
		return document.Value{}, false
	}
	fv, ok := body.Field(field)
	if !ok || !fv.IsScalar() {
		return document.Value{}, false
	}
	return fv, true
}

// encodeEntryKey builds the composite index key: a kind tag (so values of
// different kinds never compare equal or interleave confusingly), the
// order-preserving scalar encoding, a separator, and the document id (so
// distinct documents sharing an indexed value still get distinct keys).
func encodeEntryKey(v document.Value, id string) ([]byte, error) {
	kind, enc, err := EncodeScalar(v)
	if err != nil {
		return nil, err
	}
	key := make([]byte, 0, 1+len(enc)+1+len(id))
	key = append(key, byte(kind))
	key = append(key, enc...)
	key = append(key, keycodec.Separator)
	key = append(key, id...)
	return key, nil
}

// EncodeScalar encodes a scalar document.Value into its keycodec
// representation, tagged with the Kind it was encoded with.
func EncodeScalar(v document.Value) (keycodec.Kind, []byte, error) {
	switch v.Kind() {
	case document.Bool:
		return keycodec.KindBool, keycodec.EncodeBool(v.Bool()), nil
	case document.Int:
		return keycodec.KindInt, keycodec.EncodeInt(v.Int()), nil
	case document.Double:
		return keycodec.KindDouble, keycodec.EncodeDouble(v.Double()), nil
	case document.String:
		return keycodec.KindString, keycodec.EncodeString(v.String()), nil
	default:
		return 0, nil, fmt.Errorf("index: value of kind %s is not indexable", v.Kind())
	}
}

// ValuePrefix builds the kind-tagged, order-preserving prefix for a scalar
// value without the trailing document id — the seek key the query package
// uses for $eq/$gt/$lt range scans.
func ValuePrefix(v document.Value) (keycodec.Kind, []byte, error) {
	kind, enc, err := EncodeScalar(v)
	if err != nil {
		return 0, nil, err
	}
	prefix := make([]byte, 0, 1+len(enc))
	prefix = append(prefix, byte(kind))
	prefix = append(prefix, enc...)
	return kind, prefix, nil
}

// SplitEntryKey extracts the document id suffix from a raw index key
// produced by encodeEntryKey (the portion after the last Separator).
func SplitEntryKey(key []byte) (id string) {
	idx := -1
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == keycodec.Separator {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ""
	}
	return string(key[idx+1:])
}
