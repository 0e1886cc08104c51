package picodb

import (
	"sync"

	"github.com/edgestore-io/picodb/document"
	"github.com/edgestore-io/picodb/index"
	"github.com/edgestore-io/picodb/query"
	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/storage"
)

// Collection is a schema-free set of JSON-shaped documents, each addressed
// by an id, with zero or more secondary indexes maintained synchronously
// on write (spec.md §3/§4.6).
type Collection struct {
	db      *DB
	name    string
	indexes *index.Manager
	planner *query.Planner

	// updateMu serializes the read-merge-write span of UpdateDocument
	// (SPEC_FULL.md §5): the document write and its index maintenance are
	// atomic as a storage.Batch, but the read that decides what to write
	// is not, so concurrent updates to the same collection are
	// serialized here rather than left to race.
	updateMu sync.Mutex

	exportMu sync.Mutex
	export   *exportState
}

func newCollection(db *DB, name string) *Collection {
	indexes := index.NewManager(db.store)
	return &Collection{
		db:      db,
		name:    name,
		indexes: indexes,
		planner: query.NewPlanner(db.store, indexes),
	}
}

// CreateDocument stores a new document, generating an id via GenerateID
// if body doesn't carry one and id is empty.
func (c *Collection) CreateDocument(id string, body document.Value) (string, error) {
	if id == "" {
		if idv, ok := body.Field("_id"); ok && idv.Kind() == document.String {
			id = idv.String()
		} else {
			id = GenerateID()
		}
	}

	_, ok, err := c.db.store.Get(c.name, id)
	if err != nil {
		return "", err
	}
	if ok {
		return "", status.New(status.InvalidArgument, "document %q already exists", id).WithCollection(c.name).WithKey(id)
	}

	body = body.WithField("_id", document.StringValue(id))

	fields, err := c.indexes.Fields(c.name)
	if err != nil {
		return "", err
	}
	muts, err := c.indexes.Mutations(c.name, id, document.Value{}, body, fields)
	if err != nil {
		return "", err
	}

	env := document.Envelope{ID: id, Data: body}
	data, err := env.Marshal()
	if err != nil {
		return "", status.Wrap(status.InternalError, err, "picodb: encode document").WithCollection(c.name).WithKey(id)
	}
	muts = append(muts, storage.Mutation{Op: storage.OpPut, Keyspace: c.name, Key: id, Value: data})

	if err := c.db.store.Batch(muts); err != nil {
		return "", err
	}
	c.db.metrics.Writes.Inc()
	c.sampleKeyCount()
	return id, nil
}

// ReadDocument retrieves a document by id.
func (c *Collection) ReadDocument(id string) (document.Envelope, error) {
	data, ok, err := c.db.store.Get(c.name, id)
	if err != nil {
		return document.Envelope{}, err
	}
	if !ok {
		return document.Envelope{}, status.New(status.NotFound, "no such document").WithCollection(c.name).WithKey(id)
	}
	c.db.metrics.Reads.Inc()
	env, err := document.UnmarshalEnvelope(data)
	if err != nil {
		return document.Envelope{}, status.Wrap(status.Corruption, err, "picodb: decode document").WithCollection(c.name).WithKey(id)
	}
	return env, nil
}

// UpdateDocument applies an operator update to an existing document. If
// upsert is true and the document doesn't exist, it is created from the
// update applied to an empty body.
func (c *Collection) UpdateDocument(id string, update document.UpdateSpec, upsert bool) error {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	data, ok, err := c.db.store.Get(c.name, id)
	if err != nil {
		return err
	}
	var oldBody document.Value
	if ok {
		env, err := document.UnmarshalEnvelope(data)
		if err != nil {
			return status.Wrap(status.Corruption, err, "picodb: decode document").WithCollection(c.name).WithKey(id)
		}
		oldBody = env.Data
	} else {
		if !upsert {
			return status.New(status.NotFound, "no such document").WithCollection(c.name).WithKey(id)
		}
		oldBody = document.MapValue(nil)
	}

	newBody, err := document.ApplyUpdate(oldBody, update, upsert)
	if err != nil {
		return status.Wrap(status.InvalidArgument, err, "picodb: apply update").WithCollection(c.name).WithKey(id)
	}
	newBody = newBody.WithField("_id", document.StringValue(id))

	fields, err := c.indexes.Fields(c.name)
	if err != nil {
		return err
	}
	var baseline document.Value
	if ok {
		baseline = oldBody
	} else {
		baseline = document.Value{}
	}
	muts, err := c.indexes.Mutations(c.name, id, baseline, newBody, fields)
	if err != nil {
		return err
	}

	env := document.Envelope{ID: id, Data: newBody}
	encoded, err := env.Marshal()
	if err != nil {
		return status.Wrap(status.InternalError, err, "picodb: encode document").WithCollection(c.name).WithKey(id)
	}
	muts = append(muts, storage.Mutation{Op: storage.OpPut, Keyspace: c.name, Key: id, Value: encoded})

	if err := c.db.store.Batch(muts); err != nil {
		return err
	}
	c.db.metrics.Writes.Inc()
	c.sampleKeyCount()
	return nil
}

// DeleteDocument removes a document and its index entries.
func (c *Collection) DeleteDocument(id string) error {
	data, ok, err := c.db.store.Get(c.name, id)
	if err != nil {
		return err
	}
	if !ok {
		return status.New(status.NotFound, "no such document").WithCollection(c.name).WithKey(id)
	}
	env, err := document.UnmarshalEnvelope(data)
	if err != nil {
		return status.Wrap(status.Corruption, err, "picodb: decode document").WithCollection(c.name).WithKey(id)
	}

	fields, err := c.indexes.Fields(c.name)
	if err != nil {
		return err
	}
	muts, err := c.indexes.Mutations(c.name, id, env.Data, document.Value{}, fields)
	if err != nil {
		return err
	}
	muts = append(muts, storage.Mutation{Op: storage.OpDelete, Keyspace: c.name, Key: id})

	if err := c.db.store.Batch(muts); err != nil {
		return err
	}
	c.db.metrics.Writes.Inc()
	c.sampleKeyCount()
	return nil
}

// sampleKeyCount refreshes the KeyCount gauge for this collection's
// keyspace after a write. Best-effort: a sampling failure doesn't fail
// the write it's reporting on.
func (c *Collection) sampleKeyCount() {
	n, err := c.db.store.KeyCount(c.name)
	if err != nil {
		return
	}
	c.db.metrics.KeyCount.WithLabelValues(c.name).Set(float64(n))
}

// CreateIndex declares a new secondary index on field, backfilling it from
// every document currently in the collection.
func (c *Collection) CreateIndex(field string) error {
	return c.indexes.Create(c.name, field, func(yield func(id string, body document.Value) bool) error {
		var yieldErr error
		err := c.db.store.Iter(c.name, func(k, v []byte) bool {
			env, err := document.UnmarshalEnvelope(v)
			if err != nil {
				yieldErr = err
				return false
			}
			return yield(env.ID, env.Data)
		})
		if err != nil {
			return err
		}
		return yieldErr
	})
}

// DeleteIndex drops a secondary index.
func (c *Collection) DeleteIndex(field string) error {
	return c.indexes.Delete(c.name, field)
}

// ListIndexes returns every index declared on the collection.
func (c *Collection) ListIndexes() ([]index.Info, error) {
	return c.indexes.List(c.name)
}

// Find parses and evaluates a JSON-shaped filter object (spec.md §4.5),
// returning the ordered document ids it selects.
func (c *Collection) Find(filterJSON []byte) ([]string, error) {
	filter, err := query.Parse(filterJSON)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgument, err, "picodb: parse filter").WithCollection(c.name)
	}
	c.db.metrics.IndexHits.Inc()
	return c.planner.Find(c.name, filter)
}
