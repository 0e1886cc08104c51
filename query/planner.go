package query

import (
	"bytes"

	"github.com/edgestore-io/picodb/index"
	"github.com/edgestore-io/picodb/keycodec"
	"github.com/edgestore-io/picodb/status"
	"github.com/edgestore-io/picodb/storage"
)

// Planner evaluates parsed Filter trees against a collection's secondary
// indexes.
type Planner struct {
	db  *storage.DB
	idx *index.Manager
}

// NewPlanner wraps db/idx for query evaluation.
func NewPlanner(db *storage.DB, idx *index.Manager) *Planner {
	return &Planner{db: db, idx: idx}
}

// Find evaluates filter against collection and returns the ordered
// document ids it selects (spec.md §4.5).
func (p *Planner) Find(collection string, filter Filter) ([]string, error) {
	switch filter.Kind {
	case Eq, Gt, Lt:
		return p.evalLeaf(collection, filter)
	case And:
		return p.evalAnd(collection, filter.Children)
	case Or:
		return p.evalOr(collection, filter.Children)
	case OrderBy:
		return p.evalOrderBy(collection, filter)
	default:
		return nil, status.New(status.InvalidArgument, "query: unrecognized filter node")
	}
}

func (p *Planner) requireIndexed(collection, field string) error {
	exists, err := p.db.KeyspaceExists(index.Keyspace(collection, field))
	if err != nil {
		return err
	}
	if !exists {
		return status.New(status.InvalidArgument, "query: field %q has no index", field).WithCollection(collection)
	}
	return nil
}

func (p *Planner) evalLeaf(collection string, filter Filter) ([]string, error) {
	if err := p.requireIndexed(collection, filter.Field); err != nil {
		return nil, err
	}
	kind, valPrefix, err := index.ValuePrefix(filter.Literal)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgument, err, "query: unindexable literal").WithCollection(collection)
	}
	eqPrefix := append(append([]byte(nil), valPrefix...), keycodec.Separator)
	ks := index.Keyspace(collection, filter.Field)

	var ids []string
	switch filter.Kind {
	case Eq:
		err = p.db.IterFrom(ks, eqPrefix, func(k, v []byte) bool {
			if !bytes.HasPrefix(k, eqPrefix) {
				return false
			}
			ids = append(ids, string(v))
			return true
		})
	case Gt:
		err = p.db.IterFrom(ks, eqPrefix, func(k, v []byte) bool {
			if len(k) == 0 || k[0] != byte(kind) {
				return false // past the literal's kind: other value types never match
			}
			if bytes.HasPrefix(k, eqPrefix) {
				return true
			}
			ids = append(ids, string(v))
			return true
		})
	case Lt:
		err = p.db.IterReverseFrom(ks, eqPrefix, func(k, v []byte) bool {
			if len(k) == 0 || k[0] != byte(kind) {
				return false
			}
			ids = append(ids, string(v))
			return true
		})
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Planner) evalAnd(collection string, children []Filter) ([]string, error) {
	if len(children) == 0 {
		return nil, nil
	}
	first, err := p.Find(collection, children[0])
	if err != nil {
		return nil, err
	}
	set := newOrderedSet(first)
	for _, child := range children[1:] {
		ids, err := p.Find(collection, child)
		if err != nil {
			return nil, err
		}
		set.intersect(ids)
	}
	return set.values(), nil
}

func (p *Planner) evalOr(collection string, children []Filter) ([]string, error) {
	set := newOrderedSet(nil)
	for _, child := range children {
		ids, err := p.Find(collection, child)
		if err != nil {
			return nil, err
		}
		set.union(ids)
	}
	return set.values(), nil
}

func (p *Planner) evalOrderBy(collection string, filter Filter) ([]string, error) {
	if err := p.requireIndexed(collection, filter.Field); err != nil {
		return nil, err
	}
	ks := index.Keyspace(collection, filter.Field)
	var ids []string
	visit := func(k, v []byte) bool {
		ids = append(ids, string(v))
		return true
	}
	var err error
	if filter.Direction == "desc" {
		err = p.db.IterReverseFrom(ks, nil, visit)
	} else {
		err = p.db.Iter(ks, visit)
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// orderedSet tracks insertion order for $and/$or result sets (spec.md §4.5:
// "Set semantics (no duplicates, no ordering guarantee)" — insertion order
// is a convenient, deterministic choice, not a guarantee callers should
// rely on).
type orderedSet struct {
	order  []string
	member map[string]bool
}

func newOrderedSet(seed []string) *orderedSet {
	s := &orderedSet{member: make(map[string]bool, len(seed))}
	for _, id := range seed {
		if !s.member[id] {
			s.member[id] = true
			s.order = append(s.order, id)
		}
	}
	return s
}

func (s *orderedSet) union(ids []string) {
	for _, id := range ids {
		if !s.member[id] {
			s.member[id] = true
			s.order = append(s.order, id)
		}
	}
}

func (s *orderedSet) intersect(ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var newOrder []string
	for _, id := range s.order {
		if keep[id] {
			newOrder = append(newOrder, id)
		} else {
			delete(s.member, id)
		}
	}
	s.order = newOrder
}

func (s *orderedSet) values() []string {
	return s.order
}
