package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PathValue is one (path, value) pair within a single operator's field
// object, e.g. the "a.b.c": 1 entry of a $set object.
type PathValue struct {
	Path  string
	Value Value
}

// OpEntry is one top-level operator block of an update object, e.g.
// {"$set": {...}}.
type OpEntry struct {
	Op     string
	Fields []PathValue
}

// UpdateSpec is a fully-parsed update object, preserving the declaration
// order of both the operator blocks and the fields within each block, so
// that "applied in document order" (spec.md §4.2) is well defined.
type UpdateSpec struct {
	Ops []OpEntry
}

// ParseUpdateJSON parses a JSON update object such as
// {"$set":{"a":1},"$unset":{"b":1}} into an UpdateSpec, preserving key
// order at both levels.
func ParseUpdateJSON(data []byte) (UpdateSpec, error) {
	top, err := parseOrderedObject(data)
	if err != nil {
		return UpdateSpec{}, fmt.Errorf("document: invalid update object: %w", err)
	}
	spec := UpdateSpec{Ops: make([]OpEntry, 0, len(top))}
	for _, op := range top {
		fields, err := parseOrderedObject(op.Raw)
		if err != nil {
			return UpdateSpec{}, fmt.Errorf("document: invalid %s object: %w", op.Key, err)
		}
		entry := OpEntry{Op: op.Key, Fields: make([]PathValue, 0, len(fields))}
		for _, f := range fields {
			v, err := parseLeafJSON(f.Raw)
			if err != nil {
				return UpdateSpec{}, fmt.Errorf("document: invalid value for %s.%s: %w", op.Key, f.Key, err)
			}
			entry.Fields = append(entry.Fields, PathValue{Path: f.Key, Value: v})
		}
		spec.Ops = append(spec.Ops, entry)
	}
	return spec, nil
}

type orderedPair struct {
	Key string
	Raw json.RawMessage
}

// parseOrderedObject decodes a top-level JSON object into key/value pairs in
// declaration order, using token-based streaming decode since
// encoding/json's map[string]any decoding does not preserve key order.
func parseOrderedObject(data []byte) ([]orderedPair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var out []orderedPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, orderedPair{Key: key, Raw: raw})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return out, nil
}

func parseLeafJSON(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var any_ any
	if err := dec.Decode(&any_); err != nil {
		return Value{}, err
	}
	return FromAny(any_)
}

// ApplyUpdate applies spec to body (which must be a Map) in declaration
// order, implementing $set/$unset/$push/$pull per spec.md §4.2. upsert
// controls whether $push may create an absent field (spec.md §4.2/§8
// scenario 6).
func ApplyUpdate(body Value, spec UpdateSpec, upsert bool) (Value, error) {
	if body.kind != Map {
		return Value{}, fmt.Errorf("document: update target must be a map, got %s", body.kind)
	}
	cur := body
	for _, op := range spec.Ops {
		var err error
		switch op.Op {
		case "$set":
			cur, err = applySet(cur, op.Fields)
		case "$unset":
			cur, err = applyUnset(cur, op.Fields)
		case "$push":
			cur, err = applyPush(cur, op.Fields, upsert)
		case "$pull":
			cur, err = applyPull(cur, op.Fields)
		default:
			return Value{}, fmt.Errorf("document: unsupported update operator %q", op.Op)
		}
		if err != nil {
			return Value{}, err
		}
	}
	return cur, nil
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// navigateParent walks all but the last segment of tokens starting from root,
// descending into maps and (for numeric segments) lists. It returns the
// final container value, a setter to write the final segment back into
// root, and ok=false if any intermediate segment is missing — in which case
// the caller must treat the whole path as a documented no-op.
func navigateParent(root Value, tokens []string) (container Value, setParent func(Value) Value, ok bool) {
	if len(tokens) == 1 {
		return root, func(v Value) Value { return v }, true
	}

	type frame struct {
		key      string // map key, or "" if this frame is a list index
		index    int
		isList   bool
		original Value
	}
	var frames []frame
	cur := root
	for _, tok := range tokens[:len(tokens)-1] {
		if cur.kind == List {
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return Value{}, nil, false
			}
			frames = append(frames, frame{index: idx, isList: true, original: cur})
			cur = cur.list[idx]
		} else if cur.kind == Map {
			fv, exists := cur.m[tok]
			if !exists {
				return Value{}, nil, false
			}
			frames = append(frames, frame{key: tok, original: cur})
			cur = fv
		} else {
			return Value{}, nil, false
		}
	}

	setter := func(newLeafParent Value) Value {
		result := newLeafParent
		for i := len(frames) - 1; i >= 0; i-- {
			f := frames[i]
			if f.isList {
				newList := append([]Value(nil), f.original.list...)
				newList[f.index] = result
				result = ListValue(newList)
			} else {
				result = f.original.WithField(f.key, result)
			}
		}
		return result
	}
	return cur, setter, true
}

func applySet(root Value, fields []PathValue) (Value, error) {
	for _, pv := range fields {
		tokens := splitPath(pv.Path)
		if len(tokens) == 1 {
			root = root.WithField(tokens[0], pv.Value)
			continue
		}
		parent, setter, ok := navigateParent(root, tokens)
		if !ok {
			continue // documented no-op: missing intermediate segment
		}
		last := tokens[len(tokens)-1]
		switch parent.kind {
		case Map:
			if _, exists := parent.m[last]; !exists {
				continue // nested-path creation is NOT performed
			}
			root = setter(parent.WithField(last, pv.Value))
		case List:
			idx, err := strconv.Atoi(last)
			if err != nil || idx < 0 || idx >= len(parent.list) {
				continue
			}
			newList := append([]Value(nil), parent.list...)
			newList[idx] = pv.Value
			root = setter(ListValue(newList))
		default:
			continue
		}
	}
	return root, nil
}

func applyUnset(root Value, fields []PathValue) (Value, error) {
	for _, pv := range fields {
		tokens := splitPath(pv.Path)
		if len(tokens) == 1 {
			if root.kind != Map {
				continue
			}
			if _, exists := root.m[tokens[0]]; !exists {
				continue
			}
			m := make(map[string]Value, len(root.m)-1)
			for k, v := range root.m {
				if k != tokens[0] {
					m[k] = v
				}
			}
			root = MapValue(m)
			continue
		}
		parent, setter, ok := navigateParent(root, tokens)
		if !ok {
			continue
		}
		last := tokens[len(tokens)-1]
		switch parent.kind {
		case Map:
			if _, exists := parent.m[last]; !exists {
				continue
			}
			m := make(map[string]Value, len(parent.m)-1)
			for k, v := range parent.m {
				if k != last {
					m[k] = v
				}
			}
			root = setter(MapValue(m))
		case List:
			idx, err := strconv.Atoi(last)
			if err != nil || idx < 0 || idx >= len(parent.list) {
				continue
			}
			newList := append([]Value(nil), parent.list[:idx]...)
			newList = append(newList, parent.list[idx+1:]...)
			root = setter(ListValue(newList))
		default:
			continue
		}
	}
	return root, nil
}

// applyPush and applyPull operate on top-level fields only, matching
// Document::applyUpdate's direct data_[key] indexing for these two
// operators (no dotted-path descent).
func applyPush(root Value, fields []PathValue, upsert bool) (Value, error) {
	if root.kind != Map {
		return Value{}, fmt.Errorf("document: $push target must be a map")
	}
	for _, pv := range fields {
		existing, exists := root.m[pv.Path]
		if !exists {
			if !upsert {
				return Value{}, fmt.Errorf("document: $push on absent field %q requires upsert", pv.Path)
			}
			root = root.WithField(pv.Path, ListValue([]Value{pv.Value}))
			continue
		}
		if existing.kind == List {
			root = root.WithField(pv.Path, ListValue(append(append([]Value(nil), existing.list...), pv.Value)))
		} else {
			root = root.WithField(pv.Path, ListValue([]Value{existing, pv.Value}))
		}
	}
	return root, nil
}

func applyPull(root Value, fields []PathValue) (Value, error) {
	if root.kind != Map {
		return Value{}, fmt.Errorf("document: $pull target must be a map")
	}
	for _, pv := range fields {
		existing, exists := root.m[pv.Path]
		if !exists {
			continue
		}
		if existing.kind == List {
			kept := make([]Value, 0, len(existing.list))
			for _, ev := range existing.list {
				if !Equal(ev, pv.Value) {
					kept = append(kept, ev)
				}
			}
			root = root.WithField(pv.Path, ListValue(kept))
		} else if Equal(existing, pv.Value) {
			m := make(map[string]Value, len(root.m)-1)
			for k, v := range root.m {
				if k != pv.Path {
					m[k] = v
				}
			}
			root = MapValue(m)
		} else {
			root = root.WithField(pv.Path, pv.Value)
		}
	}
	return root, nil
}
