// Package query implements the filter-tree planner: it parses a JSON-shaped
// filter object into a Filter tree and evaluates it against a collection's
// secondary indexes, producing an ordered list of document ids (spec.md
// §4.5).
package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/edgestore-io/picodb/document"
)

// Kind identifies a filter node's operator.
type Kind int

const (
	Eq Kind = iota + 1
	Gt
	Lt
	And
	Or
	OrderBy
)

// Filter is one parsed node of a filter tree. Eq/Gt/Lt populate Field and
// Literal; And/Or populate Children; OrderBy populates Field and
// Direction ("asc" or "desc").
type Filter struct {
	Kind      Kind
	Field     string
	Literal   document.Value
	Children  []Filter
	Direction string
}

// Parse parses a top-level filter object. Per this implementation's
// redesign of spec.md's unspecified "sibling operators" behavior (see
// SPEC_FULL.md §9), a filter object must carry exactly one top-level
// operator key — mixing conditions and $orderBy, or multiple conditions,
// at the same level is rejected rather than silently concatenated.
func Parse(data []byte) (Filter, error) {
	return parseObject(data)
}

func parseObject(data []byte) (Filter, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Filter{}, fmt.Errorf("query: invalid filter object: %w", err)
	}
	if len(raw) != 1 {
		return Filter{}, fmt.Errorf("query: filter object must have exactly one operator key, got %d", len(raw))
	}
	for op, body := range raw {
		switch op {
		case "$eq":
			return parseLeaf(Eq, body)
		case "$gt":
			return parseLeaf(Gt, body)
		case "$lt":
			return parseLeaf(Lt, body)
		case "$and":
			return parseComposite(And, body)
		case "$or":
			return parseComposite(Or, body)
		case "$orderBy":
			return parseOrderBy(body)
		default:
			return Filter{}, fmt.Errorf("query: unsupported operator %q", op)
		}
	}
	panic("unreachable")
}

func parseLeaf(kind Kind, body json.RawMessage) (Filter, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Filter{}, fmt.Errorf("query: invalid leaf operand: %w", err)
	}
	if len(raw) != 1 {
		return Filter{}, fmt.Errorf("query: leaf operator must carry exactly one (field, literal) pair")
	}
	for field, litRaw := range raw {
		dec := json.NewDecoder(bytes.NewReader(litRaw))
		dec.UseNumber()
		var any_ any
		if err := dec.Decode(&any_); err != nil {
			return Filter{}, fmt.Errorf("query: invalid literal for %q: %w", field, err)
		}
		lit, err := document.FromAny(any_)
		if err != nil {
			return Filter{}, fmt.Errorf("query: invalid literal for %q: %w", field, err)
		}
		if !lit.IsScalar() {
			return Filter{}, fmt.Errorf("query: literal for %q must be a scalar", field)
		}
		return Filter{Kind: kind, Field: field, Literal: lit}, nil
	}
	panic("unreachable")
}

func parseComposite(kind Kind, body json.RawMessage) (Filter, error) {
	var rawChildren []json.RawMessage
	if err := json.Unmarshal(body, &rawChildren); err != nil {
		return Filter{}, fmt.Errorf("query: %s operand must be an array: %w", kindName(kind), err)
	}
	children := make([]Filter, 0, len(rawChildren))
	for _, rc := range rawChildren {
		child, err := parseObject(rc)
		if err != nil {
			return Filter{}, err
		}
		children = append(children, child)
	}
	return Filter{Kind: kind, Children: children}, nil
}

func parseOrderBy(body json.RawMessage) (Filter, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return Filter{}, fmt.Errorf("query: invalid $orderBy operand: %w", err)
	}
	if len(raw) != 1 {
		return Filter{}, fmt.Errorf("query: $orderBy must carry exactly one (field, direction) pair")
	}
	for field, dir := range raw {
		if dir != "asc" && dir != "desc" {
			return Filter{}, fmt.Errorf("query: $orderBy direction must be \"asc\" or \"desc\", got %q", dir)
		}
		return Filter{Kind: OrderBy, Field: field, Direction: dir}, nil
	}
	panic("unreachable")
}

func kindName(k Kind) string {
	switch k {
	case Eq:
		return "$eq"
	case Gt:
		return "$gt"
	case Lt:
		return "$lt"
	case And:
		return "$and"
	case Or:
		return "$or"
	case OrderBy:
		return "$orderBy"
	default:
		return "unknown"
	}
}
