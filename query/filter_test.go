package query

import "testing"

func TestParseLeaf(t *testing.T) {
	f, err := Parse([]byte(`{"$gt":{"price":100.0}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Kind != Gt || f.Field != "price" || f.Literal.Double() != 100.0 {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestParseComposite(t *testing.T) {
	f, err := Parse([]byte(`{"$and":[{"$gt":{"price":100}},{"$eq":{"category":"Electronics"}}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Kind != And || len(f.Children) != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.Children[0].Kind != Gt || f.Children[1].Kind != Eq {
		t.Fatalf("unexpected children: %+v", f.Children)
	}
}

func TestParseOrderBy(t *testing.T) {
	f, err := Parse([]byte(`{"$orderBy":{"price":"asc"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Kind != OrderBy || f.Field != "price" || f.Direction != "asc" {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestParseRejectsMultipleTopLevelKeys(t *testing.T) {
	_, err := Parse([]byte(`{"$gt":{"price":100},"$orderBy":{"price":"asc"}}`))
	if err == nil {
		t.Fatalf("expected error for multiple top-level operator keys")
	}
}

func TestParseRejectsUnsupportedOperator(t *testing.T) {
	_, err := Parse([]byte(`{"$bogus":{"price":100}}`))
	if err == nil {
		t.Fatalf("expected error for unsupported operator")
	}
}

func TestParseRejectsBadOrderByDirection(t *testing.T) {
	_, err := Parse([]byte(`{"$orderBy":{"price":"sideways"}}`))
	if err == nil {
		t.Fatalf("expected error for invalid $orderBy direction")
	}
}

func TestParseRejectsNonScalarLiteral(t *testing.T) {
	_, err := Parse([]byte(`{"$eq":{"tags":["a","b"]}}`))
	if err == nil {
		t.Fatalf("expected error for non-scalar literal")
	}
}
