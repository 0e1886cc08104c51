package document

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestDoubleValueRejectsNaN(t *testing.T) {
	if _, err := DoubleValue(math.NaN()); err == nil {
		t.Fatalf("expected error constructing NaN value")
	}
}

func TestEqual(t *testing.T) {
	a := MapValue(map[string]Value{"x": IntValue(1), "y": ListValue([]Value{StringValue("a"), NullValue()})})
	b := MapValue(map[string]Value{"x": IntValue(1), "y": ListValue([]Value{StringValue("a"), NullValue()})})
	if !Equal(a, b) {
		t.Fatalf("expected deep-equal maps to be Equal")
	}
	c := MapValue(map[string]Value{"x": IntValue(2)})
	if Equal(a, c) {
		t.Fatalf("expected different maps to not be Equal")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	d, _ := DoubleValue(1299.99)
	v := MapValue(map[string]Value{
		"price":    d,
		"category": StringValue("Electronics"),
		"active":   BoolValue(true),
		"tags":     ListValue([]Value{StringValue("a"), StringValue("b")}),
		"missing":  NullValue(),
	})
	data, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Value
	if err := msgpack.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(v, out) {
		t.Fatalf("round trip mismatch: got %+v", out)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	v := MapValue(map[string]Value{
		"n": IntValue(42),
		"s": StringValue("hi"),
	})
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(v, out) {
		t.Fatalf("round trip mismatch: got %+v, data=%s", out, data)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{ID: "p1", Data: MapValue(map[string]Value{"price": IntValue(5)})}
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "p1" || !Equal(got.Data, env.Data) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestBodyWithID(t *testing.T) {
	env := Envelope{ID: "p1", Data: MapValue(map[string]Value{"a": IntValue(1)})}
	body := env.BodyWithID()
	idv, ok := body.Field("_id")
	if !ok || idv.String() != "p1" {
		t.Fatalf("expected _id to be mirrored in body")
	}
}
