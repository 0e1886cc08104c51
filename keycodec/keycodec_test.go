package keycodec

import (
	"bytes"
	"math"
	"sort"
	"testing"
)

func TestIntMonotonic(t *testing.T) {
	vals := []int64{math.MinInt64, -1_000_000, -1, 0, 1, 42, 1_000_000, math.MaxInt64}
	for i := 0; i < len(vals)-1; i++ {
		a, b := EncodeInt(vals[i]), EncodeInt(vals[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("EncodeInt(%d) >= EncodeInt(%d)", vals[i], vals[i+1])
		}
	}
}

func TestIntRoundTrip(t *testing.T) {
	for _, v := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
		got, err := DecodeInt(EncodeInt(v))
		if err != nil || got != v {
			t.Fatalf("round trip failed for %d: got %d, err %v", v, got, err)
		}
	}
}

func TestDoubleMonotonic(t *testing.T) {
	vals := []float64{
		math.Inf(-1), -1e300, -1.5, -1, -0.0001, 0, 0.0001, 1, 1.5, 1e300, math.Inf(1),
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for i := range vals {
		if vals[i] != sorted[i] {
			t.Fatalf("test input not pre-sorted")
		}
	}
	for i := 0; i < len(vals)-1; i++ {
		a, b := EncodeDouble(vals[i]), EncodeDouble(vals[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("EncodeDouble(%v) >= EncodeDouble(%v)", vals[i], vals[i+1])
		}
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	for _, v := range []float64{-1e300, -1.5, -0.0, 0, 0.0001, 1.5, 1e300} {
		got, err := DecodeDouble(EncodeDouble(v))
		if err != nil || got != v {
			t.Fatalf("round trip failed for %v: got %v, err %v", v, got, err)
		}
	}
}

func TestStringMonotonic(t *testing.T) {
	vals := []string{"", "a", "ab", "abc", "b", "z", "é"}
	sorted := append([]string(nil), vals...)
	sort.Strings(sorted)
	for i := range vals {
		if vals[i] != sorted[i] {
			t.Fatalf("test input not pre-sorted")
		}
	}
	for i := 0; i < len(vals)-1; i++ {
		a, b := EncodeString(vals[i]), EncodeString(vals[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("EncodeString(%q) >= EncodeString(%q)", vals[i], vals[i+1])
		}
	}
}

func TestBoolOrder(t *testing.T) {
	if bytes.Compare(EncodeBool(false), EncodeBool(true)) >= 0 {
		t.Fatalf("expected false < true")
	}
}

func TestBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		got, err := DecodeBool(EncodeBool(v))
		if err != nil || got != v {
			t.Fatalf("round trip failed for %v", v)
		}
	}
	if _, err := DecodeBool([]byte("nope")); err == nil {
		t.Fatalf("expected error for invalid bool key")
	}
}

func TestIsNaN(t *testing.T) {
	if !IsNaN(math.NaN()) {
		t.Fatalf("expected NaN to be detected")
	}
	if IsNaN(1.0) {
		t.Fatalf("expected 1.0 to not be NaN")
	}
}
