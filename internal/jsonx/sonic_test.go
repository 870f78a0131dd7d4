package jsonx

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	IsRelated bool   `json:"isRelated"`
	Reason    string `json:"reason"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := sample{IsRelated: true, Reason: "logs"}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestStringVariants(t *testing.T) {
	s, err := MarshalToString(map[string]int{"size": 5})
	if err != nil {
		t.Fatalf("MarshalToString failed: %v", err)
	}
	if !strings.Contains(s, `"size":5`) {
		t.Errorf("unexpected output: %s", s)
	}

	var decoded map[string]int
	if err := UnmarshalFromString(s, &decoded); err != nil {
		t.Fatalf("UnmarshalFromString failed: %v", err)
	}
	if decoded["size"] != 5 {
		t.Errorf("unexpected decode: %v", decoded)
	}
}

func TestUnmarshalNullLeavesPointerNil(t *testing.T) {
	var ptr *sample
	if err := UnmarshalFromString("null", &ptr); err != nil {
		t.Fatalf("UnmarshalFromString failed: %v", err)
	}
	if ptr != nil {
		t.Errorf("expected nil pointer for null, got %+v", ptr)
	}
}

func TestEncoderWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(sample{Reason: "metrics"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"metrics"`) {
		t.Errorf("unexpected encoder output: %s", buf.String())
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":1}`)) {
		t.Error("expected valid JSON")
	}
	if Valid([]byte(`{"a":`)) {
		t.Error("expected invalid JSON")
	}
}
