package canonical

import (
	"strings"
	"testing"
)

func TestCanonicalizeSortsObjectKeys(t *testing.T) {
	first, err := Canonicalize(map[string]any{"b": 2.0, "a": 1.0, "c": 3.0})
	if err != nil {
		t.Fatalf("canonicalize first: %v", err)
	}
	if string(first) != `{"a":1,"b":2,"c":3}` {
		t.Fatalf("unexpected canonical object: %s", string(first))
	}
}

func TestCanonicalizeKeyOrderIndependence(t *testing.T) {
	shuffled := map[string]any{
		"zulu":  map[string]any{"y": "2", "x": "1"},
		"alpha": []any{"b", "a"},
	}
	ordered := map[string]any{
		"alpha": []any{"a", "b"},
		"zulu":  map[string]any{"x": "1", "y": "2"},
	}
	left, err := DigestValue(shuffled)
	if err != nil {
		t.Fatalf("digest shuffled: %v", err)
	}
	right, err := DigestValue(ordered)
	if err != nil {
		t.Fatalf("digest ordered: %v", err)
	}
	if left != right {
		t.Fatalf("digest differs across key order: %s vs %s", left, right)
	}
}

func TestCanonicalizeArraysAreOrderInsensitive(t *testing.T) {
	left, err := Canonicalize([]any{"delta", "alpha", "charlie"})
	if err != nil {
		t.Fatalf("canonicalize left: %v", err)
	}
	right, err := Canonicalize([]any{"charlie", "delta", "alpha"})
	if err != nil {
		t.Fatalf("canonicalize right: %v", err)
	}
	if string(left) != string(right) {
		t.Fatalf("array order leaked into canonical form: %s vs %s", string(left), string(right))
	}
	if string(left) != `["alpha","charlie","delta"]` {
		t.Fatalf("unexpected canonical array: %s", string(left))
	}
}

func TestCanonicalizeNilIsEmpty(t *testing.T) {
	canonicalBytes, err := Canonicalize(nil)
	if err != nil {
		t.Fatalf("canonicalize nil: %v", err)
	}
	if len(canonicalBytes) != 0 {
		t.Fatalf("nil should canonicalize to empty bytes, got %q", string(canonicalBytes))
	}
}

func TestCanonicalizeNestedNullCollapsesToEmptyString(t *testing.T) {
	canonicalBytes, err := Canonicalize(map[string]any{"field": nil})
	if err != nil {
		t.Fatalf("canonicalize nested null: %v", err)
	}
	if string(canonicalBytes) != `{"field":""}` {
		t.Fatalf("unexpected nested null form: %s", string(canonicalBytes))
	}
}

func TestCanonicalizeReducesStructsToJSONModel(t *testing.T) {
	type sample struct {
		Zulu  string `json:"zulu"`
		Alpha int    `json:"alpha"`
	}
	canonicalBytes, err := Canonicalize(sample{Zulu: "z", Alpha: 7})
	if err != nil {
		t.Fatalf("canonicalize struct: %v", err)
	}
	if string(canonicalBytes) != `{"alpha":7,"zulu":"z"}` {
		t.Fatalf("unexpected struct canonical form: %s", string(canonicalBytes))
	}
}

func TestCanonicalizeReducesValuesNestedInPlainMaps(t *testing.T) {
	type item struct {
		Zulu  string   `json:"zulu"`
		Alpha int      `json:"alpha"`
		Tags  []string `json:"tags"`
		Note  *string  `json:"note"`
	}
	wrapped := map[string]any{
		"payload": item{Zulu: "z", Alpha: 7, Tags: []string{"delta", "alpha"}},
	}
	reparsed := map[string]any{
		"payload": map[string]any{
			"zulu":  "z",
			"alpha": 7.0,
			"tags":  []any{"alpha", "delta"},
			"note":  nil,
		},
	}
	fromStruct, err := Canonicalize(wrapped)
	if err != nil {
		t.Fatalf("canonicalize wrapped struct: %v", err)
	}
	fromMap, err := Canonicalize(reparsed)
	if err != nil {
		t.Fatalf("canonicalize reparsed map: %v", err)
	}
	if string(fromStruct) != string(fromMap) {
		t.Fatalf("nested struct and its reparsed map diverge: %s vs %s", string(fromStruct), string(fromMap))
	}
	want := `{"payload":{"alpha":7,"note":"","tags":["alpha","delta"],"zulu":"z"}}`
	if string(fromStruct) != want {
		t.Fatalf("unexpected nested canonical form: %s", string(fromStruct))
	}
}

func TestSHA256HexFormat(t *testing.T) {
	digest := SHA256Hex("govkernel")
	if len(digest) != 64 {
		t.Fatalf("digest length: %d", len(digest))
	}
	if digest != strings.ToLower(digest) {
		t.Fatalf("digest must be lowercase hex: %s", digest)
	}
}

func TestSHA256HexKnownVector(t *testing.T) {
	digest := SHA256Hex("")
	if digest != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("unexpected empty-string digest: %s", digest)
	}
}

func TestDigestValueDeterministic(t *testing.T) {
	value := map[string]any{"task": "summarize", "actions": []any{"read", "report"}}
	first, err := DigestValue(value)
	if err != nil {
		t.Fatalf("first digest: %v", err)
	}
	second, err := DigestValue(value)
	if err != nil {
		t.Fatalf("second digest: %v", err)
	}
	if first != second {
		t.Fatalf("digest not deterministic: %s vs %s", first, second)
	}
}

func TestDigestJCSRejectsInvalidJSON(t *testing.T) {
	if _, err := DigestJCS([]byte("{not json")); err == nil {
		t.Fatalf("expected invalid json to fail")
	}
}
