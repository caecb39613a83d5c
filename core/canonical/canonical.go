// Package canonical provides the deterministic serialization and digest
// primitives every hashed artifact in the kernel is built on.
//
// Canonicalize implements the historical canonical form: object keys are
// sorted explicitly, nulls collapse to the empty string, and array elements
// are reordered by their serialized form before hashing. Evidence packages
// and trace hashes issued under this form must keep verifying, so the
// algorithm is frozen; see the array-ordering note on canonicalValue.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the canonical byte form of a JSON-like value.
// A nil value canonicalizes to the empty byte string.
func Canonicalize(value any) ([]byte, error) {
	normalized, err := toJSONValue(value)
	if err != nil {
		return nil, err
	}
	if normalized == nil {
		return []byte{}, nil
	}
	return encodeCanonical(normalized)
}

// SHA256Hex returns the lowercase hex sha256 digest of the input string.
func SHA256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// DigestValue canonicalizes a value and digests the result.
func DigestValue(value any) (string, error) {
	canonicalBytes, err := Canonicalize(value)
	if err != nil {
		return "", err
	}
	return SHA256Hex(string(canonicalBytes)), nil
}

// DigestJCS canonicalizes raw JSON per RFC 8785 and returns a sha256 hex
// digest. Used for reference digests (contract refs), not for the frozen
// evidence/trace canonical form.
func DigestJCS(input []byte) (string, error) {
	canonicalBytes, err := jcs.Transform(input)
	if err != nil {
		return "", err
	}
	return SHA256Hex(string(canonicalBytes)), nil
}

// toJSONValue reduces arbitrary Go values to the JSON data model
// (map[string]any, []any, string, float64, bool, nil) by round-tripping
// through encoding/json. The round trip is unconditional: a plain map can
// still hold structs or typed slices in its values, and those must reduce
// too, or the canonical form would depend on Go field order while a
// reparsed copy of the same value would not.
func toJSONValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("reduce value to json model: %w", err)
	}
	var reduced any
	if err := json.Unmarshal(raw, &reduced); err != nil {
		return nil, fmt.Errorf("parse reduced json value: %w", err)
	}
	return reduced, nil
}

// encodeCanonical serializes one JSON-model value with explicit key sorting.
// Object key order is produced by sort.Strings, never by a serializer's
// incidental map ordering.
func encodeCanonical(value any) ([]byte, error) {
	switch typed := value.(type) {
	case nil:
		// Nested nulls collapse to the empty string.
		return json.Marshal("")
	case map[string]any:
		return encodeCanonicalObject(typed)
	case []any:
		return encodeCanonicalArray(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("encode canonical primitive: %w", err)
		}
		return encoded, nil
	}
}

func encodeCanonicalObject(object map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buffer := make([]byte, 0, 64)
	buffer = append(buffer, '{')
	for index, key := range keys {
		if index > 0 {
			buffer = append(buffer, ',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("encode canonical key: %w", err)
		}
		encodedValue, err := encodeCanonical(object[key])
		if err != nil {
			return nil, err
		}
		buffer = append(buffer, encodedKey...)
		buffer = append(buffer, ':')
		buffer = append(buffer, encodedValue...)
	}
	buffer = append(buffer, '}')
	return buffer, nil
}

// encodeCanonicalArray canonicalizes each element, then orders elements by
// their serialized form. Two arrays holding the same elements in different
// order therefore hash identically. This is the historical rule; changing it
// would invalidate every previously issued package hash.
func encodeCanonicalArray(array []any) ([]byte, error) {
	encodedElements := make([]string, 0, len(array))
	for _, element := range array {
		encoded, err := encodeCanonical(element)
		if err != nil {
			return nil, err
		}
		encodedElements = append(encodedElements, string(encoded))
	}
	sort.Strings(encodedElements)

	buffer := make([]byte, 0, 64)
	buffer = append(buffer, '[')
	for index, encoded := range encodedElements {
		if index > 0 {
			buffer = append(buffer, ',')
		}
		buffer = append(buffer, encoded...)
	}
	buffer = append(buffer, ']')
	return buffer, nil
}
