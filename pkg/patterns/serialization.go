package patterns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Serialization helpers for the collection slot and for patch documents.
//
// The slot holds a compact JSON array. Timestamps are written as RFC 3339 in UTC
// with millisecond precision so collections written by other tools round-trip.

// EncodeCollection converts a Collection to its slot representation.
// A nil collection encodes as an empty array, never as null.
func EncodeCollection(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}
	return data, nil
}

// DecodeCollection converts a slot blob back into a Collection.
// An empty or whitespace-only blob, and a JSON null, decode as an empty collection.
func DecodeCollection(data []byte) (Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Collection{}, nil
	}
	var c Collection
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	if c == nil {
		c = Collection{}
	}
	return c, nil
}

// DecodePatch parses a JSON object of partial fields. Keys other than name, kit
// and pattern (notably id, created and modified) are ignored.
func DecodePatch(data []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return Patch{}, fmt.Errorf("failed to unmarshal patch: %w", err)
	}
	return p, nil
}

// Timestamp normalises t the way every stored timestamp is normalised.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
