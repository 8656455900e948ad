package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
)

// Keyer generates deterministic cache keys from an operation name and its
// input. Two logically identical inputs must always produce the same key
// regardless of map iteration order.
type Keyer interface {
	Key(op string, input any) (string, error)
}

// DefaultKeyer generates SHA-256 based keys over a canonical JSON
// rendering of the input.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key returns "<op>:<hash>" where hash is the first 16 hex characters of
// SHA-256 over the canonical JSON of input.
func (k *DefaultKeyer) Key(op string, input any) (string, error) {
	canonical, err := canonicalize(input)
	if err != nil {
		return "", fmt.Errorf("canonicalize input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s", op, hex.EncodeToString(sum[:8])), nil
}

// canonicalize produces a deterministic JSON rendering; map keys are
// sorted so iteration order never leaks into the key.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte("{")
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')
		vb, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte("[")
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		vb, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, ']'), nil
}

// ShortKey is a convenience for callers keying on a single string; it
// avoids the JSON round trip for hot paths.
func ShortKey(op, s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%s:%x", op, h.Sum64())
}

var _ Keyer = (*DefaultKeyer)(nil)
