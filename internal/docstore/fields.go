package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EncodeNew serialises data for a new document, dropping any "id" field and
// stamping the server creation time.
func EncodeNew(data any, createdAt time.Time) (json.RawMessage, error) {
	fields, err := toFields(data)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	ts, err := json.Marshal(createdAt)
	if err != nil {
		return nil, fmt.Errorf("encode createdAt: %w", err)
	}
	fields[FieldCreatedAt] = ts
	return json.Marshal(fields)
}

// Merge overlays patch onto stored fields. The id and createdAt fields cannot be patched.
func Merge(data json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode stored fields: %w", err)
		}
	}
	for k, v := range patch {
		if k == "id" || k == FieldCreatedAt {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

func toFields(data any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must be an object: %w", err)
	}
	return fields, nil
}

type sortKey struct {
	kind int // 0 missing, 1 number, 2 time, 3 string
	num  float64
	ts   time.Time
	str  string
}

func keyOf(d Document, field string) sortKey {
	if field == FieldCreatedAt && !d.CreatedAt.IsZero() {
		return sortKey{kind: 2, ts: d.CreatedAt}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(d.Data, &fields); err != nil {
		return sortKey{}
	}
	raw, ok := fields[field]
	if !ok {
		return sortKey{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return sortKey{}
	}
	switch val := v.(type) {
	case json.Number:
		f, _ := val.Float64()
		return sortKey{kind: 1, num: f}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return sortKey{kind: 2, ts: ts}
		}
		return sortKey{kind: 3, str: val}
	default:
		return sortKey{}
	}
}

func compareKeys(a, b sortKey) int {
	if a.kind != b.kind {
		return a.kind - b.kind
	}
	switch a.kind {
	case 1:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
	case 2:
		return a.ts.Compare(b.ts)
	case 3:
		return strings.Compare(a.str, b.str)
	}
	return 0
}

// SortDocuments orders docs in place by order. Ties fall back to creation
// time and then id so listings are stable.
func SortDocuments(docs []Document, order Order) {
	keys := make([]sortKey, len(docs))
	for i, d := range docs {
		keys[i] = keyOf(d, order.Field)
	}
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		if c := compareKeys(keys[a], keys[b]); c != 0 {
			if order.Desc {
				return c > 0
			}
			return c < 0
		}
		if c := docs[a].CreatedAt.Compare(docs[b].CreatedAt); c != 0 {
			return c < 0
		}
		return docs[a].ID < docs[b].ID
	})
	sorted := make([]Document, len(docs))
	for i, k := range idx {
		sorted[i] = docs[k]
	}
	copy(docs, sorted)
}
