// Package jsontree represents dynamically-typed JSON config/memory blobs
// (agent_config, memory_data) as a tagged tree rather than closed structs,
// per the design note in spec.md §9: their shape is agent-defined and must
// never be unmarshaled into fixed Go types.
package jsontree

import (
	"encoding/json"
	"strings"
)

// Tree wraps an arbitrary decoded-JSON value (map[string]interface{},
// []interface{}, or a scalar) and exposes dotted-path traversal over it.
type Tree struct {
	root interface{}
}

// New wraps an already-decoded JSON value.
func New(v interface{}) *Tree {
	if v == nil {
		v = map[string]interface{}{}
	}
	return &Tree{root: v}
}

// Parse decodes raw JSON bytes into a Tree. Empty input yields an empty object.
func Parse(raw []byte) (*Tree, error) {
	if len(raw) == 0 {
		return New(map[string]interface{}{}), nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return New(v), nil
}

// Raw returns the underlying decoded value.
func (t *Tree) Raw() interface{} {
	if t == nil {
		return nil
	}
	return t.root
}

// MarshalJSON serializes the tree back to compact JSON.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil || t.root == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.root)
}

// Lookup resolves a dotted path ("chat.long_term_memory") against the tree,
// returning nil if any segment is missing or not traversable (a map).
// Lists are not indexable via dotted paths — a segment landing on a list
// without further map structure simply returns the list itself.
func (t *Tree) Lookup(dottedPath string) interface{} {
	if t == nil || t.root == nil || dottedPath == "" {
		return t.Raw()
	}

	cur := t.root
	for _, seg := range strings.Split(dottedPath, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		v, present := m[seg]
		if !present {
			return nil
		}
		cur = v
	}
	return cur
}

// Set writes a value at a dotted path, creating intermediate maps as needed.
// It mutates the tree in place and is used for both config overrides and
// long-term-memory writeback.
func (t *Tree) Set(dottedPath string, value interface{}) {
	if t.root == nil {
		t.root = map[string]interface{}{}
	}
	root, ok := t.root.(map[string]interface{})
	if !ok {
		root = map[string]interface{}{}
		t.root = root
	}

	segs := strings.Split(dottedPath, ".")
	cur := root
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[seg] = next
		}
		cur = next
	}
}

// DeepMerge recursively merges overlay over base: only map-vs-map pairs
// recurse key by key; every other value (including slices — lists never
// concatenate) is replaced wholesale by the overlay's value, except that a
// nil overlay value (JSON null) leaves base's value in place. base is not
// mutated; a new merged map is returned. Mirrors original_source's
// _deep_merge exactly (see SPEC_FULL.md §3).
func DeepMerge(base, overlay interface{}) interface{} {
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})

	if !baseIsMap || !overlayIsMap {
		if overlay != nil {
			return overlay
		}
		return base
	}

	merged := make(map[string]interface{}, len(baseMap)+len(overlayMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for k, ov := range overlayMap {
		if bv, exists := merged[k]; exists {
			merged[k] = DeepMerge(bv, ov)
		} else {
			merged[k] = ov
		}
	}
	return merged
}

// MergeTrees deep-merges overlay's tree over base's tree and returns a new Tree.
func MergeTrees(base, overlay *Tree) *Tree {
	var b, o interface{}
	if base != nil {
		b = base.root
	}
	if overlay != nil {
		o = overlay.root
	}
	return New(DeepMerge(b, o))
}
