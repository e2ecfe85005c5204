// Package header implements the request/response header multimap used
// throughout the server: a case-insensitive lookup keyed by lowercased
// header name, backed by an ordered list of (original-case name, value)
// pairs so the wire writer can emit headers literally, in the order they
// were added.
//
// Go's built-in map already hashes string keys with a per-process random
// seed, so the case-insensitive index below inherits that collision
// resistance for free — no extra seeded-hash machinery is needed.
package header

import (
	"io"
	"strings"
)

// Pair is one (original-case name, value) entry.
type Pair struct {
	Name  string
	Value string
}

// Header is an ordered, case-insensitive multimap of HTTP header fields.
// The zero value is ready to use.
type Header struct {
	entries []Pair
	index   map[string][]int
}

// New returns an empty Header with storage pre-sized for n fields.
func New(n int) *Header {
	h := &Header{}
	if n > 0 {
		h.entries = make([]Pair, 0, n)
		h.index = make(map[string][]int, n)
	}
	return h
}

func lower(name string) string { return strings.ToLower(name) }

// Add appends a (name, value) pair, preserving name's original case and
// the overall insertion order across all header names.
func (h *Header) Add(name, value string) {
	if h.index == nil {
		h.index = make(map[string][]int, 4)
	}
	key := lower(name)
	h.index[key] = append(h.index[key], len(h.entries))
	h.entries = append(h.entries, Pair{Name: name, Value: value})
}

// Set replaces all values stored under name with the single given value.
// The name casing passed here becomes the casing written on the wire.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get returns the first value stored under name, case-insensitively, or
// "" if absent.
func (h *Header) Get(name string) string {
	idx, ok := h.index[lower(name)]
	if !ok || len(idx) == 0 {
		return ""
	}
	return h.entries[idx[0]].Value
}

// Values returns every value stored under name, in insertion order.
func (h *Header) Values(name string) []string {
	idx, ok := h.index[lower(name)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, h.entries[i].Value)
	}
	return out
}

// Has reports whether name is present, case-insensitively.
func (h *Header) Has(name string) bool {
	idx, ok := h.index[lower(name)]
	return ok && len(idx) > 0
}

// Del removes every value stored under name.
func (h *Header) Del(name string) {
	key := lower(name)
	idx, ok := h.index[key]
	if !ok {
		return
	}
	removed := make(map[int]bool, len(idx))
	for _, i := range idx {
		removed[i] = true
	}
	kept := h.entries[:0]
	for i, p := range h.entries {
		if removed[i] {
			continue
		}
		kept = append(kept, p)
	}
	h.entries = kept
	delete(h.index, key)
	h.reindex()
}

func (h *Header) reindex() {
	h.index = make(map[string][]int, len(h.entries))
	for i, p := range h.entries {
		key := lower(p.Name)
		h.index[key] = append(h.index[key], i)
	}
}

// Len returns the number of stored (name, value) pairs.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Range calls fn for every (name, value) pair in insertion order.
func (h *Header) Range(fn func(name, value string)) {
	if h == nil {
		return
	}
	for _, p := range h.entries {
		fn(p.Name, p.Value)
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	if h == nil {
		return New(0)
	}
	out := New(len(h.entries))
	for _, p := range h.entries {
		out.Add(p.Name, p.Value)
	}
	return out
}

// WriteTo serializes the header in wire format: "Name: value\r\n" per
// pair, in insertion order, names and values written literally (no
// canonicalization, no reordering) per the responder's write contract.
func (h *Header) WriteTo(w io.Writer) error {
	if h == nil {
		return nil
	}
	for _, p := range h.entries {
		if _, err := io.WriteString(w, p.Name); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ": "); err != nil {
			return err
		}
		if _, err := io.WriteString(w, p.Value); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
	}
	return nil
}
