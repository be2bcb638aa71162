// Package normalize canonicalizes source and instrument identifiers so
// that differently-spelled references to the same entity compare equal.
package normalize

import (
	"sort"
	"sync"
)

// UnmappedAlias is a spelling Normalize saw but had no mapping for,
// kept for later curation of the alias table.
type UnmappedAlias struct {
	Raw   string `json:"raw"`
	Count int    `json:"count"`
}

// Normalizer maps recognized alias spellings to canonical names.
// Unknown inputs pass through unchanged and are recorded, never
// dropped. Safe for concurrent use.
type Normalizer struct {
	aliases map[string]string

	mu       sync.Mutex
	unmapped map[string]int
}

// New builds a Normalizer from an alias table. Chains in the table
// (a -> b, b -> c) are flattened so that Normalize is idempotent, and
// every canonical value maps to itself.
func New(aliases map[string]string) *Normalizer {
	flat := make(map[string]string, len(aliases)*2)
	for raw := range aliases {
		flat[raw] = resolve(aliases, raw)
	}
	for _, canonical := range flat {
		flat[canonical] = canonical
	}
	return &Normalizer{
		aliases:  flat,
		unmapped: make(map[string]int),
	}
}

// resolve follows a mapping chain to its end, stopping on cycles.
func resolve(aliases map[string]string, raw string) string {
	seen := map[string]bool{raw: true}
	cur := raw
	for {
		next, ok := aliases[cur]
		if !ok || seen[next] {
			return cur
		}
		seen[next] = true
		cur = next
	}
}

// Normalize returns the canonical form of raw, or raw itself when no
// mapping exists. Total and idempotent; unknown spellings are recorded.
func (n *Normalizer) Normalize(raw string) string {
	if canonical, ok := n.aliases[raw]; ok {
		return canonical
	}
	n.mu.Lock()
	n.unmapped[raw]++
	n.mu.Unlock()
	return raw
}

// Known reports whether raw has a mapping (including canonical names
// themselves) without recording anything.
func (n *Normalizer) Known(raw string) bool {
	_, ok := n.aliases[raw]
	return ok
}

// Unmapped returns every recorded unknown spelling with its occurrence
// count, sorted by spelling.
func (n *Normalizer) Unmapped() []UnmappedAlias {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]UnmappedAlias, 0, len(n.unmapped))
	for raw, count := range n.unmapped {
		out = append(out, UnmappedAlias{Raw: raw, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Raw < out[j].Raw })
	return out
}
