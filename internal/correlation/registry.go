package correlation

import "sort"

// LinkRegistry is a multi-valued mapping from a key (commit SHA, merge request
// id or issue id) to the set of identifiers related to it. Inserts are
// idempotent and entries are never removed.
type LinkRegistry struct {
	links map[string]map[string]struct{}
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{links: make(map[string]map[string]struct{})}
}

// Add inserts value into the set at key, creating the set if needed.
func (r *LinkRegistry) Add(key, value string) {
	set, ok := r.links[key]
	if !ok {
		set = make(map[string]struct{})
		r.links[key] = set
	}
	set[value] = struct{}{}
}

// Get returns the set at key in sorted order, or an empty slice if absent.
func (r *LinkRegistry) Get(key string) []string {
	set := r.links[key]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Count returns the size of the set at key.
func (r *LinkRegistry) Count(key string) int {
	return len(r.links[key])
}

// Len returns the number of keys in the registry.
func (r *LinkRegistry) Len() int {
	return len(r.links)
}
