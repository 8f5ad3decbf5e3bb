package provider

import "sort"

// key addresses one (mode, quality) cell of the dispatch table.
type key struct {
	mode    Mode
	quality Quality
}

// Registry is the static dispatch table from (mode, quality) to a
// Provider. It is built once at process start from the configured
// credentials and read-only afterwards, so lookups need no locking.
// Adding a provider means implementing the Provider interface and
// registering it here.
type Registry struct {
	table map[key]Provider
}

// NewRegistry creates an empty dispatch table.
func NewRegistry() *Registry {
	return &Registry{table: make(map[key]Provider)}
}

// Register binds a provider to a (mode, quality) pair, replacing any
// previous binding for that pair.
func (r *Registry) Register(mode Mode, quality Quality, p Provider) {
	r.table[key{mode: mode, quality: quality}] = p
}

// Lookup returns the provider bound to the (mode, quality) pair.
func (r *Registry) Lookup(mode Mode, quality Quality) (Provider, bool) {
	p, ok := r.table[key{mode: mode, quality: quality}]
	return p, ok
}

// Names returns the sorted, de-duplicated names of all registered
// providers, for the health endpoint.
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(r.table))
	for _, p := range r.table {
		if seen[p.Name()] {
			continue
		}
		seen[p.Name()] = true
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// Empty returns true if no provider is registered at all.
func (r *Registry) Empty() bool {
	return len(r.table) == 0
}
