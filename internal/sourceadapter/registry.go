package sourceadapter

import (
	"fmt"

	"scoutengine/internal/domain/entity"
)

// Registry resolves a ScoutKind to its Adapter instance. New, grounded on
// spec.md §9's "registry keyed by tool-kind tag" re-architecture note: the
// source's dynamic by-string-name tool binding becomes a closed set of
// polymorphic adapter variants looked up here, rather than reflection or a
// map of arbitrary functions.
type Registry struct {
	adapters map[entity.ScoutKind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[entity.ScoutKind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// Get returns the Adapter bound to kind, or an error if none is registered
// (meta scouts have no adapter of their own: they resolve child scouts
// instead, see internal/scout/meta.go).
func (r *Registry) Get(kind entity.ScoutKind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("sourceadapter: no adapter registered for kind %q", kind)
	}
	return a, nil
}

// RSS returns the registry's RSSAdapter directly, since the RSS adapter
// exposes additional persistence-facing methods (Subscribe/Poll/Read/
// MarkProcessed/ResetProcessed) beyond the plain Adapter interface.
func (r *Registry) RSS() (*RSSAdapter, error) {
	a, err := r.Get(entity.ScoutKindRSS)
	if err != nil {
		return nil, err
	}
	rss, ok := a.(*RSSAdapter)
	if !ok {
		return nil, fmt.Errorf("sourceadapter: registered rss adapter has unexpected type %T", a)
	}
	return rss, nil
}
