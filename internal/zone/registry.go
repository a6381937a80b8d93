package zone

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry is the process-wide set of apex zones sharing one Tree. The
// zone map is a concurrent map keyed by zone name so query-time lookups
// never contend with administrative create/delete.
type Registry struct {
	Tree  *Tree
	zones cmap.ConcurrentMap[string, *ApexZone]
}

func NewRegistry() *Registry {
	return &Registry{
		Tree:  NewTree(),
		zones: cmap.New[*ApexZone](),
	}
}

func (r *Registry) Put(z *ApexZone)                 { r.zones.Set(z.Name.Key(), z) }
func (r *Registry) Get(name Name) (*ApexZone, bool) { return r.zones.Get(name.Key()) }
func (r *Registry) Remove(name Name)                { r.zones.Remove(name.Key()) }
func (r *Registry) Names() []string                 { return r.zones.Keys() }
func (r *Registry) Count() int                      { return r.zones.Count() }

// FindApex returns the deepest enclosing apex zone for name, via the
// shared Tree's FindZone.
func (r *Registry) FindApex(name Name) *ApexZone {
	res := r.Tree.FindZone(name)
	return res.Apex
}
