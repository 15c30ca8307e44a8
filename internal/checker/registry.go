package checker

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/model"
)

// Registry holds the registered checkers. It is built once at startup and
// read-only afterwards. Disabled checkers stay registered so they remain
// discoverable; they are only excluded from execution.
type Registry struct {
	byName  map[string]Checker
	all     []Checker
	enabled []Checker
}

// NewRegistry builds a Registry from the given checkers. Names must be
// globally unique across enabled and disabled checkers alike.
func NewRegistry(checkers ...Checker) (*Registry, error) {
	r := &Registry{byName: make(map[string]Checker, len(checkers))}

	for _, c := range checkers {
		desc := c.Descriptor()
		if desc.Name == "" {
			return nil, eris.New("registry: checker with empty name")
		}
		if !desc.Category.Valid() {
			return nil, eris.Errorf("registry: checker %s has unknown category %q", desc.Name, desc.Category)
		}
		if _, exists := r.byName[desc.Name]; exists {
			return nil, eris.Errorf("registry: duplicate checker name %s", desc.Name)
		}
		r.byName[desc.Name] = c
		r.all = append(r.all, c)
		if desc.Enabled {
			r.enabled = append(r.enabled, c)
		}
	}

	sortCheckers(r.all)
	sortCheckers(r.enabled)
	return r, nil
}

// sortCheckers orders by priority descending, name ascending. The order is
// the response ordering guarantee, so it must be deterministic.
func sortCheckers(cs []Checker) {
	sort.Slice(cs, func(i, j int) bool {
		di, dj := cs[i].Descriptor(), cs[j].Descriptor()
		if di.Priority != dj.Priority {
			return di.Priority > dj.Priority
		}
		return di.Name < dj.Name
	})
}

// ByName returns the checker with the given name, if registered.
func (r *Registry) ByName(name string) (Checker, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// ByCategory returns all checkers in the category, in registry order.
func (r *Registry) ByCategory(cat model.Category) []Checker {
	var out []Checker
	for _, c := range r.all {
		if c.Descriptor().Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// Applicable returns the enabled checkers supporting the input type, ordered
// by priority desc, name asc.
func (r *Registry) Applicable(t model.InputType) []Checker {
	var out []Checker
	for _, c := range r.enabled {
		if c.Descriptor().Supports(t) {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered checker, disabled included, in registry order.
func (r *Registry) All() []Checker {
	out := make([]Checker, len(r.all))
	copy(out, r.all)
	return out
}
