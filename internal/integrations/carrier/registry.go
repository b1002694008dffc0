package carrier

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Registry maps provider names to adapters. It is filled at startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[normalizeName(p.Name())] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[normalizeName(name)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "provider %q", name)
	}
	return p, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.providers[normalizeName(name)]
	return ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
