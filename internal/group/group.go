// Package group implements the group registry (spec.md §4.5): an
// insertion-ordered alias -> ServerGroup mapping with lazy creation and the
// reserved "DEFAULT" alias.
package group

import (
	"github.com/sasha-s/go-deadlock"

	"wsagentcfg/internal/collab"
)

// Default is the reserved alias used when a list block does not name a group.
const Default = "DEFAULT"

// HealthCheck is the fixed probe configuration every group is created with.
var HealthCheck = collab.HealthCheckConfig{
	InitialDelayMS: 5000,
	PeriodMS:       30000,
	Up:             1,
	Down:           2,
	Protocol:       collab.HealthCheckTCP,
}

// Registry maps group aliases to server-group handles. It is mutable only
// during parsing; once the parser hands the built Config to the validator,
// callers must stop calling GetOrCreate and treat the Registry as read-only.
type Registry struct {
	mu      deadlock.Mutex
	factory collab.ServerGroupFactory
	loops   collab.LoopGroup
	noHC    func() bool
	order   []string
	groups  map[string]collab.ServerGroup
}

// New builds a Registry backed by factory. noHealthCheck is called at each
// GetOrCreate, not just once at construction — a group's health-check
// protocol reflects whatever `proxy.server.hc` resolves to by the time that
// group is first created, since the directive can appear anywhere relative
// to the server-list block it applies to.
func New(factory collab.ServerGroupFactory, loops collab.LoopGroup, noHealthCheck func() bool) *Registry {
	return &Registry{
		factory: factory,
		loops:   loops,
		noHC:    noHealthCheck,
		groups:  make(map[string]collab.ServerGroup),
	}
}

// GetOrCreate returns the existing handle for alias, or creates one. An empty
// alias is treated as Default.
func (r *Registry) GetOrCreate(alias string) (collab.ServerGroup, error) {
	if alias == "" {
		alias = Default
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[alias]; ok {
		return g, nil
	}

	hc := HealthCheck
	if r.noHC() {
		hc.Protocol = collab.HealthCheckNone
	}

	g, err := r.factory.New(alias, r.loops, hc, collab.SelectionWeightedRoundRobin)
	if err != nil {
		return nil, err
	}
	r.groups[alias] = g
	r.order = append(r.order, alias)
	return g, nil
}

// Aliases returns every alias registered so far, insertion-ordered with
// Default (if present) moved to the end — a read-time transformation, not an
// insertion-time one (spec.md's "Ordering and DEFAULT-last" design note).
func (r *Registry) Aliases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.order))
	hasDefault := false
	for _, a := range r.order {
		if a == Default {
			hasDefault = true
			continue
		}
		out = append(out, a)
	}
	if hasDefault {
		out = append(out, Default)
	}
	return out
}

// Has reports whether alias has been registered.
func (r *Registry) Has(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.groups[alias]
	return ok
}

// OrderDefaultLast reorders any alias-keyed slice so that Default, if
// present, is moved to the end while every other alias keeps its relative
// order. It is used by internal/config to materialize domains/proxy_resolves/
// no_proxy_domains iteration order (spec.md §3 invariant, §8 property).
func OrderDefaultLast(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	hasDefault := false
	for _, a := range aliases {
		if a == Default {
			hasDefault = true
			continue
		}
		out = append(out, a)
	}
	if hasDefault {
		out = append(out, Default)
	}
	return out
}
