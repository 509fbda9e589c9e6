/*
registry.go - Policy lookup by employee type

PURPOSE:
  Holds the active policy of each employee category. Seeded with the
  built-in Regular and Administrative policies; the factory package can
  replace entries from a JSON policy file at startup.

WHY A TYPE, NOT A GLOBAL:
  Each Reconciler owns its registry, so tests and tenants never share
  mutable lookup state.

USAGE:
  reg := policy.DefaultRegistry()
  pol, err := reg.ForProfile(profile)

SEE ALSO:
  - factory/policy.go: JSON to Policy
*/
package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/warp/attendance-engine/core"
)

type Registry struct {
	mu       sync.RWMutex
	policies map[EmployeeType]Policy
}

// NewRegistry creates a registry holding the given policies.
func NewRegistry(policies ...Policy) (*Registry, error) {
	r := &Registry{policies: make(map[EmployeeType]Policy)}
	for _, p := range policies {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry holds Regular and Administrative.
func DefaultRegistry() *Registry {
	return &Registry{policies: map[EmployeeType]Policy{
		TypeRegular:        Regular(),
		TypeAdministrative: Administrative(),
	}}
}

// Register validates and installs p, replacing any policy of the same type.
func (r *Registry) Register(p Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("register %s policy: %w", p.Type, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Type] = p
	return nil
}

// Lookup finds the policy for t.
func (r *Registry) Lookup(t EmployeeType) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[t]
	return p, ok
}

// MustLookup finds the policy for t or panics.
// Use in tests or when you're certain the type is registered.
func (r *Registry) MustLookup(t EmployeeType) Policy {
	p, ok := r.Lookup(t)
	if !ok {
		panic(fmt.Sprintf("policy not registered: %s", t))
	}
	return p
}

// ForProfile resolves and validates the policy of an employee.
func (r *Registry) ForProfile(profile Profile) (Policy, error) {
	p, ok := r.Lookup(profile.Type)
	if !ok {
		return Policy{}, &core.NotFoundError{Kind: "policy", Key: string(profile.Type)}
	}
	if err := profile.Validate(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// List returns all policies ordered by type.
func (r *Registry) List() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
