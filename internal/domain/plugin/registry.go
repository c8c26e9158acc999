// Package plugin implements the dispatch table for non-terminal policy
// types (§4.5): each plugin-range Type is bound to a Handler that either
// answers a check immediately or asks that it suspend for an agent
// round-trip.
package plugin

import (
	"sort"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// Status is the outcome of a single Handler.Check or Handler.Update call.
type Status int

const (
	// AnswerReady means Result is the final, terminal policy result.
	AnswerReady Status = iota
	// AnswerNotReady means the check must suspend; AgentType/Payload name
	// the agent query to issue.
	AnswerNotReady
	// Error means the plugin failed; the evaluator degrades this to DENY.
	Error
)

// Handler is the contract a plugin-owned policy type implements.
type Handler interface {
	// Check evaluates the policy for (client, user, privilege) given the
	// stored result that named this plugin's type. On AnswerNotReady it
	// returns the agent type and opaque payload the caller must route to
	// that agent.
	Check(client, user, privilege string, in policy.Result) (status Status, result policy.Result, agentType, payload string)
	// Update resolves a previously suspended check using the agent's
	// reply payload.
	Update(client, user, privilege, agentPayload string) (status Status, result policy.Result)
}

// Description names a policy type for admin enumeration (§4.5
// list_descriptions).
type Description struct {
	Type policy.Type
	Name string
}

var builtinDescriptions = []Description{
	{policy.Deny, "Deny"},
	{policy.Allow, "Allow"},
	{policy.None, "None"},
}

// Registry binds plugin-range policy types to their Handler and tracks a
// per-type generation counter, bumped on invalidation, that the decision
// cache (§4.10) uses to detect stale entries.
type Registry struct {
	handlers    map[policy.Type]Handler
	names       map[policy.Type]string
	generations map[policy.Type]uint64
}

// NewRegistry returns an empty registry; the built-in descriptions are
// always available via ListDescriptions regardless of registration.
func NewRegistry() *Registry {
	return &Registry{
		handlers:    make(map[policy.Type]Handler),
		names:       make(map[policy.Type]string),
		generations: make(map[policy.Type]uint64),
	}
}

// Register binds a Handler to a plugin-range policy type. It fails if t is
// not in [policy.PluginTypeMin, policy.PluginTypeMax].
func (r *Registry) Register(t policy.Type, name string, h Handler) error {
	if !t.IsPlugin() {
		return apperr.New(apperr.CodeInvalidParam, "policy type is not in the plugin range: "+t.String())
	}
	r.handlers[t] = h
	r.names[t] = name
	if _, ok := r.generations[t]; !ok {
		r.generations[t] = 0
	}
	return nil
}

// Lookup returns the Handler bound to t, if any.
func (r *Registry) Lookup(t policy.Type) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Generation returns the current generation counter for t. Built-in types
// always report generation 0 (they never change).
func (r *Registry) Generation(t policy.Type) uint64 {
	return r.generations[t]
}

// InvalidateAll bumps every registered plugin type's generation, logically
// evicting every cache entry produced by a plugin result (§4.5, §4.10).
func (r *Registry) InvalidateAll() {
	for t := range r.generations {
		r.generations[t]++
	}
}

// ListDescriptions returns the built-in set union the registered plugin
// types, ordered by Type value for deterministic output.
func (r *Registry) ListDescriptions() []Description {
	out := append([]Description(nil), builtinDescriptions...)
	for t, name := range r.names {
		out = append(out, Description{Type: t, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
