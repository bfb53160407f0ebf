package mapping

import (
	"context"
	"sort"
	"sync"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
)

// Translator emits the blocks realizing one operator and returns the port
// carrying its result. The compiler retags that port with the node's tag.
type Translator interface {
	Translate(ctx context.Context, p *Pass) (dataflow.Port, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, p *Pass) (dataflow.Port, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, p *Pass) (dataflow.Port, error) {
	return f(ctx, p)
}

// Generic is the environment kind of translators usable for any
// environment, and for expressions bound to none.
const Generic = ""

type registryKey struct {
	envKind string
	kind    string
}

// Registry maps (environment kind, operator kind) to translators. Lookups
// for a specific environment kind fall back to Generic.
type Registry struct {
	mu          sync.RWMutex
	translators map[registryKey]Translator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{translators: make(map[registryKey]Translator)}
}

// DefaultRegistry returns a new registry holding the built-in translators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register installs t for kind under envKind, replacing any earlier entry.
func (r *Registry) Register(envKind, kind string, t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[registryKey{envKind, kind}] = t
}

// RegisterFunc installs f for kind under envKind.
func (r *Registry) RegisterFunc(envKind, kind string, f TranslatorFunc) {
	r.Register(envKind, kind, f)
}

// Lookup returns the translator for kind under envKind, falling back to
// the generic entry.
func (r *Registry) Lookup(envKind, kind string) (Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.translators[registryKey{envKind, kind}]; ok {
		return t, true
	}
	t, ok := r.translators[registryKey{Generic, kind}]
	return t, ok
}

// environmentsFor lists the environment kinds that registered kind
// specifically.
func (r *Registry) environmentsFor(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var envs []string
	for k := range r.translators {
		if k.kind == kind && k.envKind != Generic {
			envs = append(envs, k.envKind)
		}
	}
	sort.Strings(envs)
	return envs
}

// Clone returns an independent copy, so environments can add their own
// translators without touching a shared registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for k, t := range r.translators {
		out.translators[k] = t
	}
	return out
}

// Kinds returns the operator kinds registered under envKind, sorted.
func (r *Registry) Kinds(envKind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []string
	for k := range r.translators {
		if k.envKind == envKind {
			kinds = append(kinds, k.kind)
		}
	}
	sort.Strings(kinds)
	return kinds
}
