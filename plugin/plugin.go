// Package plugin implements the invocation surface: named Functions
// grouped into a Plugin, each validating its arguments against a
// parsed signature before dispatching to a Handler.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zsiec/framegraph/propmap"
)

// Handler implements one Function's behavior: given a validated
// argument Map, it produces an output Map (with SetError called on
// failure rather than returning nil).
type Handler func(in *propmap.Map) *propmap.Map

// Function is one named, signature-validated entry point of a Plugin.
type Function struct {
	Name      string
	Signature string
	specs     []ArgSpec
	handler   Handler
}

// Plugin is a namespaced collection of Functions, mirroring how a
// filter pack registers itself with the host.
type Plugin struct {
	Namespace string
	Name      string

	mu        sync.RWMutex
	functions map[string]*Function
}

// New creates an empty Plugin under the given namespace.
func New(namespace, name string) *Plugin {
	return &Plugin{Namespace: namespace, Name: name, functions: make(map[string]*Function)}
}

// RegisterFunction parses signature and adds funcName to the Plugin.
// It returns an error if the signature is malformed or funcName is
// already registered.
func (p *Plugin) RegisterFunction(funcName, signature string, handler Handler) error {
	specs, err := ParseSignature(signature)
	if err != nil {
		return fmt.Errorf("plugin %s: register %s: %w", p.Namespace, funcName, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.functions[funcName]; exists {
		return fmt.Errorf("plugin %s: function %q already registered", p.Namespace, funcName)
	}
	p.functions[funcName] = &Function{Name: funcName, Signature: signature, specs: specs, handler: handler}
	return nil
}

// Functions returns the registered function names, sorted for stable
// introspection output.
func (p *Plugin) Functions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.functions))
	for name := range p.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke validates args against funcName's signature and calls its
// Handler. Validation failures and an unknown funcName are reported as
// an error Map rather than a Go error, matching the engine's
// error-Map-at-boundaries policy.
func (p *Plugin) Invoke(funcName string, args *propmap.Map) *propmap.Map {
	p.mu.RLock()
	fn, ok := p.functions[funcName]
	p.mu.RUnlock()
	if !ok {
		out := propmap.New()
		out.SetError(fmt.Sprintf("plugin %s: no such function %q", p.Namespace, funcName))
		return out
	}
	if err := Validate(args, fn.specs); err != nil {
		out := propmap.New()
		out.SetError(err.Error())
		return out
	}
	out := fn.handler(args)
	if out == nil {
		out = propmap.New()
		out.SetError(fmt.Sprintf("plugin %s: function %q returned no result", p.Namespace, funcName))
	}
	return out
}

// Registry maps namespace to Plugin, the "getPluginByNamespace" lookup
// table a Core holds.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds p to the registry, keyed by its namespace. It returns
// an error if the namespace is already taken.
func (r *Registry) Register(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Namespace]; exists {
		return fmt.Errorf("plugin registry: namespace %q already registered", p.Namespace)
	}
	r.plugins[p.Namespace] = p
	return nil
}

// ByNamespace returns the Plugin registered under namespace, if any.
func (r *Registry) ByNamespace(namespace string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[namespace]
	return p, ok
}

// Invoke looks up namespace and calls Invoke(funcName, args) on it.
func (r *Registry) Invoke(namespace, funcName string, args *propmap.Map) *propmap.Map {
	p, ok := r.ByNamespace(namespace)
	if !ok {
		out := propmap.New()
		out.SetError(fmt.Sprintf("plugin registry: no such namespace %q", namespace))
		return out
	}
	return p.Invoke(funcName, args)
}
