package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
)

// Resource is a backend GPU object.
type Resource interface {
	Release()
}

// Dep is one store resource a bind group was built from, with the generation it had.
type Dep struct {
	Handle     component.Handle
	Generation uint64
}

// Lookup returns the current generation of a store resource, or false if it is gone.
type Lookup func(h component.Handle) (uint64, bool)

// OwnedBuffer is a buffer created by and for a single provider.
type OwnedBuffer struct {
	Buffer Resource
	Size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group, or nil until the renderer builds it.
	bindGroup Resource
	// deps are the store resources bindGroup references, recorded when it was built.
	deps []Dep
	// buffers are owned buffers keyed by binding index. They survive bind group rebuilds.
	buffers map[uint32]OwnedBuffer
}

// BindGroupProvider holds one GPU bind group and remembers what it was built from.
// Materials, frames and primitive groups each own providers; the renderer asks a provider
// whether it is Stale before every use and rebuilds it when a dependency has been
// reallocated since.
//
// Usage pattern:
//  1. The renderer creates a provider for a (owner, layout) pair
//  2. It calls Stale with a store lookup; a fresh provider is always stale
//  3. On stale, it builds a bind group and calls SetBindGroup with the dependencies used
//  4. It binds BindGroup() for draws
type BindGroupProvider interface {
	// Release releases the bind group and every owned buffer.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the built bind group, or nil if it has not been built.
	//
	// Returns:
	//   - Resource: the bind group or nil
	BindGroup() Resource

	// SetBindGroup replaces the bind group and the dependencies it was built from,
	// releasing the previous bind group.
	//
	// Parameters:
	//   - bg: the new bind group
	//   - deps: the store resources referenced by bg and their generations
	SetBindGroup(bg Resource, deps []Dep)

	// Invalidate releases the bind group so the next Stale check reports true.
	Invalidate()

	// Deps returns the dependencies recorded with the current bind group.
	//
	// Returns:
	//   - []Dep: the recorded dependencies
	Deps() []Dep

	// Stale reports whether the bind group is missing or any dependency's generation
	// differs from the one recorded.
	//
	// Parameters:
	//   - lookup: returns the current generation of a store resource
	//
	// Returns:
	//   - bool: true if the bind group must be rebuilt
	Stale(lookup Lookup) bool

	// Buffer returns the owned buffer at binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - OwnedBuffer: the buffer, zero if absent
	//   - bool: whether the binding has an owned buffer
	Buffer(binding uint32) (OwnedBuffer, bool)

	// SetBuffer replaces the owned buffer at binding, releasing the previous one, and
	// invalidates the bind group since it referenced the old buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the new owned buffer
	SetBuffer(binding uint32, buf OwnedBuffer)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty, stale BindGroupProvider.
//
// Parameters:
//   - label: the debug label
//   - options: variadic list of BindGroupProviderOption to configure the provider
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[uint32]OwnedBuffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() Resource {
	return p.bindGroup
}

func (p *bindGroupProvider) SetBindGroup(bg Resource, deps []Dep) {
	if p.bindGroup != nil {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.deps = deps
}

func (p *bindGroupProvider) Invalidate() {
	p.SetBindGroup(nil, nil)
}

func (p *bindGroupProvider) Deps() []Dep {
	return p.deps
}

func (p *bindGroupProvider) Stale(lookup Lookup) bool {
	if p.bindGroup == nil {
		return true
	}
	for _, d := range p.deps {
		gen, ok := lookup(d.Handle)
		if !ok || gen != d.Generation {
			return true
		}
	}
	return false
}

func (p *bindGroupProvider) Buffer(binding uint32) (OwnedBuffer, bool) {
	b, ok := p.buffers[binding]
	return b, ok
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf OwnedBuffer) {
	if old, ok := p.buffers[binding]; ok && old.Buffer != nil {
		old.Buffer.Release()
	}
	p.buffers[binding] = buf
	p.Invalidate()
}

func (p *bindGroupProvider) Release() {
	p.Invalidate()
	for i, b := range p.buffers {
		if b.Buffer != nil {
			b.Buffer.Release()
		}
		delete(p.buffers, i)
	}
}
