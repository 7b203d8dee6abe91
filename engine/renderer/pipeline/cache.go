package pipeline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"go.uber.org/zap"
)

// Factory builds the pipeline for a key on a cache miss.
type Factory func(key Key) (Pipeline, error)

// cache is the implementation of the Cache interface.
type cache struct {
	mu      sync.Mutex
	entries map[Key]Pipeline
	factory Factory
	logger  *zap.Logger
}

// Cache memoizes pipelines by key value. Building a GPU pipeline is expensive, and many
// materials share the same state, so every draw goes through the cache.
type Cache interface {
	// GetOrCreate returns the pipeline for key, building it on first use.
	// It panics when key is invalid; keys are derived from validated material state.
	//
	// Parameters:
	//   - key: the pipeline key
	//
	// Returns:
	//   - Pipeline: the cached or newly built pipeline
	//   - error: the factory's error when the build fails; nothing is cached in that case
	GetOrCreate(key Key) (Pipeline, error)

	// Get returns the cached pipeline for key without building it.
	Get(key Key) (Pipeline, bool)

	// Evict releases and drops every pipeline built from shader.
	//
	// Parameters:
	//   - shader: the shader handle
	//
	// Returns:
	//   - int: the number of pipelines evicted
	Evict(shader component.Handle) int

	// Shaders returns each shader with at least one cached pipeline, mapped to the
	// shader generation it was built from.
	Shaders() map[component.Handle]uint64

	// Len returns the number of cached pipelines.
	Len() int

	// Release releases every cached pipeline.
	Release()
}

var _ Cache = &cache{}

// NewCache creates a Cache that builds missing pipelines with factory.
//
// Parameters:
//   - factory: builds the pipeline for a key
//   - options: variadic list of CacheBuilderOption to configure the Cache
//
// Returns:
//   - Cache: the new Cache
func NewCache(factory Factory, options ...CacheBuilderOption) Cache {
	if factory == nil {
		panic("pipeline: nil factory")
	}
	c := &cache{
		entries: make(map[Key]Pipeline),
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cache) GetOrCreate(key Key) (Pipeline, error) {
	if !key.Valid() {
		panic(fmt.Sprintf("pipeline: invalid key %+v", key))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[key]; ok {
		return p, nil
	}

	p, err := c.factory(key)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build for shader %d: %w", key.Shader, err)
	}
	c.entries[key] = p
	c.logger.Debug("pipeline: built",
		zap.Uint64("shader", uint64(key.Shader)),
		zap.Uint32("samples", key.SampleCount),
		zap.Int("cached", len(c.entries)))
	return p, nil
}

func (c *cache) Get(key Key) (Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok
}

func (c *cache) Evict(shader component.Handle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, p := range c.entries {
		if k.Shader != shader {
			continue
		}
		p.Release()
		delete(c.entries, k)
		n++
	}
	if n > 0 {
		c.logger.Debug("pipeline: evicted", zap.Uint64("shader", uint64(shader)), zap.Int("count", n))
	}
	return n
}

func (c *cache) Shaders() map[component.Handle]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[component.Handle]uint64)
	for k, p := range c.entries {
		out[k.Shader] = p.ShaderGeneration()
	}
	return out
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.entries {
		p.Release()
		delete(c.entries, k)
	}
}
