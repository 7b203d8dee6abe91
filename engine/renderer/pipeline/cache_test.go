package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
)

type countingFactory struct {
	builds   int
	released int
	fail     bool
}

func (f *countingFactory) build(key Key) (Pipeline, error) {
	if f.fail {
		return nil, errors.New("compile error")
	}
	f.builds++
	return NewPipeline(key,
		WithNative(f.builds, func() { f.released++ }),
		WithShaderGeneration(uint64(key.Shader)*10),
	), nil
}

func testKey(shader component.Handle) Key {
	return NewKey(component.DefaultPipelineState(shader), 4, component.FormatSurface)
}

func TestGetOrCreateReturnsSamePipelineForEqualKeys(t *testing.T) {
	f := &countingFactory{}
	c := NewCache(f.build)

	a, err := c.GetOrCreate(testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// built separately but equal by value
	b, err := c.GetOrCreate(testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("expected identical pipeline for equal keys")
	}
	if f.builds != 1 {
		t.Errorf("expected 1 build, got %d", f.builds)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached, got %d", c.Len())
	}
}

func TestGetOrCreateDistinguishesKeys(t *testing.T) {
	f := &countingFactory{}
	c := NewCache(f.build)

	base := testKey(1)
	variants := []Key{base}
	k := base
	k.Cull = component.CullBack
	variants = append(variants, k)
	k = base
	k.FrontFace = component.FrontCW
	variants = append(variants, k)
	k = base
	k.SampleCount = 1
	variants = append(variants, k)
	k = base
	k.ColorFormat = component.FormatRGBA8Unorm
	variants = append(variants, k)
	k = base
	k.DepthWrite = false
	variants = append(variants, k)

	seen := make(map[any]bool)
	for _, v := range variants {
		p, err := c.GetOrCreate(v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[p.Native()] = true
	}
	if len(seen) != len(variants) {
		t.Errorf("expected %d distinct pipelines, got %d", len(variants), len(seen))
	}
}

func TestGetOrCreatePanicsOnInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{"zero shader", testKey(0)},
		{"zero samples", Key{Shader: 1}},
		{"bad topology", Key{Shader: 1, SampleCount: 1, Topology: 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache((&countingFactory{}).build)
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if !strings.HasPrefix(r.(string), "pipeline: invalid key") {
					t.Errorf("expected pipeline: invalid key, got %v", r)
				}
			}()
			c.GetOrCreate(tt.key)
		})
	}
}

func TestGetOrCreateDoesNotCacheFailures(t *testing.T) {
	f := &countingFactory{fail: true}
	c := NewCache(f.build)
	if _, err := c.GetOrCreate(testKey(1)); err == nil {
		t.Fatal("expected build error")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
	f.fail = false
	if _, err := c.GetOrCreate(testKey(1)); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestEvictReleasesShaderPipelines(t *testing.T) {
	f := &countingFactory{}
	c := NewCache(f.build)
	k := testKey(1)
	c.GetOrCreate(k)
	k.SampleCount = 1
	c.GetOrCreate(k)
	c.GetOrCreate(testKey(2))

	if got := c.Shaders(); got[1] != 10 || got[2] != 20 {
		t.Errorf("expected shader generations {1:10 2:20}, got %v", got)
	}
	if n := c.Evict(1); n != 2 {
		t.Errorf("expected 2 evicted, got %d", n)
	}
	if f.released != 2 {
		t.Errorf("expected 2 released, got %d", f.released)
	}
	if _, ok := c.Get(testKey(1)); ok {
		t.Error("expected evicted key to miss")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 remaining, got %d", c.Len())
	}

	c.Release()
	if f.released != 3 || c.Len() != 0 {
		t.Errorf("expected all released, got %d released and %d cached", f.released, c.Len())
	}
}

func TestKeyValid(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want bool
	}{
		{"render", testKey(1), true},
		{"render without shader", testKey(0), false},
		{"render without samples", NewKey(component.DefaultPipelineState(1), 0, component.FormatSurface), false},
		{"compute", NewComputeKey(1), true},
		{"compute without shader", NewComputeKey(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Valid(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestComputeKeyIsDistinctAndEvicted(t *testing.T) {
	f := &countingFactory{}
	c := NewCache(f.build)

	if _, err := c.GetOrCreate(testKey(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.GetOrCreate(NewComputeKey(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.builds != 2 || c.Len() != 2 {
		t.Fatalf("expected render and compute pipelines cached apart, got %d builds, %d cached", f.builds, c.Len())
	}
	c.Evict(1)
	if c.Len() != 0 || f.released != 2 {
		t.Errorf("expected both pipelines of shader 1 evicted, got %d cached, %d released", c.Len(), f.released)
	}
}
