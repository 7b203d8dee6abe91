package component

import (
	"errors"
	"sync"
	"testing"
)

func TestStoreCreateGet(t *testing.T) {
	s := NewStore()
	c := s.Create(TypeMesh)
	if c.Handle() == 0 {
		t.Fatal("expected non-zero handle")
	}
	if c.Type() != TypeMesh {
		t.Errorf("expected type mesh, got %s", c.Type())
	}
	got, ok := s.Get(c.Handle())
	if !ok {
		t.Fatal("expected handle to resolve")
	}
	if got != c {
		t.Error("expected Get to return the created record")
	}
	m, err := s.Mesh(c.Handle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Scale.X() != 1 || m.Rotation.W != 1 {
		t.Errorf("expected default TRS, got scale %v rotation %v", m.Scale, m.Rotation)
	}
}

func TestStoreCreateWithDuplicate(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateWith(7, TypeTransform); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.CreateWith(7, TypeMesh)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if !errors.Is(err, ErrStructural) {
		t.Errorf("expected duplicate to be structural, got %v", err)
	}
	if next := s.Allocator().Next(); next <= 7 {
		t.Errorf("expected allocator to skip observed handle, got %d", next)
	}
}

func TestStoreCreateWithInvalid(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateWith(0, TypeMesh); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("expected ErrInvalidHandle for zero handle, got %v", err)
	}
	if _, err := s.CreateWith(3, TypeInvalid); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("expected ErrInvalidHandle for invalid type, got %v", err)
	}
}

func TestStoreTypedGetters(t *testing.T) {
	s := NewStore()
	cam := s.Create(TypeCamera).Handle()

	if _, err := s.Texture(cam); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := s.Texture(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	n, err := s.Node(cam)
	if err != nil {
		t.Fatalf("expected camera to resolve as a node: %v", err)
	}
	c, _ := s.Camera(cam)
	if n != &c.Transform {
		t.Error("expected Node to return the embedded transform")
	}

	tex := s.Create(TypeTexture).Handle()
	if _, err := s.Node(tex); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected texture to not be a node, got %v", err)
	}
}

func TestStoreDestroyIsDeferred(t *testing.T) {
	s := NewStore()
	h := s.Create(TypeTransform).Handle()
	if err := s.Destroy(h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, ok := s.Get(h)
	if !ok {
		t.Fatal("expected marked record to resolve until the sweep")
	}
	if !c.Destroyed() {
		t.Error("expected record to be marked")
	}
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", s.Pending())
	}
	if err := s.Destroy(h); err != nil {
		t.Errorf("expected repeated destroy to be a no-op, got %v", err)
	}
	if n := s.CollectGarbage(); n != 1 {
		t.Errorf("expected 1 swept, got %d", n)
	}
	if _, ok := s.Get(h); ok {
		t.Error("expected swept handle to be gone")
	}
	if err := s.Destroy(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after sweep, got %v", err)
	}
}

func TestStoreSweepKeepsIndexConsistent(t *testing.T) {
	s := NewStore()
	const n = 3*chunkSize + 17
	handles := make([]Handle, n)
	for i := range handles {
		c := s.Create(TypeMesh)
		c.SetName(string(rune('a' + i%26)))
		handles[i] = c.Handle()
	}
	for i, h := range handles {
		if i%3 == 0 {
			if err := s.Destroy(h); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	s.CollectGarbage()

	for i, h := range handles {
		c, ok := s.Get(h)
		if i%3 == 0 {
			if ok {
				t.Fatalf("expected handle %d to be swept", h)
			}
			continue
		}
		if !ok {
			t.Fatalf("expected handle %d to survive", h)
		}
		if c.Handle() != h {
			t.Fatalf("expected record for %d, got %d", h, c.Handle())
		}
		if c.Name() != string(rune('a'+i%26)) {
			t.Fatalf("expected name to move with record %d", h)
		}
	}
	want := n - (n+2)/3
	if s.Len(TypeMesh) != want {
		t.Errorf("expected %d meshes, got %d", want, s.Len(TypeMesh))
	}
}

func TestStoreEachSkipsMarked(t *testing.T) {
	s := NewStore()
	a := s.Create(TypeTexture).Handle()
	b := s.Create(TypeTexture).Handle()
	c := s.Create(TypeTexture).Handle()

	var seen []Handle
	EachOf(s, TypeTexture, func(tex *Texture) bool {
		seen = append(seen, tex.Handle())
		if tex.Handle() == a {
			_ = s.Destroy(b)
		}
		return true
	})
	if len(seen) != 2 || seen[0] != a || seen[1] != c {
		t.Errorf("expected [%d %d], got %v", a, c, seen)
	}
}

func TestHandleAllocatorConcurrent(t *testing.T) {
	var a HandleAllocator
	const workers, per = 8, 1000
	out := make(chan Handle, workers*per)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				out <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(out)
	seen := make(map[Handle]bool, workers*per)
	for h := range out {
		if h == 0 {
			t.Fatal("expected non-zero handle")
		}
		if seen[h] {
			t.Fatalf("handle %d handed out twice", h)
		}
		seen[h] = true
	}
}
