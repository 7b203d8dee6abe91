package component

import (
	"fmt"

	"go.uber.org/zap"
)

// Store owns every component record of an engine context.
//
// A Store belongs to the render goroutine and is not safe for concurrent use; only the
// HandleAllocator it shares with the control goroutine is.
type Store interface {
	// Create allocates a fresh handle and a default record of type t.
	//
	// Parameters:
	//   - t: the component type to create
	//
	// Returns:
	//   - Component: the new record
	Create(t Type) Component

	// CreateWith creates a record of type t under a handle allocated elsewhere.
	//
	// Parameters:
	//   - h: the handle to create, previously returned by the shared allocator
	//   - t: the component type to create
	//
	// Returns:
	//   - Component: the new record
	//   - error: ErrInvalidHandle for a zero handle or unknown type, ErrDuplicate if h is live
	CreateWith(h Handle, t Type) (Component, error)

	// Get resolves h to its record. Marked records resolve until the next sweep.
	Get(h Handle) (Component, bool)

	// Destroy marks h for removal at the next CollectGarbage.
	//
	// Returns:
	//   - error: ErrNotFound if h does not resolve
	Destroy(h Handle) error

	// CollectGarbage sweeps every marked record and returns how many were reclaimed.
	CollectGarbage() int

	// Each calls fn for every live record of type t in slot order until fn returns false.
	// Records marked during the iteration are skipped once reached.
	Each(t Type, fn func(Component) bool)

	// Len returns the number of records of type t, marked ones included.
	Len(t Type) int

	// Pending returns the number of records waiting for the next sweep.
	Pending() int

	// Allocator returns the handle allocator shared with the control side.
	Allocator() *HandleAllocator

	Node(h Handle) (*Transform, error)
	Transform(h Handle) (*Transform, error)
	Mesh(h Handle) (*Mesh, error)
	Camera(h Handle) (*Camera, error)
	Light(h Handle) (*Light, error)
	Scene(h Handle) (*Scene, error)
	Text(h Handle) (*Text, error)
	Geometry(h Handle) (*Geometry, error)
	Shader(h Handle) (*Shader, error)
	Material(h Handle) (*Material, error)
	Texture(h Handle) (*Texture, error)
	Pass(h Handle) (*Pass, error)
	Buffer(h Handle) (*Buffer, error)
	Video(h Handle) (*Video, error)
	Webcam(h Handle) (*Webcam, error)
}

type location struct {
	typ  Type
	slot int
}

type store struct {
	index  map[Handle]location
	arenas [typeCount]slots
	marked []Handle
	alloc  *HandleAllocator
	logger *zap.Logger
}

var _ Store = &store{}

// NewStore creates an empty Store.
//
// Parameters:
//   - options: variadic list of StoreBuilderOption functions to configure the store
//
// Returns:
//   - Store: the new store
func NewStore(options ...StoreBuilderOption) Store {
	s := &store{
		index:  make(map[Handle]location),
		alloc:  &HandleAllocator{},
		logger: zap.NewNop(),
	}
	s.arenas = [typeCount]slots{
		TypeTransform: &arena[Transform, *Transform]{},
		TypeMesh:      &arena[Mesh, *Mesh]{},
		TypeCamera:    &arena[Camera, *Camera]{},
		TypeLight:     &arena[Light, *Light]{},
		TypeScene:     &arena[Scene, *Scene]{},
		TypeText:      &arena[Text, *Text]{},
		TypeGeometry:  &arena[Geometry, *Geometry]{},
		TypeShader:    &arena[Shader, *Shader]{},
		TypeMaterial:  &arena[Material, *Material]{},
		TypeTexture:   &arena[Texture, *Texture]{},
		TypePass:      &arena[Pass, *Pass]{},
		TypeBuffer:    &arena[Buffer, *Buffer]{},
		TypeVideo:     &arena[Video, *Video]{},
		TypeWebcam:    &arena[Webcam, *Webcam]{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *store) Create(t Type) Component {
	c, err := s.CreateWith(s.alloc.Next(), t)
	if err != nil {
		panic(fmt.Sprintf("component: %v", err))
	}
	return c
}

func (s *store) CreateWith(h Handle, t Type) (Component, error) {
	if h == 0 || t == TypeInvalid || t >= typeCount {
		return nil, fmt.Errorf("%w: handle %d type %s", ErrInvalidHandle, h, t)
	}
	if loc, ok := s.index[h]; ok {
		return nil, fmt.Errorf("%w: handle %d already names a %s", ErrDuplicate, h, loc.typ)
	}
	s.alloc.Observe(h)
	slot, c := s.arenas[t].alloc(h)
	b := c.header()
	b.handle = h
	b.typ = t
	if d, ok := c.(defaulter); ok {
		d.setDefaults()
	}
	s.index[h] = location{typ: t, slot: slot}
	return c, nil
}

func (s *store) Get(h Handle) (Component, bool) {
	loc, ok := s.index[h]
	if !ok {
		return nil, false
	}
	return s.arenas[loc.typ].record(loc.slot), true
}

func (s *store) Destroy(h Handle) error {
	c, ok := s.Get(h)
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	b := c.header()
	if b.destroyed {
		return nil
	}
	b.destroyed = true
	s.marked = append(s.marked, h)
	return nil
}

func (s *store) CollectGarbage() int {
	n := 0
	for _, h := range s.marked {
		loc, ok := s.index[h]
		if !ok {
			continue
		}
		a := s.arenas[loc.typ]
		moved := a.swapRemove(loc.slot)
		delete(s.index, h)
		if moved != 0 {
			s.index[moved] = location{typ: loc.typ, slot: loc.slot}
		}
		n++
	}
	if n > 0 {
		s.logger.Debug("component: swept records", zap.Int("count", n))
	}
	s.marked = s.marked[:0]
	return n
}

func (s *store) Each(t Type, fn func(Component) bool) {
	if t == TypeInvalid || t >= typeCount {
		return
	}
	a := s.arenas[t]
	for i := 0; i < a.len(); i++ {
		c := a.record(i)
		if c.Destroyed() {
			continue
		}
		if !fn(c) {
			return
		}
	}
}

func (s *store) Len(t Type) int {
	if t == TypeInvalid || t >= typeCount {
		return 0
	}
	return s.arenas[t].len()
}

func (s *store) Pending() int { return len(s.marked) }

func (s *store) Allocator() *HandleAllocator { return s.alloc }

// lookup resolves h and asserts the record type.
func lookup[P Component](s *store, h Handle) (P, error) {
	var zero P
	c, ok := s.Get(h)
	if !ok {
		return zero, fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	p, ok := c.(P)
	if !ok {
		return zero, fmt.Errorf("%w: handle %d is a %s", ErrTypeMismatch, h, c.Type())
	}
	return p, nil
}

func (s *store) Node(h Handle) (*Transform, error) {
	c, ok := s.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrNotFound, h)
	}
	n, ok := c.(nodeRecord)
	if !ok {
		return nil, fmt.Errorf("%w: handle %d is a %s, not a node", ErrTypeMismatch, h, c.Type())
	}
	return n.node(), nil
}

func (s *store) Transform(h Handle) (*Transform, error) { return lookup[*Transform](s, h) }
func (s *store) Mesh(h Handle) (*Mesh, error)           { return lookup[*Mesh](s, h) }
func (s *store) Camera(h Handle) (*Camera, error)       { return lookup[*Camera](s, h) }
func (s *store) Light(h Handle) (*Light, error)         { return lookup[*Light](s, h) }
func (s *store) Scene(h Handle) (*Scene, error)         { return lookup[*Scene](s, h) }
func (s *store) Text(h Handle) (*Text, error)           { return lookup[*Text](s, h) }
func (s *store) Geometry(h Handle) (*Geometry, error)   { return lookup[*Geometry](s, h) }
func (s *store) Shader(h Handle) (*Shader, error)       { return lookup[*Shader](s, h) }
func (s *store) Material(h Handle) (*Material, error)   { return lookup[*Material](s, h) }
func (s *store) Texture(h Handle) (*Texture, error)     { return lookup[*Texture](s, h) }
func (s *store) Pass(h Handle) (*Pass, error)           { return lookup[*Pass](s, h) }
func (s *store) Buffer(h Handle) (*Buffer, error)       { return lookup[*Buffer](s, h) }
func (s *store) Video(h Handle) (*Video, error)         { return lookup[*Video](s, h) }
func (s *store) Webcam(h Handle) (*Webcam, error)       { return lookup[*Webcam](s, h) }

// EachOf iterates the live records of type t as their concrete pointer type.
//
// Parameters:
//   - s: the store to iterate
//   - t: the component type, which must match P
//   - fn: called per record until it returns false
func EachOf[P Component](s Store, t Type, fn func(P) bool) {
	s.Each(t, func(c Component) bool {
		p, ok := c.(P)
		if !ok {
			panic(fmt.Sprintf("component: %s records are not %T", t, p))
		}
		return fn(p)
	})
}
