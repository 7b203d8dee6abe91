package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestProjectionDepthRange(t *testing.T) {
	tests := []struct {
		name   string
		params component.CameraParams
	}{
		{"perspective", component.DefaultCameraParams()},
		{"orthographic", component.CameraParams{Kind: component.CameraOrthographic, Size: 4, Near: 0.1, Far: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Projection(tt.params, 16.0/9.0)
			for _, c := range []struct {
				z, want float32
			}{{-tt.params.Near, 0}, {-tt.params.Far, 1}} {
				clip := p.Mul4x1(mgl32.Vec4{0, 0, c.z, 1})
				if got := clip.Z() / clip.W(); !near(got, c.want) {
					t.Errorf("expected depth %v at z=%v, got %v", c.want, c.z, got)
				}
			}
		})
	}
}

func TestProjectionGuardsAspect(t *testing.T) {
	p := Projection(component.DefaultCameraParams(), 0)
	if math.IsInf(float64(p[0]), 0) || math.IsNaN(float64(p[0])) {
		t.Errorf("expected finite projection for zero aspect, got %v", p[0])
	}
}

func TestViewPanicsWhenStale(t *testing.T) {
	s := component.NewStore()
	cam := s.Create(component.TypeCamera).(*component.Camera)
	cam.Stale = component.StaleLocal

	defer func() {
		if recover() == nil {
			t.Error("expected panic reading a stale camera")
		}
	}()
	View(cam)
}

func TestResolveInvertsWorld(t *testing.T) {
	s := component.NewStore()
	cam := s.Create(component.TypeCamera).(*component.Camera)
	cam.World = mgl32.Translate3D(0, 2, 5)

	m := Resolve(cam, 1)
	origin := m.View.Mul4x1(mgl32.Vec4{0, 2, 5, 1})
	if !near(origin.X(), 0) || !near(origin.Y(), 0) || !near(origin.Z(), 0) {
		t.Errorf("expected eye at view origin, got %v", origin)
	}
	if m.Eye != (mgl32.Vec3{0, 2, 5}) {
		t.Errorf("expected eye (0,2,5), got %v", m.Eye)
	}
}

func TestResolveWithoutCamera(t *testing.T) {
	m := Resolve(nil, 2)
	if m.View != mgl32.Ident4() {
		t.Errorf("expected identity view, got %v", m.View)
	}
}

func TestFrameUniformSize(t *testing.T) {
	u := NewFrameUniform(Resolve(nil, 1))
	if got := len(u.Marshal()); got != 256 {
		t.Errorf("expected 256 bytes, got %d", got)
	}
}

func TestOrbit(t *testing.T) {
	o := NewOrbit(WithRadius(5), WithAngles(0, 0))
	if eye := o.Eye(); !near(eye.Z(), 5) || !near(eye.Y(), 0) {
		t.Errorf("expected eye at (0,0,5), got %v", eye)
	}

	o.Rotate(float32(math.Pi/2), 0)
	if eye := o.Eye(); !near(eye.X(), 5) || !near(eye.Z(), 0) {
		t.Errorf("expected eye at (5,0,0), got %v", eye)
	}

	o.Rotate(0, 10)
	if o.Elevation() >= float32(math.Pi/2) {
		t.Errorf("expected clamped elevation, got %v", o.Elevation())
	}

	o.Zoom(100)
	if o.Radius() != 0.1 {
		t.Errorf("expected radius clamped to 0.1, got %v", o.Radius())
	}
}
