package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/go-gl/mathgl/mgl32"
)

func TestSizes(t *testing.T) {
	if got := (&GPULight{}).Size(); got != 64 {
		t.Errorf("expected GPULight size 64, got %d", got)
	}
	if got := (&GPULightHeader{}).Size(); got != 16 {
		t.Errorf("expected GPULightHeader size 16, got %d", got)
	}
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		n    int
		want uint64
	}{
		{0, 80},
		{1, 80},
		{3, 16 + 3*64},
		{MaxGPULights + 10, uint64(16 + MaxGPULights*64)},
	}
	for _, tt := range tests {
		if got := BufferSize(tt.n); got != tt.want {
			t.Errorf("BufferSize(%d): expected %d, got %d", tt.n, tt.want, got)
		}
	}
}

func TestToGPULightUsesWorldMatrix(t *testing.T) {
	s := component.NewStore()
	l := s.Create(component.TypeLight).(*component.Light)
	l.Desc.Kind = component.LightSpot
	l.World = mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(float32(math.Pi / 2)))

	g := ToGPULight(l)
	if g.Position != [3]float32{1, 2, 3} {
		t.Errorf("expected position (1,2,3), got %v", g.Position)
	}
	// -Z rotated a quarter turn about Y points down -X
	if math.Abs(float64(g.Direction[0]+1)) > 1e-5 {
		t.Errorf("expected direction -X, got %v", g.Direction)
	}
	if g.LightType != uint32(component.LightSpot) {
		t.Errorf("expected spot type, got %d", g.LightType)
	}
	if g.InnerCone <= g.OuterCone {
		t.Errorf("expected cos(inner) > cos(outer), got %v <= %v", g.InnerCone, g.OuterCone)
	}
}

func TestMarshalLightBuffer(t *testing.T) {
	lights := []GPULight{{Intensity: 2}, {Intensity: 3}}
	buf := MarshalLightBuffer(lights, [3]float32{0.1, 0.2, 0.3})

	if len(buf) != 16+2*64 {
		t.Fatalf("expected %d bytes, got %d", 16+2*64, len(buf))
	}
	if n := binary.LittleEndian.Uint32(buf[12:]); n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(buf[16+64+28:])); v != 3 {
		t.Errorf("expected second light intensity 3, got %v", v)
	}

	empty := MarshalLightBuffer(nil, [3]float32{})
	if len(empty) != 80 {
		t.Errorf("expected 80 bytes for no lights, got %d", len(empty))
	}
}
