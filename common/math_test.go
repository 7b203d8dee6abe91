package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(got, want []float32) bool {
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func nearQuat(got, want mgl32.Quat) bool {
	return near([]float32{got.W, got.V[0], got.V[1], got.V[2]}, []float32{want.W, want.V[0], want.V[1], want.V[2]})
}

func TestComposeDecomposeRoundTrip(t *testing.T) {
	pos := mgl32.Vec3{1, -2, 3}
	rot := mgl32.QuatRotate(0.7, mgl32.Vec3{1, 1, 0}.Normalize())
	scale := mgl32.Vec3{2, 0.5, 3}

	p, r, s := DecomposeTRS(ComposeTRS(pos, rot, scale))
	if !near(p[:], pos[:]) {
		t.Errorf("expected position %v, got %v", pos, p)
	}
	if !near(s[:], scale[:]) {
		t.Errorf("expected scale %v, got %v", scale, s)
	}
	if !nearQuat(r, rot) && !nearQuat(r, rot.Scale(-1)) {
		t.Errorf("expected rotation %v, got %v", rot, r)
	}
}

func TestDecomposeZeroScale(t *testing.T) {
	m := ComposeTRS(mgl32.Vec3{4, 5, 6}, mgl32.QuatIdent(), mgl32.Vec3{0, 1, 0})
	p, r, s := DecomposeTRS(m)
	if !near(p[:], []float32{4, 5, 6}) {
		t.Errorf("expected translation kept, got %v", p)
	}
	if s != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("expected scale (0,1,0), got %v", s)
	}
	for _, v := range []float32{r.W, r.V[0], r.V[1], r.V[2]} {
		if math.IsNaN(float64(v)) {
			t.Fatalf("expected no NaN in rotation, got %v", r)
		}
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(math.Pi/2, 1, 1, 10)
	near := p.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	if d := near.Z() / near.W(); math.Abs(float64(d)) > 1e-5 {
		t.Errorf("expected near plane at depth 0, got %f", d)
	}
	if d := far.Z() / far.W(); math.Abs(float64(d-1)) > 1e-5 {
		t.Errorf("expected far plane at depth 1, got %f", d)
	}
}

func TestNormalMatrixSingular(t *testing.T) {
	m := ComposeTRS(mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{0, 0, 0})
	if NormalMatrix(m) != mgl32.Ident4() {
		t.Error("expected identity for singular input")
	}
}

func TestLookRotationDegenerate(t *testing.T) {
	eye := mgl32.Vec3{1, 2, 3}
	if q := LookRotation(eye, eye, mgl32.Vec3{0, 1, 0}); q != mgl32.QuatIdent() {
		t.Errorf("expected identity for coincident eye and target, got %v", q)
	}
	if q := LookRotation(mgl32.Vec3{}, mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, 1, 0}); q != mgl32.QuatIdent() {
		t.Errorf("expected identity for parallel up, got %v", q)
	}
}
