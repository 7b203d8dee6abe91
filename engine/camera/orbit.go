package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// orbitImpl is the implementation of Orbit.
type orbitImpl struct {
	mu *sync.Mutex

	target mgl32.Vec3

	// Spherical coordinates of the eye around target.
	radius    float32
	azimuth   float32 // around Y
	elevation float32 // from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32
}

// Orbit keeps an eye position on a sphere around a target. Scripts use it to drive a
// camera node: they read Eye and Target and send them as a position and a look-at.
type Orbit interface {
	// Eye returns the current eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position in world space
	Eye() mgl32.Vec3

	// Target returns the point the orbit looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the target in world space
	Target() mgl32.Vec3

	// SetTarget moves the orbit center.
	SetTarget(target mgl32.Vec3)

	// Rotate adds to the azimuth and elevation, in radians. Elevation is clamped.
	//
	// Parameters:
	//   - dAzimuth: the change around the Y axis
	//   - dElevation: the change from the horizontal plane
	Rotate(dAzimuth, dElevation float32)

	// Zoom moves the eye toward the target by delta world units. Radius is clamped.
	Zoom(delta float32)

	// Radius returns the distance from target to eye.
	Radius() float32

	// Azimuth returns the angle around the Y axis in radians.
	Azimuth() float32

	// Elevation returns the angle from the horizontal plane in radians.
	Elevation() float32
}

var _ Orbit = &orbitImpl{}

// NewOrbit creates an Orbit with a 10 unit radius looking at the origin from 30 degrees up.
//
// Parameters:
//   - options: functional options to configure the orbit
//
// Returns:
//   - Orbit: the new orbit
func NewOrbit(options ...OrbitBuilderOption) Orbit {
	o := &orbitImpl{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    float32(math.Pi / 6),
		minRadius:    0.1,
		maxRadius:    1000,
		minElevation: -float32(math.Pi/2 - 0.01),
		maxElevation: float32(math.Pi/2 - 0.01),
	}
	for _, opt := range options {
		opt(o)
	}
	o.clamp()
	return o
}

// clamp keeps radius and elevation inside their bounds. Caller must hold the mutex
// or own o exclusively.
func (o *orbitImpl) clamp() {
	o.radius = min(max(o.radius, o.minRadius), o.maxRadius)
	o.elevation = min(max(o.elevation, o.minElevation), o.maxElevation)
}

func (o *orbitImpl) Eye() mgl32.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	cosElev := float32(math.Cos(float64(o.elevation)))
	sinElev := float32(math.Sin(float64(o.elevation)))
	cosAzim := float32(math.Cos(float64(o.azimuth)))
	sinAzim := float32(math.Sin(float64(o.azimuth)))
	return mgl32.Vec3{
		o.target[0] + o.radius*cosElev*sinAzim,
		o.target[1] + o.radius*sinElev,
		o.target[2] + o.radius*cosElev*cosAzim,
	}
}

func (o *orbitImpl) Target() mgl32.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

func (o *orbitImpl) SetTarget(target mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = target
}

func (o *orbitImpl) Rotate(dAzimuth, dElevation float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.azimuth += dAzimuth
	o.elevation += dElevation
	o.clamp()
}

func (o *orbitImpl) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius -= delta
	o.clamp()
}

func (o *orbitImpl) Radius() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.radius
}

func (o *orbitImpl) Azimuth() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.azimuth
}

func (o *orbitImpl) Elevation() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.elevation
}
