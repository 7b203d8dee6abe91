package camera

import "github.com/go-gl/mathgl/mgl32"

// OrbitBuilderOption is a functional option applied to an Orbit during construction via NewOrbit.
type OrbitBuilderOption func(*orbitImpl)

// WithTarget sets the point the orbit looks at.
//
// Parameters:
//   - target: the orbit center in world space
//
// Returns:
//   - OrbitBuilderOption: a function that applies the target option
func WithTarget(target mgl32.Vec3) OrbitBuilderOption {
	return func(o *orbitImpl) {
		o.target = target
	}
}

// WithRadius sets the initial distance from target to eye.
//
// Parameters:
//   - radius: the distance in world units
//
// Returns:
//   - OrbitBuilderOption: a function that applies the radius option
func WithRadius(radius float32) OrbitBuilderOption {
	return func(o *orbitImpl) {
		o.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation in radians.
//
// Parameters:
//   - azimuth: the angle around the Y axis
//   - elevation: the angle from the horizontal plane
//
// Returns:
//   - OrbitBuilderOption: a function that applies the angles option
func WithAngles(azimuth, elevation float32) OrbitBuilderOption {
	return func(o *orbitImpl) {
		o.azimuth = azimuth
		o.elevation = elevation
	}
}

// WithRadiusBounds clamps the radius to [lo, hi].
//
// Parameters:
//   - lo: the minimum radius
//   - hi: the maximum radius
//
// Returns:
//   - OrbitBuilderOption: a function that applies the bounds option
func WithRadiusBounds(lo, hi float32) OrbitBuilderOption {
	return func(o *orbitImpl) {
		o.minRadius = lo
		o.maxRadius = hi
	}
}

// WithElevationBounds clamps the elevation to [lo, hi] radians.
func WithElevationBounds(lo, hi float32) OrbitBuilderOption {
	return func(o *orbitImpl) {
		o.minElevation = lo
		o.maxElevation = hi
	}
}
