// Package transform holds the value types of a scene node's placement and the
// matrix algorithms that turn them into 4x4 affine transforms.
//
// Vectors, quaternions and matrices are the mgl64 types. Matrices are column-major:
// element index is 4*col + row.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform represents a local placement: scale first, then rotate, then translate
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Matrix returns the composed T·R·S matrix of the transform
func (t Transform) Matrix() mgl64.Mat4 {
	var m mgl64.Mat4
	Compose(&m, t.Position, t.Rotation, t.Scale)
	return m
}

// Equal reports whether both transforms hold bit-identical components.
// -0 and +0 differ, and a NaN equals itself when the payload matches.
func (t Transform) Equal(other Transform) bool {
	return vec3BitsEqual(t.Position, other.Position) &&
		vec3BitsEqual(t.Scale, other.Scale) &&
		vec3BitsEqual(t.Rotation.V, other.Rotation.V) &&
		math.Float64bits(t.Rotation.W) == math.Float64bits(other.Rotation.W)
}

func vec3BitsEqual(a, b mgl64.Vec3) bool {
	return math.Float64bits(a[0]) == math.Float64bits(b[0]) &&
		math.Float64bits(a[1]) == math.Float64bits(b[1]) &&
		math.Float64bits(a[2]) == math.Float64bits(b[2])
}
