package transform

import "github.com/go-gl/mathgl/mgl64"

// Compose overwrites m with T(position) · R(rotation) · S(scale).
//
// The rotation block is expanded from the quaternion with the double-angle cross
// terms, each column scaled by the matching scale component. The quaternion is
// not normalized: a non-unit rotation bakes extra scale/shear into the matrix.
func Compose(m *mgl64.Mat4, position mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) *mgl64.Mat4 {
	x, y, z, w := rotation.V[0], rotation.V[1], rotation.V[2], rotation.W

	x2, y2, z2 := x+x, y+y, z+z

	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	sx, sy, sz := scale[0], scale[1], scale[2]

	m[0] = (1 - (yy + zz)) * sx
	m[1] = (xy + wz) * sx
	m[2] = (xz - wy) * sx
	m[3] = 0

	m[4] = (xy - wz) * sy
	m[5] = (1 - (xx + zz)) * sy
	m[6] = (yz + wx) * sy
	m[7] = 0

	m[8] = (xz + wy) * sz
	m[9] = (yz - wx) * sz
	m[10] = (1 - (xx + yy)) * sz
	m[11] = 0

	m[12] = position[0]
	m[13] = position[1]
	m[14] = position[2]
	m[15] = 1

	return m
}

// MultiplyMatrices overwrites m with the product a × b.
// Every operand element is read before the first write, so m may alias a or b.
func MultiplyMatrices(m, a, b *mgl64.Mat4) *mgl64.Mat4 {
	a11, a12, a13, a14 := a[0], a[4], a[8], a[12]
	a21, a22, a23, a24 := a[1], a[5], a[9], a[13]
	a31, a32, a33, a34 := a[2], a[6], a[10], a[14]
	a41, a42, a43, a44 := a[3], a[7], a[11], a[15]

	b11, b12, b13, b14 := b[0], b[4], b[8], b[12]
	b21, b22, b23, b24 := b[1], b[5], b[9], b[13]
	b31, b32, b33, b34 := b[2], b[6], b[10], b[14]
	b41, b42, b43, b44 := b[3], b[7], b[11], b[15]

	m[0] = a11*b11 + a12*b21 + a13*b31 + a14*b41
	m[4] = a11*b12 + a12*b22 + a13*b32 + a14*b42
	m[8] = a11*b13 + a12*b23 + a13*b33 + a14*b43
	m[12] = a11*b14 + a12*b24 + a13*b34 + a14*b44

	m[1] = a21*b11 + a22*b21 + a23*b31 + a24*b41
	m[5] = a21*b12 + a22*b22 + a23*b32 + a24*b42
	m[9] = a21*b13 + a22*b23 + a23*b33 + a24*b43
	m[13] = a21*b14 + a22*b24 + a23*b34 + a24*b44

	m[2] = a31*b11 + a32*b21 + a33*b31 + a34*b41
	m[6] = a31*b12 + a32*b22 + a33*b32 + a34*b42
	m[10] = a31*b13 + a32*b23 + a33*b33 + a34*b43
	m[14] = a31*b14 + a32*b24 + a33*b34 + a34*b44

	m[3] = a41*b11 + a42*b21 + a43*b31 + a44*b41
	m[7] = a41*b12 + a42*b22 + a43*b32 + a44*b42
	m[11] = a41*b13 + a42*b23 + a43*b33 + a44*b43
	m[15] = a41*b14 + a42*b24 + a43*b34 + a44*b44

	return m
}

// Copy overwrites m with src, element by element
func Copy(m, src *mgl64.Mat4) *mgl64.Mat4 {
	*m = *src
	return m
}

// Translation returns the translation column of an affine matrix
func Translation(m mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m[12], m[13], m[14]}
}
