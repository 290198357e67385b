package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/math/f32"
)

// Matrices are row-major: element (r, c) lives at m[r*4+c], and a matrix
// transforms column vectors (v' = M·v). The arithmetic is done by mgl32,
// which stores the same matrices column-major, so the two layouts are
// transposes of each other.

func toGL(m f32.Mat4) mgl32.Mat4 { return mgl32.Mat4(m).Transpose() }

func fromGL(m mgl32.Mat4) f32.Mat4 { return f32.Mat4(m.Transpose()) }

// Identity returns the 4x4 identity matrix.
func Identity() f32.Mat4 { return fromGL(mgl32.Ident4()) }

// Mul returns a·b.
func Mul(a, b f32.Mat4) f32.Mat4 { return fromGL(toGL(a).Mul4(toGL(b))) }

// Apply returns m·v.
func Apply(m f32.Mat4, v f32.Vec4) f32.Vec4 {
	return f32.Vec4(toGL(m).Mul4x1(mgl32.Vec4(v)))
}

// ApplyPoint transforms (x, y, z, 1) and divides by w.
// A zero w returns the undivided result.
func ApplyPoint(m f32.Mat4, x, y, z float32) (float32, float32, float32) {
	v := toGL(m).Mul4x1(mgl32.Vec4{x, y, z, 1})
	if v.W() == 0 {
		return v.X(), v.Y(), v.Z()
	}
	return v.X() / v.W(), v.Y() / v.W(), v.Z() / v.W()
}

// Translation returns a matrix translating by (x, y, z).
func Translation(x, y, z float32) f32.Mat4 { return fromGL(mgl32.Translate3D(x, y, z)) }

// Perspective returns an OpenGL-style projection for a right-handed view
// space looking down -Z. fovY is the vertical field of view in degrees.
// An infinite far plane is accepted.
func Perspective(fovY, aspect, near, far float32) f32.Mat4 {
	if !math.IsInf(float64(far), 1) {
		return fromGL(mgl32.Perspective(mgl32.DegToRad(fovY), aspect, near, far))
	}
	// The limit of the finite projection as far grows without bound.
	m := mgl32.Perspective(mgl32.DegToRad(fovY), aspect, near, 2*near)
	m.Set(2, 2, -1)
	m.Set(2, 3, -2*near)
	return fromGL(m)
}

// LookAt returns a world-to-camera matrix for an eye at eye looking at
// target with the given up vector.
func LookAt(eye, target, up [3]float32) f32.Mat4 {
	return fromGL(mgl32.LookAtV(mgl32.Vec3(eye), mgl32.Vec3(target), mgl32.Vec3(up)))
}

// Inverse returns the inverse of m and whether m was invertible.
// A singular matrix returns the identity and false.
func Inverse(m f32.Mat4) (f32.Mat4, bool) {
	g := toGL(m)
	if det := g.Det(); det == 0 || math.IsNaN(float64(det)) || math.IsInf(float64(det), 0) {
		return Identity(), false
	}
	return fromGL(g.Inv()), true
}
