package kernel

import "golang.org/x/image/math/f32"

// ViewPosition reconstructs a view-space position from a pixel position
// measured from the bottom-left corner and a view-space z (negative in
// front of the camera), using ProjInfo constants.
func ViewPosition(projInfo f32.Vec4, x, y, z float32) [3]float32 {
	return [3]float32{
		(x*projInfo[0] + projInfo[2]) * z,
		(y*projInfo[1] + projInfo[3]) * z,
		z,
	}
}

// Normalize3 returns v scaled to unit length; a zero vector is returned
// unchanged.
func Normalize3(v [3]float32) [3]float32 {
	l := Sqrt(Dot3(v, v))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// Dot3 returns the dot product of a and b.
func Dot3(a, b [3]float32) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// Reflect reflects incident direction i about normal n.
func Reflect(i, n [3]float32) [3]float32 {
	d := 2 * Dot3(i, n)
	return [3]float32{i[0] - d*n[0], i[1] - d*n[1], i[2] - d*n[2]}
}

// TransformDir applies the upper 3x3 of a row-major matrix to v.
func TransformDir(m f32.Mat4, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

// TransformPoint applies m to (v, 1) and divides by w.
func TransformPoint(m f32.Mat4, v [3]float32) [3]float32 {
	x := m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3]
	y := m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7]
	z := m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11]
	w := m[12]*v[0] + m[13]*v[1] + m[14]*v[2] + m[15]
	if w == 0 || w == 1 {
		return [3]float32{x, y, z}
	}
	return [3]float32{x / w, y / w, z / w}
}
