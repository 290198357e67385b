package kernel

import "golang.org/x/image/math/f32"

// CocBasic evaluates the basic/advanced circle-of-confusion model for a
// linear depth d in [0,1]. blurParams is (slope/fStops, slope, focus, range).
//
// The result is signed: negative in front of the focus plane, positive
// behind it, zero inside the in-focus band of half-width range·focus.
func CocBasic(blurParams f32.Vec4, d float32) float32 {
	focus, rng := blurParams[2], blurParams[3]
	dist := d - focus
	mag := Abs(dist) - rng*focus
	if mag <= 0 {
		return 0
	}
	c := Clamp(blurParams[0]*mag/(d+1e-5), 0, 1)
	if dist < 0 {
		return -c
	}
	return c
}

// CocExplicit evaluates the explicit near/far plane model. blurParams holds
// the near ramp in xy and the far ramp in zw.
func CocExplicit(blurParams f32.Vec4, d float32) float32 {
	nearCoc := Clamp(d*blurParams[0]+blurParams[1], -1, 0)
	farCoc := Clamp(d*blurParams[2]+blurParams[3], 0, 1)
	return nearCoc + farCoc
}
