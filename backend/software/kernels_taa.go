// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
)

// edgeThreshold is the luma and colour contrast that counts as an edge.
const edgeThreshold = 0.1

func init() {
	registerKernels(programs.TAA, []kernelFunc{
		programs.TAACopy:              blitCopy,
		programs.TAALumaDetection:     taaLumaEdges,
		programs.TAAClearToBlack:      taaClear,
		programs.TAAWeightCalculation: taaWeights,
		programs.TAAWeightsAndBlend1:  taaBlend,
		programs.TAAWeightsAndBlend2:  taaBlendHistory,
		programs.TAAColorDetection:    taaColorEdges,
		programs.TAAMergeFrames:       taaMerge,
		programs.TAADepthDetection:    taaDepthEdges,
		programs.TAADebugDepth:        taaDebugDepth,
	})
}

// edges writes (left, top, 0, 0) flags where delta(c, neighbour) reaches
// threshold.
func (e *env) edges(src *surface, delta func(a, b [4]float32) float32, threshold float32) {
	sx := float32(src.desc.Width) / float32(e.dst.desc.Width)
	sy := float32(src.desc.Height) / float32(e.dst.desc.Height)
	e.shade(func(x, y int, _, _ float32) [4]float32 {
		px, py := int(float32(x)*sx), int(float32(y)*sy)
		c := src.at(px, py)
		var out [4]float32
		if px > 0 && delta(c, src.at(px-1, py)) >= threshold {
			out[0] = 1
		}
		if py > 0 && delta(c, src.at(px, py-1)) >= threshold {
			out[1] = 1
		}
		return out
	})
}

func taaLumaEdges(e *env) error {
	e.edges(e.mainTex(), func(a, b [4]float32) float32 {
		return kernel.Abs(kernel.Luma(a[0], a[1], a[2]) - kernel.Luma(b[0], b[1], b[2]))
	}, edgeThreshold)
	return nil
}

func taaColorEdges(e *env) error {
	e.edges(e.mainTex(), func(a, b [4]float32) float32 {
		return max(kernel.Abs(a[0]-b[0]), kernel.Abs(a[1]-b[1]), kernel.Abs(a[2]-b[2]))
	}, edgeThreshold)
	return nil
}

func taaDepthEdges(e *env) error {
	depth := e.texOr("_CameraDepthTexture", farDepth)
	e.edges(depth, func(a, b [4]float32) float32 {
		return kernel.Abs(a[0] - b[0])
	}, e.float("_DepthThreshold", 0.001))
	return nil
}

func taaClear(e *env) error {
	e.shade(func(int, int, float32, float32) [4]float32 { return [4]float32{} })
	return nil
}

// taaWeights turns edge flags into blend weights towards the left, top,
// right and bottom neighbours.
func taaWeights(e *env) error {
	edges := e.mainTex()
	e.shade(func(x, y int, _, _ float32) [4]float32 {
		c := edges.at(x, y)
		var right, bottom float32
		if x+1 < edges.desc.Width {
			right = edges.at(x+1, y)[0]
		}
		if y+1 < edges.desc.Height {
			bottom = edges.at(x, y+1)[1]
		}
		return [4]float32{c[0] * 0.25, c[1] * 0.25, right * 0.25, bottom * 0.25}
	})
	return nil
}

// neighbourhoodBlend mixes pixel (x, y) of src with its four neighbours by
// the weights in blend.
func neighbourhoodBlend(src, blend *surface, x, y int) [4]float32 {
	c := src.at(x, y)
	if blend == nil {
		return c
	}
	w := blend.at(x, y)
	sum := w[0] + w[1] + w[2] + w[3]
	if sum <= 0 {
		return c
	}
	l, t := src.at(x-1, y), src.at(x, y-1)
	r, b := src.at(x+1, y), src.at(x, y+1)
	out := c
	for k := range 3 {
		out[k] = c[k]*(1-sum) + l[k]*w[0] + t[k]*w[1] + r[k]*w[2] + b[k]*w[3]
	}
	return out
}

func taaBlend(e *env) error {
	src, blend := e.mainTex(), e.tex("blendTex")
	e.shade(func(x, y int, _, _ float32) [4]float32 {
		return neighbourhoodBlend(src, blend, x, y)
	})
	return nil
}

// taaBlendHistory is the coupled 2x resolve: the blended frame averaged with
// the accumulation buffer reprojected into the previous frame. Pixels whose
// history falls off screen keep the blended frame.
func taaBlendHistory(e *env) error {
	src, blend := e.mainTex(), e.tex("blendTex")
	accum := e.tex("accumTex")
	toHistory := e.historyUV()
	e.shade(func(x, y int, u, v float32) [4]float32 {
		c := neighbourhoodBlend(src, blend, x, y)
		if accum == nil {
			return c
		}
		pu, pv, ok := toHistory(u, v)
		if !ok {
			return c
		}
		h := accum.sample(pu, pv)
		for k := range 4 {
			c[k] = 0.5 * (c[k] + h[k])
		}
		return c
	})
	return nil
}

// historyUV returns the mapping from a uv of this frame to the uv of the
// same surface point in the previous frame, through
// _ToPrevViewProjCombined and the linear depth. Without usable depth the
// mapping is the identity. It reports false when the point was off screen.
func (e *env) historyUV() func(u, v float32) (float32, float32, bool) {
	depth := e.tex("_CameraDepthTexture")
	toPrev := e.mat("_ToPrevViewProjCombined")
	proj := e.mat("_CameraProjection")
	far := e.float("_FarClip", 0)
	if depth == nil || far <= 0 || math.IsInf(float64(far), 0) {
		return func(u, v float32) (float32, float32, bool) { return u, v, true }
	}
	return func(u, v float32) (float32, float32, bool) {
		pu, pv, ok := reproject(toPrev, proj, u, v, depth.sample(u, v)[0]*far)
		return pu, pv, ok && pu >= 0 && pu <= 1 && pv >= 0 && pv <= 1
	}
}

// taaMerge blends the current frame with the reprojected, neighbourhood
// clamped accumulation buffer:
//
//	out = cur + (history - cur) * weight
//
// weight is _TemporalAccum scaled down with screen-space velocity by K.
// The current frame has the size of the destination.
func taaMerge(e *env) error {
	cur := e.mainTex()
	accum := e.tex("accumTex")
	toHistory := e.historyUV()
	weight := e.float("_TemporalAccum", 0)
	motionK := e.float("K", 1)
	w, h := float32(e.dst.desc.Width), float32(e.dst.desc.Height)

	e.shade(func(x, y int, u, v float32) [4]float32 {
		c := cur.at(x, y)
		if accum == nil || weight == 0 {
			return c
		}

		pu, pv, ok := toHistory(u, v)
		if !ok {
			return c
		}

		lo, hi := c, c
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := cur.at(x+dx, y+dy)
				for k := range 4 {
					lo[k] = min(lo[k], n[k])
					hi[k] = max(hi[k], n[k])
				}
			}
		}
		hist := accum.sample(pu, pv)

		velocity := float32(math.Hypot(float64((pu-u)*w), float64((pv-v)*h)))
		k := weight * kernel.Saturate(1-kernel.Sqrt(velocity)*motionK*0.25)

		var out [4]float32
		for i := range 4 {
			hv := kernel.Clamp(hist[i], lo[i], hi[i])
			out[i] = c[i] + (hv-c[i])*k
		}
		return out
	})
	return nil
}

// reproject maps uv with linear eye depth z through the current-clip to
// previous-clip matrix and returns the previous uv.
func reproject(toPrev, proj f32.Mat4, u, v, eyeDepth float32) (float32, float32, bool) {
	vz := -eyeDepth
	cw := proj[14]*vz + proj[15]
	if cw == 0 || proj[0] == 0 || proj[5] == 0 {
		return u, v, false
	}
	nx, ny := u*2-1, 1-v*2
	vx := (nx*cw - proj[2]*vz) / proj[0]
	vy := (ny*cw - proj[6]*vz) / proj[5]
	clip := camera.Apply(proj, f32.Vec4{vx, vy, vz, 1})
	prev := camera.Apply(toPrev, clip)
	if prev[3] == 0 {
		return u, v, false
	}
	px, py := prev[0]/prev[3], prev[1]/prev[3]
	return (px + 1) * 0.5, (1 - py) * 0.5, true
}

func taaDebugDepth(e *env) error {
	depth := e.texOr("_CameraDepthTexture", farDepth)
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		d := depth.sample(u, v)[0]
		return [4]float32{d, d, d, 1}
	})
	return nil
}
