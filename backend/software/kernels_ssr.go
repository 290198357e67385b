// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"
	"strconv"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
)

func init() {
	registerKernels(programs.SSR, []kernelFunc{
		programs.SSRRayTraceStep1:                ssrTrace(1),
		programs.SSRRayTraceStep2:                ssrTrace(2),
		programs.SSRRayTraceStep4:                ssrTrace(4),
		programs.SSRRayTraceStep8:                ssrTrace(8),
		programs.SSRRayTraceStep16:               ssrTrace(16),
		programs.SSRCompositeFinal:               ssrCompositeFinal,
		programs.SSRBlur:                         ssrBlur,
		programs.SSRCompositeSSR:                 ssrComposite,
		programs.SSRBlit:                         blitCopy,
		programs.SSREdgeGeneration:               ssrEdges,
		programs.SSRMinMipGeneration:             ssrEdgeMip,
		programs.SSRHitPointToReflections:        ssrHitToReflection,
		programs.SSRBilateralKeyPack:             ssrPack,
		programs.SSRBlitDepthAsCSZ:               ssrCSZ,
		programs.SSRTemporalFilter:               ssrTemporal,
		programs.SSRAverageRayDistanceGeneration: ssrAverageRayDistance,
		programs.SSRPoissonBlur:                  ssrPoisson,
	})
}

// Debug views of the final composite, numbered as the ssr engine's
// DebugMode.
const (
	ssrDebugNone = iota
	ssrDebugIncomingRadiance
	ssrDebugSSRResult
	ssrDebugFinalGlossyTerm
	ssrDebugSSRMask
	ssrDebugRoughness
	ssrDebugBaseColor
	ssrDebugSpecColor
	ssrDebugReflectivity
	ssrDebugReflectionProbeOnly
	ssrDebugReflectionProbeMinusSSR
	ssrDebugSSRMinusReflectionProbe
	ssrDebugNoGlossy
	ssrDebugNegativeNoGlossy
	ssrDebugMipLevel
)

var defaultSpecular = constSurface([4]float32{0.04, 0.04, 0.04, 0.5})

// view holds the camera constants shared by the ssr kernels.
type view struct {
	projInfo   f32.Vec4
	toPixel    f32.Mat4
	worldToCam f32.Mat4
	screenW    float32
	screenH    float32
	far        float32
	ppm        float32

	depth  *surface
	packed *surface
}

func (e *env) ssrView() view {
	size := e.vec("_ScreenSize")
	if size[0] == 0 || size[1] == 0 {
		size[0], size[1] = float32(e.dst.desc.Width), float32(e.dst.desc.Height)
	}
	clip := e.vec("_CameraClipInfo")
	far := clip[2]
	if far == 0 {
		far = 1
	}
	return view{
		projInfo:   e.vec("_ProjInfo"),
		toPixel:    e.mat("_ProjectToPixelMatrix"),
		worldToCam: e.mat("_WorldToCameraMatrix"),
		screenW:    size[0],
		screenH:    size[1],
		far:        far,
		ppm:        e.float("_PixelsPerMeterAtOneMeter", -size[0]/2),
		depth:      e.texOr("_CameraDepthTexture", farDepth),
		packed:     e.tex("_NormalAndRoughnessTexture"),
	}
}

// position reconstructs the view-space position at uv, with v measured from
// the top.
func (vw *view) position(u, v float32) [3]float32 {
	z := -vw.depth.samplePoint(u, v)[0] * vw.far
	return kernel.ViewPosition(vw.projInfo, u*vw.screenW, (1-v)*vw.screenH, z)
}

// project maps a view-space point to uv.
func (vw *view) project(p [3]float32) (float32, float32) {
	q := kernel.TransformPoint(vw.toPixel, p)
	return q[0] / vw.screenW, 1 - q[1]/vw.screenH
}

// normalRoughness returns the view-space normal and roughness at uv.
func (vw *view) normalRoughness(u, v float32, fallback *surface) ([3]float32, float32) {
	var s [4]float32
	switch {
	case vw.packed != nil:
		s = vw.packed.samplePoint(u, v)
	case fallback != nil:
		s = fallback.samplePoint(u, v)
	default:
		s = upNormal.at(0, 0)
	}
	n := [3]float32{s[0]*2 - 1, s[1]*2 - 1, s[2]*2 - 1}
	return kernel.Normalize3(kernel.TransformDir(vw.worldToCam, n)), s[3]
}

// ssrPack writes the world normal from _CameraGBufferTexture2 and roughness
// (1 - smoothness) from _CameraGBufferTexture1.
func ssrPack(e *env) error {
	normals := e.texOr("_CameraGBufferTexture2", upNormal)
	spec := e.texOr("_CameraGBufferTexture1", defaultSpecular)
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		n := normals.samplePoint(u, v)
		s := spec.samplePoint(u, v)
		return [4]float32{n[0], n[1], n[2], 1 - s[3]}
	})
	return nil
}

// ssrTrace marches the reflected view ray in steps of stride pixels and
// writes (hit u, hit v, distance / max distance, confidence). Misses are
// zero.
func ssrTrace(stride float32) kernelFunc {
	return func(e *env) error {
		vw := e.ssrView()
		maxSteps := int(e.float("_MaxSteps", 64))
		maxDist := e.float("_MaxRayTraceDistance", 100)
		thickness := e.float("_LayerThickness", 0.5)
		behind := e.flag("_TraceBehindObjects")
		backwards := e.flag("_AllowBackwardsRays")
		backfaceMiss := e.flag("_TreatBackfaceHitAsMiss")
		everywhere := e.flag("_TraceEverywhere")
		ppm := kernel.Abs(vw.ppm)
		normals := e.tex("_CameraGBufferTexture2")

		e.shade(func(_, _ int, u, v float32) [4]float32 {
			var miss [4]float32
			if vw.depth.samplePoint(u, v)[0] >= 1 {
				return miss
			}
			origin := vw.position(u, v)
			n, rough := vw.normalRoughness(u, v, normals)
			if !everywhere && rough > 0.9 {
				return miss
			}
			dir := kernel.Reflect(kernel.Normalize3(origin), n)
			if dir[2] > 0 && !backwards {
				return miss
			}

			var t float32
			for range maxSteps {
				z := origin[2] + dir[2]*t
				if z >= 0 {
					return miss
				}
				dt := stride * -z / ppm
				t += dt
				if t > maxDist {
					return miss
				}
				p := [3]float32{origin[0] + dir[0]*t, origin[1] + dir[1]*t, origin[2] + dir[2]*t}
				if p[2] >= 0 {
					return miss
				}
				hu, hv := vw.project(p)
				if hu < 0 || hu > 1 || hv < 0 || hv > 1 {
					return miss
				}
				sceneZ := -vw.depth.samplePoint(hu, hv)[0] * vw.far
				if p[2] > sceneZ {
					continue
				}
				if sceneZ-p[2] > thickness+dt*kernel.Abs(dir[2]) {
					if behind {
						continue
					}
					return miss
				}
				if backfaceMiss {
					hn, _ := vw.normalRoughness(hu, hv, normals)
					if kernel.Dot3(hn, dir) > 0 {
						return miss
					}
				}
				return [4]float32{hu, hv, t / maxDist, 1}
			}
			return miss
		})
		return nil
	}
}

// ssrHitToReflection fetches scene colour at the hit point.
func ssrHitToReflection(e *env) error {
	src := e.mainTex()
	hits := e.tex("_HitPointTexture")
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		if hits == nil {
			return [4]float32{}
		}
		h := hits.samplePoint(u, v)
		if h[3] <= 0 {
			return [4]float32{}
		}
		c := src.sampleBilinear(h[0], h[1])
		return [4]float32{c[0], c[1], c[2], h[3]}
	})
	return nil
}

var blurTaps = [5]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// ssrBlur is one axis of the mip-chain blur, weighted by confidence.
func ssrBlur(e *env) error {
	src := e.mainTex()
	axis := e.vec("_Axis")
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		var rgb [3]float32
		var wa float32
		for i, w := range blurTaps {
			t := float32(i - 2)
			s := src.sampleOffset(u, v, axis[0]*t, axis[1]*t)
			rgb[0] += s[0] * s[3] * w
			rgb[1] += s[1] * s[3] * w
			rgb[2] += s[2] * s[3] * w
			wa += s[3] * w
		}
		if wa <= 0 {
			return [4]float32{}
		}
		return [4]float32{rgb[0] / wa, rgb[1] / wa, rgb[2] / wa, wa}
	})
	return nil
}

var poissonDisk = [8][2]float32{
	{-0.613392, 0.617481}, {0.170019, -0.040254}, {-0.299417, 0.791925}, {0.645680, 0.493210},
	{-0.651784, 0.717887}, {0.421003, 0.027070}, {-0.817194, -0.271096}, {-0.705374, -0.668203},
}

// ssrPoisson sharpens mip 0 with a small confidence-weighted Poisson blur.
func ssrPoisson(e *env) error {
	src := e.mainTex()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		c := src.sample(u, v)
		rgb := [3]float32{c[0] * c[3], c[1] * c[3], c[2] * c[3]}
		wa := c[3]
		for _, o := range poissonDisk {
			s := src.sampleOffset(u, v, o[0]*1.5, o[1]*1.5)
			rgb[0] += s[0] * s[3]
			rgb[1] += s[1] * s[3]
			rgb[2] += s[2] * s[3]
			wa += s[3]
		}
		if wa <= 0 {
			return [4]float32{}
		}
		return [4]float32{rgb[0] / wa, rgb[1] / wa, rgb[2] / wa, wa / float32(len(poissonDisk)+1)}
	})
	return nil
}

// ssrEdges flags depth discontinuities for the bilateral upsample.
func ssrEdges(e *env) error {
	depth := e.texOr("_CameraDepthTexture", farDepth)
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		tw, th := e.dst.texel()
		d := depth.samplePoint(u, v)[0]
		dx := kernel.Abs(depth.samplePoint(u+tw, v)[0] - d)
		dy := kernel.Abs(depth.samplePoint(u, v+th)[0] - d)
		if dx+dy > 0.01*max(d, 0.01) {
			return [4]float32{1, 0, 0, 1}
		}
		return [4]float32{0, 0, 0, 1}
	})
	return nil
}

// ssrEdgeMip reduces an edge level by taking the strongest edge of each
// 2x2 block.
func ssrEdgeMip(e *env) error {
	src := e.mainTex()
	e.shade(func(x, y int, _, _ float32) [4]float32 {
		sx := src.desc.Width / max(e.dst.desc.Width, 1)
		sy := src.desc.Height / max(e.dst.desc.Height, 1)
		sx, sy = max(sx, 1), max(sy, 1)
		var m float32
		for j := range sy {
			for i := range sx {
				m = max(m, src.at(x*sx+i, y*sy+j)[0])
			}
		}
		return [4]float32{m, 0, 0, 1}
	})
	return nil
}

// ssrAverageRayDistance averages normalised hit distance over 3x3.
func ssrAverageRayDistance(e *env) error {
	hits := e.tex("_HitPointTexture")
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		if hits == nil {
			return [4]float32{0, 0, 0, 1}
		}
		var sum, w float32
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				h := hits.sampleOffset(u, v, float32(dx), float32(dy))
				sum += h[2] * h[3]
				w += h[3]
			}
		}
		if w <= 0 {
			return [4]float32{0, 0, 0, 1}
		}
		return [4]float32{sum / w, 0, 0, 1}
	})
	return nil
}

// ssrComposite resolves the reflection for each pixel: the mip chain is
// read at a level set by roughness and ray length, then faded by hit
// confidence, screen edges, distance, Fresnel and the roughness fallback.
func ssrComposite(e *env) error {
	vw := e.ssrView()
	var mips []*surface
	for i := range 5 {
		if m := e.tex("_ReflectionTexture" + strconv.Itoa(i)); m != nil {
			mips = append(mips, m)
		}
	}
	if len(mips) == 0 {
		mips = append(mips, e.mainTex())
	}
	hits := e.tex("_HitPointTexture")
	avgDist := e.tex("_AverageRayDistanceBuffer")
	useAvg := e.flag("_UseAverageRayDistance")
	maxDist := e.float("_MaxRayTraceDistance", 100)
	fadeDist := e.float("_FadeDistance", 100)
	edgeFade := e.float("_ScreenEdgeFading", 0)
	fresnelFade := e.float("_FresnelFade", 0)
	fresnelPower := e.float("_FresnelFadePower", 1)
	distBlur := e.float("_DistanceBlur", 0)
	maxRough := e.float("_MaxRoughness", 1)
	roughRange := max(e.float("_RoughnessFalloffRange", 0.05), 1e-4)
	multiplier := e.float("_SSRMultiplier", 1)
	mipBias := e.float("_MipBias", 0)
	suppress := e.flag("_HighlightSuppression")
	normals := e.tex("_CameraGBufferTexture2")

	e.shade(func(_, _ int, u, v float32) [4]float32 {
		if hits == nil {
			return [4]float32{}
		}
		h := hits.samplePoint(u, v)
		if h[3] <= 0 {
			return [4]float32{}
		}
		n, rough := vw.normalRoughness(u, v, normals)

		rayDist := h[2]
		if useAvg && avgDist != nil {
			rayDist = avgDist.sample(u, v)[0]
		}
		level := rough*4*(1+rayDist*distBlur) + mipBias
		level = kernel.Clamp(level, 0, float32(len(mips)-1))
		l0 := int(level)
		l1 := min(l0+1, len(mips)-1)
		c0, c1 := mips[l0].sample(u, v), mips[l1].sample(u, v)
		t := level - float32(l0)
		var c [4]float32
		for k := range 4 {
			c[k] = kernel.Lerp(c0[k], c1[k], t)
		}

		alpha := h[3]
		if edgeFade > 0 {
			d := min(h[0], 1-h[0], h[1], 1-h[1])
			alpha *= kernel.Saturate(d / edgeFade)
		}
		if fadeDist > 0 {
			alpha *= kernel.Saturate(1 - h[2]*maxDist/fadeDist)
		}
		if fresnelFade > 0 {
			viewDir := kernel.Normalize3(vw.position(u, v))
			ndv := kernel.Saturate(-kernel.Dot3(viewDir, n))
			f := kernel.Pow(1-ndv, fresnelPower)
			alpha *= kernel.Lerp(1, f, fresnelFade)
		}
		alpha *= kernel.Saturate((maxRough - rough) / roughRange)

		rgb := [3]float32{c[0] * multiplier, c[1] * multiplier, c[2] * multiplier}
		if suppress {
			s := 1 / (1 + kernel.Luma(rgb[0], rgb[1], rgb[2]))
			rgb[0], rgb[1], rgb[2] = rgb[0]*s, rgb[1]*s, rgb[2]*s
		}
		return [4]float32{rgb[0], rgb[1], rgb[2], alpha}
	})
	return nil
}

// ssrTemporal blends the reflection with last frame's, reprojected through
// _CurrentCameraToPreviousCamera. With _UseTemporalConfidence the history
// weight drops where the previous depth disagrees.
func ssrTemporal(e *env) error {
	vw := e.ssrView()
	cur := e.tex("_FinalReflectionTexture")
	prev := e.tex("_PreviousReflectionTexture")
	prevZ := e.tex("_PreviousCSZBuffer")
	toPrev := e.mat("_CurrentCameraToPreviousCamera")
	alpha := e.float("_TemporalAlpha", 0)
	useConfidence := e.flag("_UseTemporalConfidence")

	e.shade(func(_, _ int, u, v float32) [4]float32 {
		if cur == nil {
			return [4]float32{}
		}
		c := cur.sample(u, v)
		if prev == nil || alpha <= 0 {
			return c
		}
		p := kernel.TransformPoint(toPrev, vw.position(u, v))
		pu, pv := vw.project(p)
		if pu < 0 || pu > 1 || pv < 0 || pv > 1 {
			return c
		}
		w := alpha
		if useConfidence && prevZ != nil {
			dz := kernel.Abs(prevZ.samplePoint(pu, pv)[0] - p[2])
			w *= kernel.Saturate(1 - dz/max(0.05*kernel.Abs(p[2]), 1e-3))
		}
		h := prev.sample(pu, pv)
		var out [4]float32
		for k := range 4 {
			out[k] = kernel.Lerp(c[k], h[k], w)
		}
		return out
	})
	return nil
}

// ssrCSZ stores camera-space z.
func ssrCSZ(e *env) error {
	vw := e.ssrView()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		return [4]float32{-vw.depth.samplePoint(u, v)[0] * vw.far, 0, 0, 1}
	})
	return nil
}

// ssrCompositeFinal adds the resolved reflection to the scene, weighted by
// specular colour, or renders one of the debug views.
func ssrCompositeFinal(e *env) error {
	src := e.mainTex()
	final := e.texOr("_FinalReflectionTexture", blackSurface)
	spec := e.texOr("_CameraGBufferTexture1", defaultSpecular)
	packed := e.tex("_NormalAndRoughnessTexture")
	depth := e.texOr("_CameraDepthTexture", farDepth)
	additive := e.flag("_AdditiveReflection")
	bilateral := e.flag("_BilateralUpsampling") &&
		(final.desc.Width < e.dst.desc.Width || final.desc.Height < e.dst.desc.Height)
	debug := int(e.float("_DebugMode", 0))

	e.shade(func(x, y int, u, v float32) [4]float32 {
		c := src.at(x, y)
		var r [4]float32
		if bilateral {
			r = bilateralSample(final, depth, u, v)
		} else {
			r = final.sample(u, v)
		}
		s := spec.samplePoint(u, v)
		refl := max(s[0], s[1], s[2])

		var ssr, glossy [3]float32
		for k := range 3 {
			ssr[k] = r[k] * r[3]
			glossy[k] = ssr[k] * s[k]
		}
		probe := [3]float32{c[0] * refl, c[1] * refl, c[2] * refl}

		switch debug {
		case ssrDebugIncomingRadiance:
			return [4]float32{r[0], r[1], r[2], 1}
		case ssrDebugSSRResult:
			return [4]float32{ssr[0], ssr[1], ssr[2], 1}
		case ssrDebugFinalGlossyTerm:
			return [4]float32{glossy[0], glossy[1], glossy[2], 1}
		case ssrDebugSSRMask:
			return [4]float32{r[3], r[3], r[3], 1}
		case ssrDebugRoughness:
			rough := 1 - s[3]
			if packed != nil {
				rough = packed.samplePoint(u, v)[3]
			}
			return [4]float32{rough, rough, rough, 1}
		case ssrDebugBaseColor:
			return [4]float32{c[0], c[1], c[2], 1}
		case ssrDebugSpecColor:
			return [4]float32{s[0], s[1], s[2], 1}
		case ssrDebugReflectivity:
			return [4]float32{refl, refl, refl, 1}
		case ssrDebugReflectionProbeOnly:
			return [4]float32{probe[0], probe[1], probe[2], 1}
		case ssrDebugReflectionProbeMinusSSR:
			return [4]float32{max(probe[0]-glossy[0], 0), max(probe[1]-glossy[1], 0), max(probe[2]-glossy[2], 0), 1}
		case ssrDebugSSRMinusReflectionProbe:
			return [4]float32{max(glossy[0]-probe[0], 0), max(glossy[1]-probe[1], 0), max(glossy[2]-probe[2], 0), 1}
		case ssrDebugNoGlossy:
			return [4]float32{c[0] - probe[0], c[1] - probe[1], c[2] - probe[2], 1}
		case ssrDebugNegativeNoGlossy:
			return [4]float32{1 - (c[0] - probe[0]), 1 - (c[1] - probe[1]), 1 - (c[2] - probe[2]), 1}
		case ssrDebugMipLevel:
			rough := 1 - s[3]
			if packed != nil {
				rough = packed.samplePoint(u, v)[3]
			}
			return [4]float32{rough, rough * 0.5, 0, 1}
		}

		if additive {
			return [4]float32{c[0] + glossy[0], c[1] + glossy[1], c[2] + glossy[2], c[3]}
		}
		return [4]float32{
			c[0] + (glossy[0] - probe[0]*r[3]),
			c[1] + (glossy[1] - probe[1]*r[3]),
			c[2] + (glossy[2] - probe[2]*r[3]),
			c[3],
		}
	})
	return nil
}

// bilateralSample upsamples low by weighting its four nearest texels by
// depth similarity to the full-resolution pixel.
func bilateralSample(low, depth *surface, u, v float32) [4]float32 {
	d := depth.samplePoint(u, v)[0]
	fx := u*float32(low.desc.Width) - 0.5
	fy := v*float32(low.desc.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx, ty := fx-float32(x0), fy-float32(y0)

	var out [4]float32
	var wsum float32
	for j := range 2 {
		for i := range 2 {
			bw := (1 - tx) + float32(i)*(2*tx-1)
			bh := (1 - ty) + float32(j)*(2*ty-1)
			lu := (float32(x0+i) + 0.5) / float32(low.desc.Width)
			lv := (float32(y0+j) + 0.5) / float32(low.desc.Height)
			dd := kernel.Abs(depth.samplePoint(lu, lv)[0] - d)
			w := bw * bh / (dd*100 + 1e-3)
			s := low.at(x0+i, y0+j)
			for k := range 4 {
				out[k] += s[k] * w
			}
			wsum += w
		}
	}
	if wsum <= 0 {
		return low.sample(u, v)
	}
	for k := range 4 {
		out[k] /= wsum
	}
	return out
}
