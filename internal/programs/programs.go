// Package programs is the pass catalogue shared by the engines and the
// devices: program names, pass indices and pass names. Registering here
// keeps engines and backends in agreement without importing each other.
package programs

import "github.com/gogpu/postfx/pass"

// Program names.
const (
	Blit      = pass.ProgramBlit
	TAA       = "taa"
	DoF       = "dof"
	DoFMedian = "dof.median"
	DoFBokeh  = "dof.bokeh"
	SSR       = "ssr"
	Tonemap   = "tonemap"
)

// TAA passes.
const (
	TAACopy = iota
	TAALumaDetection
	TAAClearToBlack
	TAAWeightCalculation
	TAAWeightsAndBlend1
	TAAWeightsAndBlend2
	TAAColorDetection
	TAAMergeFrames
	TAADepthDetection
	TAADebugDepth
)

// Depth-of-field passes.
const (
	DoFBlurAlphaWeighted = iota
	DoFBoxBlur
	DoFDilateFgCocFromColor
	DoFDilateFgCoc
	DoFCaptureCoc
	DoFCaptureCocExplicit
	DoFVisualizeCoc
	DoFVisualizeCocExplicit
	DoFCocPrefilter
	DoFCircleBlur
	DoFCircleBlurWithDilatedFg
	DoFCircleBlurLowQuality
	DoFCircleBlurLowQualityWithDilatedFg
	DoFMerge
	DoFMergeExplicit
	DoFMergeBicubic
	DoFMergeExplicitBicubic
	DoFShapeLowQuality
	DoFShapeLowQualityDilateFg
	DoFShapeLowQualityMerge
	DoFShapeLowQualityMergeDilateFg
	DoFShapeMediumQuality
	DoFShapeMediumQualityDilateFg
	DoFShapeMediumQualityMerge
	DoFShapeMediumQualityMergeDilateFg
	DoFShapeHighQuality
	DoFShapeHighQualityDilateFg
	DoFShapeHighQualityMerge
	DoFShapeHighQualityMergeDilateFg
)

// Median filter passes.
const (
	MedianMedian3 = iota
	MedianMedian3x3
)

// Bokeh sprite passes.
const (
	BokehDraw = iota
	BokehCollect
)

// Screen-space reflection passes.
const (
	SSRRayTraceStep1 = iota
	SSRRayTraceStep2
	SSRRayTraceStep4
	SSRRayTraceStep8
	SSRRayTraceStep16
	SSRCompositeFinal
	SSRBlur
	SSRCompositeSSR
	SSRBlit
	SSREdgeGeneration
	SSRMinMipGeneration
	SSRHitPointToReflections
	SSRBilateralKeyPack
	SSRBlitDepthAsCSZ
	SSRTemporalFilter
	SSRAverageRayDistanceGeneration
	SSRPoissonBlur
)

// Tonemapping passes.
const (
	TonemapThreeD = iota
	TonemapOneD
	TonemapThreeDDebug
	TonemapOneDDebug
)

func init() {
	pass.Register(pass.Program{Name: TAA, Passes: []string{
		"Copy", "LumaDetection", "ClearToBlack", "WeightCalculation",
		"WeightsAndBlend1", "WeightsAndBlend2", "ColorDetection",
		"MergeFrames", "DepthDetection", "DebugDepth",
	}})
	pass.Register(pass.Program{Name: DoF, Passes: []string{
		"BlurAlphaWeighted", "BoxBlur", "DilateFgCocFromColor", "DilateFgCoc",
		"CaptureCoc", "CaptureCocExplicit", "VisualizeCoc", "VisualizeCocExplicit",
		"CocPrefilter", "CircleBlur", "CircleBlurWithDilatedFg",
		"CircleBlurLowQuality", "CircleBlurLowQualityWithDilatedFg",
		"Merge", "MergeExplicit", "MergeBicubic", "MergeExplicitBicubic",
		"ShapeLowQuality", "ShapeLowQualityDilateFg",
		"ShapeLowQualityMerge", "ShapeLowQualityMergeDilateFg",
		"ShapeMediumQuality", "ShapeMediumQualityDilateFg",
		"ShapeMediumQualityMerge", "ShapeMediumQualityMergeDilateFg",
		"ShapeHighQuality", "ShapeHighQualityDilateFg",
		"ShapeHighQualityMerge", "ShapeHighQualityMergeDilateFg",
	}})
	pass.Register(pass.Program{Name: DoFMedian, Passes: []string{"Median3", "Median3x3"}})
	pass.Register(pass.Program{Name: DoFBokeh, Passes: []string{"Draw", "Collect"}})
	pass.Register(pass.Program{Name: SSR, Passes: []string{
		"RayTraceStep1", "RayTraceStep2", "RayTraceStep4", "RayTraceStep8",
		"RayTraceStep16", "CompositeFinal", "Blur", "CompositeSSR", "Blit",
		"EdgeGeneration", "MinMipGeneration", "HitPointToReflections",
		"BilateralKeyPack", "BlitDepthAsCSZ", "TemporalFilter",
		"AverageRayDistanceGeneration", "PoissonBlur",
	}})
	pass.Register(pass.Program{Name: Tonemap, Passes: []string{
		"ThreeD", "OneD", "ThreeDDebug", "OneDDebug",
	}})
}

// BokehPointStride is the size of one bokeh point: x, y, size, r, g, b, a
// as float32.
const BokehPointStride = 28

// BokehPointCapacity is the number of points the bokeh buffer holds.
const BokehPointCapacity = 90000

// Colour LUT layouts bound by the tonemap program.
//
// The 3D LUT is a strip of LUT3DSize slices: texel (r + b*LUT3DSize, g)
// holds the entry for grid coordinate (r, g, b). The 1D curve is
// LUT1DSize wide and two rows high, both rows identical.
const (
	LUT3DSize = 32
	LUT1DSize = 128
)

// Passes returns the passes of a catalogued program.
func Passes(program string) []pass.Pass {
	prog, ok := pass.Lookup(program)
	if !ok {
		return nil
	}
	out := make([]pass.Pass, prog.Len())
	for i := range out {
		out[i] = pass.Pass{Program: program, Index: i}
	}
	return out
}
