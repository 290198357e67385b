package ssr

import (
	"fmt"
	"strings"
)

// Resolution selects the trace and resolve resolutions.
type Resolution uint8

const (
	FullResolution Resolution = iota
	// HalfTraceFullResolve traces at half resolution and composites at
	// full resolution.
	HalfTraceFullResolve
	HalfResolution
)

// String returns the resolution name.
func (r Resolution) String() string {
	switch r {
	case FullResolution:
		return "FullResolution"
	case HalfTraceFullResolve:
		return "HalfTraceFullResolve"
	case HalfResolution:
		return "HalfResolution"
	default:
		return fmt.Sprintf("Resolution(%d)", r)
	}
}

// divisor is the trace downscale factor.
func (r Resolution) divisor() int {
	if r == FullResolution {
		return 1
	}
	return 2
}

// DebugMode replaces the composite with an intermediate term.
type DebugMode uint8

const (
	DebugNone DebugMode = iota
	DebugIncomingRadiance
	DebugSSRResult
	DebugFinalGlossyTerm
	DebugSSRMask
	DebugRoughness
	DebugBaseColor
	DebugSpecColor
	DebugReflectivity
	DebugReflectionProbeOnly
	DebugReflectionProbeMinusSSR
	DebugSSRMinusReflectionProbe
	DebugNoGlossy
	DebugNegativeNoGlossy
	DebugMipLevel
)

var debugNames = [...]string{
	"None", "IncomingRadiance", "SSRResult", "FinalGlossyTerm", "SSRMask",
	"Roughness", "BaseColor", "SpecColor", "Reflectivity",
	"ReflectionProbeOnly", "ReflectionProbeMinusSSR", "SSRMinusReflectionProbe",
	"NoGlossy", "NegativeNoGlossy", "MipLevel",
}

// String returns the debug mode name.
func (d DebugMode) String() string {
	if int(d) < len(debugNames) {
		return debugNames[d]
	}
	return fmt.Sprintf("DebugMode(%d)", d)
}

// BasicSettings control the strength and reach of reflections.
type BasicSettings struct {
	ReflectionMultiplier float32 `json:"reflectionMultiplier"`

	// MaxDistance is the longest ray in world units. FadeDistance fades
	// hits out towards it.
	MaxDistance  float32 `json:"maxDistance"`
	FadeDistance float32 `json:"fadeDistance"`

	// ScreenEdgeFading fades hits within this fraction of the screen edge.
	ScreenEdgeFading float32 `json:"screenEdgeFading"`

	// EnableHDR keeps the reflection chain in half floats.
	EnableHDR          bool `json:"enableHDR"`
	AdditiveReflection bool `json:"additiveReflection"`
}

// ReflectionSettings control the ray march and its resolve.
type ReflectionSettings struct {
	MaxSteps int `json:"maxSteps"`

	// RayStepSize is the log2 of the march stride in pixels, 0 to 4.
	RayStepSize int `json:"rayStepSize"`

	// WidthModifier is the assumed thickness of the depth buffer.
	WidthModifier float32 `json:"widthModifier"`

	// Surfaces smoother than SmoothFallbackThreshold get reflections; the
	// fade to the fallback lighting spans SmoothFallbackDistance.
	SmoothFallbackThreshold float32 `json:"smoothFallbackThreshold"`
	SmoothFallbackDistance  float32 `json:"smoothFallbackDistance"`

	FresnelFade      float32 `json:"fresnelFade"`
	FresnelFadePower float32 `json:"fresnelFadePower"`
	DistanceBlur     float32 `json:"distanceBlur"`
}

// AdvancedSettings tune temporal filtering and tracing details.
type AdvancedSettings struct {
	// TemporalFilterStrength is the weight of the previous frame's
	// reflection. Zero disables temporal filtering and the history.
	TemporalFilterStrength float32 `json:"temporalFilterStrength"`
	UseTemporalConfidence  bool    `json:"useTemporalConfidence"`

	TraceBehindObjects          bool       `json:"traceBehindObjects"`
	HighQualitySharpReflections bool       `json:"highQualitySharpReflections"`
	TraceEverywhere             bool       `json:"traceEverywhere"`
	TreatBackfaceHitAsMiss      bool       `json:"treatBackfaceHitAsMiss"`
	AllowBackwardsRays          bool       `json:"allowBackwardsRays"`
	ImproveCorners              bool       `json:"improveCorners"`
	Resolution                  Resolution `json:"resolution"`
	BilateralUpsample           bool       `json:"bilateralUpsample"`
	ReduceBanding               bool       `json:"reduceBanding"`
	HighlightSuppression        bool       `json:"highlightSuppression"`
}

// DebugSettings select debug output and diagnostic filtering paths.
type DebugSettings struct {
	Mode DebugMode `json:"mode"`

	// FullResolutionFiltering blurs every mip at trace resolution with k²
	// iterations for mip k instead of downsampling.
	FullResolutionFiltering bool `json:"fullResolutionFiltering"`

	// UseEdgeDetector builds an edge pyramid for the bilateral upsample.
	UseEdgeDetector bool `json:"useEdgeDetector"`

	// AverageRayDistance resolves mip levels from the averaged ray length
	// of the neighbourhood.
	AverageRayDistance bool `json:"averageRayDistance"`
}

// Settings configures the engine. Start from DefaultSettings or a preset.
type Settings struct {
	Basic      BasicSettings      `json:"basic"`
	Reflection ReflectionSettings `json:"reflection"`
	Advanced   AdvancedSettings   `json:"advanced"`
	Debug      DebugSettings      `json:"debug"`
}

// Preset names a settings bundle.
type Preset uint8

const (
	PresetPerformance Preset = iota
	PresetDefault
	PresetHighQuality
)

// String returns the preset name.
func (p Preset) String() string {
	switch p {
	case PresetPerformance:
		return "performance"
	case PresetDefault:
		return "default"
	case PresetHighQuality:
		return "high"
	default:
		return fmt.Sprintf("Preset(%d)", p)
	}
}

// ParsePreset returns the preset called name.
func ParsePreset(name string) (Preset, error) {
	switch strings.ToLower(name) {
	case "performance", "fast":
		return PresetPerformance, nil
	case "default", "":
		return PresetDefault, nil
	case "high", "highquality":
		return PresetHighQuality, nil
	}
	return 0, fmt.Errorf("ssr: unknown preset %q", name)
}

// Settings returns the settings of the preset.
func (p Preset) Settings() Settings {
	switch p {
	case PresetPerformance:
		return PerformanceSettings()
	case PresetHighQuality:
		return HighQualitySettings()
	default:
		return DefaultSettings()
	}
}

// DefaultSettings traces at half resolution, resolves at full resolution
// and filters temporally.
func DefaultSettings() Settings {
	return Settings{
		Basic: BasicSettings{
			ReflectionMultiplier: 1,
			MaxDistance:          100,
			FadeDistance:         100,
			ScreenEdgeFading:     0.03,
			EnableHDR:            true,
		},
		Reflection: ReflectionSettings{
			MaxSteps:                128,
			RayStepSize:             3,
			WidthModifier:           0.5,
			SmoothFallbackThreshold: 0.2,
			SmoothFallbackDistance:  0.05,
			FresnelFade:             0.2,
			FresnelFadePower:        2,
			DistanceBlur:            1,
		},
		Advanced: AdvancedSettings{
			TemporalFilterStrength:      0.7,
			UseTemporalConfidence:       true,
			TraceBehindObjects:          true,
			HighQualitySharpReflections: true,
			TraceEverywhere:             true,
			ImproveCorners:              true,
			Resolution:                  HalfTraceFullResolve,
			BilateralUpsample:           true,
			ReduceBanding:               true,
		},
	}
}

// PerformanceSettings trace and resolve at half resolution without
// temporal filtering.
func PerformanceSettings() Settings {
	s := DefaultSettings()
	s.Basic.ScreenEdgeFading = 0
	s.Basic.MaxDistance = 10
	s.Basic.FadeDistance = 10
	s.Basic.EnableHDR = false
	s.Reflection.MaxSteps = 64
	s.Reflection.RayStepSize = 4
	s.Reflection.SmoothFallbackThreshold = 0.4
	s.Advanced = AdvancedSettings{
		TraceBehindObjects: true,
		Resolution:         HalfResolution,
	}
	return s
}

// HighQualitySettings march with a one pixel stride.
func HighQualitySettings() Settings {
	s := DefaultSettings()
	s.Reflection.MaxSteps = 512
	s.Reflection.RayStepSize = 1
	return s
}
