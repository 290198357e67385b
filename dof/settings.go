package dof

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/pass"
)

// Model selects how the circle of confusion is derived from depth.
type Model uint8

const (
	// Basic derives the CoC from the focus plane, focus range and f-stops.
	Basic Model = iota

	// Advanced is Basic with the near/far radii and boosts exposed.
	Advanced

	// Explicit ramps blur between explicit near and far planes.
	Explicit
)

// String returns the model name.
func (m Model) String() string {
	switch m {
	case Basic:
		return "Basic"
	case Advanced:
		return "Advanced"
	case Explicit:
		return "Explicit"
	default:
		return fmt.Sprintf("Model(%d)", m)
	}
}

// Aperture is the bokeh shape of the main blur.
type Aperture uint8

const (
	Circular Aperture = iota
	Hexagonal
	Octagonal
)

// String returns the aperture name.
func (a Aperture) String() string {
	switch a {
	case Circular:
		return "Circular"
	case Hexagonal:
		return "Hexagonal"
	case Octagonal:
		return "Octagonal"
	default:
		return fmt.Sprintf("Aperture(%d)", a)
	}
}

// radiusScale widens polygonal apertures so they cover the same area as
// the circle.
func (a Aperture) radiusScale() float32 {
	switch a {
	case Hexagonal:
		return 1.2
	case Octagonal:
		return 1.15
	default:
		return 1
	}
}

// Median selects the noise filter run after the main blur.
type Median uint8

const (
	MedianOff Median = iota
	// MedianNormal runs two separable three-tap passes.
	MedianNormal
	// MedianHigh runs one 3x3 pass.
	MedianHigh
)

// String returns the median quality name.
func (m Median) String() string {
	switch m {
	case MedianOff:
		return "Off"
	case MedianNormal:
		return "Normal"
	case MedianHigh:
		return "High"
	default:
		return fmt.Sprintf("Median(%d)", m)
	}
}

// Bokeh configures sprite bokeh: bright defocused highlights are moved out
// of the image and redrawn as aperture-shaped sprites.
type Bokeh struct {
	Enabled bool `json:"enabled"`

	// Scale multiplies the sprite size.
	Scale float32 `json:"scale"`

	// Intensity scales highlight contrast before the threshold test.
	Intensity float32 `json:"intensity"`

	// Threshold is the contrast a pixel needs to spawn a sprite.
	Threshold float32 `json:"threshold"`

	// SpawnHeuristic is the minimum CoC magnitude of a spawning pixel.
	SpawnHeuristic float32 `json:"spawnHeuristic"`

	// Sprite is the sprite texture. Nil draws flat discs.
	Sprite pass.Surface `json:"-"`
}

// Settings configures the engine. Start from DefaultSettings.
type Settings struct {
	Model Model `json:"model"`

	// FocusPlane is the focus distance as the fourth root of a fraction of
	// the far plane. FocusRange is the in-focus band in the same units.
	FocusPlane float32 `json:"focusPlane"`
	FocusRange float32 `json:"focusRange"`

	// FocusTarget, when set, replaces FocusPlane. It returns the focus
	// depth as a fraction of the far plane; see FocusOn.
	FocusTarget func(cam *camera.Camera) float32 `json:"-"`

	// Explicit model planes, as fourth roots of far plane fractions.
	NearPlane   float32 `json:"nearPlane"`
	FarPlane    float32 `json:"farPlane"`
	NearFalloff float32 `json:"nearFalloff"`
	FarFalloff  float32 `json:"farFalloff"`

	// NearRadius and FarRadius are the maximum blur radii in pixels at
	// 720 lines.
	NearRadius float32 `json:"nearRadius"`
	FarRadius  float32 `json:"farRadius"`

	FStops float32 `json:"fStops"`

	// Highlights brighter than BoostPoint are brightened by NearBoost and
	// FarBoost in the respective blur regions.
	BoostPoint float32 `json:"boostPoint"`
	NearBoost  float32 `json:"nearBoost"`
	FarBoost   float32 `json:"farBoost"`

	Aperture Aperture `json:"aperture"`

	// Orientation rotates polygonal apertures, in degrees.
	Orientation float32 `json:"orientation"`

	Prefilter             bool   `json:"prefilter"`
	DilateNearBlur        bool   `json:"dilateNearBlur"`
	Median                Median `json:"median"`
	HighQualityUpsampling bool   `json:"highQualityUpsampling"`

	Bokeh Bokeh `json:"bokeh"`

	// Visualize replaces the output with a map of near (red) and far
	// (blue) blur.
	Visualize bool `json:"visualize"`
}

// DefaultSettings returns a circular aperture with the basic model.
func DefaultSettings() Settings {
	return Settings{
		Model:                 Basic,
		FocusPlane:            0.225,
		FocusRange:            0.9,
		NearPlane:             0,
		FarPlane:              1,
		NearFalloff:           0.9,
		FarFalloff:            0.9,
		NearRadius:            20,
		FarRadius:             20,
		FStops:                5,
		BoostPoint:            0.75,
		Aperture:              Circular,
		Prefilter:             true,
		DilateNearBlur:        true,
		Median:                MedianHigh,
		HighQualityUpsampling: true,
		Bokeh: Bokeh{
			Scale:          1,
			Intensity:      50,
			Threshold:      2,
			SpawnHeuristic: 0.15,
		},
	}
}

// FocusOn returns a FocusTarget that keeps the world-space point p in
// focus.
func FocusOn(p f32.Vec3) func(cam *camera.Camera) float32 {
	return func(cam *camera.Camera) float32 {
		_, _, z := camera.ApplyPoint(cam.WorldToCamera, p[0], p[1], p[2])
		if cam.InfiniteFar() || cam.Far <= 0 {
			return 0
		}
		return -z / cam.Far
	}
}
