package tonemap

import "golang.org/x/image/math/f32"

// Filmic is a toe/linear/shoulder curve applied in log-contrast space.
type Filmic struct {
	Enabled bool `json:"enabled"`

	// ExposureBias is in stops, -4 to 4.
	ExposureBias float32 `json:"exposureBias"`

	// Contrast scales log luminance around middle grey, 0 to 2.
	Contrast float32 `json:"contrast"`

	// Toe lowers the dark end of the curve, 0 to 1.
	Toe float32 `json:"toe"`

	// Shoulder raises the white point so highlights roll off, 0 to 1.
	Shoulder float32 `json:"shoulder"`
}

// Grading holds white balance, saturation and the lift/gamma/gain wheels.
// Wheel colours are normalised to a mean of one before use; white leaves
// the image unchanged.
type Grading struct {
	Enabled bool `json:"enabled"`

	WhiteBalance f32.Vec3 `json:"whiteBalance"`
	Saturation   float32  `json:"saturation"`
	Gamma        float32  `json:"gamma"`

	Shadows    f32.Vec3 `json:"shadows"`
	Midtones   f32.Vec3 `json:"midtones"`
	Highlights f32.Vec3 `json:"highlights"`
}

// Settings configures the engine.
type Settings struct {
	Filmic  Filmic  `json:"filmic"`
	Grading Grading `json:"grading"`

	// FastMode bakes a per-channel 1D curve instead of the 3D LUT.
	// Saturation then runs per pixel.
	FastMode bool `json:"fastMode"`

	// DebugClamp marks pixels whose exposed colour leaves the LUT range.
	DebugClamp bool `json:"debugClamp"`

	// UserLUT is applied after the filmic curve and before grading. Nil
	// uses the identity.
	UserLUT *UserLUT `json:"-"`
}

var white = f32.Vec3{1, 1, 1}

// DefaultSettings returns settings with the curve and grading disabled.
func DefaultSettings() Settings {
	return Settings{
		Filmic: Filmic{Contrast: 1},
		Grading: Grading{
			WhiteBalance: white,
			Saturation:   1,
			Gamma:        1,
			Shadows:      white,
			Midtones:     white,
			Highlights:   white,
		},
	}
}
