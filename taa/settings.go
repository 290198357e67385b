package taa

import "fmt"

// Mode selects the temporal sampling pattern.
type Mode uint8

const (
	// Off disables jitter; frames are anti-aliased spatially only.
	Off Mode = iota

	// SMAA2x couples spatial anti-aliasing with a two-phase diagonal
	// jitter and blends each frame with the previous one.
	SMAA2x

	// Standard2x through Standard16x jitter over 2 to 16 sub-pixel
	// positions and merge into the accumulation buffer.
	Standard2x
	Standard4x
	Standard8x
	Standard16x
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Off:
		return "Off"
	case SMAA2x:
		return "SMAA2x"
	case Standard2x:
		return "Standard2x"
	case Standard4x:
		return "Standard4x"
	case Standard8x:
		return "Standard8x"
	case Standard16x:
		return "Standard16x"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Temporal reports whether the mode jitters the projection.
func (m Mode) Temporal() bool { return m != Off }

// EdgeDetection selects the input of the edge pass.
type EdgeDetection uint8

const (
	Luminance EdgeDetection = iota
	Color
	Depth
)

// String returns the edge detection name.
func (d EdgeDetection) String() string {
	switch d {
	case Luminance:
		return "Luminance"
	case Color:
		return "Color"
	case Depth:
		return "Depth"
	default:
		return fmt.Sprintf("EdgeDetection(%d)", d)
	}
}

// Debug selects an intermediate buffer to show instead of the result.
type Debug uint8

const (
	DebugOff Debug = iota
	DebugEdges
	DebugWeights
	DebugDepth
	DebugAccumulation
)

// String returns the debug view name.
func (d Debug) String() string {
	switch d {
	case DebugOff:
		return "Off"
	case DebugEdges:
		return "Edges"
	case DebugWeights:
		return "Weights"
	case DebugDepth:
		return "Depth"
	case DebugAccumulation:
		return "Accumulation"
	default:
		return fmt.Sprintf("Debug(%d)", d)
	}
}

// Settings configures the engine. The zero value is not useful; start from
// DefaultSettings.
type Settings struct {
	Mode          Mode          `json:"mode"`
	EdgeDetection EdgeDetection `json:"edgeDetection"`

	// DepthThreshold is the depth difference that counts as an edge in
	// Depth mode, in hundredths of the far plane.
	DepthThreshold float32 `json:"depthThreshold"`

	// K is the weight of the accumulated history in the merge pass.
	K float32 `json:"k"`

	// MotionRejection scales how quickly history is dropped for moving
	// pixels. Zero keeps history regardless of motion.
	MotionRejection float32 `json:"motionRejection"`

	Debug Debug `json:"debug"`
}

// DefaultSettings returns depth edge detection without jitter.
func DefaultSettings() Settings {
	return Settings{
		Mode:            Off,
		EdgeDetection:   Depth,
		DepthThreshold:  0.1,
		K:               0.3,
		MotionRejection: 1,
	}
}
