package taa

// Sub-pixel sample positions in 1/16 pixel.
var (
	pattern2x = [][2]int{{4, 4}, {-4, -4}}
	pattern4x = [][2]int{{-2, -6}, {6, -2}, {-6, 2}, {2, 6}}
	pattern8x = [][2]int{
		{7, -7}, {-3, -5}, {3, 7}, {-7, -1},
		{5, 1}, {-1, 3}, {1, -3}, {-5, 5},
	}
	pattern16x = [][2]int{
		{7, -4}, {-1, -3}, {3, -5}, {-5, -2},
		{6, 7}, {-2, 6}, {2, 5}, {-6, -4},
		{4, -1}, {-3, 2}, {1, 1}, {-8, 0},
		{5, 3}, {-4, -6}, {0, -7}, {-7, -8},
	}
)

// PatternLength returns the number of jitter positions of mode; 1 for Off.
func PatternLength(m Mode) int {
	switch m {
	case SMAA2x, Standard2x:
		return 2
	case Standard4x:
		return 4
	case Standard8x:
		return 8
	case Standard16x:
		return 16
	default:
		return 1
	}
}

// Offset returns the jitter of sample index i of mode in pixels.
func Offset(m Mode, i int) (x, y float32) {
	n := PatternLength(m)
	i = ((i % n) + n) % n
	switch m {
	case SMAA2x:
		d := float32(0.25)
		if i == 0 {
			d = -d
		}
		return d, -d
	case Standard2x:
		return sixteenths(pattern2x[i], 0)
	case Standard4x:
		return sixteenths(pattern4x[i], 0)
	case Standard8x:
		return sixteenths(pattern8x[i], 0)
	case Standard16x:
		return sixteenths(pattern16x[i], 0.5)
	default:
		return 0, 0
	}
}

func sixteenths(p [2]int, bias float32) (float32, float32) {
	return (float32(p[0]) + bias) / 16, (float32(p[1]) + bias) / 16
}

// Jitter is the sample index state. The zero value is unprimed: the first
// Advance selects sample 0.
type Jitter struct {
	index  int
	primed bool
}

// Advance moves to the next sample of mode and returns its index.
func (j *Jitter) Advance(m Mode) int {
	n := PatternLength(m)
	if !j.primed {
		j.index, j.primed = 0, true
		return 0
	}
	j.index = (j.index + 1) % n
	return j.index
}

// Index returns the current sample index.
func (j *Jitter) Index() int { return j.index }

// Reset returns the jitter to its unprimed state.
func (j *Jitter) Reset() { *j = Jitter{} }
