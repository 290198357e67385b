package kernel

// LutA is the shoulder constant of the LUT domain. LutToLin maps [0, 1]
// onto [0, 1/(LutA-1)], so a LUT covers linear values up to 20.
const LutA = 1.05

// LinToLut maps a linear value into the LUT domain. It is the inverse of
// LutToLin.
func LinToLut(x, lutA float32) float32 {
	if x <= 0 {
		return 0
	}
	return lutA * x / (1 + x)
}

// LutToLin maps a LUT coordinate back to linear. Inputs at or above 1 are
// treated as 1.
func LutToLin(x, lutA float32) float32 {
	x = min(x, 1)
	n := x / lutA
	return n / (1 - n)
}
