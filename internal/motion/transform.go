package motion

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeMismatch is returned when input and output ranges differ in
	// length or are too short to interpolate over.
	ErrRangeMismatch = errors.New("input and output ranges must have the same length >= 2")

	// ErrRangeNotSorted is returned when the input range decreases.
	ErrRangeNotSorted = errors.New("input range must be non-decreasing")
)

// ValidateRanges checks a piecewise-linear mapping definition.
func ValidateRanges(input, output []float64) error {
	if len(input) < 2 || len(input) != len(output) {
		return fmt.Errorf("%w: got %d and %d", ErrRangeMismatch, len(input), len(output))
	}
	for i := 1; i < len(input); i++ {
		if input[i] < input[i-1] {
			return fmt.Errorf("%w: input[%d]=%f < input[%d]=%f", ErrRangeNotSorted, i, input[i], i-1, input[i-1])
		}
	}
	return nil
}

// Interpolate maps v through the piecewise-linear function defined by input
// and output. Out-of-range values clamp to the nearest endpoint, never
// extrapolate. Ranges must have been validated.
func Interpolate(v float64, input, output []float64) float64 {
	if v <= input[0] {
		return output[0]
	}
	last := len(input) - 1
	if v >= input[last] {
		return output[last]
	}

	// Find the surrounding segment.
	seg := 0
	for i := 0; i < last; i++ {
		if v >= input[i] && v < input[i+1] {
			seg = i
			break
		}
	}

	span := input[seg+1] - input[seg]
	if span == 0 {
		// Degenerate segment: step to the right-hand value.
		return output[seg+1]
	}
	t := (v - input[seg]) / span
	return lerp(output[seg], output[seg+1], t)
}

// lerp performs linear interpolation between a and b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing to t in [0,1].
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
