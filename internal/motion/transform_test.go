package motion

import (
	"math"
	"testing"
)

func TestInterpolateClampsEndpoints(t *testing.T) {
	input := []float64{0, 1}
	output := []float64{0, 100}

	cases := []struct {
		v    float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 50},
		{1, 100},
		{1.5, 100},
	}

	for _, c := range cases {
		got := Interpolate(c.v, input, output)
		if got != c.want {
			t.Errorf("Interpolate(%f): expected %f, got %f", c.v, c.want, got)
		}
	}
}

func TestInterpolatePiecewise(t *testing.T) {
	// Two segments with different slopes.
	input := []float64{0, 0.5, 1}
	output := []float64{0, 10, 110}

	if got := Interpolate(0.25, input, output); got != 5 {
		t.Errorf("expected 5, got %f", got)
	}
	if got := Interpolate(0.75, input, output); got != 60 {
		t.Errorf("expected 60, got %f", got)
	}
}

func TestInterpolateZeroWidthSegment(t *testing.T) {
	// A repeated input point is a step, not a division by zero.
	input := []float64{0, 0.5, 0.5, 1}
	output := []float64{0, 0, 100, 100}

	got := Interpolate(0.5, input, output)
	if math.IsNaN(got) {
		t.Fatal("zero-width segment produced NaN")
	}
	if got != 100 {
		t.Errorf("expected step to 100, got %f", got)
	}
}

func TestValidateRanges(t *testing.T) {
	if err := ValidateRanges([]float64{0, 1}, []float64{0, 100}); err != nil {
		t.Errorf("valid ranges rejected: %v", err)
	}
	if err := ValidateRanges([]float64{0, 1}, []float64{0}); err == nil {
		t.Error("length mismatch accepted")
	}
	if err := ValidateRanges([]float64{0.5, 0.2}, []float64{0, 1}); err == nil {
		t.Error("decreasing input accepted")
	}
	if err := ValidateRanges([]float64{0.3}, []float64{1}); err == nil {
		t.Error("single-point range accepted")
	}
}

func TestEaseInOutCubicBounds(t *testing.T) {
	if got := easeInOutCubic(0); got != 0 {
		t.Errorf("ease(0) = %f", got)
	}
	if got := easeInOutCubic(1); got != 1 {
		t.Errorf("ease(1) = %f", got)
	}
	if got := easeInOutCubic(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("ease(0.5) = %f", got)
	}
}
