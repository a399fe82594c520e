// Package director plans trigger ranges across the scroll timeline.
package director

import (
	"errors"
	"fmt"
)

// Range assigns one section a window of normalized scroll progress.
type Range struct {
	SectionID string
	Start     float64
	End       float64
}

// ErrNoSections is returned when planning over an empty section list.
var ErrNoSections = errors.New("no sections to plan")

// Director distributes sections over the scroll timeline when the manifest
// does not pin their trigger ranges explicitly.
type Director struct {
	Overlap float64 // fraction of each slot shared with its neighbors
	Intro   float64 // progress held empty before the first section
	Outro   float64 // progress held empty after the last section
}

// NewDirector creates a Director with default settings.
func NewDirector() *Director {
	return &Director{
		Overlap: 0.15,
		Intro:   0.0,
		Outro:   0.0,
	}
}

// Plan spreads ids evenly over [Intro, 1-Outro] in the given order, widening
// each slot by half the overlap on both sides so neighboring sections
// cross-fade instead of cutting.
func (d *Director) Plan(ids []string) ([]Range, error) {
	return d.PlanWeighted(ids, nil)
}

// PlanWeighted is Plan with per-section weights: a section with weight 2 gets
// twice the timeline share of a section with weight 1. A nil weights slice
// means equal shares; non-positive weights count as 1.
func (d *Director) PlanWeighted(ids []string, weights []float64) ([]Range, error) {
	if len(ids) == 0 {
		return nil, ErrNoSections
	}
	if weights != nil && len(weights) != len(ids) {
		return nil, fmt.Errorf("got %d weights for %d sections", len(weights), len(ids))
	}
	if d.Intro < 0 || d.Outro < 0 || d.Intro+d.Outro >= 1 {
		return nil, fmt.Errorf("intro %.2f and outro %.2f leave no timeline", d.Intro, d.Outro)
	}

	share := make([]float64, len(ids))
	total := 0.0
	for i := range ids {
		w := 1.0
		if weights != nil && weights[i] > 0 {
			w = weights[i]
		}
		share[i] = w
		total += w
	}

	span := 1 - d.Intro - d.Outro
	overlap := clamp01(d.Overlap)

	out := make([]Range, len(ids))
	cursor := d.Intro
	for i, id := range ids {
		slot := span * share[i] / total
		margin := slot * overlap / 2
		out[i] = Range{
			SectionID: id,
			Start:     clamp01(cursor - margin),
			End:       clamp01(cursor + slot + margin),
		}
		cursor += slot
	}
	return out, nil
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
