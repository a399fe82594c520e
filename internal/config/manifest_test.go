package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsidere/kova-scroll/internal/loader"
	"github.com/surfsidere/kova-scroll/internal/motion"
	"github.com/surfsidere/kova-scroll/internal/section"
)

func floatPtr(v float64) *float64 { return &v }

func testManifest() *Manifest {
	return &Manifest{
		Version:    "1.0",
		Experience: "launch",
		Sections: []SectionSpec{
			{
				ID:              "hero",
				Name:            "Hero",
				Route:           "/hero",
				Layer:           "content-elevated",
				TriggerStart:    floatPtr(0),
				TriggerEnd:      floatPtr(0.4),
				Priority:        "critical",
				EstimatedSizeKB: 320,
				Animations: []AnimationSpec{
					{ID: "hero-fade", Kind: "fade", From: []float64{0}, To: []float64{1}},
				},
			},
			{
				ID:             "gallery",
				Name:           "Gallery",
				Route:          "/gallery",
				TriggerStart:   floatPtr(0.35),
				TriggerEnd:     floatPtr(1),
				Priority:       "below-fold",
				PreloadTrigger: "viewport",
				Dependencies:   []string{"hero"},
			},
		},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experience.yaml")

	m := testManifest()
	require.NoError(t, WriteManifest(m, path))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadManifestMissingFile(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSectionConfigsPinnedRanges(t *testing.T) {
	cfgs, err := testManifest().SectionConfigs()
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.Equal(t, "hero", cfgs[0].ID)
	assert.Equal(t, section.LayerContentElevated, cfgs[0].Layer)
	assert.Equal(t, 0.4, cfgs[0].TriggerEnd)
	assert.Equal(t, []string{"hero-fade"}, cfgs[0].Animations)

	assert.Equal(t, section.LayerContentBase, cfgs[1].Layer, "layer defaults to content-base")
	assert.Equal(t, 0.35, cfgs[1].TriggerStart)
}

func TestSectionConfigsPlannedRanges(t *testing.T) {
	m := &Manifest{
		Director: &DirectorSpec{Overlap: 0},
		Sections: []SectionSpec{
			{ID: "a", Name: "A", Route: "/a"},
			{ID: "b", Name: "B", Route: "/b"},
		},
	}

	cfgs, err := m.SectionConfigs()
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.InDelta(t, 0.0, cfgs[0].TriggerStart, 1e-9)
	assert.InDelta(t, 0.5, cfgs[0].TriggerEnd, 1e-9)
	assert.InDelta(t, 0.5, cfgs[1].TriggerStart, 1e-9)
	assert.InDelta(t, 1.0, cfgs[1].TriggerEnd, 1e-9)
}

func TestSectionConfigsRejectsMixedRanges(t *testing.T) {
	m := &Manifest{
		Sections: []SectionSpec{
			{ID: "a", Name: "A", Route: "/a", TriggerStart: floatPtr(0), TriggerEnd: floatPtr(0.5)},
			{ID: "b", Name: "B", Route: "/b"},
		},
	}
	_, err := m.SectionConfigs()
	require.Error(t, err)

	half := &Manifest{
		Sections: []SectionSpec{
			{ID: "a", Name: "A", Route: "/a", TriggerStart: floatPtr(0)},
		},
	}
	_, err = half.SectionConfigs()
	require.Error(t, err)
}

func TestSectionConfigsRejectsBadEnums(t *testing.T) {
	m := testManifest()
	m.Sections[0].Layer = "basement"
	_, err := m.SectionConfigs()
	require.Error(t, err)

	m = testManifest()
	m.Sections[1].Contrast = "sepia"
	_, err = m.SectionConfigs()
	require.Error(t, err)
}

func TestSectionSpecMetadata(t *testing.T) {
	m := testManifest()

	md, err := m.Sections[0].Metadata()
	require.NoError(t, err)
	assert.Equal(t, loader.PriorityCritical, md.Priority)
	assert.Equal(t, 320, md.EstimatedSizeKB)

	md, err = m.Sections[1].Metadata()
	require.NoError(t, err)
	assert.Equal(t, loader.TriggerViewport, md.PreloadTrigger)
	assert.Equal(t, []string{"hero"}, md.Dependencies)

	bad := m.Sections[0]
	bad.Priority = "urgent"
	_, err = bad.Metadata()
	require.Error(t, err)
}

func TestAnimationSpecParams(t *testing.T) {
	p, err := AnimationSpec{Kind: "fade", From: []float64{0}, To: []float64{1}}.Params()
	require.NoError(t, err)
	assert.Equal(t, motion.Fade{From: 0, To: 1}, p)

	p, err = AnimationSpec{Kind: "slide", From: []float64{0, 100}, To: []float64{0, 0}}.Params()
	require.NoError(t, err)
	assert.Equal(t, motion.Slide{FromX: 0, FromY: 100, ToX: 0, ToY: 0}, p)

	p, err = AnimationSpec{Kind: "color", From: []float64{0, 0, 0}, To: []float64{1, 1, 1}}.Params()
	require.NoError(t, err)
	assert.Equal(t, motion.Color{From: [3]float64{0, 0, 0}, To: [3]float64{1, 1, 1}}, p)

	p, err = AnimationSpec{Kind: "spring"}.Params()
	require.NoError(t, err)
	assert.Equal(t, motion.DefaultSpring(), p)

	_, err = AnimationSpec{Kind: "fade"}.Params()
	require.Error(t, err)
	_, err = AnimationSpec{Kind: "wobble"}.Params()
	require.Error(t, err)

	st := AnimationSpec{Kind: "scroll-transform", Input: []float64{0, 1}, Output: []float64{0, 100}}
	assert.True(t, st.IsScrollTransform())
	_, err = st.Params()
	require.Error(t, err, "scroll transforms go through the coordinator's range API")
}

func TestFindLatestManifest(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "experience_old.yaml")
	newer := filepath.Join(dir, "experience_new.yaml")
	require.NoError(t, WriteManifest(testManifest(), older))
	require.NoError(t, WriteManifest(testManifest(), newer))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := FindLatestManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatestManifest(t.TempDir())
	require.Error(t, err)
}

func TestManifestPathIsTimestamped(t *testing.T) {
	p := ManifestPath("out")
	assert.Equal(t, "out", filepath.Dir(p))
	assert.Contains(t, filepath.Base(p), "experience_")
	assert.True(t, filepath.Ext(p) == ".yaml")
}
