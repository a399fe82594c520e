// Package config holds runtime settings and the YAML experience manifest
// that declares sections, their trigger ranges and their animations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/surfsidere/kova-scroll/internal/director"
	"github.com/surfsidere/kova-scroll/internal/loader"
	"github.com/surfsidere/kova-scroll/internal/motion"
	"github.com/surfsidere/kova-scroll/internal/section"
)

// Manifest is the on-disk description of one scroll experience.
type Manifest struct {
	Version    string        `yaml:"version"`
	Experience string        `yaml:"experience"`
	Director   *DirectorSpec `yaml:"director,omitempty"`
	Sections   []SectionSpec `yaml:"sections"`
}

// DirectorSpec overrides the timeline planner's defaults.
type DirectorSpec struct {
	Overlap float64 `yaml:"overlap"`
	Intro   float64 `yaml:"intro"`
	Outro   float64 `yaml:"outro"`
}

// SectionSpec declares a single section. TriggerStart and TriggerEnd are
// optional; when every section omits them the timeline planner assigns
// ranges from the declaration order and weights.
type SectionSpec struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Route           string          `yaml:"route"`
	Layer           string          `yaml:"layer,omitempty"`
	TriggerStart    *float64        `yaml:"triggerStart,omitempty"`
	TriggerEnd      *float64        `yaml:"triggerEnd,omitempty"`
	ZIndex          *int            `yaml:"zIndex,omitempty"`
	Weight          float64         `yaml:"weight,omitempty"`
	Contrast        string          `yaml:"contrast,omitempty"`
	Backdrop        string          `yaml:"backdrop,omitempty"`
	Priority        string          `yaml:"priority,omitempty"`
	PreloadTrigger  string          `yaml:"preload,omitempty"`
	CacheStrategy   string          `yaml:"cache,omitempty"`
	EstimatedSizeKB int             `yaml:"sizeKB,omitempty"`
	Dependencies    []string        `yaml:"dependencies,omitempty"`
	ElementRef      string          `yaml:"elementRef,omitempty"`
	Animations      []AnimationSpec `yaml:"animations,omitempty"`
}

// AnimationSpec declares one animation. Which fields apply depends on kind:
// fade, scale and mask read From[0]/To[0]; slide reads From[0..1]/To[0..1];
// color reads From[0..2]/To[0..2]; parallax reads Strength; spring reads
// Stiffness, Damping and Mass; scroll-transform reads Input and Output.
type AnimationSpec struct {
	ID        string    `yaml:"id,omitempty"`
	Kind      string    `yaml:"kind"`
	From      []float64 `yaml:"from,omitempty"`
	To        []float64 `yaml:"to,omitempty"`
	Strength  float64   `yaml:"strength,omitempty"`
	Stiffness float64   `yaml:"stiffness,omitempty"`
	Damping   float64   `yaml:"damping,omitempty"`
	Mass      float64   `yaml:"mass,omitempty"`
	Input     []float64 `yaml:"input,omitempty"`
	Output    []float64 `yaml:"output,omitempty"`
}

// WriteManifest writes a manifest to a YAML file.
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ManifestPath creates a timestamped manifest filename under dir.
func ManifestPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("experience_%s.yaml", timestamp))
}

// FindLatestManifest finds the most recent manifest file in dir.
func FindLatestManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scanning manifest directory %s: %w", dir, err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%s holds no experience manifests", dir)
	}
	return latest, nil
}

// SectionConfigs converts the manifest's sections into registry configs.
// Trigger ranges are either all pinned in the manifest or all planned: a mix
// is rejected because a planner running around pinned ranges could not keep
// the declaration order meaningful.
func (m *Manifest) SectionConfigs() ([]section.Config, error) {
	pinned, planned := 0, 0
	for _, s := range m.Sections {
		if s.TriggerStart != nil && s.TriggerEnd != nil {
			pinned++
		} else if s.TriggerStart == nil && s.TriggerEnd == nil {
			planned++
		} else {
			return nil, fmt.Errorf("section %q pins only one trigger bound", s.ID)
		}
	}
	if pinned > 0 && planned > 0 {
		return nil, fmt.Errorf("manifest mixes pinned and planned trigger ranges")
	}

	var ranges map[string]director.Range
	if planned > 0 {
		d := director.NewDirector()
		if m.Director != nil {
			d.Overlap = m.Director.Overlap
			d.Intro = m.Director.Intro
			d.Outro = m.Director.Outro
		}
		ids := make([]string, len(m.Sections))
		weights := make([]float64, len(m.Sections))
		for i, s := range m.Sections {
			ids[i] = s.ID
			weights[i] = s.Weight
		}
		plan, err := d.PlanWeighted(ids, weights)
		if err != nil {
			return nil, fmt.Errorf("planning trigger ranges: %w", err)
		}
		ranges = make(map[string]director.Range, len(plan))
		for _, r := range plan {
			ranges[r.SectionID] = r
		}
	}

	out := make([]section.Config, 0, len(m.Sections))
	for _, s := range m.Sections {
		layer, err := section.ParseLayer(s.Layer)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.ID, err)
		}
		mode, err := section.ParseContrastMode(s.Contrast)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.ID, err)
		}

		cfg := section.Config{
			ID:         s.ID,
			Layer:      layer,
			Contrast:   mode,
			ZIndex:     s.ZIndex,
			ElementRef: s.ElementRef,
		}
		if r, ok := ranges[s.ID]; ok {
			cfg.TriggerStart = r.Start
			cfg.TriggerEnd = r.End
		} else {
			cfg.TriggerStart = *s.TriggerStart
			cfg.TriggerEnd = *s.TriggerEnd
		}
		for _, a := range s.Animations {
			if a.ID != "" {
				cfg.Animations = append(cfg.Animations, a.ID)
			}
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Metadata converts a section spec into loader metadata.
func (s SectionSpec) Metadata() (loader.Metadata, error) {
	priority, err := loader.ParsePriority(s.Priority)
	if err != nil {
		return loader.Metadata{}, fmt.Errorf("section %q: %w", s.ID, err)
	}
	trigger, err := loader.ParsePreloadTrigger(s.PreloadTrigger)
	if err != nil {
		return loader.Metadata{}, fmt.Errorf("section %q: %w", s.ID, err)
	}
	cache, err := loader.ParseCacheStrategy(s.CacheStrategy)
	if err != nil {
		return loader.Metadata{}, fmt.Errorf("section %q: %w", s.ID, err)
	}
	return loader.Metadata{
		ID:              s.ID,
		Name:            s.Name,
		Route:           s.Route,
		Priority:        priority,
		Dependencies:    s.Dependencies,
		PreloadTrigger:  trigger,
		EstimatedSizeKB: s.EstimatedSizeKB,
		CacheStrategy:   cache,
	}, nil
}

// IsScrollTransform reports whether the spec declares a scroll-bound
// transform, which is created through the coordinator's range API instead of
// a Params variant.
func (a AnimationSpec) IsScrollTransform() bool {
	return a.Kind == "scroll-transform"
}

// Params converts an animation spec into coordinator parameters.
func (a AnimationSpec) Params() (motion.Params, error) {
	switch a.Kind {
	case "fade":
		if len(a.From) < 1 || len(a.To) < 1 {
			return nil, fmt.Errorf("fade %q needs from and to", a.ID)
		}
		return motion.Fade{From: a.From[0], To: a.To[0]}, nil
	case "slide":
		if len(a.From) < 2 || len(a.To) < 2 {
			return nil, fmt.Errorf("slide %q needs from[x,y] and to[x,y]", a.ID)
		}
		return motion.Slide{FromX: a.From[0], FromY: a.From[1], ToX: a.To[0], ToY: a.To[1]}, nil
	case "scale":
		if len(a.From) < 1 || len(a.To) < 1 {
			return nil, fmt.Errorf("scale %q needs from and to", a.ID)
		}
		return motion.Scale{From: a.From[0], To: a.To[0]}, nil
	case "mask":
		if len(a.From) < 1 || len(a.To) < 1 {
			return nil, fmt.Errorf("mask %q needs from and to", a.ID)
		}
		return motion.Mask{From: a.From[0], To: a.To[0]}, nil
	case "color":
		if len(a.From) < 3 || len(a.To) < 3 {
			return nil, fmt.Errorf("color %q needs from[r,g,b] and to[r,g,b]", a.ID)
		}
		return motion.Color{
			From: [3]float64{a.From[0], a.From[1], a.From[2]},
			To:   [3]float64{a.To[0], a.To[1], a.To[2]},
		}, nil
	case "parallax":
		return motion.Parallax{Strength: a.Strength}, nil
	case "scroll-transform":
		return nil, fmt.Errorf("scroll-transform %q maps input/output ranges, not params", a.ID)
	case "spring":
		if a.Stiffness == 0 && a.Damping == 0 && a.Mass == 0 {
			return motion.DefaultSpring(), nil
		}
		return motion.Spring{Stiffness: a.Stiffness, Damping: a.Damping, Mass: a.Mass}, nil
	}
	return nil, fmt.Errorf("unknown animation kind %q", a.Kind)
}
