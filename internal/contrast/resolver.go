// Package contrast resolves a section's foreground scheme against its
// backdrop color.
package contrast

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/surfsidere/kova-scroll/internal/section"
)

// Scheme is the resolved foreground treatment.
type Scheme int

const (
	// SchemeLight means light foreground over a dark backdrop.
	SchemeLight Scheme = iota
	// SchemeDark means dark foreground over a light backdrop.
	SchemeDark
)

func (s Scheme) String() string {
	if s == SchemeDark {
		return "dark"
	}
	return "light"
}

// Resolver decides schemes from backdrop luminance.
type Resolver struct {
	// Threshold is the luminance above which a backdrop counts as light.
	Threshold float64
}

// NewResolver creates a resolver with the default midpoint threshold.
func NewResolver() *Resolver {
	return &Resolver{Threshold: 0.5}
}

// Resolve maps a contrast mode and backdrop color to a scheme. Explicit
// light/dark modes pass through untouched; auto samples the backdrop.
func (r *Resolver) Resolve(mode section.ContrastMode, backdrop color.Color) Scheme {
	switch mode {
	case section.ContrastLight:
		return SchemeLight
	case section.ContrastDark:
		return SchemeDark
	}
	if Luminance(backdrop) > r.Threshold {
		return SchemeDark
	}
	return SchemeLight
}

// Luminance returns the perceived luminance of a color in [0,1] using the
// ITU-R 601 weights, the same weighting grayscale conversion uses.
func Luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	rf := float64(r) / 0xffff
	gf := float64(g) / 0xffff
	bf := float64(b) / 0xffff
	return 0.299*rf + 0.587*gf + 0.114*bf
}

// ParseHex parses "#rgb" or "#rrggbb" into a color.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = s[i]
			expanded[2*i+1] = s[i]
		}
		s = string(expanded)
	case 6:
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}
