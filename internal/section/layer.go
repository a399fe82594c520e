package section

import "fmt"

// Layer is a coarse z-ordering tier. Higher layers always stack above lower
// ones; fine ordering within a layer is resolved by the stacking package.
type Layer int

const (
	LayerBackground Layer = iota
	LayerContentBase
	LayerContentElevated
	LayerOverlay
	LayerHUD
	LayerDebug
)

// Base returns the z-index base offset for the layer.
func (l Layer) Base() int {
	switch l {
	case LayerBackground:
		return 0
	case LayerContentBase:
		return 100
	case LayerContentElevated:
		return 200
	case LayerOverlay:
		return 300
	case LayerHUD:
		return 400
	case LayerDebug:
		return 9999
	}
	return 0
}

func (l Layer) String() string {
	switch l {
	case LayerBackground:
		return "background"
	case LayerContentBase:
		return "content-base"
	case LayerContentElevated:
		return "content-elevated"
	case LayerOverlay:
		return "overlay"
	case LayerHUD:
		return "hud"
	case LayerDebug:
		return "debug"
	}
	return "unknown"
}

// ParseLayer maps a manifest string to a Layer.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "background":
		return LayerBackground, nil
	case "content-base", "":
		return LayerContentBase, nil
	case "content-elevated":
		return LayerContentElevated, nil
	case "overlay":
		return LayerOverlay, nil
	case "hud":
		return LayerHUD, nil
	case "debug":
		return LayerDebug, nil
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

// ContrastMode selects how a section's foreground adapts to its backdrop.
type ContrastMode int

const (
	ContrastAuto ContrastMode = iota
	ContrastLight
	ContrastDark
)

func (m ContrastMode) String() string {
	switch m {
	case ContrastLight:
		return "light"
	case ContrastDark:
		return "dark"
	}
	return "auto"
}

// ParseContrastMode maps a manifest string to a ContrastMode.
func ParseContrastMode(s string) (ContrastMode, error) {
	switch s {
	case "auto", "":
		return ContrastAuto, nil
	case "light":
		return ContrastLight, nil
	case "dark":
		return ContrastDark, nil
	}
	return 0, fmt.Errorf("unknown contrast mode %q", s)
}
