package app

import (
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for amplitude rendering.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white

	colorMapSize = 256
)

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	ThermalTheme:   {},
}

// ColorMapper maps amplitudes onto a pre-computed color gradient.
type ColorMapper struct {
	colorMap  [colorMapSize]color.RGBA
	boundsMin float64
	perIndex  float64
}

// NewColorMapper creates a color mapper for the theme and bounds. Flat or
// inverted bounds are widened to a usable range, matching the widening
// PercentileBounds applies to flat captures.
func NewColorMapper(theme ColorTheme, bounds AmplitudeBounds) *ColorMapper {
	span := bounds.Max - bounds.Min
	if span <= 0 {
		bounds.Min = math.Max(0, bounds.Min-5)
		span = 10
	}

	cm := &ColorMapper{
		boundsMin: bounds.Min,
		perIndex:  span / float64(colorMapSize-1),
	}

	themeFn := colorThemeFn(theme)
	for i := range cm.colorMap {
		cm.colorMap[i] = themeFn(float64(i) / float64(colorMapSize-1))
	}
	return cm
}

// Color returns the gradient color for an amplitude, clamped to the bounds.
func (cm *ColorMapper) Color(amplitude float64) color.RGBA {
	index := int((amplitude - cm.boundsMin) / cm.perIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= colorMapSize {
		return cm.colorMap[colorMapSize-1]
	}
	return cm.colorMap[index]
}

// colorThemeFn returns a function mapping a normalized level in [0,1] to a
// theme color.
func colorThemeFn(theme ColorTheme) func(float64) color.RGBA {
	switch theme {
	case GrayscaleTheme:
		return func(level float64) color.RGBA {
			v := uint8(math.Pow(level, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case ClassicTheme:
		return func(level float64) color.RGBA {
			return hsvToRGB(240-(level*240), 0.9+(level*0.1), math.Pow(level, 0.7))
		}

	default: // ThermalTheme
		return func(level float64) color.RGBA {
			switch {
			case level < 0.33:
				return color.RGBA{R: uint8((level * 3) * 255), A: 255}
			case level < 0.66:
				return color.RGBA{R: 255, G: uint8(((level - 0.33) * 3) * 255), A: 255}
			default:
				return color.RGBA{R: 255, G: 255, B: uint8(((level - 0.66) * 3) * 255), A: 255}
			}
		}
	}
}

// hsvToRGB converts a hue angle in degrees, saturation and value in [0,1].
func hsvToRGB(h, s, v float64) color.RGBA {
	if s <= 0 {
		g := uint8(v * 255)
		return color.RGBA{R: g, G: g, B: g, A: 255}
	}

	if h >= 360 {
		h -= 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	vv := uint8(v * 255)
	p := uint8((v * (1 - s)) * 255)
	q := uint8((v * (1 - (s * f))) * 255)
	t := uint8((v * (1 - (s * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: vv, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: vv, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: vv, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: vv, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: vv, A: 255}
	default:
		return color.RGBA{R: vv, G: p, B: q, A: 255}
	}
}
