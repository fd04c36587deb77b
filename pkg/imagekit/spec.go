package imagekit

import "image/color"

// OverlaySpec controls how overlay text is laid out and painted.
type OverlaySpec struct {
	// FontSize is the nominal size from configuration. Rendering derives the
	// size from the frame instead; see AdaptiveFontSize.
	FontSize         int
	FontColor        color.Color
	StrokeColor      color.Color
	StrokeWidth      int
	YPositionPercent float64
	MaxWidthPercent  float64
}

var (
	DefaultOverlaySpec = OverlaySpec{
		FontSize:         56,
		FontColor:        color.White,
		StrokeColor:      color.Black,
		StrokeWidth:      2,
		YPositionPercent: 70,
		MaxWidthPercent:  85,
	}
	HookOverlaySpec = OverlaySpec{
		FontSize:         48,
		FontColor:        color.White,
		StrokeColor:      color.Black,
		StrokeWidth:      2,
		YPositionPercent: 70,
		MaxWidthPercent:  85,
	}
	CTAOverlaySpec = OverlaySpec{
		FontSize:         64,
		FontColor:        color.White,
		StrokeColor:      color.Black,
		StrokeWidth:      2,
		YPositionPercent: 50,
		MaxWidthPercent:  85,
	}
)

// IsZero reports whether s is the zero value.
func (s OverlaySpec) IsZero() bool {
	return s.FontSize == 0 && s.FontColor == nil && s.StrokeColor == nil &&
		s.StrokeWidth == 0 && s.YPositionPercent == 0 && s.MaxWidthPercent == 0
}

func (s OverlaySpec) withDefaults() OverlaySpec {
	if s.IsZero() {
		return DefaultOverlaySpec
	}
	if s.FontColor == nil {
		s.FontColor = DefaultOverlaySpec.FontColor
	}
	if s.StrokeColor == nil {
		s.StrokeColor = DefaultOverlaySpec.StrokeColor
	}
	return s
}
