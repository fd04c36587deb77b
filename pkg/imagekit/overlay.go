// Package imagekit turns raw source images into carousel frames: it burns
// stroked caption text into images and normalises them into opaque,
// fixed-geometry JPEGs.
package imagekit

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	minFontSize  = 24
	maxFontSize  = 80
	fontScale    = 0.04
	lineSampleAy = "Ay"
)

// drawFunc paints one run of text with its top-left corner at (x, y).
type drawFunc func(dst draw.Image, face font.Face, c color.Color, x, y int, s string)

// Renderer burns overlay text into images. It is safe for concurrent use.
type Renderer struct {
	fonts   FontResolver
	quality int
	logger  *zap.Logger

	degradedOnce sync.Once
	draw         drawFunc
}

func NewRenderer(fonts FontResolver, quality int, logger *zap.Logger) *Renderer {
	if fonts == nil {
		fonts = NewPathResolver(DefaultFontPaths...)
	}
	if quality <= 0 || quality > 100 {
		quality = Quality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		fonts:   fonts,
		quality: quality,
		logger:  logger,
		draw:    drawString,
	}
}

var defaultRenderer = sync.OnceValue(func() *Renderer {
	return NewRenderer(NewPathResolver(DefaultFontPaths...), Quality, nil)
})

// RenderOverlay renders text onto data with the default renderer. A zero
// spec selects DefaultOverlaySpec.
func RenderOverlay(data []byte, text string, spec OverlaySpec) ([]byte, error) {
	return defaultRenderer().RenderOverlay(data, text, spec)
}

// RenderOverlay decodes data, burns text into it and re-encodes the result
// at the same dimensions.
func (r *Renderer) RenderOverlay(data []byte, text string, spec OverlaySpec) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	out, err := r.Overlay(img, text, spec)
	if err != nil {
		return nil, err
	}
	return encode(out, r.quality)
}

// Overlay is the in-memory form of RenderOverlay. img is not modified.
func (r *Renderer) Overlay(img image.Image, text string, spec OverlaySpec) (*image.NRGBA, error) {
	spec = spec.withDefaults()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Drawing into RGBA hits font.Drawer's fast path; img is opaque so no
	// premultiplication is lost.
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	text = PrepareText(text)
	if text == "" {
		return flatten(canvas), nil
	}

	face, err := r.fonts.Face(float64(AdaptiveFontSize(w, h)))
	if err != nil {
		return nil, fmt.Errorf("resolve font: %w", err)
	}
	if closer, ok := face.(io.Closer); ok {
		defer closer.Close()
	}
	if r.fonts.Degraded() {
		r.degradedOnce.Do(func() {
			r.logger.Warn("no scalable font found, rendering overlays with the built-in bitmap face")
		})
	}

	offsets := strokeOffsets(spec.StrokeWidth)
	for _, line := range layoutLines(face, text, w, h, spec) {
		for _, off := range offsets {
			r.draw(canvas, face, spec.StrokeColor, line.X+off.X, line.Y+off.Y, line.Text)
		}
		r.draw(canvas, face, spec.FontColor, line.X, line.Y, line.Text)
	}
	return flatten(canvas), nil
}

// AdaptiveFontSize scales type to 4% of the shorter frame side, clamped to
// [24, 80] pixels.
func AdaptiveFontSize(w, h int) int {
	size := int(math.Round(fontScale * float64(min(w, h))))
	return max(minFontSize, min(maxFontSize, size))
}

// Line is one wrapped line of overlay text and the top-left corner it is
// drawn at.
type Line struct {
	Text string
	X, Y int
}

// layoutLines wraps text to the width budget and places the block so its
// vertical centre sits on the anchor. Each line is centred on its own.
func layoutLines(face font.Face, text string, w, h int, spec OverlaySpec) []Line {
	maxWidth := int(float64(w) * spec.MaxWidthPercent / 100)
	measure := func(s string) int { return inkWidth(face, s) }
	wrapped := WrapText(text, maxWidth, measure)

	lineHeight := inkHeight(face, lineSampleAy)
	anchor := int(float64(h) * spec.YPositionPercent / 100)
	startY := anchor - floorDiv(lineHeight*len(wrapped), 2)

	lines := make([]Line, len(wrapped))
	for i, s := range wrapped {
		lines[i] = Line{
			Text: s,
			X:    centerX(w, measure(s)),
			Y:    startY + i*lineHeight,
		}
	}
	return lines
}

// centerX is the left margin for a line of width lw in a frame of width w.
// Lines wider than the frame get a negative margin, rounded down.
func centerX(w, lw int) int {
	return floorDiv(w-lw, 2)
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// strokeOffsets lists every offset in [-width, width]² except the origin,
// column by column.
func strokeOffsets(width int) []image.Point {
	if width <= 0 {
		return nil
	}
	offsets := make([]image.Point, 0, (2*width+1)*(2*width+1)-1)
	for dx := -width; dx <= width; dx++ {
		for dy := -width; dy <= width; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			offsets = append(offsets, image.Pt(dx, dy))
		}
	}
	return offsets
}

func inkBounds(face font.Face, s string) (fixed.Rectangle26_6, bool) {
	if s == "" {
		return fixed.Rectangle26_6{}, false
	}
	bounds, _ := font.BoundString(face, s)
	if bounds.Empty() {
		return bounds, false
	}
	return bounds, true
}

// inkWidth is the horizontal extent of the pixels s paints.
func inkWidth(face font.Face, s string) int {
	b, ok := inkBounds(face, s)
	if !ok {
		return 0
	}
	return b.Max.X.Ceil() - b.Min.X.Floor()
}

// inkHeight is the vertical extent of the pixels s paints.
func inkHeight(face font.Face, s string) int {
	b, ok := inkBounds(face, s)
	if !ok {
		return 0
	}
	return b.Max.Y.Ceil() - b.Min.Y.Floor()
}

func drawString(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Round()),
	}
	d.DrawString(s)
}
