package imagekit

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// fakeFonts serves the bitmap face and records requested sizes.
type fakeFonts struct {
	mu       sync.Mutex
	sizes    []float64
	degraded bool
}

func (f *fakeFonts) Face(size float64) (font.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, size)
	return basicfont.Face7x13, nil
}

func (f *fakeFonts) Degraded() bool { return f.degraded }

type drawCall struct {
	c    color.Color
	x, y int
	text string
}

// recordingRenderer swaps the glyph painter for one that logs every call.
func recordingRenderer(fonts FontResolver, logger *zap.Logger) (*Renderer, *[]drawCall) {
	r := NewRenderer(fonts, Quality, logger)
	calls := &[]drawCall{}
	r.draw = func(_ draw.Image, _ font.Face, c color.Color, x, y int, s string) {
		*calls = append(*calls, drawCall{c, x, y, s})
	}
	return r, calls
}

func TestAdaptiveFontSize(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{1080, 1920, 43},
		{720, 1280, 29},
		{100, 100, 24},
		{4000, 3000, 80},
		{1000, 5000, 40},
		{1012, 2000, 40}, // 40.48
		{1013, 2000, 41}, // 40.52
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveFontSize(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestStrokeOffsets(t *testing.T) {
	assert.Empty(t, strokeOffsets(0))
	assert.Len(t, strokeOffsets(1), 8)

	offsets := strokeOffsets(2)
	require.Len(t, offsets, 24)
	assert.NotContains(t, offsets, image.Pt(0, 0))
	assert.Equal(t, image.Pt(-2, -2), offsets[0])
	assert.Equal(t, image.Pt(-2, -1), offsets[1])
	assert.Equal(t, image.Pt(2, 2), offsets[23])
}

func TestCenterX(t *testing.T) {
	tests := []struct {
		w, lw int
		want  int
	}{
		{1080, 400, 340},
		{1080, 401, 339},
		{100, 100, 0},
		{100, 101, -1},
		{100, 103, -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, centerX(tt.w, tt.lw), "w=%d lw=%d", tt.w, tt.lw)
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 3, floorDiv(7, 2))
	assert.Equal(t, -4, floorDiv(-7, 2))
	assert.Equal(t, -3, floorDiv(-6, 2))
	assert.Equal(t, 0, floorDiv(0, 2))
}

func TestOverlay_StrokeThenFill(t *testing.T) {
	r, calls := recordingRenderer(&fakeFonts{}, nil)
	_, err := r.Overlay(solid(200, 400, color.Gray{Y: 128}), "A😭", DefaultOverlaySpec)
	require.NoError(t, err)

	require.Len(t, *calls, 25)
	fill := (*calls)[24]
	assert.Equal(t, color.White, fill.c)
	assert.Equal(t, "A", fill.text)
	for i, c := range (*calls)[:24] {
		assert.Equal(t, color.Black, c.c, "call %d", i)
		dx, dy := c.x-fill.x, c.y-fill.y
		assert.True(t, dx >= -2 && dx <= 2 && dy >= -2 && dy <= 2 && (dx != 0 || dy != 0))
	}
}

func TestOverlay_Layout(t *testing.T) {
	fonts := &fakeFonts{}
	r, calls := recordingRenderer(fonts, nil)
	spec := CTAOverlaySpec
	spec.StrokeWidth = 0

	_, err := r.Overlay(solid(200, 400, color.Gray{Y: 128}), "Products that changed my skin😭", spec)
	require.NoError(t, err)

	require.Equal(t, []float64{24}, fonts.sizes)
	face := basicfont.Face7x13
	maxWidth := 170

	var texts []string
	for i, c := range *calls {
		texts = append(texts, c.text)
		lw := inkWidth(face, c.text)
		if strings.Contains(c.text, " ") {
			assert.LessOrEqual(t, lw, maxWidth)
		}
		assert.Equal(t, floorDiv(200-lw, 2), c.x, "line %q", c.text)
		if i > 0 {
			assert.Equal(t, inkHeight(face, "Ay"), c.y-(*calls)[i-1].y)
		}
	}
	assert.Equal(t, "Products that changed my skin", strings.Join(texts, " "))
	require.NotEmpty(t, texts)

	// The block is centred on 50% of the height.
	lineHeight := inkHeight(face, "Ay")
	total := lineHeight * len(texts)
	assert.Equal(t, 200-total/2, (*calls)[0].y)
}

func TestOverlay_EmptyTextDrawsNothing(t *testing.T) {
	r, calls := recordingRenderer(&fakeFonts{}, nil)
	src := solid(50, 80, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	out, err := r.Overlay(src, "!!", HookOverlaySpec)
	require.NoError(t, err)
	assert.Empty(t, *calls)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestOverlay_ZeroSpecUsesDefault(t *testing.T) {
	r, calls := recordingRenderer(&fakeFonts{}, nil)
	_, err := r.Overlay(solid(100, 100, color.Black), "Hi😭", OverlaySpec{})
	require.NoError(t, err)
	// Default spec strokes at width 2.
	assert.Len(t, *calls, 25)
}

func TestOverlay_DegradedLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRenderer(&fakeFonts{degraded: true}, Quality, zap.New(core))

	for i := 0; i < 3; i++ {
		_, err := r.Overlay(solid(60, 60, color.Black), "Hello world😭", DefaultOverlaySpec)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, logs.Len())
}

func TestRenderOverlay_PaintsText(t *testing.T) {
	r := NewRenderer(&EmbeddedResolver{}, Quality, nil)
	data := pngBytes(t, solid(300, 500, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))

	out, err := r.RenderOverlay(data, "Glow up 🔥", HookOverlaySpec)
	require.NoError(t, err)

	img := decodeJPEG(t, out)
	assert.Equal(t, image.Rect(0, 0, 300, 500), img.Bounds())

	// Text is anchored at 70% of the height; look for bright fill and dark
	// stroke pixels around that row.
	var light, dark int
	for y := 320; y < 380; y++ {
		for x := 0; x < 300; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			lum := (cr + cg + cb) / 3 >> 8
			switch {
			case lum > 200:
				light++
			case lum < 60:
				dark++
			}
		}
	}
	assert.Positive(t, light)
	assert.Positive(t, dark)

	// Rows far from the anchor stay untouched.
	r0, _, _, _ := img.At(150, 20).RGBA()
	assert.InDelta(t, 128, int(r0>>8), 4)
}

func TestRenderOverlay_Malformed(t *testing.T) {
	r := NewRenderer(&fakeFonts{}, Quality, nil)
	_, err := r.RenderOverlay([]byte("GIF89a broken"), "hi", DefaultOverlaySpec)
	assert.ErrorIs(t, err, ErrMalformedImage)
}

func TestRenderOverlay_Concurrent(t *testing.T) {
	r := NewRenderer(&EmbeddedResolver{}, Quality, nil)
	data := pngBytes(t, solid(120, 200, color.NRGBA{B: 200, A: 255}))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.RenderOverlay(data, "Same text every time✨", CTAOverlaySpec)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestPathResolver(t *testing.T) {
	t.Run("falls back to bitmap face", func(t *testing.T) {
		r := NewPathResolver("/nonexistent/a.ttf", "/nonexistent/b.ttc")
		face, err := r.Face(40)
		require.NoError(t, err)
		assert.Equal(t, basicfont.Face7x13, face)
		assert.True(t, r.Degraded())
		assert.Empty(t, r.Path())
	})

	t.Run("skips unparsable files", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.ttf")
		require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o644))
		r := NewPathResolver(bad)
		assert.True(t, r.Degraded())
	})

	t.Run("custom fallback", func(t *testing.T) {
		fallback := &basicfont.Face{Advance: 5, Width: 5, Height: 8, Ascent: 6, Descent: 2, Mask: basicfont.Face7x13.Mask, Ranges: basicfont.Face7x13.Ranges}
		r := &PathResolver{Fallback: fallback}
		face, err := r.Face(12)
		require.NoError(t, err)
		assert.Same(t, fallback, face)
	})
}
